package main

import (
	"log"
	"strconv"

	"github.com/beego/beego/v2/server/web"
	"github.com/medassist/backend-go/app/bootstrap"
	"github.com/medassist/backend-go/app/router"
	"github.com/medassist/backend-go/internal/config"
	"github.com/medassist/backend-go/internal/logger"
	"go.uber.org/zap"
)

func main() {
	app, err := bootstrap.Init()
	if err != nil {
		log.Fatalf("failed to bootstrap application: %v", err)
	}
	defer app.Shutdown()
	bootstrap.SetGlobalApp(app)

	router.Init()

	// 配置Beego全局设置
	web.BConfig.AppName = "MedAssist Backend"
	web.BConfig.CopyRequestBody = true
	if p, err := strconv.Atoi(config.AppConfig.Server.Port); err == nil {
		web.BConfig.Listen.HTTPPort = p
	}

	logger.Info("🚀 Starting MedAssist Backend", zap.Int("port", web.BConfig.Listen.HTTPPort))
	web.Run()
}
