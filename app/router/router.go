package router

import (
	"github.com/beego/beego/v2/server/web"
	"github.com/medassist/backend-go/app/controllers"
	"github.com/medassist/backend-go/app/middleware"
)

// Init registers all routes. Must be called after config is loaded.
func Init() {
	web.InsertFilter("/*", web.BeforeRouter, middleware.CORSMiddleware)

	web.Router("/", &controllers.RootController{}, "get:Index")
	web.Router("/health", &controllers.HealthController{}, "get:Health")
	web.Router("/metrics", &controllers.MetricsController{}, "get:Metrics")

	// 聊天路由
	chatController := &controllers.ChatController{}
	web.Router("/api/chat", chatController, "post:Chat")
}
