package controllers

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RootController 服务根路径
type RootController struct {
	BaseController
}

func (c *RootController) Index() {
	c.JSON(http.StatusOK, map[string]interface{}{
		"service": "medassist-backend",
		"status":  "running",
		"time":    time.Now().Format(time.RFC3339),
	})
}

// HealthController 健康检查
type HealthController struct {
	BaseController
}

func (c *HealthController) Health() {
	c.JSON(http.StatusOK, map[string]interface{}{
		"status": "ok",
		"time":   time.Now().Format(time.RFC3339),
	})
}

// MetricsController 暴露 Prometheus 指标
type MetricsController struct {
	BaseController
}

func (c *MetricsController) Metrics() {
	promhttp.Handler().ServeHTTP(c.Ctx.ResponseWriter, c.Ctx.Request)
}
