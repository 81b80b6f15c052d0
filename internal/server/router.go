package httpserver

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/azhengyongqin/crewbatch/internal/events"
	"github.com/azhengyongqin/crewbatch/internal/health"
	"github.com/azhengyongqin/crewbatch/internal/middleware"
	"github.com/azhengyongqin/crewbatch/internal/repository"
	"github.com/azhengyongqin/crewbatch/internal/server/handler"
)

type Deps struct {
	// LedgerPath 执行台账文件路径
	LedgerPath string

	// HealthChecker 健康检查器
	HealthChecker *health.Checker

	// 可选：若配置了 Postgres 则提供归档查询
	Archive repository.AttemptArchive

	// 可选：若配置了 Redis 则提供实时事件查询
	Mirror *events.Mirror
}

// NewRouter 提供 Gin HTTP API（仪表盘只读接口）
func NewRouter(deps Deps) http.Handler {
	r := gin.New()
	r.Use(gin.Recovery())

	// 全局中间件
	r.Use(middleware.RequestIDMiddleware())
	r.Use(middleware.LoggingMiddleware())
	r.Use(middleware.PrometheusMiddleware())
	r.Use(middleware.CORSMiddleware())

	healthHandler := handler.NewHealthHandler(deps.HealthChecker)
	ledgerHandler := handler.NewLedgerHandler(deps.LedgerPath)
	archiveHandler := handler.NewArchiveHandler(deps.Archive, deps.Mirror)

	// 健康检查路由
	r.GET("/healthz", healthHandler.Liveness)
	r.GET("/readyz", healthHandler.Readiness)

	// Prometheus metrics 端点
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api/v1")
	{
		// 服务健康状态
		api.GET("/services", healthHandler.Services)

		// 台账查询
		api.GET("/ledger", ledgerHandler.Tail)

		// 归档与实时事件
		api.GET("/runs", archiveHandler.ListRuns)
		api.GET("/runs/:run_id/attempts", middleware.ValidateRunIDParam(), archiveHandler.RunAttempts)
		api.GET("/runs/:run_id/stats", middleware.ValidateRunIDParam(), archiveHandler.RunStats)
		api.GET("/events/recent", archiveHandler.RecentEvents)
	}

	return r
}
