package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/azhengyongqin/crewbatch/internal/health"
	"github.com/azhengyongqin/crewbatch/internal/server/dto"
)

// HealthHandler 健康检查 Handler
type HealthHandler struct {
	checker *health.Checker
}

// NewHealthHandler 创建 HealthHandler
func NewHealthHandler(checker *health.Checker) *HealthHandler {
	return &HealthHandler{checker: checker}
}

// Liveness 服务存活检查
func (h *HealthHandler) Liveness(c *gin.Context) {
	c.String(http.StatusOK, "ok")
}

// Readiness 服务就绪检查：探测全部已注册的依赖服务。
// 健康检查只提供参考信息，存在离线服务时仍返回 200，状态在响应体中区分。
func (h *HealthHandler) Readiness(c *gin.Context) {
	if h.checker == nil {
		c.String(http.StatusOK, "ok")
		return
	}

	statuses := h.checker.CheckAll(c.Request.Context())
	status := "ok"
	if len(health.Offline(statuses)) > 0 {
		status = "degraded"
	}

	c.JSON(http.StatusOK, gin.H{
		"status":   status,
		"services": statuses,
	})
}

// Services 列出全部已注册服务的当前状态
func (h *HealthHandler) Services(c *gin.Context) {
	if h.checker == nil {
		c.JSON(http.StatusOK, dto.ServicesResponse{Services: map[string]string{}})
		return
	}

	statuses := h.checker.CheckAll(c.Request.Context())
	out := make(map[string]string, len(statuses))
	for name, st := range statuses {
		out[name] = string(st)
	}
	c.JSON(http.StatusOK, dto.ServicesResponse{Services: out})
}
