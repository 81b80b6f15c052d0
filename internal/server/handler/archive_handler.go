package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/azhengyongqin/crewbatch/internal/events"
	"github.com/azhengyongqin/crewbatch/internal/middleware"
	"github.com/azhengyongqin/crewbatch/internal/repository"
	"github.com/azhengyongqin/crewbatch/internal/server/dto"
)

// ArchiveHandler 归档与实时事件查询 Handler。
// 归档（Postgres）和事件镜像（Redis）都是可选落点，未配置时对应接口返回 503。
type ArchiveHandler struct {
	archive repository.AttemptArchive
	mirror  *events.Mirror
}

// NewArchiveHandler 创建 ArchiveHandler
func NewArchiveHandler(archive repository.AttemptArchive, mirror *events.Mirror) *ArchiveHandler {
	return &ArchiveHandler{archive: archive, mirror: mirror}
}

// ListRuns 列出最近的批次运行
func (h *ArchiveHandler) ListRuns(c *gin.Context) {
	if h.archive == nil {
		c.JSON(http.StatusServiceUnavailable, dto.ErrorResponse{Error: "归档未启用（未配置 POSTGRES_DSN）"})
		return
	}

	limit := middleware.QueryInt(c, "limit", 20)
	runs, err := h.archive.ListRuns(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: "查询运行列表失败: " + err.Error()})
		return
	}

	c.JSON(http.StatusOK, dto.RunsResponse{Runs: runs})
}

// RunAttempts 查询单个批次运行的尝试记录
func (h *ArchiveHandler) RunAttempts(c *gin.Context) {
	if h.archive == nil {
		c.JSON(http.StatusServiceUnavailable, dto.ErrorResponse{Error: "归档未启用（未配置 POSTGRES_DSN）"})
		return
	}

	filter := repository.ListAttemptsFilter{
		RunID:  c.Param("run_id"),
		Crew:   c.Query("crew"),
		Status: c.Query("status"),
		Limit:  middleware.QueryInt(c, "limit", 50),
		Offset: middleware.QueryInt(c, "offset", 0),
	}

	attempts, err := h.archive.ListAttempts(c.Request.Context(), filter)
	if err != nil {
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: "查询尝试记录失败: " + err.Error()})
		return
	}

	total, err := h.archive.CountAttempts(c.Request.Context(), filter)
	if err != nil {
		total = len(attempts)
	}

	c.JSON(http.StatusOK, dto.AttemptsResponse{
		Total:    total,
		Attempts: attempts,
	})
}

// RunStats 查询单个批次运行的统计信息
func (h *ArchiveHandler) RunStats(c *gin.Context) {
	if h.archive == nil {
		c.JSON(http.StatusServiceUnavailable, dto.ErrorResponse{Error: "归档未启用（未配置 POSTGRES_DSN）"})
		return
	}

	stats, err := h.archive.GetRunStats(c.Request.Context(), c.Param("run_id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: "查询运行统计失败: " + err.Error()})
		return
	}

	c.JSON(http.StatusOK, stats)
}

// RecentEvents 查询最近的实时事件（Redis 镜像）
func (h *ArchiveHandler) RecentEvents(c *gin.Context) {
	if h.mirror == nil {
		c.JSON(http.StatusServiceUnavailable, dto.ErrorResponse{Error: "事件镜像未启用（未配置 REDIS_ADDR）"})
		return
	}

	n := middleware.QueryInt(c, "n", 50)
	attempts, err := h.mirror.Recent(c.Request.Context(), n)
	if err != nil {
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: "读取实时事件失败: " + err.Error()})
		return
	}

	c.JSON(http.StatusOK, dto.AttemptsResponse{
		Total:    len(attempts),
		Attempts: attempts,
	})
}
