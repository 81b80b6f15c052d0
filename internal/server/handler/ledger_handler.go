package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/azhengyongqin/crewbatch/internal/ledger"
	"github.com/azhengyongqin/crewbatch/internal/middleware"
	"github.com/azhengyongqin/crewbatch/internal/server/dto"
)

// LedgerHandler 执行台账查询 Handler。
// 台账文件只追加，读取端随时打开随时读，不与写入端共享句柄。
type LedgerHandler struct {
	path string
}

// NewLedgerHandler 创建 LedgerHandler
func NewLedgerHandler(path string) *LedgerHandler {
	return &LedgerHandler{path: path}
}

// Tail 返回台账末尾 n 条记录（默认 50）
func (h *LedgerHandler) Tail(c *gin.Context) {
	n := middleware.QueryInt(c, "n", 50)
	if n <= 0 || n > 500 {
		n = 50
	}

	records, err := ledger.Tail(h.path, n)
	if err != nil {
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: "读取台账失败: " + err.Error()})
		return
	}

	total, err := ledger.Count(h.path)
	if err != nil {
		total = len(records)
	}

	c.JSON(http.StatusOK, dto.LedgerResponse{
		Total:   total,
		Records: records,
	})
}
