package dto

import "github.com/azhengyongqin/crewbatch/internal/model"

// ServicesResponse 服务健康状态响应
type ServicesResponse struct {
	Services map[string]string `json:"services"`
}

// LedgerResponse 台账查询响应
type LedgerResponse struct {
	Total   int             `json:"total"`
	Records []model.Attempt `json:"records"`
}

// RunsResponse 批次运行列表响应
type RunsResponse struct {
	Runs []string `json:"runs"`
}

// AttemptsResponse 尝试记录查询响应
type AttemptsResponse struct {
	Total    int             `json:"total"`
	Attempts []model.Attempt `json:"attempts"`
}
