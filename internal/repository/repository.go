package repository

import (
	"context"

	"github.com/azhengyongqin/crewbatch/internal/model"
)

// ListAttemptsFilter 尝试记录查询过滤条件
type ListAttemptsFilter struct {
	RunID  string
	Crew   string
	Status string
	Limit  int
	Offset int
}

// RunStats 单个批次运行的统计信息
type RunStats struct {
	RunID         string         `json:"run_id"`
	TotalAttempts int            `json:"total_attempts"`
	SuccessTasks  int            `json:"success_tasks"`
	FailedTasks   int            `json:"failed_tasks"`
	Retries       int            `json:"retries"`
	AvgElapsedSec float64        `json:"avg_elapsed_sec"`
	CrewAttempts  map[string]int `json:"crew_attempts"`
}

// AttemptArchive 尝试记录归档仓储接口。
// 抽象持久化层，台账文件之外的可查询副本。
type AttemptArchive interface {
	// InsertAttempt 归档一条尝试记录
	InsertAttempt(ctx context.Context, a model.Attempt) error

	// ListAttempts 查询尝试记录（支持分页和过滤）
	ListAttempts(ctx context.Context, filter ListAttemptsFilter) ([]model.Attempt, error)

	// CountAttempts 统计尝试记录总数
	CountAttempts(ctx context.Context, filter ListAttemptsFilter) (int, error)

	// GetRunStats 获取单个批次运行的统计信息
	GetRunStats(ctx context.Context, runID string) (*RunStats, error)

	// ListRuns 列出最近的批次运行 ID（新的在前）
	ListRuns(ctx context.Context, limit int) ([]string, error)
}
