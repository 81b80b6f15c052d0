package model

import (
	"fmt"
	"time"
)

// PreviewLimit 结果/错误预览的最大长度（字符）
const PreviewLimit = 500

// Attempt 一次执行尝试的台账记录。
// 每次尝试写入一条，写入后永不修改；台账即全部 Attempt 的按序拼接。
type Attempt struct {
	RunID         string            `json:"run_id"`
	Seq           int64             `json:"seq"`
	Crew          TaskKind          `json:"crew"`
	Payload       string            `json:"task"`
	AttemptNumber int               `json:"attempt"`
	Status        TaskStatus        `json:"status"`
	ElapsedSec    float64           `json:"elapsed_sec"`
	ResultPreview string            `json:"result_preview"`
	Timestamp     string            `json:"timestamp"`
	Metadata      map[string]string `json:"metadata,omitempty"`
}

// NewAttempt 构造一条尝试记录（时间戳取当前时刻，预览截断到 500 字符）
func NewAttempt(runID string, task TaskSpec, attempt int, status TaskStatus, elapsed time.Duration, preview string) Attempt {
	var meta map[string]string
	if task.Priority > 0 {
		meta = map[string]string{"priority": fmt.Sprintf("%d", task.Priority)}
	}
	return Attempt{
		RunID:         runID,
		Seq:           task.Seq,
		Crew:          task.Kind,
		Payload:       task.Payload,
		AttemptNumber: attempt,
		Status:        status,
		ElapsedSec:    roundSec(elapsed),
		ResultPreview: TruncatePreview(preview),
		Timestamp:     time.Now().Format(time.RFC3339),
		Metadata:      meta,
	}
}

// TruncatePreview 截断预览到 PreviewLimit
func TruncatePreview(s string) string {
	if len(s) > PreviewLimit {
		return s[:PreviewLimit]
	}
	return s
}

// roundSec 秒数保留两位小数
func roundSec(d time.Duration) float64 {
	return float64(int64(d.Seconds()*100)) / 100
}
