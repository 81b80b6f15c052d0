package repository

import (
	"encoding/json"
	"time"

	"gorm.io/gorm"

	"github.com/azhengyongqin/crewbatch/internal/model"
)

// BatchAttemptModel GORM 模型 - 对应 batch_attempt 表。
// 台账（JSONL 文件）仍是唯一的审计事实来源；归档表只是可查询的副本。
type BatchAttemptModel struct {
	ID            int64           `gorm:"primaryKey;autoIncrement;column:id"`
	RunID         string          `gorm:"column:run_id;type:text;not null;index:idx_attempt_run_seq"`
	Seq           int64           `gorm:"column:seq;not null;index:idx_attempt_run_seq"`
	Crew          string          `gorm:"column:crew;type:text;not null;index:idx_attempt_crew_status"`
	Payload       string          `gorm:"column:payload;type:text;not null"`
	Attempt       int             `gorm:"column:attempt;not null"`
	Status        string          `gorm:"column:status;type:text;not null;index:idx_attempt_crew_status"`
	ElapsedSec    float64         `gorm:"column:elapsed_sec"`
	ResultPreview *string         `gorm:"column:result_preview;type:text"`
	Metadata      json.RawMessage `gorm:"column:metadata;type:jsonb"`
	RecordedAt    time.Time       `gorm:"column:recorded_at;not null;index"`
	CreatedAt     time.Time       `gorm:"column:created_at;autoCreateTime"`
}

// TableName 指定表名
func (BatchAttemptModel) TableName() string { return "batch_attempt" }

// ToAttempt 转换为 Attempt 实体
func (m *BatchAttemptModel) ToAttempt() model.Attempt {
	a := model.Attempt{
		RunID:         m.RunID,
		Seq:           m.Seq,
		Crew:          model.TaskKind(m.Crew),
		Payload:       m.Payload,
		AttemptNumber: m.Attempt,
		Status:        model.TaskStatus(m.Status),
		ElapsedSec:    m.ElapsedSec,
		Timestamp:     m.RecordedAt.Format(time.RFC3339),
	}
	if m.ResultPreview != nil {
		a.ResultPreview = *m.ResultPreview
	}
	if m.Metadata != nil {
		_ = json.Unmarshal(m.Metadata, &a.Metadata)
	}
	return a
}

// AttemptToModel 从 Attempt 实体创建模型
func AttemptToModel(a model.Attempt) BatchAttemptModel {
	m := BatchAttemptModel{
		RunID:      a.RunID,
		Seq:        a.Seq,
		Crew:       a.Crew.String(),
		Payload:    a.Payload,
		Attempt:    a.AttemptNumber,
		Status:     string(a.Status),
		ElapsedSec: a.ElapsedSec,
		RecordedAt: parseTimestamp(a.Timestamp),
	}
	if a.ResultPreview != "" {
		m.ResultPreview = &a.ResultPreview
	}
	if len(a.Metadata) > 0 {
		m.Metadata, _ = json.Marshal(a.Metadata)
	}
	return m
}

// Migrate 建表迁移（只建归档表，台账文件不在此列）
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(&BatchAttemptModel{})
}

// parseTimestamp 解析台账记录里的 RFC3339 时间戳，解析失败退回当前时刻
func parseTimestamp(s string) time.Time {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t
	}
	return time.Now()
}
