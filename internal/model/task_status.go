package model

// TaskStatus 统一任务状态枚举（用于台账/归档/前端筛选）。
// 约定：
// - pending: 已定义（等待执行器调度）
// - running: 某次尝试进行中
// - retry: 本次尝试失败且还有剩余次数（之后必然回到 running）
// - success: 成功（终态）
// - failed: 重试耗尽后失败（终态）
type TaskStatus string

const (
	TaskStatusPending TaskStatus = "pending"
	TaskStatusRunning TaskStatus = "running"
	TaskStatusRetry   TaskStatus = "retry"
	TaskStatusSuccess TaskStatus = "success"
	TaskStatusFailed  TaskStatus = "failed"
)

// transitions 状态机允许的迁移表
var transitions = map[TaskStatus][]TaskStatus{
	TaskStatusPending: {TaskStatusRunning},
	TaskStatusRunning: {TaskStatusRetry, TaskStatusSuccess, TaskStatusFailed},
	TaskStatusRetry:   {TaskStatusRunning},
	TaskStatusSuccess: {},
	TaskStatusFailed:  {},
}

func (s TaskStatus) Valid() bool {
	switch s {
	case TaskStatusPending, TaskStatusRunning, TaskStatusRetry, TaskStatusSuccess, TaskStatusFailed:
		return true
	default:
		return false
	}
}

// Terminal 是否为终态
func (s TaskStatus) Terminal() bool {
	return s == TaskStatusSuccess || s == TaskStatusFailed
}

// CanTransition 判断 s → next 是否为合法状态迁移
func (s TaskStatus) CanTransition(next TaskStatus) bool {
	for _, t := range transitions[s] {
		if t == next {
			return true
		}
	}
	return false
}
