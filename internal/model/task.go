package model

import "fmt"

// PriorityDefault 未指定优先级时的哨兵值：最低优先级，排在所有显式分组之后执行。
const PriorityDefault = 1<<31 - 1

// TaskSpec 一条批处理任务定义。入批后不可变。
// Seq 是入批时分配的单调序号，用于在台账、重试与并行完成之间做无歧义关联
// （不依赖列表位置做身份）。
type TaskSpec struct {
	Seq      int64    `json:"seq"`
	Kind     TaskKind `json:"crew"`
	Payload  string   `json:"task"`
	Priority int      `json:"priority,omitempty"`
}

// EffectivePriority 返回调度用优先级。
// 显式优先级必须 >= 1；0 或负值视为未指定，映射到哨兵值（最后执行）。
func (t TaskSpec) EffectivePriority() int {
	if t.Priority <= 0 {
		return PriorityDefault
	}
	return t.Priority
}

// Name 任务的可读名称（汇总与失败报告用）
func (t TaskSpec) Name() string {
	p := t.Payload
	if len(p) > 40 {
		p = p[:40] + "..."
	}
	return fmt.Sprintf("#%d %s: %s", t.Seq, t.Kind, p)
}

// AssignSeq 为一批任务分配单调序号（从 1 开始）。
// 返回副本，入参保持不变。
func AssignSeq(tasks []TaskSpec) []TaskSpec {
	out := make([]TaskSpec, len(tasks))
	copy(out, tasks)
	for i := range out {
		out[i].Seq = int64(i + 1)
	}
	return out
}

// BatchResult 单个任务的终态汇总
type BatchResult struct {
	Task           TaskSpec   `json:"task"`
	Status         TaskStatus `json:"status"`
	Attempts       int        `json:"attempts"`
	ElapsedSeconds float64    `json:"elapsed_sec"`
	Preview        string     `json:"preview,omitempty"`
}
