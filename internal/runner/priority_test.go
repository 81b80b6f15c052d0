package runner

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/azhengyongqin/crewbatch/internal/model"
)

// seqTracker 记录任务开始执行的顺序
type seqTracker struct {
	mu    sync.Mutex
	order []int64
}

func (t *seqTracker) started(seq int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.order = append(t.order, seq)
}

func (t *seqTracker) all() []int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]int64, len(t.order))
	copy(out, t.order)
	return out
}

// trackingRun 不经过真实执行器，直接记录开始顺序并返回成功
func trackingRun(tracker *seqTracker) RunFunc {
	return func(ctx context.Context, task model.TaskSpec) model.BatchResult {
		tracker.started(task.Seq)
		return model.BatchResult{Task: task, Status: model.TaskStatusSuccess, Attempts: 1}
	}
}

func TestPriorityGroupOrdering(t *testing.T) {
	// 优先级 [2,1,2,1]：所有 1 先于任何 2 开始
	tasks := []model.TaskSpec{
		{Seq: 1, Kind: model.TaskKindCode, Payload: "a", Priority: 2},
		{Seq: 2, Kind: model.TaskKindCode, Payload: "b", Priority: 1},
		{Seq: 3, Kind: model.TaskKindCode, Payload: "c", Priority: 2},
		{Seq: 4, Kind: model.TaskKindCode, Payload: "d", Priority: 1},
	}

	tracker := &seqTracker{}
	results := RunByPriority(context.Background(), tasks, false, 1, trackingRun(tracker))
	require.Len(t, results, 4)

	order := tracker.all()
	require.Len(t, order, 4)
	assert.Equal(t, []int64{2, 4, 1, 3}, order, "低数值分组整组先行，组内按入批顺序")
}

func TestPriorityGroupBarrier(t *testing.T) {
	// 组内并行时，上一组全部到达终态之前下一组不得开始
	tasks := []model.TaskSpec{
		{Seq: 1, Kind: model.TaskKindCode, Payload: "a", Priority: 1},
		{Seq: 2, Kind: model.TaskKindCode, Payload: "b", Priority: 1},
		{Seq: 3, Kind: model.TaskKindCode, Payload: "c", Priority: 2},
		{Seq: 4, Kind: model.TaskKindCode, Payload: "d", Priority: 2},
	}

	tracker := &seqTracker{}
	results := RunByPriority(context.Background(), tasks, true, 2, trackingRun(tracker))
	require.Len(t, results, 4)

	order := tracker.all()
	require.Len(t, order, 4)
	// 前两个开始的必须是分组 1 的任务
	firstGroup := map[int64]bool{1: true, 2: true}
	assert.True(t, firstGroup[order[0]] && firstGroup[order[1]],
		"分组 2 的任务在分组 1 完成前开始了: %v", order)
}

func TestPriorityUnsetRunsLast(t *testing.T) {
	// 未指定优先级的任务落在哨兵分组，最后执行
	tasks := []model.TaskSpec{
		{Seq: 1, Kind: model.TaskKindCode, Payload: "a"},
		{Seq: 2, Kind: model.TaskKindCode, Payload: "b", Priority: 5},
		{Seq: 3, Kind: model.TaskKindCode, Payload: "c", Priority: 1},
	}

	tracker := &seqTracker{}
	RunByPriority(context.Background(), tasks, false, 1, trackingRun(tracker))

	order := tracker.all()
	require.Len(t, order, 3)
	assert.Equal(t, []int64{3, 2, 1}, order)
}

func TestPriorityResultOrderRestored(t *testing.T) {
	// 并行分组的结果在汇报边界重排回提交顺序
	tasks := []model.TaskSpec{
		{Seq: 1, Kind: model.TaskKindCode, Payload: "a", Priority: 1},
		{Seq: 2, Kind: model.TaskKindCode, Payload: "b", Priority: 1},
		{Seq: 3, Kind: model.TaskKindCode, Payload: "c", Priority: 1},
	}

	exec := NewExecutor(newDispatcher(okCap("ok")), &memSink{}, 1, 0, "run-1")
	results := RunByPriority(context.Background(), tasks, true, 3, exec.Run)

	require.Len(t, results, 3)
	for i, r := range results {
		assert.Equal(t, int64(i+1), r.Task.Seq)
	}
}

func TestPriorityCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	tasks := []model.TaskSpec{
		{Seq: 1, Kind: model.TaskKindCode, Payload: "a", Priority: 1},
		{Seq: 2, Kind: model.TaskKindCode, Payload: "b", Priority: 2},
	}

	exec := NewExecutor(newDispatcher(okCap("ok")), &memSink{}, 1, 0, "run-1")
	results := RunByPriority(ctx, tasks, false, 1, exec.Run)

	require.Len(t, results, 2)
	for _, r := range results {
		assert.Equal(t, model.TaskStatusFailed, r.Status)
		assert.Zero(t, r.Attempts)
	}
}

func TestPriorityEmptyBatch(t *testing.T) {
	exec := NewExecutor(newDispatcher(okCap("ok")), &memSink{}, 1, 0, "run-1")
	assert.Nil(t, RunByPriority(context.Background(), nil, true, 2, exec.Run))
}
