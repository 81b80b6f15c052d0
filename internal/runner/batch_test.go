package runner

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/azhengyongqin/crewbatch/internal/health"
	"github.com/azhengyongqin/crewbatch/internal/model"
)

func TestBatchEndToEnd(t *testing.T) {
	// 任务 A 成功，任务 B 耗尽重试后失败，二者互不影响
	sink := &memSink{}
	perTask := capStub(func(ctx context.Context, payload string) (string, error) {
		if payload == "Forge the cursed blade" {
			return "", errors.New("asset crew rejected the brief")
		}
		return "APPROVED", nil
	})

	exec := NewExecutor(newDispatcher(perTask), sink, 2, 0, "run-e2e")
	runner := NewBatchRunner(exec, nil, ModePriority, 2, true)

	tasks := []model.TaskSpec{
		{Kind: model.TaskKindCode, Payload: "Create HealthUI.cs", Priority: 1},
		{Kind: model.TaskKindAsset, Payload: "Forge the cursed blade", Priority: 2},
	}

	summary := runner.Run(context.Background(), tasks)

	assert.Equal(t, 1, summary.Success)
	assert.Equal(t, 1, summary.Failed)
	assert.False(t, summary.Cancelled)
	assert.Equal(t, PhaseDone, runner.Phase())
	require.Len(t, summary.Results, 2)

	// 台账：A 一条 success；B 一条 retry + 一条 failed
	recordsA := sink.bySeq(1)
	require.Len(t, recordsA, 1)
	assert.Equal(t, model.TaskStatusSuccess, recordsA[0].Status)

	recordsB := sink.bySeq(2)
	require.Len(t, recordsB, 2)
	assert.Equal(t, model.TaskStatusRetry, recordsB[0].Status)
	assert.Equal(t, model.TaskStatusFailed, recordsB[1].Status)
	assert.Equal(t, 2, recordsB[1].AttemptNumber)

	for _, a := range sink.all() {
		assert.Equal(t, "run-e2e", a.RunID)
	}
}

func TestBatchEmpty(t *testing.T) {
	sink := &memSink{}
	exec := NewExecutor(newDispatcher(okCap("ok")), sink, 3, 0, "run-1")
	runner := NewBatchRunner(exec, nil, ModeSequential, 1, false)

	summary := runner.Run(context.Background(), nil)

	assert.Zero(t, summary.Success)
	assert.Zero(t, summary.Failed)
	assert.Empty(t, summary.Results)
	assert.Empty(t, sink.all(), "空批次不应触碰台账")
	assert.Equal(t, PhaseDone, runner.Phase())
}

func TestBatchAssignsSeq(t *testing.T) {
	sink := &memSink{}
	exec := NewExecutor(newDispatcher(okCap("ok")), sink, 1, 0, "run-1")
	runner := NewBatchRunner(exec, nil, ModeSequential, 1, false)

	summary := runner.Run(context.Background(), []model.TaskSpec{
		{Kind: model.TaskKindCode, Payload: "a"},
		{Kind: model.TaskKindCharacter, Payload: "b"},
	})

	require.Len(t, summary.Results, 2)
	assert.Equal(t, int64(1), summary.Results[0].Task.Seq)
	assert.Equal(t, int64(2), summary.Results[1].Task.Seq)
}

func TestBatchOfflineServiceDoesNotBlock(t *testing.T) {
	// 离线服务只产生告警窗口，批次照常执行
	checker := health.NewChecker(100 * time.Millisecond)
	checker.Register("nim", func(ctx context.Context) health.Status {
		return health.StatusOffline
	})

	sink := &memSink{}
	exec := NewExecutor(newDispatcher(okCap("ok")), sink, 1, 0, "run-1")
	runner := NewBatchRunner(exec, checker, ModeSequential, 1, false)
	runner.SetGraceWindow(10 * time.Millisecond)

	summary := runner.Run(context.Background(), []model.TaskSpec{
		{Kind: model.TaskKindCode, Payload: "a"},
	})

	assert.Equal(t, 1, summary.Success)
	assert.False(t, summary.Cancelled)
}

func TestBatchCancelledDuringGraceWindow(t *testing.T) {
	checker := health.NewChecker(100 * time.Millisecond)
	checker.Register("comfyui", func(ctx context.Context) health.Status {
		return health.StatusOffline
	})

	sink := &memSink{}
	exec := NewExecutor(newDispatcher(okCap("ok")), sink, 1, 0, "run-1")
	runner := NewBatchRunner(exec, checker, ModeSequential, 1, false)
	runner.SetGraceWindow(10 * time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	summary := runner.Run(ctx, []model.TaskSpec{
		{Kind: model.TaskKindCode, Payload: "a"},
	})

	assert.True(t, summary.Cancelled)
	assert.Zero(t, summary.Success)
	assert.Empty(t, sink.all(), "等待窗口内取消不应开始任何任务")
	assert.Equal(t, PhaseDone, runner.Phase())
}

func TestParseMode(t *testing.T) {
	for _, valid := range []string{"sequential", "parallel", "priority"} {
		mode, err := ParseMode(valid)
		require.NoError(t, err)
		assert.Equal(t, Mode(valid), mode)
	}

	_, err := ParseMode("roundrobin")
	assert.Error(t, err)
}
