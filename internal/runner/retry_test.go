package runner

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/azhengyongqin/crewbatch/internal/model"
)

func testTask(seq int64, kind model.TaskKind) model.TaskSpec {
	return model.TaskSpec{Seq: seq, Kind: kind, Payload: "Create HealthUI.cs"}
}

func TestRunSuccessFirstAttempt(t *testing.T) {
	sink := &memSink{}
	exec := NewExecutor(newDispatcher(okCap("APPROVED")), sink, 3, 0, "run-1")

	result := exec.Run(context.Background(), testTask(1, model.TaskKindCode))

	assert.Equal(t, model.TaskStatusSuccess, result.Status)
	assert.Equal(t, 1, result.Attempts)
	assert.Equal(t, "APPROVED", result.Preview)

	records := sink.all()
	require.Len(t, records, 1, "首次成功应只写一条记录")
	assert.Equal(t, model.TaskStatusSuccess, records[0].Status)
	assert.Equal(t, 1, records[0].AttemptNumber)
	assert.Equal(t, "run-1", records[0].RunID)
}

func TestRunRetryBound(t *testing.T) {
	// 永远失败的 capability，maxRetries=3 → 恰好 3 次尝试：2 retry + 1 failed
	sink := &memSink{}
	boom := errors.New("crew pipeline crashed")
	exec := NewExecutor(newDispatcher(failCap(boom)), sink, 3, 0, "run-1")

	result := exec.Run(context.Background(), testTask(1, model.TaskKindAsset))

	assert.Equal(t, model.TaskStatusFailed, result.Status)
	assert.Equal(t, 3, result.Attempts)
	assert.Contains(t, result.Preview, "crew pipeline crashed")

	records := sink.all()
	require.Len(t, records, 3)
	assert.Equal(t, model.TaskStatusRetry, records[0].Status)
	assert.Equal(t, model.TaskStatusRetry, records[1].Status)
	assert.Equal(t, model.TaskStatusFailed, records[2].Status)

	// 尝试编号从 1 开始连续递增
	for i, r := range records {
		assert.Equal(t, i+1, r.AttemptNumber)
	}
}

func TestRunSuccessAfterRetries(t *testing.T) {
	sink := &memSink{}
	var calls int32
	flaky := capStub(func(ctx context.Context, payload string) (string, error) {
		if atomic.AddInt32(&calls, 1) < 3 {
			return "", errors.New("temporary failure")
		}
		return "ok", nil
	})
	exec := NewExecutor(newDispatcher(flaky), sink, 5, 0, "run-1")

	result := exec.Run(context.Background(), testTask(1, model.TaskKindCode))

	assert.Equal(t, model.TaskStatusSuccess, result.Status)
	assert.Equal(t, 3, result.Attempts)

	records := sink.all()
	require.Len(t, records, 3)
	assert.Equal(t, model.TaskStatusRetry, records[0].Status)
	assert.Equal(t, model.TaskStatusRetry, records[1].Status)
	assert.Equal(t, model.TaskStatusSuccess, records[2].Status)
	assert.Equal(t, 3, records[2].AttemptNumber, "success 记录应携带成功时的尝试次数")
}

func TestRunUnknownKindNotRetried(t *testing.T) {
	sink := &memSink{}
	exec := NewExecutor(newDispatcher(okCap("unused")), sink, 3, 0, "run-1")

	// 类型合法性在 Dispatcher 内部穷举判断
	result := exec.Run(context.Background(), model.TaskSpec{Seq: 1, Kind: model.TaskKind("mk1"), Payload: "Scorpion"})

	assert.Equal(t, model.TaskStatusFailed, result.Status)
	assert.Equal(t, 1, result.Attempts, "结构性非法请求不应重试")

	records := sink.all()
	require.Len(t, records, 1)
	assert.Equal(t, model.TaskStatusFailed, records[0].Status)
}

func TestRunLedgerFailureDoesNotFailTask(t *testing.T) {
	// 台账写入失败要大声暴露，但不能吞掉任务本身的成功结果
	sink := &memSink{failErr: errors.New("disk full")}
	exec := NewExecutor(newDispatcher(okCap("ok")), sink, 3, 0, "run-1")

	result := exec.Run(context.Background(), testTask(1, model.TaskKindCode))
	assert.Equal(t, model.TaskStatusSuccess, result.Status)
}

func TestRunAttemptCallback(t *testing.T) {
	sink := &memSink{}
	exec := NewExecutor(newDispatcher(failCap(errors.New("x"))), sink, 2, 0, "run-1")

	var seen []model.Attempt
	exec.OnAttempt(func(ctx context.Context, a model.Attempt) {
		seen = append(seen, a)
	})

	exec.Run(context.Background(), testTask(1, model.TaskKindCode))
	require.Len(t, seen, 2, "回调应与台账记录一一对应")
	assert.Equal(t, model.TaskStatusRetry, seen[0].Status)
	assert.Equal(t, model.TaskStatusFailed, seen[1].Status)
}

func TestRunCancelledDuringRetryWait(t *testing.T) {
	sink := &memSink{}
	boom := errors.New("always fails")
	// 较长的重试间隔，保证取消发生在等待期
	exec := NewExecutor(newDispatcher(failCap(boom)), sink, 3, 10*time.Second, "run-1")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result := exec.Run(ctx, testTask(1, model.TaskKindCode))

	assert.Equal(t, model.TaskStatusFailed, result.Status)
	assert.Equal(t, 1, result.Attempts, "取消后不应调度新的尝试")

	records := sink.all()
	require.Len(t, records, 1, "记录条数必须等于实际发生的尝试数")
	assert.Equal(t, model.TaskStatusRetry, records[0].Status)
}
