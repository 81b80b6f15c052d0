package runner

import (
	"context"
	"errors"
	"time"

	"github.com/azhengyongqin/crewbatch/internal/dispatch"
	"github.com/azhengyongqin/crewbatch/internal/logger"
	"github.com/azhengyongqin/crewbatch/internal/metrics"
	"github.com/azhengyongqin/crewbatch/internal/model"
)

// AttemptSink 尝试记录的落点（台账）
type AttemptSink interface {
	Append(model.Attempt) error
}

// AttemptCallback 每条尝试记录写入台账后的回调（归档、事件镜像等可选落点）
type AttemptCallback func(ctx context.Context, a model.Attempt)

// Executor 重试执行器：包装一次任务分发，提供有界重试与固定间隔。
// 失败处理策略只在这一层：
// - 第 1 次尝试立即执行；失败且还有剩余次数时写一条 retry 记录，等待固定间隔后重试
// - 最后一次尝试失败时写一条 failed 记录并把错误上抛，重试从不静默
// - 任何一次成功只写一条带尝试次数的 success 记录，之后不再尝试
// 间隔是固定退避（非指数），是刻意的简化；若改为指数退避，
// 必须保持"每次尝试恰好一条记录"的契约。
type Executor struct {
	dispatcher *dispatch.Dispatcher
	ledger     AttemptSink
	maxRetries int
	retryDelay time.Duration
	runID      string
	onAttempt  AttemptCallback
}

// NewExecutor 创建重试执行器。maxRetries >= 1，retryDelay >= 0。
func NewExecutor(d *dispatch.Dispatcher, sink AttemptSink, maxRetries int, retryDelay time.Duration, runID string) *Executor {
	if maxRetries < 1 {
		maxRetries = 1
	}
	if retryDelay < 0 {
		retryDelay = 0
	}
	return &Executor{
		dispatcher: d,
		ledger:     sink,
		maxRetries: maxRetries,
		retryDelay: retryDelay,
		runID:      runID,
	}
}

// OnAttempt 设置尝试记录回调
func (e *Executor) OnAttempt(cb AttemptCallback) {
	e.onAttempt = cb
}

// Run 执行单个任务直到终态。
// 返回的 BatchResult 总是终态（success 或 failed）；每次尝试在控制权返回前
// 已按发生顺序追加到台账。
func (e *Executor) Run(ctx context.Context, task model.TaskSpec) model.BatchResult {
	log := logger.WithRunID(e.runID).With().
		Int64("seq", task.Seq).
		Str("crew", task.Kind.String()).
		Logger()

	taskStart := time.Now()

	for attempt := 1; ; attempt++ {
		attemptStart := time.Now()
		result, err := e.dispatcher.Dispatch(ctx, task.Kind, task.Payload)
		elapsed := time.Since(attemptStart)

		if err == nil {
			e.append(ctx, model.NewAttempt(e.runID, task, attempt, model.TaskStatusSuccess, elapsed, result))
			metrics.RecordAttempt(task.Kind.String(), string(model.TaskStatusSuccess), elapsed.Seconds())
			log.Info().Int("attempt", attempt).Float64("elapsed_sec", elapsed.Seconds()).Msg("任务成功")

			return model.BatchResult{
				Task:           task,
				Status:         model.TaskStatusSuccess,
				Attempts:       attempt,
				ElapsedSeconds: time.Since(taskStart).Seconds(),
				Preview:        model.TruncatePreview(result),
			}
		}

		// 结构性非法请求：重试不可能成功，立即按终态失败处理
		fatal := errors.Is(err, model.ErrUnknownTaskKind)

		if !fatal && attempt < e.maxRetries {
			e.append(ctx, model.NewAttempt(e.runID, task, attempt, model.TaskStatusRetry, elapsed, err.Error()))
			metrics.RecordAttempt(task.Kind.String(), string(model.TaskStatusRetry), elapsed.Seconds())
			metrics.RecordRetry(task.Kind.String())
			log.Warn().Int("attempt", attempt).Int("max_retries", e.maxRetries).Err(err).Msg("尝试失败，等待重试")

			// 固定间隔等待；上下文取消时不再调度新的尝试。
			// 已写入的 retry 记录保持原样，记录条数始终等于实际发生的尝试数。
			select {
			case <-ctx.Done():
				log.Warn().Int("attempt", attempt).Msg("重试等待中被取消，不再调度后续尝试")

				return model.BatchResult{
					Task:           task,
					Status:         model.TaskStatusFailed,
					Attempts:       attempt,
					ElapsedSeconds: time.Since(taskStart).Seconds(),
					Preview:        model.TruncatePreview(ctx.Err().Error()),
				}
			case <-time.After(e.retryDelay):
			}
			continue
		}

		// 重试耗尽（或不可重试）：写终态记录并上抛
		e.append(ctx, model.NewAttempt(e.runID, task, attempt, model.TaskStatusFailed, elapsed, err.Error()))
		metrics.RecordAttempt(task.Kind.String(), string(model.TaskStatusFailed), elapsed.Seconds())
		log.Error().Int("attempt", attempt).Err(err).Msg("任务失败")

		return model.BatchResult{
			Task:           task,
			Status:         model.TaskStatusFailed,
			Attempts:       attempt,
			ElapsedSeconds: time.Since(taskStart).Seconds(),
			Preview:        model.TruncatePreview(err.Error()),
		}
	}
}

// append 写入台账并触发可选回调。
// 台账写入失败必须大声暴露（这是唯一的审计记录），但不改变任务本身的结果。
func (e *Executor) append(ctx context.Context, a model.Attempt) {
	if err := e.ledger.Append(a); err != nil {
		metrics.RecordLedgerWriteError()
		logger.Error().Err(err).
			Str("run_id", a.RunID).
			Int64("seq", a.Seq).
			Int("attempt", a.AttemptNumber).
			Msg("台账写入失败，审计记录不完整")
	}

	if e.onAttempt != nil {
		e.onAttempt(ctx, a)
	}
}
