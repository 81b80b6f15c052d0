package runner

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/azhengyongqin/crewbatch/internal/health"
	"github.com/azhengyongqin/crewbatch/internal/logger"
	"github.com/azhengyongqin/crewbatch/internal/metrics"
	"github.com/azhengyongqin/crewbatch/internal/model"
)

// NewRunID 生成批次运行 ID，打进每条尝试记录的 run_id 字段
func NewRunID() string {
	return uuid.NewString()
}

// Mode 批处理执行策略
type Mode string

const (
	ModeSequential Mode = "sequential"
	ModeParallel   Mode = "parallel"
	ModePriority   Mode = "priority"
)

// ParseMode 解析执行策略
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeSequential, ModeParallel, ModePriority:
		return Mode(s), nil
	default:
		return "", fmt.Errorf("invalid batch mode %q (must be sequential/parallel/priority)", s)
	}
}

// Phase 批处理状态机阶段。
// NotStarted → HealthChecking → Dispatching → Summarizing → Done，
// HealthChecking 仅供参考，无论结果如何都继续向前。
type Phase string

const (
	PhaseNotStarted     Phase = "not_started"
	PhaseHealthChecking Phase = "health_checking"
	PhaseDispatching    Phase = "dispatching"
	PhaseSummarizing    Phase = "summarizing"
	PhaseDone           Phase = "done"
)

// Summary 批次运行汇总
type Summary struct {
	RunID          string              `json:"run_id"`
	Mode           Mode                `json:"mode"`
	Success        int                 `json:"success"`
	Failed         int                 `json:"failed"`
	ElapsedSeconds float64             `json:"elapsed_sec"`
	Cancelled      bool                `json:"cancelled,omitempty"`
	Results        []model.BatchResult `json:"results"`
}

// BatchRunner 顶层批处理器：持有静态任务批，驱动模式选择，产出运行汇总。
// 三种策略最终都会落到每个任务一次的重试执行器上。
type BatchRunner struct {
	exec          *Executor
	checker       *health.Checker
	mode          Mode
	maxWorkers    int
	groupParallel bool
	graceWindow   time.Duration
	runID         string
	phase         Phase
}

// NewBatchRunner 创建批处理器。checker 可为 nil（跳过健康检查阶段）。
func NewBatchRunner(exec *Executor, checker *health.Checker, mode Mode, maxWorkers int, groupParallel bool) *BatchRunner {
	if maxWorkers < 1 {
		maxWorkers = 1
	}
	return &BatchRunner{
		exec:          exec,
		checker:       checker,
		mode:          mode,
		maxWorkers:    maxWorkers,
		groupParallel: groupParallel,
		graceWindow:   3 * time.Second,
		runID:         exec.runID,
		phase:         PhaseNotStarted,
	}
}

// SetGraceWindow 设置健康告警后的可取消等待窗口（测试用）
func (b *BatchRunner) SetGraceWindow(d time.Duration) {
	b.graceWindow = d
}

// Phase 当前阶段
func (b *BatchRunner) Phase() Phase { return b.phase }

// Run 执行整个批次并返回汇总。
// 空批次直接返回空汇总，不触碰台账与健康检查。
func (b *BatchRunner) Run(ctx context.Context, tasks []model.TaskSpec) *Summary {
	log := logger.WithRunID(b.runID)
	start := time.Now()

	summary := &Summary{RunID: b.runID, Mode: b.mode}
	if len(tasks) == 0 {
		b.phase = PhaseDone
		return summary
	}

	tasks = model.AssignSeq(tasks)
	log.Info().Int("tasks", len(tasks)).Str("mode", string(b.mode)).Msg("批次开始")

	// 健康检查：仅供参考，offline 只产生告警与一个可取消的等待窗口，从不硬阻塞
	b.phase = PhaseHealthChecking
	if b.checker != nil {
		statuses := b.checker.CheckAll(ctx)
		for name, st := range statuses {
			log.Info().Str("service", name).Str("status", string(st)).Msg("服务健康状态")
		}
		if offline := health.Offline(statuses); len(offline) > 0 {
			log.Warn().Strs("services", offline).
				Dur("grace", b.graceWindow).
				Msg("存在离线服务，等待窗口内可取消，之后继续执行")

			select {
			case <-ctx.Done():
				b.phase = PhaseDone
				summary.Cancelled = true
				summary.ElapsedSeconds = time.Since(start).Seconds()
				return summary
			case <-time.After(b.graceWindow):
			}
		}
	}

	// 分发：三种策略之一
	b.phase = PhaseDispatching
	var results []model.BatchResult
	switch b.mode {
	case ModeParallel:
		results = RunParallel(ctx, tasks, b.maxWorkers, b.exec.Run)
	case ModePriority:
		results = RunByPriority(ctx, tasks, b.groupParallel, b.maxWorkers, b.exec.Run)
	default: // ModeSequential
		for _, task := range tasks {
			if ctx.Err() != nil {
				results = append(results, cancelledResult(task, ctx))
				continue
			}
			results = append(results, b.exec.Run(ctx, task))
		}
	}

	// 汇总
	b.phase = PhaseSummarizing
	summary.Results = results
	summary.Cancelled = ctx.Err() != nil
	for _, r := range results {
		metrics.RecordTaskTerminal(string(b.mode), string(r.Status))
		if r.Status == model.TaskStatusSuccess {
			summary.Success++
		} else {
			summary.Failed++
		}
	}
	summary.ElapsedSeconds = time.Since(start).Seconds()

	b.logSummary(summary)
	b.phase = PhaseDone
	return summary
}

// logSummary 输出运行汇总：成功/失败计数、总耗时，以及每个失败任务的名称与错误预览
func (b *BatchRunner) logSummary(s *Summary) {
	log := logger.WithRunID(b.runID)

	log.Info().
		Int("success", s.Success).
		Int("failed", s.Failed).
		Float64("elapsed_sec", s.ElapsedSeconds).
		Bool("cancelled", s.Cancelled).
		Msg("批次完成")

	for _, r := range s.Results {
		if r.Status != model.TaskStatusFailed {
			continue
		}
		log.Error().
			Str("task", r.Task.Name()).
			Int("attempts", r.Attempts).
			Str("error", r.Preview).
			Msg("任务终态失败")
	}
}
