package runner

import (
	"context"
	"sort"
	"sync"

	"github.com/azhengyongqin/crewbatch/internal/model"
)

// RunFunc 把单个任务执行到终态（通常是 Executor.Run）
type RunFunc func(ctx context.Context, task model.TaskSpec) model.BatchResult

// RunParallel 用固定大小的 worker 池并行执行一批互不依赖的任务。
// - 恰好 maxWorkers 个并发 worker；超出池大小的任务排队等待空位
// - 池内不看优先级，所有提交的任务是平级的
// - 单个任务重试耗尽的失败不会取消或阻塞兄弟任务
// - 返回顺序 = 完成顺序（不是提交顺序）；需要提交顺序的调用方自行按 Seq 重排
// - 上下文取消后立即停止投放新任务，在途 worker 排空后才返回，
//   保证已开始的尝试完整写完台账记录；未投放的任务以 0 次尝试的 failed 结果占位，
//   结果条数在任何情况下都等于提交条数
func RunParallel(ctx context.Context, tasks []model.TaskSpec, maxWorkers int, run RunFunc) []model.BatchResult {
	if len(tasks) == 0 {
		return nil
	}
	if maxWorkers < 1 {
		maxWorkers = 1
	}

	taskCh := make(chan model.TaskSpec)
	results := make(chan model.BatchResult, len(tasks))

	var wg sync.WaitGroup
	for i := 0; i < maxWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for task := range taskCh {
				results <- run(ctx, task)
			}
		}()
	}

	// 调度循环：取消后剩余任务不再投放
dispatch:
	for i, task := range tasks {
		select {
		case taskCh <- task:
		case <-ctx.Done():
			for _, rest := range tasks[i:] {
				results <- cancelledResult(rest, ctx)
			}
			break dispatch
		}
	}
	close(taskCh)

	// 排空在途 worker
	wg.Wait()
	close(results)

	out := make([]model.BatchResult, 0, len(tasks))
	for r := range results {
		out = append(out, r)
	}
	return out
}

// cancelledResult 未被调度即取消的任务占位结果（0 次尝试，不写台账）
func cancelledResult(task model.TaskSpec, ctx context.Context) model.BatchResult {
	return model.BatchResult{
		Task:     task,
		Status:   model.TaskStatusFailed,
		Attempts: 0,
		Preview:  model.TruncatePreview(ctx.Err().Error()),
	}
}

// SortBySeq 把完成顺序的结果重排回提交顺序（汇报边界用）
func SortBySeq(results []model.BatchResult) {
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Task.Seq < results[j].Task.Seq
	})
}
