package runner

import (
	"context"
	"sort"

	"github.com/azhengyongqin/crewbatch/internal/model"
)

// RunByPriority 按优先级分组执行一批任务。
// - 按 EffectivePriority 分组；未指定优先级的任务落在哨兵分组，最后执行
// - 分组按数值严格升序执行：上一组所有任务到达终态之前，下一组不开始
// - 组内平级相同，平级内按入批顺序（Seq）作为既定的打破平局规则
// - parallelWithinGroup 为真且组内任务数 > 1 时交给 worker 池执行，
//   并行子结果在汇报边界重排回提交顺序；否则按原有相对顺序逐个执行
// - 空批次直接返回空结果，不触碰台账与健康检查
func RunByPriority(ctx context.Context, tasks []model.TaskSpec, parallelWithinGroup bool, maxWorkers int, run RunFunc) []model.BatchResult {
	if len(tasks) == 0 {
		return nil
	}

	// 分组（保持组内入批顺序）
	groups := map[int][]model.TaskSpec{}
	var priorities []int
	for _, task := range tasks {
		p := task.EffectivePriority()
		if _, ok := groups[p]; !ok {
			priorities = append(priorities, p)
		}
		groups[p] = append(groups[p], task)
	}
	sort.Ints(priorities)

	out := make([]model.BatchResult, 0, len(tasks))
	for _, p := range priorities {
		group := groups[p]

		if parallelWithinGroup && len(group) > 1 && maxWorkers > 1 {
			results := RunParallel(ctx, group, maxWorkers, run)
			SortBySeq(results)
			out = append(out, results...)
			continue
		}

		// 顺序执行（单任务分组或禁用组内并行）
		for _, task := range group {
			if ctx.Err() != nil {
				out = append(out, cancelledResult(task, ctx))
				continue
			}
			out = append(out, run(ctx, task))
		}
	}
	return out
}
