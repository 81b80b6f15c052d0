package dispatch

import (
	"context"
	"fmt"

	"github.com/azhengyongqin/crewbatch/internal/model"
)

// Capability 外部协作方：真正执行任务体的后端。
// 对核心完全不透明、同步调用；任何非成功结果都是一个普通错误值，不做类型细分。
type Capability interface {
	Execute(ctx context.Context, payload string) (string, error)
}

// Dispatcher 纯路由表：按任务类型穷举分发到对应 capability。
// 不含重试与并行逻辑，那些由外层的重试执行器与调度器负责。
type Dispatcher struct {
	code      Capability
	character Capability
	asset     Capability
}

// New 创建 Dispatcher。任务类型集合是封闭的，三个 capability 一一对应。
func New(code, character, asset Capability) *Dispatcher {
	return &Dispatcher{
		code:      code,
		character: character,
		asset:     asset,
	}
}

// Dispatch 按类型路由一次执行。
// 未注册的类型返回 ErrUnknownTaskKind：结构性非法请求，重试不可能成功，立即上抛。
func (d *Dispatcher) Dispatch(ctx context.Context, kind model.TaskKind, payload string) (string, error) {
	var c Capability
	switch kind {
	case model.TaskKindCode:
		c = d.code
	case model.TaskKindCharacter:
		c = d.character
	case model.TaskKindAsset:
		c = d.asset
	default:
		return "", fmt.Errorf("%w: %q", model.ErrUnknownTaskKind, kind)
	}

	if c == nil {
		return "", fmt.Errorf("%w: no capability registered for %q", model.ErrUnknownTaskKind, kind)
	}
	return c.Execute(ctx, payload)
}
