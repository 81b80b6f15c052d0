package model

import (
	"errors"
	"fmt"
)

// TaskKind 任务类型（封闭集合）。
// 约定：
// - code: 代码生成 crew（Architect → Implementer → Build Sentinel → Reviewer）
// - character: 角色脚本生成 crew
// - asset: 素材生成 crew（Art Director → Generator → QC → Cataloger）
// 新增类型必须同时扩展 Dispatcher 的穷举分发，否则无法路由。
type TaskKind string

const (
	TaskKindCode      TaskKind = "code"
	TaskKindCharacter TaskKind = "character"
	TaskKindAsset     TaskKind = "asset"
)

// ErrUnknownTaskKind 未注册的任务类型。属于配置错误，不重试。
var ErrUnknownTaskKind = errors.New("unknown task kind")

// Kinds 返回全部合法任务类型（固定顺序）
func Kinds() []TaskKind {
	return []TaskKind{TaskKindCode, TaskKindCharacter, TaskKindAsset}
}

func (k TaskKind) Valid() bool {
	switch k {
	case TaskKindCode, TaskKindCharacter, TaskKindAsset:
		return true
	default:
		return false
	}
}

func (k TaskKind) String() string { return string(k) }

// ParseKind 解析任务类型字符串
func ParseKind(s string) (TaskKind, error) {
	k := TaskKind(s)
	if !k.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownTaskKind, s)
	}
	return k, nil
}
