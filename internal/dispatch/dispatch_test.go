package dispatch

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/azhengyongqin/crewbatch/internal/model"
)

// capFunc 测试用 capability
type capFunc func(ctx context.Context, payload string) (string, error)

func (f capFunc) Execute(ctx context.Context, payload string) (string, error) {
	return f(ctx, payload)
}

func TestDispatchRoutesByKind(t *testing.T) {
	d := New(
		capFunc(func(ctx context.Context, p string) (string, error) { return "code:" + p, nil }),
		capFunc(func(ctx context.Context, p string) (string, error) { return "character:" + p, nil }),
		capFunc(func(ctx context.Context, p string) (string, error) { return "asset:" + p, nil }),
	)

	tests := []struct {
		kind model.TaskKind
		want string
	}{
		{model.TaskKindCode, "code:x"},
		{model.TaskKindCharacter, "character:x"},
		{model.TaskKindAsset, "asset:x"},
	}

	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			got, err := d.Dispatch(context.Background(), tt.kind, "x")
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDispatchUnknownKind(t *testing.T) {
	d := New(nil, nil, nil)

	_, err := d.Dispatch(context.Background(), model.TaskKind("mk1"), "Scorpion")
	require.Error(t, err)
	assert.ErrorIs(t, err, model.ErrUnknownTaskKind)
}

func TestDispatchMissingCapability(t *testing.T) {
	// 类型合法但未注册 capability，同样按配置错误处理
	d := New(nil, nil, nil)

	_, err := d.Dispatch(context.Background(), model.TaskKindCode, "x")
	require.Error(t, err)
	assert.ErrorIs(t, err, model.ErrUnknownTaskKind)
}

func TestDispatchPropagatesCapabilityError(t *testing.T) {
	boom := errors.New("crew pipeline crashed")
	d := New(
		capFunc(func(ctx context.Context, p string) (string, error) { return "", boom }),
		nil, nil,
	)

	_, err := d.Dispatch(context.Background(), model.TaskKindCode, "x")
	assert.ErrorIs(t, err, boom, "capability 错误应原样上抛")
}
