package runner

import (
	"context"
	"sync"

	"github.com/azhengyongqin/crewbatch/internal/dispatch"
	"github.com/azhengyongqin/crewbatch/internal/model"
)

// memSink 测试用内存台账
type memSink struct {
	mu      sync.Mutex
	records []model.Attempt
	failErr error
}

func (s *memSink) Append(a model.Attempt) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failErr != nil {
		return s.failErr
	}
	s.records = append(s.records, a)
	return nil
}

func (s *memSink) all() []model.Attempt {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Attempt, len(s.records))
	copy(out, s.records)
	return out
}

// bySeq 按任务序号过滤记录
func (s *memSink) bySeq(seq int64) []model.Attempt {
	var out []model.Attempt
	for _, a := range s.all() {
		if a.Seq == seq {
			out = append(out, a)
		}
	}
	return out
}

// capStub 测试用 capability
type capStub func(ctx context.Context, payload string) (string, error)

func (f capStub) Execute(ctx context.Context, payload string) (string, error) {
	return f(ctx, payload)
}

// okCap 总是成功
func okCap(result string) capStub {
	return func(ctx context.Context, payload string) (string, error) {
		return result, nil
	}
}

// failCap 总是失败
func failCap(err error) capStub {
	return func(ctx context.Context, payload string) (string, error) {
		return "", err
	}
}

// newDispatcher 三个类型用同一个 capability
func newDispatcher(c dispatch.Capability) *dispatch.Dispatcher {
	return dispatch.New(c, c, c)
}
