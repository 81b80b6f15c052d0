package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/azhengyongqin/crewbatch/internal/logger"
	"github.com/azhengyongqin/crewbatch/internal/model"
)

const (
	// AttemptChannel 尝试记录的实时发布频道
	AttemptChannel = "crewbatch:attempts"

	// recentKey 最近尝试记录的列表 key
	recentKey = "crewbatch:recent"

	// RecentCap 最近记录列表的容量上限
	RecentCap = 100
)

// Mirror 尝试记录的 Redis 实时镜像。
// 台账是唯一的审计事实来源；镜像只服务于在线观察（仪表盘、订阅者），
// 任何写入失败只记日志，不影响批次执行。
type Mirror struct {
	client *redis.Client
}

// NewMirror 创建 Redis 镜像客户端并验证连通性
func NewMirror(redisURI string) (*Mirror, error) {
	opts, err := redis.ParseURL(normalizeURI(redisURI))
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return &Mirror{client: client}, nil
}

// Close 关闭 Redis 连接
func (m *Mirror) Close() error {
	return m.client.Close()
}

// Publish 把一条尝试记录镜像到 Redis：
// PUBLISH 到实时频道，同时 LPUSH 进容量受限的最近记录列表。
func (m *Mirror) Publish(ctx context.Context, a model.Attempt) error {
	data, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("marshal attempt: %w", err)
	}

	pipe := m.client.Pipeline()
	pipe.Publish(ctx, AttemptChannel, data)
	pipe.LPush(ctx, recentKey, data)
	pipe.LTrim(ctx, recentKey, 0, RecentCap-1)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("mirror attempt: %w", err)
	}
	return nil
}

// Recent 返回最近 n 条尝试记录（新的在前）。
// 损坏的条目跳过，不中断读取。
func (m *Mirror) Recent(ctx context.Context, n int) ([]model.Attempt, error) {
	if n <= 0 || n > RecentCap {
		n = RecentCap
	}

	items, err := m.client.LRange(ctx, recentKey, 0, int64(n-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("read recent attempts: %w", err)
	}

	out := make([]model.Attempt, 0, len(items))
	for _, item := range items {
		var a model.Attempt
		if err := json.Unmarshal([]byte(item), &a); err != nil {
			continue
		}
		out = append(out, a)
	}
	return out, nil
}

// Callback 返回可挂到执行器上的尝试回调。
// 镜像失败只告警，绝不影响任务结果。
func (m *Mirror) Callback() func(ctx context.Context, a model.Attempt) {
	return func(ctx context.Context, a model.Attempt) {
		if err := m.Publish(ctx, a); err != nil {
			logger.Warn().Err(err).
				Int64("seq", a.Seq).
				Int("attempt", a.AttemptNumber).
				Msg("尝试记录镜像到 Redis 失败")
		}
	}
}

// normalizeURI 补全裸 host:port 形式的 Redis 地址
func normalizeURI(uri string) string {
	if strings.HasPrefix(uri, "redis://") || strings.HasPrefix(uri, "rediss://") {
		return uri
	}
	return "redis://" + uri + "/0"
}
