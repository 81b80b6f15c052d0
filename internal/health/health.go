package health

import (
	"context"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/azhengyongqin/crewbatch/internal/metrics"
)

// Status 服务健康状态。每次检查现算，不跨调用缓存。
type Status string

const (
	StatusOnline   Status = "online"
	StatusDegraded Status = "degraded"
	StatusOffline  Status = "offline"
)

// gaugeValue 转为监控指标值
func (s Status) gaugeValue() float64 {
	switch s {
	case StatusOnline:
		return 1
	case StatusDegraded:
		return 0.5
	default:
		return 0
	}
}

// ProbeFunc 单个服务的探测函数。
// 返回值即该服务本次的状态；探测函数自身不允许返回错误，
// 健康检查只提供参考信息，永远不会升级为异常。
type ProbeFunc func(ctx context.Context) Status

// Checker 健康检查器：维护命名服务注册表，逐个探测并汇总状态
type Checker struct {
	mu      sync.RWMutex
	probes  map[string]ProbeFunc
	timeout time.Duration
}

// NewChecker 创建健康检查器
func NewChecker(probeTimeout time.Duration) *Checker {
	if probeTimeout <= 0 {
		probeTimeout = 5 * time.Second
	}
	return &Checker{
		probes:  map[string]ProbeFunc{},
		timeout: probeTimeout,
	}
}

// Register 注册命名服务的探测函数
func (c *Checker) Register(name string, probe ProbeFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.probes[name] = probe
}

// RegisterHTTP 注册 HTTP 探测：GET baseURL+path。
// 分类规则：超时或传输错误 → offline；非 2xx → degraded（服务在但报告不健康）；2xx → online。
func (c *Checker) RegisterHTTP(name, baseURL, path string) {
	url := strings.TrimRight(baseURL, "/") + path
	client := &http.Client{Timeout: c.timeout}

	c.Register(name, func(ctx context.Context) Status {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return StatusOffline
		}
		resp, err := client.Do(req)
		if err != nil {
			return StatusOffline
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return StatusOnline
		}
		return StatusDegraded
	})
}

// Services 返回已注册服务名（排序后）
func (c *Checker) Services() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]string, 0, len(c.probes))
	for name := range c.probes {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// CheckAll 探测全部已注册服务，返回 服务名 → 状态。
// 每次调用重新探测；同样的服务状态下重复调用结果一致。
func (c *Checker) CheckAll(ctx context.Context) map[string]Status {
	c.mu.RLock()
	probes := make(map[string]ProbeFunc, len(c.probes))
	for name, p := range c.probes {
		probes[name] = p
	}
	c.mu.RUnlock()

	out := make(map[string]Status, len(probes))
	for name, probe := range probes {
		probeCtx, cancel := context.WithTimeout(ctx, c.timeout)
		status := probe(probeCtx)
		cancel()

		out[name] = status
		metrics.UpdateServiceStatus(name, status.gaugeValue())
	}
	return out
}

// Offline 从检查结果中筛出离线服务（排序后，告警输出用）
func Offline(statuses map[string]Status) []string {
	var out []string
	for name, st := range statuses {
		if st == StatusOffline {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

// RedisProbe 通过 Asynq Inspector 探测 Redis（尝试获取队列列表）
func RedisProbe(redisURI string) ProbeFunc {
	return func(ctx context.Context) Status {
		opt, err := asynq.ParseRedisURI(redisURI)
		if err != nil {
			return StatusOffline
		}
		inspector := asynq.NewInspector(opt)
		defer inspector.Close()

		if _, err := inspector.Queues(); err != nil {
			return StatusOffline
		}
		return StatusOnline
	}
}

// PostgresProbe 通过连接池 ping 探测 PostgreSQL
func PostgresProbe(pool *pgxpool.Pool) ProbeFunc {
	return func(ctx context.Context) Status {
		if pool == nil {
			return StatusOffline
		}
		if err := pool.Ping(ctx); err != nil {
			return StatusOffline
		}
		return StatusOnline
	}
}
