package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// 尝试指标
	AttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crewbatch_attempts_total",
			Help: "Total number of task execution attempts",
		},
		[]string{"crew", "status"},
	)

	RetriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crewbatch_retries_total",
			Help: "Total number of retried attempts",
		},
		[]string{"crew"},
	)

	AttemptDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "crewbatch_attempt_duration_seconds",
			Help:    "Task attempt duration in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300, 600},
		},
		[]string{"crew"},
	)

	// 批次指标
	BatchTasksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crewbatch_batch_tasks_total",
			Help: "Total number of tasks reaching a terminal status",
		},
		[]string{"mode", "status"},
	)

	// 台账指标
	LedgerWriteErrorsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "crewbatch_ledger_write_errors_total",
			Help: "Total number of ledger append failures",
		},
	)

	// 服务健康指标
	ServiceUp = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "crewbatch_service_up",
			Help: "Service health status (1=online, 0.5=degraded, 0=offline)",
		},
		[]string{"service"},
	)

	// HTTP 请求指标（仪表盘）
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crewbatch_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "crewbatch_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)
)

// RecordAttempt 记录一次执行尝试
func RecordAttempt(crew, status string, duration float64) {
	AttemptsTotal.WithLabelValues(crew, status).Inc()
	if duration > 0 {
		AttemptDuration.WithLabelValues(crew).Observe(duration)
	}
}

// RecordRetry 记录一次重试
func RecordRetry(crew string) {
	RetriesTotal.WithLabelValues(crew).Inc()
}

// RecordTaskTerminal 记录任务到达终态
func RecordTaskTerminal(mode, status string) {
	BatchTasksTotal.WithLabelValues(mode, status).Inc()
}

// RecordLedgerWriteError 记录台账写入失败
func RecordLedgerWriteError() {
	LedgerWriteErrorsTotal.Inc()
}

// UpdateServiceStatus 更新服务健康度
func UpdateServiceStatus(service string, up float64) {
	ServiceUp.WithLabelValues(service).Set(up)
}

// RecordHTTPRequest 记录 HTTP 请求
func RecordHTTPRequest(method, path string, status int, duration float64) {
	HTTPRequestsTotal.WithLabelValues(method, path, statusClass(status)).Inc()
	HTTPRequestDuration.WithLabelValues(method, path).Observe(duration)
}

// statusClass 将 HTTP 状态码转为类别
func statusClass(status int) string {
	switch {
	case status >= 200 && status < 300:
		return "2xx"
	case status >= 300 && status < 400:
		return "3xx"
	case status >= 400 && status < 500:
		return "4xx"
	case status >= 500:
		return "5xx"
	default:
		return "unknown"
	}
}
