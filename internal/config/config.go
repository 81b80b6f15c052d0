package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config 应用配置。
// 说明：启动时构造一次，之后按引用传入各个构造函数，不作为全局可变状态访问。
type Config struct {
	Ledger    LedgerConfig
	Crews     CrewsConfig
	Health    HealthConfig
	Retry     RetryConfig
	Batch     BatchConfig
	Redis     RedisConfig
	Postgres  PostgresConfig
	Dashboard DashboardConfig
}

// LedgerConfig 执行台账配置
type LedgerConfig struct {
	Path string
}

// CrewsConfig 各 crew 后端服务配置
type CrewsConfig struct {
	CodeBaseURL      string
	CharacterBaseURL string
	AssetBaseURL     string
	Timeout          time.Duration
}

// HealthConfig 健康检查配置
type HealthConfig struct {
	NIMBaseURL     string
	ComfyUIBaseURL string
	ProbeTimeout   time.Duration
}

// RetryConfig 重试配置
type RetryConfig struct {
	MaxRetries int
	RetryDelay time.Duration
}

// BatchConfig 批处理配置
type BatchConfig struct {
	Mode          string // sequential / parallel / priority
	MaxWorkers    int
	GroupParallel bool
	TasksFile     string
}

// RedisConfig Redis 配置（可选，用于实时事件镜像）
type RedisConfig struct {
	URI string
}

// PostgresConfig PostgreSQL 配置（可选，用于尝试记录归档）
type PostgresConfig struct {
	DSN string
}

// DashboardConfig 仪表盘服务配置
type DashboardConfig struct {
	Addr string
}

// Load 加载配置
func Load() (*Config, error) {
	v := viper.New()

	// 设置配置文件名和路径
	v.SetConfigName(".env")
	v.SetConfigType("env")
	v.AddConfigPath(".")
	v.AddConfigPath("..")
	v.AddConfigPath("../..")

	// 允许从环境变量读取（优先级最高）
	v.AutomaticEnv()

	// 读取配置文件（如果存在）
	_ = v.ReadInConfig() // 忽略错误，因为可能只使用环境变量

	cfg := &Config{}

	// 台账配置
	cfg.Ledger.Path = v.GetString("LEDGER_PATH")
	if cfg.Ledger.Path == "" {
		cfg.Ledger.Path = "artifacts/batch_log.jsonl"
	}

	// Crew 后端配置
	cfg.Crews.CodeBaseURL = v.GetString("CODE_CREW_URL")
	if cfg.Crews.CodeBaseURL == "" {
		cfg.Crews.CodeBaseURL = "http://127.0.0.1:18080"
	}
	cfg.Crews.CharacterBaseURL = v.GetString("CHARACTER_CREW_URL")
	if cfg.Crews.CharacterBaseURL == "" {
		cfg.Crews.CharacterBaseURL = cfg.Crews.CodeBaseURL
	}
	cfg.Crews.AssetBaseURL = v.GetString("ASSET_CREW_URL")
	if cfg.Crews.AssetBaseURL == "" {
		cfg.Crews.AssetBaseURL = "http://127.0.0.1:18081"
	}
	cfg.Crews.Timeout = v.GetDuration("CREW_TIMEOUT")
	if cfg.Crews.Timeout == 0 {
		// crew 内部是多步 LLM 流水线，单次调用可能很长
		cfg.Crews.Timeout = 30 * time.Minute
	}

	// 健康检查配置
	cfg.Health.NIMBaseURL = v.GetString("NIM_BASE_URL")
	if cfg.Health.NIMBaseURL == "" {
		cfg.Health.NIMBaseURL = "http://localhost:11434"
	}
	cfg.Health.ComfyUIBaseURL = v.GetString("COMFYUI_BASE_URL")
	if cfg.Health.ComfyUIBaseURL == "" {
		cfg.Health.ComfyUIBaseURL = "http://127.0.0.1:8000"
	}
	cfg.Health.ProbeTimeout = v.GetDuration("HEALTH_PROBE_TIMEOUT")
	if cfg.Health.ProbeTimeout == 0 {
		cfg.Health.ProbeTimeout = 5 * time.Second
	}

	// 重试配置
	cfg.Retry.MaxRetries = v.GetInt("MAX_RETRIES")
	if cfg.Retry.MaxRetries <= 0 {
		cfg.Retry.MaxRetries = 3
	}
	cfg.Retry.RetryDelay = v.GetDuration("RETRY_DELAY")
	if cfg.Retry.RetryDelay == 0 {
		cfg.Retry.RetryDelay = 5 * time.Second
	}

	// 批处理配置
	cfg.Batch.Mode = v.GetString("BATCH_MODE")
	if cfg.Batch.Mode == "" {
		cfg.Batch.Mode = "priority"
	}
	cfg.Batch.MaxWorkers = v.GetInt("MAX_WORKERS")
	if cfg.Batch.MaxWorkers <= 0 {
		cfg.Batch.MaxWorkers = 2
	}
	cfg.Batch.GroupParallel = true
	if v.IsSet("GROUP_PARALLEL") {
		cfg.Batch.GroupParallel = v.GetBool("GROUP_PARALLEL")
	}
	cfg.Batch.TasksFile = v.GetString("TASKS_FILE")

	// Redis 配置（可选）
	cfg.Redis.URI = v.GetString("REDIS_ADDR")

	// PostgreSQL 配置（可选）
	cfg.Postgres.DSN = v.GetString("POSTGRES_DSN")

	// 仪表盘配置
	cfg.Dashboard.Addr = v.GetString("DASHBOARD_ADDR")
	if cfg.Dashboard.Addr == "" {
		cfg.Dashboard.Addr = ":28090"
	}

	return cfg, nil
}

// Validate 验证配置
func (c *Config) Validate() error {
	if c.Ledger.Path == "" {
		return fmt.Errorf("ledger path is required")
	}
	switch c.Batch.Mode {
	case "sequential", "parallel", "priority":
	default:
		return fmt.Errorf("invalid batch mode %q (must be sequential/parallel/priority)", c.Batch.Mode)
	}
	if c.Retry.MaxRetries < 1 {
		return fmt.Errorf("max retries must be >= 1")
	}
	if c.Retry.RetryDelay < 0 {
		return fmt.Errorf("retry delay must be >= 0")
	}
	if c.Batch.MaxWorkers < 1 {
		return fmt.Errorf("max workers must be >= 1")
	}
	return nil
}
