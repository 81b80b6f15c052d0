package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"

	"github.com/azhengyongqin/crewbatch/internal/config"
	"github.com/azhengyongqin/crewbatch/internal/crews"
	"github.com/azhengyongqin/crewbatch/internal/dispatch"
	"github.com/azhengyongqin/crewbatch/internal/events"
	"github.com/azhengyongqin/crewbatch/internal/health"
	"github.com/azhengyongqin/crewbatch/internal/ledger"
	"github.com/azhengyongqin/crewbatch/internal/logger"
	"github.com/azhengyongqin/crewbatch/internal/model"
	"github.com/azhengyongqin/crewbatch/internal/repository"
	"github.com/azhengyongqin/crewbatch/internal/runner"
	"github.com/azhengyongqin/crewbatch/internal/storage/postgres"
)

// defaultTasks 默认任务批：两个角色脚本 + 四个核心系统脚本
var defaultTasks = []model.TaskSpec{
	{Kind: model.TaskKindCharacter, Payload: "Scorpion", Priority: 1},
	{Kind: model.TaskKindCharacter, Payload: "SubZero", Priority: 1},
	{Kind: model.TaskKindCode, Payload: "Create NinjaBase.cs - abstract base class for Scorpion/SubZero with shared animations", Priority: 2},
	{Kind: model.TaskKindCode, Payload: "Create RoundManager.cs - handles round state, timer, win conditions", Priority: 2},
	{Kind: model.TaskKindCode, Payload: "Create HealthUI.cs - health bar display with damage flash effects", Priority: 3},
	{Kind: model.TaskKindCode, Payload: "Create InputManager.cs - unified input handling for P1/P2", Priority: 3},
}

// 退出码：0 全部成功；1 存在终态失败；130 被信号中断
const (
	exitOK          = 0
	exitFailed      = 1
	exitInterrupted = 130
)

func main() {
	os.Exit(run())
}

func run() int {
	// .env 里的配置项提升为环境变量（已存在的不覆盖）
	_ = godotenv.Load()

	// 命令行参数：覆盖环境变量与默认值
	var (
		flagMode            = pflag.String("mode", "", "执行策略: sequential/parallel/priority")
		flagNoGroupParallel = pflag.Bool("no-group-parallel", false, "优先级模式下禁用组内并行")
		flagMaxRetries      = pflag.Int("max-retries", 0, "每个任务的最大尝试次数")
		flagRetryDelay      = pflag.Duration("retry-delay", 0, "重试之间的固定等待间隔")
		flagMaxWorkers      = pflag.Int("max-workers", 0, "并行 worker 池大小")
		flagTasks           = pflag.String("tasks", "", "任务批 JSON 文件路径（缺省使用内置任务批）")
		flagCheck           = pflag.Bool("check", false, "只执行健康检查后退出")
		flagProduction      = pflag.Bool("production", false, "生产模式日志（JSON 输出）")
	)
	pflag.Parse()

	if err := logger.Init(*flagProduction); err != nil {
		fmt.Fprintf(os.Stderr, "初始化日志失败: %v\n", err)
		return exitFailed
	}

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("加载配置失败")
	}
	applyFlags(cfg, *flagMode, *flagNoGroupParallel, *flagMaxRetries, *flagRetryDelay, *flagMaxWorkers, *flagTasks)

	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("配置验证失败")
	}

	// 确保 Redis 地址格式正确
	if cfg.Redis.URI != "" && !strings.HasPrefix(cfg.Redis.URI, "redis://") && !strings.HasPrefix(cfg.Redis.URI, "rediss://") {
		cfg.Redis.URI = "redis://" + cfg.Redis.URI + "/0"
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 健康检查器：crew 后端 + 生成链路依赖的本地服务
	checker := health.NewChecker(cfg.Health.ProbeTimeout)
	checker.RegisterHTTP("nim", cfg.Health.NIMBaseURL, "/v1/models")
	checker.RegisterHTTP("comfyui", cfg.Health.ComfyUIBaseURL, "/system_stats")
	if cfg.Redis.URI != "" {
		checker.Register("redis", health.RedisProbe(cfg.Redis.URI))
	}

	if *flagCheck {
		return runCheck(ctx, checker)
	}

	tasks := defaultTasks
	if cfg.Batch.TasksFile != "" {
		tasks, err = loadTasks(cfg.Batch.TasksFile)
		if err != nil {
			logger.Fatal().Err(err).Str("file", cfg.Batch.TasksFile).Msg("加载任务批失败")
		}
	}

	// 台账：唯一的审计事实来源
	l, err := ledger.Open(cfg.Ledger.Path)
	if err != nil {
		logger.Fatal().Err(err).Str("path", cfg.Ledger.Path).Msg("打开台账失败")
	}
	defer l.Close()

	runID := runner.NewRunID()

	// crew 后端客户端
	dispatcher := dispatch.New(
		crews.NewCodeCrew(cfg.Crews.CodeBaseURL, cfg.Crews.Timeout),
		crews.NewCharacterCrew(cfg.Crews.CharacterBaseURL, cfg.Crews.Timeout),
		crews.NewAssetCrew(cfg.Crews.AssetBaseURL, cfg.Crews.Timeout),
	)

	exec := runner.NewExecutor(dispatcher, l, cfg.Retry.MaxRetries, cfg.Retry.RetryDelay, runID)

	// 可选落点：Postgres 归档 + Redis 事件镜像
	onAttempt := wireOptionalSinks(ctx, cfg)
	if onAttempt != nil {
		exec.OnAttempt(onAttempt)
	}

	mode, err := runner.ParseMode(cfg.Batch.Mode)
	if err != nil {
		logger.Fatal().Err(err).Msg("解析执行策略失败")
	}

	batch := runner.NewBatchRunner(exec, checker, mode, cfg.Batch.MaxWorkers, cfg.Batch.GroupParallel)
	summary := batch.Run(ctx, tasks)

	if summary.Cancelled {
		return exitInterrupted
	}
	if summary.Failed > 0 {
		return exitFailed
	}
	return exitOK
}

// applyFlags 命令行参数覆盖配置
func applyFlags(cfg *config.Config, mode string, noGroupParallel bool, maxRetries int, retryDelay time.Duration, maxWorkers int, tasksFile string) {
	if mode != "" {
		cfg.Batch.Mode = mode
	}
	if noGroupParallel {
		cfg.Batch.GroupParallel = false
	}
	if maxRetries > 0 {
		cfg.Retry.MaxRetries = maxRetries
	}
	if retryDelay > 0 {
		cfg.Retry.RetryDelay = retryDelay
	}
	if maxWorkers > 0 {
		cfg.Batch.MaxWorkers = maxWorkers
	}
	if tasksFile != "" {
		cfg.Batch.TasksFile = tasksFile
	}
}

// runCheck 只执行健康检查并打印结果，存在离线服务时退出码为 1
func runCheck(ctx context.Context, checker *health.Checker) int {
	statuses := checker.CheckAll(ctx)
	for name, st := range statuses {
		logger.Info().Str("service", name).Str("status", string(st)).Msg("服务健康状态")
	}
	if len(health.Offline(statuses)) > 0 {
		return exitFailed
	}
	return exitOK
}

// loadTasks 从 JSON 文件加载任务批。
// 文件格式与台账记录的任务字段一致：[{"crew":"code","task":"...","priority":1}, ...]
func loadTasks(path string) ([]model.TaskSpec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read tasks file: %w", err)
	}

	var tasks []model.TaskSpec
	if err := json.Unmarshal(data, &tasks); err != nil {
		return nil, fmt.Errorf("parse tasks file: %w", err)
	}

	for i, t := range tasks {
		if !t.Kind.Valid() {
			return nil, fmt.Errorf("task %d: unknown crew %q", i+1, t.Kind)
		}
	}
	return tasks, nil
}

// wireOptionalSinks 接通可选的归档与事件镜像落点，返回合并后的尝试回调。
// 两个落点都未配置时返回 nil。
func wireOptionalSinks(ctx context.Context, cfg *config.Config) func(context.Context, model.Attempt) {
	var sinks []func(context.Context, model.Attempt)

	if cfg.Postgres.DSN != "" {
		db, err := postgres.NewDB(ctx, cfg.Postgres.DSN)
		if err != nil {
			logger.Fatal().Err(err).Msg("连接归档数据库失败")
		}
		if err := repository.Migrate(db.DB); err != nil {
			logger.Fatal().Err(err).Msg("归档表迁移失败")
		}

		pool, err := postgres.NewPool(ctx, cfg.Postgres.DSN)
		if err != nil {
			logger.Fatal().Err(err).Msg("创建归档连接池失败")
		}
		archive := repository.NewAttemptRepo(pool)

		sinks = append(sinks, func(ctx context.Context, a model.Attempt) {
			if err := archive.InsertAttempt(ctx, a); err != nil {
				logger.Warn().Err(err).Int64("seq", a.Seq).Msg("尝试记录归档失败")
			}
		})
		logger.Info().Msg("已启用 Postgres 归档")
	}

	if cfg.Redis.URI != "" {
		mirror, err := events.NewMirror(cfg.Redis.URI)
		if err != nil {
			logger.Warn().Err(err).Msg("Redis 事件镜像不可用，跳过")
		} else {
			sinks = append(sinks, mirror.Callback())
			logger.Info().Msg("已启用 Redis 事件镜像")
		}
	}

	if len(sinks) == 0 {
		return nil
	}
	return func(ctx context.Context, a model.Attempt) {
		for _, sink := range sinks {
			sink(ctx, a)
		}
	}
}
