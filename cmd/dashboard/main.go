package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"

	"github.com/azhengyongqin/crewbatch/internal/config"
	"github.com/azhengyongqin/crewbatch/internal/events"
	"github.com/azhengyongqin/crewbatch/internal/health"
	"github.com/azhengyongqin/crewbatch/internal/logger"
	"github.com/azhengyongqin/crewbatch/internal/repository"
	httpserver "github.com/azhengyongqin/crewbatch/internal/server"
	"github.com/azhengyongqin/crewbatch/internal/storage/postgres"
)

// 仪表盘：独立进程提供只读 HTTP API，观察台账、归档与服务健康状态。
// 批处理器本身不监听端口，两者通过台账文件与可选的 Postgres/Redis 共享数据。

func main() {
	_ = godotenv.Load()

	var (
		flagAddr       = pflag.String("addr", "", "HTTP 监听地址（缺省取 DASHBOARD_ADDR）")
		flagProduction = pflag.Bool("production", false, "生产模式日志（JSON 输出）")
	)
	pflag.Parse()

	if err := logger.Init(*flagProduction); err != nil {
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("加载配置失败")
	}
	if *flagAddr != "" {
		cfg.Dashboard.Addr = *flagAddr
	}

	// 确保 Redis 地址格式正确
	if cfg.Redis.URI != "" && !strings.HasPrefix(cfg.Redis.URI, "redis://") && !strings.HasPrefix(cfg.Redis.URI, "rediss://") {
		cfg.Redis.URI = "redis://" + cfg.Redis.URI + "/0"
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 健康检查器：与批处理器观察同一组服务
	checker := health.NewChecker(cfg.Health.ProbeTimeout)
	checker.RegisterHTTP("nim", cfg.Health.NIMBaseURL, "/v1/models")
	checker.RegisterHTTP("comfyui", cfg.Health.ComfyUIBaseURL, "/system_stats")
	checker.RegisterHTTP("code-crew", cfg.Crews.CodeBaseURL, "/healthz")
	checker.RegisterHTTP("asset-crew", cfg.Crews.AssetBaseURL, "/healthz")
	if cfg.Redis.URI != "" {
		checker.Register("redis", health.RedisProbe(cfg.Redis.URI))
	}

	deps := httpserver.Deps{
		LedgerPath:    cfg.Ledger.Path,
		HealthChecker: checker,
	}

	// 可选：Postgres 归档查询
	if cfg.Postgres.DSN != "" {
		pool, err := postgres.NewPool(ctx, cfg.Postgres.DSN)
		if err != nil {
			logger.Fatal().Err(err).Msg("创建归档连接池失败")
		}
		defer pool.Close()

		deps.Archive = repository.NewAttemptRepo(pool)
		checker.Register("postgres", health.PostgresProbe(pool))
		logger.Info().Msg("已启用 Postgres 归档查询")
	}

	// 可选：Redis 实时事件查询
	if cfg.Redis.URI != "" {
		mirror, err := events.NewMirror(cfg.Redis.URI)
		if err != nil {
			logger.Warn().Err(err).Msg("Redis 事件镜像不可用，跳过")
		} else {
			defer mirror.Close()
			deps.Mirror = mirror
		}
	}

	httpSrv := &http.Server{
		Addr:              cfg.Dashboard.Addr,
		Handler:           httpserver.NewRouter(deps),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info().Str("addr", cfg.Dashboard.Addr).Msg("仪表盘 HTTP 服务监听")
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("HTTP 服务错误")
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = httpSrv.Shutdown(shutdownCtx)
	logger.Info().Msg("仪表盘已优雅关闭")
}
