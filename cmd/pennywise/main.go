package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"pennywise/internal/cache"
	"pennywise/internal/cli"
	"pennywise/internal/config"
	apphttp "pennywise/internal/http"
	"pennywise/internal/log"
	"pennywise/internal/middleware/auth"
	"pennywise/internal/reconcile"
	"pennywise/internal/services"
)

func main() {
	cli.LoadEnvFile()

	cfg := config.Load()
	logger := cli.SetupLogger(cfg.LogLevel, log.ComponentApp)
	cfg = cli.LoadAndValidateConfig(logger)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	res := cli.InitBackend(ctx, logger, cfg)
	cancel()

	dashCfg := services.DefaultDashboardConfig()
	dashCfg.Options = cfg.ProgressOptions()
	dashCfg.ReadAttempts = cfg.ReadRetryAttempts
	dashCfg.CacheSize = cfg.CacheSize
	dashCfg.CacheTTL = cfg.CacheTTL
	dashboard := services.NewDashboardService(res.Store, dashCfg)

	cacheManager := cache.NewManager()
	cacheManager.Register(dashboard.Cache())
	cacheManager.StartCleanup(10 * time.Minute)

	// A nil *amqp.Client must not reach the interface.
	var publisher services.Publisher
	if res.Publisher != nil {
		publisher = res.Publisher
	}

	guard := reconcile.NewGuard(res.Store, cfg.ProgressOptions())
	finance := services.NewFinanceService(res.Store, guard, publisher, dashboard.Invalidate,
		logger.WithComponent(log.ComponentLedger))

	var authenticator auth.Authenticator
	switch cfg.AuthMode {
	case config.AuthModeHeader:
		logger.Warn("Header authentication enabled; use for local development only")
		authenticator = auth.Header{}
	default:
		authenticator = auth.NewJWT(cfg.AuthJWTSecret)
	}

	srv := apphttp.NewServer(":"+cfg.Port, apphttp.Deps{
		Finance:            finance,
		Dashboard:          dashboard,
		Guard:              guard,
		Store:              res.Store,
		Auth:               authenticator,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		Logger:             logger,
	})
	srv.MaxHeaderBytes = 1 << 16

	shutdownCtx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", "error", err)
		}
		cacheManager.Stop()
		if err := res.Cleanup(); err != nil {
			logger.Error("Backend cleanup error", "error", err)
		}
	})

	logger.Info("Starting pennywise server",
		"port", cfg.Port,
		"backend", cfg.DataBackend,
		"auth_mode", cfg.AuthMode,
		"events", publisher != nil)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		cli.Fatal(logger, "Server error", "error", err, "port", cfg.Port)
	}

	cli.WaitForShutdown(shutdownCtx, done)
	logger.Info("Server stopped gracefully")
}
