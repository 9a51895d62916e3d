package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gtaquino-automatelabs/proativo-sub000/internal/config"
	"github.com/gtaquino-automatelabs/proativo-sub000/internal/handler"
	"github.com/gtaquino-automatelabs/proativo-sub000/internal/infra/client"
	"github.com/gtaquino-automatelabs/proativo-sub000/internal/infra/observability"
	"github.com/gtaquino-automatelabs/proativo-sub000/internal/infra/resilience"
	"github.com/gtaquino-automatelabs/proativo-sub000/internal/port"
	"github.com/gtaquino-automatelabs/proativo-sub000/internal/service"

	"go.uber.org/zap"
)

func main() {
	// --- Load .env file (for local development) ---
	_ = config.LoadDotEnv(".env")

	// --- Config ---
	cfg := config.Load()

	// --- Logger ---
	logger := observability.NewLogger(cfg.LogLevel)
	defer logger.Sync()

	logger.Info("configuration loaded",
		zap.Int("port", cfg.Port),
		zap.String("log_level", cfg.LogLevel),
		zap.Bool("use_generative_sql", cfg.UseGenerativeSQL),
		zap.Bool("adaptive_routing", cfg.AdaptiveRouting),
		zap.Int("failure_threshold", cfg.FailureThreshold),
		zap.Duration("cooldown", cfg.CooldownDuration),
		zap.Duration("health_check_interval", cfg.HealthCheckInterval),
		zap.Duration("generate_timeout", cfg.GenerateTimeout),
	)

	// --- Tracing ---
	shutdown, err := observability.InitTracer(cfg.OTLPEndpoint, "proativo-query-router")
	if err != nil {
		logger.Warn("tracing disabled", zap.Error(err))
	} else {
		defer shutdown(context.Background())
	}

	// --- Metrics ---
	metrics := observability.NewMetrics()

	// --- Outbound clients ---
	httpClient := &http.Client{Timeout: cfg.HTTPTimeout}
	resilienceCfg := resilience.Config{
		MaxRetries:     cfg.MaxRetries,
		InitialBackoff: cfg.InitialBackoff,
		MaxConcurrency: cfg.MaxConcurrency,
	}

	generator := client.NewGeneratorClient(
		httpClient,
		cfg.SQLGeneratorURL,
		cfg.SQLGeneratorAPIKey,
		resilience.NewCircuitBreaker("sql-generator"),
		resilienceCfg,
	)
	rules := client.NewRulesClient(
		httpClient,
		cfg.RuleProcessorURL,
		resilience.NewCircuitBreaker("rule-processor"),
		resilienceCfg,
	)

	var runner port.SQLRunner
	if cfg.QueryAPIURL != "" {
		runner = client.NewQueryAPIClient(httpClient, cfg.QueryAPIURL)
		logger.Info("query API enabled", zap.String("url", cfg.QueryAPIURL))
	} else {
		logger.Info("query API not configured; responses carry SQL only")
	}

	// --- Routing services ---
	breaker := service.NewBreaker(service.BreakerConfig{
		FailureThreshold: cfg.FailureThreshold,
		Cooldown:         cfg.CooldownDuration,
		CheckInterval:    cfg.HealthCheckInterval,
		ProbeTimeout:     cfg.HealthCheckTimeout,
		AlertRatio:       cfg.FallbackAlertRatio,
		AlertCooldown:    cfg.AlertCooldown,
	}, generator, metrics, logger)
	defer breaker.Close()

	outcomes := service.NewOutcomeAggregator(metrics)
	adaptive := service.NewAdaptiveEngine(outcomes, service.DefaultScoreWeights(), logger)
	fallback := service.NewFallbackGenerator(metrics, logger)

	routerSvc := service.NewRouter(
		service.RouterConfig{
			UseGenerativeSQL: cfg.UseGenerativeSQL,
			AdaptiveRouting:  cfg.AdaptiveRouting,
			HasCredentials:   cfg.SQLGeneratorAPIKey != "",
			GenerateTimeout:  cfg.GenerateTimeout,
			MinConfidence:    cfg.MinConfidence,
		},
		generator,
		rules,
		runner,
		breaker,
		adaptive,
		outcomes,
		fallback,
		metrics,
		logger,
	)

	authSvc := service.NewAdminAuth(cfg.AdminKeyHash, cfg.JWTSecret, cfg.JWTAccessTTL, logger)
	if !authSvc.Enabled() {
		logger.Warn("admin API disabled: ADMIN_KEY_HASH not set")
	}

	// --- Router ---
	router := handler.NewRouter(routerSvc, authSvc, metrics, logger)

	// --- Server ---
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// --- Graceful shutdown ---
	go func() {
		logger.Info("server starting", zap.Int("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("server shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatal("server forced shutdown", zap.Error(err))
	}

	logger.Info("server stopped")
}
