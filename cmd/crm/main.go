package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/boddenberg/crm-farol-bfa/internal/config"
	"github.com/boddenberg/crm-farol-bfa/internal/domain"
	"github.com/boddenberg/crm-farol-bfa/internal/handler"
	"github.com/boddenberg/crm-farol-bfa/internal/infra/cache"
	"github.com/boddenberg/crm-farol-bfa/internal/infra/observability"
	"github.com/boddenberg/crm-farol-bfa/internal/infra/resilience"
	"github.com/boddenberg/crm-farol-bfa/internal/infra/supabase"
	"github.com/boddenberg/crm-farol-bfa/internal/port"
	"github.com/boddenberg/crm-farol-bfa/internal/service"

	"go.uber.org/zap"
)

func main() {
	// --- Load .env files (for local development); .env.local wins ---
	if err := config.LoadDotEnv(".env.local", ".env"); err != nil {
		fmt.Fprintf(os.Stderr, "invalid env file: %v\n", err)
		os.Exit(1)
	}

	// --- Config ---
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}

	// --- Logger ---
	logger := observability.NewLogger(cfg.LogLevel)
	defer logger.Sync()

	logger.Info("configuration loaded",
		zap.Int("port", cfg.Port),
		zap.String("log_level", cfg.LogLevel),
		zap.Bool("supabase_configured", cfg.SupabaseConfigured()),
		zap.Bool("local_jwt_verification", cfg.SupabaseJWTSecret != ""),
		zap.Duration("http_timeout", cfg.HTTPTimeout),
		zap.Duration("cache_ttl", cfg.CacheTTL),
		zap.Int("max_retries", cfg.MaxRetries),
		zap.Duration("initial_backoff", cfg.InitialBackoff),
		zap.String("default_table", cfg.DefaultTable),
	)
	if !cfg.SupabaseConfigured() {
		logger.Warn("Supabase not configured, /api routes will answer 500",
			zap.String("missing", "SUPABASE_URL or SUPABASE_SERVICE_ROLE_KEY"),
		)
	}

	// --- Tracing ---
	shutdown, err := observability.InitTracer(cfg.OTLPEndpoint, "crm-farol-bfa")
	if err != nil {
		logger.Fatal("failed to init tracer", zap.Error(err))
	}
	defer shutdown(context.Background())

	// --- Metrics ---
	metrics := observability.NewMetrics()

	// --- Cache ---
	var profileCache port.Cache[*domain.Profile]
	if cfg.RedisURL != "" {
		rdb, err := cache.NewRedisClient(context.Background(), cfg.RedisURL)
		if err != nil {
			logger.Fatal("failed to connect to redis", zap.Error(err))
		}
		defer rdb.Close()
		profileCache = cache.NewRedis[*domain.Profile](rdb, "crm:", cfg.CacheTTL, logger)
		logger.Info("profile cache: redis")
	} else {
		mem := cache.New[*domain.Profile](cfg.CacheTTL)
		defer mem.Close()
		profileCache = mem
		logger.Info("profile cache: in-memory")
	}

	// --- Resilience ---
	resilienceCfg := resilience.Config{
		MaxRetries:     cfg.MaxRetries,
		InitialBackoff: cfg.InitialBackoff,
		MaxConcurrency: cfg.MaxConcurrency,
	}
	cb := resilience.NewCircuitBreaker("supabase", supabase.IsCallerError)

	// --- Supabase ---
	httpClient := &http.Client{Timeout: cfg.HTTPTimeout}
	sb := supabase.NewClient(httpClient, supabase.Options{
		BaseURL:           cfg.SupabaseURL,
		AnonKey:           cfg.SupabaseAnonKey,
		ServiceRoleKey:    cfg.SupabaseServiceKey,
		JWTSecret:         cfg.SupabaseJWTSecret,
		InviteRedirectURL: cfg.InviteRedirectURL,
	}, cb, resilienceCfg, logger)

	// --- Services ---
	profileSvc := service.NewProfileService(sb, sb, profileCache, metrics, logger)
	adminSvc := service.NewAdminService(sb, sb, sb, profileCache, cfg.DefaultTable, metrics, logger)
	clienteSvc := service.NewClienteService(sb, cfg.ExportMaxRows, metrics, logger)
	dashboardSvc := service.NewDashboardService(sb, sb, metrics, logger)

	// --- Router ---
	router := handler.NewRouter(handler.Deps{
		Profiles:       profileSvc,
		Admin:          adminSvc,
		Clientes:       clienteSvc,
		Dashboard:      dashboardSvc,
		Verifier:       sb,
		Backend:        sb,
		Configured:     cfg.SupabaseConfigured(),
		Metrics:        metrics,
		Logger:         logger,
		SessionCookie:  cfg.SessionCookie,
		AdminRateLimit: cfg.AdminRateLimit,
		AdminRateBurst: cfg.AdminRateBurst,
		CORSOrigins:    cfg.CORSOrigins,
	})

	// --- Server ---
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 120 * time.Second, // CSV exports stream for a while
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
