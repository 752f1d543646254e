package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // Register pgx as database/sql driver
	"github.com/kingmouse-ai/moat/internal/api"
	"github.com/kingmouse-ai/moat/internal/audit"
	"github.com/kingmouse-ai/moat/internal/auth"
	"github.com/kingmouse-ai/moat/internal/catalog"
	"github.com/kingmouse-ai/moat/internal/codepattern"
	"github.com/kingmouse-ai/moat/internal/config"
	"github.com/kingmouse-ai/moat/internal/guard"
	"github.com/kingmouse-ai/moat/internal/outputfilter"
	"github.com/kingmouse-ai/moat/internal/ratelimit"
	"github.com/kingmouse-ai/moat/internal/scan"
	"github.com/kingmouse-ai/moat/internal/storage"
	"github.com/kingmouse-ai/moat/internal/store"
	"github.com/kingmouse-ai/moat/internal/telemetry"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	cfg, err := config.Load(os.Getenv("MOAT_CONFIG"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	logger := mustBuildLogger(cfg.Telemetry.LogLevel)
	defer logger.Sync() //nolint:errcheck // best-effort flush

	logger.Info("starting moat server",
		zap.String("host", cfg.Server.Host),
		zap.Int("port", cfg.Server.Port),
		zap.Int("block_score", cfg.Guardrail.BlockScore),
		zap.Int("review_score", cfg.Guardrail.ReviewScore),
	)

	// Rule catalog — built-in tables unless a YAML override is configured
	cat := catalog.Default()
	if cfg.Catalog.Path != "" {
		loaded, err := catalog.Load(cfg.Catalog.Path)
		if err != nil {
			logger.Fatal("failed to load catalog", zap.String("path", cfg.Catalog.Path), zap.Error(err))
		}
		cat = loaded
		logger.Info("catalog loaded", zap.String("path", cfg.Catalog.Path), zap.String("version", cat.Version))
	}
	catSource := catalog.NewSource(cat)
	if cfg.Catalog.Path != "" && cfg.Catalog.Watch {
		if err := catSource.Watch(cfg.Catalog.Path, logger); err != nil {
			logger.Warn("catalog watch failed, hot reload disabled", zap.Error(err))
		}
	}

	// Detection layers
	scanCfg := scan.DefaultConfig()
	scanCfg.BlockScore = cfg.Guardrail.BlockScore
	scanCfg.ReviewScore = cfg.Guardrail.ReviewScore
	scanner := scan.NewScanner(catSource, scanCfg)
	patterns := codepattern.NewDetector(catSource, codepattern.DefaultConfig())
	filter := outputfilter.NewFilter(catSource)

	// Rate limit store — Redis when configured, in-memory otherwise
	var rlStore ratelimit.Store
	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := rdb.Ping(context.Background()).Err(); err != nil {
			logger.Fatal("failed to ping redis", zap.Error(err))
		}
		defer func() { _ = rdb.Close() }()
		rlStore = ratelimit.NewRedisStore(rdb)
		logger.Info("redis rate limit store connected", zap.String("addr", cfg.Redis.Addr))
	} else {
		rlStore = ratelimit.NewMemoryStore()
		logger.Info("no redis configured, using in-memory rate limit store")
	}
	limiter := ratelimit.NewLimiter(rlStore, ratelimit.Config{
		CodeGenLimit:       cfg.Guardrail.CodeGenLimit,
		CodeGenWindow:      cfg.Guardrail.CodeGenWindow.Std(),
		InfraLimit:         cfg.Guardrail.InfraLimit,
		InfraWindow:        cfg.Guardrail.InfraWindow.Std(),
		CloneWindow:        cfg.Guardrail.CloneWindow.Std(),
		CloneFlagThreshold: cfg.Guardrail.CloneFlagThreshold,
		InfraFlagRemaining: ratelimit.DefaultConfig().InfraFlagRemaining,
	}, logger)

	// Audit storage — ClickHouse or LogWriter fallback
	var writer storage.EventWriter
	if cfg.ClickHouse.DSN != "" {
		chWriter, err := storage.NewClickHouseWriter(cfg.ClickHouse.DSN, logger)
		if err != nil {
			logger.Warn("clickhouse connection failed, falling back to log writer", zap.Error(err))
			writer = storage.NewLogWriter(logger)
		} else {
			writer = chWriter
			logger.Info("clickhouse writer connected")
		}
	} else {
		writer = storage.NewLogWriter(logger)
		logger.Info("no clickhouse configured, using log writer")
	}
	defer writer.Close()

	// Admin notifications
	var notifier audit.Notifier
	if cfg.Guardrail.WebhookURL != "" {
		notifier = audit.NewWebhookNotifier(cfg.Guardrail.WebhookURL)
		logger.Info("webhook notifier enabled")
	} else {
		notifier = audit.NewLogNotifier(logger)
	}

	auditCfg := audit.DefaultConfig()
	if cfg.Guardrail.NotifyThreshold != "" {
		sev, err := catalog.ParseSeverity(cfg.Guardrail.NotifyThreshold)
		if err != nil {
			logger.Fatal("invalid notify_threshold", zap.Error(err))
		}
		auditCfg.NotifyThreshold = sev
	}
	auditCfg.NotifyDebounce = cfg.Guardrail.NotifyDebounce.Std()
	auditLog := audit.NewLog(auditCfg, notifier, writer, logger)

	guardrail := guard.New(scanner, patterns, filter, limiter, auditLog, logger)

	// Postgres customer store — static auth fallback for local dev
	var pgStore *store.Store
	var authenticator auth.Authenticator
	if cfg.Postgres.DSN != "" {
		db, err := sql.Open("pgx", cfg.Postgres.DSN)
		if err != nil {
			logger.Fatal("failed to open postgres", zap.Error(err))
		}
		defer func() { _ = db.Close() }()
		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(5 * time.Minute)
		if err := db.PingContext(context.Background()); err != nil {
			logger.Fatal("failed to ping postgres", zap.Error(err))
		}
		pgStore = store.NewStore(db)
		authenticator = auth.NewPostgresAuthenticator(auth.PostgresAuthConfig{
			Store:    pgStore,
			CacheTTL: cfg.Server.AuthCacheTTL.Std(),
			Logger:   logger,
		})
		logger.Info("postgres connected")
	} else {
		authenticator = auth.NewStaticAuthenticator()
		logger.Warn("no postgres configured, accepting any well-formed API key")
	}

	metrics := telemetry.NewMetrics(prometheus.DefaultRegisterer)

	deps := &api.Dependencies{
		Guard:       guardrail,
		AuditLog:    auditLog,
		Auth:        authenticator,
		Store:       pgStore,
		AdminAPIKey: cfg.Admin.APIKey,
		Metrics:     metrics,
		Logger:      logger,
	}
	httpServer := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      api.NewRouter(deps),
		ReadTimeout:  cfg.Server.ReadTimeout.Std(),
		WriteTimeout: cfg.Server.WriteTimeout.Std(),
		IdleTimeout:  cfg.Server.IdleTimeout.Std(),
	}
	go func() {
		logger.Info("http server listening", zap.String("addr", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("http server failed", zap.Error(err))
		}
	}()

	// Block until shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logger.Info("received signal, shutting down", zap.String("signal", sig.String()))

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.GracefulShutdown.Std())
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", zap.Error(err))
	}

	logger.Info("moat server stopped")
}

func mustBuildLogger(level string) *zap.Logger {
	var zapLevel zapcore.Level
	switch level {
	case "debug":
		zapLevel = zapcore.DebugLevel
	case "warn":
		zapLevel = zapcore.WarnLevel
	case "error":
		zapLevel = zapcore.ErrorLevel
	default:
		zapLevel = zapcore.InfoLevel
	}

	cfg := zap.Config{
		Level:            zap.NewAtomicLevelAt(zapLevel),
		Development:      false,
		Encoding:         "json",
		EncoderConfig:    zap.NewProductionEncoderConfig(),
		OutputPaths:      []string{"stdout"},
		ErrorOutputPaths: []string{"stderr"},
	}

	logger, err := cfg.Build()
	if err != nil {
		panic(fmt.Sprintf("failed to build logger: %v", err))
	}
	return logger
}
