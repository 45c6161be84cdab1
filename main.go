package main

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/semchie/sahajjo-messenger-bot/catalog"
	"github.com/semchie/sahajjo-messenger-bot/config"
	"github.com/semchie/sahajjo-messenger-bot/dashboard"
	"github.com/semchie/sahajjo-messenger-bot/dialog"
	"github.com/semchie/sahajjo-messenger-bot/handlers"
	"github.com/semchie/sahajjo-messenger-bot/jobs"
	"github.com/semchie/sahajjo-messenger-bot/messenger"
	"github.com/semchie/sahajjo-messenger-bot/metrics"
	"github.com/semchie/sahajjo-messenger-bot/storage"
)

type dependencies struct {
	cfg        *config.Config
	logger     *zap.Logger
	catalog    *catalog.Catalog
	client     *messenger.Client
	dispatcher *jobs.Dispatcher
	deduper    storage.Deduper
	metrics    *metrics.Collector

	rdb *redis.Client
	db  *sql.DB
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	var zc zap.Config
	if cfg.IsProduction() {
		zc = zap.NewProductionConfig()
	} else {
		zc = zap.NewDevelopmentConfig()
	}
	level, err := zapcore.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	return zc.Build()
}

func loadCatalog(cfg *config.Config) (*catalog.Catalog, error) {
	if cfg.CatalogPath != "" {
		return catalog.Load(cfg.CatalogPath)
	}
	return catalog.Default()
}

func initializeDependencies(ctx context.Context) (*dependencies, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, err
	}
	logger, err := newLogger(cfg)
	if err != nil {
		return nil, err
	}
	deps := &dependencies{cfg: cfg, logger: logger, metrics: metrics.NewCollector("sahajjo")}

	deps.catalog, err = loadCatalog(cfg)
	if err != nil {
		return nil, err
	}
	if orphans := deps.catalog.Unreachable(); len(orphans) > 0 {
		logger.Warn("catalog nodes no menu leads to", zap.Strings("nodes", orphans))
	}
	logger.Info("catalog loaded", zap.Int("nodes", deps.catalog.Len()))

	deps.client = messenger.NewClient(messenger.Config{
		BaseURL:     cfg.GraphAPIURL,
		AccessToken: cfg.PageAccessToken,
		Timeout:     cfg.SendTimeout,
		MaxRetries:  cfg.SendMaxRetries,
	}, logger.Named("graph"))

	deps.deduper = storage.NopDeduper{}
	if target := cfg.RedisTarget(); target != "" {
		rdb, err := storage.ConnectRedis(ctx, target)
		if err != nil {
			logger.Warn("redis unavailable, redelivered events will be answered again", zap.Error(err))
		} else {
			deps.rdb = rdb
			deps.deduper = storage.NewRedisDeduper(rdb, cfg.DedupeTTL)
			logger.Info("redis dedupe enabled", zap.Duration("ttl", cfg.DedupeTTL))
		}
	}

	var failures storage.FailureLog = storage.NopFailureLog{}
	if cfg.PostgresDSN != "" {
		db, err := storage.ConnectPostgres(ctx, cfg.PostgresDSN)
		if err != nil {
			logger.Warn("postgres unavailable, delivery failures are only logged", zap.Error(err))
		} else {
			pglog, err := storage.NewPGFailureLog(ctx, db)
			if err != nil {
				db.Close()
				logger.Warn("could not prepare failure log", zap.Error(err))
			} else {
				deps.db = db
				failures = pglog
				logger.Info("postgres failure log enabled")
			}
		}
	}

	deps.dispatcher = jobs.NewDispatcher(deps.client, failures, deps.metrics, logger.Named("dispatch"), jobs.Options{
		Workers:   cfg.DispatchWorkers,
		QueueSize: cfg.DispatchQueueSize,
		Menu:      dialog.PersistentMenu(deps.catalog),
	})
	return deps, nil
}

func setupRoutes(deps *dependencies) http.Handler {
	webhook := handlers.NewWebhookHandler(handlers.WebhookDeps{
		VerifyToken: deps.cfg.VerifyToken,
		AppSecret:   deps.cfg.AppSecret,
		Resolver:    dialog.NewManager(deps.catalog),
		Dispatcher:  deps.dispatcher,
		Deduper:     deps.deduper,
		Metrics:     deps.metrics,
		Logger:      deps.logger.Named("webhook"),
	})

	return handlers.NewRouter(handlers.RouterDeps{
		Webhook: webhook,
		Metrics: deps.metrics,
		Dashboard: dashboard.Handler(dashboard.Sources{
			Catalog: deps.catalog,
			Queue:   deps.dispatcher,
			Breaker: deps.client,
		}),
		APIKey: deps.cfg.APIKey,
		Logger: deps.logger.Named("http"),
	})
}

func main() {
	deps, err := initializeDependencies(context.Background())
	if err != nil {
		log.Fatalf("initialization failed: %v", err)
	}
	logger := deps.logger
	defer logger.Sync()

	if deps.cfg.AppSecret == "" {
		logger.Warn("APP_SECRET not set, webhook signatures are not checked")
	}

	deps.dispatcher.Start()

	srv := &http.Server{
		Addr:              deps.cfg.Addr(),
		Handler:           setupRoutes(deps),
		ReadHeaderTimeout: 10 * time.Second,
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("server listening", zap.String("addr", srv.Addr), zap.String("env", deps.cfg.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	<-stop
	logger.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("http shutdown", zap.Error(err))
	}
	if err := deps.dispatcher.Stop(ctx); err != nil {
		logger.Error("dispatcher shutdown", zap.Error(err))
	}
	if deps.rdb != nil {
		deps.rdb.Close()
	}
	if deps.db != nil {
		deps.db.Close()
	}

	logger.Info("shutdown complete")
}
