package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"newsdesk/internal/config"
	"newsdesk/internal/domain"
	"newsdesk/internal/httpapi"
	"newsdesk/internal/publisher"
	"newsdesk/internal/scheduler"
	"newsdesk/internal/service"
	"newsdesk/internal/source/newsapi"
	"newsdesk/internal/storage/postgres"
)

const shutdownTimeout = 15 * time.Second

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	logger := setupLogger("info")

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger = setupLogger(cfg.LogLevel)

	db, err := sqlx.Connect("postgres", cfg.Database.DSN())
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	logger.Info("connected to database", "host", cfg.Database.Host, "dbname", cfg.Database.DBName)

	// A nil interface, not a typed nil, keeps the services from publishing.
	var changes service.Publisher
	if cfg.RabbitMQ.Enabled {
		rabbitMQ, err := publisher.NewRabbitMQ(publisher.Config{
			URL:        cfg.RabbitMQ.URL,
			Exchange:   cfg.RabbitMQ.Exchange,
			RoutingKey: cfg.RabbitMQ.RoutingKey,
			QueueName:  cfg.RabbitMQ.QueueName,
		}, logger)
		if err != nil {
			logger.Error("failed to connect to rabbitmq", "error", err)
			os.Exit(1)
		}
		defer rabbitMQ.Close()
		changes = rabbitMQ
	}

	articleStore := postgres.NewArticleStore(db)
	syncLogStore := postgres.NewSyncLogStore(db)
	adminStore := postgres.NewAdminStore(db)
	txManager := postgres.NewTransactionManager(db)

	newsSource, err := newsapi.New(newsapi.Config{
		APIKey:            cfg.NewsAPI.APIKey,
		BaseURL:           cfg.NewsAPI.BaseURL,
		Timeout:           cfg.NewsAPI.Timeout,
		RequestsPerSecond: cfg.NewsAPI.RequestsPerSecond,
	}, logger)
	if err != nil {
		logger.Error("failed to create news api client", "error", err)
		os.Exit(1)
	}

	syncService := service.NewSyncService(
		newsSource,
		articleStore,
		syncLogStore,
		adminStore,
		txManager,
		changes,
		logger,
		service.SyncSettings{
			Cooldown:        cfg.Sync.Cooldown(),
			DefaultCountry:  cfg.NewsAPI.DefaultCountry,
			DefaultPageSize: cfg.NewsAPI.DefaultPageSize,
			MaxPageSize:     cfg.NewsAPI.MaxPageSize,
		},
	)
	articleService := service.NewArticleService(articleStore, adminStore, changes, logger)

	api := httpapi.New(syncService, articleService, db, logger, cfg.HTTP.RequestTimeout)
	srv := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           api.Router(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Sync.Interval > 0 {
		sched := scheduler.NewScheduler(syncService, cfg.Sync.Interval, logger)
		go func() {
			if err := sched.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("scheduler error", "error", err)
			}
		}()
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("starting newsdesk api",
			"addr", cfg.HTTP.Addr,
			"source", newsSource.Name(),
			"cooldown", cfg.Sync.Cooldown(),
			"scheduler_interval", cfg.Sync.Interval,
			"publisher_enabled", cfg.RabbitMQ.Enabled,
		)
		serveErr <- srv.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
			os.Exit(1)
		}
	case <-ctx.Done():
		logger.Info("received shutdown signal")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", "error", err)
	}

	// An admitted run ignores request cancellation; let it write its log.
	drainCtx, cancelDrain := context.WithTimeout(context.Background(), syncDrainTimeout(cfg))
	defer cancelDrain()

	if err := syncService.Wait(drainCtx); err != nil {
		logger.Error("sync still running at exit, its log entry may be missing", "error", err)
	}
	logger.Info("server stopped")
}

// syncDrainTimeout bounds a full run: one request per category plus slack for
// the store writes.
func syncDrainTimeout(cfg *config.Config) time.Duration {
	return time.Duration(len(domain.Categories()))*cfg.NewsAPI.Timeout + time.Minute
}

func setupLogger(level string) *slog.Logger {
	var logLevel slog.Level
	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: logLevel}
	handler := slog.NewJSONHandler(os.Stdout, opts)
	return slog.New(handler)
}
