package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"golang.org/x/time/rate"

	"kwikflow/internal/automation"
	"kwikflow/internal/cache"
	"kwikflow/internal/config"
	"kwikflow/internal/httpserver"
	"kwikflow/internal/logging"
	"kwikflow/internal/mail"
	"kwikflow/internal/metrics"
	"kwikflow/internal/outbox"
	"kwikflow/internal/repo"
	"kwikflow/internal/service"
	"kwikflow/internal/whatsapp"
)

const (
	outboxQueueKey = "kwikflow:outbox"
	maxBodyBytes   = 1 << 20
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := logging.NewLogger(cfg.LogLevel, cfg.LogFormat)
	logger.Info("starting kwikflow", "env", cfg.AppEnv, "storage", cfg.StorageDriver, "surfaces", cfg.Surfaces)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	metricRegistry := metrics.Registry(cfg.MetricsNamespace)

	repository, err := openRepository(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer repository.Close()

	if cfg.SeedDemoData {
		if err := repo.SeedDemoData(ctx, repository, time.Now()); err != nil {
			return fmt.Errorf("seed demo data: %w", err)
		}
	}

	var (
		queue  outbox.Queue
		dedupe service.Deduper
	)
	if cfg.RedisAddr != "" {
		redisClient := cache.New(cache.Config{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			UseTLS:   cfg.RedisTLS,
		}, logger)
		defer func() {
			if err := redisClient.Close(); err != nil {
				logger.Warn("failed closing redis", "error", err)
			}
		}()
		if err := redisClient.Ping(ctx); err != nil {
			logger.Warn("redis ping failed", "error", err)
		}
		queue = outbox.NewRedisQueue(redisClient, outboxQueueKey)
		dedupe = redisClient
	} else {
		logger.Info("REDIS_ADDR not set, using in-process outbox queue")
		queue = outbox.NewMemoryQueue(cfg.OutboxBuffer)
		dedupe = cache.NewLocal()
	}

	dispatcher := outbox.NewDispatcher(queue, outbox.Options{
		Workers:     cfg.OutboxWorkers,
		MaxAttempts: cfg.OutboxMaxAttempts,
		Backoff:     cfg.OutboxBackoff,
		JobTimeout:  cfg.MailTimeout + cfg.WhatsAppTimeout,
	}, logger, metricRegistry)

	mailer := mail.New(mail.Config{
		APIKey:   cfg.MailgunAPIKey,
		Domain:   cfg.MailgunDomain,
		Region:   cfg.MailgunRegion,
		FromName: cfg.MailFromName,
		Timeout:  cfg.MailTimeout,
	}, logger, metricRegistry)
	if !cfg.MailConfigured() {
		logger.Warn("mailgun credentials missing, notification e-mails will be dropped")
	}

	waClient := whatsapp.New(whatsapp.Config{
		PhoneNumberID: cfg.WhatsAppPhoneNumberID,
		AccessToken:   cfg.WhatsAppAccessToken,
		APIVersion:    cfg.WhatsAppAPIVersion,
		Timeout:       cfg.WhatsAppTimeout,
	}, logger, metricRegistry)
	if !cfg.WhatsAppConfigured() {
		logger.Info("whatsapp cloud api not configured, outbound messages are stored only")
	}

	engine := automation.New(automation.BusinessHours{
		Start:    cfg.BusinessHoursStart,
		End:      cfg.BusinessHoursEnd,
		Location: cfg.Location,
	}, logger)

	svc, err := service.New(service.Dependencies{
		Repo:     repository,
		Outbox:   dispatcher,
		Mailer:   mailer,
		WhatsApp: waClient,
		Composer: mail.Composer{NotifyTo: cfg.NotifyEmail, Location: cfg.Location},
		Engine:   engine,
		Dedupe:   dedupe,
		Logger:   logger,
		Metrics:  metricRegistry,
	}, service.Options{
		StorageDriver: cfg.StorageDriver,
		Location:      cfg.Location,
		DedupeTTL:     cfg.InboundDedupeTTL,
	})
	if err != nil {
		return fmt.Errorf("init service: %w", err)
	}
	if err := svc.EnsureAdmin(ctx, cfg.AdminUsername, cfg.AdminPassword); err != nil {
		return fmt.Errorf("ensure admin user: %w", err)
	}
	svc.RegisterJobs(dispatcher)

	outboxCtx, outboxCancel := context.WithCancel(context.Background())
	defer outboxCancel()
	var workers sync.WaitGroup
	workers.Add(1)
	go func() {
		defer workers.Done()
		dispatcher.Run(outboxCtx)
	}()

	httpSrv := httpserver.New(httpserver.Options{
		Addr:               cfg.HTTPListenAddr,
		BasePath:           cfg.PublicBasePath,
		FormsEnabled:       cfg.SurfaceEnabled(config.SurfaceForms),
		MessagingEnabled:   cfg.SurfaceEnabled(config.SurfaceMessaging),
		CORSOrigins:        cfg.CORSOrigins,
		MaxBodyBytes:       maxBodyBytes,
		FormRate:           rate.Limit(cfg.FormRateLimit),
		FormBurst:          cfg.FormRateBurst,
		RequireAuth:        cfg.RequireAuth,
		WebhookVerifyToken: cfg.WhatsAppVerifyToken,
		WebhookAppSecret:   cfg.WhatsAppAppSecret,
	}, svc, logger, metricRegistry)

	errCh := make(chan error, 1)
	go func() {
		if err := httpSrv.Start(); err != nil {
			errCh <- err
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-errCh:
		runErr = fmt.Errorf("http server error: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}

	outboxCancel()
	workers.Wait()

	return runErr
}

// openRepository builds the store selected by STORAGE_DRIVER and migrates SQL backends.
func openRepository(ctx context.Context, cfg config.Config, logger *slog.Logger) (repo.Repository, error) {
	var (
		sqlRepo *repo.SQLRepository
		err     error
	)
	switch cfg.StorageDriver {
	case config.StorageSQLite:
		sqlRepo, err = repo.NewSQLite(ctx, cfg.SQLitePath, logger)
	case config.StoragePostgres:
		sqlRepo, err = repo.NewPostgres(ctx, cfg.DatabaseURL, cfg.DBSchema, logger)
	default:
		logger.Warn("using in-memory storage, data is lost on restart")
		return repo.NewMemory(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("init repository: %w", err)
	}

	if err := sqlRepo.RunMigrations(ctx); err != nil {
		sqlRepo.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	logger.Info("database migrated", "driver", cfg.StorageDriver)
	return sqlRepo, nil
}
