package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/kursadbilgin/issuance-engine/internal/config"
	"github.com/kursadbilgin/issuance-engine/internal/credential"
	"github.com/kursadbilgin/issuance-engine/internal/handler"
	"github.com/kursadbilgin/issuance-engine/internal/infra/postgresql"
	"github.com/kursadbilgin/issuance-engine/internal/infra/postgresql/migrations"
	infraredis "github.com/kursadbilgin/issuance-engine/internal/infra/redis"
	"github.com/kursadbilgin/issuance-engine/internal/issuance"
	"github.com/kursadbilgin/issuance-engine/internal/notify"
	"github.com/kursadbilgin/issuance-engine/internal/observability"
	"github.com/kursadbilgin/issuance-engine/internal/proxy"
	"github.com/kursadbilgin/issuance-engine/internal/queue"
	"github.com/kursadbilgin/issuance-engine/internal/ratelimit"
	"github.com/kursadbilgin/issuance-engine/internal/repository"
	"github.com/kursadbilgin/issuance-engine/internal/service"
	"github.com/kursadbilgin/issuance-engine/internal/transport"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	shutdownTimeout  = 30 * time.Second
	consumerPrefetch = 1
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("failed to load config: ", err)
	}

	logger, err := observability.NewLogger(cfg.LogLevel)
	if err != nil {
		log.Fatal("failed to initialize logger: ", err)
	}
	defer logger.Sync() //nolint:errcheck

	if err := run(cfg, logger); err != nil {
		logger.Fatal("issuance-engine stopped with error", zap.Error(err))
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := postgresql.NewPostgres(cfg.DatabaseDSN, postgresql.DefaultPoolConfig())
	if err != nil {
		return fmt.Errorf("postgres initialization failed: %w", err)
	}
	defer postgresql.Close(db) //nolint:errcheck

	if err := migrations.Migrate(db); err != nil {
		return fmt.Errorf("database migrations failed: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("postgres underlying db init failed: %w", err)
	}

	metrics := observability.NewMetrics()

	var rdb *goredis.Client
	var limiter ratelimit.RateLimiter = ratelimit.NewLocalRateLimiter(cfg.RateLimitPerSec)
	if cfg.RedisURL != "" {
		rdb, err = infraredis.NewRedis(cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("redis initialization failed: %w", err)
		}
		defer rdb.Close()

		limiter, err = infraredis.NewRedisRateLimiter(rdb, cfg.RateLimitPerSec)
		if err != nil {
			return fmt.Errorf("redis rate limiter initialization failed: %w", err)
		}
	}

	rotator, err := proxy.FromFile(cfg.ProxyListPath)
	if err != nil {
		return err
	}
	proxies := 0
	if rr, ok := rotator.(*proxy.RoundRobin); ok {
		proxies = rr.Len()
	}

	// A missing credential file fails startup; Load re-reads it on every run.
	source, err := credential.NewFileSource(cfg.CredentialsPath, logger)
	if err != nil {
		return fmt.Errorf("credential source initialization failed: %w", err)
	}
	logger.Info("acquisition inputs configured",
		zap.String("credentialsPath", source.Path()),
		zap.Int("proxies", proxies),
	)

	client, err := issuance.NewClient(issuance.Options{
		Endpoint: cfg.IssuanceEndpoint,
		OfferID:  cfg.IssuanceOfferID,
		Origin:   cfg.IssuanceOrigin,
		Timeout:  cfg.IssuanceTimeout,
		Rotator:  rotator,
		Limiter:  limiter,
	}, logger)
	if err != nil {
		return err
	}

	policy, err := service.NewRetryPolicy(client, cfg.MaxAttempts, cfg.AttemptDelay, logger)
	if err != nil {
		return err
	}
	policy.SetMetrics(metrics)

	scheduler, err := service.NewBatchScheduler(policy, cfg.BatchSize, cfg.BatchDelay, logger)
	if err != nil {
		return err
	}
	scheduler.SetMetrics(metrics)

	codeRepo := repository.NewGormCodeRepo(db)
	runRepo := repository.NewGormRunRepo(db)
	channelRepo := repository.NewGormChannelRepo(db)

	acquisition, err := service.NewAcquisitionService(source, scheduler, codeRepo, runRepo, cfg.BatchSize, logger)
	if err != nil {
		return err
	}
	acquisition.SetMetrics(metrics)

	codes, err := service.NewCodeService(codeRepo, cfg.MaxDispense, logger)
	if err != nil {
		return err
	}
	codes.SetMetrics(metrics)

	channels, err := service.NewChannelService(channelRepo, logger)
	if err != nil {
		return err
	}

	// Interfaces stay nil when the broker is not configured.
	var publisher queue.Publisher
	var consumer queue.Consumer
	var broker handler.BrokerStatus
	if cfg.RabbitMQURL != "" {
		rabbit, err := queue.NewRabbitMQ(cfg.RabbitMQURL)
		if err != nil {
			return fmt.Errorf("rabbitmq initialization failed: %w", err)
		}
		defer rabbit.Close() //nolint:errcheck

		publisher = queue.NewRabbitMQPublisher(rabbit)
		consumer = queue.NewRabbitMQConsumer(rabbit, consumerPrefetch, logger)
		broker = rabbit
	}

	notifier, err := service.NewRunNotifier(channelRepo, codeRepo, notify.NewWebhookSender(), publisher, logger)
	if err != nil {
		return err
	}
	notifier.SetMetrics(metrics)
	acquisition.SetReporter(notifier)

	app := fiber.New(fiber.Config{
		AppName:      "issuance-engine",
		ErrorHandler: transport.ErrorHandler(logger),
	})
	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(metrics.HTTPMiddleware())
	app.Get("/metrics", adaptor.HTTPHandler(metrics.Handler()))

	handler.RegisterHealthRoutes(app, sqlDB, rdb, broker)
	if err := handler.RegisterRunRoutes(app, acquisition); err != nil {
		return err
	}
	if err := handler.RegisterCodeRoutes(app, codes); err != nil {
		return err
	}
	if err := handler.RegisterChannelRoutes(app, channels); err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	acquisition.SetBaseContext(gctx)

	g.Go(func() error {
		logger.Info("issuance-engine api started", zap.Int("port", cfg.APIPort))
		if err := app.Listen(fmt.Sprintf(":%d", cfg.APIPort)); err != nil {
			return fmt.Errorf("http server failed: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := app.ShutdownWithContext(shutdownCtx); err != nil {
			logger.Error("http server shutdown failed", zap.Error(err))
		}
		return nil
	})

	if cfg.AcquisitionInterval > 0 {
		ticker, err := service.NewRunTicker(acquisition, cfg.AcquisitionInterval, logger)
		if err != nil {
			return err
		}
		g.Go(func() error { return ticker.Start(gctx) })
	}

	if consumer != nil {
		worker, err := service.NewRequestWorker(consumer, acquisition, logger)
		if err != nil {
			return err
		}
		g.Go(func() error { return worker.Start(gctx) })
	}

	err = g.Wait()
	acquisition.Wait()
	logger.Info("issuance-engine stopped")

	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
