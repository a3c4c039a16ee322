package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/order-ticket-service/internal/api/http"
	"github.com/spec-kit/order-ticket-service/internal/api/http/handlers"
	"github.com/spec-kit/order-ticket-service/internal/auth"
	"github.com/spec-kit/order-ticket-service/internal/config"
	"github.com/spec-kit/order-ticket-service/internal/events"
	"github.com/spec-kit/order-ticket-service/internal/notification"
	"github.com/spec-kit/order-ticket-service/internal/observability"
	"github.com/spec-kit/order-ticket-service/internal/persistence"
	"github.com/spec-kit/order-ticket-service/internal/repository"
	"github.com/spec-kit/order-ticket-service/internal/repository/memory"
	"github.com/spec-kit/order-ticket-service/internal/service"
	"github.com/spec-kit/order-ticket-service/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	var (
		transactor repository.Transactor
		repos      repository.Repositories
		orders     repository.OrderRepository
		checks     []handlers.DependencyCheck
	)
	if pool := pg.PoolHandle(); pool != nil {
		if cfg.Postgres.RunMigrations {
			if err := persistence.RunMigrations(ctx, pool, logger); err != nil {
				logger.Fatal("failed to run migrations", zap.Error(err))
			}
		}
		transactor = repository.NewTransactor(pool)
		repos = repository.NewPostgresRepositories(pool)
		orders = repository.NewOrderRepository(pool)
		checks = append(checks, handlers.DependencyCheck{Name: "postgres", Ping: pg.Ping})
	} else {
		store := memory.NewStore()
		if path := cfg.Postgres.SeedOrdersFile; path != "" {
			n, err := store.LoadOrdersFile(path)
			if err != nil {
				logger.Fatal("failed to load seed orders", zap.String("file", path), zap.Error(err))
			}
			logger.Info("seed orders loaded", zap.String("file", path), zap.Int("count", n))
		} else {
			logger.Warn("no orders loaded; ticket creation is unavailable until MEMORY_SEED_ORDERS_FILE is set")
		}
		transactor = store
		repos = store.Repositories()
		orders = store.Orders()
	}

	redis := persistence.NewRedis(cfg.Redis, logger)
	defer redis.Close()

	metrics := observability.NewMetrics()
	dispatcher := events.NewInMemoryDispatcher(logger)
	if redis.Enabled() {
		feed := events.NewRedisPublisher(redis.Client, cfg.Redis.ChannelPrefix)
		events.SubscribeAll(dispatcher, feed.Handle)
		checks = append(checks, handlers.DependencyCheck{Name: "redis", Ping: redis.Ping})
	}
	if stream := events.NewKafkaPublisher(cfg.Kafka); stream != nil {
		events.SubscribeAll(dispatcher, stream.Handle)
		defer stream.Close() //nolint:errcheck
		logger.Info("kafka event stream enabled", zap.String("topic", cfg.Kafka.Topic))
	}

	var notifier notification.Notifier = notification.NewLogNotifier(logger)
	if cfg.Notification.WebhookURL != "" {
		notifier = notification.NewWebhookNotifier(cfg.Notification.WebhookURL, cfg.Notification.Timeout())
	}
	notifications := worker.NewNotificationWorker(notifier, logger, cfg.Notification.QueueSize, cfg.Notification.Workers)
	notifications.Start(ctx)
	service.NewNotificationService(dispatcher, notifications, logger, cfg.App).RegisterHandlers()

	ticketService := service.NewTicketService(service.TicketDependencies{
		Transactor: transactor,
		Repos:      repos,
		OrderRepo:  orders,
		Dispatcher: dispatcher,
		Metrics:    metrics,
		Logger:     logger,
	})
	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, 0)

	app := fiber.New(fiber.Config{
		AppName:               cfg.App.Name,
		DisableStartupMessage: true,
	})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())
	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, metrics, checks...),
		Tickets:        handlers.NewTicketsHandler(ticketService),
		AuthMiddleware: auth.NewAuthMiddleware(tokens),
	})

	go func() {
		logger.Info("listening", zap.String("addr", cfg.App.Addr()))
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
	notifications.Stop()
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
