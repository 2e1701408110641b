package main

import (
	"context"
	"log"
	"os"
	"time"

	gfshutdown "github.com/gelmium/graceful-shutdown"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/workflow-service/internal/api/http"
	"github.com/spec-kit/workflow-service/internal/api/http/handlers"
	"github.com/spec-kit/workflow-service/internal/auth"
	"github.com/spec-kit/workflow-service/internal/calendar"
	"github.com/spec-kit/workflow-service/internal/chat"
	"github.com/spec-kit/workflow-service/internal/config"
	"github.com/spec-kit/workflow-service/internal/events"
	"github.com/spec-kit/workflow-service/internal/feed"
	"github.com/spec-kit/workflow-service/internal/mutation"
	"github.com/spec-kit/workflow-service/internal/observability"
	"github.com/spec-kit/workflow-service/internal/persistence"
	"github.com/spec-kit/workflow-service/internal/repository"
	"github.com/spec-kit/workflow-service/internal/service"
	"github.com/spec-kit/workflow-service/internal/storage"
	"github.com/spec-kit/workflow-service/internal/worker"
	"github.com/spec-kit/workflow-service/internal/workspace"
)

type repositories struct {
	users    repository.UserRepository
	tasks    repository.TaskRepository
	requests repository.RequestRepository
	messages repository.ChatMessageRepository
}

const shutdownTimeout = 30 * time.Second

func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.App, cfg.Logger)
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

	var repos repositories
	if pg.Enabled() {
		if cfg.Postgres.RunMigrations {
			if err := persistence.RunMigrations(ctx, pg.PoolHandle(), cfg.Postgres.MigrationsDir, logger); err != nil {
				logger.Fatal("failed to run migrations", zap.Error(err))
			}
		}
		pool := pg.PoolHandle()
		repos = repositories{
			users:    repository.NewUserRepository(pool),
			tasks:    repository.NewTaskRepository(pool),
			requests: repository.NewRequestRepository(pool),
			messages: repository.NewChatMessageRepository(pool),
		}
	} else {
		mem := repository.NewMemory()
		repos = repositories{
			users:    mem.Users(),
			tasks:    mem.Tasks(),
			requests: mem.Requests(),
			messages: mem.ChatMessages(),
		}
	}

	var (
		redis       *persistence.Redis
		changeFeed  feed.Feed
		revocations auth.Revocations
	)
	switch cfg.Feed.Driver {
	case "memory":
		changeFeed = feed.NewMemory()
		revocations = auth.NewMemoryRevocations()
	default:
		redis = persistence.NewRedis(cfg.Redis, logger)
		defer redis.Close()
		changeFeed = feed.NewRedis(redis.Client, cfg.Feed.ChannelPrefix, logger)
		revocations = auth.NewRedisRevocations(redis.Client)
	}
	logger.Info("change feed selected", zap.String("driver", cfg.Feed.Driver))

	metrics := observability.NewMetrics()
	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTLMinutes)
	provider := auth.NewProvider(auth.ProviderDependencies{
		Users:       repos.users,
		Tokens:      tokens,
		Revocations: revocations,
		BcryptCost:  cfg.Auth.BcryptCost,
		Logger:      logger,
	})

	if _, err := provider.BootstrapSuperAdmin(ctx, cfg.Bootstrap.SuperAdminName,
		cfg.Bootstrap.SuperAdminEmail, cfg.Bootstrap.SuperAdminPassword); err != nil {
		logger.Fatal("failed to bootstrap super admin", zap.Error(err))
	}

	dispatcher := events.NewInMemoryDispatcher(logger)
	worker.StartNotificationWorker(service.NewNotificationService(dispatcher, logger, cfg.Notification))
	if cfg.Calendar.Enabled {
		worker.StartCalendarWorker(dispatcher, calendar.NewSync(calendar.NewLogClient(logger), cfg.Calendar.CalendarID, logger))
	}

	uploader := storage.NewLocal(cfg.Storage.UploadDir, cfg.Storage.PublicBaseURL, int64(cfg.Storage.MaxUploadMB)<<20)
	chatService := chat.NewService(chat.Dependencies{
		Messages:   repos.messages,
		Users:      repos.users,
		Feed:       changeFeed,
		Dispatcher: dispatcher,
		Metrics:    metrics,
		Logger:     logger,
	})

	registry := workspace.NewRegistry(workspace.Dependencies{
		Auth:       provider,
		Users:      repos.users,
		Tasks:      repos.tasks,
		Requests:   repos.requests,
		Feed:       changeFeed,
		Dispatcher: dispatcher,
		Uploader:   uploader,
		Chat:       chatService,
		Metrics:    metrics,
		Logger:     logger,
		Clock:      time.Now,
		Options: workspace.Options{
			IdleTimeout:  cfg.Workspace.IdleTimeout(),
			ReadyTimeout: cfg.Workspace.ReadyTimeout(),
			ReapInterval: cfg.Workspace.ReapInterval(),
			Retry: mutation.RetryPolicy{
				MaxRetries: cfg.Mutation.MaxRetries,
				Backoff:    cfg.Mutation.RetryBackoff(),
			},
			AtomicAppend: cfg.Mutation.AtomicAppend,
		},
	})
	registryDone := make(chan struct{})
	go func() {
		defer close(registryDone)
		registry.Run(ctx)
	}()

	app := fiber.New(fiber.Config{
		AppName:   cfg.App.Name,
		BodyLimit: (cfg.Storage.MaxUploadMB + 1) << 20,
	})
	httptransport.RegisterMiddlewares(app, logger, metrics, httptransport.MiddlewareConfig{
		Timeout:          cfg.App.RequestTimeout(),
		NoticeTTLSeconds: cfg.Workspace.NoticeTTLSeconds,
	})
	app.Static(cfg.Storage.PublicBaseURL, uploader.Root())

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, pg, redis, metrics, registry),
		Auth:           handlers.NewAuthHandler(provider, registry, logger),
		Users:          handlers.NewUsersHandler(provider, registry),
		Dashboard:      handlers.NewDashboardHandler(registry, time.Now),
		Tasks:          handlers.NewTasksHandler(registry),
		Requests:       handlers.NewRequestsHandler(registry),
		Chats:          handlers.NewChatsHandler(registry, chatService),
		WS:             handlers.NewWSHandler(registry, logger, cfg.Workspace.NoticeTTLSeconds),
		AuthMiddleware: auth.NewAuthMiddleware(tokens, repos.users, revocations),
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	wait := gfshutdown.GracefulShutdown(context.Background(), shutdownTimeout, map[string]gfshutdown.Operation{
		"http": func(ctx context.Context) error {
			logger.Info("shutting down http server")
			return app.ShutdownWithContext(ctx)
		},
		"workspaces": func(ctx context.Context) error {
			cancel()
			select {
			case <-registryDone:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		},
	})

	exitCode := <-wait
	logger.Info("service stopped", zap.Int("exit_code", exitCode))
	return exitCode
}
