package di

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"service-desk/backend/internal/bot"
	"service-desk/backend/internal/notify"
	"service-desk/backend/internal/repository"
	"service-desk/backend/internal/service"
	"service-desk/backend/internal/ws"
	"service-desk/backend/pkg/blob"
	"service-desk/backend/pkg/cache"
	"service-desk/backend/pkg/config"
	"service-desk/backend/pkg/dedup"
	"service-desk/backend/pkg/health"
	"service-desk/backend/pkg/lock"
	"service-desk/backend/pkg/logger"
	"service-desk/backend/pkg/resilience"
	"service-desk/backend/pkg/secrets"
	"service-desk/backend/shared/observability"
	"service-desk/backend/shared/redis"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"gorm.io/gorm"
)

// Container holds all the dependencies for the application
type Container struct {
	Config  *config.Config
	Logger  *logger.Logger
	DB      *gorm.DB
	Store   *repository.GormStore
	Secrets secrets.Manager
	Blobs   blob.Store
	Cache   *cache.Cache
	Redis   *redis.RedisClient
	Dedup   dedup.Store
	Metrics *observability.Metrics
	Hub     *ws.Hub
	Health  *health.Checker

	UserService    *service.UserService
	ManagerService *service.ManagerService
	TaskService    *service.TaskService
	MessageRouter  *service.MessageRouter

	Notifier notify.Notifier
	// Poller is nil when the chat bot is disabled
	Poller *bot.Poller

	closers []func() error
}

// New resolves secrets, opens the database and builds the container
func New(ctx context.Context, cfg *config.Config, log *logger.Logger) (*Container, error) {
	sm, err := secrets.NewManager(secrets.VaultConfigFromEnv(), log)
	if err != nil {
		return nil, fmt.Errorf("failed to create secrets manager: %w", err)
	}
	cfg.Database.Password = sm.GetSecretWithDefault(ctx, secrets.KeyDBPassword, cfg.Database.Password)

	db, err := config.NewDB(cfg)
	if err != nil {
		return nil, err
	}
	if err := repository.Migrate(db); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	c, err := Build(ctx, cfg, log, db, sm)
	if err != nil {
		if sqlDB, dbErr := db.DB(); dbErr == nil {
			sqlDB.Close()
		}
		return nil, err
	}
	c.closers = append(c.closers, func() error {
		sqlDB, err := db.DB()
		if err != nil {
			return err
		}
		return sqlDB.Close()
	})
	return c, nil
}

// Build wires every component on top of an already migrated database
func Build(ctx context.Context, cfg *config.Config, log *logger.Logger, db *gorm.DB, sm secrets.Manager) (*Container, error) {
	if sm == nil {
		sm = secrets.EnvManager{}
	}
	c := &Container{
		Config:  cfg,
		Logger:  log,
		DB:      db,
		Store:   repository.NewGormStore(db),
		Secrets: sm,
		Metrics: observability.NewMetrics(),
		Hub:     ws.NewHub(log),
	}
	if vm, ok := sm.(*secrets.VaultManager); ok {
		c.closers = append(c.closers, func() error { vm.Close(); return nil })
	}

	c.Cache = cache.New(cache.Options{
		TTL:         cfg.Cache.TTL,
		PurgeWindow: cfg.Cache.PurgeWindow,
		MaxSize:     cfg.Cache.MaxSize,
	})
	c.closers = append(c.closers, func() error { c.Cache.Close(); return nil })

	blobs, err := newBlobStore(ctx, cfg, sm)
	if err != nil {
		c.Close()
		return nil, err
	}
	c.Blobs = blobs

	if cfg.Redis.Enabled {
		c.Redis = redis.NewRedisClient(redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		c.closers = append(c.closers, c.Redis.Close)
		c.Dedup = dedup.NewRedisStore(c.Redis, "desk:dedup:", cfg.Redis.DedupTTL)
	} else {
		c.Dedup = dedup.NewMemoryStore(c.Cache, cfg.Redis.DedupTTL)
	}

	var api *tgbotapi.BotAPI
	c.Notifier = notify.Nop{}
	if cfg.Telegram.Enabled {
		token := sm.GetSecretWithDefault(ctx, secrets.KeyTelegramToken, cfg.Telegram.Token)
		if token == "" {
			log.Warn("Telegram bot enabled without a token, running without the chat gateway")
		} else {
			api, err = tgbotapi.NewBotAPI(token)
			if err != nil {
				c.Close()
				return nil, fmt.Errorf("failed to connect to Telegram: %w", err)
			}
			api.Debug = cfg.Telegram.Debug
			log.Info("Telegram bot authorized", "username", api.Self.UserName)

			breakerCfg := resilience.DefaultConfig("telegram")
			breakerCfg.Timeout = cfg.Telegram.Timeout
			c.Notifier = bot.NewGateway(api, c.Blobs, resilience.NewCircuitBreaker(breakerCfg, log), log)
		}
	}

	policy := service.TransitionPermissive
	if cfg.Tasks.StrictTransitions {
		policy = service.TransitionStrict
	}

	c.UserService = service.NewUserService(c.Store)
	c.ManagerService = service.NewManagerService(c.Store, c.Cache)
	c.TaskService = service.NewTaskService(service.TaskServiceDeps{
		Store:     c.Store,
		Managers:  c.ManagerService,
		Locks:     lock.NewKeyedMutex(),
		Policy:    policy,
		Publisher: c.Hub,
		Metrics:   c.Metrics,
		Logger:    log,
	})
	c.MessageRouter = service.NewMessageRouter(service.MessageRouterDeps{
		Store:     c.Store,
		Tasks:     c.TaskService,
		Managers:  c.ManagerService,
		Blobs:     c.Blobs,
		Notifier:  c.Notifier,
		Publisher: c.Hub,
		Metrics:   c.Metrics,
		Logger:    log,
	})

	if api != nil {
		files := bot.NewFileClient(api, &http.Client{Timeout: cfg.Telegram.Timeout}, cfg.Security.MaxUploadSize)
		dispatcher := bot.NewDispatcher(bot.DispatcherDeps{
			Users:    c.UserService,
			Router:   c.MessageRouter,
			Notifier: c.Notifier,
			Files:    files,
			Dedup:    c.Dedup,
			Metrics:  c.Metrics,
			Logger:   log,
		})
		c.Poller = bot.NewPoller(api, dispatcher, cfg.Telegram.PollTimeout, log)
	}

	c.Health = health.NewChecker(log, 30*time.Second)
	c.Health.RegisterDatabaseCheck(c.Store.Ping)
	c.Health.RegisterBlobCheck(c.Blobs.Ping)
	if c.Redis != nil {
		c.Health.RegisterCheck("redis", false, func(ctx context.Context) (health.Status, string, error) {
			if err := c.Redis.Ping(ctx); err != nil {
				return health.StatusDegraded, "Redis unreachable, update dedup unavailable", err
			}
			return health.StatusUp, "Redis is reachable", nil
		})
	}

	return c, nil
}

func newBlobStore(ctx context.Context, cfg *config.Config, sm secrets.Manager) (blob.Store, error) {
	switch cfg.Blob.Backend {
	case config.BlobBackendMinio:
		store, err := blob.NewMinioStore(ctx, blob.MinioConfig{
			Endpoint:  cfg.Blob.MinioEndpoint,
			AccessKey: cfg.Blob.MinioAccessKey,
			SecretKey: sm.GetSecretWithDefault(ctx, secrets.KeyMinioSecretKey, cfg.Blob.MinioSecretKey),
			Bucket:    cfg.Blob.MinioBucket,
			UseSSL:    cfg.Blob.MinioUseSSL,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create minio blob store: %w", err)
		}
		return store, nil
	case config.BlobBackendFS, "":
		store, err := blob.NewFSStore(cfg.Blob.Dir)
		if err != nil {
			return nil, fmt.Errorf("failed to create blob directory: %w", err)
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unsupported blob backend %q", cfg.Blob.Backend)
	}
}

// Close releases everything the container opened, newest first
func (c *Container) Close() error {
	var firstErr error
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	c.closers = nil
	return firstErr
}
