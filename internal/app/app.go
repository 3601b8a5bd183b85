package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/MrSnakeDoc/linkvault/internal/auth"
	"github.com/MrSnakeDoc/linkvault/internal/bookmark"
	"github.com/MrSnakeDoc/linkvault/internal/config"
	"github.com/MrSnakeDoc/linkvault/internal/enrich"
	"github.com/MrSnakeDoc/linkvault/internal/httpserver"
	"github.com/MrSnakeDoc/linkvault/internal/httpserver/deps"
	"github.com/MrSnakeDoc/linkvault/internal/logger"
	"github.com/MrSnakeDoc/linkvault/internal/metrics"
	"github.com/MrSnakeDoc/linkvault/internal/redis"
	"github.com/MrSnakeDoc/linkvault/internal/scheduler"
	"github.com/MrSnakeDoc/linkvault/internal/store/memory"
	redisstore "github.com/MrSnakeDoc/linkvault/internal/store/redis"
	"github.com/MrSnakeDoc/linkvault/internal/utils"
	"github.com/MrSnakeDoc/linkvault/internal/version"
)

// repository is what both storage backends provide.
type repository interface {
	bookmark.Repository
	scheduler.MetadataWriter
}

type App struct {
	cfg         *config.Config
	logger      logger.Logger
	server      *httpserver.Server
	redisClient *goredis.Client
	retrier     *scheduler.MetadataRetrier
	bookmarks   *bookmark.Service
}

func New() (*App, error) {
	cfg := config.Load()
	loggerClient := logger.New(cfg.LogLevel, cfg.PrettyLog)
	m := metrics.New()

	a := &App{cfg: cfg, logger: loggerClient}

	repo, cache, err := a.openStore()
	if err != nil {
		return nil, err
	}

	jina := enrich.NewJinaClient(enrich.JinaOptions{
		BaseURL:   cfg.ExtractorBaseURL,
		UserAgent: cfg.ExtractorUserAgent,
	})
	guarded := enrich.NewGuardedFetcher(jina, enrich.GuardOptions{
		RatePerMinute: cfg.ExtractorRate,
		Burst:         cfg.ExtractorBurst,
		MaxFailures:   cfg.BreakerMaxFailures,
		OpenTimeout:   cfg.BreakerOpenTimeout,
	}, loggerClient, m)

	enricher := enrich.NewEnricher(guarded, cfg.ExtractorTimeout, loggerClient, m)
	if cache != nil {
		enricher = enricher.WithCache(cache)
		loggerClient.Info("extraction cache enabled", logger.Duration("ttl", cfg.ExtractorCacheTTL))
	}

	a.retrier = scheduler.NewMetadataRetrier(enricher, repo, loggerClient, m, scheduler.RetryOptions{
		Workers:   cfg.RetryWorkers,
		QueueSize: cfg.RetryQueueSize,
		Delay:     cfg.RetryDelay,
	})

	a.bookmarks = bookmark.NewService(repo, enricher, a.retrier, loggerClient, cfg.ImportMax)

	d := deps.Deps{
		Logger:       loggerClient,
		StartTime:    time.Now(),
		Version:      version.Version,
		Commit:       version.Commit,
		BuildDate:    version.BuildDate,
		GoVersion:    version.GoVersion,
		TimeNow:      time.Now,
		AllowedCIDRS: cfg.AllowedCIDRS,
		TrustProxy:   cfg.TrustProxy,
		ClientURLs:   cfg.ClientURLs,
		Storage:      cfg.Storage,
		Bookmarks:    a.bookmarks,
		Auth:         auth.NewManager(cfg.JWTSecret, 0),
		Metrics:      m,
		Extractor:    guarded,
	}

	a.server = httpserver.New(cfg, loggerClient, d)
	return a, nil
}

// openStore connects the configured backend. The extraction cache is only
// available with Redis.
func (a *App) openStore() (repository, enrich.Cache, error) {
	if a.cfg.Storage == config.StorageMemory {
		a.logger.Warn("using in-memory storage, bookmarks are lost on restart")
		return memory.New(), nil, nil
	}

	a.logger.Infof("Connecting to Redis at %s", a.cfg.RedisAddr)
	client, err := redis.Connect(context.Background(), redis.ConnectOptions{
		Addr:           a.cfg.RedisAddr,
		User:           a.cfg.RedisUser,
		Password:       a.cfg.RedisPassword,
		DB:             a.cfg.RedisDB,
		DialTimeout:    a.cfg.RedisDT,
		ReadTimeout:    a.cfg.RedisRT,
		WriteTimeout:   a.cfg.RedisWT,
		PoolSize:       a.cfg.RedisPoolSize,
		ConnectTimeout: a.cfg.RedisConnectTimeout,
		RetryInterval:  a.cfg.RedisRetryInterval,
		MaxWait:        a.cfg.RedisMaxWait,
		PingTimeout:    a.cfg.RedisPingTimeout,
		WarnThreshold:  a.cfg.RedisWarnThreshold,
	}, a.logger)
	if err != nil {
		return nil, nil, fmt.Errorf("connect redis: %w", err)
	}
	a.redisClient = client
	a.logger.Info("Redis initialized successfully")

	store := redisstore.NewStore(client).WithCacheTTL(a.cfg.ExtractorCacheTTL)
	if a.cfg.ExtractorCacheTTL <= 0 {
		return store, nil, nil
	}
	return store, store, nil
}

func (a *App) Run() error {
	defer func() { _ = a.logger.Sync() }()

	a.logger.Infof("🚀 Starting LinkVault v%s on %s (storage=%s)", version.Version, a.cfg.ListenPort, a.cfg.Storage)
	a.logger.Info(version.String())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a.startBackground()

	errCh := make(chan error, 1)
	go func() {
		if err := a.server.Start(); err != nil {
			errCh <- fmt.Errorf("http server error: %w", err)
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
		a.logger.Info("⏳ Shutting down gracefully...")
	case runErr = <-errCh:
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()
	if err := a.server.Stop(shutdownCtx); err != nil && runErr == nil {
		runErr = fmt.Errorf("failed to stop server: %w", err)
	}

	// After the server, so creates still draining can queue a retry. Jobs
	// left in the queue at this point are dropped and logged.
	a.retrier.Stop()

	if a.redisClient != nil {
		utils.CloseLogged(a.redisClient, "redis", a.logger)
	}

	if runErr != nil {
		return runErr
	}
	a.logger.Info("✅ LinkVault stopped cleanly")
	return nil
}

// startBackground starts the retrier detached from the signal context; Stop
// ends its workers once the server has drained.
func (a *App) startBackground() {
	a.retrier.Start(context.Background())
}
