package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joacominatel/connections/internal/application"
	"github.com/joacominatel/connections/internal/domain"
	"github.com/joacominatel/connections/internal/infrastructure/api"
	"github.com/joacominatel/connections/internal/infrastructure/auth"
	"github.com/joacominatel/connections/internal/infrastructure/cache"
	"github.com/joacominatel/connections/internal/infrastructure/config"
	"github.com/joacominatel/connections/internal/infrastructure/database"
	"github.com/joacominatel/connections/internal/infrastructure/logging"
	"github.com/joacominatel/connections/internal/infrastructure/messaging"
	"github.com/joacominatel/connections/internal/infrastructure/metrics"
	"github.com/joacominatel/connections/internal/infrastructure/postgres"
	"github.com/joacominatel/connections/internal/infrastructure/scheduler"
	"github.com/joacominatel/connections/internal/infrastructure/sharecodec"
	"github.com/joacominatel/connections/internal/infrastructure/worker"
)

const (
	// rescoringTimeout bounds one scheduled rescoring run
	rescoringTimeout = 10 * time.Minute

	existsCacheTTL     = time.Minute
	existsCacheCleanup = 5 * time.Minute
)

func main() {
	logger := logging.New()
	logger.Info("connections starting up")

	if err := run(logger); err != nil {
		logger.Error("application failed", "error", err.Error())
		os.Exit(1)
	}
}

func run(logger *logging.Logger) error {
	// load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", "error", err.Error())
		return err
	}
	logger = logging.NewWithLevel(logging.ParseLevel(cfg.Server.LogLevel))

	// the engine is the only place scores are computed
	defaults, err := config.LoadScoringDefaults(cfg.Scoring.DefaultsFile)
	if err != nil {
		return err
	}
	engine, err := domain.NewEngine(defaults)
	if err != nil {
		return err
	}

	// establish database connection
	conn, err := database.New(cfg.Database, logger)
	if err != nil {
		return err
	}
	defer conn.Close()

	// run migrations
	migrator := database.NewMigrator(conn, logger)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	if err := migrator.Run(ctx); err != nil {
		return err
	}

	// verify health after migrations
	if err := conn.HealthCheck(ctx); err != nil {
		return err
	}

	logger.Info("connections infrastructure ready", "schema", conn.Schema())

	// initialize prometheus metrics
	appMetrics := metrics.New()

	// initialize repositories
	pool := conn.Pool()
	accountRepo := postgres.NewAccountRepository(pool)
	snapshotRepo := postgres.NewSnapshotRepository(pool)
	webhookSubRepo := postgres.NewWebhookSubscriptionRepository(pool)
	followerRepo := postgres.NewFollowerRepository(pool)
	uow := postgres.NewUnitOfWork(pool)

	checkers := []application.HealthChecker{conn}

	// initialize redis (optional - disabled if REDIS_URL is empty)
	redisClient, err := cache.NewRedisClient(cache.RedisConfig{URL: cfg.Redis.URL}, logger)
	if err != nil {
		logger.Error("failed to create redis client", "error", err.Error())
		return err
	}
	if redisClient != nil {
		if err := redisClient.Connect(ctx); err != nil {
			logger.Warn("redis connection failed, continuing without cache", "error", err.Error())
			redisClient = nil
		} else {
			defer redisClient.Close()
			checkers = append(checkers, redisClient)
			logger.Info("redis leaderboard cache enabled")
		}
	}

	// initialize nats (optional - disabled if NATS_URL is empty)
	publisher, err := messaging.Connect(cfg.NATS.URL, cfg.NATS.Token, logger)
	if err != nil {
		logger.Warn("nats connection failed, continuing without event bus", "error", err.Error())
		publisher = nil
	}
	if publisher != nil {
		defer publisher.Close()
		checkers = append(checkers, publisher)
	}

	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()

	// snapshot ingestion worker (async buffer pattern)
	ingestionWorker := worker.NewSnapshotIngestionWorker(snapshotRepo, worker.DefaultSnapshotIngestionConfig(), logger).
		WithMetrics(appMetrics)
	ingestionWorker.Start(workerCtx)

	// webhook worker for breakout alerts
	webhookWorker := worker.NewWebhookWorker(webhookSubRepo, worker.DefaultWebhookWorkerConfig(), logger).
		WithMetrics(appMetrics)
	webhookWorker.Start(workerCtx)

	// account existence cache keeps ingestion off the database
	existsCache := cache.NewAccountExistsCache(accountRepo, existsCacheTTL)
	go existsCache.RunCleanup(workerCtx, existsCacheCleanup)

	// initialize use cases
	evaluateUseCase := application.NewEvaluateUseCase(engine, logger).
		WithRecorder(appMetrics).
		WithConcurrency(cfg.Scoring.Concurrency)

	scoreUseCase := application.NewScoreAccountsUseCase(
		accountRepo,
		snapshotRepo,
		engine,
		application.ScoringConfig{
			Window:      cfg.Scoring.Window,
			Concurrency: cfg.Scoring.Concurrency,
		},
		logger,
	).WithNotifier(webhookWorker).WithRecorder(appMetrics)

	queryUseCase := application.NewQueryAccountsUseCase(accountRepo, engine, logger).
		WithFollowers(followerRepo)
	audienceUseCase := application.NewAudienceUseCase(accountRepo, followerRepo, engine, logger).
		WithUnitOfWork(uow)

	if redisClient != nil {
		lister := cache.NewCachedAccountLister(accountRepo, redisClient, logger)
		scoreUseCase = scoreUseCase.WithLeaderboard(redisClient)
		queryUseCase = queryUseCase.WithLister(lister)
		audienceUseCase = audienceUseCase.WithLister(lister)
	}
	if publisher != nil {
		scoreUseCase = scoreUseCase.WithPublisher(publisher)
	}

	ingestUseCase := application.NewIngestSnapshotUseCase(snapshotRepo, accountRepo, logger).
		WithUnitOfWork(uow).
		WithAsyncQueue(ingestionWorker.SnapshotChannel()).
		WithExistsChecker(existsCache)

	createAccountUseCase := application.NewCreateAccountUseCase(accountRepo, defaults, logger)
	overviewUseCase := application.NewOverviewUseCase(accountRepo, snapshotRepo, logger, checkers...)
	subscriptionsUseCase := application.NewManageSubscriptionsUseCase(webhookSubRepo, accountRepo, logger)

	// admin auth
	authenticator, err := auth.NewAdminAuthenticator(cfg.Auth.AdminUsername, cfg.Auth.AdminPassword, cfg.Auth.AdminPasswordHash)
	if err != nil {
		return err
	}
	jwtManager := auth.NewJWTManager(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)

	// scheduled rescoring
	rescoring := scheduler.New(scoreUseCase, rescoringTimeout, logger)
	if err := rescoring.Register(cfg.Scoring.Schedule); err != nil {
		if !errors.Is(err, scheduler.ErrDisabled) {
			return err
		}
		logger.Info("scheduled rescoring disabled")
	} else if cfg.Server.Enabled {
		rescoring.Start()
	}

	// initialize http server
	serverConfig := api.DefaultServerConfig()
	serverConfig.Port = ":" + cfg.Server.Port
	serverConfig.BodyLimit = cfg.Server.BodyLimit
	serverConfig.AllowOrigins = cfg.Server.AllowOrigins

	server := api.NewServer(serverConfig, logger)

	// register routes
	api.RegisterRoutes(server.Echo(), api.RouterConfig{
		EvaluateUseCase:      evaluateUseCase,
		QueryAccountsUseCase: queryUseCase,
		AudienceUseCase:      audienceUseCase,
		CreateAccountUseCase: createAccountUseCase,
		IngestUseCase:        ingestUseCase,
		ScoreUseCase:         scoreUseCase,
		OverviewUseCase:      overviewUseCase,
		SubscriptionsUseCase: subscriptionsUseCase,
		ShareCodec:           sharecodec.New(logger),
		JWTManager:           jwtManager,
		Authenticator:        authenticator,
		HealthCheckers:       checkers,
		Enabled:              cfg.Server.Enabled,
		QueueSize:            ingestionWorker.QueueSize,
		Logger:               logger,
		Metrics:              appMetrics,
	})

	// start server in goroutine
	go func() {
		if err := server.Start(); err != nil {
			logger.Error("http server error", "error", err.Error())
		}
	}()

	// wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("connections shutting down")

	// stop accepting requests first so nothing new reaches the buffers
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), serverConfig.ShutdownTimeout)
	defer shutdownCancel()

	var shutdownErr error
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err.Error())
		shutdownErr = err
	}

	// wait for a running rescoring pass to finish
	rescoring.Stop()

	// stop background workers, draining their buffers
	workerCancel()
	ingestionWorker.Stop()
	webhookWorker.Stop()

	logger.Info("connections shutdown complete")
	return shutdownErr
}
