package api

import (
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/joacominatel/connections/internal/application"
	"github.com/joacominatel/connections/internal/infrastructure/auth"
	"github.com/joacominatel/connections/internal/infrastructure/logging"
	"github.com/joacominatel/connections/internal/infrastructure/metrics"
	"github.com/joacominatel/connections/internal/infrastructure/sharecodec"
)

// RouterConfig holds dependencies for route registration.
type RouterConfig struct {
	EvaluateUseCase      *application.EvaluateUseCase
	QueryAccountsUseCase *application.QueryAccountsUseCase
	AudienceUseCase      *application.AudienceUseCase
	CreateAccountUseCase *application.CreateAccountUseCase
	IngestUseCase        *application.IngestSnapshotUseCase
	ScoreUseCase         *application.ScoreAccountsUseCase
	OverviewUseCase      *application.OverviewUseCase
	SubscriptionsUseCase *application.ManageSubscriptionsUseCase
	ShareCodec           *sharecodec.Codec
	JWTManager           *auth.JWTManager
	Authenticator        *auth.AdminAuthenticator
	HealthCheckers       []application.HealthChecker

	// Enabled false leaves only health and admin routes answering.
	Enabled   bool
	QueueSize func() int

	Logger  *logging.Logger
	Metrics *metrics.Metrics
}

// RegisterRoutes sets up all API routes on the server.
func RegisterRoutes(e *echo.Echo, config RouterConfig) {
	// prometheus metrics endpoint (no auth, standard scraping path)
	if config.Metrics != nil {
		e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(
			config.Metrics.Registry,
			promhttp.HandlerOpts{
				Registry:          config.Metrics.Registry,
				EnableOpenMetrics: true,
			},
		)))

		// apply metrics middleware to all routes
		e.Use(metrics.Middleware(config.Metrics))
	}

	// health endpoints (no auth required)
	NewHealthHandler(config.Enabled, config.HealthCheckers...).RegisterHealthRoutes(e)

	// public engine and read routes
	connections := e.Group("/api/connections", EnabledMiddleware(config.Enabled, nil))

	if config.EvaluateUseCase != nil {
		NewScoringHandler(config.EvaluateUseCase).RegisterRoutes(connections)
	}
	if config.QueryAccountsUseCase != nil {
		NewAccountHandler(config.QueryAccountsUseCase).RegisterRoutes(connections)
	}
	var audienceHandler *AudienceHandler
	if config.AudienceUseCase != nil {
		audienceHandler = NewAudienceHandler(config.AudienceUseCase)
		audienceHandler.RegisterRoutes(connections)
	}
	if config.ShareCodec != nil {
		NewShareHandler(config.ShareCodec).RegisterRoutes(connections)
	}

	// admin control plane, everything but login needs a token
	admin := e.Group("/api/admin", AdminAuthMiddleware(AuthConfig{
		JWTManager: config.JWTManager,
		Skipper:    PublicRoutesSkipper("/api/admin/auth/login"),
	}))
	adminHandler := NewAdminHandler(AdminHandlerConfig{
		Authenticator: config.Authenticator,
		JWTManager:    config.JWTManager,
		Overview:      config.OverviewUseCase,
		CreateAccount: config.CreateAccountUseCase,
		Ingest:        config.IngestUseCase,
		Scoring:       config.ScoreUseCase,
		Enabled:       config.Enabled,
		QueueSize:     config.QueueSize,
	})
	adminHandler.RegisterAuthRoutes(admin)

	adminConnections := admin.Group("/connections")
	adminHandler.RegisterRoutes(adminConnections)

	if audienceHandler != nil {
		audienceHandler.RegisterAdminRoutes(adminConnections)
	}
	if config.SubscriptionsUseCase != nil {
		NewSubscriptionHandler(config.SubscriptionsUseCase).RegisterRoutes(adminConnections)
	}

	config.Logger.Info("api routes registered",
		"health_endpoints", []string{"/health", "/ready", "/api/health", "/api/connections/health"},
		"metrics_enabled", config.Metrics != nil,
		"connections_enabled", config.Enabled,
		"api_prefix", "/api/connections",
		"admin_prefix", "/api/admin",
	)
}
