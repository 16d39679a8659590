// Package app assembles the gateway from its configuration.
package app

import (
	"errors"
	"net/http"

	"github.com/geko-labs/gateway/internal/access"
	"github.com/geko-labs/gateway/internal/auth"
	"github.com/geko-labs/gateway/internal/config"
	"github.com/geko-labs/gateway/internal/database"
	"github.com/geko-labs/gateway/internal/metrics"
	"github.com/geko-labs/gateway/internal/probe"
	"github.com/geko-labs/gateway/internal/server"
	"github.com/geko-labs/gateway/internal/users"
	"github.com/geko-labs/gateway/internal/workspaces"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var errMissingLogger = errors.New("app: logger required")

// Options carries collaborators that tests substitute.
type Options struct {
	// Registry receives the gateway metrics; nil creates a private registry.
	Registry *prometheus.Registry
	// Prober overrides the outbound connectivity probe.
	Prober server.Prober
}

// App is a wired gateway.
type App struct {
	Handler http.Handler
	DB      *gorm.DB
}

// New opens the store and wires services, the access gate and the router.
func New(cfg config.AppConfig, logger *zap.Logger, options Options) (*App, error) {
	if logger == nil {
		return nil, errMissingLogger
	}

	db, err := database.Open(database.Config{
		Driver:       cfg.DatabaseDriver,
		Path:         cfg.DatabasePath,
		DSN:          cfg.DatabaseDSN,
		MaxOpenConns: cfg.DatabaseMaxOpenConns,
		Logger:       logger,
	})
	if err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}

	handler, err := buildHandler(cfg, db, logger, options)
	if err != nil {
		_ = sqlDB.Close()
		return nil, err
	}
	return &App{Handler: handler, DB: db}, nil
}

func buildHandler(cfg config.AppConfig, db *gorm.DB, logger *zap.Logger, options Options) (http.Handler, error) {
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}

	userStore, err := users.NewStore(db)
	if err != nil {
		return nil, err
	}
	userService, err := users.NewService(users.ServiceConfig{
		Store:  userStore,
		Hasher: users.NewBcryptHasher(cfg.AuthBcryptCost),
		Logger: logger.Named("users"),
	})
	if err != nil {
		return nil, err
	}

	workspaceStore, err := workspaces.NewStore(db)
	if err != nil {
		return nil, err
	}
	workspaceService, err := workspaces.NewService(workspaces.ServiceConfig{
		Store:  workspaceStore,
		Logger: logger.Named("workspaces"),
	})
	if err != nil {
		return nil, err
	}

	registry := options.Registry
	if registry == nil {
		registry = prometheus.NewRegistry()
	}
	collector := metrics.NewCollector(registry)

	var tokens server.TokenIssuer
	var resolver access.IdentityResolver = access.NewHeaderResolver(access.HeaderUserID)
	if cfg.AuthSigningSecret != "" {
		issuer, err := auth.NewTokenIssuer(auth.TokenIssuerConfig{
			SigningSecret: []byte(cfg.AuthSigningSecret),
			TokenTTL:      cfg.AuthTokenTTL,
		})
		if err != nil {
			return nil, err
		}
		tokens = issuer
	}
	if cfg.TokenAuthEnabled() {
		validator, err := auth.NewSessionValidator(auth.SessionValidatorConfig{
			SigningSecret: []byte(cfg.AuthSigningSecret),
			CookieName:    cfg.AuthCookieName,
		})
		if err != nil {
			return nil, err
		}
		resolver = validator
	} else {
		logger.Warn("trusting caller identity header", zap.String("header", access.HeaderUserID))
	}

	gate, err := access.NewGate(access.GateConfig{
		Resolver: resolver,
		Checker:  workspaceService,
		Accounts: userService,
		Recorder: collector,
		Logger:   logger.Named("access"),
	})
	if err != nil {
		return nil, err
	}

	prober := options.Prober
	if prober == nil {
		client, err := probe.NewClient(probe.Config{
			TargetURL: cfg.HealthProbeURL,
			Timeout:   cfg.HealthProbeTimeout,
			Logger:    logger.Named("probe"),
		})
		if err != nil {
			return nil, err
		}
		prober = client
	}

	return server.NewHTTPHandler(server.Dependencies{
		Users:               userService,
		Workspaces:          workspaceService,
		Authorizer:          gate,
		Tokens:              tokens,
		Prober:              prober,
		DatabasePing:        sqlDB.PingContext,
		Metrics:             collector,
		MetricsHandler:      metrics.Handler(registry),
		Logger:              logger.Named("http"),
		AllowedOrigins:      cfg.CORSAllowedOrigins,
		TrustedProxies:      cfg.HTTPTrustedProxies,
		AuthRatePerMinute:   cfg.RateLimitAuthPerMinute,
		SessionCookieName:   cfg.AuthCookieName,
		HealthProbeDeadline: cfg.HealthProbeTimeout,
	})
}

// Close releases the database connection.
func (a *App) Close() error {
	sqlDB, err := a.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
