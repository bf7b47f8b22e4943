package app

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/flakeguard/flakeguard/config"
	"github.com/flakeguard/flakeguard/handlers"
	"github.com/flakeguard/flakeguard/internal/retry"
	"github.com/flakeguard/flakeguard/middleware"
	"github.com/flakeguard/flakeguard/repositories"
	"github.com/flakeguard/flakeguard/repositories/postgres"
	"github.com/flakeguard/flakeguard/services/analysis"
	"github.com/flakeguard/flakeguard/services/costing"
	"github.com/flakeguard/flakeguard/services/providers"
	"github.com/flakeguard/flakeguard/services/providers/factory"
	"github.com/flakeguard/flakeguard/services/ratelimit"
	"github.com/flakeguard/flakeguard/services/routing"
)

// Dependencies holds all application dependencies.
// This is the central wiring point for dependency injection.
type Dependencies struct {
	// Infrastructure
	Config *config.Config
	DB     *postgres.DB // nil when no database is configured
	Logger *zap.Logger

	// Repositories
	Usage repositories.UsageRepository // nil when no database is configured

	// Services
	Router     *routing.Router
	Limiter    *ratelimit.Limiter
	Calculator *costing.Calculator
	Analysis   *analysis.Service

	// HTTP layer
	Health    *handlers.HealthHandler
	Analyze   *handlers.AnalyzeHandler
	UsageAPI  *handlers.UsageHandler // nil when no database is configured
	Auth      *middleware.AuthMiddleware
	RateLimit *middleware.RateLimitMiddleware
}

// NewDependencies creates and wires up all application dependencies.
func NewDependencies(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Dependencies, error) {
	deps := &Dependencies{
		Config: cfg,
		Logger: logger,
	}

	if err := deps.initDatabase(ctx, cfg); err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	if err := deps.initProviders(cfg); err != nil {
		return nil, fmt.Errorf("failed to initialize providers: %w", err)
	}

	deps.initServices(cfg)
	deps.initHTTP(cfg)

	logger.Info("all dependencies initialized successfully")
	return deps, nil
}

// initDatabase opens the usage ledger database when one is configured.
// The service runs without it; usage recording and budget alerts are
// simply disabled.
func (d *Dependencies) initDatabase(ctx context.Context, cfg *config.Config) error {
	if !cfg.Database.Enabled() {
		d.Logger.Info("no database configured, usage ledger disabled")
		return nil
	}

	db, err := postgres.NewDB(cfg.Database, d.Logger)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	d.DB = db
	d.Usage = postgres.NewUsageRepository(db, d.Logger)

	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}

	d.Logger.Info("database connection established")
	return nil
}

// initProviders builds the configured provider adapters and the fallback
// router over them, in configured order.
func (d *Dependencies) initProviders(cfg *config.Config) error {
	var provs []providers.Provider
	for _, name := range cfg.ProviderOrder() {
		pc, err := cfg.ProviderFor(name)
		if err != nil {
			return err
		}
		p, err := factory.New(name, providers.Config{
			APIKey:  pc.APIKey,
			BaseURL: pc.BaseURL,
			Timeout: pc.Timeout,
		}, d.Logger)
		if err != nil {
			return fmt.Errorf("failed to create provider %q: %w", name, err)
		}
		provs = append(provs, p)
	}

	router, err := routing.NewRouter(provs, d.Logger)
	if err != nil {
		return err
	}
	d.Router = router

	d.Logger.Info("providers initialized",
		zap.Strings("order", cfg.ProviderOrder()))
	return nil
}

// initServices wires the rate limiter, cost calculator and the analysis
// orchestration service.
func (d *Dependencies) initServices(cfg *config.Config) {
	d.Limiter = ratelimit.NewLimiter(cfg.RateLimit.RequestsPerMinute, d.Logger)
	d.Calculator = costing.NewCalculator(nil)
	d.Analysis = analysis.NewService(
		d.Router,
		d.Calculator,
		d.Usage,
		retry.DefaultConfig(),
		cfg.Budget.AlertThresholdUSD,
		d.Logger,
	)
}

// initHTTP wires handlers and HTTP middleware.
func (d *Dependencies) initHTTP(cfg *config.Config) {
	d.Health = handlers.NewHealthHandler(d.DB, d.Logger)
	d.Analyze = handlers.NewAnalyzeHandler(d.Analysis, d.Logger)
	if d.Usage != nil {
		d.UsageAPI = handlers.NewUsageHandler(d.Usage, d.Logger)
	}
	d.Auth = middleware.NewAuthMiddleware(cfg.Auth.APIKeyHashes, d.Logger)
	d.RateLimit = middleware.NewRateLimitMiddleware(d.Limiter, d.Logger)
}

// Close releases held resources.
func (d *Dependencies) Close() error {
	if d.DB != nil {
		return d.DB.Close()
	}
	return nil
}
