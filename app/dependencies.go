// Package app wires configuration, persistence, the broker, and the resource
// services into one assembly the gateway serves.
package app

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/nexbase/crudgate/auth"
	"github.com/nexbase/crudgate/broker"
	"github.com/nexbase/crudgate/config"
	"github.com/nexbase/crudgate/handlers"
	"github.com/nexbase/crudgate/middleware"
	"github.com/nexbase/crudgate/repositories"
	"github.com/nexbase/crudgate/repositories/postgres"
	"github.com/nexbase/crudgate/services"
	"github.com/nexbase/crudgate/storage"
)

// defaultEconomy seeds the billing rates for creditable actions. Negative
// deltas debit the owner when the action completes.
var defaultEconomy = map[string]int64{
	"documents.create": -5,
	"documents.export": -15,
}

// Dependencies holds all application dependencies.
// This is the central wiring point for dependency injection.
type Dependencies struct {
	// Infrastructure
	Config *config.Config
	DB     *postgres.DB // nil when running on in-memory stores
	Logger *zap.Logger
	Broker *broker.Broker

	// Ledger
	CreditEvents repositories.CreditEventRepository
	Ledger       *services.Ledger

	// HTTP surface
	AuthMiddleware *middleware.AuthMiddleware
	ActionHandler  *handlers.ActionHandler
	HealthHandler  *handlers.HealthHandler
}

// NewDependencies creates and wires up all application dependencies.
func NewDependencies(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Dependencies, error) {
	deps := &Dependencies{
		Config: cfg,
		Logger: logger,
		Broker: broker.New(logger, broker.BusConfig{
			BufferSize:  cfg.Bus.BufferSize,
			WorkerCount: cfg.Bus.WorkerCount,
		}),
	}

	if err := deps.initDatabase(ctx, cfg); err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	if err := deps.initServices(cfg); err != nil {
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	deps.initHTTP(cfg)

	logger.Info("all dependencies initialized successfully")
	return deps, nil
}

// initDatabase connects to PostgreSQL when configured. Without a database
// every store falls back to its in-memory adapter.
func (d *Dependencies) initDatabase(ctx context.Context, cfg *config.Config) error {
	if cfg.Database == nil {
		d.Logger.Info("no database configured, using in-memory stores")
		return nil
	}

	db, err := postgres.NewDB(cfg.Database.DSN(), postgres.PoolConfig{
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	}, d.Logger)
	if err != nil {
		return err
	}

	if err := db.InitSchema(ctx); err != nil {
		return err
	}

	d.DB = db
	d.Logger.Info("database connection established",
		zap.String("connection", cfg.Database.LogString()))
	return nil
}

// initServices assembles the resource services and the ledger reconciler.
func (d *Dependencies) initServices(cfg *config.Config) error {
	tenantID := cfg.Tenant.DefaultID

	builders := []func() error{
		func() error {
			_, err := services.NewUsers(d.Broker, d.newStore("users", "email"), d.Logger, tenantID)
			return err
		},
		func() error {
			_, err := services.NewDeleted(d.Broker, d.newStore("deleted"), d.Logger, tenantID)
			return err
		},
		func() error {
			_, err := services.NewArchives(d.Broker, d.newStore("archives"), d.Logger, tenantID)
			return err
		},
		func() error {
			_, err := services.NewActionEconomy(d.Broker, d.newStore("action-economy"), d.Logger, tenantID, defaultEconomy)
			return err
		},
		func() error {
			_, err := services.NewDocuments(d.Broker, d.newStore("documents", "slug"), d.Logger, tenantID)
			return err
		},
		func() error {
			_, err := services.NewMessages(d.Broker, d.newStore("messages"), d.Logger, tenantID)
			return err
		},
	}
	for _, build := range builders {
		if err := build(); err != nil {
			return err
		}
	}

	if d.DB != nil {
		d.CreditEvents = postgres.NewCreditEventRepository(d.DB, d.Logger)
	} else {
		d.CreditEvents = repositories.NewMemoryCreditEventRepository()
	}
	d.Ledger = services.NewLedger(d.Broker, d.CreditEvents, d.Logger)

	d.Logger.Info("resource services registered")
	return nil
}

// newStore builds the backing store for one collection, Postgres when a
// database is configured, memory otherwise.
func (d *Dependencies) newStore(collection string, unique ...string) storage.Store {
	if d.DB != nil {
		return postgres.NewDocumentStore(d.DB, collection, d.Logger, unique...)
	}
	return storage.NewMemoryStore(collection, unique...)
}

// initHTTP builds the middleware and handlers served by the router.
func (d *Dependencies) initHTTP(cfg *config.Config) {
	validator := auth.NewValidator(cfg.Auth)
	d.AuthMiddleware = middleware.NewAuthMiddleware(validator, d.Logger)
	d.ActionHandler = handlers.NewActionHandler(d.Broker, d.Logger)

	var checker handlers.DatabaseChecker
	if d.DB != nil {
		checker = d.DB
	}
	d.HealthHandler = handlers.NewHealthHandler(checker, d.Logger)
}

// Start launches the broker's event bus workers.
func (d *Dependencies) Start() error {
	return d.Broker.Start()
}

// Close gracefully shuts down all dependencies
func (d *Dependencies) Close(ctx context.Context) error {
	d.Logger.Info("shutting down dependencies")

	var errs []error

	if err := d.Broker.Stop(); err != nil {
		errs = append(errs, fmt.Errorf("failed to stop broker: %w", err))
	}

	if d.DB != nil {
		if err := d.DB.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close database: %w", err))
		} else {
			d.Logger.Info("database connection closed")
		}
	}

	// Sync logger
	if d.Logger != nil {
		_ = d.Logger.Sync()
	}

	if len(errs) > 0 {
		return fmt.Errorf("errors during shutdown: %v", errs)
	}

	return nil
}
