// Package container wires the approval engine together: configuration,
// database, repositories, collaborator ports, dispatcher, engine, workers,
// and the HTTP server. Initialization is ordered and teardown runs in
// reverse.
package container

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/garyjia/approval-engine/internal/application/dispatcher"
	"github.com/garyjia/approval-engine/internal/application/engine"
	"github.com/garyjia/approval-engine/internal/application/planner"
	"github.com/garyjia/approval-engine/internal/application/port"
	"github.com/garyjia/approval-engine/internal/config"
	"github.com/garyjia/approval-engine/internal/domain/event"
	"github.com/garyjia/approval-engine/internal/infrastructure/converter"
	"github.com/garyjia/approval-engine/internal/infrastructure/directory"
	larknotify "github.com/garyjia/approval-engine/internal/infrastructure/external/lark"
	"github.com/garyjia/approval-engine/internal/infrastructure/persistence/repository"
	"github.com/garyjia/approval-engine/internal/infrastructure/scheduler"
	httpserver "github.com/garyjia/approval-engine/internal/interfaces/http"
	"github.com/garyjia/approval-engine/internal/lark"
	"github.com/garyjia/approval-engine/internal/worker"
	"github.com/garyjia/approval-engine/pkg/database"
	"github.com/garyjia/approval-engine/pkg/utils"
)

// RepositoryBundle groups all repositories for convenient access.
type RepositoryBundle struct {
	Rules     port.RuleRepository
	States    port.StateRepository
	Employees port.EmployeeRepository
	Audit     port.AuditRepository
}

// Container manages all application dependencies and lifecycle.
type Container struct {
	config *config.Config
	logger *zap.Logger

	// Infrastructure - Data
	db           *database.DB
	repositories *RepositoryBundle
	auditRepo    *repository.AuditRepository

	// Collaborator ports
	directory port.Directory
	converter port.CurrencyConverter
	scheduler *scheduler.TimerScheduler

	// External
	larkClient *lark.Client
	notifier   port.Notifier

	// Application
	dispatcher dispatcher.Dispatcher
	planner    *planner.Planner
	engine     engine.Engine

	// Interfaces
	httpServer *httpserver.Server

	// Workers
	workers *worker.Manager

	// Lifecycle
	mu     sync.Mutex
	ctx    context.Context
	cancel context.CancelFunc
	ready  atomic.Bool
	closed atomic.Bool
}

// New creates a new container from configuration.
// It does not initialize components - call Start() to initialize.
func New(cfg *config.Config, logger *zap.Logger) (*Container, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Container{
		config: cfg,
		logger: logger,
	}, nil
}

// Start initializes all components in dependency order:
// 1. Database, migrations, and repositories
// 2. Collaborator ports (directory, converter, scheduler)
// 3. Dispatcher with audit and notification handlers
// 4. Engine, scheduler callback, and state restore
// 5. Workers and HTTP server
func (c *Container) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed.Load() {
		return fmt.Errorf("container has been closed")
	}
	if c.ready.Load() {
		return fmt.Errorf("container already started")
	}

	c.ctx, c.cancel = context.WithCancel(ctx)
	c.logger.Info("Starting container initialization")

	if err := c.initDatabase(); err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	c.logger.Info("Database initialized")

	c.initCollaborators()
	c.logger.Info("Collaborator ports initialized")

	if err := c.initDispatcher(); err != nil {
		return fmt.Errorf("failed to initialize dispatcher: %w", err)
	}
	c.logger.Info("Dispatcher initialized")

	if err := c.initEngine(); err != nil {
		return fmt.Errorf("failed to initialize engine: %w", err)
	}
	c.logger.Info("Engine initialized")

	if err := c.initWorkersAndServer(); err != nil {
		return fmt.Errorf("failed to initialize workers: %w", err)
	}
	c.logger.Info("Workers started")

	c.ready.Store(true)
	c.logger.Info("Container started successfully")

	return nil
}

// Close gracefully shuts down all components in reverse order.
func (c *Container) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed.Load() {
		return fmt.Errorf("container already closed")
	}

	c.logger.Info("Closing container")

	var errs []error

	if c.cancel != nil {
		c.cancel()
	}

	if c.httpServer != nil {
		if err := c.httpServer.Stop(); err != nil {
			errs = append(errs, fmt.Errorf("stop http server: %w", err))
		}
	}

	if c.workers != nil {
		c.workers.StopAll()
		c.logger.Info("Workers stopped")
	}

	if c.dispatcher != nil {
		if err := c.dispatcher.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close dispatcher: %w", err))
		} else {
			c.logger.Info("Dispatcher closed")
		}
	}

	if c.db != nil {
		if err := c.db.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close database: %w", err))
		} else {
			c.logger.Info("Database closed")
		}
	}

	c.closed.Store(true)
	c.ready.Store(false)

	if len(errs) > 0 {
		c.logger.Error("Container closed with errors", zap.Int("error_count", len(errs)))
		return fmt.Errorf("container closed with %d errors", len(errs))
	}

	c.logger.Info("Container closed successfully")
	return nil
}

// Ready returns true when all components are initialized.
func (c *Container) Ready() bool {
	return c.ready.Load()
}

// Engine exposes the approval engine (for testing and embedding).
func (c *Container) Engine() engine.Engine {
	return c.engine
}

// Repositories exposes the repository bundle.
func (c *Container) Repositories() *RepositoryBundle {
	return c.repositories
}

// HTTPServer exposes the HTTP server.
func (c *Container) HTTPServer() *httpserver.Server {
	return c.httpServer
}

func (c *Container) initDatabase() error {
	db, err := database.New(database.Config{
		Path:            c.config.Database.Path,
		MaxOpenConns:    c.config.Database.MaxOpenConns,
		MaxIdleConns:    c.config.Database.MaxIdleConns,
		ConnMaxLifetime: c.config.Database.ConnMaxLifetime,
	}, c.logger)
	if err != nil {
		return err
	}
	c.db = db

	migrator := database.NewMigrator(db, c.logger)
	if err := migrator.RunMigrations(); err != nil {
		return fmt.Errorf("migrations: %w", err)
	}

	c.auditRepo = repository.NewAuditRepository(db.DB, c.logger)
	c.repositories = &RepositoryBundle{
		Rules:     repository.NewRuleRepository(db.DB, c.logger),
		States:    repository.NewStateRepository(db.DB, c.logger),
		Employees: repository.NewEmployeeRepository(db.DB, c.logger),
		Audit:     c.auditRepo,
	}

	return nil
}

func (c *Container) initCollaborators() {
	c.directory = directory.New(c.repositories.Employees, c.logger)
	c.converter = converter.New(c.config.Currency.Base, c.config.Currency.Rates, c.logger)
	c.scheduler = scheduler.New(c.logger)
}

func (c *Container) initDispatcher() error {
	disp := dispatcher.NewDispatcher(dispatcher.WithLogger(utils.NewSugar(c.logger)))

	// Every event lands in the audit log.
	disp.SubscribeAll("audit-sink", func(ctx context.Context, evt *event.Event) error {
		return c.auditRepo.Record(ctx, evt)
	})

	if c.config.Lark.Enabled {
		c.larkClient = lark.NewClient(lark.Config{
			AppID:     c.config.Lark.AppID,
			AppSecret: c.config.Lark.AppSecret,
		}, c.logger)
		c.notifier = larknotify.NewNotifier(c.larkClient, c.repositories.Employees, c.logger)

		// Delivery failures never block transitions.
		notify := func(ctx context.Context, evt *event.Event) error {
			if err := c.notifier.Notify(ctx, evt); err != nil {
				c.logger.Warn("Notification delivery failed",
					zap.String("event_type", string(evt.Type)),
					zap.String("expense_id", evt.ExpenseID),
					zap.Error(err),
				)
			}
			return nil
		}
		for _, t := range []event.Type{
			event.TypeLevelActivated,
			event.TypeEscalated,
			event.TypeStalled,
			event.TypeResolved,
			event.TypeCancelled,
		} {
			disp.Subscribe(t, "lark-notifier", notify)
		}
	}

	c.dispatcher = disp
	return nil
}

func (c *Container) initEngine() error {
	c.planner = planner.New(c.directory, c.logger)
	c.engine = engine.New(c.planner, c.repositories.States, c.dispatcher, c.scheduler, c.logger)

	// Timeouts flow back into the engine as escalation attempts.
	c.scheduler.SetHandler(func(ctx context.Context, expenseID string, level int) {
		if _, err := c.engine.Escalate(ctx, expenseID, level); err != nil {
			c.logger.Error("Escalation failed",
				zap.String("expense_id", expenseID),
				zap.Int("level", level),
				zap.Error(err),
			)
		}
	})

	if err := c.engine.Restore(c.ctx); err != nil {
		return fmt.Errorf("restore in-flight states: %w", err)
	}

	return nil
}

func (c *Container) initWorkersAndServer() error {
	c.workers = worker.NewManager(c.logger)
	c.workers.Register(c.scheduler)
	if err := c.workers.StartAll(c.ctx); err != nil {
		return err
	}

	c.httpServer = httpserver.NewServer(
		httpserver.ServerConfig{
			Host:         c.config.Server.Host,
			Port:         c.config.Server.Port,
			ReadTimeout:  c.config.Server.ReadTimeout,
			WriteTimeout: c.config.Server.WriteTimeout,
		},
		c.engine,
		c.repositories.Rules,
		c.auditRepo,
		c.converter,
		utils.NewSugar(c.logger),
	)

	return nil
}
