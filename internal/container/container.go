package container

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/garyjia/tutoring-backoffice/internal/application/dispatcher"
	"github.com/garyjia/tutoring-backoffice/internal/application/port"
	"github.com/garyjia/tutoring-backoffice/internal/application/service"
	"github.com/garyjia/tutoring-backoffice/internal/infrastructure/persistence/sqlite"
	"github.com/garyjia/tutoring-backoffice/internal/infrastructure/worker"
	httpapi "github.com/garyjia/tutoring-backoffice/internal/interfaces/http"
	"github.com/garyjia/tutoring-backoffice/pkg/utils"
)

// Container manages all application dependencies and lifecycle.
// Components start in dependency order and are torn down in reverse.
type Container struct {
	config *Config
	logger *zap.Logger

	// Infrastructure - Data
	sqlDB        *sql.DB
	db           *sqlite.DB
	repositories *RepositoryBundle

	// Infrastructure - External
	external *ExternalBundle

	// Application
	dispatcher dispatcher.Dispatcher
	services   *ServiceBundle

	// Workers
	workers *worker.WorkerManager

	// Interfaces
	server    *httpapi.Server
	serverErr chan error
	serveWG   sync.WaitGroup

	// Lifecycle
	mu     sync.RWMutex
	ctx    context.Context
	cancel context.CancelFunc
	ready  atomic.Bool
	closed atomic.Bool
}

// RepositoryBundle groups all repositories for convenient access.
type RepositoryBundle struct {
	Teacher      port.TeacherRepository
	Service      port.ServiceRepository
	Enrollment   port.EnrollmentRepository
	Assignment   port.AssignmentRepository
	Run          port.PayrollRunRepository
	LineItem     port.LineItemRepository
	SmsMessage   port.SmsMessageRepository
	Notification port.PaymentNotificationRepository
}

// ServiceBundle groups all application services.
type ServiceBundle struct {
	Payroll      service.PayrollService
	Enrollment   service.EnrollmentService
	Sms          service.SmsService
	Notification service.PaymentNotificationService
	Announcer    *service.OpsAnnouncer
}

// HealthStatus represents the health of all components.
type HealthStatus struct {
	Overall    bool                       `json:"overall"`
	Components map[string]ComponentHealth `json:"components"`
}

// ComponentHealth represents health of a single component.
type ComponentHealth struct {
	Healthy bool   `json:"healthy"`
	Message string `json:"message,omitempty"`
}

// NewContainer creates a new container from configuration.
// It does not initialize components - call Start() to initialize.
func NewContainer(cfg *Config, logger *zap.Logger) (*Container, error) {
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
		config:    cfg,
		logger:    logger,
		serverErr: make(chan error, 1),
	}, nil
}

// Start initializes all components and begins processing.
// Components are initialized in dependency order:
// 1. Database, migrations and repositories
// 2. External adapters (webhook, SMS carrier, ops notifier, exporter)
// 3. Event dispatcher
// 4. Application services and event subscriptions
// 5. Workers
// 6. HTTP server
func (c *Container) Start(ctx context.Context) error {
	return c.start(ctx, true)
}

// StartWithoutServer initializes everything except the HTTP server
func (c *Container) StartWithoutServer(ctx context.Context) error {
	return c.start(ctx, false)
}

func (c *Container) start(ctx context.Context, withServer bool) error {
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

	// Step 1: Initialize database and repositories
	if err := c.initDatabase(); err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	c.logger.Info("Database initialized")

	// Step 2: Initialize external adapters
	external, err := ProvideExternal(c.config, c.logger)
	if err != nil {
		return fmt.Errorf("failed to initialize external adapters: %w", err)
	}
	c.external = external
	c.logger.Info("External adapters initialized")

	// Step 3: Initialize dispatcher
	disp, err := ProvideDispatcher(c.logger)
	if err != nil {
		return fmt.Errorf("failed to initialize dispatcher: %w", err)
	}
	c.dispatcher = disp

	// Step 4: Initialize application services
	services, err := ProvideServices(&ServiceDeps{
		Repos:      c.repositories,
		TxManager:  c.db,
		External:   c.external,
		Dispatcher: c.dispatcher,
		Payroll:    &c.config.Payroll,
		SMS:        &c.config.SMS,
		Logger:     c.logger,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize services: %w", err)
	}
	c.services = services
	RegisterEventHandlers(c.dispatcher, c.services)
	c.logger.Info("Application services initialized")

	// Step 5: Initialize and start workers
	if err := c.initWorkers(); err != nil {
		return fmt.Errorf("failed to initialize workers: %w", err)
	}
	c.logger.Info("Workers initialized and started")

	// Step 6: HTTP server
	if withServer {
		c.initServer()
	}

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

	// Step 1: Stop HTTP server (reverse of step 6)
	if c.server != nil {
		if err := c.server.Stop(); err != nil {
			errs = append(errs, fmt.Errorf("stop http server: %w", err))
		}
	}

	// Cancel context to signal all goroutines
	if c.cancel != nil {
		c.cancel()
	}
	c.serveWG.Wait()

	// Step 2: Stop workers (reverse of step 5)
	if c.workers != nil {
		if err := c.workers.StopAll(); err != nil {
			c.logger.Error("Failed to stop workers", zap.Error(err))
			errs = append(errs, fmt.Errorf("stop workers: %w", err))
		} else {
			c.logger.Info("Workers stopped")
		}
	}

	// Step 3: Close dispatcher after in-flight handlers finish (reverse of steps 3 and 4)
	if c.dispatcher != nil {
		if err := c.dispatcher.Close(); err != nil {
			c.logger.Error("Failed to close dispatcher", zap.Error(err))
			errs = append(errs, fmt.Errorf("close dispatcher: %w", err))
		} else {
			c.logger.Info("Dispatcher closed")
		}
	}

	// Step 4: External adapters hold no resources (reverse of step 2)

	// Step 5: Close database (reverse of step 1)
	if c.sqlDB != nil {
		if err := c.sqlDB.Close(); err != nil {
			c.logger.Error("Failed to close database", zap.Error(err))
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

// ServerErrors delivers a fatal HTTP server error, if one happens
func (c *Container) ServerErrors() <-chan error {
	return c.serverErr
}

// Health returns health status of all components.
func (c *Container) Health() *HealthStatus {
	status := &HealthStatus{
		Overall:    true,
		Components: make(map[string]ComponentHealth),
	}

	check := func(name string, ok bool, message string) {
		status.Components[name] = ComponentHealth{Healthy: ok, Message: message}
		if !ok {
			status.Overall = false
		}
	}

	if c.sqlDB == nil {
		check("database", false, "not initialized")
	} else if err := c.sqlDB.Ping(); err != nil {
		check("database", false, fmt.Sprintf("ping failed: %v", err))
	} else {
		check("database", true, "")
	}

	if c.workers == nil {
		check("workers", false, "not initialized")
	} else {
		check("workers", c.workers.IsRunning(), fmt.Sprintf("worker count: %d", c.workers.GetWorkerCount()))
	}

	check("dispatcher", c.dispatcher != nil, "")
	check("services", c.services != nil, "")

	return status
}

// initDatabase initializes the database and all repositories using providers.
func (c *Container) initDatabase() error {
	dbBundle, err := ProvideDatabase(&c.config.Database, c.logger)
	if err != nil {
		return err
	}

	c.sqlDB = dbBundle.SqlDB
	c.db = dbBundle.TransactionMgr

	repos, err := ProvideRepositories(c.sqlDB, c.logger)
	if err != nil {
		c.sqlDB.Close()
		return err
	}

	c.repositories = repos
	return nil
}

// initWorkers initializes and starts all background workers using providers.
func (c *Container) initWorkers() error {
	workers, err := ProvideWorkers(&WorkerDeps{
		Payroll:    c.services.Payroll,
		PayrollCfg: &c.config.Payroll,
		Logger:     c.logger,
	})
	if err != nil {
		return err
	}
	c.workers = workers

	if err := c.workers.StartAll(c.ctx); err != nil {
		return fmt.Errorf("failed to start workers: %w", err)
	}

	return nil
}

// initServer builds the HTTP server and serves it in the background.
func (c *Container) initServer() {
	c.server = httpapi.NewServer(httpapi.ServerConfig{
		Host:         c.config.Server.Host,
		Port:         c.config.Server.Port,
		Mode:         c.config.Server.Mode,
		ReadTimeout:  c.config.Server.ReadTimeout,
		WriteTimeout: c.config.Server.WriteTimeout,
	}, httpapi.Services{
		Payroll:       c.services.Payroll,
		Enrollment:    c.services.Enrollment,
		Sms:           c.services.Sms,
		Notifications: c.services.Notification,
		Ready:         c.Ready,
	}, utils.NewKVLogger(c.logger.Named("http")))

	c.serveWG.Add(1)
	go func() {
		defer c.serveWG.Done()
		if err := c.server.Start(c.ctx); err != nil {
			select {
			case c.serverErr <- err:
			default:
			}
		}
	}()
}

// Getters for accessing container components

// DB returns the transaction manager.
func (c *Container) DB() port.TransactionManager {
	return c.db
}

// Repositories returns all repositories.
func (c *Container) Repositories() *RepositoryBundle {
	return c.repositories
}

// External returns the external adapters.
func (c *Container) External() *ExternalBundle {
	return c.external
}

// Dispatcher returns the event dispatcher.
func (c *Container) Dispatcher() dispatcher.Dispatcher {
	return c.dispatcher
}

// Services returns all application services.
func (c *Container) Services() *ServiceBundle {
	return c.services
}

// Workers returns the worker manager.
func (c *Container) Workers() *worker.WorkerManager {
	return c.workers
}

// Server returns the HTTP server, nil when started without one.
func (c *Container) Server() *httpapi.Server {
	return c.server
}

// Logger returns the container's logger.
func (c *Container) Logger() *zap.Logger {
	return c.logger
}

// Config returns the container's configuration.
func (c *Container) Config() *Config {
	return c.config
}
