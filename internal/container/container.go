package container

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/garyjia/sales-reports/internal/application/dispatcher"
	"github.com/garyjia/sales-reports/internal/application/port"
	"github.com/garyjia/sales-reports/internal/application/service"
	"github.com/garyjia/sales-reports/internal/infrastructure/auth"
	"github.com/garyjia/sales-reports/internal/infrastructure/export"
	"github.com/garyjia/sales-reports/internal/infrastructure/persistence/sqlite"
	"github.com/garyjia/sales-reports/internal/infrastructure/telemetry"
	"github.com/garyjia/sales-reports/pkg/database"
)

// Container manages all application dependencies and lifecycle.
// It follows Clean Architecture principles with ordered initialization
// and reverse-order teardown.
type Container struct {
	config *Config
	logger *zap.Logger

	// Infrastructure - Data
	database     *database.DB
	db           *sqlite.DB
	repositories *RepositoryBundle

	// Infrastructure - External
	redis             *redis.Client
	locker            port.Locker
	sender            port.MessageSender
	tokens            *auth.TokenService
	exporter          *export.ExcelExporter
	telemetryShutdown telemetry.ShutdownFunc

	// Application
	dispatcher dispatcher.Dispatcher
	services   *ServiceBundle

	// Lifecycle
	mu     sync.RWMutex
	ctx    context.Context
	cancel context.CancelFunc
	ready  atomic.Bool
	closed atomic.Bool
}

// RepositoryBundle groups all repositories for convenient access.
type RepositoryBundle struct {
	Report   port.ReportRepository
	Comment  port.CommentRepository
	History  port.HistoryRepository
	Location port.LocationRepository
	Actor    port.ActorRepository
}

// ServiceBundle groups all application services.
type ServiceBundle struct {
	Report       service.ReportService
	Location     service.LocationService
	Notification service.NotificationService
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
		config: cfg,
		logger: logger,
	}, nil
}

// Start initializes all components.
// Components are initialized in dependency order:
// 1. Database and repositories
// 2. Telemetry
// 3. External clients (redis, locker, notification sender, tokens, exporter)
// 4. Event dispatcher
// 5. Application services and event handlers
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

	// Step 1: Initialize database and repositories
	if err := c.initDatabase(); err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	c.logger.Info("Database initialized")

	// Step 2: Initialize telemetry
	c.telemetryShutdown = ProvideTelemetry(c.ctx, &c.config.Telemetry, c.logger)

	// Step 3: Initialize external clients
	if err := c.initExternalClients(); err != nil {
		c.teardown()
		return fmt.Errorf("failed to initialize external clients: %w", err)
	}
	c.logger.Info("External clients initialized")

	// Step 4: Initialize dispatcher
	disp, err := ProvideDispatcher(&c.config.Workflow, c.logger)
	if err != nil {
		c.teardown()
		return fmt.Errorf("failed to initialize dispatcher: %w", err)
	}
	c.dispatcher = disp
	c.logger.Info("Dispatcher initialized")

	// Step 5: Initialize application services
	if err := c.initServices(); err != nil {
		c.teardown()
		return fmt.Errorf("failed to initialize services: %w", err)
	}
	RegisterHandlers(c.dispatcher, c.services)
	c.logger.Info("Application services initialized")

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

	errs := c.teardown()

	c.closed.Store(true)
	c.ready.Store(false)

	if len(errs) > 0 {
		c.logger.Error("Container closed with errors", zap.Int("error_count", len(errs)))
		return fmt.Errorf("container closed with %d errors", len(errs))
	}

	c.logger.Info("Container closed successfully")
	return nil
}

// teardown releases whatever Start managed to build, newest first
func (c *Container) teardown() []error {
	var errs []error

	// Cancel context to signal all goroutines
	if c.cancel != nil {
		c.cancel()
	}

	// Step 1: Close dispatcher, waiting for in-flight notifications
	if c.dispatcher != nil {
		if err := c.dispatcher.Close(); err != nil {
			c.logger.Error("Failed to close dispatcher", zap.Error(err))
			errs = append(errs, fmt.Errorf("close dispatcher: %w", err))
		} else {
			c.logger.Info("Dispatcher closed")
		}
		c.dispatcher = nil
	}

	// Step 2: Close redis
	if c.redis != nil {
		if err := c.redis.Close(); err != nil {
			c.logger.Error("Failed to close redis", zap.Error(err))
			errs = append(errs, fmt.Errorf("close redis: %w", err))
		} else {
			c.logger.Info("Redis closed")
		}
		c.redis = nil
	}

	// Step 3: Flush traces
	if c.telemetryShutdown != nil {
		if err := c.telemetryShutdown(context.Background()); err != nil {
			c.logger.Error("Failed to shut down telemetry", zap.Error(err))
			errs = append(errs, fmt.Errorf("shutdown telemetry: %w", err))
		}
		c.telemetryShutdown = nil
	}

	// Step 4: Close database
	if c.database != nil {
		if err := c.database.Close(); err != nil {
			c.logger.Error("Failed to close database", zap.Error(err))
			errs = append(errs, fmt.Errorf("close database: %w", err))
		} else {
			c.logger.Info("Database closed")
		}
		c.database = nil
	}

	return errs
}

// Ready returns true when all components are initialized.
func (c *Container) Ready() bool {
	return c.ready.Load()
}

// Health returns health status of all components.
func (c *Container) Health(ctx context.Context) *HealthStatus {
	c.mu.RLock()
	defer c.mu.RUnlock()

	status := &HealthStatus{
		Overall:    true,
		Components: make(map[string]ComponentHealth),
	}
	set := func(name string, healthy bool, msg string) {
		status.Components[name] = ComponentHealth{Healthy: healthy, Message: msg}
		if !healthy {
			status.Overall = false
		}
	}

	// Check database
	switch {
	case c.database == nil:
		set("database", false, "not initialized")
	default:
		if err := c.database.PingContext(ctx); err != nil {
			set("database", false, fmt.Sprintf("ping failed: %v", err))
		} else if v, err := c.database.SchemaVersion(ctx); err != nil {
			set("database", false, err.Error())
		} else {
			set("database", true, fmt.Sprintf("schema version %d", v))
		}
	}

	// Check redis when configured
	if c.config.Redis.Enabled {
		switch {
		case c.redis == nil:
			set("redis", false, "not initialized")
		default:
			if err := c.redis.Ping(ctx).Err(); err != nil {
				set("redis", false, fmt.Sprintf("ping failed: %v", err))
			} else {
				set("redis", true, "")
			}
		}
	}

	// Check dispatcher
	if c.dispatcher != nil {
		s := c.dispatcher.Stats()
		set("dispatcher", true, fmt.Sprintf("handlers: %d, delivered: %d, failed: %d",
			len(c.dispatcher.ListHandlers(dispatcher.AnyEvent)), s.Delivered, s.Failed))
	} else {
		set("dispatcher", false, "not initialized")
	}

	// Check services
	if c.services != nil {
		set("services", true, "")
	} else {
		set("services", false, "not initialized")
	}

	return status
}

// initDatabase initializes the database and all repositories using providers.
func (c *Container) initDatabase() error {
	dbBundle, err := ProvideDatabase(c.ctx, &c.config.Database, c.logger)
	if err != nil {
		return err
	}

	c.database = dbBundle.DB
	c.db = dbBundle.TransactionMgr

	repos, err := ProvideRepositories(c.db, c.logger)
	if err != nil {
		c.database.Close()
		c.database = nil
		return err
	}

	c.repositories = repos
	return nil
}

// initExternalClients initializes redis, locking, notification, token and export components.
func (c *Container) initExternalClients() error {
	rdb, err := ProvideRedis(c.ctx, &c.config.Redis, c.logger)
	if err != nil {
		return err
	}
	c.redis = rdb

	c.locker = ProvideLocker(c.redis, &c.config.Workflow)

	sender, err := ProvideMessageSender(c.redis, &c.config.Notify, c.logger)
	if err != nil {
		return err
	}
	c.sender = sender

	tokens, err := ProvideTokenService(&c.config.Auth)
	if err != nil {
		return err
	}
	c.tokens = tokens

	c.exporter = ProvideExporter(&c.config.Export)
	return nil
}

// initServices initializes all application services using providers.
func (c *Container) initServices() error {
	services, err := ProvideServices(&ServiceDeps{
		Repos:     c.repositories,
		TxManager: c.db,
		Locker:    c.locker,
		Publisher: c.dispatcher,
		Sender:    c.sender,
		Workflow:  &c.config.Workflow,
		Logger:    c.logger,
	})
	if err != nil {
		return err
	}

	c.services = services
	return nil
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

// Services returns all application services.
func (c *Container) Services() *ServiceBundle {
	return c.services
}

// Dispatcher returns the event dispatcher.
func (c *Container) Dispatcher() dispatcher.Dispatcher {
	return c.dispatcher
}

// Tokens returns the bearer token service.
func (c *Container) Tokens() *auth.TokenService {
	return c.tokens
}

// Exporter returns the spreadsheet exporter.
func (c *Container) Exporter() *export.ExcelExporter {
	return c.exporter
}

// Logger returns the container's logger.
func (c *Container) Logger() *zap.Logger {
	return c.logger
}

// Config returns the container's configuration.
func (c *Container) Config() *Config {
	return c.config
}
