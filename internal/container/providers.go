package container

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/garyjia/sales-reports/internal/application/dispatcher"
	"github.com/garyjia/sales-reports/internal/application/port"
	"github.com/garyjia/sales-reports/internal/application/service"
	"github.com/garyjia/sales-reports/internal/domain/permission"
	"github.com/garyjia/sales-reports/internal/infrastructure/auth"
	"github.com/garyjia/sales-reports/internal/infrastructure/export"
	"github.com/garyjia/sales-reports/internal/infrastructure/lock"
	"github.com/garyjia/sales-reports/internal/infrastructure/notify"
	"github.com/garyjia/sales-reports/internal/infrastructure/persistence/repository"
	"github.com/garyjia/sales-reports/internal/infrastructure/persistence/sqlite"
	"github.com/garyjia/sales-reports/internal/infrastructure/policy"
	"github.com/garyjia/sales-reports/internal/infrastructure/telemetry"
	"github.com/garyjia/sales-reports/pkg/database"
	"github.com/garyjia/sales-reports/pkg/utils"
)

// DatabaseBundle holds database-related components.
type DatabaseBundle struct {
	DB             *database.DB
	TransactionMgr *sqlite.DB
}

// ProvideDatabase opens the SQLite database and applies the embedded migrations.
// Returns DatabaseBundle containing the connection and TransactionManager.
func ProvideDatabase(ctx context.Context, cfg *DatabaseConfig, logger *zap.Logger) (*DatabaseBundle, error) {
	if cfg == nil {
		return nil, fmt.Errorf("database config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	if dir := filepath.Dir(cfg.Path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := database.New(database.Config{
		Path:            cfg.Path,
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
		BusyTimeout:     cfg.BusyTimeout,
	}, logger)
	if err != nil {
		return nil, err
	}

	if _, err := database.NewMigrator(db, logger).Migrate(ctx, database.Migrations, "migrations"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &DatabaseBundle{
		DB:             db,
		TransactionMgr: sqlite.NewDB(db.DB, logger),
	}, nil
}

// ProvideRepositories creates all repositories from a database connection.
// Returns RepositoryBundle containing all repository implementations.
func ProvideRepositories(db *sqlite.DB, logger *zap.Logger) (*RepositoryBundle, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	return &RepositoryBundle{
		Report:   repository.NewReportRepository(db, logger),
		Comment:  repository.NewCommentRepository(db, logger),
		History:  repository.NewHistoryRepository(db, logger),
		Location: repository.NewLocationRepository(db, logger),
		Actor:    repository.NewActorRepository(db, logger),
	}, nil
}

// ProvideTelemetry installs the tracer provider.
// Exporter failures are logged and tracing stays off; the service runs without it.
func ProvideTelemetry(ctx context.Context, cfg *TelemetryConfig, logger *zap.Logger) telemetry.ShutdownFunc {
	shutdown, err := telemetry.Setup(ctx, telemetry.Config{
		Enabled:     cfg.Enabled,
		ServiceName: cfg.ServiceName,
		Endpoint:    cfg.Endpoint,
		Insecure:    cfg.Insecure,
		SampleRatio: cfg.SampleRatio,
	}, logger)
	if err != nil {
		logger.Warn("Tracing unavailable", zap.Error(err))
	}
	return shutdown
}

// ProvideRedis connects to redis when enabled; it returns nil otherwise.
func ProvideRedis(ctx context.Context, cfg *RedisConfig, logger *zap.Logger) (*redis.Client, error) {
	if cfg == nil || !cfg.Enabled {
		return nil, nil
	}

	rdb, err := lock.Connect(ctx, lock.RedisConfig{
		Address:  cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})
	if err != nil {
		return nil, err
	}

	logger.Info("Redis connected", zap.String("address", cfg.Address))
	return rdb, nil
}

// ProvideLocker returns a redis-backed locker when rdb is set, else a process-local one.
func ProvideLocker(rdb *redis.Client, cfg *WorkflowConfig) port.Locker {
	if rdb != nil {
		return lock.NewRedisLocker(rdb, cfg.LockWait)
	}
	return lock.NewLocalLocker(cfg.LockWait)
}

// ProvideMessageSender selects the notification transport.
func ProvideMessageSender(rdb *redis.Client, cfg *NotifyConfig, logger *zap.Logger) (port.MessageSender, error) {
	switch cfg.Driver {
	case "", "log":
		return notify.NewLogSender(logger), nil
	case "redis":
		if rdb == nil {
			return nil, fmt.Errorf("redis notifications require a redis connection")
		}
		return notify.NewRedisSender(rdb, cfg.ChannelPrefix, logger), nil
	default:
		return nil, fmt.Errorf("unknown notify driver %q", cfg.Driver)
	}
}

// ProvideTokenService creates the bearer token service.
func ProvideTokenService(cfg *AuthConfig) (*auth.TokenService, error) {
	return auth.NewTokenService(auth.Config{
		Secret:   cfg.JWTSecret,
		Issuer:   cfg.Issuer,
		TokenTTL: cfg.TokenTTL,
	})
}

// ProvideExporter creates the spreadsheet exporter.
func ProvideExporter(cfg *ExportConfig) *export.ExcelExporter {
	opts := export.DefaultExcelOptions()
	if cfg.SheetName != "" {
		opts.SheetName = cfg.SheetName
	}
	if cfg.NumberFormat != "" {
		opts.NumberFormat = cfg.NumberFormat
	}
	if cfg.DateFormat != "" {
		opts.DateFormat = cfg.DateFormat
	}
	return export.NewExcelExporter(opts)
}

// ProvideDispatcher creates the event dispatcher.
// Returns dispatcher.Dispatcher implementation.
func ProvideDispatcher(cfg *WorkflowConfig, logger *zap.Logger) (dispatcher.Dispatcher, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	opts := []dispatcher.Option{dispatcher.WithLogger(utils.NewKVLogger(logger.Named("dispatcher")))}
	if cfg != nil {
		opts = append(opts,
			dispatcher.WithHandlerTimeout(cfg.HandlerTimeout),
			dispatcher.WithMaxInFlight(cfg.MaxAsyncHandlers),
		)
	}
	return dispatcher.NewDispatcher(opts...), nil
}

// ServiceDeps holds dependencies for creating services.
type ServiceDeps struct {
	Repos     *RepositoryBundle
	TxManager port.TransactionManager
	Locker    port.Locker
	Publisher port.EventPublisher
	Sender    port.MessageSender
	Workflow  *WorkflowConfig
	Logger    *zap.Logger
}

// ProvideServices creates all application services.
// Returns ServiceBundle containing the report, location and notification services.
func ProvideServices(deps *ServiceDeps) (*ServiceBundle, error) {
	if deps == nil {
		return nil, fmt.Errorf("service deps are required")
	}
	if deps.Repos == nil {
		return nil, fmt.Errorf("repositories are required")
	}
	if deps.TxManager == nil {
		return nil, fmt.Errorf("transaction manager is required")
	}
	if deps.Workflow == nil {
		return nil, fmt.Errorf("workflow config is required")
	}
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	logger := utils.NewKVLogger(deps.Logger.Named("service"))

	engine := permission.NewEngine(
		permission.WithScopeMode(deps.Workflow.ScopeMode),
		permission.WithEditDuringReview(deps.Workflow.ImplicitAdvanceOnEdit),
	)

	locations := service.NewLocationService(deps.Repos.Location, logger)

	opts := []service.ReportOption{
		service.WithPermissionEngine(engine),
		service.WithImplicitAdvanceOnEdit(deps.Workflow.ImplicitAdvanceOnEdit),
		service.WithDeletePolicy(policy.NewHistoryDeletePolicy(deps.Repos.History)),
	}
	if deps.Locker != nil {
		opts = append(opts, service.WithLocker(deps.Locker, deps.Workflow.LockTTL))
	}
	if deps.Publisher != nil {
		opts = append(opts, service.WithPublisher(deps.Publisher))
	}

	reports := service.NewReportService(
		deps.Repos.Report,
		deps.Repos.Comment,
		deps.Repos.History,
		locations,
		deps.TxManager,
		logger,
		opts...,
	)

	bundle := &ServiceBundle{
		Report:   reports,
		Location: locations,
	}
	if deps.Sender != nil {
		bundle.Notification = service.NewNotificationService(deps.Sender, logger)
	}
	return bundle, nil
}

// RegisterHandlers subscribes the event consumers to the dispatcher.
func RegisterHandlers(disp dispatcher.Dispatcher, services *ServiceBundle) {
	if services.Notification != nil {
		disp.Subscribe(dispatcher.AnyEvent, "notifier", services.Notification.HandleEvent)
	}
}
