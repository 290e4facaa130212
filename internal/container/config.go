// Package container provides dependency injection and lifecycle management
// for the sales report service following Clean Architecture principles.
package container

import (
	"fmt"
	"time"

	"github.com/garyjia/sales-reports/internal/domain/permission"
)

// Config holds all configuration for the Container.
// It aggregates configurations for all subsystems.
type Config struct {
	// Database configuration
	Database DatabaseConfig

	// Server configuration
	Server ServerConfig

	// Auth configuration
	Auth AuthConfig

	// Redis configuration
	Redis RedisConfig

	// Telemetry configuration
	Telemetry TelemetryConfig

	// Workflow configuration
	Workflow WorkflowConfig

	// Notify configuration
	Notify NotifyConfig

	// Export configuration
	Export ExportConfig
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	// Path to SQLite database file
	Path string

	// MaxOpenConns is the maximum number of open connections
	MaxOpenConns int

	// MaxIdleConns is the maximum number of idle connections
	MaxIdleConns int

	// ConnMaxLifetime is the maximum connection lifetime
	ConnMaxLifetime time.Duration

	// BusyTimeout is how long a writer waits for the SQLite lock
	BusyTimeout time.Duration
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host to bind to
	Host string

	// Port to listen on
	Port int

	// ReadTimeout for HTTP server
	ReadTimeout time.Duration

	// WriteTimeout for HTTP server
	WriteTimeout time.Duration

	// ShutdownTimeout bounds graceful shutdown
	ShutdownTimeout time.Duration
}

// AuthConfig holds bearer token settings.
type AuthConfig struct {
	// JWTSecret signs HS256 tokens
	JWTSecret string

	// Issuer is written to and required in tokens
	Issuer string

	// TokenTTL is the lifetime of issued tokens
	TokenTTL time.Duration
}

// RedisConfig holds redis settings.
// When disabled, locks are process-local and notifications are only logged.
type RedisConfig struct {
	Enabled  bool
	Address  string
	Password string
	DB       int
	PoolSize int
}

// TelemetryConfig holds tracing exporter settings.
type TelemetryConfig struct {
	Enabled     bool
	ServiceName string
	Endpoint    string
	Insecure    bool
	SampleRatio float64
}

// WorkflowConfig holds report lifecycle settings.
type WorkflowConfig struct {
	// ScopeMode selects name or id matching of admin areas
	ScopeMode permission.ScopeMode

	// ImplicitAdvanceOnEdit lets subdistrict admins correct and advance in one step
	ImplicitAdvanceOnEdit bool

	// LockTTL is the lifetime of the per-actor create/submit lock
	LockTTL time.Duration

	// LockWait is how long to wait for a busy lock
	LockWait time.Duration

	// HandlerTimeout bounds each async event handler
	HandlerTimeout time.Duration

	// MaxAsyncHandlers caps concurrently running async handlers
	MaxAsyncHandlers int
}

// NotifyConfig holds notification delivery settings.
type NotifyConfig struct {
	// Driver is "log" or "redis"
	Driver string

	// ChannelPrefix prefixes redis pub/sub channels
	ChannelPrefix string
}

// ExportConfig holds spreadsheet export settings.
type ExportConfig struct {
	SheetName    string
	NumberFormat string
	DateFormat   string
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Path:            "data/reports.db",
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
			BusyTimeout:     5 * time.Second,
		},
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Auth: AuthConfig{
			Issuer:   "sales-reports",
			TokenTTL: 24 * time.Hour,
		},
		Redis: RedisConfig{
			Address:  "localhost:6379",
			PoolSize: 10,
		},
		Telemetry: TelemetryConfig{
			ServiceName: "sales-reports",
			SampleRatio: 1,
		},
		Workflow: WorkflowConfig{
			ScopeMode:             permission.ScopeByName,
			ImplicitAdvanceOnEdit: true,
			LockTTL:               10 * time.Second,
			LockWait:              2 * time.Second,
			HandlerTimeout:        10 * time.Second,
			MaxAsyncHandlers:      32,
		},
		Notify: NotifyConfig{
			Driver:        "log",
			ChannelPrefix: "notifications",
		},
		Export: ExportConfig{
			SheetName:    "Reports",
			NumberFormat: "#,##0.00",
			DateFormat:   "yyyy-mm-dd hh:mm",
		},
	}
}

// Validate checks that required configuration values are present.
func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}

	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret is required")
	}

	if c.Workflow.ScopeMode != permission.ScopeByName && c.Workflow.ScopeMode != permission.ScopeByID {
		return fmt.Errorf("workflow.scope_mode %q is invalid", c.Workflow.ScopeMode)
	}

	if c.Notify.Driver == "redis" && !c.Redis.Enabled {
		return fmt.Errorf("redis notifications require redis to be enabled")
	}

	return nil
}
