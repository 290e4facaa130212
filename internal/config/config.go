package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/spf13/viper"
	"github.com/subosito/gotenv"

	"github.com/garyjia/sales-reports/internal/domain/permission"
)

// Config holds all application configuration
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Logger    LoggerConfig    `mapstructure:"logger"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	Workflow  WorkflowConfig  `mapstructure:"workflow"`
	Notify    NotifyConfig    `mapstructure:"notify"`
	Export    ExportConfig    `mapstructure:"export"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Path            string        `mapstructure:"path"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	BusyTimeout     time.Duration `mapstructure:"busy_timeout"`
}

// LoggerConfig holds logger configuration
type LoggerConfig struct {
	Level      string `mapstructure:"level"`
	OutputPath string `mapstructure:"output_path"`
	Format     string `mapstructure:"format"`
}

// AuthConfig holds bearer token settings
type AuthConfig struct {
	JWTSecret string        `mapstructure:"jwt_secret"`
	Issuer    string        `mapstructure:"issuer"`
	TokenTTL  time.Duration `mapstructure:"token_ttl"`
}

// RedisConfig holds the optional redis connection used for locks and notifications
type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	PoolSize int    `mapstructure:"pool_size"`
}

// TelemetryConfig holds tracing configuration
type TelemetryConfig struct {
	Enabled     bool    `mapstructure:"enabled"`
	ServiceName string  `mapstructure:"service_name"`
	Endpoint    string  `mapstructure:"endpoint"`
	Insecure    bool    `mapstructure:"insecure"`
	SampleRatio float64 `mapstructure:"sample_ratio"`
}

// WorkflowConfig holds report lifecycle tuning
type WorkflowConfig struct {
	// ScopeMatch is "name" (compare display names) or "id" (compare foreign keys)
	ScopeMatch            string        `mapstructure:"scope_match"`
	ImplicitAdvanceOnEdit bool          `mapstructure:"implicit_advance_on_edit"`
	LockTTL               time.Duration `mapstructure:"lock_ttl"`
	LockWait              time.Duration `mapstructure:"lock_wait"`
	HandlerTimeout        time.Duration `mapstructure:"handler_timeout"`
	MaxAsyncHandlers      int           `mapstructure:"max_async_handlers"`
}

// NotifyConfig selects how review notifications are delivered
type NotifyConfig struct {
	// Driver is "log" or "redis"
	Driver        string `mapstructure:"driver"`
	ChannelPrefix string `mapstructure:"channel_prefix"`
}

// ExportConfig holds spreadsheet export settings
type ExportConfig struct {
	SheetName    string `mapstructure:"sheet_name"`
	NumberFormat string `mapstructure:"number_format"`
	DateFormat   string `mapstructure:"date_format"`
}

// LoadDotEnv loads KEY=VALUE pairs from path into the process environment.
// Variables already set win; a missing file is not an error.
func LoadDotEnv(path string) error {
	if path == "" {
		return nil
	}
	if err := gotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

// Load loads configuration from file and environment variables.
// An empty configPath configures from defaults and the environment only.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Set defaults
	setDefaults(v)

	// Read config file
	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Override with environment variables
	if err := bindEnvVars(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)

	// Database defaults
	v.SetDefault("database.path", "data/reports.db")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", 5*time.Minute)
	v.SetDefault("database.busy_timeout", 5*time.Second)

	// Logger defaults
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.output_path", "stdout")
	v.SetDefault("logger.format", "json")

	// Auth defaults
	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.issuer", "sales-reports")
	v.SetDefault("auth.token_ttl", 24*time.Hour)

	// Redis defaults
	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.address", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.pool_size", 10)

	// Telemetry defaults
	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.service_name", "sales-reports")
	v.SetDefault("telemetry.endpoint", "")
	v.SetDefault("telemetry.insecure", false)
	v.SetDefault("telemetry.sample_ratio", 1.0)

	// Workflow defaults
	v.SetDefault("workflow.scope_match", string(permission.ScopeByName))
	v.SetDefault("workflow.implicit_advance_on_edit", true)
	v.SetDefault("workflow.lock_ttl", 10*time.Second)
	v.SetDefault("workflow.lock_wait", 2*time.Second)
	v.SetDefault("workflow.handler_timeout", 10*time.Second)
	v.SetDefault("workflow.max_async_handlers", 32)

	// Notification defaults
	v.SetDefault("notify.driver", "log")
	v.SetDefault("notify.channel_prefix", "notifications")

	// Export defaults
	v.SetDefault("export.sheet_name", "Reports")
	v.SetDefault("export.number_format", "#,##0.00")
	v.SetDefault("export.date_format", "yyyy-mm-dd hh:mm")
}

// bindEnvVars binds environment variables to configuration
func bindEnvVars(v *viper.Viper) error {
	bindings := map[string]string{
		// Sensitive credentials from environment
		"auth.jwt_secret": "JWT_SECRET",
		"redis.password":  "REDIS_PASSWORD",

		"redis.address":      "REDIS_ADDRESS",
		"database.path":      "DATABASE_PATH",
		"telemetry.endpoint": "OTEL_EXPORTER_OTLP_ENDPOINT",
		"telemetry.insecure": "OTEL_EXPORTER_OTLP_INSECURE",
	}
	for key, env := range bindings {
		if err := v.BindEnv(key, env); err != nil {
			return fmt.Errorf("failed to bind %s: %w", env, err)
		}
	}
	return nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535")
	}

	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}

	// Validate auth
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret is required")
	}

	// Validate workflow
	if _, err := permission.ParseScopeMode(c.Workflow.ScopeMatch); err != nil {
		return fmt.Errorf("workflow.scope_match: %w", err)
	}
	if c.Workflow.LockTTL < 0 || c.Workflow.LockWait < 0 {
		return fmt.Errorf("workflow lock durations cannot be negative")
	}

	// Validate redis
	if c.Redis.Enabled && c.Redis.Address == "" {
		return fmt.Errorf("redis.address is required when redis is enabled")
	}

	// Validate notifications
	switch c.Notify.Driver {
	case "log":
	case "redis":
		if !c.Redis.Enabled {
			return fmt.Errorf("notify.driver redis requires redis.enabled")
		}
	default:
		return fmt.Errorf("notify.driver must be log or redis, got %q", c.Notify.Driver)
	}

	// Validate telemetry
	if c.Telemetry.Enabled && c.Telemetry.Endpoint == "" {
		return fmt.Errorf("telemetry.endpoint is required when telemetry is enabled")
	}
	if c.Telemetry.SampleRatio < 0 || c.Telemetry.SampleRatio > 1 {
		return fmt.Errorf("telemetry.sample_ratio must be between 0 and 1")
	}

	return nil
}
