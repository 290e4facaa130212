package config

import (
	"github.com/garyjia/sales-reports/internal/container"
	"github.com/garyjia/sales-reports/internal/domain/permission"
)

// ToContainerConfig converts the application Config to a container.Config.
// This provides a bridge between the file-based config loaded by viper
// and the container's configuration structure.
func (c *Config) ToContainerConfig() *container.Config {
	// Validate has already accepted the mode
	mode, _ := permission.ParseScopeMode(c.Workflow.ScopeMatch)

	return &container.Config{
		Database: container.DatabaseConfig{
			Path:            c.Database.Path,
			MaxOpenConns:    c.Database.MaxOpenConns,
			MaxIdleConns:    c.Database.MaxIdleConns,
			ConnMaxLifetime: c.Database.ConnMaxLifetime,
			BusyTimeout:     c.Database.BusyTimeout,
		},
		Server: container.ServerConfig{
			Host:            c.Server.Host,
			Port:            c.Server.Port,
			ReadTimeout:     c.Server.ReadTimeout,
			WriteTimeout:    c.Server.WriteTimeout,
			ShutdownTimeout: c.Server.ShutdownTimeout,
		},
		Auth: container.AuthConfig{
			JWTSecret: c.Auth.JWTSecret,
			Issuer:    c.Auth.Issuer,
			TokenTTL:  c.Auth.TokenTTL,
		},
		Redis: container.RedisConfig{
			Enabled:  c.Redis.Enabled,
			Address:  c.Redis.Address,
			Password: c.Redis.Password,
			DB:       c.Redis.DB,
			PoolSize: c.Redis.PoolSize,
		},
		Telemetry: container.TelemetryConfig{
			Enabled:     c.Telemetry.Enabled,
			ServiceName: c.Telemetry.ServiceName,
			Endpoint:    c.Telemetry.Endpoint,
			Insecure:    c.Telemetry.Insecure,
			SampleRatio: c.Telemetry.SampleRatio,
		},
		Workflow: container.WorkflowConfig{
			ScopeMode:             mode,
			ImplicitAdvanceOnEdit: c.Workflow.ImplicitAdvanceOnEdit,
			LockTTL:               c.Workflow.LockTTL,
			LockWait:              c.Workflow.LockWait,
			HandlerTimeout:        c.Workflow.HandlerTimeout,
			MaxAsyncHandlers:      c.Workflow.MaxAsyncHandlers,
		},
		Notify: container.NotifyConfig{
			Driver:        c.Notify.Driver,
			ChannelPrefix: c.Notify.ChannelPrefix,
		},
		Export: container.ExportConfig{
			SheetName:    c.Export.SheetName,
			NumberFormat: c.Export.NumberFormat,
			DateFormat:   c.Export.DateFormat,
		},
	}
}
