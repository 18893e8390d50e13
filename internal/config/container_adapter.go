package config

import (
	"github.com/garyjia/booking-voucher/internal/container"
	httpServer "github.com/garyjia/booking-voucher/internal/interfaces/http"
)

// ToContainerConfig converts the application Config to a container.Config.
// This provides a bridge between the file-based config loaded by viper
// and the container's configuration structure.
func (c *Config) ToContainerConfig() *container.Config {
	return &container.Config{
		Database: container.DatabaseConfig{
			Path:            c.Database.Path,
			MaxOpenConns:    c.Database.MaxOpenConns,
			MaxIdleConns:    c.Database.MaxIdleConns,
			ConnMaxLifetime: c.Database.ConnMaxLifetime,
		},
		Voucher: container.VoucherConfig{
			SigningSecret:    c.Voucher.SigningSecret,
			TokenTTL:         c.Voucher.TokenTTL,
			NumberRetryLimit: c.Voucher.NumberRetryLimit,
			DefaultValidity:  c.Voucher.DefaultValidity,
			Timezone:         c.Voucher.Timezone,
		},
		Sweeper: container.SweeperConfig{
			Interval:   c.Sweeper.Interval,
			BatchSize:  c.Sweeper.BatchSize,
			Timeout:    c.Sweeper.Timeout,
			RunOnStart: c.Sweeper.RunOnStart,
		},
		Storage: container.StorageConfig{
			BaseDir: c.Storage.BaseDir,
		},
		Lark: container.LarkConfig{
			Enabled:       c.Lark.Enabled,
			AppID:         c.Lark.AppID,
			AppSecret:     c.Lark.AppSecret,
			ReceiveIDType: c.Lark.ReceiveIDType,
		},
		Dispatcher: container.DispatcherConfig{
			Async: c.Dispatcher.Async,
		},
	}
}

// ToServerConfig converts the server section to the HTTP server configuration.
func (c *Config) ToServerConfig() httpServer.ServerConfig {
	return httpServer.ServerConfig{
		Host:            c.Server.Host,
		Port:            c.Server.Port,
		ReadTimeout:     c.Server.ReadTimeout,
		WriteTimeout:    c.Server.WriteTimeout,
		ShutdownTimeout: c.Server.ShutdownTimeout,
		AllowedOrigins:  c.Server.AllowedOrigins,
	}
}
