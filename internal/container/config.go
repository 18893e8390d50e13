// Package container provides dependency injection and lifecycle management
// for the booking voucher service following Clean Architecture principles.
package container

import (
	"fmt"
	"time"
)

// MinSigningSecretLength is the shortest accepted token signing secret
const MinSigningSecretLength = 32

// Config holds all configuration for the Container.
// It aggregates configurations for all subsystems.
type Config struct {
	// Database configuration
	Database DatabaseConfig

	// Voucher issuance and token configuration
	Voucher VoucherConfig

	// Expiration sweeper configuration
	Sweeper SweeperConfig

	// Storage configuration
	Storage StorageConfig

	// Lark notification configuration
	Lark LarkConfig

	// Dispatcher configuration
	Dispatcher DispatcherConfig
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
}

// VoucherConfig holds issuance and verification token settings.
type VoucherConfig struct {
	// SigningSecret is the HMAC key for verification tokens
	SigningSecret string

	// TokenTTL is the lifetime of a verification token
	TokenTTL time.Duration

	// NumberRetryLimit bounds voucher number allocation attempts
	NumberRetryLimit int

	// DefaultValidity applies to booking types without a details-derived window
	DefaultValidity time.Duration

	// Timezone used for dates printed on documents and exports
	Timezone string
}

// SweeperConfig holds expiration worker settings.
type SweeperConfig struct {
	Interval   time.Duration
	BatchSize  int
	Timeout    time.Duration
	RunOnStart bool
}

// StorageConfig holds file storage settings.
type StorageConfig struct {
	// BaseDir holds the documents/ and exports/ directories
	BaseDir string
}

// LarkConfig holds Lark API settings.
type LarkConfig struct {
	// Enabled selects the Lark notifier; otherwise notifications are only logged
	Enabled bool

	// AppID is the Lark application ID
	AppID string

	// AppSecret is the Lark application secret
	AppSecret string

	// ReceiveIDType selects how recipients are addressed
	ReceiveIDType string
}

// DispatcherConfig holds event dispatch settings.
type DispatcherConfig struct {
	// Async runs subscribers in the background
	Async bool
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Path:            "data/vouchers.db",
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Voucher: VoucherConfig{
			TokenTTL:         24 * time.Hour,
			NumberRetryLimit: 5,
			DefaultValidity:  365 * 24 * time.Hour,
			Timezone:         "UTC",
		},
		Sweeper: SweeperConfig{
			Interval:   24 * time.Hour,
			BatchSize:  200,
			Timeout:    10 * time.Minute,
			RunOnStart: true,
		},
		Storage: StorageConfig{
			BaseDir: "data/files",
		},
		Lark: LarkConfig{
			ReceiveIDType: "email",
		},
		Dispatcher: DispatcherConfig{
			Async: true,
		},
	}
}

// Validate checks that required configuration values are present.
func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}

	if len(c.Voucher.SigningSecret) < MinSigningSecretLength {
		return fmt.Errorf("voucher.signing_secret must be at least %d bytes", MinSigningSecretLength)
	}
	if c.Voucher.TokenTTL <= 0 {
		return fmt.Errorf("voucher.token_ttl must be positive")
	}
	if c.Voucher.DefaultValidity <= 0 {
		return fmt.Errorf("voucher.default_validity must be positive")
	}
	if _, err := time.LoadLocation(c.Voucher.Timezone); err != nil {
		return fmt.Errorf("voucher.timezone is invalid: %w", err)
	}

	if c.Sweeper.Interval <= 0 {
		return fmt.Errorf("sweeper.interval must be positive")
	}

	if c.Storage.BaseDir == "" {
		return fmt.Errorf("storage.base_dir is required")
	}

	if c.Lark.Enabled {
		if c.Lark.AppID == "" {
			return fmt.Errorf("lark.app_id is required when lark is enabled")
		}
		if c.Lark.AppSecret == "" {
			return fmt.Errorf("lark.app_secret is required when lark is enabled")
		}
	}

	return nil
}
