package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/spf13/viper"
	"github.com/subosito/gotenv"
)

// DefaultPath is used when CONFIG_PATH is not set
const DefaultPath = "configs/config.yaml"

// Config holds all application configuration
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Voucher    VoucherConfig    `mapstructure:"voucher"`
	Sweeper    SweeperConfig    `mapstructure:"sweeper"`
	Storage    StorageConfig    `mapstructure:"storage"`
	Auth       AuthConfig       `mapstructure:"auth"`
	Lark       LarkConfig       `mapstructure:"lark"`
	Dispatcher DispatcherConfig `mapstructure:"dispatcher"`
	Logger     LoggerConfig     `mapstructure:"logger"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	AllowedOrigins  []string      `mapstructure:"allowed_origins"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Path            string        `mapstructure:"path"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// VoucherConfig holds issuance and verification token configuration
type VoucherConfig struct {
	SigningSecret    string        `mapstructure:"signing_secret"`
	TokenTTL         time.Duration `mapstructure:"token_ttl"`
	NumberRetryLimit int           `mapstructure:"number_retry_limit"`
	DefaultValidity  time.Duration `mapstructure:"default_validity"`
	Timezone         string        `mapstructure:"timezone"`
}

// SweeperConfig holds expiration worker configuration
type SweeperConfig struct {
	Interval   time.Duration `mapstructure:"interval"`
	BatchSize  int           `mapstructure:"batch_size"`
	Timeout    time.Duration `mapstructure:"timeout"`
	RunOnStart bool          `mapstructure:"run_on_start"`
}

// StorageConfig holds file storage configuration
type StorageConfig struct {
	BaseDir string `mapstructure:"base_dir"`
}

// AuthConfig holds bearer token verification settings
type AuthConfig struct {
	JWTSecret string `mapstructure:"jwt_secret"`
	Issuer    string `mapstructure:"issuer"`
}

// LarkConfig holds Lark API configuration
type LarkConfig struct {
	Enabled       bool   `mapstructure:"enabled"`
	AppID         string `mapstructure:"app_id"`
	AppSecret     string `mapstructure:"app_secret"`
	ReceiveIDType string `mapstructure:"receive_id_type"`
}

// DispatcherConfig holds event dispatch configuration
type DispatcherConfig struct {
	Async bool `mapstructure:"async"`
}

// LoggerConfig holds logger configuration
type LoggerConfig struct {
	Level      string `mapstructure:"level"`
	OutputPath string `mapstructure:"output_path"`
	Format     string `mapstructure:"format"`
}

// Load loads configuration from file and environment variables.
// A .env file in the working directory is applied first; a missing
// config file is tolerated so defaults and environment are enough.
func Load(configPath string) (*Config, error) {
	if err := loadDotEnv(".env"); err != nil {
		return nil, err
	}

	if configPath == "" {
		configPath = os.Getenv("CONFIG_PATH")
	}
	if configPath == "" {
		configPath = DefaultPath
	}

	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	if err := bindEnvVars(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// loadDotEnv applies a .env file without overriding variables already set
func loadDotEnv(path string) error {
	if err := gotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)
	v.SetDefault("server.allowed_origins", []string{"*"})

	// Database defaults
	v.SetDefault("database.path", "data/vouchers.db")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", 5*time.Minute)

	// Voucher defaults
	v.SetDefault("voucher.token_ttl", 24*time.Hour)
	v.SetDefault("voucher.number_retry_limit", 5)
	v.SetDefault("voucher.default_validity", 365*24*time.Hour)
	v.SetDefault("voucher.timezone", "UTC")

	// Sweeper defaults
	v.SetDefault("sweeper.interval", 24*time.Hour)
	v.SetDefault("sweeper.batch_size", 200)
	v.SetDefault("sweeper.timeout", 10*time.Minute)
	v.SetDefault("sweeper.run_on_start", true)

	// Storage defaults
	v.SetDefault("storage.base_dir", "data/files")

	// Lark defaults
	v.SetDefault("lark.enabled", false)
	v.SetDefault("lark.receive_id_type", "email")

	// Dispatcher defaults
	v.SetDefault("dispatcher.async", true)

	// Logger defaults
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.output_path", "stdout")
	v.SetDefault("logger.format", "json")
}

// bindEnvVars binds environment variables to configuration
func bindEnvVars(v *viper.Viper) error {
	// Sensitive credentials from environment
	bindings := map[string]string{
		"voucher.signing_secret": "VOUCHER_SIGNING_SECRET",
		"auth.jwt_secret":        "AUTH_JWT_SECRET",
		"lark.app_id":            "LARK_APP_ID",
		"lark.app_secret":        "LARK_APP_SECRET",
		"database.path":          "DATABASE_PATH",
		"server.port":            "PORT",
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
	if len(c.Voucher.SigningSecret) < 32 {
		return fmt.Errorf("voucher.signing_secret must be at least 32 bytes")
	}
	if c.Voucher.TokenTTL <= 0 {
		return fmt.Errorf("voucher.token_ttl must be positive")
	}

	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret is required")
	}

	if c.Sweeper.Interval <= 0 {
		return fmt.Errorf("sweeper.interval must be positive")
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535")
	}

	if c.Lark.Enabled && (c.Lark.AppID == "" || c.Lark.AppSecret == "") {
		return fmt.Errorf("lark.app_id and lark.app_secret are required when lark is enabled")
	}

	return nil
}
