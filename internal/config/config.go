// Package config loads server configuration from YAML with environment overrides.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is prepended to every environment override, e.g. IDLEMINE_PORT.
const EnvPrefix = "IDLEMINE_"

// DefaultPath is used when neither --config nor IDLEMINE_CONFIG is set.
const DefaultPath = "config/server.yaml"

// Storage drivers.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
	DriverMemory   = "memory"
)

// Server holds all configuration for the game server.
type Server struct {
	// Network
	BindAddress string `yaml:"bind_address" env:"BIND_ADDRESS"`
	Port        int    `yaml:"port" env:"PORT"`
	LogLevel    string `yaml:"log_level" env:"LOG_LEVEL"`

	// Ticks and per-connection outbox
	TickInterval  time.Duration `yaml:"tick_interval" env:"TICK_INTERVAL"`     // scheduler period (default: 100ms)
	WriteTimeout  time.Duration `yaml:"write_timeout" env:"WRITE_TIMEOUT"`     // per-write deadline (default: 5s)
	ReadTimeout   time.Duration `yaml:"read_timeout" env:"READ_TIMEOUT"`       // idle client disconnect (default: 120s)
	SendQueueSize int           `yaml:"send_queue_size" env:"SEND_QUEUE_SIZE"` // per-client outbox capacity (default: 256)

	// Websocket origins; empty or "*" allows any.
	AllowedOrigins []string `yaml:"allowed_origins" env:"ALLOWED_ORIGINS"`

	Storage  StorageConfig  `yaml:"storage" envPrefix:"STORAGE_"`
	Database DatabaseConfig `yaml:"database" envPrefix:"DATABASE_"`
	Auth     AuthConfig     `yaml:"auth" envPrefix:"AUTH_"`
}

// StorageConfig selects the persistence backend.
type StorageConfig struct {
	Driver     string `yaml:"driver" env:"DRIVER"`
	SQLitePath string `yaml:"sqlite_path" env:"SQLITE_PATH"`
}

// DatabaseConfig holds PostgreSQL connection parameters.
type DatabaseConfig struct {
	Host     string `yaml:"host" env:"HOST"`
	Port     int    `yaml:"port" env:"PORT"`
	User     string `yaml:"user" env:"USER"`
	Password string `yaml:"password" env:"PASSWORD"`
	DBName   string `yaml:"dbname" env:"DBNAME"`
	SSLMode  string `yaml:"sslmode" env:"SSLMODE"`
}

// DSN returns the PostgreSQL connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

// AuthConfig configures Telegram login and session tokens.
type AuthConfig struct {
	BotToken      string        `yaml:"bot_token" env:"BOT_TOKEN"`
	TokenSecret   string        `yaml:"token_secret" env:"TOKEN_SECRET"`
	TokenTTL      time.Duration `yaml:"token_ttl" env:"TOKEN_TTL"`
	Issuer        string        `yaml:"issuer" env:"ISSUER"`
	AllowDevLogin bool          `yaml:"allow_dev_login" env:"ALLOW_DEV_LOGIN"`

	// InitDataMaxAge bounds how old a Telegram auth_date may be (0 disables the check).
	InitDataMaxAge time.Duration `yaml:"init_data_max_age" env:"INIT_DATA_MAX_AGE"`
}

// DefaultServer returns Server config with sensible defaults.
func DefaultServer() Server {
	return Server{
		BindAddress:   "0.0.0.0",
		Port:          8000,
		LogLevel:      "info",
		TickInterval:  100 * time.Millisecond,
		WriteTimeout:  5 * time.Second,
		ReadTimeout:   120 * time.Second,
		SendQueueSize: 256,
		Storage: StorageConfig{
			Driver:     DriverPostgres,
			SQLitePath: "idlemine.db",
		},
		Database: DatabaseConfig{
			Host:     "127.0.0.1",
			Port:     5432,
			User:     "idlemine",
			Password: "idlemine",
			DBName:   "idlemine",
			SSLMode:  "disable",
		},
		Auth: AuthConfig{
			TokenTTL:       24 * time.Hour,
			InitDataMaxAge: 24 * time.Hour,
			Issuer:         "idlemine",
		},
	}
}

// LoadServer loads server config from a YAML file, then applies IDLEMINE_* environment overrides.
// If the file doesn't exist, defaults are used.
func LoadServer(path string) (Server, error) {
	cfg := DefaultServer()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parsing config %s: %w", path, err)
		}
	case os.IsNotExist(err):
	default:
		return cfg, fmt.Errorf("reading config %s: %w", path, err)
	}

	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return cfg, fmt.Errorf("parsing env overrides: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// ResolvePath picks the config file: explicit flag, then IDLEMINE_CONFIG, then DefaultPath.
func ResolvePath(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if p := os.Getenv(EnvPrefix + "CONFIG"); p != "" {
		return p
	}
	return DefaultPath
}

// Validate checks values that would otherwise fail late at runtime.
func (c Server) Validate() error {
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	if c.TickInterval <= 0 {
		return fmt.Errorf("tick_interval must be positive, got %s", c.TickInterval)
	}
	switch c.Storage.Driver {
	case DriverPostgres, DriverSQLite, DriverMemory:
	default:
		return fmt.Errorf("unknown storage driver %q", c.Storage.Driver)
	}
	if c.Storage.Driver == DriverSQLite && c.Storage.SQLitePath == "" {
		return fmt.Errorf("storage.sqlite_path is required for sqlite driver")
	}
	return nil
}
