package config

import (
	"time"

	"smartquery/internal/naming"
)

// Config holds the application configuration.
type Config struct {
	Database DatabaseConfig `mapstructure:"database"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Engine   EngineConfig   `mapstructure:"engine"`
	Naming   naming.Config  `mapstructure:"naming"`
}

// PoolConfig holds connection pool parameters.
type PoolConfig struct {
	MaxOpen     int           `mapstructure:"max_open"`
	MaxIdle     int           `mapstructure:"max_idle"`
	MaxLifetime time.Duration `mapstructure:"max_lifetime"`
}

// DatabaseConfig holds database connection parameters.
type DatabaseConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	PasswordFile   string `mapstructure:"password_file"`
	PasswordPrompt bool   `mapstructure:"password_prompt"`
	Database       string `mapstructure:"database"`

	// Params holds extra DSN parameters, for example tls=skip-verify.
	// parseTime and loc are always set by the engine and cannot be
	// overridden here.
	Params map[string]string `mapstructure:"params"`

	// Pool holds connection pool settings applied by the caller.
	Pool PoolConfig `mapstructure:"pool"`
}

// LoggingConfig holds logging parameters.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Format string `mapstructure:"format"` // json, text
}

// EngineConfig bounds query resolution. Zero values disable each bound.
type EngineConfig struct {
	// DefaultLimit caps root result sets when a query does not carry its
	// own limit.
	DefaultLimit int `mapstructure:"default_limit"`
	// MaxEagerDepth caps relationship nesting in eager-load trees.
	MaxEagerDepth int `mapstructure:"max_eager_depth"`
	// MaxJoins caps the total joins across a resolved plan.
	MaxJoins int `mapstructure:"max_joins"`
}
