// Package config loads lifetrack settings from defaults, an optional TOML
// file and LIFETRACK_* environment variables.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/robfig/cron/v3"
	"github.com/spf13/viper"

	"github.com/kimhsiao/lifetrack/backend/internal/logging"
)

// EnvPrefix prefixes every environment override, e.g. LIFETRACK_SYNC_BACKEND_URL.
const EnvPrefix = "LIFETRACK"

// Config is the full application configuration.
type Config struct {
	DataDir  string         `mapstructure:"data_dir"`
	UserID   string         `mapstructure:"user_id"`
	Timezone string         `mapstructure:"timezone"`
	Sync     SyncConfig     `mapstructure:"sync"`
	Server   ServerConfig   `mapstructure:"server"`
	Logging  logging.Config `mapstructure:"logging"`
}

// SyncConfig controls background replication.
type SyncConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	BackendURL   string        `mapstructure:"backend_url"`
	AuthToken    string        `mapstructure:"auth_token"`
	Schedule     string        `mapstructure:"schedule"`
	EntryTimeout time.Duration `mapstructure:"entry_timeout"`
	RetryBase    time.Duration `mapstructure:"retry_base"`
	RetryMax     time.Duration `mapstructure:"retry_max"`
}

// ServerConfig is the local HTTP API address.
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// Addr returns host:port.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// DefaultDataDir returns ~/.lifetrack, falling back to ./.lifetrack.
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".lifetrack"
	}
	return filepath.Join(home, ".lifetrack")
}

// DefaultPath returns the config file location inside dataDir.
func DefaultPath(dataDir string) string {
	return filepath.Join(dataDir, "config.toml")
}

func setDefaults(v *viper.Viper) {
	dataDir := DefaultDataDir()
	v.SetDefault("data_dir", dataDir)
	v.SetDefault("user_id", "")
	v.SetDefault("timezone", "Local")

	v.SetDefault("sync.enabled", false)
	v.SetDefault("sync.backend_url", "")
	v.SetDefault("sync.auth_token", "")
	v.SetDefault("sync.schedule", "@every 30s")
	v.SetDefault("sync.entry_timeout", 30*time.Second)
	v.SetDefault("sync.retry_base", time.Minute)
	v.SetDefault("sync.retry_max", time.Hour)

	v.SetDefault("server.host", "127.0.0.1")
	v.SetDefault("server.port", 8090)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
	v.SetDefault("logging.file", "")
	v.SetDefault("logging.max_size_mb", 10)
	v.SetDefault("logging.max_backups", 3)
}

// Default returns the configuration used when no file or env is present.
func Default() *Config {
	cfg, err := Load("")
	if err != nil {
		panic(err)
	}
	return cfg
}

// Load reads the configuration. A missing file at path is not an error;
// an empty path skips the file entirely.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("toml")
		if err := v.ReadInConfig(); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks values that would otherwise fail late.
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return errors.New("data_dir is required")
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	if _, err := logging.ParseLevel(c.Logging.Level); err != nil {
		return err
	}
	if c.Sync.Enabled && c.Sync.BackendURL == "" {
		return errors.New("sync.backend_url is required when sync is enabled")
	}
	if _, err := cron.ParseStandard(c.Sync.Schedule); err != nil {
		return fmt.Errorf("invalid sync.schedule %q: %w", c.Sync.Schedule, err)
	}
	if c.Sync.EntryTimeout <= 0 {
		return errors.New("sync.entry_timeout must be positive")
	}
	if c.Sync.RetryBase <= 0 || c.Sync.RetryMax < c.Sync.RetryBase {
		return errors.New("sync.retry_base must be positive and not above sync.retry_max")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server.port %d", c.Server.Port)
	}
	return nil
}

// Location resolves the zone used to turn instants into calendar days.
func (c *Config) Location() (*time.Location, error) {
	if c.Timezone == "" || c.Timezone == "Local" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// DBPath returns the SQLite file path.
func (c *Config) DBPath() string {
	return filepath.Join(c.DataDir, "lifetrack.db")
}

// fileConfig is the on-disk TOML shape; durations are written as strings
// such as "30s" so the file stays hand-editable.
type fileConfig struct {
	DataDir  string         `toml:"data_dir"`
	UserID   string         `toml:"user_id"`
	Timezone string         `toml:"timezone"`
	Sync     fileSync       `toml:"sync"`
	Server   fileServer     `toml:"server"`
	Logging  logging.Config `toml:"logging"`
}

type fileSync struct {
	Enabled      bool   `toml:"enabled"`
	BackendURL   string `toml:"backend_url"`
	AuthToken    string `toml:"auth_token"`
	Schedule     string `toml:"schedule"`
	EntryTimeout string `toml:"entry_timeout"`
	RetryBase    string `toml:"retry_base"`
	RetryMax     string `toml:"retry_max"`
}

type fileServer struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

// Save writes cfg to path, creating parent dirs as needed.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	out := fileConfig{
		DataDir:  cfg.DataDir,
		UserID:   cfg.UserID,
		Timezone: cfg.Timezone,
		Sync: fileSync{
			Enabled:      cfg.Sync.Enabled,
			BackendURL:   cfg.Sync.BackendURL,
			AuthToken:    cfg.Sync.AuthToken,
			Schedule:     cfg.Sync.Schedule,
			EntryTimeout: cfg.Sync.EntryTimeout.String(),
			RetryBase:    cfg.Sync.RetryBase.String(),
			RetryMax:     cfg.Sync.RetryMax.String(),
		},
		Server:  fileServer{Host: cfg.Server.Host, Port: cfg.Server.Port},
		Logging: cfg.Logging,
	}
	encErr := toml.NewEncoder(f).Encode(out)
	if closeErr := f.Close(); closeErr != nil && encErr == nil {
		return closeErr
	}
	return encErr
}
