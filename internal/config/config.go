package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
)

// EnvPrefix is the prefix of environment variables that override the file
const EnvPrefix = "CLOUDBOX"

// Config represents the entire application configuration
type Config struct {
	API      APIConfig      `mapstructure:"api"`
	Transfer TransferConfig `mapstructure:"transfer"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Database DatabaseConfig `mapstructure:"database"`
}

// APIConfig contains content API connection settings
type APIConfig struct {
	BaseURL            string `mapstructure:"base_url"`
	UploadURL          string `mapstructure:"upload_url"`
	AccessToken        string `mapstructure:"access_token"`
	Timeout            string `mapstructure:"timeout"`
	MaxRetries         int    `mapstructure:"max_retries"`
	RetryBaseDelay     string `mapstructure:"retry_base_delay"`
	MinRequestInterval string `mapstructure:"min_request_interval"`
	UserAgent          string `mapstructure:"user_agent"`
}

// TransferConfig contains upload and download settings
type TransferConfig struct {
	ChunkSizeKB      int    `mapstructure:"chunk_size_kb"`
	VerifyChecksum   bool   `mapstructure:"verify_checksum"`
	ProgressInterval string `mapstructure:"progress_interval"`
	HistoryRetention string `mapstructure:"history_retention"`
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	File   string `mapstructure:"file"` // rotated log file, empty for stderr only
}

// DatabaseConfig contains transfer journal settings
type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

// Load loads configuration from the specified file path. An empty path
// loads defaults and environment variables only.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		v.SetConfigType("yaml")

		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := config.expandPaths(); err != nil {
		return nil, err
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("api.base_url", "https://api.box.com/2.0")
	v.SetDefault("api.upload_url", "https://upload.box.com/api/2.0")
	v.SetDefault("api.access_token", "")
	v.SetDefault("api.timeout", "30s")
	v.SetDefault("api.max_retries", 3)
	v.SetDefault("api.retry_base_delay", "500ms")
	v.SetDefault("api.min_request_interval", "0s")
	v.SetDefault("api.user_agent", "")
	v.SetDefault("transfer.chunk_size_kb", 32)
	v.SetDefault("transfer.verify_checksum", true)
	v.SetDefault("transfer.progress_interval", "1s")
	v.SetDefault("transfer.history_retention", "720h")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
	v.SetDefault("logging.file", "")
	v.SetDefault("database.path", defaultDatabasePath())
}

// LoadEnvFile loads KEY=value pairs from path into the environment
// without overriding variables that are already set. An empty path reads
// .env from the working directory and tolerates its absence.
func LoadEnvFile(path string) error {
	if path == "" {
		if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("failed to load .env: %w", err)
		}
		return nil
	}

	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load env file %s: %w", path, err)
	}
	return nil
}

// expandPaths resolves a leading ~ in file paths
func (c *Config) expandPaths() error {
	for _, p := range []*string{&c.Database.Path, &c.Logging.File} {
		expanded, err := homedir.Expand(*p)
		if err != nil {
			return fmt.Errorf("failed to expand path %q: %w", *p, err)
		}
		*p = expanded
	}
	return nil
}

func defaultDatabasePath() string {
	home, err := homedir.Dir()
	if err != nil {
		return "cloudbox.db"
	}
	return filepath.Join(home, ".cloudbox", "journal.db")
}

// Validate validates the configuration
func (c *Config) Validate() error {
	// Validate API config
	if c.API.AccessToken == "" {
		return errors.New("api.access_token is required")
	}
	if c.API.BaseURL == "" {
		return errors.New("api.base_url is required")
	}
	if c.API.UploadURL == "" {
		return errors.New("api.upload_url is required")
	}
	if c.API.MaxRetries < 0 || c.API.MaxRetries > 10 {
		return errors.New("api.max_retries must be between 0 and 10")
	}

	durations := map[string]string{
		"api.timeout":                c.API.Timeout,
		"api.retry_base_delay":       c.API.RetryBaseDelay,
		"api.min_request_interval":   c.API.MinRequestInterval,
		"transfer.progress_interval": c.Transfer.ProgressInterval,
		"transfer.history_retention": c.Transfer.HistoryRetention,
	}
	for key, value := range durations {
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", key, err)
		}
		if d < 0 {
			return fmt.Errorf("%s must not be negative", key)
		}
	}

	// Validate transfer config
	if c.Transfer.ChunkSizeKB < 1 || c.Transfer.ChunkSizeKB > 16*1024 {
		return errors.New("transfer.chunk_size_kb must be between 1 and 16384")
	}

	// Validate logging config
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
		// Valid levels
	default:
		return fmt.Errorf("invalid logging.level: %s", c.Logging.Level)
	}

	switch c.Logging.Format {
	case "json", "text":
		// Valid formats
	default:
		return fmt.Errorf("invalid logging.format: %s", c.Logging.Format)
	}

	if c.Database.Path == "" {
		return errors.New("database.path is required")
	}

	return nil
}

// GetTimeout returns the API request timeout as time.Duration
func (c *APIConfig) GetTimeout() time.Duration {
	d, _ := time.ParseDuration(c.Timeout)
	if d == 0 {
		return 30 * time.Second
	}
	return d
}

// GetRetryBaseDelay returns the first retry delay as time.Duration
func (c *APIConfig) GetRetryBaseDelay() time.Duration {
	d, _ := time.ParseDuration(c.RetryBaseDelay)
	if d == 0 {
		return 500 * time.Millisecond
	}
	return d
}

// GetMinRequestInterval returns the minimum spacing between API calls
func (c *APIConfig) GetMinRequestInterval() time.Duration {
	d, _ := time.ParseDuration(c.MinRequestInterval)
	return d
}

// GetChunkSize returns the transfer chunk size in bytes
func (c *TransferConfig) GetChunkSize() int {
	if c.ChunkSizeKB <= 0 {
		return 32 * 1024
	}
	return c.ChunkSizeKB * 1024
}

// GetProgressInterval returns the progress log interval as time.Duration
func (c *TransferConfig) GetProgressInterval() time.Duration {
	d, _ := time.ParseDuration(c.ProgressInterval)
	return d
}

// GetHistoryRetention returns how long finished transfers are kept
func (c *TransferConfig) GetHistoryRetention() time.Duration {
	d, _ := time.ParseDuration(c.HistoryRetention)
	if d == 0 {
		return 30 * 24 * time.Hour
	}
	return d
}
