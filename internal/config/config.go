// Package config provides configuration management using Viper
package config

import (
	"fmt"
	"log"
	"path/filepath"
	"sync"
	"time"

	"github.com/spf13/viper"
)

// Environment types
const (
	Development = "development"
	Production  = "production"
	Test        = "test"
)

// LogLevel represents the logging level for the application
type LogLevel string

// Available log levels
const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

// Database types
const (
	SQLiteDatabase = "sqlite"
)

const defaultPrivateKey = "88888888888888888888888888888888"

// Config holds all configuration parameters for the application
type Config struct {
	// Application settings
	AppName     string   `mapstructure:"appname"`
	AppPort     string   `mapstructure:"appport"`
	Environment string   `mapstructure:"environment"`
	LogLevel    LogLevel `mapstructure:"loglevel"`
	PrivateKey  string   `mapstructure:"privatekey"`
	Domain      string   `mapstructure:"domain"`

	// File paths
	DatabasePath          string `mapstructure:"storagepath"`
	DatabaseName          string `mapstructure:"-"` // Derived from other settings
	GeoDBPath             string `mapstructure:"geodbpath"`
	PublicDirectory       string `mapstructure:"publicdir"`
	PublicAssetsUrlPrefix string `mapstructure:"publicassetsurlprefix"`

	// Logging settings
	LogsDirectory    string `mapstructure:"logsdir"`
	LogsMaxSizeInMb  int    `mapstructure:"logsmaxsizeinmb"`
	LogsMaxBackups   int    `mapstructure:"logsmaxbackups"`
	LogsMaxAgeInDays int    `mapstructure:"logsmaxageindays"`

	// Database settings
	DatabaseType         string `mapstructure:"dbtype"`
	DatabaseMaxOpenConns int    `mapstructure:"dbmaxopenconns"`
	DatabaseMaxIdleConns int    `mapstructure:"dbmaxidleconns"`

	// Pipeline settings
	RequestTimeoutSeconds    int  `mapstructure:"requesttimeoutseconds"`
	ServerDedup              bool `mapstructure:"serverdedup"`
	CaptureSessionTTLSeconds int  `mapstructure:"capturesessionttlseconds"`
	DefaultWindowDays        int  `mapstructure:"defaultwindowdays"`

	// Job scheduling settings
	JobIntervalSeconds int `mapstructure:"jobintervalseconds"`
}

var (
	cfg  *Config
	once sync.Once
)

// GetConfig returns the application configuration
func GetConfig() *Config {
	once.Do(func() {
		v := viper.New()

		v.SetDefault("appname", "folio")
		v.SetDefault("appport", "3000")
		v.SetDefault("environment", Development)
		v.SetDefault("loglevel", string(LogLevelDebug))
		v.SetDefault("privatekey", defaultPrivateKey)
		v.SetDefault("storagepath", "storage")
		v.SetDefault("geodbpath", "storage/GeoLite2-City.mmdb")
		v.SetDefault("publicdir", "public")
		v.SetDefault("publicassetsurlprefix", "/")
		v.SetDefault("logsdir", "logs")
		v.SetDefault("logsmaxsizeinmb", 20)
		v.SetDefault("logsmaxbackups", 10)
		v.SetDefault("logsmaxageindays", 30)
		v.SetDefault("dbtype", SQLiteDatabase)
		v.SetDefault("dbmaxopenconns", 0)
		v.SetDefault("dbmaxidleconns", 0)
		v.SetDefault("requesttimeoutseconds", 10)
		v.SetDefault("serverdedup", false)
		v.SetDefault("capturesessionttlseconds", 1800)
		v.SetDefault("defaultwindowdays", 30)
		v.SetDefault("jobintervalseconds", 60)

		v.BindEnv("appname", "FOLIO_APP_NAME")
		v.BindEnv("appport", "FOLIO_APP_PORT")
		v.BindEnv("environment", "FOLIO_ENV")
		v.BindEnv("loglevel", "FOLIO_LOG_LEVEL")
		v.BindEnv("privatekey", "FOLIO_PRIVATE_KEY")
		v.BindEnv("domain", "FOLIO_DOMAIN")
		v.BindEnv("storagepath", "FOLIO_STORAGE_PATH")
		v.BindEnv("geodbpath", "FOLIO_GEO_DB_PATH")
		v.BindEnv("publicdir", "FOLIO_PUBLIC_DIR")
		v.BindEnv("publicassetsurlprefix", "FOLIO_PUBLIC_ASSETS_URL_PREFIX")
		v.BindEnv("logsdir", "FOLIO_LOGS_DIR")
		v.BindEnv("logsmaxsizeinmb", "FOLIO_LOGS_MAX_SIZE_IN_MB")
		v.BindEnv("logsmaxbackups", "FOLIO_LOGS_MAX_BACKUPS")
		v.BindEnv("logsmaxageindays", "FOLIO_LOGS_MAX_AGE_IN_DAYS")
		v.BindEnv("dbtype", "FOLIO_DB_TYPE")
		v.BindEnv("dbmaxopenconns", "FOLIO_DB_MAX_OPEN_CONNS")
		v.BindEnv("dbmaxidleconns", "FOLIO_DB_MAX_IDLE_CONNS")
		v.BindEnv("requesttimeoutseconds", "FOLIO_REQUEST_TIMEOUT_SECONDS")
		v.BindEnv("serverdedup", "FOLIO_SERVER_DEDUP")
		v.BindEnv("capturesessionttlseconds", "FOLIO_CAPTURE_SESSION_TTL_SECONDS")
		v.BindEnv("defaultwindowdays", "FOLIO_DEFAULT_WINDOW_DAYS")
		v.BindEnv("jobintervalseconds", "FOLIO_JOB_INTERVAL_SECONDS")

		cfg = &Config{}
		if err := v.Unmarshal(cfg); err != nil {
			log.Fatalf("config: failed to unmarshal configuration: %v", err)
		}

		if err := cfg.validate(); err != nil {
			log.Fatalf("config: invalid configuration: %v", err)
		}

		cfg.DatabaseName = cfg.GetDatabasePath()

		if cfg.PrivateKey == "" {
			log.Fatal("Private key is required")
		}
		if cfg.IsProduction() && cfg.PrivateKey == defaultPrivateKey {
			log.Fatal("Production requires a unique FOLIO_PRIVATE_KEY (cannot use default)")
		}
	})
	return cfg
}

// validate checks the configuration for errors
func (c *Config) validate() error {
	validEnvs := map[string]bool{
		Development: true,
		Production:  true,
		Test:        true,
	}
	if !validEnvs[c.Environment] {
		return fmt.Errorf("invalid environment: %s", c.Environment)
	}

	validDBTypes := map[string]bool{
		SQLiteDatabase: true,
	}
	if !validDBTypes[c.DatabaseType] {
		return fmt.Errorf("invalid database type: %s", c.DatabaseType)
	}

	if c.RequestTimeoutSeconds <= 0 {
		return fmt.Errorf("request timeout must be positive, got %d", c.RequestTimeoutSeconds)
	}
	if c.DefaultWindowDays < 1 || c.DefaultWindowDays > MaxWindowDays {
		return fmt.Errorf("default window must be between 1 and %d days, got %d", MaxWindowDays, c.DefaultWindowDays)
	}

	return nil
}

// MaxWindowDays caps the aggregation window accepted from callers.
const MaxWindowDays = 365

// GetDatabasePath returns the appropriate database path based on environment
func (c *Config) GetDatabasePath() string {
	if c.DatabaseName == "" {
		c.DatabaseName = filepath.Join(c.DatabasePath,
			fmt.Sprintf("%s-%s.db", c.AppName, c.Environment))
	}
	return c.DatabaseName
}

// IsDevelopment returns true if the environment is development
func (c *Config) IsDevelopment() bool {
	return c.Environment == Development
}

// IsProduction returns true if the environment is production
func (c *Config) IsProduction() bool {
	return c.Environment == Production
}

// IsTest returns true if the environment is test
func (c *Config) IsTest() bool {
	return c.Environment == Test
}

// GetPort returns the HTTP server port (implements cartridge.Config interface).
func (c *Config) GetPort() string {
	return c.AppPort
}

// GetPublicDirectory returns the path to public/static assets (implements cartridge.Config interface).
func (c *Config) GetPublicDirectory() string {
	return c.PublicDirectory
}

// GetAssetsPrefix returns the URL prefix for static assets (implements cartridge.Config interface).
func (c *Config) GetAssetsPrefix() string {
	return c.PublicAssetsUrlPrefix
}

// GetAppName returns the application name (implements cartridge.FactoryConfig interface).
func (c *Config) GetAppName() string {
	return c.AppName
}

// DatabaseDSN returns the database connection string (implements cartridge.FactoryConfig interface).
func (c *Config) DatabaseDSN() string {
	return c.GetDatabasePath()
}

// GetSessionSecret returns the key used to sign visitor signatures (implements cartridge.FactoryConfig interface).
func (c *Config) GetSessionSecret() string {
	return c.PrivateKey
}

// GetRequestTimeout bounds the storage work done for a single ingestion or dashboard request.
func (c *Config) GetRequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutSeconds) * time.Second
}

// GetCaptureSessionTTL is how long a capture client remembers the last resource per event kind.
func (c *Config) GetCaptureSessionTTL() time.Duration {
	return time.Duration(c.CaptureSessionTTLSeconds) * time.Second
}

// ClampWindowDays normalizes a caller supplied window. Zero or negative falls back to the default.
func (c *Config) ClampWindowDays(days int) int {
	if days <= 0 {
		return c.DefaultWindowDays
	}
	if days > MaxWindowDays {
		return MaxWindowDays
	}
	return days
}

// GetMaxOpenConns returns the appropriate MaxOpenConns value based on environment
// If explicitly set via env var, uses that value. Otherwise:
// - Test: 1
// - Development/Production: 10 (allows concurrent reads for parallel dashboard queries)
func (c *Config) GetMaxOpenConns() int {
	if c.DatabaseMaxOpenConns > 0 {
		return c.DatabaseMaxOpenConns
	}

	if c.Environment == Test {
		return 1
	}

	return 10
}

// GetMaxIdleConns returns the appropriate MaxIdleConns value based on environment
func (c *Config) GetMaxIdleConns() int {
	if c.DatabaseMaxIdleConns > 0 {
		return c.DatabaseMaxIdleConns
	}

	if c.Environment == Test {
		return 1
	}

	return 5
}

// GetLogLevel returns the log level as a string (implements cartridge.LogConfigProvider).
func (c *Config) GetLogLevel() string {
	return string(c.LogLevel)
}

// GetLogDirectory returns the logs directory (implements cartridge.LogConfigProvider).
func (c *Config) GetLogDirectory() string {
	return c.LogsDirectory
}

// GetLogMaxSizeMB returns the max log file size in MB (implements cartridge.LogConfigProvider).
func (c *Config) GetLogMaxSizeMB() int {
	return c.LogsMaxSizeInMb
}

// GetLogMaxBackups returns the max number of log backups (implements cartridge.LogConfigProvider).
func (c *Config) GetLogMaxBackups() int {
	return c.LogsMaxBackups
}

// GetLogMaxAgeDays returns the max age in days for log files (implements cartridge.LogConfigProvider).
func (c *Config) GetLogMaxAgeDays() int {
	return c.LogsMaxAgeInDays
}

// Reset clears the cached configuration; intended for tests.
func Reset() {
	once = sync.Once{}
	cfg = nil
}
