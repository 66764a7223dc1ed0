// Package syncconfig loads process configuration: storage, sync tuning,
// connectivity probing, Google OAuth client settings and logging.
//
// Sources, lowest precedence first: built-in defaults, an optional
// fuel.{yaml,json,toml} file, then FUEL_* environment variables. A .env
// file in the working directory is loaded into the environment first.
package syncconfig

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

// EnvPrefix prefixes every environment override, e.g. FUEL_SYNC_INTERVAL.
const EnvPrefix = "FUEL"

// Configuration keys
const (
	KeyDataDir          = "data_dir"
	KeyStorageDriver    = "storage.driver"
	KeySyncInterval     = "sync.interval"
	KeySyncMaxRetries   = "sync.max_retries"
	KeySyncAuto         = "sync.auto"
	KeySyncAutoTimeout  = "sync.auto_timeout"
	KeyTransportTimeout = "sync.transport_timeout"
	KeyRatePerMinute    = "sync.rate_per_minute"
	KeyProbeURL         = "connectivity.probe_url"
	KeyProbeInterval    = "connectivity.interval"
	KeyGoogleClientID   = "google.client_id"
	KeyGoogleSecret     = "google.client_secret"
	KeyGoogleRedirect   = "google.redirect_url"
	KeySpreadsheetTitle = "google.spreadsheet_title"
	KeyLogLevel         = "log.level"
	KeyLogFormat        = "log.format"
	KeyLogFile          = "log.file"
	KeyLogMaxSizeMB     = "log.max_size_mb"
	KeyLogMaxBackups    = "log.max_backups"
	KeyLogMaxAgeDays    = "log.max_age_days"
)

// StorageConfig selects the SQLite driver.
type StorageConfig struct {
	Driver string
}

// SyncConfig tunes the sync engine and transports.
type SyncConfig struct {
	Interval         time.Duration
	MaxRetries       int
	Auto             bool
	AutoTimeout      time.Duration
	TransportTimeout time.Duration
	RatePerMinute    int
}

// ConnectivityConfig tunes the reachability probe.
type ConnectivityConfig struct {
	ProbeURL string
	Interval time.Duration
}

// GoogleConfig holds the OAuth client used by the Sheets transport.
type GoogleConfig struct {
	ClientID         string
	ClientSecret     string
	RedirectURL      string
	SpreadsheetTitle string
}

// LogConfig controls the process logger.
type LogConfig struct {
	Level      string
	Format     string
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// Config is the resolved process configuration.
type Config struct {
	DataDir      string
	Storage      StorageConfig
	Sync         SyncConfig
	Connectivity ConnectivityConfig
	Google       GoogleConfig
	Log          LogConfig

	// File is the config file that was read, empty if none.
	File string
}

// Defaults applied before any file or environment value.
var defaults = map[string]any{
	KeyDataDir:          ".fuel",
	KeyStorageDriver:    "sqlite",
	KeySyncInterval:     "30s",
	KeySyncMaxRetries:   5,
	KeySyncAuto:         true,
	KeySyncAutoTimeout:  "5s",
	KeyTransportTimeout: "60s",
	KeyRatePerMinute:    60,
	KeyProbeURL:         "https://www.google.com/generate_204",
	KeyProbeInterval:    "10s",
	KeyGoogleRedirect:   "http://127.0.0.1:8085/auth/callback",
	KeySpreadsheetTitle: "FuelTrack - Fuel Events",
	KeyLogLevel:         "info",
	KeyLogFormat:        "text",
	KeyLogFile:          "",
	KeyLogMaxSizeMB:     10,
	KeyLogMaxBackups:    3,
	KeyLogMaxAgeDays:    28,
	KeyGoogleClientID:   "",
	KeyGoogleSecret:     "",
}

// Keys returns every known key in a stable order.
func Keys() []string {
	return []string{
		KeyDataDir, KeyStorageDriver,
		KeySyncInterval, KeySyncMaxRetries, KeySyncAuto, KeySyncAutoTimeout,
		KeyTransportTimeout, KeyRatePerMinute,
		KeyProbeURL, KeyProbeInterval,
		KeyGoogleClientID, KeyGoogleSecret, KeyGoogleRedirect, KeySpreadsheetTitle,
		KeyLogLevel, KeyLogFormat, KeyLogFile, KeyLogMaxSizeMB, KeyLogMaxBackups, KeyLogMaxAgeDays,
	}
}

// Load reads configuration. searchDirs are checked for a fuel.* config
// file in order; ~/.config/fuel is always checked last.
func Load(searchDirs ...string) (*Config, error) {
	// A missing .env is normal.
	_ = godotenv.Load()

	v := newViper(searchDirs)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}
	return decode(v)
}

func newViper(searchDirs []string) *viper.Viper {
	v := viper.New()
	for k, val := range defaults {
		v.SetDefault(k, val)
	}

	v.SetConfigName("fuel")
	for _, dir := range searchDirs {
		if dir != "" {
			v.AddConfigPath(dir)
		}
	}
	if home, err := os.UserHomeDir(); err == nil {
		v.AddConfigPath(filepath.Join(home, ".config", "fuel"))
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

func decode(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		DataDir: v.GetString(KeyDataDir),
		Storage: StorageConfig{Driver: v.GetString(KeyStorageDriver)},
		Sync: SyncConfig{
			Interval:         v.GetDuration(KeySyncInterval),
			MaxRetries:       v.GetInt(KeySyncMaxRetries),
			Auto:             v.GetBool(KeySyncAuto),
			AutoTimeout:      v.GetDuration(KeySyncAutoTimeout),
			TransportTimeout: v.GetDuration(KeyTransportTimeout),
			RatePerMinute:    v.GetInt(KeyRatePerMinute),
		},
		Connectivity: ConnectivityConfig{
			ProbeURL: v.GetString(KeyProbeURL),
			Interval: v.GetDuration(KeyProbeInterval),
		},
		Google: GoogleConfig{
			ClientID:         v.GetString(KeyGoogleClientID),
			ClientSecret:     v.GetString(KeyGoogleSecret),
			RedirectURL:      v.GetString(KeyGoogleRedirect),
			SpreadsheetTitle: v.GetString(KeySpreadsheetTitle),
		},
		Log: LogConfig{
			Level:      strings.ToLower(v.GetString(KeyLogLevel)),
			Format:     strings.ToLower(v.GetString(KeyLogFormat)),
			File:       v.GetString(KeyLogFile),
			MaxSizeMB:  v.GetInt(KeyLogMaxSizeMB),
			MaxBackups: v.GetInt(KeyLogMaxBackups),
			MaxAgeDays: v.GetInt(KeyLogMaxAgeDays),
		},
		File: v.ConfigFileUsed(),
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func validate(cfg *Config) error {
	switch cfg.Storage.Driver {
	case "sqlite", "sqlite3":
	default:
		return fmt.Errorf("%s: unknown driver %q (want sqlite or sqlite3)", KeyStorageDriver, cfg.Storage.Driver)
	}
	if cfg.Sync.Interval <= 0 {
		return fmt.Errorf("%s must be positive", KeySyncInterval)
	}
	if cfg.Sync.MaxRetries < 1 {
		return fmt.Errorf("%s must be at least 1", KeySyncMaxRetries)
	}
	if cfg.Sync.TransportTimeout <= 0 {
		return fmt.Errorf("%s must be positive", KeyTransportTimeout)
	}
	if cfg.Connectivity.Interval <= 0 {
		return fmt.Errorf("%s must be positive", KeyProbeInterval)
	}
	switch cfg.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("%s: unknown format %q (want text or json)", KeyLogFormat, cfg.Log.Format)
	}
	return nil
}

// Get returns the effective value of one key as a string.
func (c *Config) Get(key string) (string, error) {
	switch key {
	case KeyDataDir:
		return c.DataDir, nil
	case KeyStorageDriver:
		return c.Storage.Driver, nil
	case KeySyncInterval:
		return c.Sync.Interval.String(), nil
	case KeySyncMaxRetries:
		return fmt.Sprint(c.Sync.MaxRetries), nil
	case KeySyncAuto:
		return fmt.Sprint(c.Sync.Auto), nil
	case KeySyncAutoTimeout:
		return c.Sync.AutoTimeout.String(), nil
	case KeyTransportTimeout:
		return c.Sync.TransportTimeout.String(), nil
	case KeyRatePerMinute:
		return fmt.Sprint(c.Sync.RatePerMinute), nil
	case KeyProbeURL:
		return c.Connectivity.ProbeURL, nil
	case KeyProbeInterval:
		return c.Connectivity.Interval.String(), nil
	case KeyGoogleClientID:
		return c.Google.ClientID, nil
	case KeyGoogleSecret:
		if c.Google.ClientSecret == "" {
			return "", nil
		}
		return "********", nil
	case KeyGoogleRedirect:
		return c.Google.RedirectURL, nil
	case KeySpreadsheetTitle:
		return c.Google.SpreadsheetTitle, nil
	case KeyLogLevel:
		return c.Log.Level, nil
	case KeyLogFormat:
		return c.Log.Format, nil
	case KeyLogFile:
		return c.Log.File, nil
	case KeyLogMaxSizeMB:
		return fmt.Sprint(c.Log.MaxSizeMB), nil
	case KeyLogMaxBackups:
		return fmt.Sprint(c.Log.MaxBackups), nil
	case KeyLogMaxAgeDays:
		return fmt.Sprint(c.Log.MaxAgeDays), nil
	}
	return "", fmt.Errorf("unknown config key %q", key)
}

// OAuthConfig returns the Google OAuth client for the Sheets API, or nil
// when no client id is configured. Without it a stored token cannot be
// refreshed.
func (c *Config) OAuthConfig(scopes ...string) *oauth2.Config {
	if c.Google.ClientID == "" {
		return nil
	}
	return &oauth2.Config{
		ClientID:     c.Google.ClientID,
		ClientSecret: c.Google.ClientSecret,
		RedirectURL:  c.Google.RedirectURL,
		Endpoint:     google.Endpoint,
		Scopes:       scopes,
	}
}
