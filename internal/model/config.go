package model

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// APIConfig holds backend connection settings.
type APIConfig struct {
	// BaseURL is the root URL of the deal-room backend.
	BaseURL string `mapstructure:"base_url" yaml:"base_url"`

	// TimeoutSec bounds each HTTP request.
	TimeoutSec int `mapstructure:"timeout_sec" yaml:"timeout_sec"`
}

// SyncConfig controls the background reconciliation worker.
type SyncConfig struct {
	// IntervalSec is how often pending annotations, offline deal edits and
	// the notification feed are processed.
	IntervalSec int `mapstructure:"interval_sec" yaml:"interval_sec"`

	// OnlineCheckSec is how often the backend health endpoint is probed.
	OnlineCheckSec int `mapstructure:"online_check_sec" yaml:"online_check_sec"`
}

// StorageConfig locates the local database and document cache.
type StorageConfig struct {
	DBPath   string `mapstructure:"db_path" yaml:"db_path"`
	CacheDir string `mapstructure:"cache_dir" yaml:"cache_dir"`
}

// LogConfig controls the structured log output.
type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
	File   string `mapstructure:"file" yaml:"file"`
}

// PushConfig holds push-notification settings.
type PushConfig struct {
	// DeviceToken overrides the generated installation token.
	DeviceToken string `mapstructure:"device_token" yaml:"device_token"`
}

// AppConfig is the top-level application configuration.
type AppConfig struct {
	API     APIConfig     `mapstructure:"api" yaml:"api"`
	Sync    SyncConfig    `mapstructure:"sync" yaml:"sync"`
	Storage StorageConfig `mapstructure:"storage" yaml:"storage"`
	Log     LogConfig     `mapstructure:"log" yaml:"log"`
	Push    PushConfig    `mapstructure:"push" yaml:"push"`
}

// RequestTimeout returns the API timeout as a duration.
func (c AppConfig) RequestTimeout() time.Duration {
	return time.Duration(c.API.TimeoutSec) * time.Second
}

// SyncInterval returns the sync worker interval as a duration.
func (c AppConfig) SyncInterval() time.Duration {
	return time.Duration(c.Sync.IntervalSec) * time.Second
}

// OnlineCheckInterval returns the connectivity probe interval as a duration.
func (c AppConfig) OnlineCheckInterval() time.Duration {
	return time.Duration(c.Sync.OnlineCheckSec) * time.Second
}

// envPrefix is prepended to every environment override, e.g.
// DEALROOM_API_BASE_URL.
const envPrefix = "DEALROOM"

// DefaultConfigPath returns the default path for the configuration file,
// located at ~/.config/dealroom/config.yaml.
func DefaultConfigPath() string {
	return filepath.Join(configHome(), "dealroom", "config.yaml")
}

func configHome() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config")
}

func stateHome() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".local", "state", "dealroom")
}

func cacheHome() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		return filepath.Join(".", "cache")
	}
	return filepath.Join(dir, "dealroom")
}

// setDefaults registers every key so missing values resolve sensibly and
// AutomaticEnv can find them.
func setDefaults(v *viper.Viper) {
	v.SetDefault("api.base_url", "http://127.0.0.1:8080")
	v.SetDefault("api.timeout_sec", 30)
	v.SetDefault("sync.interval_sec", 60)
	v.SetDefault("sync.online_check_sec", 5)
	v.SetDefault("storage.db_path", filepath.Join(stateHome(), "dealroom.db"))
	v.SetDefault("storage.cache_dir", cacheHome())
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("log.file", filepath.Join(stateHome(), "dealroom.log"))
	v.SetDefault("push.device_token", "")
}

// BindFlags declares the command-line overrides on fs.
func BindFlags(fs *pflag.FlagSet) {
	fs.String("config", DefaultConfigPath(), "path to the YAML config file")
	fs.String("api-url", "", "backend base URL")
	fs.String("log-level", "", "log level (debug, info, warn, error)")
}

// LoadConfig reads configuration from the YAML file at path using Viper,
// overlaid with DEALROOM_* environment variables and, when fs is non-nil,
// the flags declared by BindFlags. A missing file yields the defaults.
func LoadConfig(path string, fs *pflag.FlagSet) (*AppConfig, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if fs != nil {
		if f := fs.Lookup("api-url"); f != nil {
			if err := v.BindPFlag("api.base_url", f); err != nil {
				return nil, fmt.Errorf("binding api-url flag: %w", err)
			}
		}
		if f := fs.Lookup("log-level"); f != nil {
			if err := v.BindPFlag("log.level", f); err != nil {
				return nil, fmt.Errorf("binding log-level flag: %w", err)
			}
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var pathErr *os.PathError
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &pathErr) && !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	}

	cfg := &AppConfig{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	if cfg.API.TimeoutSec <= 0 {
		cfg.API.TimeoutSec = 30
	}
	if cfg.Sync.IntervalSec <= 0 {
		cfg.Sync.IntervalSec = 60
	}
	if cfg.Sync.OnlineCheckSec <= 0 {
		cfg.Sync.OnlineCheckSec = 5
	}
	cfg.API.BaseURL = strings.TrimRight(cfg.API.BaseURL, "/")

	return cfg, nil
}

// SaveConfig writes the given configuration to a YAML file at path,
// creating parent directories if needed.
func SaveConfig(path string, cfg *AppConfig) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory %s: %w", dir, err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.Set("api", cfg.API)
	v.Set("sync", cfg.Sync)
	v.Set("storage", cfg.Storage)
	v.Set("log", cfg.Log)
	v.Set("push", cfg.Push)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}

	return nil
}
