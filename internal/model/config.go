package model

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Backend kinds.
const (
	BackendSQLite = "sqlite"
	BackendHTTP   = "http"
	BackendMemory = "memory"
)

// BackendConfig selects and configures the external data collaborator.
type BackendConfig struct {
	// Kind is one of "sqlite", "http" or "memory".
	Kind string `mapstructure:"kind" yaml:"kind"`

	// DBPath is the SQLite database file used when Kind is "sqlite".
	DBPath string `mapstructure:"db_path" yaml:"db_path"`

	// BaseURL is the API root used when Kind is "http". The bearer token
	// is read from TASKHUB_API_TOKEN or the system keyring.
	BaseURL string `mapstructure:"base_url" yaml:"base_url"`
}

// EmailConfig configures the optional IMAP notification source.
type EmailConfig struct {
	Enabled  bool   `mapstructure:"enabled" yaml:"enabled"`
	Host     string `mapstructure:"host" yaml:"host"`
	Port     string `mapstructure:"port" yaml:"port"`
	Username string `mapstructure:"username" yaml:"username"`
	TLS      bool   `mapstructure:"tls" yaml:"tls"`
}

// NotificationConfig holds notification refresh settings.
type NotificationConfig struct {
	// PollIntervalSec is how often (in seconds) notifications are refetched.
	// Zero disables background polling.
	PollIntervalSec int         `mapstructure:"poll_interval_sec" yaml:"poll_interval_sec"`
	Email           EmailConfig `mapstructure:"email" yaml:"email"`
}

// ServerConfig holds settings for the mock backend API server.
type ServerConfig struct {
	Addr string `mapstructure:"addr" yaml:"addr"`
}

// SessionConfig identifies the acting user.
type SessionConfig struct {
	UserEmail string `mapstructure:"user_email" yaml:"user_email"`
}

// LogConfig holds logger settings.
type LogConfig struct {
	Level string `mapstructure:"level" yaml:"level"`
}

// DisplayConfig holds UI/rendering preferences.
type DisplayConfig struct {
	Theme string `mapstructure:"theme" yaml:"theme"`
}

// AppConfig is the top-level application configuration.
type AppConfig struct {
	Backend       BackendConfig      `mapstructure:"backend" yaml:"backend"`
	Server        ServerConfig       `mapstructure:"server" yaml:"server"`
	Notifications NotificationConfig `mapstructure:"notifications" yaml:"notifications"`
	Session       SessionConfig      `mapstructure:"session" yaml:"session"`
	Log           LogConfig          `mapstructure:"log" yaml:"log"`
	Display       DisplayConfig      `mapstructure:"display" yaml:"display"`
}

// DefaultConfigPath returns the default path for the configuration file,
// located at ~/.config/taskhub/config.yaml.
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "config.yaml")
	}
	return filepath.Join(home, ".config", "taskhub", "config.yaml")
}

// DefaultDBPath returns the default SQLite database location.
func DefaultDBPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "taskhub.db")
	}
	return filepath.Join(home, ".config", "taskhub", "taskhub.db")
}

// defaultAppConfig returns a sensible default configuration.
func defaultAppConfig() *AppConfig {
	return &AppConfig{
		Backend: BackendConfig{
			Kind:   BackendSQLite,
			DBPath: DefaultDBPath(),
		},
		Server: ServerConfig{
			Addr: "127.0.0.1:8787",
		},
		Notifications: NotificationConfig{
			PollIntervalSec: 60,
			Email: EmailConfig{
				Port: "993",
				TLS:  true,
			},
		},
		Log: LogConfig{
			Level: "info",
		},
		Display: DisplayConfig{
			Theme: "default",
		},
	}
}

func setDefaults(v *viper.Viper) {
	d := defaultAppConfig()
	v.SetDefault("backend.kind", d.Backend.Kind)
	v.SetDefault("backend.db_path", d.Backend.DBPath)
	v.SetDefault("backend.base_url", "")
	v.SetDefault("server.addr", d.Server.Addr)
	v.SetDefault("notifications.poll_interval_sec", d.Notifications.PollIntervalSec)
	v.SetDefault("notifications.email.enabled", false)
	v.SetDefault("notifications.email.host", "")
	v.SetDefault("notifications.email.username", "")
	v.SetDefault("notifications.email.port", d.Notifications.Email.Port)
	v.SetDefault("notifications.email.tls", d.Notifications.Email.TLS)
	v.SetDefault("session.user_email", "")
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("display.theme", d.Display.Theme)
}

// LoadConfig reads configuration from the given YAML file path using Viper.
// Environment variables prefixed with TASKHUB_ override file values
// (e.g. TASKHUB_BACKEND_KIND). If the file does not exist, defaults are used.
func LoadConfig(path string) (*AppConfig, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("taskhub")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(*os.PathError); !ok {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("reading config %s: %w", path, err)
			}
		}
	}

	cfg := defaultAppConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	switch cfg.Backend.Kind {
	case BackendSQLite, BackendHTTP, BackendMemory:
	default:
		return nil, fmt.Errorf("parsing config %s: unknown backend kind %q", path, cfg.Backend.Kind)
	}
	if cfg.Backend.Kind == BackendHTTP && cfg.Backend.BaseURL == "" {
		return nil, fmt.Errorf("parsing config %s: backend.base_url is required for the http backend", path)
	}

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

	v.Set("backend", cfg.Backend)
	v.Set("server", cfg.Server)
	v.Set("notifications", cfg.Notifications)
	v.Set("session", cfg.Session)
	v.Set("log", cfg.Log)
	v.Set("display", cfg.Display)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}

	return nil
}
