package config

import (
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// Config represents the overall application configuration.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Local      LocalConfig      `yaml:"local"`
	Remote     RemoteConfig     `yaml:"remote"`
	Monitor    MonitorConfig    `yaml:"monitor"`
	Sync       SyncConfig       `yaml:"sync"`
	Push       PushConfig       `yaml:"push"`
	WorkerPool WorkerPoolConfig `yaml:"worker_pool"`
	Log        LogConfig        `yaml:"log"`
}

// ServerConfig holds the HTTP surface configuration.
type ServerConfig struct {
	Port            int     `yaml:"port"`
	StaticDir       string  `yaml:"static_dir"`
	RateLimitPerSec float64 `yaml:"rate_limit_per_sec"`
	RateLimitBurst  int     `yaml:"rate_limit_burst"`
	CacheTTLSeconds int     `yaml:"cache_ttl_seconds"`
}

// LocalConfig points at the sqlite file backing the local store.
type LocalConfig struct {
	Path          string `yaml:"path"`
	SchemaVersion string `yaml:"schema_version"`
	// CacheTTLSeconds bounds how long decoded values stay in the read cache.
	CacheTTLSeconds int `yaml:"cache_ttl_seconds"`
}

// RemoteConfig selects and configures the hosted backend.
type RemoteConfig struct {
	// Driver is "rest" (PostgREST-style HTTP API) or "postgres" (direct gorm connection).
	Driver                 string `yaml:"driver"`
	BaseURL                string `yaml:"base_url"`
	APIKey                 string `yaml:"api_key"`
	DSN                    string `yaml:"dsn"`
	TimeoutSeconds         int    `yaml:"timeout_seconds"`
	// PageSize bounds each REST read; it should not exceed the server's max-rows.
	PageSize               int    `yaml:"page_size"`
	MaxOpenConns           int    `yaml:"max_open_conns"`
	MaxIdleConns           int    `yaml:"max_idle_conns"`
	ConnMaxLifetimeMinutes int    `yaml:"conn_max_lifetime_minutes"`

	Timeout time.Duration `yaml:"-"`
}

// MonitorConfig holds the connectivity probe settings.
type MonitorConfig struct {
	ProbeURL        string  `yaml:"probe_url"`
	IntervalSeconds int     `yaml:"interval_seconds"`
	TimeoutSeconds  int     `yaml:"timeout_seconds"`
	AssumeOnline    bool    `yaml:"assume_online"`
	HintsPerSecond  float64 `yaml:"hints_per_second"`

	Interval time.Duration `yaml:"-"`
	Timeout  time.Duration `yaml:"-"`
}

// SyncConfig holds the queue replay and history settings.
type SyncConfig struct {
	ItemTimeoutSeconds int    `yaml:"item_timeout_seconds"`
	HistoryDepth       int    `yaml:"history_depth"`
	AuditFetchLimit    int    `yaml:"audit_fetch_limit"`
	UserID             string `yaml:"user_id"`
	UserAgent          string `yaml:"user_agent"`
	// RefreshIntervalSeconds controls the periodic remote pull; 0 disables it.
	RefreshIntervalSeconds int `yaml:"refresh_interval_seconds"`

	ItemTimeout     time.Duration `yaml:"-"`
	RefreshInterval time.Duration `yaml:"-"`
}

// PushConfig holds the VAPID keys for web push notifications.
type PushConfig struct {
	Enabled    bool   `yaml:"enabled"`
	PublicKey  string `yaml:"vapid_public_key"`
	PrivateKey string `yaml:"vapid_private_key"`
	Subject    string `yaml:"subject"`
	TTL        int    `yaml:"ttl"`
}

// WorkerPoolConfig holds the configuration for the notification worker pool.
type WorkerPoolConfig struct {
	Size int `yaml:"size"`
}

// LogConfig controls the logrus level.
type LogConfig struct {
	Level string `yaml:"level"`
}

// Load reads the configuration from the given path. Values from a .env file
// or the process environment override the secrets in the file.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var cfg Config
	decoder := yaml.NewDecoder(f)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, err
	}

	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		logrus.WithError(err).Warn("could not read .env file")
	}
	cfg.applyEnv()
	cfg.applyDefaults()

	return &cfg, nil
}

func (cfg *Config) applyEnv() {
	if v, ok := os.LookupEnv("REMOTE_API_KEY"); ok {
		cfg.Remote.APIKey = v
	}
	if v, ok := os.LookupEnv("REMOTE_DSN"); ok {
		cfg.Remote.DSN = v
	}
	if v, ok := os.LookupEnv("REMOTE_BASE_URL"); ok {
		cfg.Remote.BaseURL = v
	}
	if v, ok := os.LookupEnv("VAPID_PRIVATE_KEY"); ok {
		cfg.Push.PrivateKey = v
	}
}

func (cfg *Config) applyDefaults() {
	if cfg.Server.Port <= 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.RateLimitPerSec <= 0 {
		cfg.Server.RateLimitPerSec = 10
	}
	if cfg.Server.RateLimitBurst <= 0 {
		cfg.Server.RateLimitBurst = 5
	}
	if cfg.Server.CacheTTLSeconds <= 0 {
		cfg.Server.CacheTTLSeconds = 30
	}

	if cfg.Local.Path == "" {
		cfg.Local.Path = "schedule-local.db"
	}
	if cfg.Local.SchemaVersion == "" {
		cfg.Local.SchemaVersion = "1.0"
	}
	if cfg.Local.CacheTTLSeconds <= 0 {
		cfg.Local.CacheTTLSeconds = 300
	}

	if cfg.Remote.Driver == "" {
		cfg.Remote.Driver = "rest"
	}
	if cfg.Remote.TimeoutSeconds <= 0 {
		cfg.Remote.TimeoutSeconds = 15
	}
	cfg.Remote.Timeout = time.Duration(cfg.Remote.TimeoutSeconds) * time.Second
	if cfg.Remote.PageSize <= 0 {
		cfg.Remote.PageSize = 1000
	}

	if cfg.Monitor.IntervalSeconds <= 0 {
		cfg.Monitor.IntervalSeconds = 10
	}
	cfg.Monitor.Interval = time.Duration(cfg.Monitor.IntervalSeconds) * time.Second
	if cfg.Monitor.TimeoutSeconds <= 0 {
		cfg.Monitor.TimeoutSeconds = 5
	}
	cfg.Monitor.Timeout = time.Duration(cfg.Monitor.TimeoutSeconds) * time.Second
	if cfg.Monitor.HintsPerSecond <= 0 {
		cfg.Monitor.HintsPerSecond = 1
	}

	if cfg.Sync.ItemTimeoutSeconds <= 0 {
		cfg.Sync.ItemTimeoutSeconds = 10
	}
	cfg.Sync.ItemTimeout = time.Duration(cfg.Sync.ItemTimeoutSeconds) * time.Second
	if cfg.Sync.RefreshIntervalSeconds < 0 {
		cfg.Sync.RefreshIntervalSeconds = 0
	}
	cfg.Sync.RefreshInterval = time.Duration(cfg.Sync.RefreshIntervalSeconds) * time.Second
	if cfg.Sync.HistoryDepth <= 0 {
		cfg.Sync.HistoryDepth = 50
	}
	if cfg.Sync.AuditFetchLimit <= 0 {
		cfg.Sync.AuditFetchLimit = 100
	}
	if cfg.Sync.UserID == "" {
		cfg.Sync.UserID = "system"
	}
	if cfg.Sync.UserAgent == "" {
		cfg.Sync.UserAgent = "schedule-sync-backend/1.0"
	}

	if cfg.Push.TTL <= 0 {
		cfg.Push.TTL = 3600
	}

	if cfg.WorkerPool.Size <= 0 {
		logrus.Warn("worker_pool.size is not set or invalid; defaulting to 1")
		cfg.WorkerPool.Size = 1
	}

	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
}
