// Package config loads and validates service configuration via Viper.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	chromedpbrowser "github.com/ashishsingh-beep/dreamforce-bot-playwright/internal/browser/chromedp"
	"github.com/ashishsingh-beep/dreamforce-bot-playwright/internal/extract"
)

// EnvPrefix prefixes every environment override, e.g. SCRAPER_DATABASE_DSN.
const EnvPrefix = "SCRAPER"

// Runner kinds.
const (
	RunnerLocal   = "local"
	RunnerProcess = "process"
)

// Storage backends.
const (
	StorageMemory = "memory"
	StorageLocal  = "local"
	StorageGCS    = "gcs"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server       ServerConfig       `mapstructure:"server"`
	Auth         AuthConfig         `mapstructure:"auth"`
	Logging      LoggingConfig      `mapstructure:"logging"`
	Orchestrator OrchestratorConfig `mapstructure:"orchestrator"`
	Worker       WorkerConfig       `mapstructure:"worker"`
	Browser      BrowserConfig      `mapstructure:"browser"`
	Extract      ExtractConfig      `mapstructure:"extract"`
	Database     DatabaseConfig     `mapstructure:"database"`
	Storage      StorageConfig      `mapstructure:"storage"`
	PubSub       PubSubConfig       `mapstructure:"pubsub"`
	Progress     ProgressConfig     `mapstructure:"progress"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port                   int `mapstructure:"port"`
	RequestTimeoutSeconds  int `mapstructure:"request_timeout_seconds"`
	ShutdownTimeoutSeconds int `mapstructure:"shutdown_timeout_seconds"`
}

// AuthConfig defines API authentication toggles.
type AuthConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	APIKey  string `mapstructure:"api_key"`
}

// LoggingConfig selects zap mode, level and optional rotated file output.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
	File        string `mapstructure:"file"`
	MaxSizeMB   int    `mapstructure:"max_size_mb"`
	MaxBackups  int    `mapstructure:"max_backups"`
	MaxAgeDays  int    `mapstructure:"max_age_days"`
}

// OrchestratorConfig picks how workers are launched.
type OrchestratorConfig struct {
	Runner        string   `mapstructure:"runner"`
	EventBuffer   int      `mapstructure:"event_buffer"`
	WorkerCommand string   `mapstructure:"worker_command"`
	WorkerArgs    []string `mapstructure:"worker_args"`
}

// WorkerConfig tunes per-worker pacing and bounds.
type WorkerConfig struct {
	QuietPeriodMs         int     `mapstructure:"quiet_period_ms"`
	HarvestCapSeconds     int     `mapstructure:"harvest_cap_seconds"`
	PollIntervalMs        int     `mapstructure:"poll_interval_ms"`
	ItemTimeoutSeconds    int     `mapstructure:"item_timeout_seconds"`
	CollectTimeoutSeconds int     `mapstructure:"collect_timeout_seconds"`
	ItemsPerMinute        float64 `mapstructure:"items_per_minute"`
	BlobPrefix            string  `mapstructure:"blob_prefix"`
}

// QuietPeriod returns the harvest quiet period.
func (w WorkerConfig) QuietPeriod() time.Duration {
	return time.Duration(w.QuietPeriodMs) * time.Millisecond
}

// HarvestCap returns the harvest wall-time cap.
func (w WorkerConfig) HarvestCap() time.Duration {
	return time.Duration(w.HarvestCapSeconds) * time.Second
}

// PollInterval returns the pause between load-more probes.
func (w WorkerConfig) PollInterval() time.Duration {
	return time.Duration(w.PollIntervalMs) * time.Millisecond
}

// ItemTimeout returns the per-item bound.
func (w WorkerConfig) ItemTimeout() time.Duration {
	return time.Duration(w.ItemTimeoutSeconds) * time.Second
}

// CollectTimeout bounds the snapshot and persist step once an item's own
// deadline has passed.
func (w WorkerConfig) CollectTimeout() time.Duration {
	return time.Duration(w.CollectTimeoutSeconds) * time.Second
}

// BrowserConfig configures Chrome sessions.
type BrowserConfig struct {
	UserAgent                string                    `mapstructure:"user_agent"`
	NavigationTimeoutSeconds int                       `mapstructure:"navigation_timeout_seconds"`
	LoginTimeoutSeconds      int                       `mapstructure:"login_timeout_seconds"`
	ProbeTimeoutMs           int                       `mapstructure:"probe_timeout_ms"`
	Flags                    map[string]any            `mapstructure:"flags"`
	Selectors                chromedpbrowser.Selectors `mapstructure:"selectors"`
}

// ExtractConfig overrides DOM selectors used for parsing snapshots.
type ExtractConfig struct {
	Selectors extract.Selectors `mapstructure:"selectors"`
}

// DatabaseConfig controls access to Postgres. An empty DSN selects the
// in-memory stores.
type DatabaseConfig struct {
	DSN                    string `mapstructure:"dsn"`
	MaxConns               int32  `mapstructure:"max_conns"`
	MinConns               int32  `mapstructure:"min_conns"`
	MaxConnLifetimeMinutes int    `mapstructure:"max_conn_lifetime_minutes"`
}

// StorageConfig selects where result artifacts go.
type StorageConfig struct {
	Backend      string             `mapstructure:"backend"`
	Bucket       string             `mapstructure:"bucket"`
	Prefix       string             `mapstructure:"prefix"`
	CacheControl string             `mapstructure:"cache_control"`
	Local        LocalStorageConfig `mapstructure:"local"`
}

// LocalStorageConfig configures the filesystem backend.
type LocalStorageConfig struct {
	BaseDir string `mapstructure:"base_dir"`
}

// PubSubConfig holds the lead notification topic.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
	Ordering  bool   `mapstructure:"ordering"`
}

// ProgressConfig controls the lifecycle event hub and its sinks.
type ProgressConfig struct {
	Enabled           bool                `mapstructure:"enabled"`
	LogEnabled        bool                `mapstructure:"log_enabled"`
	PrometheusEnabled bool                `mapstructure:"prometheus_enabled"`
	StoreEnabled      bool                `mapstructure:"store_enabled"`
	BufferSize        int                 `mapstructure:"buffer_size"`
	Batch             ProgressBatchConfig `mapstructure:"batch"`
	SinkTimeoutMs     int                 `mapstructure:"sink_timeout_ms"`
}

// ProgressBatchConfig bounds hub batches.
type ProgressBatchConfig struct {
	MaxEvents int `mapstructure:"max_events"`
	MaxWaitMs int `mapstructure:"max_wait_ms"`
}

// LoadEnvFiles loads KEY=VALUE files into the process environment without
// overriding variables that are already set. Missing files are skipped.
func LoadEnvFiles(files ...string) error {
	for _, f := range files {
		if err := godotenv.Load(f); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("load env file %s: %w", f, err)
		}
	}
	return nil
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.request_timeout_seconds", 30)
	v.SetDefault("server.shutdown_timeout_seconds", 10)
	v.SetDefault("auth.enabled", false)
	v.SetDefault("auth.api_key", "")
	v.SetDefault("logging.development", true)
	v.SetDefault("logging.level", "")
	v.SetDefault("logging.file", "")
	v.SetDefault("logging.max_size_mb", 100)
	v.SetDefault("logging.max_backups", 5)
	v.SetDefault("logging.max_age_days", 14)
	v.SetDefault("orchestrator.runner", RunnerLocal)
	v.SetDefault("orchestrator.event_buffer", 64)
	v.SetDefault("orchestrator.worker_command", "")
	v.SetDefault("orchestrator.worker_args", []string{"worker"})
	v.SetDefault("worker.quiet_period_ms", 3000)
	v.SetDefault("worker.harvest_cap_seconds", 60)
	v.SetDefault("worker.poll_interval_ms", 500)
	v.SetDefault("worker.item_timeout_seconds", 90)
	v.SetDefault("worker.collect_timeout_seconds", 15)
	v.SetDefault("worker.items_per_minute", 6)
	v.SetDefault("worker.blob_prefix", "results")
	v.SetDefault("browser.user_agent", "")
	v.SetDefault("browser.navigation_timeout_seconds", 45)
	v.SetDefault("browser.login_timeout_seconds", 60)
	v.SetDefault("browser.probe_timeout_ms", 5000)
	v.SetDefault("database.dsn", "")
	v.SetDefault("database.max_conns", 10)
	v.SetDefault("database.min_conns", 0)
	v.SetDefault("database.max_conn_lifetime_minutes", 30)
	v.SetDefault("storage.backend", StorageMemory)
	v.SetDefault("storage.bucket", "")
	v.SetDefault("storage.prefix", "")
	v.SetDefault("storage.cache_control", "no-cache")
	v.SetDefault("storage.local.base_dir", "./artifacts")
	v.SetDefault("pubsub.project_id", "")
	v.SetDefault("pubsub.topic_name", "")
	v.SetDefault("pubsub.ordering", true)
	v.SetDefault("progress.enabled", true)
	v.SetDefault("progress.log_enabled", true)
	v.SetDefault("progress.prometheus_enabled", true)
	v.SetDefault("progress.store_enabled", true)
	v.SetDefault("progress.buffer_size", 1024)
	v.SetDefault("progress.batch.max_events", 256)
	v.SetDefault("progress.batch.max_wait_ms", 250)
	v.SetDefault("progress.sink_timeout_ms", 5000)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Auth.Enabled && c.Auth.APIKey == "" {
		return fmt.Errorf("auth.api_key must be set when auth is enabled")
	}
	switch c.Orchestrator.Runner {
	case RunnerLocal, RunnerProcess:
	default:
		return fmt.Errorf("orchestrator.runner must be %q or %q, got %q", RunnerLocal, RunnerProcess, c.Orchestrator.Runner)
	}
	if c.Worker.QuietPeriodMs <= 0 || c.Worker.PollIntervalMs <= 0 {
		return fmt.Errorf("worker.quiet_period_ms and worker.poll_interval_ms must be > 0")
	}
	if c.Worker.HarvestCapSeconds <= 0 || c.Worker.ItemTimeoutSeconds <= 0 {
		return fmt.Errorf("worker.harvest_cap_seconds and worker.item_timeout_seconds must be > 0")
	}
	if c.Worker.HarvestCapSeconds >= c.Worker.ItemTimeoutSeconds {
		return fmt.Errorf("worker.harvest_cap_seconds (%d) must be below worker.item_timeout_seconds (%d)",
			c.Worker.HarvestCapSeconds, c.Worker.ItemTimeoutSeconds)
	}
	if c.Worker.CollectTimeoutSeconds < 0 {
		return fmt.Errorf("worker.collect_timeout_seconds must be >= 0")
	}
	if c.Worker.ItemsPerMinute <= 0 {
		return fmt.Errorf("worker.items_per_minute must be > 0")
	}
	switch c.Storage.Backend {
	case StorageMemory:
	case StorageLocal:
		if c.Storage.Local.BaseDir == "" {
			return fmt.Errorf("storage.local.base_dir is required for the local backend")
		}
	case StorageGCS:
		if c.Storage.Bucket == "" {
			return fmt.Errorf("storage.bucket is required for the gcs backend")
		}
	default:
		return fmt.Errorf("storage.backend %q is not supported", c.Storage.Backend)
	}
	if (c.PubSub.ProjectID == "") != (c.PubSub.TopicName == "") {
		return fmt.Errorf("pubsub.project_id and pubsub.topic_name must be set together")
	}
	if c.Progress.Enabled && c.Progress.BufferSize <= 0 {
		return fmt.Errorf("progress.buffer_size must be > 0 when progress is enabled")
	}
	return nil
}

// BrowserSettings converts the browser section for the chromedp package.
func (c Config) BrowserSettings() chromedpbrowser.Config {
	return chromedpbrowser.Config{
		UserAgent:         c.Browser.UserAgent,
		NavigationTimeout: time.Duration(c.Browser.NavigationTimeoutSeconds) * time.Second,
		LoginTimeout:      time.Duration(c.Browser.LoginTimeoutSeconds) * time.Second,
		ProbeTimeout:      time.Duration(c.Browser.ProbeTimeoutMs) * time.Millisecond,
		ExtraFlags:        c.Browser.Flags,
		Selectors:         c.Browser.Selectors,
	}
}
