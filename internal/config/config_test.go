package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Port != 8080 {
		t.Fatalf("expected default port 8080, got %d", cfg.Server.Port)
	}
	if cfg.Orchestrator.Runner != RunnerLocal || cfg.Storage.Backend != StorageMemory {
		t.Fatalf("expected local runner with memory storage, got %q/%q", cfg.Orchestrator.Runner, cfg.Storage.Backend)
	}
	if got := cfg.Worker.QuietPeriod(); got != 3*time.Second {
		t.Fatalf("expected quiet period 3s, got %v", got)
	}
	if got := cfg.Worker.HarvestCap(); got != time.Minute {
		t.Fatalf("expected harvest cap 60s, got %v", got)
	}
	if got := cfg.Worker.CollectTimeout(); got != 15*time.Second {
		t.Fatalf("expected collect timeout 15s, got %v", got)
	}
	if len(cfg.Orchestrator.WorkerArgs) != 1 || cfg.Orchestrator.WorkerArgs[0] != "worker" {
		t.Fatalf("expected default worker args, got %v", cfg.Orchestrator.WorkerArgs)
	}
}

func TestLoadWithFileOverrides(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	configYAML := `
server:
  port: 9090
auth:
  enabled: true
  api_key: secret
orchestrator:
  runner: process
  worker_args: ["worker", "--config", "/etc/scraper.yaml"]
worker:
  quiet_period_ms: 1500
  items_per_minute: 12
  blob_prefix: artifacts/
browser:
  navigation_timeout_seconds: 20
  probe_timeout_ms: 750
  selectors:
    load_more_button: button.more
extract:
  selectors:
    profile_name: h1.name
storage:
  backend: gcs
  bucket: leads
  prefix: runs
pubsub:
  project_id: proj
  topic_name: leads
logging:
  development: false
  level: warn
`
	if err := os.WriteFile(path, []byte(configYAML), 0o600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Fatalf("expected port 9090, got %d", cfg.Server.Port)
	}
	if !cfg.Auth.Enabled || cfg.Auth.APIKey != "secret" {
		t.Fatalf("expected auth enabled with secret key")
	}
	if cfg.Orchestrator.Runner != RunnerProcess || len(cfg.Orchestrator.WorkerArgs) != 3 {
		t.Fatalf("expected process runner overrides, got %+v", cfg.Orchestrator)
	}
	if cfg.Worker.QuietPeriod() != 1500*time.Millisecond || cfg.Worker.ItemsPerMinute != 12 {
		t.Fatalf("expected worker overrides, got %+v", cfg.Worker)
	}
	if cfg.Extract.Selectors.ProfileName != "h1.name" {
		t.Fatalf("expected extract selector override, got %+v", cfg.Extract.Selectors)
	}
	if cfg.Storage.Bucket != "leads" || cfg.PubSub.TopicName != "leads" {
		t.Fatalf("expected storage and pubsub overrides")
	}
	if cfg.Logging.Development || cfg.Logging.Level != "warn" {
		t.Fatalf("expected production logging at warn, got %+v", cfg.Logging)
	}

	bc := cfg.BrowserSettings()
	if bc.NavigationTimeout != 20*time.Second || bc.ProbeTimeout != 750*time.Millisecond {
		t.Fatalf("expected browser timeouts to convert, got %+v", bc)
	}
	if bc.Selectors.LoadMoreButton != "button.more" {
		t.Fatalf("expected browser selector override, got %+v", bc.Selectors)
	}
	if bc.LoginTimeout != 60*time.Second {
		t.Fatalf("expected default login timeout, got %v", bc.LoginTimeout)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("SCRAPER_SERVER_PORT", "7070")
	t.Setenv("SCRAPER_DATABASE_DSN", "postgres://scraper@localhost/leads")
	t.Setenv("SCRAPER_WORKER_ITEMS_PER_MINUTE", "30")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Port != 7070 {
		t.Fatalf("expected env port 7070, got %d", cfg.Server.Port)
	}
	if cfg.Database.DSN != "postgres://scraper@localhost/leads" {
		t.Fatalf("expected env dsn, got %q", cfg.Database.DSN)
	}
	if cfg.Worker.ItemsPerMinute != 30 {
		t.Fatalf("expected env items_per_minute, got %v", cfg.Worker.ItemsPerMinute)
	}
}

func TestLoadEnvFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	if err := os.WriteFile(path, []byte("SCRAPER_AUTH_API_KEY=from-dotenv\n"), 0o600); err != nil {
		t.Fatalf("failed to write env file: %v", err)
	}
	t.Setenv("SCRAPER_AUTH_API_KEY", "")
	os.Unsetenv("SCRAPER_AUTH_API_KEY") //nolint:errcheck // restored by t.Setenv cleanup

	if err := LoadEnvFiles(filepath.Join(dir, "missing.env"), path); err != nil {
		t.Fatalf("LoadEnvFiles() error = %v", err)
	}
	if got := os.Getenv("SCRAPER_AUTH_API_KEY"); got != "from-dotenv" {
		t.Fatalf("expected dotenv value, got %q", got)
	}
}

func TestLoadRejectsUnreadableFile(t *testing.T) {
	t.Parallel()

	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatalf("expected error for missing config file")
	}
}

func TestConfigValidateErrors(t *testing.T) {
	t.Parallel()

	base := Config{
		Server:       ServerConfig{Port: 8080},
		Orchestrator: OrchestratorConfig{Runner: RunnerLocal},
		Worker: WorkerConfig{
			QuietPeriodMs:      3000,
			HarvestCapSeconds:  60,
			PollIntervalMs:     500,
			ItemTimeoutSeconds: 90,
			ItemsPerMinute:     6,
		},
		Storage: StorageConfig{Backend: StorageMemory},
	}
	if err := base.Validate(); err != nil {
		t.Fatalf("expected base config to validate, got %v", err)
	}

	tests := []struct {
		name string
		cfg  Config
		want string
	}{
		{
			name: "invalid port",
			cfg: func() Config {
				c := base
				c.Server.Port = 0
				return c
			}(),
			want: "server.port",
		},
		{
			name: "auth missing api key",
			cfg: func() Config {
				c := base
				c.Auth.Enabled = true
				return c
			}(),
			want: "auth.api_key",
		},
		{
			name: "unknown runner",
			cfg: func() Config {
				c := base
				c.Orchestrator.Runner = "thread"
				return c
			}(),
			want: "orchestrator.runner",
		},
		{
			name: "zero pacing",
			cfg: func() Config {
				c := base
				c.Worker.ItemsPerMinute = 0
				return c
			}(),
			want: "worker.items_per_minute",
		},
		{
			name: "harvest cap not below item timeout",
			cfg: func() Config {
				c := base
				c.Worker.HarvestCapSeconds = 90
				return c
			}(),
			want: "worker.harvest_cap_seconds (90) must be below worker.item_timeout_seconds (90)",
		},
		{
			name: "gcs without bucket",
			cfg: func() Config {
				c := base
				c.Storage.Backend = StorageGCS
				return c
			}(),
			want: "storage.bucket",
		},
		{
			name: "local without dir",
			cfg: func() Config {
				c := base
				c.Storage.Backend = StorageLocal
				return c
			}(),
			want: "storage.local.base_dir",
		},
		{
			name: "pubsub half configured",
			cfg: func() Config {
				c := base
				c.PubSub.ProjectID = "proj"
				return c
			}(),
			want: "pubsub.project_id",
		},
		{
			name: "progress without buffer",
			cfg: func() Config {
				c := base
				c.Progress.Enabled = true
				return c
			}(),
			want: "progress.buffer_size",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := tt.cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}
