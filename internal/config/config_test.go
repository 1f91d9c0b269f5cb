package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Port != 4567 {
		t.Fatalf("expected default port 4567, got %d", cfg.Server.Port)
	}
	if got := cfg.Source.ListingURL(); got != "https://olis.oregonlegislature.gov/liz/2023R1/Measures/Testimony/SB422" {
		t.Fatalf("unexpected listing url %q", got)
	}
	if got := cfg.Source.CompareURL(); got != "https://olis.oregonlegislature.gov/liz/2021R1/Measures/Testimony/SB574" {
		t.Fatalf("unexpected compare url %q", got)
	}
	if got := cfg.Source.DocumentURLPrefix(); got != "https://olis.oregonlegislature.gov/liz/2023R1/Downloads/PublicTestimonyDocument/" {
		t.Fatalf("unexpected document prefix %q", got)
	}
	if cfg.Schedule.Tick != 500*time.Millisecond || cfg.Schedule.UpdateEvery != time.Minute ||
		cfg.Schedule.PruneEvery != time.Hour || cfg.Schedule.RegenerateEvery != 5*time.Minute ||
		cfg.Schedule.PruneGrace != 5*time.Minute {
		t.Fatalf("unexpected schedule defaults: %+v", cfg.Schedule)
	}
	if cfg.HTTP.DownloadRPS != 2 || cfg.HTTP.DownloadBurst != 1 {
		t.Fatalf("unexpected download pacing defaults: %+v", cfg.HTTP)
	}
	if cfg.Storage.MergedPDFPath() != "all-testimony.pdf" {
		t.Fatalf("unexpected merged pdf path %q", cfg.Storage.MergedPDFPath())
	}
}

func TestLoadWithFileOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	configYAML := `
server:
  port: 9090
  source_url: https://github.com/example/testimony-tracker
source:
  base_url: https://legislature.example.gov/
  session: 2025R1
  bill: HB2001
  compare_session: ""
  compare_bill: ""
http:
  user_agent: real-agent
  timeout_seconds: 45
storage:
  testimony_dir: /var/lib/testimony/docs
  output_dir: /var/lib/testimony
schedule:
  tick: 1s
  update_every: 2m
  prune_every: 30m
  regenerate_every: 10m
  prune_grace: 1m
missing:
  fuzzy_threshold: 0.92
pubsub:
  project_id: my-project
  topic: testimony-results
logging:
  development: true
`
	if err := os.WriteFile(path, []byte(configYAML), 0o600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != 9090 || cfg.Server.SourceURL == "" {
		t.Fatalf("expected server overrides, got %+v", cfg.Server)
	}
	if got := cfg.Source.ListingURL(); got != "https://legislature.example.gov/liz/2025R1/Measures/Testimony/HB2001" {
		t.Fatalf("unexpected listing url %q", got)
	}
	if cfg.Source.CompareURL() != "" {
		t.Fatalf("expected comparison disabled, got %q", cfg.Source.CompareURL())
	}
	if cfg.Schedule.UpdateEvery != 2*time.Minute || cfg.Schedule.PruneGrace != time.Minute {
		t.Fatalf("expected schedule overrides, got %+v", cfg.Schedule)
	}
	if cfg.Storage.MissingNamesPath() != filepath.Join("/var/lib/testimony", "missing_names.txt") {
		t.Fatalf("unexpected missing names path %q", cfg.Storage.MissingNamesPath())
	}
	if cfg.Missing.FuzzyThreshold != 0.92 || !cfg.Logging.Development {
		t.Fatalf("expected missing/logging overrides, got %+v %+v", cfg.Missing, cfg.Logging)
	}
	if got := cfg.RequestTimeout(); got != 45*time.Second {
		t.Fatalf("expected request timeout 45s, got %v", got)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("TESTIMONY_SOURCE_BILL", "SB1")
	t.Setenv("PORT", "8081")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Source.Bill != "SB1" {
		t.Fatalf("expected bill override, got %q", cfg.Source.Bill)
	}
	if cfg.Server.Port != 8081 {
		t.Fatalf("expected PORT override, got %d", cfg.Server.Port)
	}
}

func TestLoadEnvOnlyKeys(t *testing.T) {
	t.Setenv("TESTIMONY_PUBSUB_PROJECT_ID", "olis-watch")
	t.Setenv("TESTIMONY_PUBSUB_TOPIC", "testimony-results")
	t.Setenv("TESTIMONY_SERVER_SOURCE_URL", "https://git.example/tracker")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.PubSub.ProjectID != "olis-watch" || cfg.PubSub.Topic != "testimony-results" {
		t.Fatalf("expected pubsub env overrides, got %+v", cfg.PubSub)
	}
	if cfg.Server.SourceURL != "https://git.example/tracker" {
		t.Fatalf("expected source url override, got %q", cfg.Server.SourceURL)
	}
}

func TestLoadEmptyCompareBillDisablesComparison(t *testing.T) {
	t.Setenv("TESTIMONY_SOURCE_COMPARE_BILL", "")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got := cfg.Source.CompareURL(); got != "" {
		t.Fatalf("expected comparison disabled, got %q", got)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestDisplayBill(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"SB422":  "SB 422",
		"HB2001": "HB 2001",
		"422":    "422",
		"SJR":    "SJR",
	}
	for in, want := range tests {
		if got := (SourceConfig{Bill: in}).DisplayBill(); got != want {
			t.Fatalf("DisplayBill(%q) = %q, want %q", in, got, want)
		}
		if got := (SourceConfig{CompareBill: in}).DisplayCompareBill(); got != want {
			t.Fatalf("DisplayCompareBill(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestConfigValidateErrors(t *testing.T) {
	t.Parallel()

	base := Config{
		Server: ServerConfig{Port: 8080},
		Source: SourceConfig{BaseURL: "https://example.gov", Session: "2023R1", Bill: "SB422"},
		HTTP:   HTTPConfig{TimeoutSeconds: 10},
		Storage: StorageConfig{
			TestimonyDir: "testimony",
		},
		Schedule: ScheduleConfig{
			Tick:            time.Second,
			UpdateEvery:     time.Minute,
			PruneEvery:      time.Hour,
			RegenerateEvery: 5 * time.Minute,
		},
	}
	if err := base.Validate(); err != nil {
		t.Fatalf("base config should validate: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"invalid port", func(c *Config) { c.Server.Port = 0 }, "server.port"},
		{"missing base url", func(c *Config) { c.Source.BaseURL = "" }, "source.base_url"},
		{"missing bill", func(c *Config) { c.Source.Bill = "" }, "source.bill"},
		{"half comparison", func(c *Config) { c.Source.CompareBill = "SB574" }, "compare_session"},
		{"invalid timeout", func(c *Config) { c.HTTP.TimeoutSeconds = 0 }, "http.timeout_seconds"},
		{"negative retries", func(c *Config) { c.HTTP.MaxRetries = -1 }, "http.max_retries"},
		{"negative download rps", func(c *Config) { c.HTTP.DownloadRPS = -1 }, "http.download_rps"},
		{"missing testimony dir", func(c *Config) { c.Storage.TestimonyDir = "" }, "storage.testimony_dir"},
		{"zero tick", func(c *Config) { c.Schedule.Tick = 0 }, "schedule.tick"},
		{"negative grace", func(c *Config) { c.Schedule.PruneGrace = -time.Second }, "schedule.prune_grace"},
		{"threshold too high", func(c *Config) { c.Missing.FuzzyThreshold = 1.5 }, "missing.fuzzy_threshold"},
		{"topic without project", func(c *Config) { c.PubSub.Topic = "t" }, "pubsub.project_id"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := base
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}
