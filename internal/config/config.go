// Package config loads and validates tracker configuration via Viper.
package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Source   SourceConfig   `mapstructure:"source"`
	HTTP     HTTPConfig     `mapstructure:"http"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Schedule ScheduleConfig `mapstructure:"schedule"`
	Missing  MissingConfig  `mapstructure:"missing"`
	Tools    ToolsConfig    `mapstructure:"tools"`
	PubSub   PubSubConfig   `mapstructure:"pubsub"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port int `mapstructure:"port"`
	// SourceURL is where GET /source redirects; build info is served when empty.
	SourceURL string `mapstructure:"source_url"`
}

// SourceConfig names the legislature site and the bills being tracked.
type SourceConfig struct {
	BaseURL        string `mapstructure:"base_url"`
	Session        string `mapstructure:"session"`
	Bill           string `mapstructure:"bill"`
	CompareSession string `mapstructure:"compare_session"`
	// CompareBill is the prior-session bill; empty disables the missing-name comparison.
	CompareBill string `mapstructure:"compare_bill"`
}

// HTTPConfig configures outbound requests.
type HTTPConfig struct {
	UserAgent              string `mapstructure:"user_agent"`
	TimeoutSeconds         int    `mapstructure:"timeout_seconds"`
	DownloadTimeoutSeconds int    `mapstructure:"download_timeout_seconds"`
	MaxRetries             int    `mapstructure:"max_retries"`
	RespectRobots          bool   `mapstructure:"respect_robots"`
	// DownloadRPS caps document downloads per second; 0 disables the limit.
	DownloadRPS   float64 `mapstructure:"download_rps"`
	DownloadBurst int     `mapstructure:"download_burst"`
}

// StorageConfig sets where testimony and the merged artifacts live.
type StorageConfig struct {
	TestimonyDir string `mapstructure:"testimony_dir"`
	OutputDir    string `mapstructure:"output_dir"`
	MergedPDF    string `mapstructure:"merged_pdf"`
	MergedText   string `mapstructure:"merged_text"`
	MissingNames string `mapstructure:"missing_names"`
}

// ScheduleConfig holds the refresh cadences.
type ScheduleConfig struct {
	Tick            time.Duration `mapstructure:"tick"`
	UpdateEvery     time.Duration `mapstructure:"update_every"`
	PruneEvery      time.Duration `mapstructure:"prune_every"`
	RegenerateEvery time.Duration `mapstructure:"regenerate_every"`
	PruneGrace      time.Duration `mapstructure:"prune_grace"`
}

// MissingConfig tunes the missing-name comparison.
type MissingConfig struct {
	FuzzyThreshold float64 `mapstructure:"fuzzy_threshold"`
}

// ToolsConfig points at the poppler binaries.
type ToolsConfig struct {
	PDFUnite  string `mapstructure:"pdfunite"`
	PDFToText string `mapstructure:"pdftotext"`
}

// PubSubConfig holds metadata for tally-change notifications.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	Topic     string `mapstructure:"topic"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("TESTIMONY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AllowEmptyEnv(true)
	v.AutomaticEnv()
	if err := v.BindEnv("server.port", "TESTIMONY_SERVER_PORT", "PORT"); err != nil {
		return Config{}, fmt.Errorf("bind port env: %w", err)
	}

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
	v.SetDefault("server.port", 4567)
	v.SetDefault("server.source_url", "")
	v.SetDefault("source.base_url", "https://olis.oregonlegislature.gov")
	v.SetDefault("source.session", "2023R1")
	v.SetDefault("source.bill", "SB422")
	v.SetDefault("source.compare_session", "2021R1")
	v.SetDefault("source.compare_bill", "SB574")
	v.SetDefault("http.user_agent", "testimony-tracker/1.0")
	v.SetDefault("http.timeout_seconds", 30)
	v.SetDefault("http.download_timeout_seconds", 120)
	v.SetDefault("http.max_retries", 2)
	v.SetDefault("http.respect_robots", false)
	v.SetDefault("http.download_rps", 2)
	v.SetDefault("http.download_burst", 1)
	v.SetDefault("storage.testimony_dir", "testimony")
	v.SetDefault("storage.output_dir", ".")
	v.SetDefault("storage.merged_pdf", "all-testimony.pdf")
	v.SetDefault("storage.merged_text", "all-testimony.txt")
	v.SetDefault("storage.missing_names", "missing_names.txt")
	v.SetDefault("schedule.tick", "500ms")
	v.SetDefault("schedule.update_every", "1m")
	v.SetDefault("schedule.prune_every", "1h")
	v.SetDefault("schedule.regenerate_every", "5m")
	v.SetDefault("schedule.prune_grace", "5m")
	v.SetDefault("missing.fuzzy_threshold", 0)
	v.SetDefault("tools.pdfunite", "pdfunite")
	v.SetDefault("tools.pdftotext", "pdftotext")
	v.SetDefault("pubsub.project_id", "")
	v.SetDefault("pubsub.topic", "")
	v.SetDefault("logging.development", false)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Source.BaseURL == "" {
		return fmt.Errorf("source.base_url is required")
	}
	if c.Source.Session == "" || c.Source.Bill == "" {
		return fmt.Errorf("source.session and source.bill are required")
	}
	if c.Source.CompareBill != "" && c.Source.CompareSession == "" {
		return fmt.Errorf("source.compare_session is required when source.compare_bill is set")
	}
	if c.HTTP.TimeoutSeconds <= 0 {
		return fmt.Errorf("http.timeout_seconds must be > 0")
	}
	if c.HTTP.MaxRetries < 0 {
		return fmt.Errorf("http.max_retries must be >= 0")
	}
	if c.HTTP.DownloadRPS < 0 || c.HTTP.DownloadBurst < 0 {
		return fmt.Errorf("http.download_rps and http.download_burst must be >= 0")
	}
	if c.Storage.TestimonyDir == "" {
		return fmt.Errorf("storage.testimony_dir is required")
	}
	if c.Schedule.Tick <= 0 || c.Schedule.UpdateEvery <= 0 ||
		c.Schedule.PruneEvery <= 0 || c.Schedule.RegenerateEvery <= 0 {
		return fmt.Errorf("schedule.tick and all schedule.*_every values must be > 0")
	}
	if c.Schedule.PruneGrace < 0 {
		return fmt.Errorf("schedule.prune_grace must be >= 0")
	}
	if c.Missing.FuzzyThreshold < 0 || c.Missing.FuzzyThreshold > 1 {
		return fmt.Errorf("missing.fuzzy_threshold must be within [0, 1]")
	}
	if c.PubSub.Topic != "" && c.PubSub.ProjectID == "" {
		return fmt.Errorf("pubsub.project_id must be set when pubsub.topic is set")
	}
	return nil
}

// ListingURL is the public testimony page of the tracked bill.
func (s SourceConfig) ListingURL() string {
	return listingURL(s.BaseURL, s.Session, s.Bill)
}

// CompareURL is the testimony page of the comparison bill, or "" when none is configured.
func (s SourceConfig) CompareURL() string {
	if s.CompareBill == "" {
		return ""
	}
	return listingURL(s.BaseURL, s.CompareSession, s.CompareBill)
}

// DocumentURLPrefix is joined with a testimony ID to download the document.
func (s SourceConfig) DocumentURLPrefix() string {
	return fmt.Sprintf("%s/liz/%s/Downloads/PublicTestimonyDocument/", strings.TrimRight(s.BaseURL, "/"), s.Session)
}

// DisplayBill renders a bill ID like "SB422" as "SB 422".
func (s SourceConfig) DisplayBill() string {
	return displayBill(s.Bill)
}

// DisplayCompareBill renders the comparison bill the same way.
func (s SourceConfig) DisplayCompareBill() string {
	return displayBill(s.CompareBill)
}

func displayBill(bill string) string {
	for i, r := range bill {
		if r >= '0' && r <= '9' {
			if i == 0 {
				return bill
			}
			return bill[:i] + " " + bill[i:]
		}
	}
	return bill
}

func listingURL(base, session, bill string) string {
	return fmt.Sprintf("%s/liz/%s/Measures/Testimony/%s", strings.TrimRight(base, "/"), session, bill)
}

// MergedPDFPath is the full path of the merged PDF.
func (s StorageConfig) MergedPDFPath() string {
	return filepath.Join(s.OutputDir, s.MergedPDF)
}

// MergedTextPath is the full path of the merged text file.
func (s StorageConfig) MergedTextPath() string {
	return filepath.Join(s.OutputDir, s.MergedText)
}

// MissingNamesPath is the full path of the missing-name list.
func (s StorageConfig) MissingNamesPath() string {
	return filepath.Join(s.OutputDir, s.MissingNames)
}

// RequestTimeout converts the listing timeout to a duration.
func (c Config) RequestTimeout() time.Duration {
	return time.Duration(c.HTTP.TimeoutSeconds) * time.Second
}

// DownloadTimeout converts the document download timeout to a duration.
func (c Config) DownloadTimeout() time.Duration {
	if c.HTTP.DownloadTimeoutSeconds <= 0 {
		return c.RequestTimeout()
	}
	return time.Duration(c.HTTP.DownloadTimeoutSeconds) * time.Second
}
