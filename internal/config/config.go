package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"dario.cat/mergo"
	"gopkg.in/yaml.v3"
)

// AppConfig holds infrastructure config from standard env vars
type AppConfig struct {
	ConfigPath string // Path to the YAML site config
	OutputPath string // Static artifact written by `scrape`
	ListenAddr string
	LogLevel   string
	Engine     string // Browser engine: "rod" or "chromedp"
	StaticURL  string // Consumer: where the static artifact is published
	LiveURL    string // Consumer: the live /api/prices endpoint
}

// SiteConfig holds all target-site specific settings (from YAML)
type SiteConfig struct {
	ReportURL         string         `yaml:"report_url"`
	LinkSelector      string         `yaml:"link_selector"`
	Source            string         `yaml:"source"`
	NavigationTimeout time.Duration  `yaml:"navigation_timeout"`
	SelectorTimeout   time.Duration  `yaml:"selector_timeout"`
	Download          DownloadConfig `yaml:"download"`
	Locator           LocatorConfig  `yaml:"locator"`
	Schedule          ScheduleConfig `yaml:"schedule"`
}

type DownloadConfig struct {
	Dir          string        `yaml:"dir"`
	Extension    string        `yaml:"extension"`
	PollInterval time.Duration `yaml:"poll_interval"`
	MaxAttempts  int           `yaml:"max_attempts"`
	SettleDelay  time.Duration `yaml:"settle_delay"`
}

// LocatorConfig carries the two price-row thresholds. They describe the
// current shape of the board's report table and are expected to need
// recalibration when that table changes.
type LocatorConfig struct {
	MinTokens       int `yaml:"min_tokens"`
	FirstTokenFloor int `yaml:"first_token_floor"`
}

type ScheduleConfig struct {
	Cron     string `yaml:"cron"`
	Timezone string `yaml:"timezone"`
}

// DefaultSiteConfig mirrors the board's site as of the last calibration.
func DefaultSiteConfig() SiteConfig {
	return SiteConfig{
		ReportURL:         "https://coffeeboard.gov.in/Market_Info.aspx",
		LinkSelector:      `a[href*="lbnmarketinfo"]`,
		Source:            "Coffee Board of India",
		NavigationTimeout: 60 * time.Second,
		SelectorTimeout:   10 * time.Second,
		Download: DownloadConfig{
			Dir:          "./downloads",
			Extension:    ".pdf",
			PollInterval: time.Second,
			MaxAttempts:  30,
			SettleDelay:  2 * time.Second,
		},
		Locator: LocatorConfig{
			MinTokens:       8,
			FirstTokenFloor: 20000,
		},
		Schedule: ScheduleConfig{
			Cron:     "30 10 * * *",
			Timezone: "Asia/Kolkata",
		},
	}
}

// GetAppConfig reads basic infrastructure settings from environment variables.
func GetAppConfig() (AppConfig, error) {
	cfg := AppConfig{
		ConfigPath: envOr("CONFIG_PATH", "config.yaml"),
		OutputPath: envOr("OUTPUT_PATH", "public/prices.json"),
		ListenAddr: envOr("LISTEN_ADDR", ":3001"),
		LogLevel:   envOr("LOG_LEVEL", "info"),
		Engine:     envOr("BROWSER_ENGINE", "rod"),
		StaticURL:  envOr("STATIC_URL", "public/prices.json"),
		LiveURL:    envOr("LIVE_URL", "http://localhost:3001/api/prices"),
	}
	switch cfg.Engine {
	case "rod", "chromedp":
	default:
		return AppConfig{}, fmt.Errorf("unknown BROWSER_ENGINE %q (want rod or chromedp)", cfg.Engine)
	}
	return cfg, nil
}

// LoadSiteConfig reads the YAML file to configure the scraper. A missing file
// yields the defaults; fields left empty in the file keep their defaults.
func LoadSiteConfig(path string) (*SiteConfig, error) {
	cfg := DefaultSiteConfig()

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return &cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config file at '%s': %w", path, err)
	}

	var fileCfg SiteConfig
	if err := yaml.Unmarshal(data, &fileCfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML config: %w", err)
	}
	if err := mergo.Merge(&cfg, fileCfg, mergo.WithOverride); err != nil {
		return nil, fmt.Errorf("failed to merge config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return &cfg, nil
}

// Validate rejects settings the pipeline cannot run with.
func (c SiteConfig) Validate() error {
	switch {
	case c.ReportURL == "":
		return errors.New("report_url is empty")
	case c.LinkSelector == "":
		return errors.New("link_selector is empty")
	case c.NavigationTimeout <= 0 || c.SelectorTimeout <= 0:
		return errors.New("navigation_timeout and selector_timeout must be positive")
	case c.Download.Dir == "":
		return errors.New("download.dir is empty")
	case c.Download.Extension == "":
		// An empty suffix would match partial downloads too.
		return errors.New("download.extension is empty")
	case c.Download.MaxAttempts <= 0:
		return errors.New("download.max_attempts must be positive")
	case c.Download.PollInterval <= 0:
		return errors.New("download.poll_interval must be positive")
	case c.Locator.MinTokens < 8:
		// Four grades, a low and a high each.
		return errors.New("locator.min_tokens must be at least 8")
	case c.Locator.FirstTokenFloor <= 0:
		return errors.New("locator.first_token_floor must be positive")
	}
	return nil
}

// Location resolves the schedule timezone, falling back to UTC.
func (s ScheduleConfig) Location() *time.Location {
	if s.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(s.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
