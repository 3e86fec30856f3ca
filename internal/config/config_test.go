package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadSiteConfigMissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadSiteConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	require.Equal(t, DefaultSiteConfig(), *cfg)
}

func TestLoadSiteConfigMergesOverDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yml := `
report_url: https://example.com/market
download:
  max_attempts: 40
  settle_delay: 5s
locator:
  first_token_floor: 25000
`
	require.NoError(t, os.WriteFile(path, []byte(yml), 0o644))

	cfg, err := LoadSiteConfig(path)
	require.NoError(t, err)

	require.Equal(t, "https://example.com/market", cfg.ReportURL)
	require.Equal(t, 40, cfg.Download.MaxAttempts)
	require.Equal(t, 5*time.Second, cfg.Download.SettleDelay)
	require.Equal(t, 25000, cfg.Locator.FirstTokenFloor)

	// untouched fields keep their defaults
	require.Equal(t, `a[href*="lbnmarketinfo"]`, cfg.LinkSelector)
	require.Equal(t, 8, cfg.Locator.MinTokens)
	require.Equal(t, time.Second, cfg.Download.PollInterval)
	require.Equal(t, 60*time.Second, cfg.NavigationTimeout)
}

func TestLoadSiteConfigRejectsBadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("report_url: [unterminated"), 0o644))

	_, err := LoadSiteConfig(path)
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*SiteConfig)
	}{
		{"empty url", func(c *SiteConfig) { c.ReportURL = "" }},
		{"empty selector", func(c *SiteConfig) { c.LinkSelector = "" }},
		{"no attempts", func(c *SiteConfig) { c.Download.MaxAttempts = 0 }},
		{"empty extension", func(c *SiteConfig) { c.Download.Extension = "" }},
		{"too few tokens", func(c *SiteConfig) { c.Locator.MinTokens = 6 }},
		{"zero floor", func(c *SiteConfig) { c.Locator.FirstTokenFloor = 0 }},
	}
	require.NoError(t, DefaultSiteConfig().Validate())
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultSiteConfig()
			tc.mutate(&cfg)
			require.Error(t, cfg.Validate())
		})
	}
}

func TestGetAppConfig(t *testing.T) {
	t.Setenv("OUTPUT_PATH", "/tmp/out.json")
	t.Setenv("BROWSER_ENGINE", "")

	cfg, err := GetAppConfig()
	require.NoError(t, err)
	require.Equal(t, "/tmp/out.json", cfg.OutputPath)
	require.Equal(t, "rod", cfg.Engine)
	require.Equal(t, ":3001", cfg.ListenAddr)

	t.Setenv("BROWSER_ENGINE", "firefox")
	_, err = GetAppConfig()
	require.Error(t, err)
}

func TestScheduleLocation(t *testing.T) {
	require.Equal(t, time.UTC, ScheduleConfig{}.Location())
	require.Equal(t, time.UTC, ScheduleConfig{Timezone: "Mars/Olympus"}.Location())
}
