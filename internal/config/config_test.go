package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("FAST_SCRAPE_TIMEOUT", "")
	t.Setenv("VERIFY_UPSTREAM_TLS", "")
	t.Setenv("SCRAPER_COMMAND", "")
	t.Setenv("IMPORT_CONCURRENCY", "")

	cfg := Load()

	assert.Equal(t, "3001", cfg.Port)
	assert.Equal(t, 3*time.Second, cfg.FastScrapeTimeout)
	assert.False(t, cfg.VerifyUpstreamTLS)
	assert.Equal(t, []string{"sutra.oslpr.org"}, cfg.ScrapeSourceHosts)
	assert.Len(t, cfg.ScraperCommand, 2)
	assert.Equal(t, "scrape", cfg.ScraperCommand[1])
	assert.Equal(t, 3, cfg.ImportConcurrency)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("PORT", "8080")
	t.Setenv("FAST_SCRAPE_TIMEOUT", "1500")
	t.Setenv("FULL_SCRAPE_TIMEOUT", "2m")
	t.Setenv("VERIFY_UPSTREAM_TLS", "true")
	t.Setenv("SCRAPER_COMMAND", "python3 -u")
	t.Setenv("SCRAPE_SOURCE_HOSTS", "sutra.oslpr.org, oslpr.org ,")
	t.Setenv("IMPORT_CONCURRENCY", "many")

	cfg := Load()

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, 1500*time.Millisecond, cfg.FastScrapeTimeout)
	assert.Equal(t, 2*time.Minute, cfg.FullScrapeTimeout)
	assert.True(t, cfg.VerifyUpstreamTLS)
	assert.Equal(t, []string{"python3", "-u"}, cfg.ScraperCommand)
	assert.Equal(t, []string{"sutra.oslpr.org", "oslpr.org"}, cfg.ScrapeSourceHosts)
	assert.Equal(t, 3, cfg.ImportConcurrency)
}

func TestAllowedOrigins(t *testing.T) {
	tests := []struct {
		name     string
		cfg      Config
		expected []string
	}{
		{
			name:     "development",
			cfg:      Config{Environment: "development"},
			expected: []string{"http://localhost:3000"},
		},
		{
			name:     "production",
			cfg:      Config{Environment: "production"},
			expected: []string{"https://your-production-domain.com", "http://localhost:3000"},
		},
		{
			name:     "explicit list wins",
			cfg:      Config{Environment: "production", CORSOrigins: []string{"https://bills.example"}},
			expected: []string{"https://bills.example"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.cfg.AllowedOrigins())
		})
	}
}
