package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds everything the server and CLI commands need
type Config struct {
	Port        string
	Environment string
	CORSOrigins []string
	DatabaseURL string

	OpenStatesBaseURL string
	OpenStatesAPIKey  string
	Jurisdiction      string

	// ScraperCommand is the argv prefix used to run a scraper script,
	// e.g. ["/usr/local/bin/billtracker", "scrape"] or ["python3"].
	ScraperCommand    []string
	ScrapeSourceHosts []string
	FastScrapeTimeout time.Duration
	FullScrapeTimeout time.Duration
	DocumentTimeout   time.Duration
	DateSearchTimeout time.Duration
	ImportConcurrency int
	SutraBaseURL      string

	ConverterCommand  string
	ConversionTimeout time.Duration

	TempDir       string
	DocumentsDir  string
	ViewerBaseURL string

	// VerifyUpstreamTLS is false by default: government sources
	// frequently present invalid certificates.
	VerifyUpstreamTLS bool
	UpstreamTimeout   time.Duration
	UserAgent         string

	SessionTTL time.Duration
}

const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"

// Load reads .env (if present) and the environment
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		Port:        getEnv("PORT", "3001"),
		Environment: getEnv("NODE_ENV", getEnv("APP_ENV", "development")),
		CORSOrigins: getEnvList("CORS_ORIGINS", nil),
		DatabaseURL: getEnv("DATABASE_URL", ""),

		OpenStatesBaseURL: getEnv("OPENSTATES_BASE_URL", "https://v3.openstates.org"),
		OpenStatesAPIKey:  getEnv("OPENSTATES_API_KEY", ""),
		Jurisdiction:      getEnv("OPENSTATES_JURISDICTION", "ocd-jurisdiction/country:us/territory:pr/government"),

		ScraperCommand:    scraperCommand(getEnv("SCRAPER_COMMAND", "")),
		ScrapeSourceHosts: getEnvList("SCRAPE_SOURCE_HOSTS", []string{"sutra.oslpr.org"}),
		FastScrapeTimeout: getEnvDuration("FAST_SCRAPE_TIMEOUT", 3*time.Second),
		FullScrapeTimeout: getEnvDuration("FULL_SCRAPE_TIMEOUT", 0),
		DocumentTimeout:   getEnvDuration("DOCUMENT_TIMEOUT", 60*time.Second),
		DateSearchTimeout: getEnvDuration("DATE_SEARCH_TIMEOUT", 2*time.Minute),
		ImportConcurrency: getEnvInt("IMPORT_CONCURRENCY", 3),
		SutraBaseURL:      getEnv("SUTRA_BASE_URL", "https://sutra.oslpr.org"),

		ConverterCommand:  getEnv("CONVERTER_COMMAND", "soffice"),
		ConversionTimeout: getEnvDuration("CONVERSION_TIMEOUT", 60*time.Second),

		TempDir:       getEnv("TEMP_DIR", os.TempDir()),
		DocumentsDir:  getEnv("DOCUMENTS_DIR", "scraped_data"),
		ViewerBaseURL: getEnv("VIEWER_BASE_URL", "https://docs.google.com/viewer"),

		VerifyUpstreamTLS: getEnvBool("VERIFY_UPSTREAM_TLS", false),
		UpstreamTimeout:   getEnvDuration("UPSTREAM_TIMEOUT", 30*time.Second),
		UserAgent:         getEnv("UPSTREAM_USER_AGENT", defaultUserAgent),

		SessionTTL: getEnvDuration("SESSION_TTL", 30*time.Minute),
	}
}

// IsProduction reports whether the production CORS allow-list applies
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// AllowedOrigins returns the CORS allow-list for the current environment
func (c *Config) AllowedOrigins() []string {
	if len(c.CORSOrigins) > 0 {
		return c.CORSOrigins
	}
	if c.IsProduction() {
		return []string{"https://your-production-domain.com", "http://localhost:3000"}
	}
	return []string{"http://localhost:3000"}
}

// scraperCommand defaults to running this binary's scrape subcommand
func scraperCommand(raw string) []string {
	if fields := strings.Fields(raw); len(fields) > 0 {
		return fields
	}
	self, err := os.Executable()
	if err != nil {
		self = "billtracker"
	}
	return []string{self, "scrape"}
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	value, err := strconv.ParseBool(os.Getenv(key))
	if err != nil {
		return fallback
	}
	return value
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	// Bare integers are milliseconds
	if ms, err := strconv.Atoi(value); err == nil {
		return time.Duration(ms) * time.Millisecond
	}
	return fallback
}

func getEnvList(key string, fallback []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
