package infra

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata" // collector devices often ship without a zoneinfo database
)

const (
	developmentAPIBaseURL = "http://localhost:8080/api"
	productionAPIBaseURL  = "https://api.pnakote.my.id/api"
)

// Config represents application configuration loaded from environment variables.
type Config struct {
	AppEnv             string
	Port               string
	APIBaseURL         string
	QueueDBPath        string
	ExportDir          string
	RosterFile         string
	Timezone           string
	Location           *time.Location
	DefaultLocale      string
	HTTPClientTimeout  time.Duration
	StatusRefresh      time.Duration
	DayCheckInterval   time.Duration
	SubmitDelay        time.Duration
	FollowUpRefresh    time.Duration
	BackgroundSync     time.Duration
	ConnectivityProbe  time.Duration
	ConnectivityURL    string
	CORSAllowedOrigins []string
	RateLimitPerMin    int
	HTTPReadTimeout    time.Duration
	HTTPWriteTimeout   time.Duration
	HTTPIdleTimeout    time.Duration
}

// LoadConfig loads configuration from environment variables and applies defaults where needed.
// The API base URL is resolved here, once, before any component starts.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		AppEnv:             getEnv("APP_ENV", "development"),
		Port:               getEnv("PORT", "8090"),
		APIBaseURL:         os.Getenv("API_BASE_URL"),
		QueueDBPath:        getEnv("QUEUE_DB_PATH", "./data/jimpitan.db"),
		ExportDir:          getEnv("EXPORT_DIR", "./data/exports"),
		RosterFile:         os.Getenv("ROSTER_FILE"),
		Timezone:           getEnv("TIMEZONE", "Asia/Jakarta"),
		DefaultLocale:      getEnv("DEFAULT_LOCALE", "id"),
		HTTPClientTimeout:  time.Second * time.Duration(getEnvInt("HTTP_CLIENT_TIMEOUT_SECONDS", 15)),
		StatusRefresh:      time.Second * time.Duration(getEnvInt("STATUS_REFRESH_SECONDS", 30)),
		DayCheckInterval:   time.Second * time.Duration(getEnvInt("DAY_CHECK_SECONDS", 60)),
		SubmitDelay:        time.Millisecond * time.Duration(getEnvInt("SUBMIT_DELAY_MS", 100)),
		FollowUpRefresh:    time.Millisecond * time.Duration(getEnvInt("FOLLOWUP_REFRESH_MS", 1500)),
		BackgroundSync:     time.Second * time.Duration(getEnvInt("BACKGROUND_SYNC_SECONDS", 300)),
		ConnectivityProbe:  time.Second * time.Duration(getEnvInt("CONNECTIVITY_PROBE_SECONDS", 10)),
		ConnectivityURL:    os.Getenv("CONNECTIVITY_PROBE_URL"),
		CORSAllowedOrigins: getEnvList("CORS_ALLOWED_ORIGINS", []string{"http://localhost:3000", "http://127.0.0.1:3000"}),
		RateLimitPerMin:    getEnvInt("RATE_LIMIT_PER_MINUTE", 120),
		HTTPReadTimeout:    time.Second * time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SECONDS", 15)),
		HTTPWriteTimeout:   time.Second * time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SECONDS", 30)),
		HTTPIdleTimeout:    time.Second * time.Duration(getEnvInt("HTTP_IDLE_TIMEOUT_SECONDS", 60)),
	}

	if cfg.APIBaseURL == "" {
		cfg.APIBaseURL = productionAPIBaseURL
		if cfg.AppEnv == "development" {
			cfg.APIBaseURL = developmentAPIBaseURL
		}
	}
	cfg.APIBaseURL = strings.TrimRight(cfg.APIBaseURL, "/")
	parsed, err := url.Parse(cfg.APIBaseURL)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return nil, fmt.Errorf("API_BASE_URL must be an absolute http(s) url, got %q", cfg.APIBaseURL)
	}
	if cfg.ConnectivityURL == "" {
		cfg.ConnectivityURL = cfg.APIBaseURL
	}

	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("TIMEZONE %q: %w", cfg.Timezone, err)
	}
	cfg.Location = loc

	return cfg, nil
}

// IsDevelopment reports whether the debug behaviour (verbose logs, console writer) is enabled.
func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvList(key string, fallback []string) []string {
	v, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(v) == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
