package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

// UpstreamConfig points at one OpenAI-compatible chat completion endpoint.
type UpstreamConfig struct {
	BaseURL string
	APIKey  string
	Model   string
}

// Configured reports whether the endpoint can be called at all.
func (u UpstreamConfig) Configured() bool {
	return u.BaseURL != "" && u.APIKey != ""
}

// TelemetryConfig controls OpenTelemetry tracing.
type TelemetryConfig struct {
	Enabled      bool
	OTLPEndpoint string
	Insecure     bool
	ServiceName  string
	SampleRatio  float64
}

// WarmLocation is a place whose snapshot the scheduler keeps hot. Entries
// without coordinates are geocoded at startup.
type WarmLocation struct {
	Address   string
	Lat       float64
	Lng       float64
	HasCoords bool
}

type AppConfig struct {
	Port      string
	Env       string
	LogLevel  string
	LogFormat string

	// General serves the environmental providers and non time-sensitive chat.
	General UpstreamConfig
	// Live is the search-grounded backend for time-sensitive chat.
	Live UpstreamConfig

	UpstreamTimeout    time.Duration
	UpstreamMaxRetries int

	RateLimitMax    int
	RateLimitWindow time.Duration

	SnapshotTTL        time.Duration
	ChatMaxUploadBytes int64

	WarmLocations  []WarmLocation
	WarmInterval   time.Duration
	GeocoderAPIKey string

	Telemetry TelemetryConfig
}

// IsProduction reports whether APP_ENV is production.
func (c *AppConfig) IsProduction() bool {
	return strings.EqualFold(c.Env, "production")
}

// Load reads configuration from environment with sensible defaults.
func Load() (*AppConfig, error) {
	if err := godotenv.Load(); err != nil {
		log.Debug().Err(err).Msg("no .env file loaded")
	}
	cfg := &AppConfig{}

	cfg.Port = getenvDefault("PORT", "8080")
	cfg.Env = getenvDefault("APP_ENV", "development")
	cfg.LogLevel = getenvDefault("LOG_LEVEL", "info")
	cfg.LogFormat = getenvDefault("LOG_FORMAT", "json")

	cfg.General = UpstreamConfig{
		BaseURL: getenvDefault("GENERAL_API_URL", "https://generativelanguage.googleapis.com/v1beta/openai"),
		APIKey:  os.Getenv("GENERAL_API_KEY"),
		Model:   getenvDefault("GENERAL_MODEL", "gemini-2.0-flash"),
	}
	cfg.Live = UpstreamConfig{
		BaseURL: getenvDefault("LIVE_API_URL", "https://api.perplexity.ai"),
		APIKey:  os.Getenv("LIVE_API_KEY"),
		Model:   getenvDefault("LIVE_MODEL", "sonar"),
	}

	var err error
	if cfg.UpstreamTimeout, err = getenvDuration("UPSTREAM_TIMEOUT", 30*time.Second); err != nil {
		return nil, err
	}
	cfg.UpstreamMaxRetries = getenvInt("UPSTREAM_MAX_RETRIES", 0)

	cfg.RateLimitMax = getenvInt("RATE_LIMIT_MAX", 20)
	if cfg.RateLimitWindow, err = getenvDuration("RATE_LIMIT_WINDOW", time.Minute); err != nil {
		return nil, err
	}
	if cfg.RateLimitMax <= 0 {
		return nil, fmt.Errorf("invalid RATE_LIMIT_MAX: must be positive")
	}

	if cfg.SnapshotTTL, err = getenvDuration("SNAPSHOT_TTL", 5*time.Minute); err != nil {
		return nil, err
	}
	cfg.ChatMaxUploadBytes = int64(getenvInt("CHAT_MAX_UPLOAD_BYTES", 5<<20))

	if cfg.WarmInterval, err = getenvDuration("WARM_INTERVAL", 10*time.Minute); err != nil {
		return nil, err
	}
	if cfg.WarmLocations, err = ParseWarmLocations(os.Getenv("WARM_LOCATIONS")); err != nil {
		return nil, err
	}
	cfg.GeocoderAPIKey = os.Getenv("GEOCODER_API_KEY")

	cfg.Telemetry = TelemetryConfig{
		Enabled:      getenvBool("OTEL_ENABLED", false),
		OTLPEndpoint: os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		Insecure:     getenvBool("OTEL_EXPORTER_OTLP_INSECURE", true),
		ServiceName:  getenvDefault("OTEL_SERVICE_NAME", "city-env-alerts"),
		SampleRatio:  getenvFloat("OTEL_SAMPLE_RATIO", 1.0),
	}

	return cfg, nil
}

// ParseWarmLocations parses "address|lat|lng;address;..." where the
// coordinates are optional.
func ParseWarmLocations(raw string) ([]WarmLocation, error) {
	var locs []WarmLocation
	for _, item := range strings.Split(raw, ";") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		parts := strings.Split(item, "|")
		loc := WarmLocation{Address: strings.TrimSpace(parts[0])}
		if loc.Address == "" {
			return nil, fmt.Errorf("invalid WARM_LOCATIONS entry %q: address is required", item)
		}
		switch len(parts) {
		case 1:
		case 3:
			lat, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
			if err != nil {
				return nil, fmt.Errorf("invalid WARM_LOCATIONS latitude in %q: %w", item, err)
			}
			lng, err := strconv.ParseFloat(strings.TrimSpace(parts[2]), 64)
			if err != nil {
				return nil, fmt.Errorf("invalid WARM_LOCATIONS longitude in %q: %w", item, err)
			}
			loc.Lat, loc.Lng, loc.HasCoords = lat, lng, true
		default:
			return nil, fmt.Errorf("invalid WARM_LOCATIONS entry %q: want address or address|lat|lng", item)
		}
		locs = append(locs, loc)
	}
	return locs, nil
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		n, err := strconv.Atoi(v)
		if err == nil {
			return n
		}
	}
	return def
}

func getenvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return def
}

func getenvFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err == nil {
			return f
		}
	}
	return def
}

func getenvDuration(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}
