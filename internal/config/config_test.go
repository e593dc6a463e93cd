package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	for _, k := range []string{"PORT", "APP_ENV", "UPSTREAM_TIMEOUT", "UPSTREAM_MAX_RETRIES", "RATE_LIMIT_MAX",
		"RATE_LIMIT_WINDOW", "SNAPSHOT_TTL", "CHAT_MAX_UPLOAD_BYTES", "WARM_LOCATIONS", "WARM_INTERVAL", "OTEL_ENABLED"} {
		t.Setenv(k, "")
	}

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.False(t, cfg.IsProduction())
	assert.Equal(t, 30*time.Second, cfg.UpstreamTimeout)
	assert.Equal(t, 0, cfg.UpstreamMaxRetries)
	assert.Equal(t, 20, cfg.RateLimitMax)
	assert.Equal(t, time.Minute, cfg.RateLimitWindow)
	assert.Equal(t, 5*time.Minute, cfg.SnapshotTTL)
	assert.Equal(t, int64(5<<20), cfg.ChatMaxUploadBytes)
	assert.Equal(t, 10*time.Minute, cfg.WarmInterval)
	assert.Empty(t, cfg.WarmLocations)
	assert.False(t, cfg.Telemetry.Enabled)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("APP_ENV", "Production")
	t.Setenv("RATE_LIMIT_MAX", "5")
	t.Setenv("RATE_LIMIT_WINDOW", "30s")
	t.Setenv("WARM_LOCATIONS", "Indianapolis, IN|39.77|-86.15")
	t.Setenv("OTEL_ENABLED", "true")

	cfg, err := Load()
	require.NoError(t, err)

	assert.True(t, cfg.IsProduction())
	assert.Equal(t, 5, cfg.RateLimitMax)
	assert.Equal(t, 30*time.Second, cfg.RateLimitWindow)
	require.Len(t, cfg.WarmLocations, 1)
	assert.True(t, cfg.Telemetry.Enabled)
}

func TestLoad_InvalidDuration(t *testing.T) {
	t.Setenv("SNAPSHOT_TTL", "five minutes")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SNAPSHOT_TTL")
}

func TestParseWarmLocations(t *testing.T) {
	locs, err := ParseWarmLocations("Indianapolis, IN|39.77|-86.15; Carmel, IN ;")
	require.NoError(t, err)
	require.Len(t, locs, 2)

	assert.Equal(t, WarmLocation{Address: "Indianapolis, IN", Lat: 39.77, Lng: -86.15, HasCoords: true}, locs[0])
	assert.Equal(t, WarmLocation{Address: "Carmel, IN"}, locs[1])

	for _, bad := range []string{"|39.77|-86.15", "Indy|north|-86.15", "Indy|39.77"} {
		_, err := ParseWarmLocations(bad)
		assert.Error(t, err, bad)
	}
}
