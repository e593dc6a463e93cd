package geo

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i474232898/city-env-alerts/internal/config"
	"github.com/i474232898/city-env-alerts/internal/environment"
)

func TestResolve_UsesConfiguredCoordinates(t *testing.T) {
	r := NewResolverWithFunc(func(string) (float64, float64, error) {
		t.Fatal("geocoder must not be called for resolved locations")
		return 0, 0, nil
	})

	locs, err := r.Resolve(context.Background(), []config.WarmLocation{
		{Address: "Indianapolis, IN", Lat: 39.77, Lng: -86.15, HasCoords: true},
	})
	require.NoError(t, err)
	assert.Equal(t, []environment.Location{{Address: "Indianapolis, IN", Lat: 39.77, Lng: -86.15}}, locs)
}

func TestResolve_GeocodesMissingCoordinates(t *testing.T) {
	r := NewResolverWithFunc(func(addr string) (float64, float64, error) {
		if addr == "Nowhere" {
			return 0, 0, errors.New("zero results")
		}
		return 39.97, -86.12, nil
	})

	locs, err := r.Resolve(context.Background(), []config.WarmLocation{
		{Address: "Carmel, IN"},
		{Address: "Nowhere"},
	})
	require.NoError(t, err)
	require.Len(t, locs, 1)
	assert.Equal(t, "Carmel, IN", locs[0].Address)
	assert.InDelta(t, 39.97, locs[0].Lat, 1e-9)
}

func TestResolve_NoGeocoder(t *testing.T) {
	r := NewResolver("")

	_, err := r.Resolve(context.Background(), []config.WarmLocation{{Address: "Carmel, IN"}})
	require.ErrorIs(t, err, ErrNoGeocoder)
}

func TestResolve_Empty(t *testing.T) {
	locs, err := NewResolver("").Resolve(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, locs)
}
