// Package geo turns configured warm-up addresses into coordinates.
package geo

import (
	"context"
	"errors"
	"fmt"

	"github.com/kelvins/geocoder"
	"github.com/rs/zerolog/log"

	"github.com/i474232898/city-env-alerts/internal/config"
	"github.com/i474232898/city-env-alerts/internal/environment"
)

// ErrNoGeocoder is returned when an address needs geocoding but no key is set.
var ErrNoGeocoder = errors.New("geocoder not configured")

// GeocodeFunc looks up the coordinates of a free-form address.
type GeocodeFunc func(address string) (lat, lng float64, err error)

// Resolver fills in coordinates for warm locations that lack them.
type Resolver struct {
	geocode GeocodeFunc
}

// NewResolver returns a Resolver backed by the Google geocoding API. An empty
// apiKey leaves only pre-resolved locations usable.
func NewResolver(apiKey string) *Resolver {
	if apiKey == "" {
		return &Resolver{}
	}
	geocoder.ApiKey = apiKey
	return &Resolver{geocode: googleGeocode}
}

// NewResolverWithFunc is used by tests and alternative backends.
func NewResolverWithFunc(fn GeocodeFunc) *Resolver {
	return &Resolver{geocode: fn}
}

// Resolve converts every warm location. Locations that cannot be resolved are
// logged and skipped; an error is returned only if none could be resolved.
func (r *Resolver) Resolve(ctx context.Context, warm []config.WarmLocation) ([]environment.Location, error) {
	out := make([]environment.Location, 0, len(warm))
	var lastErr error

	for _, w := range warm {
		if err := ctx.Err(); err != nil {
			return out, err
		}

		loc := environment.Location{Address: w.Address, Lat: w.Lat, Lng: w.Lng}
		if !w.HasCoords {
			lat, lng, err := r.lookup(w.Address)
			if err != nil {
				lastErr = err
				log.Warn().Err(err).Str("address", w.Address).Msg("warm location skipped")
				continue
			}
			loc.Lat, loc.Lng = lat, lng
		}

		if err := loc.Validate(); err != nil {
			lastErr = err
			log.Warn().Err(err).Str("address", w.Address).Msg("warm location skipped")
			continue
		}
		out = append(out, loc)
	}

	if len(out) == 0 && lastErr != nil {
		return nil, lastErr
	}
	return out, nil
}

func (r *Resolver) lookup(address string) (float64, float64, error) {
	if r.geocode == nil {
		return 0, 0, fmt.Errorf("%w: %q has no coordinates", ErrNoGeocoder, address)
	}
	lat, lng, err := r.geocode(address)
	if err != nil {
		return 0, 0, fmt.Errorf("geocode %q: %w", address, err)
	}
	return lat, lng, nil
}

func googleGeocode(address string) (float64, float64, error) {
	loc, err := geocoder.Geocoding(geocoder.Address{Street: address})
	if err != nil {
		return 0, 0, err
	}
	return loc.Latitude, loc.Longitude, nil
}
