package providers

import (
	"errors"
	"fmt"

	"github.com/i474232898/city-env-alerts/internal/environment"
	"github.com/i474232898/city-env-alerts/internal/profile"
)

// NewAirQuality creates the air quality provider.
func NewAirQuality(deps Deps) *Client[environment.AirQuality] {
	return newClient(domainDef[environment.AirQuality]{
		domain:   environment.DomainAirQuality,
		defaults: environment.DefaultAirQuality,
		prompt:   airQualityPrompt,
		validate: func(a environment.AirQuality) error {
			if a.AQI < 0 || a.AQI > 500 {
				return errors.New("air quality: aqi out of range")
			}
			return nil
		},
		normalize: func(a *environment.AirQuality) {
			orUnavailableString(&a.Category)
			orUnavailableString(&a.PrimaryPollutant)
			orUnavailableString(&a.PollenLevel)
		},
	}, deps)
}

func airQualityPrompt(loc environment.Location, uc profile.UserContext, date string) string {
	return fmt.Sprintf(`Current air quality for %s (lat %.4f, lng %.4f) on %s.
Resident allergies: %s.
Schema:
{"aqi": integer 0-500 (US EPA), "category": string, "primaryPollutant": string,
 "pollenLevel": string, "advice": string}`,
		loc.Address, loc.Lat, loc.Lng, date, profile.ListOrNone(uc.Allergies))
}
