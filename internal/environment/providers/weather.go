package providers

import (
	"errors"
	"fmt"

	"github.com/i474232898/city-env-alerts/internal/environment"
	"github.com/i474232898/city-env-alerts/internal/profile"
)

// NewWeather creates the weather provider. The caller's blood group is passed
// to the upstream for hydration and heat advice.
func NewWeather(deps Deps) *Client[environment.Weather] {
	return newClient(domainDef[environment.Weather]{
		domain:   environment.DomainWeather,
		defaults: environment.DefaultWeather,
		prompt:   weatherPrompt,
		validate: func(w environment.Weather) error {
			if _, ok := w.Temperature.Float(); !ok {
				return errors.New("weather: temperature is not numeric")
			}
			return nil
		},
		normalize: func(w *environment.Weather) {
			orUnavailable(&w.FeelsLike)
			orUnavailable(&w.Humidity)
			orUnavailable(&w.UVIndex)
			orUnavailable(&w.WindSpeed)
			orUnavailableString(&w.Conditions)
		},
	}, deps)
}

func weatherPrompt(loc environment.Location, uc profile.UserContext, date string) string {
	bloodGroup := uc.BloodGroup
	if bloodGroup == "" {
		bloodGroup = "not provided"
	}
	return fmt.Sprintf(`Current weather for %s (lat %.4f, lng %.4f) on %s.
Resident blood group: %s. Tailor the advice to it when relevant (hydration, heat stress).
Schema:
{"temperature": number (°F), "feelsLike": number (°F), "conditions": string,
 "humidity": number (percent), "uvIndex": number, "windSpeed": number (mph),
 "precipitation": boolean, "heatWarning": boolean, "advice": string}`,
		loc.Address, loc.Lat, loc.Lng, date, bloodGroup)
}
