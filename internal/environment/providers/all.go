package providers

import "github.com/i474232898/city-env-alerts/internal/environment"

var (
	_ environment.Provider[environment.Weather]    = (*Client[environment.Weather])(nil)
	_ environment.Provider[environment.AirQuality] = (*Client[environment.AirQuality])(nil)
	_ environment.Provider[environment.Traffic]    = (*Client[environment.Traffic])(nil)
	_ environment.Provider[environment.Health]     = (*Client[environment.Health])(nil)
	_ environment.Provider[environment.Crime]      = (*Client[environment.Crime])(nil)
	_ environment.Provider[environment.Market]     = (*Client[environment.Market])(nil)
)

// NewAll builds all six providers over the same dependencies.
func NewAll(deps Deps) environment.Providers {
	return environment.Providers{
		Weather:    NewWeather(deps),
		AirQuality: NewAirQuality(deps),
		Traffic:    NewTraffic(deps),
		Health:     NewHealth(deps),
		Crime:      NewCrime(deps),
		Market:     NewMarket(deps),
	}
}
