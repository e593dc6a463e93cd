package providers

import (
	"fmt"

	"github.com/i474232898/city-env-alerts/internal/environment"
	"github.com/i474232898/city-env-alerts/internal/profile"
)

// NewCrime creates the public safety provider.
func NewCrime(deps Deps) *Client[environment.Crime] {
	return newClient(domainDef[environment.Crime]{
		domain:   environment.DomainCrime,
		defaults: environment.DefaultCrime,
		prompt:   crimePrompt,
		normalize: func(c *environment.Crime) {
			orUnavailableString(&c.SafetyLevel)
			c.RecentIncidents = nonNil(c.RecentIncidents)
			c.SafetyTips = nonNil(c.SafetyTips)
		},
	}, deps)
}

func crimePrompt(loc environment.Location, _ profile.UserContext, date string) string {
	return fmt.Sprintf(`Recent public safety picture near %s (lat %.4f, lng %.4f) as of %s.
Schema:
{"safetyLevel": "low"|"moderate"|"elevated"|"high" (risk), "recentIncidents": [string],
 "safetyTips": [string]}`,
		loc.Address, loc.Lat, loc.Lng, date)
}
