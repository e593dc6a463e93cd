package providers

import (
	"fmt"

	"github.com/i474232898/city-env-alerts/internal/environment"
	"github.com/i474232898/city-env-alerts/internal/profile"
)

// NewTraffic creates the traffic provider.
func NewTraffic(deps Deps) *Client[environment.Traffic] {
	return newClient(domainDef[environment.Traffic]{
		domain:   environment.DomainTraffic,
		defaults: environment.DefaultTraffic,
		prompt:   trafficPrompt,
		normalize: func(t *environment.Traffic) {
			orUnavailableString(&t.CongestionLevel)
			orUnavailable(&t.AverageCommute)
			t.Incidents = nonNil(t.Incidents)
		},
	}, deps)
}

func trafficPrompt(loc environment.Location, _ profile.UserContext, date string) string {
	return fmt.Sprintf(`Current road traffic around %s (lat %.4f, lng %.4f) on %s.
Schema:
{"congestionLevel": "low"|"moderate"|"heavy"|"severe", "averageCommute": string (minutes),
 "incidents": [{"description": string, "location": string, "severity": string}],
 "advice": string}`,
		loc.Address, loc.Lat, loc.Lng, date)
}
