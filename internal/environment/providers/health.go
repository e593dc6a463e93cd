package providers

import (
	"fmt"

	"github.com/i474232898/city-env-alerts/internal/environment"
	"github.com/i474232898/city-env-alerts/internal/profile"
)

// NewHealth creates the public health provider. Allergies, medications and
// conditions shape the prompt but not the cache key, so residents at the same
// location share one entry.
func NewHealth(deps Deps) *Client[environment.Health] {
	return newClient(domainDef[environment.Health]{
		domain:   environment.DomainHealth,
		defaults: environment.DefaultHealth,
		prompt:   healthPrompt,
		normalize: func(h *environment.Health) {
			orUnavailableString(&h.RiskLevel)
			orUnavailableString(&h.AllergyOutlook)
			h.Alerts = nonNil(h.Alerts)
			h.Recommendations = nonNil(h.Recommendations)
		},
	}, deps)
}

func healthPrompt(loc environment.Location, uc profile.UserContext, date string) string {
	return fmt.Sprintf(`Public health outlook for %s (lat %.4f, lng %.4f) on %s:
disease activity, heat or cold risk, pollen and allergy conditions.
Resident allergies: %s. Medications: %s. Conditions: %s.
Schema:
{"riskLevel": "low"|"moderate"|"high", "alerts": [string], "allergyOutlook": string,
 "recommendations": [string]}`,
		loc.Address, loc.Lat, loc.Lng, date,
		profile.ListOrNone(uc.Allergies), profile.ListOrNone(uc.Medications), profile.ListOrNone(uc.Conditions))
}
