package providers

import (
	"fmt"

	"github.com/i474232898/city-env-alerts/internal/environment"
	"github.com/i474232898/city-env-alerts/internal/profile"
)

// NewMarket creates the market provider. Market data is keyed by calendar date
// only; every location shares the day's entry.
func NewMarket(deps Deps) *Client[environment.Market] {
	return newClient(domainDef[environment.Market]{
		domain:     environment.DomainMarket,
		dateScoped: true,
		defaults:   environment.DefaultMarket,
		prompt:     marketPrompt,
		normalize: func(m *environment.Market) {
			orUnavailableString(&m.Summary)
			m.Indices = nonNil(m.Indices)
			m.LocalHighlights = nonNil(m.LocalHighlights)
		},
	}, deps)
}

func marketPrompt(loc environment.Location, _ profile.UserContext, date string) string {
	return fmt.Sprintf(`Market summary for %s, with local economy highlights relevant to residents of %s.
Schema:
{"summary": string, "indices": [{"name": string, "value": string, "change": string}],
 "localHighlights": [string]}`,
		date, loc.Address)
}
