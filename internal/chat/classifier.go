package chat

import (
	"regexp"
	"strings"

	"github.com/i474232898/city-env-alerts/internal/common"
)

// Source identifies an AI backend.
type Source string

const (
	// SourceLive is the search-grounded backend for time-sensitive questions.
	SourceLive Source = "live"
	// SourceGeneral is the conversational backend for everything else.
	SourceGeneral Source = "general"
)

// Other returns the backend that is not s.
func (s Source) Other() Source {
	if s == SourceLive {
		return SourceGeneral
	}
	return SourceLive
}

// liveTerms mark a query as needing current information.
var liveTerms = []string{
	// time
	"today", "tonight", "tomorrow", "yesterday", "right now", "current",
	"latest", "recent", "this week", "this weekend", "this month", "this year",
	"breaking", "news", "update", "upcoming",
	// weather and environment
	"weather", "forecast", "temperature", "raining", "rainfall", "snowing", "thunderstorm",
	"tornado", "heat advisory", "air quality", "pollen count",
	// markets
	"stock", "price of", "market", "dow jones", "nasdaq", "s&p", "bitcoin", "interest rate", "gas price",
	// sports
	"score", "playoff", "colts", "pacers", "indy 500", "who won", "live game",
	// traffic and events
	"traffic", "road closure", "construction on", "accident", "detour", "concert", "festival",
	// fact checking
	"fact check", "fact-check", "is it true", "verify", "confirm", "rumor",
}

var livePatterns = []*regexp.Regexp{
	regexp.MustCompile(`\bis it true (that|if)\b`),
	regexp.MustCompile(`\bis\b.+\bstill\b.+\b(open|closed|happening|available|true|running)\b`),
	regexp.MustCompile(`\bwhat('s| is) (the )?(current|latest|new)\b`),
	regexp.MustCompile(`\b(did|has|have)\b.+\b(happen|announce|announced|pass|passed|win|won|close|closed)\b`),
	regexp.MustCompile(`\bhow much (is|does|are)\b.+\b(now|today|cost)\b`),
	regexp.MustCompile(`\bwhen (is|does|will) the next\b`),
	regexp.MustCompile(`\b(open|closed) (now|today)\b`),
	regexp.MustCompile(`\b20[2-9][0-9]\b`),
	regexp.MustCompile(`\b(aqi|rain|snow|storms?|games?|events?)\b`),
}

// Classify decides which backend should answer query. It is a pure function:
// LIVE when the lower-cased query contains a trigger term or matches a
// pattern, GENERAL otherwise.
func Classify(query string) Source {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return SourceGeneral
	}
	if common.HasAny(q, liveTerms...) {
		return SourceLive
	}
	for _, re := range livePatterns {
		if re.MatchString(q) {
			return SourceLive
		}
	}
	return SourceGeneral
}
