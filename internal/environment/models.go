package environment

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// ErrInvalidLocation is returned when a location is missing its address or has
// coordinates outside the valid range.
var ErrInvalidLocation = errors.New("invalid location")

// Domain names one upstream data source.
type Domain string

const (
	DomainWeather    Domain = "weather"
	DomainAirQuality Domain = "airQuality"
	DomainTraffic    Domain = "traffic"
	DomainHealth     Domain = "health"
	DomainCrime      Domain = "crime"
	DomainMarket     Domain = "market"
)

// Domains lists every domain in snapshot order.
var Domains = []Domain{DomainWeather, DomainAirQuality, DomainTraffic, DomainHealth, DomainCrime, DomainMarket}

// TTL returns how long a domain's payload stays fresh. Faster-moving phenomena
// expire sooner.
func (d Domain) TTL() time.Duration {
	switch d {
	case DomainTraffic:
		return 5 * time.Minute
	case DomainWeather, DomainAirQuality:
		return 10 * time.Minute
	case DomainHealth, DomainCrime:
		return 30 * time.Minute
	case DomainMarket:
		return 60 * time.Minute
	default:
		return 5 * time.Minute
	}
}

// Location is a resolved place a resident asked about.
type Location struct {
	Lat     float64 `json:"lat"`
	Lng     float64 `json:"lng"`
	Address string  `json:"address"`
}

// Validate checks the address is present and the coordinates are usable.
func (l Location) Validate() error {
	if strings.TrimSpace(l.Address) == "" {
		return fmt.Errorf("%w: address is required", ErrInvalidLocation)
	}
	if math.IsNaN(l.Lat) || l.Lat < -90 || l.Lat > 90 {
		return fmt.Errorf("%w: latitude %v out of range", ErrInvalidLocation, l.Lat)
	}
	if math.IsNaN(l.Lng) || l.Lng < -180 || l.Lng > 180 {
		return fmt.Errorf("%w: longitude %v out of range", ErrInvalidLocation, l.Lng)
	}
	return nil
}

// Key returns the coordinates rounded to two decimals (roughly 1 km), used to
// share cache entries between nearby callers.
func (l Location) Key() string {
	return fmt.Sprintf("%.2f:%.2f", l.Lat, l.Lng)
}

// Unavailable is the sentinel reading used when a domain could not be fetched.
const Unavailable = "unavailable"

// Value is a display reading such as "72" or "12 mph". Upstream models emit
// either JSON strings or numbers for these, so both are accepted.
type Value string

// UnmarshalJSON accepts a string, a number, a bool or null.
func (v *Value) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*v = ""
		return nil
	}
	switch b[0] {
	case '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*v = Value(s)
		return nil
	case 't', 'f':
		var bl bool
		if err := json.Unmarshal(b, &bl); err != nil {
			return err
		}
		*v = Value(strconv.FormatBool(bl))
		return nil
	default:
		var n json.Number
		if err := json.Unmarshal(b, &n); err != nil {
			return fmt.Errorf("value: %w", err)
		}
		*v = Value(n.String())
		return nil
	}
}

// Float parses the leading number of the reading ("72°F" -> 72).
func (v Value) Float() (float64, bool) {
	s := strings.TrimSpace(string(v))
	end := 0
	for end < len(s) {
		c := s[end]
		if (c >= '0' && c <= '9') || c == '.' || (end == 0 && (c == '-' || c == '+')) {
			end++
			continue
		}
		break
	}
	if end == 0 {
		return 0, false
	}
	f, err := strconv.ParseFloat(s[:end], 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// Weather is the current conditions for a location, temperatures in °F.
type Weather struct {
	Temperature   Value  `json:"temperature"`
	FeelsLike     Value  `json:"feelsLike"`
	Conditions    string `json:"conditions"`
	Humidity      Value  `json:"humidity"`
	UVIndex       Value  `json:"uvIndex"`
	WindSpeed     Value  `json:"windSpeed"`
	Precipitation bool   `json:"precipitation"`
	HeatWarning   bool   `json:"heatWarning"`
	Advice        string `json:"advice"`
}

// AQIUnavailable is the AQI of the default payload. Real readings are 0..500.
const AQIUnavailable = -1

// AirQuality is the current air quality index and pollen outlook.
type AirQuality struct {
	AQI              int    `json:"aqi"`
	Category         string `json:"category"`
	PrimaryPollutant string `json:"primaryPollutant"`
	PollenLevel      string `json:"pollenLevel"`
	Advice           string `json:"advice"`
}

// TrafficIncident is one reported road event.
type TrafficIncident struct {
	Description string `json:"description"`
	Location    string `json:"location"`
	Severity    string `json:"severity"`
}

// Traffic is the road situation around a location.
type Traffic struct {
	CongestionLevel string            `json:"congestionLevel"`
	AverageCommute  Value             `json:"averageCommute"`
	Incidents       []TrafficIncident `json:"incidents"`
	Advice          string            `json:"advice"`
}

// Health is the public-health outlook, tinted by the caller's profile.
type Health struct {
	RiskLevel       string   `json:"riskLevel"`
	Alerts          []string `json:"alerts"`
	AllergyOutlook  string   `json:"allergyOutlook"`
	Recommendations []string `json:"recommendations"`
}

// Crime is the recent public-safety picture near a location.
type Crime struct {
	SafetyLevel     string   `json:"safetyLevel"`
	RecentIncidents []string `json:"recentIncidents"`
	SafetyTips      []string `json:"safetyTips"`
}

// MarketIndex is one market indicator for the day.
type MarketIndex struct {
	Name   string `json:"name"`
	Value  Value  `json:"value"`
	Change Value  `json:"change"`
}

// Market is the day's market and local-economy summary. It is date-scoped.
type Market struct {
	Summary         string        `json:"summary"`
	Indices         []MarketIndex `json:"indices"`
	LocalHighlights []string      `json:"localHighlights"`
}

// Payload constrains the six domain payload types.
type Payload interface {
	Weather | AirQuality | Traffic | Health | Crime | Market
}

// Defaults. Same shapes as the live payloads, sentinel values, empty non-nil
// slices so they always serialize as [].

func DefaultWeather() Weather {
	return Weather{
		Temperature: Unavailable,
		FeelsLike:   Unavailable,
		Conditions:  Unavailable,
		Humidity:    Unavailable,
		UVIndex:     Unavailable,
		WindSpeed:   Unavailable,
		Advice:      "Weather data is temporarily unavailable.",
	}
}

func DefaultAirQuality() AirQuality {
	return AirQuality{
		AQI:              AQIUnavailable,
		Category:         Unavailable,
		PrimaryPollutant: Unavailable,
		PollenLevel:      Unavailable,
		Advice:           "Air quality data is temporarily unavailable.",
	}
}

func DefaultTraffic() Traffic {
	return Traffic{
		CongestionLevel: Unavailable,
		AverageCommute:  Unavailable,
		Incidents:       []TrafficIncident{},
		Advice:          "Traffic data is temporarily unavailable.",
	}
}

func DefaultHealth() Health {
	return Health{
		RiskLevel:       Unavailable,
		Alerts:          []string{},
		AllergyOutlook:  Unavailable,
		Recommendations: []string{},
	}
}

func DefaultCrime() Crime {
	return Crime{
		SafetyLevel:     Unavailable,
		RecentIncidents: []string{},
		SafetyTips:      []string{},
	}
}

func DefaultMarket() Market {
	return Market{
		Summary:         Unavailable,
		Indices:         []MarketIndex{},
		LocalHighlights: []string{},
	}
}

// SourceStatus tells the caller how one domain of a snapshot was produced.
type SourceStatus struct {
	Available bool   `json:"available"`
	Cached    bool   `json:"cached"`
	Error     string `json:"error,omitempty"` // error kind, never upstream detail
}

// Snapshot is the composite of all six domains for one request. Every domain
// field is always populated, with defaults where an upstream failed.
type Snapshot struct {
	Location    Location                `json:"location"`
	Weather     Weather                 `json:"weather"`
	AirQuality  AirQuality              `json:"airQuality"`
	Traffic     Traffic                 `json:"traffic"`
	Health      Health                  `json:"health"`
	Crime       Crime                   `json:"crime"`
	Market      Market                  `json:"market"`
	Sources     map[Domain]SourceStatus `json:"sources"`
	Degraded    bool                    `json:"degraded"`
	LastUpdated time.Time               `json:"lastUpdated"` // always UTC
}
