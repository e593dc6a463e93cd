package environment

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/i474232898/city-env-alerts/internal/common"
	"github.com/i474232898/city-env-alerts/internal/profile"
)

// DefaultSnapshotTTL is how long a composite snapshot is reused for an
// identical (location, user context) request.
const DefaultSnapshotTTL = 5 * time.Minute

// ErrNoProviders is returned when the service was built without all six providers.
var ErrNoProviders = errors.New("environment providers not configured")

var tracer = otel.Tracer("github.com/i474232898/city-env-alerts/internal/environment")

// Providers holds one client per domain.
type Providers struct {
	Weather    Provider[Weather]
	AirQuality Provider[AirQuality]
	Traffic    Provider[Traffic]
	Health     Provider[Health]
	Crime      Provider[Crime]
	Market     Provider[Market]
}

func (p Providers) complete() bool {
	return p.Weather != nil && p.AirQuality != nil && p.Traffic != nil &&
		p.Health != nil && p.Crime != nil && p.Market != nil
}

// Service fans one request out to every provider and assembles the snapshot.
type Service struct {
	cache       Cache
	providers   Providers
	snapshotTTL time.Duration
	now         common.Clock
}

// Option configures a Service.
type Option func(*Service)

// WithClock overrides the time source for LastUpdated.
func WithClock(clock common.Clock) Option {
	return func(s *Service) {
		if clock != nil {
			s.now = clock
		}
	}
}

// WithSnapshotTTL overrides DefaultSnapshotTTL.
func WithSnapshotTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl > 0 {
			s.snapshotTTL = ttl
		}
	}
}

// NewService creates a new Service.
func NewService(cache Cache, providers Providers, opts ...Option) *Service {
	s := &Service{
		cache:       cache,
		providers:   providers,
		snapshotTTL: DefaultSnapshotTTL,
		now:         common.SystemClock,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Aggregate returns the environmental snapshot for loc. Provider failures
// degrade individual fields to their defaults and never fail the call; only an
// invalid location or a misconfigured service returns an error.
func (s *Service) Aggregate(ctx context.Context, loc Location, uc profile.UserContext) (Snapshot, error) {
	if err := loc.Validate(); err != nil {
		return Snapshot{}, err
	}
	if !s.providers.complete() {
		return Snapshot{}, ErrNoProviders
	}

	key := snapshotKey(loc, uc)
	if v, ok := s.cache.Get(key); ok {
		if snap, ok := v.(Snapshot); ok {
			log.Debug().Str("key", key).Msg("snapshot cache hit")
			return snap, nil
		}
	}

	ctx, span := tracer.Start(ctx, "environment.Aggregate")
	span.SetAttributes(
		attribute.String("location", loc.Key()),
		attribute.Bool("personalized", !uc.IsEmpty()),
	)
	defer span.End()

	snap := Snapshot{Location: loc}
	statuses := make([]SourceStatus, len(Domains))

	var wg sync.WaitGroup
	fanOut(ctx, &wg, s.providers.Weather, loc, uc, &snap.Weather, &statuses[0])
	fanOut(ctx, &wg, s.providers.AirQuality, loc, uc, &snap.AirQuality, &statuses[1])
	fanOut(ctx, &wg, s.providers.Traffic, loc, uc, &snap.Traffic, &statuses[2])
	fanOut(ctx, &wg, s.providers.Health, loc, uc, &snap.Health, &statuses[3])
	fanOut(ctx, &wg, s.providers.Crime, loc, uc, &snap.Crime, &statuses[4])
	fanOut(ctx, &wg, s.providers.Market, loc, uc, &snap.Market, &statuses[5])
	wg.Wait()

	snap.Sources = make(map[Domain]SourceStatus, len(Domains))
	failed := 0
	for i, d := range Domains {
		snap.Sources[d] = statuses[i]
		if !statuses[i].Available {
			failed++
		}
	}
	snap.Degraded = failed > 0
	snap.LastUpdated = s.now().UTC()

	span.SetAttributes(attribute.Int("providers.failed", failed))
	if failed == len(Domains) {
		log.Warn().Str("location", loc.Key()).Msg("all providers failed; serving defaults")
	}

	// A degraded snapshot is not reused: the next call retries the failed
	// domains while the healthy ones are served from their own cache entries.
	if !snap.Degraded {
		s.cache.Set(key, snap, s.snapshotTTL)
	}
	return snap, nil
}

// fanOut runs one provider in its own goroutine and writes its data and
// status into dst/status. dst is preset to the provider default so a panicking
// provider still leaves a well-formed field behind.
func fanOut[T Payload](ctx context.Context, wg *sync.WaitGroup, p Provider[T], loc Location, uc profile.UserContext, dst *T, status *SourceStatus) {
	*dst = defaultFor[T]()
	*status = SourceStatus{Error: string(KindUpstream)}

	wg.Add(1)
	go func() {
		defer wg.Done()
		defer func() {
			if r := recover(); r != nil {
				log.Error().Str("domain", string(p.Domain())).Interface("panic", r).Msg("provider panicked")
			}
		}()

		res := p.Fetch(ctx, loc, uc)
		*dst = res.Data
		*status = res.Status()
	}()
}

// defaultFor returns the default payload of a domain type.
func defaultFor[T Payload]() T {
	var out any
	var zero T
	switch any(zero).(type) {
	case Weather:
		out = DefaultWeather()
	case AirQuality:
		out = DefaultAirQuality()
	case Traffic:
		out = DefaultTraffic()
	case Health:
		out = DefaultHealth()
	case Crime:
		out = DefaultCrime()
	case Market:
		out = DefaultMarket()
	}
	return out.(T)
}

// snapshotKey is the composite cache key of a whole aggregate.
func snapshotKey(loc Location, uc profile.UserContext) string {
	return fmt.Sprintf("snapshot:%.4f:%.4f:%s:%s",
		loc.Lat, loc.Lng, strings.ToLower(strings.TrimSpace(loc.Address)), uc.CacheKey())
}
