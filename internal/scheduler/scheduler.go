package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/rs/zerolog/log"

	"github.com/i474232898/city-env-alerts/internal/environment"
	"github.com/i474232898/city-env-alerts/internal/profile"
)

const (
	defaultWarmInterval = 10 * time.Minute
	purgeInterval       = 5 * time.Minute
	warmTimeout         = 30 * time.Second
)

// Aggregator builds a snapshot for one location.
type Aggregator interface {
	Aggregate(ctx context.Context, loc environment.Location, uc profile.UserContext) (environment.Snapshot, error)
}

// Purger drops expired cache entries.
type Purger interface {
	PurgeExpired() int
}

// Scheduler keeps the snapshots of configured city locations warm and
// periodically purges expired cache entries.
type Scheduler struct {
	scheduler  *gocron.Scheduler
	aggregator Aggregator
	purger     Purger
	locations  []environment.Location
	interval   time.Duration
}

// New creates a new Scheduler.
func New(locations []environment.Location, interval time.Duration, aggregator Aggregator, purger Purger) *Scheduler {
	s := gocron.NewScheduler(time.UTC)
	s.SingletonModeAll()
	return &Scheduler{
		scheduler:  s,
		aggregator: aggregator,
		purger:     purger,
		locations:  locations,
		interval:   interval,
	}
}

// Start schedules the jobs and starts the underlying scheduler. Jobs run
// once immediately, then on their interval.
func (s *Scheduler) Start() error {
	if s.purger != nil {
		if _, err := s.scheduler.Every(int(purgeInterval.Minutes())).Minutes().Do(s.Purge); err != nil {
			return err
		}
	}

	if len(s.locations) == 0 {
		log.Info().Msg("scheduler: no warm locations configured")
	} else {
		minutes := int(s.interval.Minutes())
		if minutes <= 0 {
			minutes = int(defaultWarmInterval.Minutes())
		}
		if _, err := s.scheduler.Every(minutes).Minutes().Do(func() {
			s.Warm(context.Background())
		}); err != nil {
			return err
		}
	}

	s.scheduler.StartAsync()
	return nil
}

// Warm aggregates every configured location with an empty user context so
// location-scoped provider entries stay cached. It returns how many locations
// were refreshed.
func (s *Scheduler) Warm(ctx context.Context) int {
	log.Debug().Int("locations", len(s.locations)).Msg("scheduler: running warm-up job")

	var (
		wg sync.WaitGroup
		mu sync.Mutex
		ok int
	)
	for _, loc := range s.locations {
		wg.Add(1)
		go func() {
			defer wg.Done()

			ctx, cancel := context.WithTimeout(ctx, warmTimeout)
			defer cancel()

			snap, err := s.aggregator.Aggregate(ctx, loc, profile.UserContext{})
			if err != nil {
				log.Warn().Err(err).Str("location", loc.Address).Msg("scheduler: warm-up failed")
				return
			}
			if snap.Degraded {
				log.Warn().Str("location", loc.Address).Msg("scheduler: warm-up returned degraded snapshot")
			}

			mu.Lock()
			ok++
			mu.Unlock()
		}()
	}
	wg.Wait()

	log.Info().Int("refreshed", ok).Int("locations", len(s.locations)).Msg("scheduler: completed warm-up job")
	return ok
}

// Purge removes expired cache entries.
func (s *Scheduler) Purge() {
	if n := s.purger.PurgeExpired(); n > 0 {
		log.Debug().Int("purged", n).Msg("scheduler: purged expired cache entries")
	}
}

// Stop stops the scheduler and cancels any future jobs.
func (s *Scheduler) Stop() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
}
