package scheduler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i474232898/city-env-alerts/internal/environment"
	"github.com/i474232898/city-env-alerts/internal/profile"
)

type fakeAggregator struct {
	mu    sync.Mutex
	seen  []string
	users []profile.UserContext
	fail  map[string]bool
}

func (f *fakeAggregator) Aggregate(_ context.Context, loc environment.Location, uc profile.UserContext) (environment.Snapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seen = append(f.seen, loc.Address)
	f.users = append(f.users, uc)
	if f.fail[loc.Address] {
		return environment.Snapshot{}, errors.New("boom")
	}
	return environment.Snapshot{Location: loc}, nil
}

func (f *fakeAggregator) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.seen)
}

type fakePurger struct{ n atomic.Int32 }

func (p *fakePurger) PurgeExpired() int {
	p.n.Add(1)
	return 0
}

var locations = []environment.Location{
	{Address: "Indianapolis, IN", Lat: 39.77, Lng: -86.15},
	{Address: "Carmel, IN", Lat: 39.97, Lng: -86.12},
}

func TestWarm_AggregatesEveryLocationWithEmptyProfile(t *testing.T) {
	agg := &fakeAggregator{fail: map[string]bool{"Carmel, IN": true}}
	s := New(locations, time.Minute, agg, nil)

	refreshed := s.Warm(context.Background())

	assert.Equal(t, 1, refreshed)
	assert.ElementsMatch(t, []string{"Indianapolis, IN", "Carmel, IN"}, agg.seen)
	for _, uc := range agg.users {
		assert.True(t, uc.IsEmpty())
	}
}

func TestStart_RunsJobsImmediately(t *testing.T) {
	agg := &fakeAggregator{}
	purger := &fakePurger{}
	s := New(locations, time.Minute, agg, purger)

	require.NoError(t, s.Start())
	defer s.Stop()

	assert.Eventually(t, func() bool {
		return agg.calls() == len(locations) && purger.n.Load() >= 1
	}, 2*time.Second, 10*time.Millisecond)
}

func TestStart_NoLocations(t *testing.T) {
	purger := &fakePurger{}
	s := New(nil, 0, &fakeAggregator{}, purger)

	require.NoError(t, s.Start())
	defer s.Stop()

	assert.Eventually(t, func() bool { return purger.n.Load() >= 1 }, 2*time.Second, 10*time.Millisecond)
}
