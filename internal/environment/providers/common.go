package providers

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/i474232898/city-env-alerts/internal/common"
	"github.com/i474232898/city-env-alerts/internal/environment"
	"github.com/i474232898/city-env-alerts/internal/llm"
	"github.com/i474232898/city-env-alerts/internal/profile"
)

var tracer = otel.Tracer("github.com/i474232898/city-env-alerts/internal/environment/providers")

const systemPrompt = "You are a data service for a city environmental alerts dashboard. " +
	"Answer with exactly one JSON object matching the requested schema. " +
	"Do not add commentary, markdown or code fences. Use Fahrenheit and miles."

// Recorder receives one outcome per fetch ("hit", "ok", "upstream", "timeout", "parse").
type Recorder interface {
	ProviderOutcome(domain, outcome string)
}

// Deps are the collaborators every provider client shares.
type Deps struct {
	Completer llm.Completer
	Cache     environment.Cache
	Clock     common.Clock
	Timeout   time.Duration
	Recorder  Recorder
}

// domainDef is what differs between the six domains.
type domainDef[T environment.Payload] struct {
	domain     environment.Domain
	dateScoped bool
	defaults   func() T
	prompt     func(loc environment.Location, uc profile.UserContext, date string) string
	normalize  func(*T)
	validate   func(T) error
}

// Client is a cached, upstream-backed provider for one domain.
type Client[T environment.Payload] struct {
	def       domainDef[T]
	completer llm.Completer
	cache     environment.Cache
	now       common.Clock
	timeout   time.Duration
	recorder  Recorder
}

func newClient[T environment.Payload](def domainDef[T], deps Deps) *Client[T] {
	now := deps.Clock
	if now == nil {
		now = common.SystemClock
	}
	timeout := deps.Timeout
	if timeout <= 0 {
		timeout = llm.DefaultTimeout
	}
	return &Client[T]{
		def:       def,
		completer: deps.Completer,
		cache:     deps.Cache,
		now:       now,
		timeout:   timeout,
		recorder:  deps.Recorder,
	}
}

// Domain returns the domain this client serves.
func (c *Client[T]) Domain() environment.Domain {
	return c.def.domain
}

// CacheKey returns the key this client reads and writes for loc at the
// current time. Personalization is deliberately not part of it.
func (c *Client[T]) CacheKey(loc environment.Location) string {
	if c.def.dateScoped {
		return fmt.Sprintf("%s:%s", c.def.domain, c.today())
	}
	return fmt.Sprintf("%s:%s", c.def.domain, loc.Key())
}

// Fetch returns the domain payload for loc. It never returns an error: upstream
// and parse failures produce the domain default with the failure kind set.
//
// The upstream call is detached from ctx cancellation so that a caller who
// disconnects still leaves a warm cache entry behind; it keeps ctx values and
// gets its own timeout.
func (c *Client[T]) Fetch(ctx context.Context, loc environment.Location, uc profile.UserContext) environment.Result[T] {
	key := c.CacheKey(loc)
	if v, ok := c.cache.Get(key); ok {
		if data, ok := v.(T); ok {
			c.record("hit")
			return environment.Ok(data, true)
		}
	}

	if c.completer == nil {
		c.record(string(environment.KindUpstream))
		return environment.Fail(c.def.defaults(), llm.ErrNotConfigured)
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.timeout)
	defer cancel()

	ctx, span := tracer.Start(ctx, "provider.Fetch")
	span.SetAttributes(attribute.String("domain", string(c.def.domain)))
	defer span.End()

	text, err := c.completer.Complete(ctx, llm.Request{
		System:     systemPrompt,
		Prompt:     c.def.prompt(loc, uc, c.today()),
		JSONOutput: true,
		Scope:      string(c.def.domain),
	})
	if err != nil {
		return c.fail(key, err)
	}

	data, err := c.parse(text)
	if err != nil {
		return c.fail(key, err)
	}

	c.cache.Set(key, data, c.def.domain.TTL())
	c.record("ok")
	return environment.Ok(data, false)
}

func (c *Client[T]) parse(text string) (T, error) {
	var data T
	if err := llm.DecodeJSON(text, &data); err != nil {
		return data, err
	}
	if c.def.validate != nil {
		if err := c.def.validate(data); err != nil {
			return data, fmt.Errorf("%w: %v", llm.ErrParse, err)
		}
	}
	if c.def.normalize != nil {
		c.def.normalize(&data)
	}
	return data, nil
}

func (c *Client[T]) fail(key string, err error) environment.Result[T] {
	res := environment.Fail(c.def.defaults(), err)
	log.Warn().
		Str("domain", string(c.def.domain)).
		Str("key", key).
		Str("kind", string(res.Kind)).
		Err(err).
		Msg("provider fetch failed; serving default")
	c.record(string(res.Kind))
	return res
}

func (c *Client[T]) record(outcome string) {
	if c.recorder != nil {
		c.recorder.ProviderOutcome(string(c.def.domain), outcome)
	}
}

func (c *Client[T]) today() string {
	return c.now().UTC().Format("2006-01-02")
}

// orUnavailable fills an empty reading with the sentinel.
func orUnavailable(v *environment.Value) {
	if *v == "" {
		*v = environment.Unavailable
	}
}

func orUnavailableString(s *string) {
	if *s == "" {
		*s = environment.Unavailable
	}
}

func nonNil[E any](s []E) []E {
	if s == nil {
		return []E{}
	}
	return s
}
