package environment

import (
	"context"
	"errors"
	"time"

	"github.com/i474232898/city-env-alerts/internal/llm"
	"github.com/i474232898/city-env-alerts/internal/profile"
)

// ErrorKind classifies why a provider fell back to its default payload.
type ErrorKind string

const (
	KindNone     ErrorKind = ""
	KindUpstream ErrorKind = "upstream"
	KindTimeout  ErrorKind = "timeout"
	KindParse    ErrorKind = "parse"
)

// KindOf maps an upstream or parse error onto an ErrorKind.
func KindOf(err error) ErrorKind {
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, llm.ErrParse):
		return KindParse
	case errors.Is(err, llm.ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return KindTimeout
	default:
		return KindUpstream
	}
}

// Result is a provider outcome. Data is always usable: on failure it holds the
// domain default, so callers choose whether to surface Err or swallow it.
type Result[T Payload] struct {
	Data   T
	Kind   ErrorKind
	Err    error
	Cached bool
}

// OK reports whether Data came from the upstream (or its cache).
func (r Result[T]) OK() bool {
	return r.Kind == KindNone
}

// Status renders the result for a snapshot's Sources map.
func (r Result[T]) Status() SourceStatus {
	return SourceStatus{
		Available: r.OK(),
		Cached:    r.Cached,
		Error:     string(r.Kind),
	}
}

// Ok wraps a successful payload.
func Ok[T Payload](data T, cached bool) Result[T] {
	return Result[T]{Data: data, Cached: cached}
}

// Fail wraps a failure with the domain default payload.
func Fail[T Payload](def T, err error) Result[T] {
	kind := KindOf(err)
	if kind == KindNone {
		kind = KindUpstream
	}
	return Result[T]{Data: def, Kind: kind, Err: err}
}

// Provider fetches one domain for a location. Implementations never panic or
// return a bare error: failure is reported in the Result.
type Provider[T Payload] interface {
	Domain() Domain
	Fetch(ctx context.Context, loc Location, uc profile.UserContext) Result[T]
}

// Cache is the read-through/write-through store shared by providers and the
// aggregator.
type Cache interface {
	Get(key string) (any, bool)
	Set(key string, value any, ttl time.Duration)
}
