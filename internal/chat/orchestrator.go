// Package chat routes resident questions to one of two AI backends: a
// search-grounded LIVE backend for time-sensitive questions and a GENERAL
// backend for everything else, with a single fallback hop between them.
package chat

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var tracer = otel.Tracer("github.com/i474232898/city-env-alerts/internal/chat")

// Reply is a successful answer. Source is the backend that produced Text,
// which differs from Classified when the fallback answered.
type Reply struct {
	Text       string
	Source     Source
	Classified Source
	FellBack   bool
}

// FailureError is returned when both backends failed.
type FailureError struct {
	LastAttempted Source
	Primary       error
	Fallback      error
}

func (e *FailureError) Error() string {
	return fmt.Sprintf("all AI backends failed: primary: %v; fallback: %v", e.Primary, e.Fallback)
}

func (e *FailureError) Unwrap() []error {
	return []error{e.Primary, e.Fallback}
}

// Recorder receives one event per answered or failed query.
type Recorder interface {
	ChatOutcome(source, outcome string)
}

// Orchestrator picks the primary backend by classification and falls back to
// the other one exactly once.
type Orchestrator struct {
	backends map[Source]Backend
	classify func(string) Source
	recorder Recorder
}

// NewOrchestrator creates an Orchestrator over the two backends.
func NewOrchestrator(live, general Backend, recorder Recorder) *Orchestrator {
	return &Orchestrator{
		backends: map[Source]Backend{
			SourceLive:    live,
			SourceGeneral: general,
		},
		classify: Classify,
		recorder: recorder,
	}
}

// Respond answers q. States: classify, primary attempt, then on failure one
// fallback attempt; a second failure is returned as *FailureError.
//
// An attachment only reaches the upstream when the answering backend is
// GENERAL; if LIVE answers, the attachment is silently dropped.
func (o *Orchestrator) Respond(ctx context.Context, q Query) (Reply, error) {
	if strings.TrimSpace(q.Message) == "" {
		return Reply{}, ErrEmptyMessage
	}

	primary := o.classify(q.Message)

	ctx, span := tracer.Start(ctx, "chat.Respond")
	span.SetAttributes(attribute.String("chat.classified", string(primary)))
	defer span.End()

	text, primaryErr := o.attempt(ctx, primary, q)
	if primaryErr == nil {
		o.record(primary, "primary")
		return Reply{Text: text, Source: primary, Classified: primary}, nil
	}

	fallback := primary.Other()
	log.Warn().
		Err(primaryErr).
		Str("primary", string(primary)).
		Str("fallback", string(fallback)).
		Msg("primary AI backend failed; falling back")

	text, fallbackErr := o.attempt(ctx, fallback, q)
	if fallbackErr == nil {
		o.record(fallback, "fallback")
		span.SetAttributes(attribute.Bool("chat.fell_back", true))
		return Reply{Text: text, Source: fallback, Classified: primary, FellBack: true}, nil
	}

	o.record(fallback, "failed")
	return Reply{}, &FailureError{
		LastAttempted: fallback,
		Primary:       primaryErr,
		Fallback:      fallbackErr,
	}
}

func (o *Orchestrator) attempt(ctx context.Context, source Source, q Query) (string, error) {
	b, ok := o.backends[source]
	if !ok || b == nil {
		return "", &BackendError{Source: source, Err: fmt.Errorf("backend not configured")}
	}
	text, err := b.Respond(ctx, q)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(text) == "" {
		return "", &BackendError{Source: source, Err: fmt.Errorf("empty response")}
	}
	return text, nil
}

func (o *Orchestrator) record(source Source, outcome string) {
	if o.recorder != nil {
		o.recorder.ChatOutcome(string(source), outcome)
	}
}
