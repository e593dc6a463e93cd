package chat

import (
	"context"
	"errors"
	"fmt"

	"github.com/i474232898/city-env-alerts/internal/llm"
	"github.com/i474232898/city-env-alerts/internal/profile"
)

// ErrEmptyMessage is returned when a query has no text.
var ErrEmptyMessage = errors.New("message is empty")

// Query is one chat request as seen by the backends.
type Query struct {
	Message    string
	History    []Turn
	User       profile.UserContext
	Attachment *llm.Attachment
}

// Backend answers a query through one upstream conversational AI.
type Backend interface {
	Source() Source
	Respond(ctx context.Context, q Query) (string, error)
}

// BackendError reports that a backend could not produce an answer.
type BackendError struct {
	Source Source
	Err    error
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("%s backend: %v", e.Source, e.Err)
}

func (e *BackendError) Unwrap() error {
	return e.Err
}

// completerBackend adapts an llm.Completer to Backend.
type completerBackend struct {
	source      Source
	completer   llm.Completer
	attachments bool
	maxTokens   int
}

// NewLiveBackend wraps the search-grounded upstream. Attachments are not
// supported and are dropped.
func NewLiveBackend(c llm.Completer) Backend {
	return &completerBackend{source: SourceLive, completer: c, maxTokens: 1024}
}

// NewGeneralBackend wraps the general upstream, which accepts inline
// attachments.
func NewGeneralBackend(c llm.Completer) Backend {
	return &completerBackend{source: SourceGeneral, completer: c, attachments: true, maxTokens: 2048}
}

func (b *completerBackend) Source() Source {
	return b.source
}

func (b *completerBackend) Respond(ctx context.Context, q Query) (string, error) {
	if b.completer == nil {
		return "", &BackendError{Source: b.source, Err: llm.ErrNotConfigured}
	}

	req := llm.Request{
		System:    SystemInstruction(q.History, q.User),
		Prompt:    q.Message,
		MaxTokens: b.maxTokens,
		Scope:     "chat",
	}
	if b.attachments {
		req.Attachment = q.Attachment
	}

	text, err := b.completer.Complete(ctx, req)
	if err != nil {
		return "", &BackendError{Source: b.source, Err: err}
	}
	return text, nil
}
