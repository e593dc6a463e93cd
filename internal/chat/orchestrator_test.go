package chat

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i474232898/city-env-alerts/internal/llm"
)

type fakeBackend struct {
	source Source
	reply  string
	err    error

	mu    sync.Mutex
	calls int
	last  Query
}

func (f *fakeBackend) Source() Source { return f.source }

func (f *fakeBackend) Respond(ctx context.Context, q Query) (string, error) {
	f.mu.Lock()
	f.calls++
	f.last = q
	f.mu.Unlock()
	return f.reply, f.err
}

type chatEvents struct {
	events []string
}

func (c *chatEvents) ChatOutcome(source, outcome string) {
	c.events = append(c.events, source+":"+outcome)
}

const liveQuery = "What's the weather like today in Indianapolis?"
const generalQuery = "Explain how property tax assessments work"

func TestRespond_PrimarySucceeds(t *testing.T) {
	live := &fakeBackend{source: SourceLive, reply: "sunny"}
	general := &fakeBackend{source: SourceGeneral, reply: "unused"}
	o := NewOrchestrator(live, general, nil)

	reply, err := o.Respond(context.Background(), Query{Message: liveQuery})
	require.NoError(t, err)
	assert.Equal(t, Reply{Text: "sunny", Source: SourceLive, Classified: SourceLive}, reply)
	assert.Equal(t, 0, general.calls)
}

func TestRespond_FallbackTaggedWithFallbackIdentity(t *testing.T) {
	live := &fakeBackend{source: SourceLive, err: errors.New("boom")}
	general := &fakeBackend{source: SourceGeneral, reply: "ok"}
	events := &chatEvents{}
	o := NewOrchestrator(live, general, events)

	reply, err := o.Respond(context.Background(), Query{Message: liveQuery})
	require.NoError(t, err)
	assert.Equal(t, "ok", reply.Text)
	assert.Equal(t, SourceGeneral, reply.Source, "must report the backend that answered")
	assert.Equal(t, SourceLive, reply.Classified)
	assert.True(t, reply.FellBack)
	assert.Equal(t, 1, live.calls)
	assert.Equal(t, 1, general.calls)
	assert.Equal(t, []string{"general:fallback"}, events.events)
}

func TestRespond_GeneralPrimaryFallsBackToLive(t *testing.T) {
	live := &fakeBackend{source: SourceLive, reply: "ok"}
	general := &fakeBackend{source: SourceGeneral, err: llm.ErrTimeout}
	o := NewOrchestrator(live, general, nil)

	reply, err := o.Respond(context.Background(), Query{Message: generalQuery})
	require.NoError(t, err)
	assert.Equal(t, SourceLive, reply.Source)
	assert.Equal(t, SourceGeneral, reply.Classified)
}

func TestRespond_BothFail(t *testing.T) {
	live := &fakeBackend{source: SourceLive, err: errors.New("live down")}
	general := &fakeBackend{source: SourceGeneral, err: errors.New("general down")}
	o := NewOrchestrator(live, general, nil)

	_, err := o.Respond(context.Background(), Query{Message: generalQuery})
	require.Error(t, err)

	var failure *FailureError
	require.ErrorAs(t, err, &failure)
	assert.Equal(t, SourceLive, failure.LastAttempted)
	assert.EqualError(t, failure.Primary, "general down")
	assert.Equal(t, 1, live.calls, "exactly one fallback hop")
	assert.Equal(t, 1, general.calls, "no retry of the primary")
}

func TestRespond_EmptyAnswerCountsAsFailure(t *testing.T) {
	live := &fakeBackend{source: SourceLive, reply: "   "}
	general := &fakeBackend{source: SourceGeneral, reply: "ok"}
	o := NewOrchestrator(live, general, nil)

	reply, err := o.Respond(context.Background(), Query{Message: liveQuery})
	require.NoError(t, err)
	assert.Equal(t, SourceGeneral, reply.Source)
}

func TestRespond_EmptyMessage(t *testing.T) {
	o := NewOrchestrator(&fakeBackend{source: SourceLive}, &fakeBackend{source: SourceGeneral}, nil)
	_, err := o.Respond(context.Background(), Query{Message: "  "})
	assert.ErrorIs(t, err, ErrEmptyMessage)
}

type captureCompleter struct {
	req llm.Request
	err error
}

func (c *captureCompleter) Complete(ctx context.Context, req llm.Request) (string, error) {
	c.req = req
	return "answer", c.err
}

func TestBackends_AttachmentHandling(t *testing.T) {
	att := &llm.Attachment{MIMEType: "image/jpeg", Data: []byte{0xff, 0xd8}}
	q := Query{Message: "what is in this photo", Attachment: att, History: []Turn{{Role: RoleUser, Text: "hi"}}}

	liveUp := &captureCompleter{}
	_, err := NewLiveBackend(liveUp).Respond(context.Background(), q)
	require.NoError(t, err)
	assert.Nil(t, liveUp.req.Attachment, "live backend ignores attachments")
	assert.Contains(t, liveUp.req.System, "User: hi")

	generalUp := &captureCompleter{}
	_, err = NewGeneralBackend(generalUp).Respond(context.Background(), q)
	require.NoError(t, err)
	assert.Same(t, att, generalUp.req.Attachment)
}

func TestBackends_ErrorsAreTyped(t *testing.T) {
	_, err := NewLiveBackend(&captureCompleter{err: llm.ErrUpstream}).Respond(context.Background(), Query{Message: "x"})

	var be *BackendError
	require.ErrorAs(t, err, &be)
	assert.Equal(t, SourceLive, be.Source)
	assert.ErrorIs(t, err, llm.ErrUpstream)

	_, err = NewGeneralBackend(nil).Respond(context.Background(), Query{Message: "x"})
	assert.ErrorIs(t, err, llm.ErrNotConfigured)
}
