package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(url string, attach bool) *Client {
	return NewClient(nil, Config{
		Name:                "test",
		BaseURL:             url,
		APIKey:              "secret",
		Model:               "test-model",
		Timeout:             2 * time.Second,
		SupportsAttachments: attach,
	})
}

func completion(text string) map[string]any {
	return map[string]any{
		"choices": []map[string]any{
			{"message": map[string]any{"content": text}},
		},
	}
}

func TestClient_CompleteSendsBearerAndJSONFormat(t *testing.T) {
	var got completionRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_ = json.NewEncoder(w).Encode(completion(`{"aqi":12}`))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL, false)
	out, err := c.Complete(context.Background(), Request{
		System:     "be terse",
		History:    []Message{{Role: "user", Content: "hi"}},
		Prompt:     "air quality please",
		JSONOutput: true,
	})
	require.NoError(t, err)
	assert.Equal(t, `{"aqi":12}`, out)

	assert.Equal(t, "test-model", got.Model)
	require.NotNil(t, got.ResponseFormat)
	assert.Equal(t, "json_object", got.ResponseFormat.Type)
	require.Len(t, got.Messages, 3)
	assert.Equal(t, "system", got.Messages[0].Role)
	assert.Equal(t, "air quality please", got.Messages[2].Content)
}

func TestClient_AttachmentEncoding(t *testing.T) {
	att := &Attachment{MIMEType: "image/png", Data: []byte("png-bytes")}

	withAttach := newTestClient("http://example.invalid", true).buildRequest(Request{Prompt: "what is this", Attachment: att})
	last := withAttach.Messages[len(withAttach.Messages)-1]
	parts, ok := last.Content.([]contentPart)
	require.True(t, ok, "attachment-capable client sends multipart content")
	require.Len(t, parts, 2)
	assert.Equal(t, "data:image/png;base64,cG5nLWJ5dGVz", parts[1].ImageURL.URL)

	without := newTestClient("http://example.invalid", false).buildRequest(Request{Prompt: "what is this", Attachment: att})
	last = without.Messages[len(without.Messages)-1]
	assert.Equal(t, "what is this", last.Content, "attachment is dropped when unsupported")
}

func TestClient_ErrorClassification(t *testing.T) {
	t.Run("server error", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		}))
		defer srv.Close()

		_, err := newTestClient(srv.URL, false).Complete(context.Background(), Request{Prompt: "x"})
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrUpstream)
	})

	t.Run("timeout", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-r.Context().Done():
			case <-time.After(2 * time.Second):
			}
		}))
		defer srv.Close()

		c := NewClient(nil, Config{Name: "slow", BaseURL: srv.URL, APIKey: "k", Timeout: 50 * time.Millisecond})
		_, err := c.Complete(context.Background(), Request{Prompt: "x"})
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrTimeout)
	})

	t.Run("empty completion", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_ = json.NewEncoder(w).Encode(map[string]any{"choices": []any{}})
		}))
		defer srv.Close()

		_, err := newTestClient(srv.URL, false).Complete(context.Background(), Request{Prompt: "x"})
		assert.ErrorIs(t, err, ErrUpstream)
	})

	t.Run("not configured", func(t *testing.T) {
		c := NewClient(nil, Config{Name: "none"})
		_, err := c.Complete(context.Background(), Request{Prompt: "x"})
		assert.ErrorIs(t, err, ErrNotConfigured)
	})
}

func TestClient_CircuitOpensAfterConsecutiveFailures(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := newTestClient(srv.URL, false)
	for i := 0; i < 5; i++ {
		_, err := c.Complete(context.Background(), Request{Prompt: "x"})
		require.ErrorIs(t, err, ErrUpstream)
	}

	_, err := c.Complete(context.Background(), Request{Prompt: "x"})
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.Equal(t, int32(5), calls.Load(), "open circuit must not reach the upstream")
}

func TestClient_RateLimitedUpstreamDoesNotOpenCircuit(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) <= 10 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_ = json.NewEncoder(w).Encode(completion("ok"))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL, false)
	for i := 0; i < 10; i++ {
		_, err := c.Complete(context.Background(), Request{Prompt: "x", Scope: "weather"})
		require.ErrorIs(t, err, ErrUpstream)
		require.NotErrorIs(t, err, ErrCircuitOpen)
	}

	text, err := c.Complete(context.Background(), Request{Prompt: "x", Scope: "weather"})
	require.NoError(t, err)
	assert.Equal(t, "ok", text)
	assert.Equal(t, int32(11), calls.Load())
}

func TestClient_BreakersAreScoped(t *testing.T) {
	var failing atomic.Bool
	failing.Store(true)
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if failing.Load() {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_ = json.NewEncoder(w).Encode(completion("ok"))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL, false)
	for i := 0; i < breakerTripAfter; i++ {
		_, err := c.Complete(context.Background(), Request{Prompt: "x", Scope: "weather"})
		require.ErrorIs(t, err, ErrUpstream)
	}
	failing.Store(false)

	_, err := c.Complete(context.Background(), Request{Prompt: "x", Scope: "weather"})
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.Equal(t, int32(breakerTripAfter), calls.Load())

	text, err := c.Complete(context.Background(), Request{Prompt: "x", Scope: "chat"})
	require.NoError(t, err)
	assert.Equal(t, "ok", text)
	assert.Equal(t, int32(breakerTripAfter+1), calls.Load())
}

func TestCountsAsHealthy(t *testing.T) {
	assert.True(t, countsAsHealthy(nil))
	assert.True(t, countsAsHealthy(statusError(http.StatusTooManyRequests)))
	assert.True(t, countsAsHealthy(statusError(http.StatusBadRequest)))
	assert.True(t, countsAsHealthy(context.Canceled))
	assert.False(t, countsAsHealthy(statusError(http.StatusServiceUnavailable)))
	assert.False(t, countsAsHealthy(context.DeadlineExceeded))
}
