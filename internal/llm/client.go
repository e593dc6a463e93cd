// Package llm talks to OpenAI-compatible chat completion endpoints. It is used
// both for structured JSON generation (environmental providers) and for
// conversational answers (chat backends).
package llm

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("github.com/i474232898/city-env-alerts/internal/llm")

// DefaultTimeout bounds every upstream call.
const DefaultTimeout = 30 * time.Second

var (
	// ErrUpstream is returned when the upstream is unreachable or answers with an error.
	ErrUpstream = errors.New("upstream error")
	// ErrTimeout is returned when the upstream did not answer within the client timeout.
	ErrTimeout = errors.New("upstream timeout")
	// ErrCircuitOpen is returned while the client's circuit breaker rejects calls.
	ErrCircuitOpen = errors.New("circuit breaker open")
	// ErrNotConfigured is returned when the client has no endpoint or API key.
	ErrNotConfigured = errors.New("upstream not configured")
)

// Completer is anything that can turn a Request into generated text.
type Completer interface {
	Complete(ctx context.Context, req Request) (string, error)
}

// Message is one prior conversational turn.
type Message struct {
	Role    string // "user" or "assistant"
	Content string
}

// Attachment is an inline binary file sent alongside the prompt.
type Attachment struct {
	Filename string
	MIMEType string
	Data     []byte
}

// Request is a single completion request.
type Request struct {
	System     string
	History    []Message
	Prompt     string
	JSONOutput bool
	Attachment *Attachment
	MaxTokens  int
	// Scope selects the circuit breaker. Calls in different scopes never trip
	// each other's breaker; the empty scope is a scope of its own.
	Scope string
}

// Config describes one upstream endpoint.
type Config struct {
	Name                string
	BaseURL             string
	APIKey              string
	Model               string
	Timeout             time.Duration
	MaxRetries          int
	SupportsAttachments bool
	Temperature         float64
}

// Client implements Completer for one upstream.
type Client struct {
	name    string
	baseURL string
	apiKey  string
	model   string
	timeout time.Duration
	attach  bool
	temp    float64
	httpCfg HTTPClientConfig

	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker
}

// NewClient creates a Client. A nil httpClient gets a default one.
func NewClient(httpClient *http.Client, cfg Config) *Client {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	return &Client{
		name:    cfg.Name,
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		model:   cfg.Model,
		timeout: timeout,
		attach:  cfg.SupportsAttachments,
		temp:    cfg.Temperature,
		httpCfg: HTTPClientConfig{
			Client: httpClient,
			Backoff: BackoffConfig{
				MaxRetries:      cfg.MaxRetries,
				InitialInterval: 500 * time.Millisecond,
				MaxInterval:     5 * time.Second,
			},
		},
		breakers: make(map[string]*gobreaker.CircuitBreaker),
	}
}

// breaker returns the circuit breaker of scope, creating it on first use.
func (c *Client) breaker(scope string) *gobreaker.CircuitBreaker {
	c.mu.Lock()
	defer c.mu.Unlock()

	cb, ok := c.breakers[scope]
	if !ok {
		name := c.name
		if scope != "" {
			name += "/" + scope
		}
		cb = newBreaker(name)
		c.breakers[scope] = cb
	}
	return cb
}

type contentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageURL `json:"image_url,omitempty"`
}

type imageURL struct {
	URL string `json:"url"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type completionRequest struct {
	Model          string          `json:"model"`
	Messages       []chatMessage   `json:"messages"`
	Temperature    float64         `json:"temperature"`
	MaxTokens      int             `json:"max_tokens,omitempty"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type completionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Complete sends req upstream and returns the generated text. Failures are
// wrapped so that errors.Is matches ErrTimeout, ErrUpstream, ErrCircuitOpen
// or ErrNotConfigured.
func (c *Client) Complete(ctx context.Context, req Request) (string, error) {
	ctx, span := tracer.Start(ctx, "llm.Complete",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("llm.upstream", c.name),
			attribute.String("llm.model", c.model),
			attribute.Bool("llm.attachment", req.Attachment != nil && c.attach),
		),
	)
	defer span.End()

	text, err := c.complete(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "completion failed")
	}
	return text, err
}

func (c *Client) complete(ctx context.Context, req Request) (string, error) {
	if c.baseURL == "" || c.apiKey == "" {
		return "", fmt.Errorf("%s: %w", c.name, ErrNotConfigured)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	body, err := json.Marshal(c.buildRequest(req))
	if err != nil {
		return "", fmt.Errorf("%s: encode request: %w", c.name, err)
	}

	buildRequest := func() (*http.Request, error) {
		r, err := http.NewRequest(http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		r.Header.Set("Content-Type", "application/json")
		r.Header.Set("Authorization", "Bearer "+c.apiKey)
		return r, nil
	}

	start := time.Now()
	resp, err := doRequestWithResilience(ctx, c.httpCfg, c.breaker(req.Scope), buildRequest)
	if err != nil {
		return "", c.classify(ctx, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", c.classify(ctx, err)
	}

	var out completionResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", fmt.Errorf("%s: %w: decode response: %v", c.name, ErrUpstream, err)
	}
	if len(out.Choices) == 0 || strings.TrimSpace(out.Choices[0].Message.Content) == "" {
		return "", fmt.Errorf("%s: %w: empty completion", c.name, ErrUpstream)
	}

	log.Debug().
		Str("upstream", c.name).
		Dur("latency", time.Since(start)).
		Msg("upstream completion ok")

	return out.Choices[0].Message.Content, nil
}

func (c *Client) buildRequest(req Request) completionRequest {
	messages := make([]chatMessage, 0, len(req.History)+2)
	if req.System != "" {
		messages = append(messages, chatMessage{Role: "system", Content: req.System})
	}
	for _, m := range req.History {
		messages = append(messages, chatMessage{Role: m.Role, Content: m.Content})
	}

	if req.Attachment != nil && c.attach && len(req.Attachment.Data) > 0 {
		dataURI := "data:" + req.Attachment.MIMEType + ";base64," + base64.StdEncoding.EncodeToString(req.Attachment.Data)
		messages = append(messages, chatMessage{
			Role: "user",
			Content: []contentPart{
				{Type: "text", Text: req.Prompt},
				{Type: "image_url", ImageURL: &imageURL{URL: dataURI}},
			},
		})
	} else {
		messages = append(messages, chatMessage{Role: "user", Content: req.Prompt})
	}

	out := completionRequest{
		Model:       c.model,
		Messages:    messages,
		Temperature: c.temp,
		MaxTokens:   req.MaxTokens,
	}
	if req.JSONOutput {
		out.ResponseFormat = &responseFormat{Type: "json_object"}
	}
	return out
}

// classify maps transport and breaker failures onto the package sentinels.
func (c *Client) classify(ctx context.Context, err error) error {
	switch {
	case errors.Is(err, ErrCircuitOpen):
		return fmt.Errorf("%s: %w", c.name, err)
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded):
		return fmt.Errorf("%s: %w: %v", c.name, ErrTimeout, err)
	default:
		return fmt.Errorf("%s: %w: %v", c.name, ErrUpstream, err)
	}
}
