package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"

	"github.com/i474232898/city-env-alerts/internal/chat"
	"github.com/i474232898/city-env-alerts/internal/environment"
	"github.com/i474232898/city-env-alerts/internal/profile"
	"github.com/i474232898/city-env-alerts/internal/store"
)

var validate = validator.New()

// Aggregator builds environmental snapshots.
type Aggregator interface {
	Aggregate(ctx context.Context, loc environment.Location, uc profile.UserContext) (environment.Snapshot, error)
}

// Responder answers chat queries.
type Responder interface {
	Respond(ctx context.Context, q chat.Query) (chat.Reply, error)
}

// CacheAdmin is the cache introspection surface.
type CacheAdmin interface {
	Stats() store.Stats
	Flush()
}

// Limiter admits or rejects callers by identity.
type Limiter interface {
	Allow(identity string) bool
	RetryAfter(identity string) time.Duration
	Remaining(identity string) int
	Limit() int
}

// Observer receives request metrics.
type Observer interface {
	RateLimited(route string)
	ObserveRequest(route, status string, seconds float64)
}

// Deps are the collaborators of the HTTP layer.
type Deps struct {
	Service Aggregator
	Chat    Responder
	Cache   CacheAdmin
	Limiter Limiter

	// Optional.
	Metrics        Observer
	MetricsHandler http.Handler

	ServiceName    string
	Environment    string
	Production     bool
	StartedAt      time.Time
	MaxUploadBytes int64
}

// RegisterRoutes wires the HTTP handlers into the Fiber app.
func RegisterRoutes(app *fiber.App, deps Deps) {
	limited := rateLimit(deps.Limiter, deps.Metrics)

	app.Post("/environmental-data", limited, environmentalDataHandler(deps.Service))
	app.Post("/chat/send", limited, chatHandler(deps.Chat, deps.MaxUploadBytes))

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":      "ok",
			"service":     deps.ServiceName,
			"environment": deps.Environment,
			"uptime":      time.Since(deps.StartedAt).Round(time.Second).String(),
		})
	})

	if deps.MetricsHandler != nil {
		app.Get("/metrics", adaptor.HTTPHandler(deps.MetricsHandler))
	}

	// Introspection is not mounted in production; those paths 404.
	if !deps.Production && deps.Cache != nil {
		app.Get("/cache/stats", func(c *fiber.Ctx) error {
			return c.JSON(deps.Cache.Stats())
		})
		app.Post("/cache/flush", func(c *fiber.Ctx) error {
			deps.Cache.Flush()
			return c.JSON(fiber.Map{"flushed": true})
		})
	}
}
