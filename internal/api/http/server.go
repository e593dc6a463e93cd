package httpapi

import (
	"errors"
	"math"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// NewApp builds the Fiber app with the central error handler, global
// middleware and every route.
func NewApp(deps Deps) *fiber.App {
	bodyLimit := 4 * 1024 * 1024
	if deps.MaxUploadBytes > 0 {
		// multipart framing and the other form fields need headroom
		bodyLimit = int(deps.MaxUploadBytes) + 1<<20
	}

	app := fiber.New(fiber.Config{
		AppName:               deps.ServiceName,
		DisableStartupMessage: true,
		BodyLimit:             bodyLimit,
		ReadTimeout:           15 * time.Second,
		// two sequential upstream timeouts on the chat path
		WriteTimeout: 75 * time.Second,
		ErrorHandler: NewErrorHandler(deps.Production),
	})

	app.Use(requestid.New(requestid.Config{Generator: uuid.NewString}))
	app.Use(requestLogger(deps.Metrics))
	app.Use(recover.New())
	app.Use(cors.New())

	RegisterRoutes(app, deps)
	return app
}

// NewErrorHandler maps *fiber.Error to its code and everything else to a 500.
// In production the 500 body never carries internal detail.
func NewErrorHandler(production bool) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		code := fiber.StatusInternalServerError
		message := err.Error()

		var fe *fiber.Error
		if errors.As(err, &fe) {
			code = fe.Code
			message = fe.Message
		}

		if code >= fiber.StatusInternalServerError {
			log.Error().
				Err(err).
				Str("request_id", c.GetRespHeader(fiber.HeaderXRequestID)).
				Str("method", c.Method()).
				Str("path", c.Path()).
				Msg("request failed")
			if production {
				message = "internal server error"
			}
		}

		return c.Status(code).JSON(fiber.Map{
			"error":   true,
			"message": message,
		})
	}
}

// requestLogger emits one line per request. Errors are rendered here so the
// logged status matches what the client receives.
func requestLogger(obs Observer) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()

		if err := c.Next(); err != nil {
			if herr := c.App().ErrorHandler(c, err); herr != nil {
				_ = c.SendStatus(fiber.StatusInternalServerError)
			}
		}

		latency := time.Since(start)
		status := c.Response().StatusCode()
		route := c.Route().Path

		ev := log.Info()
		if status >= fiber.StatusInternalServerError {
			ev = log.Warn()
		}
		ev.Str("request_id", c.GetRespHeader(fiber.HeaderXRequestID)).
			Str("method", c.Method()).
			Str("path", c.Path()).
			Int("status", status).
			Dur("latency", latency).
			Str("ip", c.IP()).
			Msg("request")

		if obs != nil {
			obs.ObserveRequest(route, strconv.Itoa(status), latency.Seconds())
		}
		return nil
	}
}

// rateLimit rejects callers over their budget with 429, a Retry-After header
// and the same hint in seconds in the body.
func rateLimit(limiter Limiter, obs Observer) fiber.Handler {
	return func(c *fiber.Ctx) error {
		identity := c.IP()
		c.Set("X-RateLimit-Limit", strconv.Itoa(limiter.Limit()))
		if limiter.Allow(identity) {
			c.Set("X-RateLimit-Remaining", strconv.Itoa(limiter.Remaining(identity)))
			return c.Next()
		}
		c.Set("X-RateLimit-Remaining", "0")

		retryAfter := int(math.Ceil(limiter.RetryAfter(identity).Seconds()))
		if retryAfter < 1 {
			retryAfter = 1
		}
		if obs != nil {
			obs.RateLimited(c.Path())
		}
		log.Warn().
			Str("request_id", c.GetRespHeader(fiber.HeaderXRequestID)).
			Str("ip", identity).
			Str("path", c.Path()).
			Int("retry_after", retryAfter).
			Msg("rate limit exceeded")

		c.Set(fiber.HeaderRetryAfter, strconv.Itoa(retryAfter))
		return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
			"error":      true,
			"message":    "rate limit exceeded, please try again later",
			"retryAfter": retryAfter,
		})
	}
}
