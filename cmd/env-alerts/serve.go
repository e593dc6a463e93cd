package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	httpapi "github.com/i474232898/city-env-alerts/internal/api/http"
	"github.com/i474232898/city-env-alerts/internal/chat"
	"github.com/i474232898/city-env-alerts/internal/config"
	"github.com/i474232898/city-env-alerts/internal/environment"
	"github.com/i474232898/city-env-alerts/internal/environment/providers"
	"github.com/i474232898/city-env-alerts/internal/geo"
	"github.com/i474232898/city-env-alerts/internal/llm"
	"github.com/i474232898/city-env-alerts/internal/metrics"
	"github.com/i474232898/city-env-alerts/internal/ratelimit"
	"github.com/i474232898/city-env-alerts/internal/scheduler"
	"github.com/i474232898/city-env-alerts/internal/store"
	"github.com/i474232898/city-env-alerts/internal/telemetry"
)

const serviceName = "city-env-alerts"

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	setupLogging(cfg.LogLevel, cfg.LogFormat)

	shutdownTracing, err := telemetry.Init(cmd.Context(), cfg.Telemetry, version)
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(ctx); err != nil {
			log.Warn().Err(err).Msg("tracing shutdown")
		}
	}()

	// Shared HTTP client for outbound upstream calls. Per-call deadlines come
	// from the llm clients.
	httpClient := &http.Client{
		Transport: &http.Transport{
			Proxy:               http.ProxyFromEnvironment,
			DialContext:         (&net.Dialer{Timeout: 10 * time.Second}).DialContext,
			MaxIdleConnsPerHost: 16,
			IdleConnTimeout:     90 * time.Second,
			TLSHandshakeTimeout: 10 * time.Second,
		},
	}

	general := newCompleter(httpClient, "general", cfg.General, cfg, true)
	live := newCompleter(httpClient, "live", cfg.Live, cfg, false)

	cache := store.NewMemoryStore()
	m := metrics.New(cache)

	service := environment.NewService(cache, providers.NewAll(providers.Deps{
		Completer: general,
		Cache:     cache,
		Timeout:   cfg.UpstreamTimeout,
		Recorder:  m,
	}), environment.WithSnapshotTTL(cfg.SnapshotTTL))

	orchestrator := chat.NewOrchestrator(chat.NewLiveBackend(live), chat.NewGeneralBackend(general), m)

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	warm, err := geo.NewResolver(cfg.GeocoderAPIKey).Resolve(ctx, cfg.WarmLocations)
	if err != nil {
		log.Warn().Err(err).Msg("no warm locations resolved")
	}
	sched := scheduler.New(warm, cfg.WarmInterval, service, cache)
	if err := sched.Start(); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}
	defer sched.Stop()

	app := httpapi.NewApp(httpapi.Deps{
		Service:        service,
		Chat:           orchestrator,
		Cache:          cache,
		Limiter:        ratelimit.New(cfg.RateLimitMax, cfg.RateLimitWindow, nil),
		Metrics:        m,
		MetricsHandler: m.Handler(),
		ServiceName:    serviceName,
		Environment:    cfg.Env,
		Production:     cfg.IsProduction(),
		StartedAt:      time.Now(),
		MaxUploadBytes: cfg.ChatMaxUploadBytes,
	})

	go func() {
		log.Info().
			Str("port", cfg.Port).
			Str("env", cfg.Env).
			Str("version", version).
			Int("warm_locations", len(warm)).
			Msg("http server listening")
		if err := app.Listen(":" + cfg.Port); err != nil {
			log.Error().Err(err).Msg("fiber server stopped")
			stop()
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("error during shutdown")
	}
	return nil
}

// newCompleter returns nil when the upstream has no endpoint or key, which
// providers and backends treat as not configured.
func newCompleter(httpClient *http.Client, name string, up config.UpstreamConfig, cfg *config.AppConfig, attachments bool) llm.Completer {
	if !up.Configured() {
		log.Warn().Str("source", name).Msg("AI upstream not configured")
		return nil
	}
	return llm.NewClient(httpClient, llm.Config{
		Name:                name,
		BaseURL:             up.BaseURL,
		APIKey:              up.APIKey,
		Model:               up.Model,
		Timeout:             cfg.UpstreamTimeout,
		MaxRetries:          cfg.UpstreamMaxRetries,
		SupportsAttachments: attachments,
		Temperature:         0.3,
	})
}
