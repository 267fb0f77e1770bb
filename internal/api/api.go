package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/nkkko/arrivald/internal/logging"
	"github.com/nkkko/arrivald/internal/metrics"
	"github.com/nkkko/arrivald/internal/telemetry"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Config contains API configuration
type Config struct {
	// Server address
	Addr string

	// Largest accepted request body in bytes
	MaxBodySize int64

	// Timeouts
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration

	// Allowed CORS origins
	CORSOrigins []string
}

// DefaultConfig returns a default configuration
func DefaultConfig() Config {
	return Config{
		Addr:         ":8080",
		MaxBodySize:  64 * 1024,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
		CORSOrigins:  []string{"*"},
	}
}

// API serves the HTTP control surface
type API struct {
	config       Config
	router       chi.Router
	server       *http.Server
	targets      TargetManager
	devices      DeviceManager
	events       EventFirer
	subscription SubscriptionStatus
	logger       zerolog.Logger
	metrics      *metrics.Metrics
}

// NewAPI creates a new API instance
func NewAPI(config Config, targets TargetManager, devices DeviceManager, events EventFirer, subscription SubscriptionStatus) *API {
	defaults := DefaultConfig()
	if config.Addr == "" {
		config.Addr = defaults.Addr
	}
	if config.MaxBodySize <= 0 {
		config.MaxBodySize = defaults.MaxBodySize
	}
	if config.ReadTimeout == 0 {
		config.ReadTimeout = defaults.ReadTimeout
	}
	if config.WriteTimeout == 0 {
		config.WriteTimeout = defaults.WriteTimeout
	}
	if config.IdleTimeout == 0 {
		config.IdleTimeout = defaults.IdleTimeout
	}
	if len(config.CORSOrigins) == 0 {
		config.CORSOrigins = defaults.CORSOrigins
	}

	a := &API{
		config:       config,
		targets:      targets,
		devices:      devices,
		events:       events,
		subscription: subscription,
		logger:       log.With().Str("component", "api").Logger(),
		metrics:      metrics.GetMetrics(),
	}
	a.router = a.newRouter()
	return a
}

// Handler returns the HTTP handler serving all routes
func (a *API) Handler() http.Handler {
	return a.router
}

// Start runs the HTTP server until ctx is cancelled or the listener fails
func (a *API) Start(ctx context.Context) error {
	a.server = &http.Server{
		Addr:         a.config.Addr,
		Handler:      a.router,
		ReadTimeout:  a.config.ReadTimeout,
		WriteTimeout: a.config.WriteTimeout,
		IdleTimeout:  a.config.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	a.logger.Info().Str("addr", a.config.Addr).Msg("API server started")

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		return nil
	}
}

// Shutdown gracefully stops the HTTP server
func (a *API) Shutdown(ctx context.Context) error {
	if a.server == nil {
		return nil
	}
	a.logger.Info().Msg("Shutting down API server")
	return a.server.Shutdown(ctx)
}

func (a *API) newRouter() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(telemetry.HTTPMiddleware())
	r.Use(logging.HTTPMiddleware())
	r.Use(a.metricsMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: a.config.CORSOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
		MaxAge:         300,
	}))
	r.Use(a.limitBody)

	r.Get("/healthz", a.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/subscription", a.handleGetSubscription)

		r.Route("/targets", func(r chi.Router) {
			r.Get("/", a.handleListTargets)
			r.Post("/", a.handleAddTarget)
			r.Get("/{id}", a.handleGetTarget)
			r.Delete("/{id}", a.handleRemoveTarget)
			r.Post("/{id}/start", a.handleStartTarget)
			r.Post("/{id}/stop", a.handleStopTarget)
		})

		r.Route("/devices", func(r chi.Router) {
			r.Get("/", a.handleListDevices)
			r.Put("/{id}", a.handlePutDevice)
			r.Get("/{id}", a.handleGetDevice)
			r.Delete("/{id}", a.handleDeleteDevice)
		})

		r.Post("/events", a.handleFireEvent)
	})

	return r
}
