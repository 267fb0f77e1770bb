package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/nkkko/arrivald/internal/api"
	"github.com/nkkko/arrivald/internal/config"
	"github.com/nkkko/arrivald/internal/devices"
	"github.com/nkkko/arrivald/internal/eventsource"
	"github.com/nkkko/arrivald/internal/metrics"
	"github.com/nkkko/arrivald/internal/monitor"
	"github.com/nkkko/arrivald/internal/resolver"
	"github.com/nkkko/arrivald/internal/storage"
	"github.com/nkkko/arrivald/internal/storage/badger"
	"github.com/nkkko/arrivald/internal/targets"
	"github.com/nkkko/arrivald/internal/telemetry"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// Engine owns every component of the arrival monitor
type Engine struct {
	config      *config.Config
	storage     storage.Storage
	registry    *targets.Registry
	devices     *devices.Store
	hub         *eventsource.Hub
	monitor     *monitor.Monitor
	api         *api.API
	logger      zerolog.Logger
	metrics     *metrics.Metrics
	telemetryFn func(context.Context) error
}

// CreateEngine builds all components from the config. The global logger
// should be configured first; components derive their loggers from it here.
func CreateEngine(cfg *config.Config) (*Engine, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	store, err := badger.NewStorage(cfg.ToStorageConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Badger storage: %w", err)
	}

	devs, err := devices.NewStore(cfg.ToDevicesConfig(), store)
	if err != nil {
		store.Shutdown(context.Background())
		return nil, fmt.Errorf("failed to initialize device store: %w", err)
	}

	registry := targets.NewRegistry(store)
	hub := eventsource.NewHub(cfg.ToHubConfig())
	mon := monitor.New(hub, registry, devs, resolver.New(devs))

	return &Engine{
		config:   cfg,
		storage:  store,
		registry: registry,
		devices:  devs,
		hub:      hub,
		monitor:  mon,
		api:      api.NewAPI(cfg.ToAPIConfig(), registry, devs, hub, mon),
		logger:   log.With().Str("component", "engine").Logger(),
		metrics:  metrics.GetMetrics(),
	}, nil
}

// Start loads persisted targets, registers for arrival notifications and
// serves the API until ctx is cancelled
func (e *Engine) Start(ctx context.Context) error {
	e.logger.Info().Msg("Starting arrivald engine")

	telShutdown, err := telemetry.Setup(ctx, e.config.ToTelemetryConfig())
	if err != nil {
		e.logger.Warn().Err(err).Msg("Failed to set up telemetry, continuing without it")
	} else {
		e.telemetryFn = telShutdown
	}

	if err := e.registry.Load(ctx); err != nil {
		return fmt.Errorf("failed to load targets: %w", err)
	}

	// A failed registration leaves the service running without arrival reports
	if err := e.monitor.Register(ctx); err != nil {
		e.logger.Error().Err(err).Msg("Device arrival monitoring disabled")
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return e.storage.Start(ctx)
	})

	g.Go(func() error {
		return e.api.Start(ctx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("error running engine: %w", err)
	}

	e.logger.Info().Msg("arrivald engine stopped")
	return nil
}

// Registered reports whether arrival notifications are being received
func (e *Engine) Registered() bool {
	return e.monitor.Registered()
}

// Shutdown stops components in dependency order
func (e *Engine) Shutdown(ctx context.Context) error {
	e.logger.Info().Msg("Shutting down arrivald engine")

	// Stop accepting requests first
	if err := e.api.Shutdown(ctx); err != nil {
		e.logger.Error().Err(err).Msg("Failed to shut down API")
	}

	e.monitor.Unregister()

	if err := e.hub.Shutdown(ctx); err != nil {
		e.logger.Error().Err(err).Msg("Failed to shut down notification hub")
	}

	// Storage last; dispatch may read device properties until the hub is down
	if err := e.storage.Shutdown(ctx); err != nil {
		e.logger.Error().Err(err).Msg("Failed to shut down storage")
		return err
	}

	if e.telemetryFn != nil {
		if err := e.telemetryFn(ctx); err != nil {
			e.logger.Error().Err(err).Msg("Failed to shut down telemetry")
		}
	}

	return nil
}
