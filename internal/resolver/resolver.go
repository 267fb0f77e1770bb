// Package resolver turns a tracked target into a human-readable name.
//
// The friendly name is preferred. When it cannot be read for any reason other
// than resource exhaustion, the device description is used instead.
package resolver

import (
	"context"

	"github.com/nkkko/arrivald/internal/domain"
	"github.com/nkkko/arrivald/internal/metrics"
	"github.com/nkkko/arrivald/pkg/proto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Resolver resolves display names through a PropertyQuerier
type Resolver struct {
	querier domain.PropertyQuerier
	logger  zerolog.Logger
	metrics *metrics.Metrics
}

// New creates a Resolver
func New(q domain.PropertyQuerier) *Resolver {
	return &Resolver{
		querier: q,
		logger:  log.With().Str("component", "resolver").Logger(),
		metrics: metrics.GetMetrics(),
	}
}

// Resolve returns the display name of t. The caller owns the returned
// buffer and must Release it. On error no buffer is returned; logging the
// failure is left to the caller.
func (r *Resolver) Resolve(ctx context.Context, t domain.Target) (*proto.ResolvedName, error) {
	name, err := r.query(ctx, t, proto.PropertyKind_FRIENDLY_NAME)
	if err != nil && !domain.IsInsufficientResources(err) {
		r.logger.Debug().
			Err(err).
			Str("target_id", t.ID()).
			Msg("Friendly name unavailable, falling back to device description")
		name, err = r.query(ctx, t, proto.PropertyKind_DEVICE_DESCRIPTION)
	}
	if err != nil {
		return nil, err
	}
	return name, nil
}

func (r *Resolver) query(ctx context.Context, t domain.Target, kind proto.PropertyKind) (*proto.ResolvedName, error) {
	name, err := r.querier.QueryProperty(ctx, t, kind)
	if err != nil {
		r.metrics.ResolveTotal.WithLabelValues(kind.String(), string(domain.StatusOf(err))).Inc()
		return nil, err
	}
	r.metrics.ResolveTotal.WithLabelValues(kind.String(), "ok").Inc()
	return name, nil
}
