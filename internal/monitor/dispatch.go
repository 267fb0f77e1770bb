package monitor

import (
	"context"
	"time"

	"github.com/nkkko/arrivald/internal/telemetry"
	"github.com/nkkko/arrivald/pkg/proto"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Dispatch outcomes, used as metric labels
const (
	outcomeArrival       = "arrival"
	outcomeResolveFailed = "resolve_failed"
	outcomeNoMatch       = "no_match"
)

// HandleNotification is the callback invoked by the notification source.
// It blocks until the registry lock is available and holds it for the whole
// dispatch, including name resolution. rec is not retained.
func (m *Monitor) HandleNotification(ctx context.Context, rec *proto.EventRecord) {
	if rec == nil {
		return
	}

	start := time.Now()
	ctx, span := telemetry.StartSpan(ctx, "monitor.dispatch", trace.WithAttributes(
		attribute.Int64("event.provider_id", int64(rec.Header.ProviderId)),
		attribute.String("event.class", rec.Header.Guid.String()),
	))
	defer span.End()

	outcome := m.dispatch(ctx, rec)

	span.SetAttributes(attribute.String("dispatch.outcome", outcome))
	m.metrics.DispatchTotal.WithLabelValues(outcome).Inc()
	m.metrics.DispatchDuration.Observe(time.Since(start).Seconds())
}

func (m *Monitor) dispatch(ctx context.Context, rec *proto.EventRecord) string {
	waitStart := time.Now()
	m.registry.Lock()
	defer m.registry.Unlock()
	m.metrics.RegistryLockWait.Observe(time.Since(waitStart).Seconds())

	result := Scan(rec, m.registry.Targets(), m.lookup)

	for _, v := range result.Visits {
		switch v.Verdict {
		case VerdictNotStarted:
			m.logger.Debug().
				Str("target_id", v.Target.ID()).
				Stringer("state", v.Target.State()).
				Msg("Target not in an opened state")
		case VerdictUnknownEvent:
			m.logger.Info().
				Str("target_id", v.Target.ID()).
				Uint32("provider_id", uint32(rec.Header.ProviderId)).
				Stringer("event_class", rec.Header.Guid).
				Msg("Unknown event")
		}
	}

	if result.Match == nil {
		return outcomeNoMatch
	}

	name, err := m.resolver.Resolve(ctx, result.Match)
	if err != nil {
		telemetry.MarkSpanError(ctx, err)
		m.logger.Error().
			Err(err).
			Str("target_id", result.Match.ID()).
			Msg("Failed to resolve target name")
		return outcomeResolveFailed
	}
	defer name.Release()

	telemetry.AddSpanEvent(ctx, "device.arrival", attribute.String("target.name", name.String()))
	m.logger.Info().
		Str("target_id", result.Match.ID()).
		Str("name", name.String()).
		Msgf("%s fired a device arrival event", name.String())

	return outcomeArrival
}
