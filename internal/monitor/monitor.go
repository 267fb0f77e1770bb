// Package monitor watches for device arrival notifications and reports which
// tracked target fired them.
//
// A Monitor owns exactly one notification subscription. Register opens it on
// the notification source and installs the Monitor as the callback;
// Unregister closes it. Each delivered event is correlated with the target
// registry under the registry lock, and the first started target whose
// provider and event class match has its name resolved and logged.
package monitor

import (
	"context"
	"errors"
	"sync"

	"github.com/nkkko/arrivald/internal/domain"
	"github.com/nkkko/arrivald/internal/metrics"
	"github.com/nkkko/arrivald/pkg/proto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Ensure Monitor can be installed as a notification callback
var _ domain.NotificationHandler = (*Monitor)(nil)

// ErrAlreadyRegistered is the panic value raised when Register is called
// while a subscription is still open
var ErrAlreadyRegistered = errors.New("monitor: device arrival notification already registered")

// NameResolver resolves the display name of a target
type NameResolver interface {
	Resolve(ctx context.Context, t domain.Target) (*proto.ResolvedName, error)
}

// Monitor is the owning context of the device arrival subscription
type Monitor struct {
	source   domain.NotificationSource
	registry domain.TargetRegistry
	lookup   domain.ProviderLookup
	resolver NameResolver

	// mu guards block. Register and Unregister are expected to be
	// serialized by the caller; the mutex only makes Registered race-free.
	mu    sync.Mutex
	block domain.NotificationBlock

	logger  zerolog.Logger
	metrics *metrics.Metrics
}

// New creates a Monitor with an empty subscription slot
func New(source domain.NotificationSource, registry domain.TargetRegistry, lookup domain.ProviderLookup, resolver NameResolver) *Monitor {
	return &Monitor{
		source:   source,
		registry: registry,
		lookup:   lookup,
		resolver: resolver,
		logger:   log.With().Str("component", "monitor").Logger(),
		metrics:  metrics.GetMetrics(),
	}
}

// Registered reports whether the subscription is open
func (m *Monitor) Registered() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.block != nil
}
