package monitor

import (
	"context"
	"fmt"

	"github.com/nkkko/arrivald/pkg/proto"
)

// Register opens a notification block for device arrival events and installs
// the Monitor as its callback.
//
// Calling Register while already registered is a programming error and
// panics with ErrAlreadyRegistered. On failure no block is left open and the
// subscription slot stays empty.
func (m *Monitor) Register(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.block != nil {
		panic(ErrAlreadyRegistered)
	}

	block, err := m.source.Open(ctx, proto.DeviceArrivalEvent)
	if err != nil {
		m.metrics.RegistrationFailures.WithLabelValues("open").Inc()
		m.logger.Error().Err(err).Msg("Unable to open device arrival notification block")
		return fmt.Errorf("open device arrival block: %w", err)
	}

	if err := m.source.SetCallback(block, m); err != nil {
		m.metrics.RegistrationFailures.WithLabelValues("set_callback").Inc()
		m.logger.Error().Err(err).Str("block_id", block.ID()).Msg("Unable to register for device arrival notification")
		m.source.Close(block)
		return fmt.Errorf("set device arrival callback: %w", err)
	}

	m.block = block
	m.metrics.SubscriptionActive.Set(1)
	m.logger.Info().
		Str("block_id", block.ID()).
		Stringer("event_class", proto.DeviceArrivalEvent).
		Msg("Registered for device arrival notification")

	return nil
}

// Unregister closes the subscription. It is a no-op when nothing is
// registered, so it is safe to call on every shutdown path.
func (m *Monitor) Unregister() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.block == nil {
		return
	}

	m.source.Close(m.block)
	m.logger.Info().Str("block_id", m.block.ID()).Msg("Unregistered device arrival notification")
	m.block = nil
	m.metrics.SubscriptionActive.Set(0)
}
