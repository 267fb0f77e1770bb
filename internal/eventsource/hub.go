// Package eventsource is an in-process notification source. Blocks are opened
// per event class and fired events are delivered to them in open order.
package eventsource

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/nkkko/arrivald/internal/domain"
	"github.com/nkkko/arrivald/internal/metrics"
	"github.com/nkkko/arrivald/pkg/proto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"google.golang.org/protobuf/types/known/timestamppb"
)

// Ensure Hub implements domain.NotificationSource
var _ domain.NotificationSource = (*Hub)(nil)

// block is an open notification channel for one event class
type block struct {
	id      string
	class   uuid.UUID
	handler domain.NotificationHandler
}

func (b *block) ID() string       { return b.id }
func (b *block) Class() uuid.UUID { return b.class }

// Config contains hub configuration
type Config struct {
	// Maximum number of simultaneously open blocks
	MaxBlocks int
}

// DefaultConfig returns a default hub configuration
func DefaultConfig() Config {
	return Config{
		MaxBlocks: 64,
	}
}

// Hub is an in-process notification source. Providers fire events into it
// and it delivers them synchronously to every block opened for the event's
// class.
type Hub struct {
	config  Config
	blocks  map[string]*block
	order   []string // block ids in open order, for stable delivery
	mu      sync.RWMutex
	logger  zerolog.Logger
	metrics *metrics.Metrics
}

// NewHub creates a new notification hub
func NewHub(config ...Config) *Hub {
	cfg := DefaultConfig()
	if len(config) > 0 {
		cfg = config[0]
	}
	if cfg.MaxBlocks <= 0 {
		cfg.MaxBlocks = DefaultConfig().MaxBlocks
	}

	return &Hub{
		config:  cfg,
		blocks:  make(map[string]*block),
		logger:  log.With().Str("component", "hub").Logger(),
		metrics: metrics.GetMetrics(),
	}
}

// Open opens a block for the given event class
func (h *Hub) Open(ctx context.Context, class uuid.UUID) (domain.NotificationBlock, error) {
	if class == uuid.Nil {
		return nil, domain.NewStatusError(domain.StatusInvalidParameter, "open", "nil event class")
	}
	if err := ctx.Err(); err != nil {
		return nil, domain.WrapStatus(domain.StatusUnsuccessful, "open", err)
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if len(h.blocks) >= h.config.MaxBlocks {
		return nil, domain.NewStatusError(domain.StatusInsufficientResources, "open",
			"block limit of %d reached", h.config.MaxBlocks)
	}

	b := &block{id: generateID(), class: class}
	h.blocks[b.id] = b
	h.order = append(h.order, b.id)
	h.metrics.HubBlocksOpen.Inc()

	h.logger.Debug().Str("block_id", b.id).Stringer("event_class", class).Msg("Opened notification block")
	return b, nil
}

// SetCallback installs the handler for a block, replacing any previous one
func (h *Hub) SetCallback(nb domain.NotificationBlock, handler domain.NotificationHandler) error {
	if nb == nil || handler == nil {
		return domain.NewStatusError(domain.StatusInvalidParameter, "set_callback", "nil block or handler")
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	b, ok := h.blocks[nb.ID()]
	if !ok {
		return domain.NewStatusError(domain.StatusNotFound, "set_callback", "block %s is not open", nb.ID())
	}
	b.handler = handler
	return nil
}

// Close releases a block. Closing an unknown or already closed block is a no-op.
func (h *Hub) Close(nb domain.NotificationBlock) {
	if nb == nil {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.blocks[nb.ID()]; !ok {
		return
	}
	delete(h.blocks, nb.ID())
	for i, id := range h.order {
		if id == nb.ID() {
			h.order = append(h.order[:i], h.order[i+1:]...)
			break
		}
	}
	h.metrics.HubBlocksOpen.Dec()

	h.logger.Debug().Str("block_id", nb.ID()).Msg("Closed notification block")
}

// Fire delivers rec to every handler whose block is open for the record's
// event class and returns the number of handlers invoked. Handlers run on
// the calling goroutine, one after another, outside the hub lock.
func (h *Hub) Fire(ctx context.Context, rec *proto.EventRecord) int {
	if rec == nil {
		return 0
	}
	if rec.Header.Timestamp == nil {
		rec.Header.Timestamp = timestamppb.Now()
	}

	// Copy the handler list to avoid holding the lock during delivery
	h.mu.RLock()
	handlers := make([]domain.NotificationHandler, 0, len(h.order))
	for _, id := range h.order {
		b := h.blocks[id]
		if b.class == rec.Header.Guid && b.handler != nil {
			handlers = append(handlers, b.handler)
		}
	}
	h.mu.RUnlock()

	for _, handler := range handlers {
		handler.HandleNotification(ctx, rec)
	}

	delivered := "false"
	if len(handlers) > 0 {
		delivered = "true"
	}
	h.metrics.HubEventsFired.WithLabelValues(delivered).Inc()
	h.metrics.HubEventsDelivered.Add(float64(len(handlers)))

	h.logger.Debug().
		Uint32("provider_id", uint32(rec.Header.ProviderId)).
		Stringer("event_class", rec.Header.Guid).
		Int("handlers", len(handlers)).
		Msg("Fired event")

	return len(handlers)
}

// OpenBlocks returns the number of open blocks
func (h *Hub) OpenBlocks() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.blocks)
}

// Shutdown closes all open blocks
func (h *Hub) Shutdown(ctx context.Context) error {
	h.logger.Info().Msg("Shutting down notification hub")

	h.mu.Lock()
	defer h.mu.Unlock()

	h.metrics.HubBlocksOpen.Sub(float64(len(h.blocks)))
	h.blocks = make(map[string]*block)
	h.order = nil

	return nil
}

// generateID returns a new block ID; replaced in tests
var generateID = func() string {
	return uuid.NewString()
}
