// Package targets tracks the device targets the monitor scans when an
// arrival event fires. The registry lock is shared with the dispatcher.
package targets

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

// Ensure Registry implements domain.TargetRegistry
var _ domain.TargetRegistry = (*Registry)(nil)

// generateID returns a new target ID; replaced in tests
var generateID = func() string {
	return uuid.NewString()
}

// Store is the persistence the registry needs
type Store interface {
	NextSequence(ctx context.Context) (uint64, error)
	PutTarget(ctx context.Context, rec *proto.TargetRecord) error
	DeleteTarget(ctx context.Context, id string) error
	ListTargets(ctx context.Context) ([]*proto.TargetRecord, error)
}

// Target is a tracked target. Its fields only change under the registry lock.
type Target struct {
	rec proto.TargetRecord
}

// Ensure Target implements domain.Target
var _ domain.Target = (*Target)(nil)

// ID returns the target ID
func (t *Target) ID() string { return t.rec.Id }

// DeviceID returns the device the target is opened on
func (t *Target) DeviceID() string { return t.rec.DeviceId }

// State returns the lifecycle state
func (t *Target) State() proto.TargetState { return t.rec.State }

func (t *Target) snapshot() *proto.TargetRecord {
	rec := t.rec
	return &rec
}

// Registry is the ordered collection of tracked targets
type Registry struct {
	mu      sync.Mutex
	targets []*Target
	store   Store
	logger  zerolog.Logger
	metrics *metrics.Metrics
}

// NewRegistry creates an empty registry backed by store
func NewRegistry(store Store) *Registry {
	return &Registry{
		store:   store,
		logger:  log.With().Str("component", "targets").Logger(),
		metrics: metrics.GetMetrics(),
	}
}

// Lock acquires the registry lock
func (r *Registry) Lock() { r.mu.Lock() }

// Unlock releases the registry lock
func (r *Registry) Unlock() { r.mu.Unlock() }

// Targets returns the targets in insertion order. The lock must be held.
func (r *Registry) Targets() []domain.Target {
	out := make([]domain.Target, len(r.targets))
	for i, t := range r.targets {
		out[i] = t
	}
	return out
}

// Load replaces the collection with the persisted targets
func (r *Registry) Load(ctx context.Context) error {
	recs, err := r.store.ListTargets(ctx)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.targets = r.targets[:0]
	for _, rec := range recs {
		r.targets = append(r.targets, &Target{rec: *rec})
	}
	r.updateGauges()

	r.logger.Info().Int("count", len(r.targets)).Msg("Loaded targets")
	return nil
}

// Add creates a target for deviceID in the Created state
func (r *Registry) Add(ctx context.Context, deviceID string) (*proto.TargetRecord, error) {
	if deviceID == "" {
		return nil, domain.NewStatusError(domain.StatusInvalidParameter, "add_target", "device id is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	// Sequence is taken under the lock so insertion order matches Seq
	seq, err := r.store.NextSequence(ctx)
	if err != nil {
		return nil, err
	}

	now := timestamppb.Now()
	t := &Target{rec: proto.TargetRecord{
		Id:        generateID(),
		DeviceId:  deviceID,
		State:     proto.TargetState_CREATED,
		Seq:       seq,
		CreatedAt: now,
		UpdatedAt: now,
	}}

	if err := r.store.PutTarget(ctx, t.snapshot()); err != nil {
		return nil, err
	}
	r.targets = append(r.targets, t)
	r.updateGauges()

	r.logger.Debug().
		Str("target_id", t.rec.Id).
		Str("device_id", deviceID).
		Msg("Target added")

	return t.snapshot(), nil
}

// Start opens the target
func (r *Registry) Start(ctx context.Context, id string) (*proto.TargetRecord, error) {
	return r.transition(ctx, "start_target", id, proto.TargetState_STARTED)
}

// Stop closes the target
func (r *Registry) Stop(ctx context.Context, id string) (*proto.TargetRecord, error) {
	return r.transition(ctx, "stop_target", id, proto.TargetState_STOPPED)
}

// Remove drops the target from the collection
func (r *Registry) Remove(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	i := r.indexOf(id)
	if i < 0 {
		return domain.NewStatusError(domain.StatusNotFound, "remove_target", "target %s not found", id)
	}

	if err := r.store.DeleteTarget(ctx, id); err != nil {
		return err
	}
	r.targets[i].rec.State = proto.TargetState_REMOVED
	r.targets = append(r.targets[:i], r.targets[i+1:]...)
	r.updateGauges()

	r.logger.Debug().Str("target_id", id).Msg("Target removed")
	return nil
}

// Get returns a copy of the target record
func (r *Registry) Get(ctx context.Context, id string) (*proto.TargetRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	i := r.indexOf(id)
	if i < 0 {
		return nil, domain.NewStatusError(domain.StatusNotFound, "get_target", "target %s not found", id)
	}
	return r.targets[i].snapshot(), nil
}

// List returns copies of all target records in insertion order
func (r *Registry) List(ctx context.Context) []*proto.TargetRecord {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]*proto.TargetRecord, 0, len(r.targets))
	for _, t := range r.targets {
		out = append(out, t.snapshot())
	}
	return out
}

func (r *Registry) transition(ctx context.Context, op, id string, to proto.TargetState) (*proto.TargetRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	i := r.indexOf(id)
	if i < 0 {
		return nil, domain.NewStatusError(domain.StatusNotFound, op, "target %s not found", id)
	}
	t := r.targets[i]

	if !validTransition(t.rec.State, to) {
		return nil, domain.NewStatusError(domain.StatusInvalidDeviceState, op,
			"cannot move target %s from %s to %s", id, t.rec.State, to)
	}

	next := t.rec
	next.State = to
	next.UpdatedAt = timestamppb.Now()
	if err := r.store.PutTarget(ctx, &next); err != nil {
		return nil, err
	}
	t.rec = next
	r.updateGauges()

	r.logger.Debug().
		Str("target_id", id).
		Stringer("state", to).
		Msg("Target state changed")

	return t.snapshot(), nil
}

func validTransition(from, to proto.TargetState) bool {
	switch to {
	case proto.TargetState_STARTED:
		return from == proto.TargetState_CREATED || from == proto.TargetState_STOPPED
	case proto.TargetState_STOPPED:
		return from == proto.TargetState_STARTED
	}
	return false
}

func (r *Registry) indexOf(id string) int {
	for i, t := range r.targets {
		if t.rec.Id == id {
			return i
		}
	}
	return -1
}

// updateGauges recounts targets per state. Caller holds the lock.
func (r *Registry) updateGauges() {
	counts := map[proto.TargetState]int{
		proto.TargetState_CREATED: 0,
		proto.TargetState_STARTED: 0,
		proto.TargetState_STOPPED: 0,
	}
	for _, t := range r.targets {
		counts[t.rec.State]++
	}
	for state, n := range counts {
		r.metrics.TargetsTracked.WithLabelValues(state.String()).Set(float64(n))
	}
}
