// Package devices keeps device properties and provider bindings behind an
// expiring cache.
package devices

import (
	"context"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru"
	"github.com/nkkko/arrivald/internal/domain"
	"github.com/nkkko/arrivald/internal/metrics"
	"github.com/nkkko/arrivald/pkg/proto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"google.golang.org/protobuf/types/known/timestamppb"
)

var (
	_ domain.PropertyQuerier = (*Store)(nil)
	_ domain.ProviderLookup  = (*Store)(nil)
)

// Backend is the persistence the device store reads through to
type Backend interface {
	PutDevice(ctx context.Context, rec *proto.DeviceRecord) error
	GetDevice(ctx context.Context, id string) (*proto.DeviceRecord, error)
	DeleteDevice(ctx context.Context, id string) error
	ListDevices(ctx context.Context) ([]*proto.DeviceRecord, error)
}

// Config contains device store configuration
type Config struct {
	// Number of device records kept in the cache
	CacheSize int

	// How long a cached record is trusted
	CacheTTL time.Duration

	// Longest property value QueryProperty will return
	MaxPropertyBytes int
}

// DefaultConfig returns the default device store configuration
func DefaultConfig() Config {
	return Config{
		CacheSize:        1024,
		CacheTTL:         5 * time.Minute,
		MaxPropertyBytes: 256,
	}
}

// cacheItem is a cached record with an expiration time
type cacheItem struct {
	rec        *proto.DeviceRecord
	expiration time.Time
}

// Store holds device properties and provider bindings
type Store struct {
	config  Config
	backend Backend
	cache   *lru.TwoQueueCache
	mu      sync.RWMutex
	// fillMu orders backend writes against cache fills from backend reads
	fillMu  sync.Mutex
	logger  zerolog.Logger
	metrics *metrics.Metrics
}

// NewStore creates a device store over backend
func NewStore(config Config, backend Backend) (*Store, error) {
	defaults := DefaultConfig()
	if config.CacheSize <= 0 {
		config.CacheSize = defaults.CacheSize
	}
	if config.CacheTTL <= 0 {
		config.CacheTTL = defaults.CacheTTL
	}
	if config.MaxPropertyBytes <= 0 {
		config.MaxPropertyBytes = defaults.MaxPropertyBytes
	}

	cache, err := lru.New2Q(config.CacheSize)
	if err != nil {
		return nil, err
	}

	return &Store{
		config:  config,
		backend: backend,
		cache:   cache,
		logger:  log.With().Str("component", "devices").Logger(),
		metrics: metrics.GetMetrics(),
	}, nil
}

// Put creates or replaces a device record
func (s *Store) Put(ctx context.Context, rec *proto.DeviceRecord) error {
	if rec == nil || rec.Id == "" {
		return domain.NewStatusError(domain.StatusInvalidParameter, "put_device", "device id is required")
	}

	stored := *rec
	stored.UpdatedAt = timestamppb.Now()

	s.fillMu.Lock()
	err := s.backend.PutDevice(ctx, &stored)
	if err == nil {
		s.setCached(&stored)
	}
	s.fillMu.Unlock()
	if err != nil {
		return err
	}
	*rec = stored

	s.logger.Debug().
		Str("device_id", rec.Id).
		Uint32("provider_id", uint32(rec.ProviderId)).
		Msg("Device stored")
	return nil
}

// Get returns a copy of the device record
func (s *Store) Get(ctx context.Context, id string) (*proto.DeviceRecord, error) {
	rec, err := s.lookup(ctx, id)
	if err != nil {
		return nil, err
	}
	out := *rec
	return &out, nil
}

// Delete removes a device record
func (s *Store) Delete(ctx context.Context, id string) error {
	s.fillMu.Lock()
	defer s.fillMu.Unlock()

	err := s.backend.DeleteDevice(ctx, id)
	s.evict(id)
	return err
}

// List returns all device records ordered by ID
func (s *Store) List(ctx context.Context) ([]*proto.DeviceRecord, error) {
	return s.backend.ListDevices(ctx)
}

// ProviderOf returns the provider bound to the target's device. A target that
// is not Started has no device binding.
func (s *Store) ProviderOf(t domain.Target) (proto.ProviderID, bool) {
	if t.State() != proto.TargetState_STARTED {
		return 0, false
	}

	rec, err := s.lookup(context.Background(), t.DeviceID())
	if err != nil {
		if !domain.IsNotFound(err) {
			s.logger.Warn().Err(err).Str("device_id", t.DeviceID()).Msg("Device lookup failed")
		}
		return 0, false
	}
	if rec.ProviderId == 0 {
		return 0, false
	}
	return rec.ProviderId, true
}

// QueryProperty copies a device property into a pooled buffer
func (s *Store) QueryProperty(ctx context.Context, t domain.Target, kind proto.PropertyKind) (*proto.ResolvedName, error) {
	op := "query_" + kind.String()

	rec, err := s.lookup(ctx, t.DeviceID())
	if err != nil {
		return nil, err
	}

	value := rec.Property(kind)
	if value == "" {
		return nil, domain.NewStatusError(domain.StatusNotFound, op, "device %s has no %s", rec.Id, kind)
	}
	if len(value) > s.config.MaxPropertyBytes {
		return nil, domain.NewStatusError(domain.StatusInsufficientResources, op,
			"%s of device %s is %d bytes, limit %d", kind, rec.Id, len(value), s.config.MaxPropertyBytes)
	}

	return proto.NewResolvedName(value), nil
}

func (s *Store) lookup(ctx context.Context, id string) (*proto.DeviceRecord, error) {
	if rec, ok := s.getCached(id); ok {
		return rec, nil
	}

	s.fillMu.Lock()
	defer s.fillMu.Unlock()

	// A writer may have filled the entry while we waited
	if rec, ok := s.peekCached(id); ok {
		return rec, nil
	}

	rec, err := s.backend.GetDevice(ctx, id)
	if err != nil {
		return nil, err
	}
	s.setCached(rec)
	return rec, nil
}

func (s *Store) getCached(id string) (*proto.DeviceRecord, bool) {
	s.mu.RLock()
	value, found := s.cache.Get(id)
	s.mu.RUnlock()

	if !found {
		s.metrics.PropertyCache.WithLabelValues("miss").Inc()
		return nil, false
	}

	item := value.(cacheItem)
	if time.Now().After(item.expiration) {
		s.evict(id)
		s.metrics.PropertyCache.WithLabelValues("expired").Inc()
		return nil, false
	}

	s.metrics.PropertyCache.WithLabelValues("hit").Inc()
	return item.rec, true
}

// peekCached reads the cache without touching metrics or recency
func (s *Store) peekCached(id string) (*proto.DeviceRecord, bool) {
	s.mu.RLock()
	value, found := s.cache.Peek(id)
	s.mu.RUnlock()
	if !found {
		return nil, false
	}
	item := value.(cacheItem)
	if time.Now().After(item.expiration) {
		return nil, false
	}
	return item.rec, true
}

func (s *Store) evict(id string) {
	s.mu.Lock()
	s.cache.Remove(id)
	s.mu.Unlock()
}

func (s *Store) setCached(rec *proto.DeviceRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cache.Add(rec.Id, cacheItem{
		rec:        rec,
		expiration: time.Now().Add(s.config.CacheTTL),
	})
}
