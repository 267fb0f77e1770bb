package badger

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/nkkko/arrivald/internal/domain"
	"github.com/nkkko/arrivald/internal/metrics"
	"github.com/nkkko/arrivald/internal/storage"
	"github.com/nkkko/arrivald/pkg/proto"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Ensure Storage implements storage.Storage
var _ storage.Storage = (*Storage)(nil)

const (
	// Prefix keys for different record types
	prefixTargets = "tgt:"
	prefixDevices = "dev:"
	prefixMeta    = "meta:"

	// Key of the target insertion sequence
	targetSeqKey = prefixMeta + "target_seq"

	// Number of sequence values leased from Badger at a time
	seqBandwidth = 100
)

// Config contains storage configuration
type Config struct {
	// Base directory for data files
	DataDir string

	// Keep everything in memory (tests)
	InMemory bool

	// Whether writes are fsynced before returning
	SyncWrites bool

	// Interval between value log GC runs; zero disables GC
	GCInterval time.Duration
}

// DefaultConfig returns a default configuration for Badger-based storage
func DefaultConfig() Config {
	return Config{
		DataDir:    "./data",
		SyncWrites: true,
		GCInterval: 10 * time.Minute,
	}
}

// Storage persists records in Badger
type Storage struct {
	config  Config
	db      *badger.DB
	seq     *badger.Sequence
	seqMu   sync.Mutex
	logger  zerolog.Logger
	metrics *metrics.Metrics
	stopGC  chan struct{}
	gcDone  chan struct{}
}

// NewStorage opens a Badger database
func NewStorage(config Config) (*Storage, error) {
	logger := log.With().Str("component", "storage-badger").Logger()

	var options badger.Options
	if config.InMemory {
		options = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if config.DataDir == "" {
			config.DataDir = DefaultConfig().DataDir
		}
		dbPath := filepath.Join(config.DataDir, "badger")
		if err := os.MkdirAll(dbPath, 0755); err != nil {
			return nil, errors.Wrap(err, "failed to create badger directory")
		}
		options = badger.DefaultOptions(dbPath).WithSyncWrites(config.SyncWrites)
	}
	options = options.WithLoggingLevel(badger.WARNING)

	db, err := badger.Open(options)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open Badger")
	}

	seq, err := db.GetSequence([]byte(targetSeqKey), seqBandwidth)
	if err != nil {
		db.Close()
		return nil, errors.Wrap(err, "failed to lease target sequence")
	}

	logger.Info().
		Str("data_dir", config.DataDir).
		Bool("in_memory", config.InMemory).
		Msg("Storage opened")

	return &Storage{
		config:  config,
		db:      db,
		seq:     seq,
		logger:  logger,
		metrics: metrics.GetMetrics(),
	}, nil
}

// Start runs value log GC in the background until Shutdown or ctx is done
func (s *Storage) Start(ctx context.Context) error {
	if s.config.GCInterval <= 0 || s.config.InMemory {
		return nil
	}

	s.stopGC = make(chan struct{})
	s.gcDone = make(chan struct{})
	go s.runGC(ctx)
	return nil
}

func (s *Storage) runGC(ctx context.Context) {
	defer close(s.gcDone)

	ticker := time.NewTicker(s.config.GCInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			// RunValueLogGC returns ErrNoRewrite when there is nothing to collect
			for s.db.RunValueLogGC(0.5) == nil {
			}
		case <-s.stopGC:
			return
		case <-ctx.Done():
			return
		}
	}
}

// Shutdown stops GC, releases the sequence lease and closes the database
func (s *Storage) Shutdown(ctx context.Context) error {
	s.logger.Info().Msg("Shutting down storage")

	if s.stopGC != nil {
		close(s.stopGC)
		<-s.gcDone
		s.stopGC = nil
	}

	if err := s.seq.Release(); err != nil {
		s.logger.Error().Err(err).Msg("Failed to release target sequence")
	}
	if err := s.db.Close(); err != nil {
		return errors.Wrap(err, "failed to close Badger")
	}
	return nil
}

// NextSequence returns the next target insertion sequence number
func (s *Storage) NextSequence(ctx context.Context) (uint64, error) {
	s.seqMu.Lock()
	defer s.seqMu.Unlock()

	n, err := s.seq.Next()
	if err != nil {
		return 0, errors.Wrap(err, "failed to advance target sequence")
	}
	return n, nil
}

// PutTarget creates or replaces a target record
func (s *Storage) PutTarget(ctx context.Context, rec *proto.TargetRecord) error {
	err := s.put(prefixTargets, rec.Id, rec)
	s.record("put_target", err)
	return err
}

// DeleteTarget removes a target record
func (s *Storage) DeleteTarget(ctx context.Context, id string) error {
	err := s.delete(prefixTargets, id, "target")
	s.record("delete_target", err)
	return err
}

// ListTargets returns all target records ordered by Seq
func (s *Storage) ListTargets(ctx context.Context) ([]*proto.TargetRecord, error) {
	var out []*proto.TargetRecord
	err := s.scan(prefixTargets, func(val []byte) error {
		rec := &proto.TargetRecord{}
		if err := json.Unmarshal(val, rec); err != nil {
			return errors.Wrap(err, "failed to unmarshal target")
		}
		out = append(out, rec)
		return nil
	})
	s.record("list_targets", err)
	if err != nil {
		return nil, err
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Seq < out[j].Seq })
	return out, nil
}

// PutDevice creates or replaces a device record
func (s *Storage) PutDevice(ctx context.Context, rec *proto.DeviceRecord) error {
	err := s.put(prefixDevices, rec.Id, rec)
	s.record("put_device", err)
	return err
}

// GetDevice retrieves a device record by ID
func (s *Storage) GetDevice(ctx context.Context, id string) (*proto.DeviceRecord, error) {
	var rec *proto.DeviceRecord

	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(prefixKey(prefixDevices, id))
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return domain.NewStatusError(domain.StatusNotFound, "get_device", "device %s not found", id)
			}
			return errors.Wrap(err, "failed to retrieve device")
		}

		return item.Value(func(val []byte) error {
			rec = &proto.DeviceRecord{}
			if err := json.Unmarshal(val, rec); err != nil {
				return errors.Wrap(err, "failed to unmarshal device")
			}
			return nil
		})
	})
	s.record("get_device", err)
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// DeleteDevice removes a device record
func (s *Storage) DeleteDevice(ctx context.Context, id string) error {
	err := s.delete(prefixDevices, id, "device")
	s.record("delete_device", err)
	return err
}

// ListDevices returns all device records ordered by ID
func (s *Storage) ListDevices(ctx context.Context) ([]*proto.DeviceRecord, error) {
	var out []*proto.DeviceRecord
	err := s.scan(prefixDevices, func(val []byte) error {
		rec := &proto.DeviceRecord{}
		if err := json.Unmarshal(val, rec); err != nil {
			return errors.Wrap(err, "failed to unmarshal device")
		}
		out = append(out, rec)
		return nil
	})
	s.record("list_devices", err)
	if err != nil {
		return nil, err
	}
	// Badger iterates in key order, which is ID order within a prefix
	return out, nil
}

func (s *Storage) put(prefix, id string, v any) error {
	if id == "" {
		return domain.NewStatusError(domain.StatusInvalidParameter, "put", "empty id")
	}

	data, err := json.Marshal(v)
	if err != nil {
		return errors.Wrap(err, "failed to marshal record")
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(prefixKey(prefix, id), data)
	})
	return errors.Wrapf(err, "failed to store %s%s", prefix, id)
}

func (s *Storage) delete(prefix, id, kind string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		key := prefixKey(prefix, id)
		if _, err := txn.Get(key); err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return domain.NewStatusError(domain.StatusNotFound, "delete_"+kind, "%s %s not found", kind, id)
			}
			return errors.Wrapf(err, "failed to look up %s", kind)
		}
		return errors.Wrapf(txn.Delete(key), "failed to delete %s", kind)
	})
}

func (s *Storage) scan(prefix string, fn func(val []byte) error) error {
	return s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		p := []byte(prefix)
		for it.Seek(p); it.ValidForPrefix(p); it.Next() {
			if err := it.Item().Value(fn); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *Storage) record(op string, err error) {
	success := "true"
	if err != nil {
		success = "false"
	}
	s.metrics.StorageOperations.WithLabelValues(op, success).Inc()
}

// prefixKey adds the record type prefix to an ID
func prefixKey(prefix, id string) []byte {
	key := make([]byte, len(prefix)+len(id))
	copy(key, prefix)
	copy(key[len(prefix):], id)
	return key
}
