package monitor

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/nkkko/arrivald/internal/domain"
	"github.com/nkkko/arrivald/pkg/proto"
	"github.com/rs/zerolog"
)

const (
	providerA proto.ProviderID = 0xA
	providerB proto.ProviderID = 0xB
)

type testTarget struct {
	id       string
	state    proto.TargetState
	provider proto.ProviderID
	name     string
}

func (t *testTarget) ID() string               { return t.id }
func (t *testTarget) DeviceID() string         { return "dev-" + t.id }
func (t *testTarget) State() proto.TargetState { return t.state }

// countingRegistry counts lock acquisitions and records whether the lock is
// held while Targets is read
type countingRegistry struct {
	mu       sync.Mutex
	targets  []domain.Target
	locks    int
	unlocks  int
	held     bool
	readFree bool
}

func (r *countingRegistry) Lock() {
	r.mu.Lock()
	r.locks++
	r.held = true
}

func (r *countingRegistry) Unlock() {
	r.unlocks++
	r.held = false
	r.mu.Unlock()
}

func (r *countingRegistry) Targets() []domain.Target {
	if !r.held {
		r.readFree = true
	}
	return r.targets
}

// recordingLookup answers from the target's provider field and records
// which targets were asked about
type recordingLookup struct {
	asked []string
}

func (l *recordingLookup) ProviderOf(t domain.Target) (proto.ProviderID, bool) {
	l.asked = append(l.asked, t.ID())
	tt := t.(*testTarget)
	if tt.provider == 0 {
		return 0, false
	}
	return tt.provider, true
}

// stubResolver returns the target's name unless an error is configured
type stubResolver struct {
	err      error
	resolved []string
	names    []*proto.ResolvedName
}

func (r *stubResolver) Resolve(_ context.Context, t domain.Target) (*proto.ResolvedName, error) {
	r.resolved = append(r.resolved, t.ID())
	if r.err != nil {
		return nil, r.err
	}
	name := proto.NewResolvedName(t.(*testTarget).name)
	r.names = append(r.names, name)
	return name, nil
}

type fakeBlock struct {
	id    string
	class uuid.UUID
}

func (b *fakeBlock) ID() string       { return b.id }
func (b *fakeBlock) Class() uuid.UUID { return b.class }

// fakeSource is a NotificationSource with failure injection
type fakeSource struct {
	openErr     error
	callbackErr error

	opened   int
	closed   int
	open     map[string]*fakeBlock
	handlers map[string]domain.NotificationHandler
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		open:     make(map[string]*fakeBlock),
		handlers: make(map[string]domain.NotificationHandler),
	}
}

func (s *fakeSource) Open(_ context.Context, class uuid.UUID) (domain.NotificationBlock, error) {
	if s.openErr != nil {
		return nil, s.openErr
	}
	s.opened++
	b := &fakeBlock{id: fmt.Sprintf("block-%d", s.opened), class: class}
	s.open[b.id] = b
	return b, nil
}

func (s *fakeSource) SetCallback(block domain.NotificationBlock, h domain.NotificationHandler) error {
	if s.callbackErr != nil {
		return s.callbackErr
	}
	s.handlers[block.ID()] = h
	return nil
}

func (s *fakeSource) Close(block domain.NotificationBlock) {
	if _, ok := s.open[block.ID()]; !ok {
		return
	}
	s.closed++
	delete(s.open, block.ID())
	delete(s.handlers, block.ID())
}

func (s *fakeSource) fire(rec *proto.EventRecord) {
	for id, h := range s.handlers {
		if s.open[id].class == rec.Header.Guid {
			h.HandleNotification(context.Background(), rec)
		}
	}
}

type fixture struct {
	source   *fakeSource
	registry *countingRegistry
	lookup   *recordingLookup
	resolver *stubResolver
	monitor  *Monitor
	logs     *bytes.Buffer
}

func newFixture(targets ...*testTarget) *fixture {
	f := &fixture{
		source:   newFakeSource(),
		registry: &countingRegistry{},
		lookup:   &recordingLookup{},
		resolver: &stubResolver{},
		logs:     &bytes.Buffer{},
	}
	for _, t := range targets {
		f.registry.targets = append(f.registry.targets, t)
	}
	f.monitor = New(f.source, f.registry, f.lookup, f.resolver)
	f.monitor.logger = zerolog.New(f.logs).Level(zerolog.DebugLevel)
	return f
}

func (f *fixture) logContains(s string) bool {
	return strings.Contains(f.logs.String(), s)
}

func (f *fixture) countLogs(s string) int {
	return strings.Count(f.logs.String(), s)
}

func arrival(provider proto.ProviderID) *proto.EventRecord {
	return &proto.EventRecord{Header: proto.EventHeader{ProviderId: provider, Guid: proto.DeviceArrivalEvent}}
}
