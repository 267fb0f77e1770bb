package eventsource

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/nkkko/arrivald/internal/domain"
	"github.com/nkkko/arrivald/pkg/proto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Fixed ID generation for testing
func init() {
	var mu sync.Mutex
	var counter int
	generateID = func() string {
		mu.Lock()
		defer mu.Unlock()
		counter++
		return fmt.Sprintf("test-block-id-%d", counter)
	}
}

var otherClass = uuid.MustParse("6a5d9b4e-8f0c-4a43-9d2c-0d5c1f7e2b11")

type recordingHandler struct {
	mu      sync.Mutex
	records []proto.EventRecord
}

func (h *recordingHandler) HandleNotification(_ context.Context, rec *proto.EventRecord) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.records = append(h.records, *rec)
}

func (h *recordingHandler) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.records)
}

func TestHubOpenAndClose(t *testing.T) {
	hub := NewHub()

	b, err := hub.Open(context.Background(), proto.DeviceArrivalEvent)
	require.NoError(t, err)
	assert.Contains(t, b.ID(), "test-block-id")
	assert.Equal(t, proto.DeviceArrivalEvent, b.Class())
	assert.Equal(t, 1, hub.OpenBlocks())

	hub.Close(b)
	assert.Equal(t, 0, hub.OpenBlocks())

	// Closing twice is a no-op
	hub.Close(b)
	assert.Equal(t, 0, hub.OpenBlocks())
}

func TestHubOpenRejectsNilClass(t *testing.T) {
	hub := NewHub()

	_, err := hub.Open(context.Background(), uuid.Nil)
	assert.ErrorIs(t, err, domain.ErrInvalidParameter)
}

func TestHubOpenCanceledContext(t *testing.T) {
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := hub.Open(ctx, proto.DeviceArrivalEvent)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, hub.OpenBlocks())
}

func TestHubBlockLimit(t *testing.T) {
	hub := NewHub(Config{MaxBlocks: 2})

	_, err := hub.Open(context.Background(), proto.DeviceArrivalEvent)
	require.NoError(t, err)
	b2, err := hub.Open(context.Background(), proto.DeviceArrivalEvent)
	require.NoError(t, err)

	_, err = hub.Open(context.Background(), proto.DeviceArrivalEvent)
	assert.True(t, domain.IsInsufficientResources(err))

	hub.Close(b2)
	_, err = hub.Open(context.Background(), proto.DeviceArrivalEvent)
	assert.NoError(t, err)
}

func TestHubSetCallbackOnClosedBlock(t *testing.T) {
	hub := NewHub()
	b, err := hub.Open(context.Background(), proto.DeviceArrivalEvent)
	require.NoError(t, err)
	hub.Close(b)

	err = hub.SetCallback(b, &recordingHandler{})
	assert.True(t, domain.IsNotFound(err))

	err = hub.SetCallback(nil, &recordingHandler{})
	assert.ErrorIs(t, err, domain.ErrInvalidParameter)
}

func TestHubFireDeliversByClass(t *testing.T) {
	hub := NewHub()

	arrivalHandler := &recordingHandler{}
	otherHandler := &recordingHandler{}

	b1, err := hub.Open(context.Background(), proto.DeviceArrivalEvent)
	require.NoError(t, err)
	require.NoError(t, hub.SetCallback(b1, arrivalHandler))

	b2, err := hub.Open(context.Background(), otherClass)
	require.NoError(t, err)
	require.NoError(t, hub.SetCallback(b2, otherHandler))

	n := hub.Fire(context.Background(), &proto.EventRecord{
		Header: proto.EventHeader{ProviderId: 7, Guid: proto.DeviceArrivalEvent},
		Body:   []byte("payload"),
	})

	assert.Equal(t, 1, n)
	require.Equal(t, 1, arrivalHandler.count())
	assert.Equal(t, 0, otherHandler.count())
	assert.Equal(t, proto.ProviderID(7), arrivalHandler.records[0].Header.ProviderId)
	assert.NotNil(t, arrivalHandler.records[0].Header.Timestamp, "hub fills in a missing timestamp")
}

func TestHubFireWithoutCallback(t *testing.T) {
	hub := NewHub()
	_, err := hub.Open(context.Background(), proto.DeviceArrivalEvent)
	require.NoError(t, err)

	n := hub.Fire(context.Background(), &proto.EventRecord{Header: proto.EventHeader{Guid: proto.DeviceArrivalEvent}})
	assert.Equal(t, 0, n)
	assert.Equal(t, 0, hub.Fire(context.Background(), nil))
}

func TestHubFireAfterClose(t *testing.T) {
	hub := NewHub()
	h := &recordingHandler{}
	b, err := hub.Open(context.Background(), proto.DeviceArrivalEvent)
	require.NoError(t, err)
	require.NoError(t, hub.SetCallback(b, h))
	hub.Close(b)

	n := hub.Fire(context.Background(), &proto.EventRecord{Header: proto.EventHeader{Guid: proto.DeviceArrivalEvent}})
	assert.Equal(t, 0, n)
	assert.Equal(t, 0, h.count())
}

func TestHubHandlerMayCloseDuringDelivery(t *testing.T) {
	hub := NewHub()
	b, err := hub.Open(context.Background(), proto.DeviceArrivalEvent)
	require.NoError(t, err)

	// Delivery happens outside the hub lock, so a handler can call back in
	calls := 0
	require.NoError(t, hub.SetCallback(b, domain.NotificationHandlerFunc(func(context.Context, *proto.EventRecord) {
		calls++
		hub.Close(b)
	})))

	hub.Fire(context.Background(), &proto.EventRecord{Header: proto.EventHeader{Guid: proto.DeviceArrivalEvent}})
	hub.Fire(context.Background(), &proto.EventRecord{Header: proto.EventHeader{Guid: proto.DeviceArrivalEvent}})
	assert.Equal(t, 1, calls)
}

func TestHubConcurrentFire(t *testing.T) {
	hub := NewHub()
	h := &recordingHandler{}
	b, err := hub.Open(context.Background(), proto.DeviceArrivalEvent)
	require.NoError(t, err)
	require.NoError(t, hub.SetCallback(b, h))

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			hub.Fire(context.Background(), &proto.EventRecord{
				Header: proto.EventHeader{ProviderId: proto.ProviderID(i), Guid: proto.DeviceArrivalEvent},
			})
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 20, h.count())
}

func TestHubShutdown(t *testing.T) {
	hub := NewHub()
	for i := 0; i < 3; i++ {
		_, err := hub.Open(context.Background(), proto.DeviceArrivalEvent)
		require.NoError(t, err)
	}

	require.NoError(t, hub.Shutdown(context.Background()))
	assert.Equal(t, 0, hub.OpenBlocks())
}
