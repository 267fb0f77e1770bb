package engine

import (
	"context"
	"testing"
	"time"

	"github.com/nkkko/arrivald/internal/config"
	"github.com/nkkko/arrivald/internal/eventsource"
	"github.com/nkkko/arrivald/internal/monitor"
	"github.com/nkkko/arrivald/internal/resolver"
	"github.com/nkkko/arrivald/pkg/proto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.Server.Addr = "127.0.0.1:0"
	cfg.Storage.InMemory = true
	return cfg
}

func TestCreateEngineRejectsInvalidConfig(t *testing.T) {
	cfg := testConfig()
	cfg.Server.Addr = ""

	_, err := CreateEngine(cfg)
	assert.Error(t, err)
}

func TestEngineStartAndShutdown(t *testing.T) {
	e, err := CreateEngine(testConfig())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- e.Start(ctx) }()

	assert.Eventually(t, e.Registered, time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("engine did not stop")
	}

	require.NoError(t, e.Shutdown(context.Background()))
	assert.False(t, e.Registered())
	assert.Equal(t, 0, e.hub.OpenBlocks())
}

func TestEngineContinuesWhenRegistrationFails(t *testing.T) {
	e, err := CreateEngine(testConfig())
	require.NoError(t, err)

	// No room for the arrival block
	e.hub = eventsource.NewHub(eventsource.Config{MaxBlocks: 1})
	_, err = e.hub.Open(context.Background(), proto.DeviceArrivalEvent)
	require.NoError(t, err)
	e.monitor = rebuildMonitor(e)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- e.Start(ctx) }()

	// Give Start time to attempt registration
	time.Sleep(100 * time.Millisecond)
	assert.False(t, e.Registered())

	cancel()
	assert.NoError(t, <-done)
	require.NoError(t, e.Shutdown(context.Background()))
}

func TestEngineLoadsPersistedTargets(t *testing.T) {
	cfg := testConfig()
	cfg.Storage.InMemory = false
	cfg.Storage.DataDir = t.TempDir()

	e, err := CreateEngine(cfg)
	require.NoError(t, err)
	rec, err := e.registry.Add(context.Background(), "usb-1")
	require.NoError(t, err)
	require.NoError(t, e.Shutdown(context.Background()))

	e, err = CreateEngine(cfg)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- e.Start(ctx) }()

	assert.Eventually(t, func() bool {
		_, err := e.registry.Get(context.Background(), rec.Id)
		return err == nil
	}, time.Second, 10*time.Millisecond)

	cancel()
	assert.NoError(t, <-done)
	require.NoError(t, e.Shutdown(context.Background()))
}

func rebuildMonitor(e *Engine) *monitor.Monitor {
	return monitor.New(e.hub, e.registry, e.devices, resolver.New(e.devices))
}
