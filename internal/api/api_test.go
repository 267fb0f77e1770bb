package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/nkkko/arrivald/internal/devices"
	"github.com/nkkko/arrivald/internal/eventsource"
	"github.com/nkkko/arrivald/internal/monitor"
	"github.com/nkkko/arrivald/internal/resolver"
	"github.com/nkkko/arrivald/internal/storage/badger"
	"github.com/nkkko/arrivald/internal/targets"
	"github.com/nkkko/arrivald/pkg/proto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testEnv struct {
	api     *API
	monitor *monitor.Monitor
	logs    *bytes.Buffer
}

func setupTestAPI(t *testing.T) *testEnv {
	t.Helper()

	// Capture component logs; loggers are derived from the global at construction
	logs := &bytes.Buffer{}
	prev := log.Logger
	log.Logger = zerolog.New(logs).Level(zerolog.DebugLevel)
	t.Cleanup(func() { log.Logger = prev })

	store, err := badger.NewStorage(badger.Config{InMemory: true})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Shutdown(context.Background()) })

	registry := targets.NewRegistry(store)
	devs, err := devices.NewStore(devices.DefaultConfig(), store)
	require.NoError(t, err)
	hub := eventsource.NewHub()

	m := monitor.New(hub, registry, devs, resolver.New(devs))
	require.NoError(t, m.Register(context.Background()))
	t.Cleanup(m.Unregister)

	return &testEnv{
		api:     NewAPI(Config{}, registry, devs, hub, m),
		monitor: m,
		logs:    logs,
	}
}

type envelope struct {
	Success   bool            `json:"success"`
	RequestID string          `json:"request_id"`
	Data      json.RawMessage `json:"data"`
	Error     struct {
		Type string `json:"type"`
		Code string `json:"code"`
	} `json:"error"`
	Meta struct {
		Count int `json:"count"`
	} `json:"meta"`
}

func (e *testEnv) do(t *testing.T, method, path, body string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()

	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	rec := httptest.NewRecorder()
	e.api.Handler().ServeHTTP(rec, req)

	var env envelope
	if rec.Body.Len() > 0 && strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	}
	return rec, env
}

func decode[T any](t *testing.T, raw json.RawMessage) T {
	t.Helper()

	var v T
	require.NoError(t, json.Unmarshal(raw, &v))
	return v
}

func TestHealthz(t *testing.T) {
	env := setupTestAPI(t)

	rec, body := env.do(t, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, body.Success)
	assert.NotEmpty(t, body.RequestID)

	health := decode[map[string]any](t, body.Data)
	assert.Equal(t, "ok", health["status"])
	assert.Equal(t, true, health["registered"])
}

func TestSubscription(t *testing.T) {
	env := setupTestAPI(t)

	_, body := env.do(t, http.MethodGet, "/api/v1/subscription", "")
	sub := decode[map[string]any](t, body.Data)
	assert.Equal(t, true, sub["registered"])
	assert.Equal(t, proto.DeviceArrivalEvent.String(), sub["event_class"])

	env.monitor.Unregister()
	_, body = env.do(t, http.MethodGet, "/api/v1/subscription", "")
	sub = decode[map[string]any](t, body.Data)
	assert.Equal(t, false, sub["registered"])
}

func TestTargetLifecycle(t *testing.T) {
	env := setupTestAPI(t)

	rec, body := env.do(t, http.MethodPost, "/api/v1/targets", `{"device_id":"usb-1"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	created := decode[map[string]any](t, body.Data)
	id := created["id"].(string)
	assert.Equal(t, "created", created["state"])

	rec, _ = env.do(t, http.MethodPost, "/api/v1/targets/"+id+"/stop", "")
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec, body = env.do(t, http.MethodPost, "/api/v1/targets/"+id+"/start", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "started", decode[map[string]any](t, body.Data)["state"])

	_, body = env.do(t, http.MethodGet, "/api/v1/targets", "")
	assert.Equal(t, 1, body.Meta.Count)

	rec, _ = env.do(t, http.MethodDelete, "/api/v1/targets/"+id, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec, body = env.do(t, http.MethodGet, "/api/v1/targets/"+id, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "not_found", body.Error.Code)
}

func TestAddTargetValidation(t *testing.T) {
	env := setupTestAPI(t)

	rec, body := env.do(t, http.MethodPost, "/api/v1/targets", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "required_field_missing", body.Error.Code)

	rec, body = env.do(t, http.MethodPost, "/api/v1/targets", `{"device":"x"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_json", body.Error.Code)

	rec, body = env.do(t, http.MethodPost, "/api/v1/targets", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "empty_request_body", body.Error.Code)
}

func TestBodyLimit(t *testing.T) {
	env := setupTestAPI(t)
	env.api.config.MaxBodySize = 16

	rec, body := env.do(t, http.MethodPost, "/api/v1/targets", `{"device_id":"`+strings.Repeat("a", 64)+`"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "request_too_large", body.Error.Code)
}

func TestDeviceCRUD(t *testing.T) {
	env := setupTestAPI(t)

	rec, body := env.do(t, http.MethodPut, "/api/v1/devices/usb-1",
		`{"provider_id":3,"friendly_name":"Webcam","description":"USB Video Device"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	dev := decode[map[string]any](t, body.Data)
	assert.Equal(t, "usb-1", dev["id"])
	assert.Equal(t, float64(3), dev["provider_id"])

	rec, body = env.do(t, http.MethodGet, "/api/v1/devices/usb-1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Webcam", decode[map[string]any](t, body.Data)["friendly_name"])

	_, body = env.do(t, http.MethodGet, "/api/v1/devices", "")
	assert.Equal(t, 1, body.Meta.Count)

	rec, _ = env.do(t, http.MethodDelete, "/api/v1/devices/usb-1", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec, _ = env.do(t, http.MethodGet, "/api/v1/devices/usb-1", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec, _ = env.do(t, http.MethodDelete, "/api/v1/devices/usb-1", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestFireEventReportsArrival(t *testing.T) {
	env := setupTestAPI(t)

	env.do(t, http.MethodPut, "/api/v1/devices/usb-1", `{"provider_id":7,"friendly_name":"Keyboard"}`)
	_, body := env.do(t, http.MethodPost, "/api/v1/targets", `{"device_id":"usb-1"}`)
	id := decode[map[string]any](t, body.Data)["id"].(string)
	env.do(t, http.MethodPost, "/api/v1/targets/"+id+"/start", "")

	rec, body := env.do(t, http.MethodPost, "/api/v1/events", `{"provider_id":7}`)
	require.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, float64(1), decode[map[string]any](t, body.Data)["delivered"])
	assert.Contains(t, env.logs.String(), "Keyboard fired a device arrival event")
}

func TestFireEventFallsBackToDescription(t *testing.T) {
	env := setupTestAPI(t)

	env.do(t, http.MethodPut, "/api/v1/devices/usb-2", `{"provider_id":8,"description":"USB Mass Storage"}`)
	_, body := env.do(t, http.MethodPost, "/api/v1/targets", `{"device_id":"usb-2"}`)
	id := decode[map[string]any](t, body.Data)["id"].(string)
	env.do(t, http.MethodPost, "/api/v1/targets/"+id+"/start", "")

	env.do(t, http.MethodPost, "/api/v1/events", `{"provider_id":8}`)
	assert.Contains(t, env.logs.String(), "USB Mass Storage fired a device arrival event")
}

func TestFireEventOtherClassNotDelivered(t *testing.T) {
	env := setupTestAPI(t)

	rec, body := env.do(t, http.MethodPost, "/api/v1/events",
		`{"provider_id":1,"event_class":"6f1b2b52-3d0e-4d7b-a3a4-0f6f1b0b7e11"}`)
	require.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, float64(0), decode[map[string]any](t, body.Data)["delivered"])

	rec, body = env.do(t, http.MethodPost, "/api/v1/events", `{"event_class":"not-a-uuid"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_uuid", body.Error.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	env := setupTestAPI(t)

	env.do(t, http.MethodGet, "/healthz", "")
	rec := httptest.NewRecorder()
	env.api.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "arrivald_api_requests_total")
}

func TestShutdownWithoutStart(t *testing.T) {
	env := setupTestAPI(t)
	assert.NoError(t, env.api.Shutdown(context.Background()))
}
