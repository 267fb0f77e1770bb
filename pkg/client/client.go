// Package client is a Go client for the arrivald HTTP API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Client is an HTTP client for the arrivald API
type Client struct {
	baseURL    string
	httpClient *http.Client
	headers    http.Header
}

// ClientOption configures a Client
type ClientOption func(*Client)

// WithTimeout sets the request timeout
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

// WithHTTPClient replaces the underlying HTTP client
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithHeaders sets additional HTTP headers
func WithHeaders(headers map[string]string) ClientOption {
	return func(c *Client) {
		for k, v := range headers {
			c.headers.Set(k, v)
		}
	}
}

// New creates a client for the API served at baseURL
func New(baseURL string, options ...ClientOption) *Client {
	headers := http.Header{}
	headers.Set("Content-Type", "application/json")
	headers.Set("Accept", "application/json")

	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 10 * time.Second},
		headers:    headers,
	}
	for _, option := range options {
		option(c)
	}
	return c
}

// Target is a tracked target as reported by the API
type Target struct {
	ID        string    `json:"id"`
	DeviceID  string    `json:"device_id"`
	State     string    `json:"state"`
	Seq       uint64    `json:"seq"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Device is a device record as reported by the API
type Device struct {
	ID           string    `json:"id"`
	ProviderID   uint32    `json:"provider_id"`
	FriendlyName string    `json:"friendly_name,omitempty"`
	Description  string    `json:"description,omitempty"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Subscription is the state of the arrival subscription
type Subscription struct {
	Registered bool   `json:"registered"`
	EventClass string `json:"event_class"`
}

// Event is an event to fire into the notification hub. A zero EventClass
// fires a device arrival.
type Event struct {
	ProviderID uint32
	EventClass uuid.UUID
	Body       []byte
}

// APIError is an error response from the API
type APIError struct {
	StatusCode int    `json:"-"`
	Type       string `json:"type"`
	Code       string `json:"code"`
	Message    string `json:"message"`
	RequestID  string `json:"request_id,omitempty"`
}

// Error implements the error interface
func (e *APIError) Error() string {
	return fmt.Sprintf("API error (%d) %s: %s", e.StatusCode, e.Code, e.Message)
}

// IsNotFound reports whether err is a 404 from the API
func IsNotFound(err error) bool {
	apiErr, ok := err.(*APIError)
	return ok && apiErr.StatusCode == http.StatusNotFound
}

// Health reports whether the service is up and registered
func (c *Client) Health(ctx context.Context) (bool, error) {
	var out struct {
		Status     string `json:"status"`
		Registered bool   `json:"registered"`
	}
	if err := c.do(ctx, http.MethodGet, "/healthz", nil, &out); err != nil {
		return false, err
	}
	return out.Registered, nil
}

// GetSubscription returns the arrival subscription state
func (c *Client) GetSubscription(ctx context.Context) (*Subscription, error) {
	var out Subscription
	if err := c.do(ctx, http.MethodGet, "/api/v1/subscription", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// AddTarget starts tracking a target on deviceID
func (c *Client) AddTarget(ctx context.Context, deviceID string) (*Target, error) {
	req := map[string]string{"device_id": deviceID}

	var out Target
	if err := c.do(ctx, http.MethodPost, "/api/v1/targets", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetTarget retrieves a target by ID
func (c *Client) GetTarget(ctx context.Context, id string) (*Target, error) {
	var out Target
	if err := c.do(ctx, http.MethodGet, "/api/v1/targets/"+url.PathEscape(id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListTargets lists targets in insertion order
func (c *Client) ListTargets(ctx context.Context) ([]*Target, error) {
	var out []*Target
	if err := c.do(ctx, http.MethodGet, "/api/v1/targets", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// StartTarget opens a target
func (c *Client) StartTarget(ctx context.Context, id string) (*Target, error) {
	return c.targetAction(ctx, id, "start")
}

// StopTarget closes a target
func (c *Client) StopTarget(ctx context.Context, id string) (*Target, error) {
	return c.targetAction(ctx, id, "stop")
}

func (c *Client) targetAction(ctx context.Context, id, action string) (*Target, error) {
	var out Target
	path := fmt.Sprintf("/api/v1/targets/%s/%s", url.PathEscape(id), action)
	if err := c.do(ctx, http.MethodPost, path, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// RemoveTarget stops tracking a target
func (c *Client) RemoveTarget(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/v1/targets/"+url.PathEscape(id), nil, nil)
}

// PutDevice creates or replaces a device
func (c *Client) PutDevice(ctx context.Context, d *Device) (*Device, error) {
	req := struct {
		ProviderID   uint32 `json:"provider_id"`
		FriendlyName string `json:"friendly_name,omitempty"`
		Description  string `json:"description,omitempty"`
	}{d.ProviderID, d.FriendlyName, d.Description}

	var out Device
	if err := c.do(ctx, http.MethodPut, "/api/v1/devices/"+url.PathEscape(d.ID), req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetDevice retrieves a device by ID
func (c *Client) GetDevice(ctx context.Context, id string) (*Device, error) {
	var out Device
	if err := c.do(ctx, http.MethodGet, "/api/v1/devices/"+url.PathEscape(id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListDevices lists devices ordered by ID
func (c *Client) ListDevices(ctx context.Context) ([]*Device, error) {
	var out []*Device
	if err := c.do(ctx, http.MethodGet, "/api/v1/devices", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// DeleteDevice removes a device
func (c *Client) DeleteDevice(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/v1/devices/"+url.PathEscape(id), nil, nil)
}

// FireEvent fires an event and returns the number of blocks it reached
func (c *Client) FireEvent(ctx context.Context, ev Event) (int, error) {
	req := struct {
		ProviderID uint32 `json:"provider_id"`
		EventClass string `json:"event_class,omitempty"`
		Body       []byte `json:"body,omitempty"`
	}{ProviderID: ev.ProviderID, Body: ev.Body}
	if ev.EventClass != uuid.Nil {
		req.EventClass = ev.EventClass.String()
	}

	var out struct {
		Delivered int `json:"delivered"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/v1/events", req, &out); err != nil {
		return 0, err
	}
	return out.Delivered, nil
}

// envelope is the response wrapper used by every endpoint
type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *APIError       `json:"error"`
}

// do sends a request and decodes the envelope's data into out
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	for k, v := range c.headers {
		req.Header[k] = v
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNoContent {
		return nil
	}

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		if resp.StatusCode >= 400 {
			return &APIError{StatusCode: resp.StatusCode, Message: resp.Status}
		}
		return fmt.Errorf("failed to decode response: %w", err)
	}

	if resp.StatusCode >= 400 || !env.Success {
		apiErr := env.Error
		if apiErr == nil {
			apiErr = &APIError{Message: resp.Status}
		}
		apiErr.StatusCode = resp.StatusCode
		return apiErr
	}

	if out == nil || len(env.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("failed to decode response data: %w", err)
	}
	return nil
}
