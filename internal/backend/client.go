package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// SessionAPI is the external session/report service the controller notifies
// at session boundaries. Called exactly once per start/stop cycle.
type SessionAPI interface {
	StartSession(ctx context.Context) (*StartResult, error)
	EndSession(ctx context.Context) error
}

// RemoteSettings are the threshold values the backend may hand out with a
// new session. They seed the local settings store when present.
type RemoteSettings struct {
	AlertMethod string  `json:"alter_method"`
	Yaw         float64 `json:"yall"`
	Roll        float64 `json:"roll"`
	Pitch       float64 `json:"pitch"`
	EyeWidth    float64 `json:"eyeWidth"`
}

// StartResult is the backend's answer to a session start.
type StartResult struct {
	SessionID string
	Settings  *RemoteSettings
}

// Client talks to the session/report backend over HTTP.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a backend client. baseURL is e.g. http://localhost:8000.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
	}
}

type startSessionResponse struct {
	SessionID json.Number     `json:"session_id"`
	Settings  *RemoteSettings `json:"settings,omitempty"`
}

// StartSession opens a usage session on the backend.
func (c *Client) StartSession(ctx context.Context) (*StartResult, error) {
	var resp startSessionResponse
	if err := c.post(ctx, "/session/start", nil, &resp); err != nil {
		return nil, fmt.Errorf("session start: %w", err)
	}
	return &StartResult{
		SessionID: resp.SessionID.String(),
		Settings:  resp.Settings,
	}, nil
}

type endSessionResponse struct {
	Status string `json:"status"`
}

// EndSession closes the active usage session on the backend.
func (c *Client) EndSession(ctx context.Context) error {
	var resp endSessionResponse
	if err := c.post(ctx, "/session/end", nil, &resp); err != nil {
		return fmt.Errorf("session end: %w", err)
	}
	if resp.Status != "" && resp.Status != "ok" {
		return fmt.Errorf("session end: status %q", resp.Status)
	}
	return nil
}

// PostAlert records an alert event with the backend. Fire-and-forget from
// the caller's perspective; the returned id is informational.
func (c *Client) PostAlert(ctx context.Context, alertType string) (string, error) {
	payload := map[string]string{"alert_type": alertType}
	var id json.Number
	if err := c.post(ctx, "/alert", payload, &id); err != nil {
		return "", fmt.Errorf("post alert: %w", err)
	}
	return id.String(), nil
}

func (c *Client) post(ctx context.Context, path string, payload, out any) error {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("status %d: %s", resp.StatusCode, data)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

var _ SessionAPI = (*Client)(nil)

// Local is a no-backend SessionAPI used when no report service is
// configured. Session ids are generated locally so monitoring still works
// offline.
type Local struct{}

func (Local) StartSession(context.Context) (*StartResult, error) {
	return &StartResult{SessionID: uuid.NewString()}, nil
}

func (Local) EndSession(context.Context) error { return nil }

var _ SessionAPI = Local{}
