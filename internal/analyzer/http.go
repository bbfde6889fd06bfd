package analyzer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"
)

// DefaultTimeout bounds one analyze round trip.
const DefaultTimeout = 10 * time.Second

// HTTPChannel implements the request/response transport: one encoded frame
// per outbound POST, one result per response. Suited to fixed sampling
// periods in the 1s–5s range.
type HTTPChannel struct {
	endpoint string
	client   *http.Client
	state    atomic.Int32
}

// NewHTTPChannel creates a request/response channel posting frames to the
// analyzer's analyze endpoint (e.g. http://host:8000/video/analyze).
func NewHTTPChannel(endpoint string, timeout time.Duration) *HTTPChannel {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &HTTPChannel{
		endpoint: endpoint,
		client:   &http.Client{Timeout: timeout},
	}
}

// Open marks the channel usable. The transport is connectionless, so there
// is nothing to dial; the state machine still runs Idle → Connecting → Open
// so the controller observes the same lifecycle as the streaming channel.
func (c *HTTPChannel) Open(ctx context.Context) error {
	c.state.Store(int32(StateConnecting))
	c.state.Store(int32(StateOpen))
	return nil
}

// Send posts one frame payload and decodes the analysis result.
func (c *HTTPChannel) Send(ctx context.Context, payload []byte) (*Result, error) {
	if ConnState(c.state.Load()) != StateOpen {
		return nil, &TransportError{Op: "send", Err: fmt.Errorf("channel not open (%s)", ConnState(c.state.Load()))}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, &TransportError{Op: "send", Err: err}
	}
	req.Header.Set("Content-Type", "application/octet-stream")

	resp, err := c.client.Do(req)
	if err != nil {
		c.state.Store(int32(StateFailed))
		return nil, &TransportError{Op: "send", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.state.Store(int32(StateFailed))
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &TransportError{Op: "send", Err: fmt.Errorf("status %d: %s", resp.StatusCode, body)}
	}

	var result Result
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		c.state.Store(int32(StateFailed))
		return nil, &TransportError{Op: "decode", Err: err}
	}
	if result.CapturedAt.IsZero() {
		result.CapturedAt = time.Now()
	}
	return &result, nil
}

// State returns the current connection state.
func (c *HTTPChannel) State() ConnState {
	return ConnState(c.state.Load())
}

// Close marks the channel closed. Idempotent.
func (c *HTTPChannel) Close() error {
	c.state.Store(int32(StateClosed))
	return nil
}

var _ Channel = (*HTTPChannel)(nil)
