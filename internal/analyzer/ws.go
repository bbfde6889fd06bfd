package analyzer

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

// WSChannel implements the streaming transport: a long-lived WebSocket
// where client → server messages are raw encoded frames and server → client
// messages are JSON results. Delivery is assumed in-order with a single
// outstanding frame, so Send blocks on the next reply without correlation
// ids.
type WSChannel struct {
	url     string
	timeout time.Duration
	dialer  *websocket.Dialer

	mu    sync.Mutex
	conn  *websocket.Conn
	state atomic.Int32
}

// NewWSChannel creates a streaming channel to the analyzer's WebSocket
// endpoint (e.g. ws://host:8000/ws/video).
func NewWSChannel(url string, timeout time.Duration) *WSChannel {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &WSChannel{
		url:     url,
		timeout: timeout,
		dialer:  &websocket.Dialer{HandshakeTimeout: timeout},
	}
}

// Open dials the analyzer endpoint.
func (c *WSChannel) Open(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn != nil {
		return nil
	}

	c.state.Store(int32(StateConnecting))
	conn, _, err := c.dialer.DialContext(ctx, c.url, nil)
	if err != nil {
		c.state.Store(int32(StateFailed))
		return &TransportError{Op: "dial", Err: err}
	}

	c.conn = conn
	c.state.Store(int32(StateOpen))
	log.Printf("[Analyzer] Stream connected to %s", c.url)
	return nil
}

// wsEyeResult is the compact server reply shape used by eye-only analyzers.
type wsEyeResult struct {
	IsEyeOpen  *bool   `json:"is_eye_open"`
	Confidence float32 `json:"confidence"`
}

// Send writes one frame payload and blocks until the next reply arrives.
func (c *WSChannel) Send(ctx context.Context, payload []byte) (*Result, error) {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()

	if conn == nil || c.State() != StateOpen {
		return nil, &TransportError{Op: "send", Err: fmt.Errorf("channel not open (%s)", c.State())}
	}

	deadline := time.Now().Add(c.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	conn.SetWriteDeadline(deadline)
	if err := conn.WriteMessage(websocket.BinaryMessage, payload); err != nil {
		c.fail(err)
		return nil, &TransportError{Op: "send", Err: err}
	}

	conn.SetReadDeadline(deadline)
	_, data, err := conn.ReadMessage()
	if err != nil {
		if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
			c.closeRemote()
			return nil, &TransportError{Op: "recv", Err: err}
		}
		c.fail(err)
		return nil, &TransportError{Op: "recv", Err: err}
	}

	return decodeStreamResult(data)
}

// decodeStreamResult accepts either the full result shape or the compact
// eye shape and normalizes both into a Result.
func decodeStreamResult(data []byte) (*Result, error) {
	var eye wsEyeResult
	if err := json.Unmarshal(data, &eye); err == nil && eye.IsEyeOpen != nil {
		state := EyeOpen
		if !*eye.IsEyeOpen {
			state = EyeClosed
		}
		return &Result{
			Detections: []Detection{{Label: "eye", Score: eye.Confidence, State: state}},
			CapturedAt: time.Now(),
		}, nil
	}

	var result Result
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, &TransportError{Op: "decode", Err: err}
	}
	if result.CapturedAt.IsZero() {
		result.CapturedAt = time.Now()
	}
	return &result, nil
}

func (c *WSChannel) fail(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
	c.state.Store(int32(StateFailed))
	log.Printf("[Analyzer] Stream failed: %v", err)
}

func (c *WSChannel) closeRemote() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
	c.state.Store(int32(StateClosed))
	log.Printf("[Analyzer] Stream closed by remote")
}

// State returns the current connection state.
func (c *WSChannel) State() ConnState {
	return ConnState(c.state.Load())
}

// Close tears down the stream. Idempotent.
func (c *WSChannel) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn != nil {
		c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		c.conn.Close()
		c.conn = nil
	}
	c.state.Store(int32(StateClosed))
	return nil
}

var _ Channel = (*WSChannel)(nil)
