package analyzer

import (
	"context"
	"time"
)

// Eye state values carried in Detection.State.
const (
	EyeOpen   = "open"
	EyeClosed = "closed"
)

// BBox is a detection rectangle in pixel coordinates (or normalized [0,1]
// coordinates when the analyzer does not report frame dimensions).
type BBox struct {
	X1 float32 `json:"x1"`
	Y1 float32 `json:"y1"`
	X2 float32 `json:"x2"`
	Y2 float32 `json:"y2"`
}

// Area returns the rectangle area in the box's own coordinate space.
func (b BBox) Area() float32 {
	w := b.X2 - b.X1
	h := b.Y2 - b.Y1
	if w <= 0 || h <= 0 {
		return 0
	}
	return w * h
}

// Detection is a single labeled box from the analyzer. For "eye" detections
// State carries the open/closed signal.
type Detection struct {
	Label string  `json:"label"`
	Score float32 `json:"score"`
	BBox  BBox    `json:"bbox"`
	State string  `json:"state,omitempty"`
}

// Posture is a head pose estimate in degrees.
type Posture struct {
	Pitch float64 `json:"pitch"`
	Yaw   float64 `json:"yaw"`
	Roll  float64 `json:"roll"`
}

// Result is one structured analysis of a submitted frame. It is owned
// transiently by the classifier during a single tick.
type Result struct {
	Detections  []Detection `json:"detections"`
	Position    *Posture    `json:"position,omitempty"`
	FrameWidth  int         `json:"frame_width,omitempty"`
	FrameHeight int         `json:"frame_height,omitempty"`
	CapturedAt  time.Time   `json:"timestamp,omitempty"`
}

// ConnState is the lifecycle of an analyzer channel. It is owned by the
// channel and only observed by the session controller.
type ConnState int32

const (
	StateIdle ConnState = iota
	StateConnecting
	StateOpen
	StateClosed
	StateFailed
)

func (s ConnState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosed:
		return "closed"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Channel sends encoded frames to the remote analyzer and yields structured
// results. Implementations must not retry on their own: after a transport
// failure the channel reports StateFailed and the caller decides policy.
type Channel interface {
	// Open transitions Idle → Connecting → Open.
	Open(ctx context.Context) error

	// Send submits one encoded frame and blocks until a result arrives or
	// the transport fails. Failures are *TransportError; timeouts included.
	Send(ctx context.Context, payload []byte) (*Result, error)

	// State reports the current connection state.
	State() ConnState

	// Close releases the transport. Idempotent.
	Close() error
}
