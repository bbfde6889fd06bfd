package monitor

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"vigil/internal/alerts"
	"vigil/internal/analyzer"
	"vigil/internal/backend"
	"vigil/internal/capture"
	"vigil/internal/classify"
	"vigil/internal/encode"
	"vigil/internal/settings"
	"vigil/internal/throttle"
)

// State is the session controller lifecycle.
type State int32

const (
	StateStopped State = iota
	StateStarting
	StateActive
	StateStopping
)

func (s State) String() string {
	switch s {
	case StateStopped:
		return "stopped"
	case StateStarting:
		return "starting"
	case StateActive:
		return "active"
	case StateStopping:
		return "stopping"
	default:
		return "unknown"
	}
}

// ErrStopping is returned when Start is called while a stop is in flight.
var ErrStopping = errors.New("monitor is stopping")

// Session is one contiguous interval of active monitoring.
type Session struct {
	SessionID string
	StartedAt time.Time
	EndedAt   time.Time
}

// SettingsSource supplies the current settings. It is consulted on every
// tick so threshold edits apply immediately.
type SettingsSource interface {
	Current() settings.Settings
}

// Config wires the controller's collaborators.
type Config struct {
	Source   capture.Source
	Encoder  *encode.Encoder
	Channel  analyzer.Channel
	API      backend.SessionAPI
	Sink     alerts.Sink
	Settings SettingsSource
	Throttle *throttle.Throttle

	// SendTimeout bounds one analyzer round trip. Defaults to 10s.
	SendTimeout time.Duration
	// InitialBackoff is the first reconnect delay. Defaults to 1s.
	InitialBackoff time.Duration
	// MaxBackoff caps the reconnect backoff. Defaults to 30s.
	MaxBackoff time.Duration
	// OnSessionStart, when set, receives the backend's start result before
	// sampling begins (used to merge remote settings).
	OnSessionStart func(*backend.StartResult)
	// Now overrides the clock, for tests.
	Now func() time.Time
}

// Controller owns the monitoring session lifecycle: it acquires the camera,
// drives the sampling loop, and guarantees resource cleanup on every exit
// path. One controller runs at most one session at a time.
type Controller struct {
	cfg Config

	mu        sync.Mutex
	state     State
	session   *Session
	cancel    context.CancelFunc
	done      chan struct{}
	startDone chan struct{}

	ticks      atomic.Uint64
	tickErrors atomic.Uint64
	reconnects atomic.Uint64
}

// New creates a controller in the Stopped state.
func New(cfg Config) *Controller {
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = analyzer.DefaultTimeout
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = time.Second
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = 30 * time.Second
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.API == nil {
		cfg.API = backend.Local{}
	}
	if cfg.Throttle == nil {
		cfg.Throttle = throttle.New(0)
	}
	return &Controller{cfg: cfg}
}

// Start acquires the camera, opens a backend session, opens the analyzer
// channel and begins sampling. Calling Start while Starting or Active is a
// no-op that returns the current state: rapid double invocation must not
// race two camera acquisitions. Any failure rolls back acquired resources
// and returns to Stopped.
func (c *Controller) Start(ctx context.Context) (State, error) {
	c.mu.Lock()
	switch c.state {
	case StateStarting, StateActive:
		state := c.state
		c.mu.Unlock()
		return state, nil
	case StateStopping:
		c.mu.Unlock()
		return StateStopping, ErrStopping
	}
	c.state = StateStarting
	startDone := make(chan struct{})
	c.startDone = startDone
	c.mu.Unlock()

	// The lock is not held across the blocking acquisition calls, so
	// State/Status stay responsive during a slow start. A concurrent Stop
	// flips the state to Stopping and waits on startDone; we re-check after
	// the resources are up.
	defer close(startDone)

	fail := func(err error) (State, error) {
		c.mu.Lock()
		c.state = StateStopped
		c.startDone = nil
		c.mu.Unlock()
		return StateStopped, err
	}

	if err := c.cfg.Source.Acquire(); err != nil {
		return fail(fmt.Errorf("acquire camera: %w", err))
	}

	res, err := c.cfg.API.StartSession(ctx)
	if err != nil {
		c.cfg.Source.Release()
		return fail(fmt.Errorf("start session: %w", err))
	}

	if err := c.cfg.Channel.Open(ctx); err != nil {
		if endErr := c.cfg.API.EndSession(ctx); endErr != nil {
			log.Printf("[Monitor] Rollback session end failed: %v", endErr)
		}
		c.cfg.Source.Release()
		return fail(fmt.Errorf("open analyzer channel: %w", err))
	}

	c.mu.Lock()
	if c.state != StateStarting {
		// Stop won the race; undo everything acquired above.
		c.mu.Unlock()
		c.cfg.Channel.Close()
		if endErr := c.cfg.API.EndSession(ctx); endErr != nil {
			log.Printf("[Monitor] Rollback session end failed: %v", endErr)
		}
		c.cfg.Source.Release()
		c.mu.Lock()
		c.state = StateStopped
		c.startDone = nil
		c.mu.Unlock()
		return StateStopped, ErrStopping
	}

	if c.cfg.OnSessionStart != nil {
		c.cfg.OnSessionStart(res)
	}

	c.session = &Session{
		SessionID: res.SessionID,
		StartedAt: c.cfg.Now(),
	}
	c.ticks.Store(0)
	c.tickErrors.Store(0)
	c.reconnects.Store(0)

	loopCtx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	c.done = make(chan struct{})
	c.startDone = nil
	c.state = StateActive

	go c.run(loopCtx, c.done, c.session.SessionID)
	c.mu.Unlock()

	log.Printf("[Monitor] Session %s started", res.SessionID)
	return StateActive, nil
}

// Stop ends the active session: it cancels the sampling loop, closes the
// channel, releases the camera and notifies the backend. Idempotent and
// safe when already Stopped. A Stop racing a Start waits for the start
// attempt to resolve, so the camera is always released.
func (c *Controller) Stop(ctx context.Context) error {
	c.mu.Lock()
	if c.state == StateStopped || c.state == StateStopping {
		c.mu.Unlock()
		return nil
	}
	if c.state == StateStarting {
		// Flag the in-flight start; it rolls back its own resources once it
		// notices, and startDone closes when it has finished either way.
		c.state = StateStopping
		started := c.startDone
		c.mu.Unlock()
		if started != nil {
			<-started
		}
		c.mu.Lock()
		if c.state == StateStopping {
			c.state = StateStopped
		}
		c.mu.Unlock()
		return nil
	}
	c.state = StateStopping
	cancel := c.cancel
	done := c.done
	sess := c.session
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}

	if err := c.cfg.Channel.Close(); err != nil {
		log.Printf("[Monitor] Channel close: %v", err)
	}
	c.cfg.Source.Release()

	if err := c.cfg.API.EndSession(ctx); err != nil {
		log.Printf("[Monitor] Session end failed: %v", err)
	}

	c.cfg.Throttle.Reset()

	c.mu.Lock()
	if sess != nil {
		sess.EndedAt = c.cfg.Now()
	}
	c.cancel = nil
	c.done = nil
	c.state = StateStopped
	c.mu.Unlock()

	if sess != nil {
		log.Printf("[Monitor] Session %s stopped", sess.SessionID)
	}
	return nil
}

// State returns the current lifecycle state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Status is a point-in-time snapshot for the status endpoint.
type Status struct {
	State        string         `json:"state"`
	SessionID    string         `json:"session_id,omitempty"`
	StartedAt    *time.Time     `json:"started_at,omitempty"`
	ChannelState string         `json:"channel_state"`
	Ticks        uint64         `json:"ticks"`
	TickErrors   uint64         `json:"tick_errors"`
	Reconnects   uint64         `json:"reconnects"`
	AlertCounts  map[string]int `json:"alert_counts"`
}

// Status reports the controller's current state and counters.
func (c *Controller) Status() Status {
	c.mu.Lock()
	st := Status{
		State:        c.state.String(),
		ChannelState: c.cfg.Channel.State().String(),
		Ticks:        c.ticks.Load(),
		TickErrors:   c.tickErrors.Load(),
		Reconnects:   c.reconnects.Load(),
	}
	if c.session != nil {
		st.SessionID = c.session.SessionID
		started := c.session.StartedAt
		st.StartedAt = &started
	}
	c.mu.Unlock()

	st.AlertCounts = make(map[string]int)
	for cat, n := range c.cfg.Throttle.Counts() {
		st.AlertCounts[cat.String()] = n
	}
	return st
}

// Snapshot encodes the most recent camera frame as a JPEG, independent of
// the sampling loop. Returns capture.ErrNotReady when no session is active
// or no frame has arrived yet.
func (c *Controller) Snapshot() ([]byte, error) {
	frame, err := c.cfg.Source.CurrentFrame()
	if err != nil {
		return nil, err
	}
	return c.cfg.Encoder.Encode(frame, c.cfg.Settings.Current().JPEGQuality)
}

// run is the sampling loop. Ticks never overlap: each capture→encode→send→
// classify→throttle pipeline completes before the next tick fires, so a
// slow analyzer naturally throttles the sampling rate.
func (c *Controller) run(ctx context.Context, done chan struct{}, sessionID string) {
	defer close(done)

	interval := c.cfg.Settings.Current().SampleInterval
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.tick(ctx, sessionID)

			// Pick up interval edits without restarting the session.
			if next := c.cfg.Settings.Current().SampleInterval; next != interval {
				interval = next
				ticker.Reset(interval)
			}
		}
	}
}

// tick runs one sampling iteration. Per-tick errors are counted and logged
// but never end the session; the next tick is attempted normally.
func (c *Controller) tick(ctx context.Context, sessionID string) {
	c.ticks.Add(1)

	cfg := c.cfg.Settings.Current()
	c.cfg.Throttle.SetCooldown(cfg.Cooldown)

	frame, err := c.cfg.Source.CurrentFrame()
	if err != nil {
		if !errors.Is(err, capture.ErrNotReady) {
			log.Printf("[Monitor] Frame capture: %v", err)
		}
		c.tickErrors.Add(1)
		return
	}

	payload, err := c.cfg.Encoder.Encode(frame, cfg.JPEGQuality)
	if err != nil {
		// Degenerate frames are expected while the camera warms up; the
		// tick is skipped, not retried.
		if !errors.Is(err, encode.ErrEmptyFrame) {
			log.Printf("[Monitor] Encode: %v", err)
			c.tickErrors.Add(1)
		}
		return
	}

	sendCtx, cancel := context.WithTimeout(ctx, c.cfg.SendTimeout)
	result, err := c.cfg.Channel.Send(sendCtx, payload)
	cancel()

	// A response that lands after Stop has cancelled the loop must not
	// trigger alerts or state transitions.
	if ctx.Err() != nil {
		return
	}

	if err != nil {
		c.tickErrors.Add(1)
		if analyzer.IsTransportError(err) {
			c.reconnect(ctx)
			return
		}
		log.Printf("[Monitor] Analyzer: %v", err)
		return
	}

	category := classify.Classify(result, cfg.Thresholds)
	now := c.cfg.Now()
	if !c.cfg.Throttle.Offer(category, now) {
		return
	}

	alert := alerts.New(sessionID, category, cfg.AlertMethod, now)
	c.cfg.Sink.Notify(ctx, alert)
}

// reconnect pauses sampling and reopens the channel with exponential
// backoff until it succeeds or the session ends. The "reconnecting" signal
// is logged once per attempt, never once per tick.
func (c *Controller) reconnect(ctx context.Context) {
	backoff := c.cfg.InitialBackoff

	for {
		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}

		c.reconnects.Add(1)
		log.Printf("[Monitor] Reconnecting to analyzer (backoff %s)", backoff)

		c.cfg.Channel.Close()
		if err := c.cfg.Channel.Open(ctx); err == nil {
			log.Printf("[Monitor] Analyzer channel reopened")
			return
		}

		backoff *= 2
		if backoff > c.cfg.MaxBackoff {
			backoff = c.cfg.MaxBackoff
		}
	}
}
