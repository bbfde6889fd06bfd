package alerts

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"

	"vigil/internal/classify"
)

// Alert is one de-duplicated, user-visible notification.
type Alert struct {
	ID        string            `json:"id"`
	SessionID string            `json:"session_id,omitempty"`
	Category  classify.Category `json:"-"`
	Type      string            `json:"type"`    // wire category: "eye" or "posture"
	Message   string            `json:"message"` // user-facing text
	Method    string            `json:"method"`  // presentation: "audio" or "silent"
	At        time.Time         `json:"at"`
}

// New builds an alert for a category with the product's message text.
// Method is the configured presentation method ("audio" or "silent").
func New(sessionID string, c classify.Category, method string, at time.Time) *Alert {
	return &Alert{
		ID:        uuid.NewString(),
		SessionID: sessionID,
		Category:  c,
		Type:      WireType(c),
		Message:   Message(c),
		Method:    method,
		At:        at,
	}
}

// WireType maps a category onto the backend alert taxonomy.
func WireType(c classify.Category) string {
	if c == classify.EyeClosed {
		return "eye"
	}
	return "posture"
}

// Message returns the user-facing text for a category.
func Message(c classify.Category) string {
	switch c {
	case classify.EyeClosed:
		return "Close your eyes for a moment"
	case classify.LateralTilt:
		return "Sit up straight"
	case classify.HeadDroop:
		return "Keep your head level"
	case classify.TooClose:
		return "Move back from the screen"
	default:
		return ""
	}
}

// Sink receives emitted alerts. Implementations must never block the
// sampling loop on failure.
type Sink interface {
	Notify(ctx context.Context, a *Alert)
}

// Multi fans one alert out to several sinks in order.
type Multi []Sink

func (m Multi) Notify(ctx context.Context, a *Alert) {
	for _, s := range m {
		s.Notify(ctx, a)
	}
}

// LogSink writes alerts to the process log.
type LogSink struct{}

func (LogSink) Notify(_ context.Context, a *Alert) {
	log.Printf("[Alert] %s: %s", a.Category, a.Message)
}

// AlertPoster posts an alert type to the report backend.
type AlertPoster interface {
	PostAlert(ctx context.Context, alertType string) (string, error)
}

// APISink forwards alerts to the report backend fire-and-forget. Failures
// are logged and never abort the monitoring loop.
type APISink struct {
	Poster AlertPoster
}

func (s *APISink) Notify(ctx context.Context, a *Alert) {
	if s.Poster == nil {
		return
	}
	if _, err := s.Poster.PostAlert(ctx, a.Type); err != nil {
		log.Printf("[Alert] Failed to post %s alert: %v", a.Type, err)
	}
}

// Recorder persists alert events locally.
type Recorder interface {
	RecordAlert(id, sessionID, category string, at time.Time) error
}

// JournalSink writes emitted alerts to the local journal.
type JournalSink struct {
	Recorder Recorder
}

func (s *JournalSink) Notify(_ context.Context, a *Alert) {
	if s.Recorder == nil {
		return
	}
	if err := s.Recorder.RecordAlert(a.ID, a.SessionID, a.Category.String(), a.At); err != nil {
		log.Printf("[Alert] Failed to journal alert: %v", err)
	}
}

var (
	_ Sink = (Multi)(nil)
	_ Sink = LogSink{}
	_ Sink = (*APISink)(nil)
	_ Sink = (*JournalSink)(nil)
)
