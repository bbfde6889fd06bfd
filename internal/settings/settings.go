package settings

import (
	"fmt"
	"log"
	"time"

	"vigil/internal/backend"
	"vigil/internal/classify"
	"vigil/internal/database"
)

// Alert presentation methods.
const (
	MethodAudio  = "audio"
	MethodSilent = "silent"
)

// Settings are the user-configurable monitoring knobs. The controller reads
// them fresh on every tick so edits apply without a session restart.
type Settings struct {
	AlertMethod    string
	Thresholds     classify.Thresholds
	SampleInterval time.Duration
	JPEGQuality    float64
	Cooldown       time.Duration
}

// Defaults returns the product default settings.
func Defaults() Settings {
	return Settings{
		AlertMethod:    MethodAudio,
		Thresholds:     classify.DefaultThresholds(),
		SampleInterval: 2 * time.Second,
		JPEGQuality:    0.7,
		Cooldown:       8 * time.Second,
	}
}

// Store persists settings in the local database and serves the fresh-read
// contract of the sampling loop.
type Store struct {
	db *database.Database
}

// NewStore wraps a migrated database and seeds defaults on first run.
func NewStore(db *database.Database) (*Store, error) {
	s := &Store{db: db}

	rec, err := db.GetSettings()
	if err != nil {
		return nil, err
	}
	if rec == nil {
		if err := s.Save(Defaults()); err != nil {
			return nil, fmt.Errorf("seed default settings: %w", err)
		}
		log.Printf("[Settings] Seeded defaults")
	}
	return s, nil
}

// Current reads the settings row. Invalid or missing values fall back to
// defaults so a damaged row cannot stall monitoring.
func (s *Store) Current() Settings {
	def := Defaults()

	rec, err := s.db.GetSettings()
	if err != nil || rec == nil {
		if err != nil {
			log.Printf("[Settings] Read failed, using defaults: %v", err)
		}
		return def
	}

	out := Settings{
		AlertMethod: rec.AlertMethod,
		Thresholds: classify.Thresholds{
			EyeConfidence: rec.EyeConfidence,
			RollDeg:       rec.RollDeg,
			YawDeg:        rec.YawDeg,
			PitchDeg:      rec.PitchDeg,
			Proximity:     rec.Proximity,
		},
		SampleInterval: time.Duration(rec.SampleIntervalMs) * time.Millisecond,
		JPEGQuality:    rec.JPEGQuality,
		Cooldown:       time.Duration(rec.CooldownSeconds) * time.Second,
	}

	if out.AlertMethod != MethodAudio && out.AlertMethod != MethodSilent {
		out.AlertMethod = def.AlertMethod
	}
	if out.SampleInterval < 200*time.Millisecond {
		out.SampleInterval = def.SampleInterval
	}
	if out.JPEGQuality <= 0 || out.JPEGQuality > 1 {
		out.JPEGQuality = def.JPEGQuality
	}
	if out.Cooldown <= 0 {
		out.Cooldown = def.Cooldown
	}
	return out
}

// Save writes the settings row.
func (s *Store) Save(in Settings) error {
	rec := &database.SettingsRecord{
		AlertMethod:      in.AlertMethod,
		EyeConfidence:    in.Thresholds.EyeConfidence,
		RollDeg:          in.Thresholds.RollDeg,
		YawDeg:           in.Thresholds.YawDeg,
		PitchDeg:         in.Thresholds.PitchDeg,
		Proximity:        in.Thresholds.Proximity,
		SampleIntervalMs: int(in.SampleInterval / time.Millisecond),
		JPEGQuality:      in.JPEGQuality,
		CooldownSeconds:  int(in.Cooldown / time.Second),
	}
	return s.db.SaveSettings(rec)
}

// ApplyRemote merges threshold values handed out by the backend at session
// start into the local store. Zero values are ignored.
func (s *Store) ApplyRemote(remote *backend.RemoteSettings) error {
	if remote == nil {
		return nil
	}

	cur := s.Current()
	if m := normalizeMethod(remote.AlertMethod); m != "" {
		cur.AlertMethod = m
	}
	if remote.Roll > 0 {
		cur.Thresholds.RollDeg = remote.Roll
	}
	if remote.Yaw > 0 {
		cur.Thresholds.YawDeg = remote.Yaw
	}
	if remote.Pitch > 0 {
		cur.Thresholds.PitchDeg = remote.Pitch
	}
	return s.Save(cur)
}

// normalizeMethod maps the backend's alert-method vocabulary ("music",
// "silence") onto the local one. Local spellings pass through; anything
// else returns "".
func normalizeMethod(m string) string {
	switch m {
	case "music", MethodAudio:
		return MethodAudio
	case "silence", MethodSilent:
		return MethodSilent
	default:
		return ""
	}
}
