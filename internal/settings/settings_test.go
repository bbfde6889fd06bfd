package settings

import (
	"path/filepath"
	"testing"
	"time"

	"vigil/internal/backend"
	"vigil/internal/database"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	db, err := database.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := db.Migrate(); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	store, err := NewStore(db)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	return store
}

func TestNewStore_SeedsDefaults(t *testing.T) {
	s := testStore(t)

	got := s.Current()
	def := Defaults()
	if got.AlertMethod != def.AlertMethod {
		t.Errorf("alert method %q, want %q", got.AlertMethod, def.AlertMethod)
	}
	if got.Thresholds != def.Thresholds {
		t.Errorf("thresholds %+v, want %+v", got.Thresholds, def.Thresholds)
	}
	if got.SampleInterval != def.SampleInterval || got.Cooldown != def.Cooldown {
		t.Errorf("intervals %v/%v, want %v/%v", got.SampleInterval, got.Cooldown, def.SampleInterval, def.Cooldown)
	}
}

func TestStore_SaveIsVisibleImmediately(t *testing.T) {
	s := testStore(t)

	in := s.Current()
	in.Thresholds.RollDeg = 30
	in.SampleInterval = 3 * time.Second
	in.AlertMethod = MethodSilent
	if err := s.Save(in); err != nil {
		t.Fatalf("save: %v", err)
	}

	got := s.Current()
	if got.Thresholds.RollDeg != 30 {
		t.Errorf("roll threshold %v, want 30", got.Thresholds.RollDeg)
	}
	if got.SampleInterval != 3*time.Second {
		t.Errorf("sample interval %v, want 3s", got.SampleInterval)
	}
	if got.AlertMethod != MethodSilent {
		t.Errorf("alert method %q, want silent", got.AlertMethod)
	}
}

func TestStore_InvalidValuesFallBack(t *testing.T) {
	s := testStore(t)

	in := s.Current()
	in.AlertMethod = "shout"
	in.SampleInterval = 5 * time.Millisecond
	in.JPEGQuality = 3
	in.Cooldown = 0
	if err := s.Save(in); err != nil {
		t.Fatalf("save: %v", err)
	}

	got := s.Current()
	def := Defaults()
	if got.AlertMethod != def.AlertMethod {
		t.Errorf("invalid method should fall back, got %q", got.AlertMethod)
	}
	if got.SampleInterval != def.SampleInterval {
		t.Errorf("too-small interval should fall back, got %v", got.SampleInterval)
	}
	if got.JPEGQuality != def.JPEGQuality {
		t.Errorf("out-of-range quality should fall back, got %v", got.JPEGQuality)
	}
	if got.Cooldown != def.Cooldown {
		t.Errorf("zero cooldown should fall back, got %v", got.Cooldown)
	}
}

func TestStore_ApplyRemote(t *testing.T) {
	s := testStore(t)

	// The backend speaks "music"/"silence", not the local vocabulary.
	err := s.ApplyRemote(&backend.RemoteSettings{
		AlertMethod: "silence",
		Roll:        35,
		Yaw:         40,
	})
	if err != nil {
		t.Fatalf("apply remote: %v", err)
	}

	got := s.Current()
	if got.AlertMethod != MethodSilent {
		t.Errorf("alert method %q, want silent", got.AlertMethod)
	}
	if got.Thresholds.RollDeg != 35 || got.Thresholds.YawDeg != 40 {
		t.Errorf("thresholds %+v, want roll 35 yaw 40", got.Thresholds)
	}
	// Untouched values keep their local settings.
	if got.Thresholds.PitchDeg != Defaults().Thresholds.PitchDeg {
		t.Errorf("pitch should be unchanged, got %v", got.Thresholds.PitchDeg)
	}
}

func TestStore_ApplyRemoteMethodVocabulary(t *testing.T) {
	tests := []struct {
		remote string
		want   string
	}{
		{"music", MethodAudio},
		{"silence", MethodSilent},
		{MethodAudio, MethodAudio},
		{MethodSilent, MethodSilent},
	}
	for _, tt := range tests {
		t.Run(tt.remote, func(t *testing.T) {
			s := testStore(t)
			if err := s.ApplyRemote(&backend.RemoteSettings{AlertMethod: tt.remote}); err != nil {
				t.Fatalf("apply remote: %v", err)
			}
			if got := s.Current().AlertMethod; got != tt.want {
				t.Errorf("remote method %q applied as %q, want %q", tt.remote, got, tt.want)
			}
		})
	}

	// Unknown vocabulary must not clobber the local method.
	s := testStore(t)
	if err := s.ApplyRemote(&backend.RemoteSettings{AlertMethod: "shout"}); err != nil {
		t.Fatalf("apply remote: %v", err)
	}
	if got := s.Current().AlertMethod; got != Defaults().AlertMethod {
		t.Errorf("unknown remote method applied as %q, want default kept", got)
	}
}

func TestStore_ApplyRemoteNilAndZero(t *testing.T) {
	s := testStore(t)

	if err := s.ApplyRemote(nil); err != nil {
		t.Fatalf("nil remote: %v", err)
	}
	if err := s.ApplyRemote(&backend.RemoteSettings{}); err != nil {
		t.Fatalf("zero remote: %v", err)
	}

	if s.Current().Thresholds != Defaults().Thresholds {
		t.Errorf("zero remote values must not clobber local thresholds")
	}
}
