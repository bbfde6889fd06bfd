package database

import (
	"path/filepath"
	"testing"
	"time"
)

func testDB(t *testing.T) *Database {
	t.Helper()
	db, err := New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := db.Migrate(); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func TestSettings_EmptyReturnsNil(t *testing.T) {
	db := testDB(t)

	rec, err := db.GetSettings()
	if err != nil {
		t.Fatalf("get settings: %v", err)
	}
	if rec != nil {
		t.Errorf("expected nil before first save, got %+v", rec)
	}
}

func TestSettings_SaveAndGet(t *testing.T) {
	db := testDB(t)

	in := &SettingsRecord{
		AlertMethod:      "silent",
		EyeConfidence:    0.6,
		RollDeg:          25,
		YawDeg:           25,
		PitchDeg:         25,
		Proximity:        0.45,
		SampleIntervalMs: 2000,
		JPEGQuality:      0.7,
		CooldownSeconds:  8,
	}
	if err := db.SaveSettings(in); err != nil {
		t.Fatalf("save: %v", err)
	}

	rec, err := db.GetSettings()
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if rec == nil {
		t.Fatal("expected a settings row")
	}
	if rec.AlertMethod != "silent" || rec.RollDeg != 25 || rec.SampleIntervalMs != 2000 {
		t.Errorf("unexpected record: %+v", rec)
	}

	// Second save updates the single row in place.
	in.RollDeg = 30
	if err := db.SaveSettings(in); err != nil {
		t.Fatalf("second save: %v", err)
	}
	rec, err = db.GetSettings()
	if err != nil {
		t.Fatalf("get after update: %v", err)
	}
	if rec.RollDeg != 30 {
		t.Errorf("expected updated roll 30, got %v", rec.RollDeg)
	}
}

func TestAlerts_RecordAndList(t *testing.T) {
	db := testDB(t)
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	events := []struct {
		id       string
		category string
		at       time.Time
	}{
		{"a1", "lateral_tilt", base},
		{"a2", "eye_closed", base.Add(time.Minute)},
		{"a3", "too_close", base.Add(2 * time.Minute)},
	}
	for _, e := range events {
		if err := db.RecordAlert(e.id, "sess-1", e.category, e.at); err != nil {
			t.Fatalf("record %s: %v", e.id, err)
		}
	}

	got, err := db.ListAlerts(nil, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 alerts, got %d", len(got))
	}
	if got[0].ID != "a3" || got[2].ID != "a1" {
		t.Errorf("expected newest first, got %s..%s", got[0].ID, got[2].ID)
	}
	if got[0].SessionID != "sess-1" || got[0].Category != "too_close" {
		t.Errorf("unexpected record: %+v", got[0])
	}
}

func TestAlerts_ListSinceAndLimit(t *testing.T) {
	db := testDB(t)
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	for i, id := range []string{"a1", "a2", "a3", "a4"} {
		if err := db.RecordAlert(id, "", "head_droop", base.Add(time.Duration(i)*time.Minute)); err != nil {
			t.Fatalf("record: %v", err)
		}
	}

	since := base.Add(90 * time.Second)
	got, err := db.ListAlerts(&since, 0)
	if err != nil {
		t.Fatalf("list since: %v", err)
	}
	if len(got) != 2 {
		t.Errorf("expected 2 alerts since cutoff, got %d", len(got))
	}

	got, err = db.ListAlerts(nil, 1)
	if err != nil {
		t.Fatalf("list limit: %v", err)
	}
	if len(got) != 1 || got[0].ID != "a4" {
		t.Errorf("expected only the newest alert, got %+v", got)
	}
}

func TestAlerts_DeleteOld(t *testing.T) {
	db := testDB(t)
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	db.RecordAlert("old", "", "eye_closed", base)
	db.RecordAlert("new", "", "eye_closed", base.Add(time.Hour))

	n, err := db.DeleteOldAlerts(base.Add(30 * time.Minute))
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if n != 1 {
		t.Errorf("expected 1 deleted, got %d", n)
	}

	got, _ := db.ListAlerts(nil, 0)
	if len(got) != 1 || got[0].ID != "new" {
		t.Errorf("expected only the new alert to remain, got %+v", got)
	}
}
