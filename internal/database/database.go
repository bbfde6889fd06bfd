package database

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// Database handles SQLite database operations
type Database struct {
	db *sql.DB
}

// SettingsRecord is the single-row user settings table.
type SettingsRecord struct {
	AlertMethod      string // "audio" or "silent"
	EyeConfidence    float64
	RollDeg          float64
	YawDeg           float64
	PitchDeg         float64
	Proximity        float64
	SampleIntervalMs int
	JPEGQuality      float64
	CooldownSeconds  int
	UpdatedAt        time.Time
}

// AlertEventRecord is one journaled alert emission.
type AlertEventRecord struct {
	ID          string
	SessionID   string
	Category    string
	TriggeredAt time.Time
}

// New creates a new database connection
func New(dbPath string) (*Database, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Enable WAL mode for better concurrent access
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	return &Database{db: db}, nil
}

// Close closes the database connection
func (d *Database) Close() error {
	return d.db.Close()
}

// Migrate runs database migrations
func (d *Database) Migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS user_settings (
			id INTEGER PRIMARY KEY CHECK (id = 1),
			alert_method TEXT NOT NULL DEFAULT 'audio',
			eye_confidence REAL NOT NULL,
			roll_deg REAL NOT NULL,
			yaw_deg REAL NOT NULL,
			pitch_deg REAL NOT NULL,
			proximity REAL NOT NULL,
			sample_interval_ms INTEGER NOT NULL,
			jpeg_quality REAL NOT NULL,
			cooldown_seconds INTEGER NOT NULL,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS alert_events (
			id TEXT PRIMARY KEY,
			session_id TEXT,
			category TEXT NOT NULL,
			triggered_at DATETIME NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_alerts_time ON alert_events(triggered_at DESC)`,
	}

	for _, migration := range migrations {
		if _, err := d.db.Exec(migration); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}
	return nil
}

// GetSettings retrieves the settings row, or nil if none has been saved.
func (d *Database) GetSettings() (*SettingsRecord, error) {
	query := `SELECT alert_method, eye_confidence, roll_deg, yaw_deg, pitch_deg,
		proximity, sample_interval_ms, jpeg_quality, cooldown_seconds, updated_at
		FROM user_settings WHERE id = 1`

	var rec SettingsRecord
	err := d.db.QueryRow(query).Scan(
		&rec.AlertMethod, &rec.EyeConfidence, &rec.RollDeg, &rec.YawDeg,
		&rec.PitchDeg, &rec.Proximity, &rec.SampleIntervalMs, &rec.JPEGQuality,
		&rec.CooldownSeconds, &rec.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get settings: %w", err)
	}
	return &rec, nil
}

// SaveSettings inserts or updates the settings row.
func (d *Database) SaveSettings(rec *SettingsRecord) error {
	query := `INSERT INTO user_settings (id, alert_method, eye_confidence, roll_deg,
			yaw_deg, pitch_deg, proximity, sample_interval_ms, jpeg_quality,
			cooldown_seconds, updated_at)
		VALUES (1, ?, ?, ?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(id) DO UPDATE SET
			alert_method = excluded.alert_method,
			eye_confidence = excluded.eye_confidence,
			roll_deg = excluded.roll_deg,
			yaw_deg = excluded.yaw_deg,
			pitch_deg = excluded.pitch_deg,
			proximity = excluded.proximity,
			sample_interval_ms = excluded.sample_interval_ms,
			jpeg_quality = excluded.jpeg_quality,
			cooldown_seconds = excluded.cooldown_seconds,
			updated_at = CURRENT_TIMESTAMP`

	_, err := d.db.Exec(query, rec.AlertMethod, rec.EyeConfidence, rec.RollDeg,
		rec.YawDeg, rec.PitchDeg, rec.Proximity, rec.SampleIntervalMs,
		rec.JPEGQuality, rec.CooldownSeconds)
	if err != nil {
		return fmt.Errorf("failed to save settings: %w", err)
	}
	return nil
}

// RecordAlert journals one emitted alert.
func (d *Database) RecordAlert(id, sessionID, category string, at time.Time) error {
	query := `INSERT INTO alert_events (id, session_id, category, triggered_at)
		VALUES (?, ?, ?, ?)`

	_, err := d.db.Exec(query, id, sessionID, category, at)
	if err != nil {
		return fmt.Errorf("failed to record alert: %w", err)
	}
	return nil
}

// ListAlerts returns journaled alerts, newest first.
func (d *Database) ListAlerts(since *time.Time, limit int) ([]*AlertEventRecord, error) {
	query := `SELECT id, session_id, category, triggered_at FROM alert_events`
	args := []interface{}{}

	if since != nil {
		query += ` WHERE triggered_at >= ?`
		args = append(args, *since)
	}
	query += ` ORDER BY triggered_at DESC`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := d.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list alerts: %w", err)
	}
	defer rows.Close()

	var events []*AlertEventRecord
	for rows.Next() {
		var rec AlertEventRecord
		var sessionID sql.NullString
		if err := rows.Scan(&rec.ID, &sessionID, &rec.Category, &rec.TriggeredAt); err != nil {
			return nil, fmt.Errorf("failed to scan alert: %w", err)
		}
		rec.SessionID = sessionID.String
		events = append(events, &rec)
	}
	return events, rows.Err()
}

// DeleteOldAlerts removes journal entries older than the given time.
func (d *Database) DeleteOldAlerts(before time.Time) (int64, error) {
	result, err := d.db.Exec(`DELETE FROM alert_events WHERE triggered_at < ?`, before)
	if err != nil {
		return 0, fmt.Errorf("failed to delete old alerts: %w", err)
	}
	return result.RowsAffected()
}
