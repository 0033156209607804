// Package store provides SQLite persistence for reminder settings, reminder
// logs, and water intake records.
package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3" // sqlite3 driver
	"github.com/rs/zerolog"
)

// DB wraps the SQLite connection.
type DB struct {
	*sql.DB
	logger zerolog.Logger
}

// NewDB opens the database at path and bootstraps the schema.
func NewDB(path string, logger zerolog.Logger) (*DB, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	// WAL mode and a busy timeout keep the dispatcher and the API from
	// tripping over each other on write locks.
	dsn := path + "?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	instance := &DB{
		DB:     db,
		logger: logger.With().Str("component", "store").Logger(),
	}

	if err := instance.createTables(); err != nil {
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	instance.logger.Info().Str("path", path).Msg("database initialized")
	return instance, nil
}

func (db *DB) createTables() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS reminder_settings (
			user_id INTEGER PRIMARY KEY,
			enabled BOOLEAN NOT NULL DEFAULT 1,
			active_start TEXT NOT NULL DEFAULT '08:00',
			active_end TEXT NOT NULL DEFAULT '22:00',
			quiet_start TEXT NOT NULL DEFAULT '22:00',
			quiet_end TEXT NOT NULL DEFAULT '08:00',
			interval_minutes INTEGER NOT NULL DEFAULT 90,
			smart_mode BOOLEAN NOT NULL DEFAULT 0,
			weekend_enabled BOOLEAN NOT NULL DEFAULT 1,
			channels TEXT NOT NULL DEFAULT 'push',
			intensity TEXT NOT NULL DEFAULT 'medium',
			daily_goal_ml REAL NOT NULL DEFAULT 2000,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS reminder_logs (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id INTEGER NOT NULL,
			scheduled_at DATETIME NOT NULL,
			sent_at DATETIME,
			responded_at DATETIME,
			status TEXT NOT NULL DEFAULT 'scheduled',
			channel TEXT NOT NULL,
			message TEXT NOT NULL,
			response_action TEXT,
			amount_logged_ml REAL,
			fail_reason TEXT,
			deleted BOOLEAN NOT NULL DEFAULT 0,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_reminder_logs_user_scheduled
			ON reminder_logs(user_id, scheduled_at)`,
		`CREATE INDEX IF NOT EXISTS idx_reminder_logs_status_scheduled
			ON reminder_logs(status, scheduled_at)`,
		`CREATE TABLE IF NOT EXISTS water_intakes (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id INTEGER NOT NULL,
			amount_ml REAL NOT NULL,
			taken_at DATETIME NOT NULL,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_water_intakes_user_taken
			ON water_intakes(user_id, taken_at)`,
	}

	for _, q := range queries {
		if _, err := db.Exec(q); err != nil {
			return err
		}
	}
	return nil
}
