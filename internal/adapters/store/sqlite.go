package store

import (
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

var sqliteDialect = dialect{
	name: "sqlite",
	schema: []string{
		`CREATE TABLE IF NOT EXISTS contacts (
			email TEXT PRIMARY KEY,
			name TEXT NOT NULL DEFAULT '',
			vendor_category TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL DEFAULT '',
			seen_count INTEGER NOT NULL DEFAULT 0,
			click_count INTEGER NOT NULL DEFAULT 0,
			has_opened BOOLEAN NOT NULL DEFAULT 0,
			has_clicked BOOLEAN NOT NULL DEFAULT 0,
			has_replied BOOLEAN NOT NULL DEFAULT 0,
			last_seen_at DATETIME,
			last_click_at DATETIME,
			reply_date DATETIME
		)`,
		`CREATE TABLE IF NOT EXISTS email_tracking_events (
			id TEXT PRIMARY KEY,
			event_type TEXT NOT NULL,
			email TEXT NOT NULL,
			metadata TEXT NOT NULL,
			created_at DATETIME NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_events_email ON email_tracking_events(email)`,
	},
	upsert: `INSERT INTO contacts (` + contactColumns + `)
		VALUES (:email, :name, :vendor_category, :status, :seen_count, :click_count,
			:has_opened, :has_clicked, :has_replied, :last_seen_at, :last_click_at, :reply_date)
		ON CONFLICT(email) DO UPDATE SET
			name = excluded.name,
			vendor_category = excluded.vendor_category,
			status = excluded.status,
			seen_count = excluded.seen_count,
			click_count = excluded.click_count,
			has_opened = excluded.has_opened,
			has_clicked = excluded.has_clicked,
			has_replied = excluded.has_replied,
			last_seen_at = excluded.last_seen_at,
			last_click_at = excluded.last_click_at,
			reply_date = excluded.reply_date`,
}

// NewSQLiteStore opens (or creates) a SQLite contact store
func NewSQLiteStore(dbPath string, logger *zap.Logger) (*SQLStore, error) {
	db, err := sqlx.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}

	// A single connection keeps ":memory:" databases shared and serializes writers
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	return newSQLStore(db, sqliteDialect, logger)
}
