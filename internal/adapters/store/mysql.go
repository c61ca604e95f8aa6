package store

import (
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

var mysqlDialect = dialect{
	name: "mysql",
	schema: []string{
		`CREATE TABLE IF NOT EXISTS contacts (
			email VARCHAR(255) PRIMARY KEY,
			name VARCHAR(255) NOT NULL DEFAULT '',
			vendor_category VARCHAR(255) NOT NULL DEFAULT '',
			status VARCHAR(64) NOT NULL DEFAULT '',
			seen_count INT NOT NULL DEFAULT 0,
			click_count INT NOT NULL DEFAULT 0,
			has_opened BOOLEAN NOT NULL DEFAULT FALSE,
			has_clicked BOOLEAN NOT NULL DEFAULT FALSE,
			has_replied BOOLEAN NOT NULL DEFAULT FALSE,
			last_seen_at DATETIME(6) NULL,
			last_click_at DATETIME(6) NULL,
			reply_date DATETIME(6) NULL
		)`,
		`CREATE TABLE IF NOT EXISTS email_tracking_events (
			id CHAR(36) PRIMARY KEY,
			event_type VARCHAR(32) NOT NULL,
			email VARCHAR(255) NOT NULL,
			metadata TEXT NOT NULL,
			created_at DATETIME(6) NOT NULL,
			INDEX idx_events_email (email)
		)`,
	},
	upsert: `INSERT INTO contacts (` + contactColumns + `)
		VALUES (:email, :name, :vendor_category, :status, :seen_count, :click_count,
			:has_opened, :has_clicked, :has_replied, :last_seen_at, :last_click_at, :reply_date)
		ON DUPLICATE KEY UPDATE
			name = VALUES(name),
			vendor_category = VALUES(vendor_category),
			status = VALUES(status),
			seen_count = VALUES(seen_count),
			click_count = VALUES(click_count),
			has_opened = VALUES(has_opened),
			has_clicked = VALUES(has_clicked),
			has_replied = VALUES(has_replied),
			last_seen_at = VALUES(last_seen_at),
			last_click_at = VALUES(last_click_at),
			reply_date = VALUES(reply_date)`,
}

// NewMySQLStore connects to a MySQL contact store. The DSN must enable parseTime.
func NewMySQLStore(dsn string, logger *zap.Logger) (*SQLStore, error) {
	db, err := sqlx.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open MySQL database: %w", err)
	}

	db.SetConnMaxLifetime(3 * time.Minute)
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)

	// Test the connection
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to MySQL database: %w", err)
	}

	return newSQLStore(db, mysqlDialect, logger)
}
