package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/mikey/outreach-tracker/internal/core"
	"go.uber.org/zap"
)

const contactColumns = `email, name, vendor_category, status, seen_count, click_count,
	has_opened, has_clicked, has_replied, last_seen_at, last_click_at, reply_date`

// dialect carries the statements that differ between SQL backends
type dialect struct {
	name   string
	schema []string
	upsert string
}

// SQLStore is a TrackingStore backed by a SQL database
type SQLStore struct {
	db      *sqlx.DB
	dialect dialect
	logger  *zap.Logger
}

type eventRow struct {
	ID        string    `db:"id"`
	EventType string    `db:"event_type"`
	Email     string    `db:"email"`
	Metadata  string    `db:"metadata"`
	CreatedAt time.Time `db:"created_at"`
}

func newSQLStore(db *sqlx.DB, d dialect, logger *zap.Logger) (*SQLStore, error) {
	for _, stmt := range d.schema {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to apply %s schema: %w", d.name, err)
		}
	}

	return &SQLStore{db: db, dialect: d, logger: logger}, nil
}

// GetByEmail retrieves a contact by address
func (s *SQLStore) GetByEmail(ctx context.Context, email string) (*core.TrackedContact, error) {
	var contact core.TrackedContact
	err := s.db.GetContext(ctx, &contact,
		`SELECT `+contactColumns+` FROM contacts WHERE email = ?`, email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, core.ErrContactNotFound
		}
		return nil, fmt.Errorf("failed to query contact: %w", err)
	}
	return &contact, nil
}

// MarkReplied sets the replied flag and reply date
func (s *SQLStore) MarkReplied(ctx context.Context, email string, at time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE contacts SET has_replied = ?, reply_date = ? WHERE email = ?`,
		true, at.UTC(), email)
	if err != nil {
		return fmt.Errorf("failed to mark contact replied: %w", err)
	}
	return s.checkAffected(ctx, res, email)
}

// MarkRepliedBatch marks every existing address as replied
func (s *SQLStore) MarkRepliedBatch(ctx context.Context, emails []string, at time.Time) ([]core.TrackedContact, error) {
	if len(emails) == 0 {
		return []core.TrackedContact{}, nil
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query, args, err := sqlx.In(
		`UPDATE contacts SET has_replied = ?, reply_date = ? WHERE email IN (?)`,
		true, at.UTC(), emails)
	if err != nil {
		return nil, fmt.Errorf("failed to build batch update: %w", err)
	}
	if _, err := tx.ExecContext(ctx, tx.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("failed to mark contacts replied: %w", err)
	}

	query, args, err = sqlx.In(
		`SELECT `+contactColumns+` FROM contacts WHERE email IN (?) ORDER BY email`, emails)
	if err != nil {
		return nil, fmt.Errorf("failed to build batch select: %w", err)
	}
	updated := []core.TrackedContact{}
	if err := tx.SelectContext(ctx, &updated, tx.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("failed to load updated contacts: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit batch update: %w", err)
	}
	return updated, nil
}

// RecordOpen increments the seen counter
func (s *SQLStore) RecordOpen(ctx context.Context, email string, at time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE contacts SET seen_count = seen_count + 1, last_seen_at = ?, has_opened = ? WHERE email = ?`,
		at.UTC(), true, email)
	if err != nil {
		return fmt.Errorf("failed to record open: %w", err)
	}
	return s.checkAffected(ctx, res, email)
}

// RecordClick increments the click counter
func (s *SQLStore) RecordClick(ctx context.Context, email string, at time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE contacts SET click_count = click_count + 1, last_click_at = ?, has_clicked = ? WHERE email = ?`,
		at.UTC(), true, email)
	if err != nil {
		return fmt.Errorf("failed to record click: %w", err)
	}
	return s.checkAffected(ctx, res, email)
}

// List returns all contacts ordered by address
func (s *SQLStore) List(ctx context.Context) ([]core.TrackedContact, error) {
	contacts := []core.TrackedContact{}
	if err := s.db.SelectContext(ctx, &contacts,
		`SELECT `+contactColumns+` FROM contacts ORDER BY email`); err != nil {
		return nil, fmt.Errorf("failed to list contacts: %w", err)
	}
	return contacts, nil
}

// Upsert inserts or replaces a contact
func (s *SQLStore) Upsert(ctx context.Context, contact *core.TrackedContact) error {
	c := *contact
	c.Email = core.NormalizeEmail(c.Email)
	if c.Email == "" {
		return fmt.Errorf("contact email must not be empty")
	}
	if _, err := s.db.NamedExecContext(ctx, s.dialect.upsert, &c); err != nil {
		return fmt.Errorf("failed to upsert contact %s: %w", c.Email, err)
	}
	return nil
}

// Append stores a tracking event
func (s *SQLStore) Append(ctx context.Context, event *core.TrackingEvent) error {
	metadata, err := json.Marshal(event.Metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal event metadata: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO email_tracking_events (id, event_type, email, metadata, created_at) VALUES (?, ?, ?, ?, ?)`,
		event.ID, event.EventType, event.Email, string(metadata), event.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to insert tracking event: %w", err)
	}
	return nil
}

// ListByEmail returns the events recorded for an address, oldest first
func (s *SQLStore) ListByEmail(ctx context.Context, email string) ([]core.TrackingEvent, error) {
	var rows []eventRow
	if err := s.db.SelectContext(ctx, &rows,
		`SELECT id, event_type, email, metadata, created_at FROM email_tracking_events
		WHERE email = ? ORDER BY created_at, id`, email); err != nil {
		return nil, fmt.Errorf("failed to list tracking events: %w", err)
	}

	events := make([]core.TrackingEvent, 0, len(rows))
	for _, row := range rows {
		event := core.TrackingEvent{
			ID:        row.ID,
			EventType: row.EventType,
			Email:     row.Email,
			CreatedAt: row.CreatedAt,
		}
		if err := json.Unmarshal([]byte(row.Metadata), &event.Metadata); err != nil {
			s.logger.Warn("Skipping unreadable event metadata",
				zap.String("event_id", row.ID),
				zap.Error(err))
		}
		events = append(events, event)
	}
	return events, nil
}

// Close closes the database connection
func (s *SQLStore) Close() error {
	return s.db.Close()
}

// checkAffected maps an update that touched no rows to ErrContactNotFound.
// Some drivers report zero affected rows when values are unchanged, so the
// row is looked up before giving up.
func (s *SQLStore) checkAffected(ctx context.Context, res sql.Result, email string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n > 0 {
		return nil
	}

	var count int
	if err := s.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM contacts WHERE email = ?`, email); err != nil {
		return fmt.Errorf("failed to check contact: %w", err)
	}
	if count == 0 {
		return core.ErrContactNotFound
	}
	return nil
}
