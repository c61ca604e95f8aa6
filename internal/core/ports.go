package core

import (
	"context"
	"errors"
	"time"
)

// ErrContactNotFound is returned when no contact exists for an address
var ErrContactNotFound = errors.New("contact not found")

// ContactRepository defines the interface for the tracked contact store
type ContactRepository interface {
	// GetByEmail retrieves a contact, or ErrContactNotFound
	GetByEmail(ctx context.Context, email string) (*TrackedContact, error)

	// MarkReplied sets has_replied and reply_date for a contact
	MarkReplied(ctx context.Context, email string, at time.Time) error

	// MarkRepliedBatch marks every existing address as replied and returns the updated contacts
	MarkRepliedBatch(ctx context.Context, emails []string, at time.Time) ([]TrackedContact, error)

	// RecordOpen increments the seen counter of a contact
	RecordOpen(ctx context.Context, email string, at time.Time) error

	// RecordClick increments the click counter of a contact
	RecordClick(ctx context.Context, email string, at time.Time) error

	// List returns all contacts
	List(ctx context.Context) ([]TrackedContact, error)

	// Upsert inserts or replaces a contact
	Upsert(ctx context.Context, contact *TrackedContact) error
}

// EventLog defines the interface for the append-only tracking event log
type EventLog interface {
	// Append stores a new event
	Append(ctx context.Context, event *TrackingEvent) error

	// ListByEmail returns the events recorded for an address, oldest first
	ListByEmail(ctx context.Context, email string) ([]TrackingEvent, error)
}

// TrackingStore is a contact repository and event log sharing one backend
type TrackingStore interface {
	ContactRepository
	EventLog
	Close() error
}

// ProcessedSet remembers message identifiers that were already acted upon.
// Implementations decide their own eviction policy.
type ProcessedSet interface {
	Contains(id string) bool
	Add(id string)
	Len() int
	Clear()
}

// RawMessage is an RFC 5322 message fetched from a mailbox
type RawMessage struct {
	UID  uint32
	Body []byte
}

// MailboxEvents receives connection lifecycle notifications from a Mailbox
type MailboxEvents interface {
	OnReady()
	OnNewMail()
	OnError(err error)
	OnEnd()
}

// MailWatch is an active new-mail subscription. Stop must be called before
// the mailbox is used for any other command.
type MailWatch interface {
	Stop() error
}

// Mailbox defines the interface for the mail transport used by reply detection
type Mailbox interface {
	// Connect dials, authenticates and selects the monitored folder, then
	// calls events.OnReady
	Connect(ctx context.Context, events MailboxEvents) error

	// SearchUnseen returns the UIDs of unread messages received since the given time
	SearchUnseen(ctx context.Context, since time.Time) ([]uint32, error)

	// FetchAndMarkSeen fetches full messages and flags them as seen
	FetchAndMarkSeen(ctx context.Context, uids []uint32) ([]RawMessage, error)

	// WatchNewMail subscribes to new-mail notifications until stopped
	WatchNewMail() (MailWatch, error)

	// Close ends the connection
	Close() error
}

// MessageParser turns raw message bytes into an InboundMessage
type MessageParser interface {
	Parse(raw []byte, source string) (*InboundMessage, error)
}
