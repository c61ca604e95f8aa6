package core

import (
	"strings"
	"time"
)

// Message sources
const (
	SourceIMAP = "imap"
	SourceSMTP = "smtp"
	SourceCLI  = "cli"
)

// EventTypeReply marks an automatically detected reply
const EventTypeReply = "reply"

// TrackedContact is an outreach recipient keyed by lowercase email address
type TrackedContact struct {
	Email          string     `db:"email" json:"email"`
	Name           string     `db:"name" json:"name"`
	VendorCategory string     `db:"vendor_category" json:"category"`
	Status         string     `db:"status" json:"status"`
	SeenCount      int        `db:"seen_count" json:"seenCount"`
	ClickCount     int        `db:"click_count" json:"clickCount"`
	HasOpened      bool       `db:"has_opened" json:"hasOpened"`
	HasClicked     bool       `db:"has_clicked" json:"hasClicked"`
	HasReplied     bool       `db:"has_replied" json:"hasReplied"`
	LastSeenAt     *time.Time `db:"last_seen_at" json:"lastSeenAt"`
	LastClickAt    *time.Time `db:"last_click_at" json:"lastClickAt"`
	ReplyDate      *time.Time `db:"reply_date" json:"replyDate"`
}

// InboundMessage holds the fields of a received message that reply
// detection looks at
type InboundMessage struct {
	From       string
	Subject    string
	MessageID  string
	InReplyTo  string
	References []string
	Date       time.Time
	Source     string
}

// EventMetadata is the payload stored with a tracking event
type EventMetadata struct {
	AutoDetected bool      `json:"auto_detected"`
	Subject      string    `json:"subject"`
	DetectedAt   time.Time `json:"detected_at"`
	MessageID    string    `json:"message_id,omitempty"`
	Source       string    `json:"source,omitempty"`
}

// TrackingEvent is an append-only audit record
type TrackingEvent struct {
	ID        string        `json:"id"`
	EventType string        `json:"event_type"`
	Email     string        `json:"email"`
	Metadata  EventMetadata `json:"metadata"`
	CreatedAt time.Time     `json:"created_at"`
}

// CampaignStats aggregates engagement over all contacts
type CampaignStats struct {
	Total         int     `json:"total"`
	Sent          int     `json:"sent"`
	Opened        int     `json:"opened"`
	Clicked       int     `json:"clicked"`
	Replied       int     `json:"replied"`
	OpenRate      string  `json:"openRate,omitempty"`
	ClickRate     string  `json:"clickRate,omitempty"`
	ReplyRate     string  `json:"replyRate,omitempty"`
	AvgSeenCount  float64 `json:"avgSeenCount"`
	AvgClickCount float64 `json:"avgClickCount"`
}

// Outcome is the branch taken by reply classification for one message
type Outcome string

const (
	OutcomeReplyUpdated    Outcome = "reply-updated"
	OutcomeNotAReply       Outcome = "not-a-reply"
	OutcomeNoSender        Outcome = "no-sender"
	OutcomeDuplicate       Outcome = "duplicate"
	OutcomeContactNotFound Outcome = "contact-not-found"
	OutcomeUpdateFailed    Outcome = "update-failed"
)

// NormalizeEmail lowercases and trims an address for use as a contact key
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
