package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/mikey/outreach-tracker/internal/core"
	"go.uber.org/zap"
)

// MemoryStore is an in-memory TrackingStore
type MemoryStore struct {
	contacts map[string]core.TrackedContact
	events   []core.TrackingEvent
	mu       sync.RWMutex
	logger   *zap.Logger
}

// NewMemoryStore creates a new in-memory store
func NewMemoryStore(logger *zap.Logger) *MemoryStore {
	return &MemoryStore{
		contacts: make(map[string]core.TrackedContact),
		logger:   logger,
	}
}

// GetByEmail retrieves a contact by address
func (s *MemoryStore) GetByEmail(_ context.Context, email string) (*core.TrackedContact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.contacts[email]
	if !ok {
		return nil, core.ErrContactNotFound
	}
	return &c, nil
}

// MarkReplied sets the replied flag and reply date
func (s *MemoryStore) MarkReplied(_ context.Context, email string, at time.Time) error {
	return s.update(email, func(c *core.TrackedContact) {
		c.HasReplied = true
		c.ReplyDate = timePtr(at)
	})
}

// MarkRepliedBatch marks every existing address as replied
func (s *MemoryStore) MarkRepliedBatch(_ context.Context, emails []string, at time.Time) ([]core.TrackedContact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	updated := []core.TrackedContact{}
	seen := make(map[string]bool, len(emails))
	for _, email := range emails {
		c, ok := s.contacts[email]
		if !ok || seen[email] {
			continue
		}
		seen[email] = true
		c.HasReplied = true
		c.ReplyDate = timePtr(at)
		s.contacts[email] = c
		updated = append(updated, c)
	}
	sort.Slice(updated, func(i, j int) bool { return updated[i].Email < updated[j].Email })
	return updated, nil
}

// RecordOpen increments the seen counter
func (s *MemoryStore) RecordOpen(_ context.Context, email string, at time.Time) error {
	return s.update(email, func(c *core.TrackedContact) {
		c.SeenCount++
		c.LastSeenAt = timePtr(at)
		c.HasOpened = true
	})
}

// RecordClick increments the click counter
func (s *MemoryStore) RecordClick(_ context.Context, email string, at time.Time) error {
	return s.update(email, func(c *core.TrackedContact) {
		c.ClickCount++
		c.LastClickAt = timePtr(at)
		c.HasClicked = true
	})
}

// List returns all contacts ordered by address
func (s *MemoryStore) List(_ context.Context) ([]core.TrackedContact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	contacts := make([]core.TrackedContact, 0, len(s.contacts))
	for _, c := range s.contacts {
		contacts = append(contacts, c)
	}
	sort.Slice(contacts, func(i, j int) bool { return contacts[i].Email < contacts[j].Email })
	return contacts, nil
}

// Upsert inserts or replaces a contact
func (s *MemoryStore) Upsert(_ context.Context, contact *core.TrackedContact) error {
	c := *contact
	c.Email = core.NormalizeEmail(c.Email)
	if c.Email == "" {
		return fmt.Errorf("contact email must not be empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.contacts[c.Email] = c
	return nil
}

// Append stores a tracking event
func (s *MemoryStore) Append(_ context.Context, event *core.TrackingEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.events = append(s.events, *event)
	return nil
}

// ListByEmail returns the events recorded for an address, oldest first
func (s *MemoryStore) ListByEmail(_ context.Context, email string) ([]core.TrackingEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	events := []core.TrackingEvent{}
	for _, e := range s.events {
		if e.Email == email {
			events = append(events, e)
		}
	}
	sort.SliceStable(events, func(i, j int) bool {
		if !events[i].CreatedAt.Equal(events[j].CreatedAt) {
			return events[i].CreatedAt.Before(events[j].CreatedAt)
		}
		return events[i].ID < events[j].ID
	})
	return events, nil
}

// Close is a no-op for the in-memory store
func (s *MemoryStore) Close() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	s.logger.Debug("Closing in-memory store", zap.Int("contacts", len(s.contacts)))
	return nil
}

func (s *MemoryStore) update(email string, fn func(*core.TrackedContact)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.contacts[email]
	if !ok {
		return core.ErrContactNotFound
	}
	fn(&c)
	s.contacts[email] = c
	return nil
}

func timePtr(t time.Time) *time.Time {
	t = t.UTC()
	return &t
}
