package core

import (
	"context"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"
)

// TrackingService records opens, clicks and manual replies
type TrackingService struct {
	contacts ContactRepository
	events   EventLog
	logger   *zap.Logger
}

// NewTrackingService creates a new tracking service
func NewTrackingService(contacts ContactRepository, events EventLog, logger *zap.Logger) *TrackingService {
	return &TrackingService{
		contacts: contacts,
		events:   events,
		logger:   logger,
	}
}

// ContactStats is a contact together with its tracking events
type ContactStats struct {
	Contact *TrackedContact
	Events  []TrackingEvent
}

// RecordOpen increments the seen count for a contact
func (s *TrackingService) RecordOpen(ctx context.Context, email string) error {
	email = NormalizeEmail(email)
	if _, err := s.contacts.GetByEmail(ctx, email); err != nil {
		return err
	}
	if err := s.contacts.RecordOpen(ctx, email, time.Now().UTC()); err != nil {
		return fmt.Errorf("failed to update seen count: %w", err)
	}
	s.logger.Info("Recorded email open", zap.String("email", email))
	return nil
}

// RecordClick increments the click count for a contact
func (s *TrackingService) RecordClick(ctx context.Context, email string) error {
	email = NormalizeEmail(email)
	if _, err := s.contacts.GetByEmail(ctx, email); err != nil {
		return err
	}
	if err := s.contacts.RecordClick(ctx, email, time.Now().UTC()); err != nil {
		return fmt.Errorf("failed to update click count: %w", err)
	}
	s.logger.Info("Recorded link click", zap.String("email", email))
	return nil
}

// MarkReplied marks a single contact as replied and returns the updated record
func (s *TrackingService) MarkReplied(ctx context.Context, email string) (*TrackedContact, error) {
	email = NormalizeEmail(email)
	if _, err := s.contacts.GetByEmail(ctx, email); err != nil {
		return nil, err
	}
	if err := s.contacts.MarkReplied(ctx, email, time.Now().UTC()); err != nil {
		return nil, fmt.Errorf("failed to mark replied: %w", err)
	}
	s.logger.Info("Marked contact as replied", zap.String("email", email), zap.String("action", "manual"))
	return s.contacts.GetByEmail(ctx, email)
}

// MarkRepliedBatch marks every known address as replied
func (s *TrackingService) MarkRepliedBatch(ctx context.Context, emails []string) ([]TrackedContact, error) {
	normalized := make([]string, 0, len(emails))
	for _, email := range emails {
		if e := NormalizeEmail(email); e != "" {
			normalized = append(normalized, e)
		}
	}
	if len(normalized) == 0 {
		return []TrackedContact{}, nil
	}

	updated, err := s.contacts.MarkRepliedBatch(ctx, normalized, time.Now().UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to mark replied: %w", err)
	}
	s.logger.Info("Marked contacts as replied",
		zap.Int("requested", len(normalized)),
		zap.Int("updated", len(updated)))
	return updated, nil
}

// Stats returns a contact and its tracking events
func (s *TrackingService) Stats(ctx context.Context, email string) (*ContactStats, error) {
	email = NormalizeEmail(email)
	contact, err := s.contacts.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	events, err := s.events.ListByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	return &ContactStats{Contact: contact, Events: events}, nil
}

// CampaignStats aggregates engagement over every contact
func (s *TrackingService) CampaignStats(ctx context.Context) (*CampaignStats, error) {
	contacts, err := s.contacts.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list contacts: %w", err)
	}
	return summarize(contacts), nil
}

func summarize(contacts []TrackedContact) *CampaignStats {
	stats := &CampaignStats{Total: len(contacts)}
	totalSeen, totalClicks := 0, 0

	for _, c := range contacts {
		if c.Status == "sent" {
			stats.Sent++
		}
		if c.HasOpened {
			stats.Opened++
		}
		if c.HasClicked {
			stats.Clicked++
		}
		if c.HasReplied {
			stats.Replied++
		}
		totalSeen += c.SeenCount
		totalClicks += c.ClickCount
	}

	if stats.Sent > 0 {
		stats.OpenRate = percent(stats.Opened, stats.Sent)
		stats.ClickRate = percent(stats.Clicked, stats.Sent)
		stats.ReplyRate = percent(stats.Replied, stats.Sent)
		stats.AvgSeenCount = average(totalSeen, stats.Opened)
		stats.AvgClickCount = average(totalClicks, stats.Clicked)
	}

	return stats
}

func percent(n, total int) string {
	return fmt.Sprintf("%.1f%%", float64(n)/float64(total)*100)
}

func average(sum, n int) float64 {
	if n == 0 {
		return 0
	}
	return math.Round(float64(sum)/float64(n)*10) / 10
}
