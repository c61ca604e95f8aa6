package core

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ReplyService classifies inbound messages and marks tracked contacts as replied
type ReplyService struct {
	contacts  ContactRepository
	events    EventLog
	processed ProcessedSet
	logger    *zap.Logger
}

// NewReplyService creates a new reply service
func NewReplyService(
	contacts ContactRepository,
	events EventLog,
	processed ProcessedSet,
	logger *zap.Logger,
) *ReplyService {
	return &ReplyService{
		contacts:  contacts,
		events:    events,
		processed: processed,
		logger:    logger,
	}
}

// IsReply reports whether a message looks like a reply. Any one of the
// subject prefix, In-Reply-To or References is enough.
func IsReply(msg *InboundMessage) bool {
	if strings.Contains(strings.ToLower(msg.Subject), "re:") {
		return true
	}
	return msg.InReplyTo != "" || len(msg.References) > 0
}

// Process runs classify-and-update for a single message and reports the branch taken
func (s *ReplyService) Process(ctx context.Context, msg *InboundMessage) Outcome {
	sender := NormalizeEmail(msg.From)
	if sender == "" {
		return OutcomeNoSender
	}

	if !IsReply(msg) {
		return OutcomeNotAReply
	}

	// Messages without an id cannot be deduplicated
	if msg.MessageID != "" && s.processed.Contains(msg.MessageID) {
		return OutcomeDuplicate
	}

	s.logger.Info("Reply detected",
		zap.String("sender", sender),
		zap.String("message_id", msg.MessageID),
		zap.String("source", msg.Source))

	if _, err := s.contacts.GetByEmail(ctx, sender); err != nil {
		if errors.Is(err, ErrContactNotFound) {
			s.logger.Info("Contact not found in database", zap.String("sender", sender))
			s.remember(msg.MessageID)
			return OutcomeContactNotFound
		}
		s.logger.Error("Failed to look up contact", zap.Error(err), zap.String("sender", sender))
		return OutcomeUpdateFailed
	}

	now := time.Now().UTC()
	if err := s.contacts.MarkReplied(ctx, sender, now); err != nil {
		s.logger.Error("Failed to update reply status", zap.Error(err), zap.String("sender", sender))
		return OutcomeUpdateFailed
	}

	s.logger.Info("Marked contact as replied", zap.String("sender", sender))

	event := &TrackingEvent{
		ID:        uuid.NewString(),
		EventType: EventTypeReply,
		Email:     sender,
		Metadata: EventMetadata{
			AutoDetected: true,
			Subject:      msg.Subject,
			DetectedAt:   now,
			MessageID:    msg.MessageID,
			Source:       msg.Source,
		},
		CreatedAt: now,
	}
	if err := s.events.Append(ctx, event); err != nil {
		s.logger.Error("Failed to log reply event", zap.Error(err), zap.String("sender", sender))
	}

	s.remember(msg.MessageID)
	return OutcomeReplyUpdated
}

// DryRun reports the outcome Process would produce for a message, ignoring
// the processed set. Nothing is written.
func (s *ReplyService) DryRun(ctx context.Context, msg *InboundMessage) (Outcome, *TrackedContact) {
	sender := NormalizeEmail(msg.From)
	if sender == "" {
		return OutcomeNoSender, nil
	}
	if !IsReply(msg) {
		return OutcomeNotAReply, nil
	}

	contact, err := s.contacts.GetByEmail(ctx, sender)
	if err != nil {
		if errors.Is(err, ErrContactNotFound) {
			return OutcomeContactNotFound, nil
		}
		s.logger.Error("Failed to look up contact", zap.Error(err), zap.String("sender", sender))
		return OutcomeUpdateFailed, nil
	}
	return OutcomeReplyUpdated, contact
}

func (s *ReplyService) remember(messageID string) {
	if messageID == "" {
		return
	}
	s.processed.Add(messageID)
}
