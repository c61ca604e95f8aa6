package parser

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/emersion/go-message"
	_ "github.com/emersion/go-message/charset"
	"github.com/emersion/go-message/mail"
	"github.com/emersion/go-message/textproto"
	"github.com/mikey/outreach-tracker/internal/core"
	"github.com/mikey/outreach-tracker/internal/utils"
	"go.uber.org/zap"
)

// ErrEmptyMessage is returned for a message with no content
var ErrEmptyMessage = errors.New("empty message")

// MailParser extracts the reply-relevant headers of an RFC 5322 message.
// Only the header block is read; bodies are never decoded.
type MailParser struct {
	text   *utils.TextProcessor
	logger *zap.Logger
}

// NewMailParser creates a new message parser
func NewMailParser(text *utils.TextProcessor, logger *zap.Logger) *MailParser {
	return &MailParser{
		text:   text,
		logger: logger,
	}
}

// Parse reads the header block of raw and builds an InboundMessage
func (p *MailParser) Parse(raw []byte, source string) (*core.InboundMessage, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, ErrEmptyMessage
	}

	th, err := textproto.ReadHeader(bufio.NewReader(bytes.NewReader(raw)))
	if err != nil {
		return nil, fmt.Errorf("failed to read message header: %w", err)
	}
	h := mail.Header{Header: message.Header{Header: th}}

	msg := &core.InboundMessage{Source: source}

	if from, err := h.AddressList("From"); err == nil && len(from) > 0 {
		msg.From = from[0].Address
	} else if err != nil {
		p.logger.Debug("Unparseable From header", zap.Error(err), zap.String("from", h.Get("From")))
	}

	subject, err := h.Subject()
	if err != nil {
		subject = h.Get("Subject")
	}
	msg.Subject = p.text.SanitizeUTF8(subject)

	if id, err := h.MessageID(); err == nil && id != "" {
		msg.MessageID = id
	} else {
		msg.MessageID = trimMsgID(h.Get("Message-Id"))
	}

	if ids, err := h.MsgIDList("In-Reply-To"); err == nil && len(ids) > 0 {
		msg.InReplyTo = ids[0]
	} else {
		msg.InReplyTo = trimMsgID(h.Get("In-Reply-To"))
	}

	if ids, err := h.MsgIDList("References"); err == nil && len(ids) > 0 {
		msg.References = ids
	} else if refs := h.Get("References"); strings.TrimSpace(refs) != "" {
		for _, ref := range strings.Fields(refs) {
			msg.References = append(msg.References, trimMsgID(ref))
		}
	}

	if date, err := h.Date(); err == nil {
		msg.Date = date
	}

	return msg, nil
}

func trimMsgID(id string) string {
	return strings.Trim(strings.TrimSpace(id), "<>")
}
