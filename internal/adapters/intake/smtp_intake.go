package intake

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/emersion/go-smtp"
	"github.com/mikey/outreach-tracker/internal/config"
	"github.com/mikey/outreach-tracker/internal/core"
	"go.uber.org/zap"
)

// SMTPIntake accepts forwarded mail over SMTP and runs it through reply
// detection. Messages are always accepted so that tracking never bounces mail.
type SMTPIntake struct {
	service *core.ReplyService
	parser  core.MessageParser
	logger  *zap.Logger
	cfg     config.SMTPIntakeConfig
	timeout time.Duration

	mu       sync.Mutex
	server   *smtp.Server
	listener net.Listener
	done     chan struct{}
}

// NewSMTPIntake creates a new SMTP intake
func NewSMTPIntake(
	service *core.ReplyService,
	parser core.MessageParser,
	logger *zap.Logger,
	cfg config.SMTPIntakeConfig,
	timeout time.Duration,
) *SMTPIntake {
	if cfg.Domain == "" {
		cfg.Domain = "localhost"
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &SMTPIntake{
		service: service,
		parser:  parser,
		logger:  logger,
		cfg:     cfg,
		timeout: timeout,
	}
}

// Start listens on the configured address and serves in the background
func (i *SMTPIntake) Start() error {
	i.mu.Lock()
	defer i.mu.Unlock()

	if i.server != nil {
		return fmt.Errorf("SMTP intake already started")
	}

	server := smtp.NewServer(&smtpBackend{intake: i})
	server.Addr = i.cfg.ListenAddress
	server.Domain = i.cfg.Domain
	server.ReadTimeout = 30 * time.Second
	server.WriteTimeout = 30 * time.Second
	server.MaxMessageBytes = i.cfg.MaxMessageBytes
	server.MaxRecipients = 50

	l, err := net.Listen("tcp", i.cfg.ListenAddress)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", i.cfg.ListenAddress, err)
	}

	i.server = server
	i.listener = l
	i.done = make(chan struct{})

	i.logger.Info("SMTP intake starting", zap.String("address", l.Addr().String()))

	go func(done chan struct{}) {
		defer close(done)
		if err := server.Serve(l); err != nil && !errors.Is(err, smtp.ErrServerClosed) {
			i.logger.Error("SMTP server error", zap.Error(err))
		}
	}(i.done)

	return nil
}

// Addr returns the listening address, or nil before Start
func (i *SMTPIntake) Addr() net.Addr {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.listener == nil {
		return nil
	}
	return i.listener.Addr()
}

// Stop closes the listener and every open session
func (i *SMTPIntake) Stop() error {
	i.mu.Lock()
	server, listener, done := i.server, i.listener, i.done
	i.server = nil
	i.listener = nil
	i.mu.Unlock()

	if server == nil {
		return nil
	}
	err := server.Close()
	// Serve registers the listener with the server only once it runs
	if lerr := listener.Close(); lerr != nil && !errors.Is(lerr, net.ErrClosed) && err == nil {
		err = lerr
	}
	<-done
	i.logger.Info("SMTP intake stopped")
	return err
}

// ProcessMessage runs a parsed message through classify-and-update
func (i *SMTPIntake) ProcessMessage(ctx context.Context, msg *core.InboundMessage) (core.Outcome, error) {
	return i.service.Process(ctx, msg), nil
}

// handle parses raw message data and classifies it. Failures are logged only.
func (i *SMTPIntake) handle(sender string, raw []byte) {
	msg, err := i.parser.Parse(raw, core.SourceSMTP)
	if err != nil {
		i.logger.Warn("Failed to parse forwarded message",
			zap.Error(err),
			zap.String("envelope_sender", sender))
		return
	}

	// Header From wins; the envelope sender of forwarded mail is the forwarder
	if msg.From == "" {
		msg.From = sender
	}

	ctx, cancel := context.WithTimeout(context.Background(), i.timeout)
	defer cancel()

	outcome, _ := i.ProcessMessage(ctx, msg)
	i.logger.Info("Processed forwarded message",
		zap.String("from", msg.From),
		zap.String("message_id", msg.MessageID),
		zap.String("outcome", string(outcome)))
}

// smtpBackend implements the go-smtp Backend interface
type smtpBackend struct {
	intake *SMTPIntake
}

// NewSession creates a new SMTP session
func (b *smtpBackend) NewSession(_ *smtp.Conn) (smtp.Session, error) {
	return &smtpSession{intake: b.intake}, nil
}

// smtpSession implements the go-smtp Session interface
type smtpSession struct {
	intake *SMTPIntake
	sender string
}

// Reset resets the session state
func (s *smtpSession) Reset() {
	s.sender = ""
}

// Mail sets the envelope sender
func (s *smtpSession) Mail(from string, _ *smtp.MailOptions) error {
	s.sender = from
	return nil
}

// Rcpt accepts any recipient
func (s *smtpSession) Rcpt(_ string, _ *smtp.RcptOptions) error {
	return nil
}

// Data reads the message and hands it to reply detection
func (s *smtpSession) Data(r io.Reader) error {
	raw, err := io.ReadAll(r)
	if err != nil {
		s.intake.logger.Error("Failed to read message data", zap.Error(err))
		return err
	}
	s.intake.handle(s.sender, raw)
	return nil
}

// Logout ends the session
func (s *smtpSession) Logout() error {
	return nil
}
