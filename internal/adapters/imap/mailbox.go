package imap

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"
	"github.com/mikey/outreach-tracker/internal/config"
	"github.com/mikey/outreach-tracker/internal/core"
	"go.uber.org/zap"
)

// Connection security modes
const (
	SecurityTLS      = "tls"
	SecurityStartTLS = "starttls"
	SecurityNone     = "none"
)

var (
	// ErrNotConnected is returned when a command is issued before Connect
	ErrNotConnected = errors.New("mailbox not connected")
	// ErrConnectionLost is reported when the server drops the connection
	ErrConnectionLost = errors.New("mailbox connection lost")
)

// Mailbox is a core.Mailbox backed by a go-imap v2 client
type Mailbox struct {
	cfg     config.IMAPConfig
	folder  string
	useIdle bool
	logger  *zap.Logger

	mu      sync.Mutex
	client  *imapclient.Client
	idleCap bool
	closing bool
}

// NewMailbox creates a new IMAP mailbox adapter
func NewMailbox(cfg config.IMAPConfig, folder string, useIdle bool, logger *zap.Logger) *Mailbox {
	if folder == "" {
		folder = "INBOX"
	}
	return &Mailbox{
		cfg:     cfg,
		folder:  folder,
		useIdle: useIdle,
		logger:  logger,
	}
}

// Connect dials the server, logs in, selects the folder and reports readiness
func (m *Mailbox) Connect(ctx context.Context, events core.MailboxEvents) error {
	m.mu.Lock()
	if m.client != nil {
		m.mu.Unlock()
		return fmt.Errorf("mailbox already connected")
	}
	m.mu.Unlock()

	options := &imapclient.Options{
		TLSConfig: &tls.Config{
			ServerName:         m.cfg.Host,
			InsecureSkipVerify: m.cfg.InsecureSkipVerify,
		},
		UnilateralDataHandler: &imapclient.UnilateralDataHandler{
			Mailbox: func(data *imapclient.UnilateralDataMailbox) {
				if data.NumMessages != nil {
					m.logger.Debug("Mailbox size changed", zap.Uint32("messages", *data.NumMessages))
					events.OnNewMail()
				}
			},
		},
	}

	client, err := m.dial(ctx, options)
	if err != nil {
		return err
	}

	if err := client.Login(m.cfg.Username, m.cfg.Password).Wait(); err != nil {
		client.Close()
		return fmt.Errorf("failed to login: %w", err)
	}

	if _, err := client.Select(m.folder, nil).Wait(); err != nil {
		client.Close()
		return fmt.Errorf("failed to select folder %s: %w", m.folder, err)
	}

	idleCap := false
	if m.useIdle {
		if caps, err := client.Capability().Wait(); err == nil {
			idleCap = caps.Has(imap.CapIdle)
		}
		if !idleCap {
			m.logger.Info("Server does not support IDLE, relying on periodic scans")
		}
	}

	m.mu.Lock()
	m.client = client
	m.idleCap = idleCap
	m.closing = false
	m.mu.Unlock()

	go m.watchClosed(client, events)

	m.logger.Info("Connected to mailbox",
		zap.String("address", m.cfg.Address()),
		zap.String("folder", m.folder),
		zap.Bool("idle", idleCap))

	events.OnReady()
	return nil
}

func (m *Mailbox) dial(ctx context.Context, options *imapclient.Options) (*imapclient.Client, error) {
	addr := m.cfg.Address()
	dialer := &net.Dialer{Timeout: 30 * time.Second}

	switch m.cfg.Security {
	case SecurityTLS, "":
		tlsDialer := &tls.Dialer{NetDialer: dialer, Config: options.TLSConfig}
		conn, err := tlsDialer.DialContext(ctx, "tcp", addr)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to %s: %w", addr, err)
		}
		return imapclient.New(conn, options), nil
	case SecurityStartTLS:
		conn, err := dialer.DialContext(ctx, "tcp", addr)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to %s: %w", addr, err)
		}
		client, err := imapclient.NewStartTLS(conn, options)
		if err != nil {
			conn.Close()
			return nil, fmt.Errorf("failed to start TLS with %s: %w", addr, err)
		}
		return client, nil
	case SecurityNone:
		conn, err := dialer.DialContext(ctx, "tcp", addr)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to %s: %w", addr, err)
		}
		return imapclient.New(conn, options), nil
	default:
		return nil, fmt.Errorf("unsupported IMAP security mode: %s", m.cfg.Security)
	}
}

// watchClosed reports the end of the connection, and an error when it was not requested
func (m *Mailbox) watchClosed(client *imapclient.Client, events core.MailboxEvents) {
	<-client.Closed()

	m.mu.Lock()
	requested := m.closing
	if m.client == client {
		m.client = nil
	}
	m.mu.Unlock()

	if !requested {
		events.OnError(ErrConnectionLost)
	}
	events.OnEnd()
}

// SearchUnseen returns the UIDs of unread messages received since the given time
func (m *Mailbox) SearchUnseen(ctx context.Context, since time.Time) ([]uint32, error) {
	client, err := m.current(ctx)
	if err != nil {
		return nil, err
	}

	data, err := client.UIDSearch(&imap.SearchCriteria{
		Since:   since,
		NotFlag: []imap.Flag{imap.FlagSeen},
	}, nil).Wait()
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}

	all := data.AllUIDs()
	uids := make([]uint32, 0, len(all))
	for _, uid := range all {
		uids = append(uids, uint32(uid))
	}
	return uids, nil
}

// FetchAndMarkSeen fetches the full messages and then flags them as seen
func (m *Mailbox) FetchAndMarkSeen(ctx context.Context, uids []uint32) ([]core.RawMessage, error) {
	if len(uids) == 0 {
		return nil, nil
	}
	client, err := m.current(ctx)
	if err != nil {
		return nil, err
	}

	set := make([]imap.UID, 0, len(uids))
	for _, uid := range uids {
		set = append(set, imap.UID(uid))
	}
	uidSet := imap.UIDSetNum(set...)

	bodySection := &imap.FetchItemBodySection{Peek: true}
	msgs, err := client.Fetch(uidSet, &imap.FetchOptions{
		UID:         true,
		BodySection: []*imap.FetchItemBodySection{bodySection},
	}).Collect()
	if err != nil {
		return nil, fmt.Errorf("fetch failed: %w", err)
	}

	// Flagged before anything is parsed; a later failure does not unflag
	if err := client.Store(uidSet, &imap.StoreFlags{
		Op:     imap.StoreFlagsAdd,
		Silent: true,
		Flags:  []imap.Flag{imap.FlagSeen},
	}, nil).Close(); err != nil {
		return nil, fmt.Errorf("failed to mark messages as seen: %w", err)
	}

	raw := make([]core.RawMessage, 0, len(msgs))
	for _, msg := range msgs {
		body := msg.FindBodySection(bodySection)
		if body == nil {
			m.logger.Warn("Fetched message has no body", zap.Uint32("uid", uint32(msg.UID)))
			continue
		}
		raw = append(raw, core.RawMessage{UID: uint32(msg.UID), Body: body})
	}
	return raw, nil
}

// WatchNewMail starts IDLE when enabled and supported. New mail is then
// reported through OnNewMail until the watch is stopped.
func (m *Mailbox) WatchNewMail() (core.MailWatch, error) {
	m.mu.Lock()
	client, idleCap := m.client, m.idleCap
	m.mu.Unlock()

	if client == nil {
		return nil, ErrNotConnected
	}
	if !idleCap {
		return noopWatch{}, nil
	}

	cmd, err := client.Idle()
	if err != nil {
		return nil, fmt.Errorf("IDLE start failed: %w", err)
	}
	return &idleWatch{cmd: cmd}, nil
}

// Close logs out and closes the connection
func (m *Mailbox) Close() error {
	m.mu.Lock()
	client := m.client
	m.client = nil
	m.closing = true
	m.mu.Unlock()

	if client == nil {
		return nil
	}

	if err := client.Logout().Wait(); err != nil {
		m.logger.Debug("Logout failed", zap.Error(err))
	}
	if err := client.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
		return fmt.Errorf("failed to close mailbox connection: %w", err)
	}
	m.logger.Info("Mailbox connection closed")
	return nil
}

func (m *Mailbox) current(ctx context.Context) (*imapclient.Client, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.client == nil {
		return nil, ErrNotConnected
	}
	return m.client, nil
}

type idleWatch struct {
	cmd *imapclient.IdleCommand
}

func (w *idleWatch) Stop() error {
	return w.cmd.Close()
}

type noopWatch struct{}

func (noopWatch) Stop() error { return nil }
