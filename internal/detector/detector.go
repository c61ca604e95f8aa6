package detector

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/mikey/outreach-tracker/internal/config"
	"github.com/mikey/outreach-tracker/internal/core"
	"go.uber.org/zap"
)

var (
	// ErrNotReady is returned when a scan is requested before the mailbox is ready
	ErrNotReady = errors.New("reply detector is not ready")
	// ErrAlreadyStarted is returned by Start when the detector has left the disconnected state
	ErrAlreadyStarted = errors.New("reply detector already started")
)

const (
	defaultScanInterval   = 5 * time.Minute
	defaultSearchWindow   = 24 * time.Hour
	defaultProcessTimeout = 30 * time.Second
	connectTimeout        = 30 * time.Second
)

// State is the connection state of the detector
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateReady
	StateEnded
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateReady:
		return "ready"
	case StateEnded:
		return "ended"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Trigger names what asked for a scan
type Trigger string

const (
	TriggerStartup Trigger = "startup"
	TriggerTimer   Trigger = "timer"
	TriggerNewMail Trigger = "new-mail"
	TriggerManual  Trigger = "manual"
)

// ScanResult summarizes one scan of the mailbox
type ScanResult struct {
	Trigger       Trigger
	Found         int
	Fetched       int
	ParseFailures int
	Outcomes      map[core.Outcome]int
}

type scanRequest struct {
	ctx     context.Context
	trigger Trigger
	done    chan scanReply
}

type scanReply struct {
	result *ScanResult
	err    error
}

// Detector watches a mailbox for replies to tracked contacts. A single worker
// goroutine owns the mailbox connection; the timer, new-mail notifications
// and callers only enqueue scan requests.
type Detector struct {
	mailbox core.Mailbox
	parser  core.MessageParser
	service *core.ReplyService
	cfg     config.ReplyMonitorConfig
	logger  *zap.Logger

	mu       sync.Mutex
	state    State
	queue    chan scanRequest
	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
	now      func() time.Time
}

// New creates a reply detector in the disconnected state
func New(
	mailbox core.Mailbox,
	parser core.MessageParser,
	service *core.ReplyService,
	cfg config.ReplyMonitorConfig,
	logger *zap.Logger,
) *Detector {
	if cfg.ScanInterval <= 0 {
		cfg.ScanInterval = defaultScanInterval
	}
	if cfg.SearchWindow <= 0 {
		cfg.SearchWindow = defaultSearchWindow
	}
	if cfg.ProcessTimeout <= 0 {
		cfg.ProcessTimeout = defaultProcessTimeout
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 1
	}

	return &Detector{
		mailbox: mailbox,
		parser:  parser,
		service: service,
		cfg:     cfg,
		logger:  logger,
		state:   StateDisconnected,
		queue:   make(chan scanRequest, cfg.QueueSize),
		stopCh:  make(chan struct{}),
		now:     time.Now,
	}
}

// State returns the current connection state
func (d *Detector) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// Start connects to the mailbox. A connection failure is returned and the
// detector goes back to disconnected; there is no automatic retry.
func (d *Detector) Start() error {
	d.mu.Lock()
	if d.state != StateDisconnected {
		d.mu.Unlock()
		return ErrAlreadyStarted
	}
	d.state = StateConnecting
	d.mu.Unlock()

	d.logger.Info("Connecting reply detector to mailbox", zap.String("folder", d.cfg.Folder))

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()

	if err := d.mailbox.Connect(ctx, d); err != nil {
		d.mu.Lock()
		if d.state == StateConnecting {
			d.state = StateDisconnected
		}
		d.mu.Unlock()
		d.logger.Error("Failed to connect to mailbox", zap.Error(err))
		return fmt.Errorf("failed to connect to mailbox: %w", err)
	}

	// Stop may have run while Connect was in flight and found nothing to close
	if d.State() == StateEnded {
		d.logger.Info("Reply detector stopped while connecting, closing mailbox")
		return d.mailbox.Close()
	}

	return nil
}

// Stop ends scheduling, waits for an in-flight scan to finish and closes the
// mailbox connection
func (d *Detector) Stop() error {
	d.mu.Lock()
	if d.state == StateDisconnected {
		d.mu.Unlock()
		return nil
	}
	d.state = StateEnded
	d.mu.Unlock()

	d.signalStop()
	d.wg.Wait()

	d.logger.Info("Reply detector stopped")
	return d.mailbox.Close()
}

// ProcessMessage runs a parsed message through classify-and-update
func (d *Detector) ProcessMessage(ctx context.Context, msg *core.InboundMessage) (core.Outcome, error) {
	return d.service.Process(ctx, msg), nil
}

// OnReady starts the scheduler and worker and requests an initial scan
func (d *Detector) OnReady() {
	d.mu.Lock()
	if d.state != StateConnecting {
		d.mu.Unlock()
		return
	}
	d.state = StateReady
	d.wg.Add(2)
	go d.worker()
	go d.scheduler()
	d.mu.Unlock()

	d.logger.Info("Reply detector ready",
		zap.Duration("scan_interval", d.cfg.ScanInterval),
		zap.Duration("search_window", d.cfg.SearchWindow))

	d.RequestScan(TriggerStartup)
}

// OnNewMail requests a scan
func (d *Detector) OnNewMail() {
	d.RequestScan(TriggerNewMail)
}

// OnError logs a mailbox error
func (d *Detector) OnError(err error) {
	d.logger.Error("Mailbox error", zap.Error(err))
}

// OnEnd marks the connection as ended and stops scheduling
func (d *Detector) OnEnd() {
	d.mu.Lock()
	if d.state == StateEnded {
		d.mu.Unlock()
		return
	}
	d.state = StateEnded
	d.mu.Unlock()

	d.logger.Info("Mailbox connection ended, reply detection stopped")
	d.signalStop()
}

// RequestScan enqueues a scan without blocking. It reports false when the
// detector is not ready or a scan is already pending.
func (d *Detector) RequestScan(trigger Trigger) bool {
	if d.State() != StateReady {
		return false
	}

	select {
	case d.queue <- scanRequest{ctx: context.Background(), trigger: trigger}:
		return true
	default:
		d.logger.Debug("Scan already pending, coalescing request", zap.String("trigger", string(trigger)))
		return false
	}
}

// Scan runs a scan on the worker and waits for its result
func (d *Detector) Scan(ctx context.Context) (*ScanResult, error) {
	if d.State() != StateReady {
		return nil, ErrNotReady
	}

	req := scanRequest{ctx: ctx, trigger: TriggerManual, done: make(chan scanReply, 1)}
	select {
	case d.queue <- req:
	case <-d.stopCh:
		return nil, ErrNotReady
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	select {
	case reply := <-req.done:
		return reply.result, reply.err
	case <-d.stopCh:
		d.wg.Wait()
		select {
		case reply := <-req.done:
			return reply.result, reply.err
		default:
			return nil, ErrNotReady
		}
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (d *Detector) signalStop() {
	d.stopOnce.Do(func() {
		close(d.stopCh)
	})
}

func (d *Detector) scheduler() {
	defer d.wg.Done()

	ticker := time.NewTicker(d.cfg.ScanInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			d.RequestScan(TriggerTimer)
		case <-d.stopCh:
			return
		}
	}
}

func (d *Detector) worker() {
	defer d.wg.Done()

	for {
		watch := d.startWatch()

		select {
		case <-d.stopCh:
			d.stopWatch(watch)
			return
		case req := <-d.queue:
			d.stopWatch(watch)
			result, err := d.scan(req.ctx, req.trigger)
			if req.done != nil {
				req.done <- scanReply{result: result, err: err}
			}
		}
	}
}

func (d *Detector) startWatch() core.MailWatch {
	if !d.cfg.UseIdle {
		return nil
	}
	watch, err := d.mailbox.WatchNewMail()
	if err != nil {
		d.logger.Warn("Failed to watch for new mail", zap.Error(err))
		return nil
	}
	return watch
}

func (d *Detector) stopWatch(watch core.MailWatch) {
	if watch == nil {
		return
	}
	if err := watch.Stop(); err != nil {
		d.logger.Warn("Failed to stop new mail watch", zap.Error(err))
	}
}

// scan searches recent unseen mail, fetches it and classifies every message.
// Messages are flagged seen when fetched, before any update is attempted.
func (d *Detector) scan(ctx context.Context, trigger Trigger) (*ScanResult, error) {
	result := &ScanResult{Trigger: trigger, Outcomes: make(map[core.Outcome]int)}

	since := d.now().Add(-d.cfg.SearchWindow)
	uids, err := d.mailbox.SearchUnseen(ctx, since)
	if err != nil {
		d.logger.Error("Failed to search mailbox", zap.Error(err), zap.String("trigger", string(trigger)))
		return result, fmt.Errorf("failed to search mailbox: %w", err)
	}
	result.Found = len(uids)
	if len(uids) == 0 {
		d.logger.Debug("No unseen messages", zap.String("trigger", string(trigger)))
		return result, nil
	}

	d.logger.Info("Checking unseen messages",
		zap.Int("count", len(uids)),
		zap.String("trigger", string(trigger)))

	messages, err := d.mailbox.FetchAndMarkSeen(ctx, uids)
	if err != nil {
		d.logger.Error("Failed to fetch messages", zap.Error(err))
		return result, fmt.Errorf("failed to fetch messages: %w", err)
	}
	result.Fetched = len(messages)

	for _, raw := range messages {
		msg, err := d.parser.Parse(raw.Body, core.SourceIMAP)
		if err != nil {
			result.ParseFailures++
			d.logger.Warn("Failed to parse message", zap.Error(err), zap.Uint32("uid", raw.UID))
			continue
		}
		result.Outcomes[d.process(ctx, msg)]++
	}

	d.logger.Info("Scan complete",
		zap.String("trigger", string(trigger)),
		zap.Int("fetched", result.Fetched),
		zap.Int("parse_failures", result.ParseFailures),
		zap.Int("replies", result.Outcomes[core.OutcomeReplyUpdated]))

	return result, nil
}

func (d *Detector) process(ctx context.Context, msg *core.InboundMessage) core.Outcome {
	ctx, cancel := context.WithTimeout(ctx, d.cfg.ProcessTimeout)
	defer cancel()

	outcome := d.service.Process(ctx, msg)
	d.logger.Debug("Processed message",
		zap.String("message_id", msg.MessageID),
		zap.String("outcome", string(outcome)))
	return outcome
}
