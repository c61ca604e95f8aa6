package factory

import (
	"fmt"

	"github.com/mikey/outreach-tracker/internal/adapters/imap"
	"github.com/mikey/outreach-tracker/internal/adapters/intake"
	"github.com/mikey/outreach-tracker/internal/config"
	"github.com/mikey/outreach-tracker/internal/core"
	"github.com/mikey/outreach-tracker/internal/detector"
	"github.com/mikey/outreach-tracker/internal/ports"
	"github.com/mikey/outreach-tracker/internal/utils"
	"go.uber.org/zap"
)

// IntakeFactory creates the reply intakes enabled in the configuration
type IntakeFactory struct {
	cfg          *config.Config
	logger       *zap.Logger
	replyService *core.ReplyService
	parser       core.MessageParser
	text         *utils.TextProcessor
}

// NewIntakeFactory creates a new intake factory
func NewIntakeFactory(
	cfg *config.Config,
	logger *zap.Logger,
	replyService *core.ReplyService,
	parser core.MessageParser,
	text *utils.TextProcessor,
) *IntakeFactory {
	return &IntakeFactory{
		cfg:          cfg,
		logger:       logger,
		replyService: replyService,
		parser:       parser,
		text:         text,
	}
}

// CreateReplyIntakes creates every intake enabled in the configuration. When
// the reply monitor is disabled no detector is built and no mailbox is dialed.
// A detector that cannot be built is skipped so the rest of the daemon runs.
func (f *IntakeFactory) CreateReplyIntakes() ([]ports.ReplyIntake, error) {
	var intakes []ports.ReplyIntake

	monitorCfg, err := f.cfg.GetReplyMonitor()
	if err != nil {
		return nil, err
	}

	if monitorCfg.Enabled {
		d, err := f.CreateDetector(monitorCfg)
		if err != nil {
			f.logger.Warn("Continuing without automatic reply detection", zap.Error(err))
		} else {
			intakes = append(intakes, d)
		}
	} else {
		f.logger.Info("Reply monitor disabled")
	}

	smtpCfg := f.cfg.GetSMTPIntake()
	if smtpCfg.Enabled {
		intakes = append(intakes, intake.NewSMTPIntake(
			f.replyService,
			f.parser,
			f.logger.Named("smtp"),
			smtpCfg,
			monitorCfg.ProcessTimeout,
		))
	}

	return intakes, nil
}

// CreateDetector creates the IMAP reply detector
func (f *IntakeFactory) CreateDetector(monitorCfg config.ReplyMonitorConfig) (*detector.Detector, error) {
	imapCfg := f.cfg.GetIMAP()
	if imapCfg.Host == "" || imapCfg.Username == "" {
		return nil, fmt.Errorf("reply monitor enabled but imap.host or imap.username is not set")
	}

	logger := f.logger.Named("reply-monitor")
	mailbox := imap.NewMailbox(imapCfg, monitorCfg.Folder, monitorCfg.UseIdle, logger)
	return detector.New(mailbox, f.parser, f.replyService, monitorCfg, logger), nil
}

// CreateCLIIntake creates the one-shot command line intake
func (f *IntakeFactory) CreateCLIIntake() *intake.CLIIntake {
	return intake.NewCLIIntake(
		f.replyService,
		f.parser,
		f.text,
		f.logger,
		f.cfg.GetBool("cli.apply"),
		f.cfg.GetBool("cli.verbose"),
	)
}
