package intake

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mikey/outreach-tracker/internal/core"
	"github.com/mikey/outreach-tracker/internal/utils"
	"go.uber.org/zap"
)

const subjectPreviewRunes = 120

// CLIIntake classifies single messages from the command line. Without apply
// it only reports what would happen.
type CLIIntake struct {
	service *core.ReplyService
	parser  core.MessageParser
	text    *utils.TextProcessor
	logger  *zap.Logger
	apply   bool
	verbose bool
	out     io.Writer
}

// NewCLIIntake creates a new CLI intake writing to stdout
func NewCLIIntake(
	service *core.ReplyService,
	parser core.MessageParser,
	text *utils.TextProcessor,
	logger *zap.Logger,
	apply bool,
	verbose bool,
) *CLIIntake {
	return &CLIIntake{
		service: service,
		parser:  parser,
		text:    text,
		logger:  logger,
		apply:   apply,
		verbose: verbose,
		out:     os.Stdout,
	}
}

// SetOutput redirects the printed report
func (i *CLIIntake) SetOutput(w io.Writer) {
	i.out = w
}

// ProcessReader reads one RFC 5322 message and processes it
func (i *CLIIntake) ProcessReader(ctx context.Context, r io.Reader) (core.Outcome, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("failed to read message: %w", err)
	}

	msg, err := i.parser.Parse(raw, core.SourceCLI)
	if err != nil {
		return "", fmt.Errorf("failed to parse message: %w", err)
	}

	return i.ProcessMessage(ctx, msg)
}

// ProcessMessage prints a summary of the message and its classification
func (i *CLIIntake) ProcessMessage(ctx context.Context, msg *core.InboundMessage) (core.Outcome, error) {
	i.logger.Debug("Processing message", zap.String("sender", msg.From))

	fmt.Fprintf(i.out, "\n=== Message Summary ===\n")
	fmt.Fprintf(i.out, "From: %s\n", msg.From)
	fmt.Fprintf(i.out, "Subject: %s\n", i.text.Preview(msg.Subject, subjectPreviewRunes))
	fmt.Fprintf(i.out, "Message-ID: %s\n", msg.MessageID)
	if i.verbose {
		fmt.Fprintf(i.out, "In-Reply-To: %s\n", msg.InReplyTo)
		fmt.Fprintf(i.out, "References: %s\n", strings.Join(msg.References, " "))
		if !msg.Date.IsZero() {
			fmt.Fprintf(i.out, "Date: %s\n", msg.Date.Format("2006-01-02 15:04:05 MST"))
		}
	}

	fmt.Fprintf(i.out, "\n=== Classification ===\n")
	fmt.Fprintf(i.out, "Is reply: %t\n", core.IsReply(msg))

	if i.apply {
		outcome := i.service.Process(ctx, msg)
		fmt.Fprintf(i.out, "Outcome: %s\n", outcome)
		return outcome, nil
	}

	outcome, contact := i.service.DryRun(ctx, msg)
	if contact != nil {
		fmt.Fprintf(i.out, "Tracked contact: %s (%s)\n", contact.Email, contact.Name)
		fmt.Fprintf(i.out, "Already replied: %t\n", contact.HasReplied)
	}
	fmt.Fprintf(i.out, "Outcome (dry run): %s\n", outcome)
	return outcome, nil
}

// Start is a no-op for the CLI intake
func (i *CLIIntake) Start() error {
	return nil
}

// Stop is a no-op for the CLI intake
func (i *CLIIntake) Stop() error {
	return nil
}
