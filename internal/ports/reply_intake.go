package ports

import (
	"context"

	"github.com/mikey/outreach-tracker/internal/core"
)

// ReplyIntake is an inbound channel that feeds messages into reply detection
type ReplyIntake interface {
	// ProcessMessage runs a parsed message through classify-and-update
	ProcessMessage(ctx context.Context, msg *core.InboundMessage) (core.Outcome, error)

	// Start starts the intake
	Start() error

	// Stop stops the intake
	Stop() error
}
