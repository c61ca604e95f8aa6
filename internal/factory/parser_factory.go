package factory

import (
	"github.com/mikey/outreach-tracker/internal/adapters/parser"
	"github.com/mikey/outreach-tracker/internal/core"
	"github.com/mikey/outreach-tracker/internal/utils"
	"go.uber.org/zap"
)

// ParserFactory creates text processors and message parsers
type ParserFactory struct {
	logger *zap.Logger
}

// NewParserFactory creates a new ParserFactory
func NewParserFactory(logger *zap.Logger) *ParserFactory {
	return &ParserFactory{
		logger: logger,
	}
}

// CreateTextProcessor creates a new TextProcessor
func (f *ParserFactory) CreateTextProcessor() *utils.TextProcessor {
	return utils.NewTextProcessor(f.logger)
}

// CreateMessageParser creates the RFC 5322 header parser
func (f *ParserFactory) CreateMessageParser(text *utils.TextProcessor) core.MessageParser {
	return parser.NewMailParser(text, f.logger)
}
