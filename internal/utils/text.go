package utils

import (
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"
)

// TextProcessor cleans up header text taken from inbound mail
type TextProcessor struct {
	logger *zap.Logger
}

// NewTextProcessor creates a new TextProcessor
func NewTextProcessor(logger *zap.Logger) *TextProcessor {
	return &TextProcessor{
		logger: logger,
	}
}

// SanitizeUTF8 drops invalid UTF-8 bytes and control characters, and folds
// line breaks left over from header continuation into single spaces
func (tp *TextProcessor) SanitizeUTF8(text string) string {
	if utf8.ValidString(text) && strings.IndexFunc(text, isControl) < 0 {
		return text
	}

	var b strings.Builder
	b.Grow(len(text))
	for i, r := range text {
		switch {
		case r == utf8.RuneError:
			if _, size := utf8.DecodeRuneInString(text[i:]); size == 1 {
				continue
			}
			b.WriteRune(r)
		case r == '\r' || r == '\n' || r == '\t':
			b.WriteByte(' ')
		case isControl(r):
			continue
		default:
			b.WriteRune(r)
		}
	}

	sanitized := strings.Join(strings.Fields(b.String()), " ")
	tp.logger.Debug("Text sanitized",
		zap.Int("original_size", len(text)),
		zap.Int("sanitized_size", len(sanitized)))

	return sanitized
}

// Preview shortens text to at most maxRunes characters for display,
// marking the cut with an ellipsis
func (tp *TextProcessor) Preview(text string, maxRunes int) string {
	if maxRunes <= 0 || utf8.RuneCountInString(text) <= maxRunes {
		return text
	}
	if maxRunes == 1 {
		return "…"
	}

	runes := []rune(text)
	return strings.TrimSpace(string(runes[:maxRunes-1])) + "…"
}

func isControl(r rune) bool {
	return r < 0x20 || r == 0x7f
}
