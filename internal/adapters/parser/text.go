package parser

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"
)

// TextParser implements ports.DocumentParser for plain text and markdown.
type TextParser struct{}

// NewTextParser creates a TextParser.
func NewTextParser() *TextParser {
	return &TextParser{}
}

// Parse returns data as text with a leading byte order mark removed.
func (p *TextParser) Parse(ctx context.Context, data []byte, filename string) (string, error) {
	if !utf8.Valid(data) {
		return "", errors.New("text file is not valid UTF-8")
	}
	return strings.TrimPrefix(string(data), "\uFEFF"), nil
}

// SupportedFormats returns formats this parser handles.
func (p *TextParser) SupportedFormats() []string {
	return []string{"txt", "md"}
}
