package utils

import (
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/jaytaylor/html2text"
	"go.uber.org/zap"
	"golang.org/x/net/html"
	"golang.org/x/text/unicode/norm"

	"github.com/mikey/llm-phish-filter/internal/scoring"
)

// TextProcessor provides utilities for processing text
type TextProcessor struct {
	logger *zap.Logger
}

// NewTextProcessor creates a new TextProcessor
func NewTextProcessor(logger *zap.Logger) *TextProcessor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TextProcessor{
		logger: logger,
	}
}

// TruncateText safely truncates text to the specified maximum size
// and ensures the result is valid UTF-8
func (tp *TextProcessor) TruncateText(text string, maxSize int) string {
	if maxSize <= 0 || len(text) <= maxSize {
		return text
	}

	truncated := text[:maxSize]
	for !utf8.ValidString(truncated) && len(truncated) > 0 {
		truncated = truncated[:len(truncated)-1]
	}

	tp.logger.Debug("Text truncated",
		zap.Int("original_size", len(text)),
		zap.Int("truncated_size", len(truncated)),
		zap.Int("max_size", maxSize))

	return truncated + "\n[... Content truncated due to size limits ...]"
}

// SanitizeUTF8 drops invalid UTF-8 bytes and normalises to NFC so that
// visually identical text compares equal
func (tp *TextProcessor) SanitizeUTF8(text string) string {
	if !utf8.ValidString(text) {
		cleaned := strings.ToValidUTF8(text, "")
		tp.logger.Debug("Text sanitized",
			zap.Int("original_size", len(text)),
			zap.Int("sanitized_size", len(cleaned)))
		text = cleaned
	}
	return norm.NFC.String(text)
}

// ProcessText truncates and sanitizes text in one operation
func (tp *TextProcessor) ProcessText(text string, maxSize int) string {
	return tp.SanitizeUTF8(tp.TruncateText(text, maxSize))
}

// HTMLToText renders an HTML body as plain text, keeping link targets visible
// next to their anchor text
func (tp *TextProcessor) HTMLToText(body string) (string, error) {
	text, err := html2text.FromString(body, html2text.Options{})
	if err != nil {
		return "", fmt.Errorf("failed to convert HTML to text: %w", err)
	}
	return tp.SanitizeUTF8(text), nil
}

// ExtractLinks returns every anchor with an href in document order
func (tp *TextProcessor) ExtractLinks(body string) []scoring.Link {
	var (
		links   []scoring.Link
		current *scoring.Link
		text    strings.Builder
	)

	z := html.NewTokenizer(strings.NewReader(body))
	for {
		switch z.Next() {
		case html.ErrorToken:
			if z.Err() != io.EOF {
				tp.logger.Debug("Stopped link extraction on malformed HTML", zap.Error(z.Err()))
			}
			return links

		case html.StartTagToken:
			name, hasAttr := z.TagName()
			if string(name) != "a" || !hasAttr {
				continue
			}
			for {
				key, val, more := z.TagAttr()
				if strings.EqualFold(string(key), "href") {
					current = &scoring.Link{Href: strings.TrimSpace(string(val))}
					text.Reset()
				}
				if !more {
					break
				}
			}

		case html.TextToken:
			if current != nil {
				text.Write(z.Text())
			}

		case html.EndTagToken:
			name, _ := z.TagName()
			if string(name) == "a" && current != nil {
				current.DisplayText = strings.Join(strings.Fields(text.String()), " ")
				links = append(links, *current)
				current = nil
			}
		}
	}
}
