package utils

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"go.uber.org/zap"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	urlPattern     = regexp.MustCompile(`(?i)\b(?:https?://|www\.)\S+`)
	addressPattern = regexp.MustCompile(`\S+@\S+`)
	symbolPattern  = regexp.MustCompile(`[^\w\s]`)
)

// TextProcessor provides utilities for preparing message text for the
// classifier chain and the result cache.
type TextProcessor struct {
	logger *zap.Logger
	fold   transform.Transformer
}

// NewTextProcessor creates a new TextProcessor
func NewTextProcessor(logger *zap.Logger) *TextProcessor {
	// NFKD + strip combining marks, so "Réunion" and "Reunion" fingerprint
	// the same.
	fold := transform.Chain(
		norm.NFKD,
		runes.Remove(runes.In(unicode.Mn)),
		norm.NFC,
	)
	return &TextProcessor{
		logger: logger,
		fold:   fold,
	}
}

// Normalize lowercases text, folds accents, strips URLs, addresses and
// punctuation, and collapses whitespace. Classification must not depend on
// formatting noise, and the cache fingerprint is computed over this form.
func (tp *TextProcessor) Normalize(text string) string {
	if text == "" {
		return ""
	}
	folded, _, err := transform.String(tp.fold, text)
	if err != nil {
		// Fold failure only loses accent-insensitivity.
		folded = text
	}
	folded = strings.ToLower(folded)
	folded = urlPattern.ReplaceAllString(folded, " ")
	folded = addressPattern.ReplaceAllString(folded, " ")
	folded = symbolPattern.ReplaceAllString(folded, " ")
	return strings.Join(strings.Fields(folded), " ")
}

// Fingerprint hashes the normalized subject and body into the cache key.
func (tp *TextProcessor) Fingerprint(subject, body string) string {
	normalized := tp.Normalize(subject) + "\n" + tp.Normalize(body)
	sum := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(sum[:])
}

// Tokens splits text into normalized word tokens for the statistical
// baseline classifier.
func (tp *TextProcessor) Tokens(subject, body string) []string {
	combined := strings.TrimSpace(tp.Normalize(subject) + " " + tp.Normalize(body))
	if combined == "" {
		return nil
	}
	return strings.Fields(combined)
}

// TruncateText safely truncates text to the specified maximum size
// and ensures the result is valid UTF-8
func (tp *TextProcessor) TruncateText(text string, maxSize int) string {
	// If no limit or text is already within limits, return as is
	if maxSize <= 0 || len(text) <= maxSize {
		return text
	}

	truncated := text[:maxSize]

	// Ensure the truncated text ends with a valid UTF-8 sequence
	for !utf8.ValidString(truncated) && len(truncated) > 0 {
		truncated = truncated[:len(truncated)-1]
	}

	tp.logger.Debug("Text truncated",
		zap.Int("original_size", len(text)),
		zap.Int("truncated_size", len(truncated)),
		zap.Int("max_size", maxSize))

	return truncated + "\n[... Content truncated due to size limits ...]"
}

// SanitizeUTF8 ensures the string contains only valid UTF-8 characters
func (tp *TextProcessor) SanitizeUTF8(text string) string {
	if utf8.ValidString(text) {
		return text
	}

	// Replace invalid UTF-8 sequences with the Unicode replacement character
	result := make([]rune, 0, len(text))
	for i, r := range text {
		if r == utf8.RuneError {
			_, size := utf8.DecodeRuneInString(text[i:])
			if size == 1 {
				// Skip invalid UTF-8 sequences
				continue
			}
		}
		result = append(result, r)
	}

	return string(result)
}

// ProcessText truncates and sanitizes text in one operation
func (tp *TextProcessor) ProcessText(text string, maxSize int) string {
	truncated := tp.TruncateText(text, maxSize)
	return tp.SanitizeUTF8(truncated)
}
