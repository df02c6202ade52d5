// Package security keeps secrets and subscriber numbers out of the logs.
package security

import (
	"fmt"
	"regexp"
	"strings"
)

const redacted = "***REDACTED***"

// Redactor masks secrets in free text before it is logged. Message bodies
// are user content and may carry one-time codes or credentials.
type Redactor struct {
	patterns []*regexp.Regexp
}

func NewRedactor(patterns []string) (*Redactor, error) {
	compiled := make([]*regexp.Regexp, 0, len(patterns))
	for _, pattern := range patterns {
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid security pattern %q: %w", pattern, err)
		}
		compiled = append(compiled, re)
	}
	return &Redactor{
		patterns: compiled,
	}, nil
}

// Redact replaces every match of the configured patterns. A nil Redactor
// returns text unchanged.
func (r *Redactor) Redact(text string) string {
	if r == nil {
		return text
	}

	result := text
	for _, pattern := range r.patterns {
		result = pattern.ReplaceAllString(result, redacted)
	}
	return result
}

// Preview redacts text and cuts it to at most n runes.
func (r *Redactor) Preview(text string, n int) string {
	out := r.Redact(text)
	runes := []rune(out)
	if n >= 0 && len(runes) > n {
		return string(runes[:n]) + "..."
	}
	return out
}

// MaskPhone keeps the leading + and the last four digits of a number.
func MaskPhone(number string) string {
	plus := strings.HasPrefix(number, "+")
	digits := strings.TrimPrefix(number, "+")
	if len(digits) <= 4 {
		return number
	}

	masked := strings.Repeat("*", len(digits)-4) + digits[len(digits)-4:]
	if plus {
		return "+" + masked
	}
	return masked
}

var DefaultPatterns = []string{
	`api[_-]?key[s]?\s*[:=]\s*["']?([^"'\s]+)`,
	`token[s]?\s*[:=]\s*["']?([^"'\s]+)`,
	`password[s]?\s*[:=]\s*["']?([^"'\s]+)`,
	`secret[s]?\s*[:=]\s*["']?([^"'\s]+)`,
	// Verification codes: "code 123456", "OTP: 1234".
	`(?i)(?:code|otp|pin)\s*[:=]?\s*\d{4,8}`,
	// Telegram bot tokens.
	`\d{8,10}:[A-Za-z0-9_-]{35}`,
	`eyJ[a-zA-Z0-9_-]+\.[a-zA-Z0-9_-]+\.[a-zA-Z0-9_-]+`,
}
