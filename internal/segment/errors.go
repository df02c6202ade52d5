package segment

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidTemplate is returned for suffix templates that do not carry
	// exactly two %d slots.
	ErrInvalidTemplate = errors.New("invalid suffix template")
	// ErrInvalidMaxLength is returned when the maximum part length is below 1.
	ErrInvalidMaxLength = errors.New("max part length must be at least 1")
	// ErrSuffixTooLong means a rendered suffix leaves no room for content.
	ErrSuffixTooLong = errors.New("suffix too long to fit in a single part")
	// ErrSearchExhausted means no part count up to the configured ceiling
	// covers the whole message.
	ErrSearchExhausted = errors.New("part count search exhausted")
)

// SuffixError reports the first part whose suffix does not fit.
type SuffixError struct {
	Part          int
	Total         int
	Suffix        string
	MaxPartLength int
}

func (e *SuffixError) Error() string {
	return fmt.Sprintf("%s: suffix %q for part %d of %d does not fit in %d characters",
		ErrSuffixTooLong, e.Suffix, e.Part, e.Total, e.MaxPartLength)
}

func (e *SuffixError) Unwrap() error {
	return ErrSuffixTooLong
}

// ExhaustedError reports a search that reached its part ceiling.
type ExhaustedError struct {
	MaxParts      int
	MessageLength int
	MaxPartLength int
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("%s: %d characters do not fit in %d parts of at most %d characters",
		ErrSearchExhausted, e.MessageLength, e.MaxParts, e.MaxPartLength)
}

func (e *ExhaustedError) Unwrap() error {
	return ErrSearchExhausted
}

// IsInfeasible reports whether err means the configuration cannot segment
// the message at all.
func IsInfeasible(err error) bool {
	return errors.Is(err, ErrSuffixTooLong) || errors.Is(err, ErrSearchExhausted)
}
