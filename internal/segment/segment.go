// Package segment splits a message into parts that each fit a fixed maximum
// length once a positional suffix ("Part 3 of 9") is appended.
//
// Lengths are counted in characters (Unicode code points). A part never
// splits a character. The package is pure and safe for concurrent use.
package segment

import (
	"strings"
	"unicode/utf8"
)

// DefaultMaxParts bounds the part count search when a Segmenter does not set
// its own ceiling.
const DefaultMaxParts = 1000

// Part is one segment of a message.
type Part struct {
	Index   int
	Total   int
	Content string
	Suffix  string
}

// Text is the part as it goes over the wire.
func (p Part) Text() string {
	return p.Content + p.Suffix
}

// Len is the length of Text in characters.
func (p Part) Len() int {
	return utf8.RuneCountInString(p.Content) + utf8.RuneCountInString(p.Suffix)
}

// Segmenter splits messages. The zero value is ready to use.
type Segmenter struct {
	// MaxParts caps the part count search. Zero means DefaultMaxParts.
	MaxParts int
}

// Split is Segmenter{}.Split.
func Split(message string, maxPartLength int, tmpl Template) ([]Part, error) {
	return Segmenter{}.Split(message, maxPartLength, tmpl)
}

// Split divides message into the fewest parts the greedy layout allows.
//
// A message that already fits in maxPartLength comes back as a single part
// without a suffix. Otherwise part counts k = 2, 3, ... are tried in order:
// for each k every part i takes as much of the remaining message as
// maxPartLength minus the length of its own (i, k) suffix allows, and the
// first k whose layout consumes the whole message wins.
//
// The search stops with a *SuffixError as soon as any suffix for the
// candidate k leaves no room for content, and with an *ExhaustedError once k
// passes MaxParts. No partial result is returned on error.
func (s Segmenter) Split(message string, maxPartLength int, tmpl Template) ([]Part, error) {
	if maxPartLength < 1 {
		return nil, ErrInvalidMaxLength
	}
	if tmpl.IsZero() {
		return nil, ErrInvalidTemplate
	}

	runes := []rune(message)
	if len(runes) <= maxPartLength {
		return []Part{{Index: 1, Total: 1, Content: message}}, nil
	}

	limit := s.maxParts()
	for k := 2; k <= limit; k++ {
		suffixes, capacities, err := plan(k, maxPartLength, tmpl)
		if err != nil {
			return nil, err
		}
		if covered(capacities, len(runes)) >= len(runes) {
			return layout(runes, suffixes, capacities), nil
		}
	}

	return nil, &ExhaustedError{
		MaxParts:      limit,
		MessageLength: len(runes),
		MaxPartLength: maxPartLength,
	}
}

func (s Segmenter) maxParts() int {
	if s.MaxParts > 0 {
		return s.MaxParts
	}
	return DefaultMaxParts
}

// plan renders every suffix for a k-part split and the content capacity left
// next to each one.
func plan(k, maxPartLength int, tmpl Template) ([]string, []int, error) {
	suffixes := make([]string, k)
	capacities := make([]int, k)
	for i := 1; i <= k; i++ {
		suffix := tmpl.Render(i, k)
		capacity := maxPartLength - utf8.RuneCountInString(suffix)
		if capacity <= 0 {
			return nil, nil, &SuffixError{
				Part:          i,
				Total:         k,
				Suffix:        suffix,
				MaxPartLength: maxPartLength,
			}
		}
		suffixes[i-1] = suffix
		capacities[i-1] = capacity
	}
	return suffixes, capacities, nil
}

// covered is how many of length characters a layout with these capacities
// consumes.
func covered(capacities []int, length int) int {
	total := 0
	for _, c := range capacities {
		total += c
		if total >= length {
			return length
		}
	}
	return total
}

func layout(runes []rune, suffixes []string, capacities []int) []Part {
	total := len(suffixes)
	parts := make([]Part, 0, total)
	start := 0
	for i, capacity := range capacities {
		end := min(start+capacity, len(runes))
		parts = append(parts, Part{
			Index:   i + 1,
			Total:   total,
			Content: string(runes[start:end]),
			Suffix:  suffixes[i],
		})
		start = end
	}
	return parts
}

// Texts returns the wire text of every part, in order.
func Texts(parts []Part) []string {
	texts := make([]string, len(parts))
	for i, p := range parts {
		texts[i] = p.Text()
	}
	return texts
}

// Join reassembles the original message from its parts.
func Join(parts []Part) string {
	var sb strings.Builder
	for _, p := range parts {
		sb.WriteString(p.Content)
	}
	return sb.String()
}
