package segment

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// Template renders the positional suffix appended to every part of a
// multi-part message. It holds exactly two %d verbs: the 1-based part
// number followed by the total number of parts. "%%" is a literal percent.
type Template struct {
	format string
}

// ParseTemplate validates format and returns a Template for it.
func ParseTemplate(format string) (Template, error) {
	if strings.TrimSpace(format) == "" {
		return Template{}, fmt.Errorf("%w: template is blank", ErrInvalidTemplate)
	}

	slots := 0
	for i := 0; i < len(format); i++ {
		if format[i] != '%' {
			continue
		}
		if i+1 == len(format) {
			return Template{}, fmt.Errorf("%w: %q ends with a lone %%", ErrInvalidTemplate, format)
		}
		i++
		switch format[i] {
		case '%':
		case 'd':
			slots++
		default:
			return Template{}, fmt.Errorf("%w: %q uses unsupported verb %%%c, only %%d is allowed",
				ErrInvalidTemplate, format, format[i])
		}
	}

	if slots != 2 {
		return Template{}, fmt.Errorf("%w: %q has %d %%d slots, want 2 (part number, total parts)",
			ErrInvalidTemplate, format, slots)
	}

	return Template{format: format}, nil
}

// MustParseTemplate is like ParseTemplate but panics on error.
func MustParseTemplate(format string) Template {
	t, err := ParseTemplate(format)
	if err != nil {
		panic(err)
	}
	return t
}

// Render returns the suffix for part of total.
func (t Template) Render(part, total int) string {
	return fmt.Sprintf(t.format, part, total)
}

// RenderedLen is the length in characters of Render(part, total).
func (t Template) RenderedLen(part, total int) int {
	return utf8.RuneCountInString(t.Render(part, total))
}

func (t Template) String() string {
	return t.format
}

// IsZero reports whether t was never parsed.
func (t Template) IsZero() bool {
	return t.format == ""
}
