package sanitizer

import (
	"regexp"
	"strings"
)

type Strategy func(string) string

type Pipeline []Strategy

func (p Pipeline) Apply(s string) string {
	for _, fn := range p {
		s = fn(s)
	}
	return s
}

var (
	reControlChars    = regexp.MustCompile(`[\x00-\x1f\x7f]+`)
	reMultiWhitespace = regexp.MustCompile(`\s+`)
	reIdentifier      = regexp.MustCompile(`[^0-9A-Za-z_\-]+`)
)

func trim(s string) string {
	return strings.TrimSpace(s)
}

func stripControlChars(s string) string {
	return reControlChars.ReplaceAllString(s, " ")
}

func collapseWhitespace(s string) string {
	return reMultiWhitespace.ReplaceAllString(s, " ")
}

// SanitizeNote normalizes client-supplied free text before it is stored and
// later shown to a practitioner: control characters removed, whitespace
// collapsed, length capped.
func SanitizeNote(input string, maxLen int) string {
	p := Pipeline{
		stripControlChars,
		collapseWhitespace,
		trim,
	}
	s := p.Apply(input)

	if maxLen > 0 && len(s) > maxLen {
		s = strings.TrimSpace(s[:maxLen])
	}
	return s
}

// SanitizeIdentifier strips anything outside [0-9A-Za-z_-] from an external
// identifier such as a resourceId or clientId.
func SanitizeIdentifier(input string) string {
	p := Pipeline{
		trim,
		func(s string) string { return reIdentifier.ReplaceAllString(s, "") },
	}
	return p.Apply(input)
}
