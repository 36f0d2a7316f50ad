// Package identity canonicalizes raw patient-supplied fields so the registry
// can compare them. All functions are pure and total: unusable input maps to
// the empty string, never an error.
package identity

import (
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// stripMarks decomposes to NFKD and drops combining marks, so "José" and
// "Jose" canonicalize identically.
var stripMarks = transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)))

// CleanText lower-cases, strips accents, turns punctuation into spaces and
// collapses runs of whitespace.
func CleanText(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	if out, _, err := transform.String(stripMarks, s); err == nil {
		s = out
	}

	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// Phone keeps digits only, so "555-123-4567", "(555) 123 4567" and
// "5551234567" compare equal.
func Phone(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Email trims and case-folds.
func Email(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// dobLayouts are tried in order. Month-first before day-first mirrors how the
// intake data was entered.
var dobLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006/01/02",
	"01/02/2006",
	"01-02-2006",
	"January 2, 2006",
	"Jan 2, 2006",
	"2 January 2006",
}

// DOB parses a date of birth in any supported layout and renders it as
// ISO-8601 YYYY-MM-DD. Unparsable input yields "" which disables the
// date-of-birth bonus during matching rather than matching garbage.
func DOB(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	for _, layout := range dobLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format("2006-01-02")
		}
	}
	return ""
}
