// Package datekey canonicalizes calendar dates into YYYY-MM-DD keys.
//
// Keys are timezone-naive. Because they are zero-padded, plain string
// comparison orders them chronologically.
package datekey

import (
	"regexp"
	"strings"
	"time"

	"github.com/araddon/dateparse"
)

// Layout is the canonical key layout.
const Layout = "2006-01-02"

// isoPrefix matches YYYY-M-D at the start of the input, followed by the end
// of input or a non-digit (e.g. a "T10:00:00Z" suffix).
var isoPrefix = regexp.MustCompile(`^(\d{4})-(\d{1,2})-(\d{1,2})(?:\D|$)`)

// Range is a normalized inclusive date range. An empty Start marks the whole
// range as invalid.
type Range struct {
	Start string
	End   string
}

// Valid reports whether the range has a usable start.
func (r Range) Valid() bool {
	return r.Start != ""
}

// Normalize converts raw date input to a key. It returns "" when the input
// cannot be understood as a date.
func Normalize(raw string) string {
	s := strings.TrimSpace(raw)
	if s == "" {
		return ""
	}

	if m := isoPrefix.FindStringSubmatch(s); m != nil {
		key := m[1] + "-" + pad2(m[2]) + "-" + pad2(m[3])
		if _, err := time.Parse(Layout, key); err == nil {
			return key
		}
	}

	t, err := dateparse.ParseLocal(s)
	if err != nil {
		return ""
	}
	return t.Format(Layout)
}

// NormalizeRange normalizes both ends of a range. An invalid start
// invalidates the range; an invalid, empty or earlier end collapses to the
// start so malformed ranges degrade to single-day events.
func NormalizeRange(startRaw, endRaw string) Range {
	start := Normalize(startRaw)
	if start == "" {
		return Range{}
	}
	end := Normalize(endRaw)
	if end == "" || end < start {
		end = start
	}
	return Range{Start: start, End: end}
}

// Parse returns the UTC midnight of a key. Non-canonical input is
// normalized first.
func Parse(key string) (time.Time, bool) {
	normalized := Normalize(key)
	if normalized == "" {
		return time.Time{}, false
	}
	t, err := time.ParseInLocation(Layout, normalized, time.UTC)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// Format renders the calendar date of t as a key.
func Format(t time.Time) string {
	return t.Format(Layout)
}

// Today is the key of now's local calendar date.
func Today(now time.Time) string {
	return Format(now.Local())
}

func pad2(s string) string {
	if len(s) == 1 {
		return "0" + s
	}
	return s
}
