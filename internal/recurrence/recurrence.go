// Package recurrence resolves which calendar dates a todo occupies.
//
// A Rule is an inclusive date range plus an optional set of weekdays
// (0 = Sunday ... 6 = Saturday). An empty weekday set means every day in
// the range.
package recurrence

import (
	"fmt"
	"iter"
	"slices"

	"github.com/sonenae10-blip/todo/internal/apperr"
	"github.com/sonenae10-blip/todo/internal/datekey"
)

// Rule describes the dates a todo occurs on.
type Rule struct {
	Start string
	End   string
	Days  []int
}

type weekdaySet [7]bool

func (w weekdaySet) empty() bool {
	for _, on := range w {
		if on {
			return false
		}
	}
	return true
}

func daySet(days []int) weekdaySet {
	var set weekdaySet
	for _, d := range days {
		if d >= 0 && d <= 6 {
			set[d] = true
		}
	}
	return set
}

// Matches reports whether the rule occurs on date.
func Matches(r Rule, date string) bool {
	target, ok := datekey.Parse(date)
	if !ok {
		return false
	}
	key := datekey.Format(target)

	rng := datekey.NormalizeRange(r.Start, r.End)
	if !rng.Valid() {
		return false
	}
	if key < rng.Start || key > rng.End {
		return false
	}

	days := daySet(r.Days)
	return days.empty() || days[target.Weekday()]
}

// Occurrences yields, in ascending order, every date in
// [windowStart, windowEnd] on which the rule occurs. The sequence is
// computed from its inputs on each iteration, so it can be ranged over
// any number of times.
func Occurrences(r Rule, windowStart, windowEnd string) iter.Seq[string] {
	return func(yield func(string) bool) {
		rng := datekey.NormalizeRange(r.Start, r.End)
		if !rng.Valid() {
			return
		}
		ws := datekey.Normalize(windowStart)
		we := datekey.Normalize(windowEnd)
		if ws == "" || we == "" {
			return
		}

		from := max(rng.Start, ws)
		to := min(rng.End, we)
		if to < from {
			return
		}

		cur, ok := datekey.Parse(from)
		if !ok {
			return
		}
		last, ok := datekey.Parse(to)
		if !ok {
			return
		}

		days := daySet(r.Days)
		every := days.empty()
		for !cur.After(last) {
			if every || days[cur.Weekday()] {
				if !yield(datekey.Format(cur)) {
					return
				}
			}
			cur = cur.AddDate(0, 0, 1)
		}
	}
}

// NormalizeDays deduplicates and sorts a weekday set. Values outside 0..6
// are rejected.
func NormalizeDays(days []int) ([]int, error) {
	out := make([]int, 0, len(days))
	for _, d := range days {
		if d < 0 || d > 6 {
			return nil, fmt.Errorf("%w: weekday %d out of range", apperr.ErrInvalidArgument, d)
		}
		if !slices.Contains(out, d) {
			out = append(out, d)
		}
	}
	slices.Sort(out)
	return out, nil
}

// SanitizeDays is the read-path variant of NormalizeDays: invalid values are
// dropped instead of rejected.
func SanitizeDays(days []int) []int {
	out := make([]int, 0, len(days))
	for _, d := range days {
		if d >= 0 && d <= 6 && !slices.Contains(out, d) {
			out = append(out, d)
		}
	}
	slices.Sort(out)
	return out
}
