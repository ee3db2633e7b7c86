// Package calendar builds the calendar and list views of a todo set. All
// functions are pure.
package calendar

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/sonenae10-blip/todo/internal/apperr"
	"github.com/sonenae10-blip/todo/internal/datekey"
	"github.com/sonenae10-blip/todo/internal/recurrence"
	"github.com/sonenae10-blip/todo/internal/todos/domain"
)

// Window is an inclusive range of date keys, usually one displayed month.
type Window struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// Month is the window covering every day of the given month.
func Month(year int, month time.Month) Window {
	first := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	last := first.AddDate(0, 1, -1)
	return Window{Start: datekey.Format(first), End: datekey.Format(last)}
}

// ParseMonth parses "YYYY-MM" (or "YYYY-M").
func ParseMonth(s string) (Window, error) {
	year, month, ok := strings.Cut(strings.TrimSpace(s), "-")
	if !ok {
		return Window{}, fmt.Errorf("%w: month %q, want YYYY-MM", apperr.ErrInvalidArgument, s)
	}
	y, err := strconv.Atoi(year)
	if err != nil || len(year) != 4 {
		return Window{}, fmt.Errorf("%w: month %q, want YYYY-MM", apperr.ErrInvalidArgument, s)
	}
	m, err := strconv.Atoi(month)
	if err != nil || m < 1 || m > 12 {
		return Window{}, fmt.Errorf("%w: month %q, want YYYY-MM", apperr.ErrInvalidArgument, s)
	}
	return Month(y, time.Month(m)), nil
}

// CurrentMonth is the window of now's local month.
func CurrentMonth(now time.Time) Window {
	local := now.Local()
	return Month(local.Year(), local.Month())
}

// BuildDateIndex maps each date of the window to the todos occurring on
// it. Within a date, todos keep their input order.
func BuildDateIndex(items []domain.Todo, w Window) map[string][]domain.Todo {
	index := make(map[string][]domain.Todo)
	for _, item := range items {
		for key := range recurrence.Occurrences(item.Rule(), w.Start, w.End) {
			index[key] = append(index[key], item)
		}
	}
	return index
}

// BuildVisibleList returns the todos occurring on selected, or all todos
// when selected is empty, ordered by start date. Todos without a start date
// come last; ties keep their input order.
func BuildVisibleList(items []domain.Todo, selected string) []domain.Todo {
	var list []domain.Todo
	if selected == "" {
		list = slices.Clone(items)
	} else {
		for _, item := range items {
			if recurrence.Matches(item.Rule(), selected) {
				list = append(list, item)
			}
		}
	}

	slices.SortStableFunc(list, func(a, b domain.Todo) int {
		switch {
		case a.StartDate == b.StartDate:
			return 0
		case a.StartDate == "":
			return 1
		case b.StartDate == "":
			return -1
		default:
			return strings.Compare(a.StartDate, b.StartDate)
		}
	})
	return list
}

// Counts splits a todo set into the viewer's own todos and friends' todos.
type Counts struct {
	Own    int `json:"own"`
	Shared int `json:"shared"`
}

func Count(items []domain.Todo, ownerID string) Counts {
	var c Counts
	for _, item := range items {
		if item.OwnerID == ownerID {
			c.Own++
		} else {
			c.Shared++
		}
	}
	return c
}

// View is everything a client needs to render one month and one list.
type View struct {
	Window   Window                   `json:"window"`
	Selected string                   `json:"selected,omitempty"`
	Index    map[string][]domain.Todo `json:"index"`
	List     []domain.Todo            `json:"list"`
	Counts   Counts                   `json:"counts"`
}

// Build assembles the view of items for ownerID.
func Build(items []domain.Todo, ownerID string, w Window, selected string) View {
	selected = datekey.Normalize(selected)
	list := BuildVisibleList(items, selected)
	if list == nil {
		list = []domain.Todo{}
	}
	return View{
		Window:   w,
		Selected: selected,
		Index:    BuildDateIndex(items, w),
		List:     list,
		Counts:   Count(items, ownerID),
	}
}
