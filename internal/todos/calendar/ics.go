package calendar

import (
	"io"
	"time"

	"github.com/emersion/go-ical"
	"github.com/teambition/rrule-go"

	"github.com/sonenae10-blip/todo/internal/datekey"
	"github.com/sonenae10-blip/todo/internal/recurrence"
	"github.com/sonenae10-blip/todo/internal/todos/domain"
)

const productID = "-//todo//Calendar Export//KO"

var byDay = [7]rrule.Weekday{rrule.SU, rrule.MO, rrule.TU, rrule.WE, rrule.TH, rrule.FR, rrule.SA}

// ICS renders items as an iCalendar of all-day events. Weekly todos become
// one event with a weekly RRULE bounded by the end date; todos without a
// usable date or occurrence are skipped.
func ICS(items []domain.Todo, stamp time.Time) *ical.Calendar {
	cal := ical.NewCalendar()
	cal.Props.SetText(ical.PropVersion, "2.0")
	cal.Props.SetText(ical.PropProductID, productID)

	for _, item := range items {
		if ev := event(item, stamp); ev != nil {
			cal.Children = append(cal.Children, ev.Component)
		}
	}
	return cal
}

// WriteICS encodes the calendar of items to w.
func WriteICS(w io.Writer, items []domain.Todo, stamp time.Time) error {
	return ical.NewEncoder(w).Encode(ICS(items, stamp))
}

func event(item domain.Todo, stamp time.Time) *ical.Event {
	rng := datekey.NormalizeRange(item.StartDate, item.EndDate)
	if !rng.Valid() {
		return nil
	}

	first, ok := firstOccurrence(item.Rule(), rng)
	if !ok {
		return nil
	}
	start, _ := datekey.Parse(first)
	end, _ := datekey.Parse(rng.End)

	ev := ical.NewEvent()
	ev.Props.SetText(ical.PropUID, item.ID)
	ev.Props.SetText(ical.PropSummary, item.Text)
	ev.Props.SetDateTime(ical.PropDateTimeStamp, stamp.UTC())
	ev.Props.SetDate(ical.PropDateTimeStart, start)

	if len(item.RepeatDays) == 0 {
		// DTEND is exclusive for all-day events.
		ev.Props.SetDate(ical.PropDateTimeEnd, end.AddDate(0, 0, 1))
	} else {
		ev.Props.SetDate(ical.PropDateTimeEnd, start.AddDate(0, 0, 1))
		rule := ical.NewProp(ical.PropRecurrenceRule)
		rule.Value = weeklyRule(item.RepeatDays, end)
		ev.Props.Set(rule)
	}
	return ev
}

func firstOccurrence(r recurrence.Rule, rng datekey.Range) (string, bool) {
	for key := range recurrence.Occurrences(r, rng.Start, rng.End) {
		return key, true
	}
	return "", false
}

// weeklyRule repeats on days through the end of until's calendar day. UNTIL
// is written in UTC, so the last day is kept for every offset west of it.
func weeklyRule(days []int, until time.Time) string {
	var weekdays []rrule.Weekday
	for _, d := range recurrence.SanitizeDays(days) {
		weekdays = append(weekdays, byDay[d])
	}
	opt := rrule.ROption{
		Freq:      rrule.WEEKLY,
		Byweekday: weekdays,
		Until:     time.Date(until.Year(), until.Month(), until.Day(), 23, 59, 59, 0, time.UTC),
	}
	return opt.RRuleString()
}
