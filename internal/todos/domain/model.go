package domain

import (
	"time"

	"github.com/sonenae10-blip/todo/internal/datekey"
	"github.com/sonenae10-blip/todo/internal/recurrence"
	"github.com/sonenae10-blip/todo/internal/store"
)

// Todo is a date-scoped item: a single day, an inclusive range, or a weekly
// recurrence inside a range.
type Todo struct {
	ID          string    `json:"id"`
	Text        string    `json:"text"`
	Done        bool      `json:"done"`
	StartDate   string    `json:"startDate"`
	EndDate     string    `json:"endDate"`
	RepeatDays  []int     `json:"repeatDays"`
	OwnerID     string    `json:"ownerId"`
	OwnerHandle string    `json:"ownerHandle"`
	OwnerAuto   bool      `json:"ownerAuto"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Rule is the recurrence rule of the todo.
func (t Todo) Rule() recurrence.Rule {
	return recurrence.Rule{Start: t.StartDate, End: t.EndDate, Days: t.RepeatDays}
}

// OwnedBy reports whether uid may mutate the todo.
func (t Todo) OwnedBy(uid string) bool {
	return uid != "" && t.OwnerID == uid
}

// FromDocument converts a stored todo into its canonical shape. Documents
// written before ranges existed only carry "date", which stands for a
// single-day range. An unusable start leaves both dates empty.
func FromDocument(doc store.Document) Todo {
	f := doc.Fields
	legacy := store.String(f, "date")

	start := firstNonEmpty(store.String(f, "startDate"), legacy)
	end := firstNonEmpty(store.String(f, "endDate"), legacy, start)
	rng := datekey.NormalizeRange(start, end)

	return Todo{
		ID:          doc.ID,
		Text:        store.String(f, "text"),
		Done:        store.Bool(f, "done"),
		StartDate:   rng.Start,
		EndDate:     rng.End,
		RepeatDays:  recurrence.SanitizeDays(store.Ints(f, "repeatDays")),
		OwnerID:     store.String(f, "ownerId"),
		OwnerHandle: store.String(f, "ownerHandle"),
		OwnerAuto:   store.Bool(f, "ownerAuto"),
		CreatedAt:   store.Time(f, "createdAt"),
		UpdatedAt:   store.Time(f, "updatedAt"),
	}
}

// Fields is the stored form of the todo. "date" mirrors the start date for
// readers that predate ranges.
func (t Todo) Fields() map[string]any {
	days := t.RepeatDays
	if days == nil {
		days = []int{}
	}
	return map[string]any{
		"text":        t.Text,
		"done":        t.Done,
		"date":        t.StartDate,
		"startDate":   t.StartDate,
		"endDate":     t.EndDate,
		"repeatDays":  days,
		"ownerId":     t.OwnerID,
		"ownerHandle": t.OwnerHandle,
		"ownerAuto":   t.OwnerAuto,
		"createdAt":   t.CreatedAt,
		"updatedAt":   t.UpdatedAt,
	}
}

// CreateRequest carries the fields a user supplies for a new todo. Empty
// dates default to today.
type CreateRequest struct {
	Text       string `json:"text"`
	Done       bool   `json:"done"`
	StartDate  string `json:"startDate"`
	EndDate    string `json:"endDate"`
	RepeatDays []int  `json:"repeatDays"`
}

// UpdateRequest is a partial update; nil fields are left unchanged.
type UpdateRequest struct {
	Text       *string `json:"text"`
	StartDate  *string `json:"startDate"`
	EndDate    *string `json:"endDate"`
	RepeatDays *[]int  `json:"repeatDays"`
	Done       *bool   `json:"done"`
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
