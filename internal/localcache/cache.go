// Package localcache keeps the todo list a user builds before signing in.
// The list lives in a single diskv key and is migrated to the user's
// account on the first sign-in.
package localcache

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"strconv"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/peterbourgon/diskv/v3"

	"github.com/sonenae10-blip/todo/internal/datekey"
	"github.com/sonenae10-blip/todo/internal/recurrence"
	"github.com/sonenae10-blip/todo/internal/store"
)

// Key is the diskv key of the list.
const Key = "todoList"

// Item is one locally kept todo.
type Item struct {
	ID         string `json:"id"`
	Text       string `json:"text"`
	Done       bool   `json:"done"`
	StartDate  string `json:"startDate"`
	EndDate    string `json:"endDate"`
	RepeatDays []int  `json:"repeatDays"`
}

type Cache struct {
	mu    sync.Mutex
	d     *diskv.Diskv
	newID func() string
}

// Open returns a cache rooted at dir.
func Open(dir string) *Cache {
	return &Cache{
		d: diskv.New(diskv.Options{
			BasePath:     dir,
			CacheSizeMax: 1024 * 1024, // 1MB
		}),
		newID: uuid.NewString,
	}
}

// Load returns the normalized list and writes it back when normalization
// changed anything. A missing or unreadable list is empty.
func (c *Cache) Load() ([]Item, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	raw, err := c.d.Read(Key)
	if errors.Is(err, fs.ErrNotExist) {
		return []Item{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", Key, err)
	}

	var docs []map[string]any
	if err := json.Unmarshal(raw, &docs); err != nil {
		return []Item{}, nil
	}

	items := make([]Item, 0, len(docs))
	for _, doc := range docs {
		if doc == nil {
			continue
		}
		items = append(items, c.normalize(doc))
	}

	normalized, err := json.Marshal(items)
	if err != nil {
		return nil, err
	}
	if string(normalized) != strings.TrimSpace(string(raw)) {
		if err := c.d.Write(Key, normalized); err != nil {
			return nil, fmt.Errorf("write %s: %w", Key, err)
		}
	}
	return items, nil
}

// Save replaces the list.
func (c *Cache) Save(items []Item) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.write(items)
}

// Add appends one item, assigning an id when it has none.
func (c *Cache) Add(item Item) (Item, error) {
	items, err := c.Load()
	if err != nil {
		return Item{}, err
	}
	if item.ID == "" {
		item.ID = c.newID()
	}
	item.RepeatDays = recurrence.SanitizeDays(item.RepeatDays)

	c.mu.Lock()
	defer c.mu.Unlock()
	return item, c.write(append(items, item))
}

// Clear removes the list.
func (c *Cache) Clear() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.d.Erase(Key); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("erase %s: %w", Key, err)
	}
	return nil
}

func (c *Cache) write(items []Item) error {
	if items == nil {
		items = []Item{}
	}
	b, err := json.Marshal(items)
	if err != nil {
		return err
	}
	return c.d.Write(Key, b)
}

// normalize maps a stored item, possibly written by an older client, to the
// current shape: ids become strings, the single "date" field becomes a
// one-day range, and weekdays are sanitized.
func (c *Cache) normalize(doc map[string]any) Item {
	legacy := store.String(doc, "date")
	start := firstNonEmpty(store.String(doc, "startDate"), legacy)
	end := firstNonEmpty(store.String(doc, "endDate"), legacy, start)
	rng := datekey.NormalizeRange(start, end)

	return Item{
		ID:         c.id(doc["id"]),
		Text:       store.String(doc, "text"),
		Done:       store.Bool(doc, "done"),
		StartDate:  rng.Start,
		EndDate:    rng.End,
		RepeatDays: recurrence.SanitizeDays(store.Ints(doc, "repeatDays")),
	}
}

func (c *Cache) id(v any) string {
	switch id := v.(type) {
	case string:
		if strings.TrimSpace(id) != "" {
			return id
		}
	case float64:
		return strconv.FormatFloat(id, 'f', -1, 64)
	}
	return c.newID()
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
