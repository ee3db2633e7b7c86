package service

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/sonenae10-blip/todo/internal/datekey"
	"github.com/sonenae10-blip/todo/internal/friends"
	"github.com/sonenae10-blip/todo/internal/profiles"
	"github.com/sonenae10-blip/todo/internal/recurrence"
	"github.com/sonenae10-blip/todo/internal/store"
	"github.com/sonenae10-blip/todo/internal/todos/domain"
)

// ProfileSource provides the owner stamp written on new todos.
type ProfileSource interface {
	Get(ctx context.Context, uid string) (profiles.Profile, error)
}

// FriendSource lists and watches the viewer's friends.
type FriendSource interface {
	Friends(ctx context.Context, owner string) ([]friends.Relationship, error)
	WatchFriends(ctx context.Context, owner string, fn func([]friends.Relationship, error)) (store.Subscription, error)
}

// Owner is the identity a new todo is stamped with.
type Owner struct {
	ID     string
	Handle string
	Auto   bool
}

type TodoService struct {
	store    store.Store
	profiles ProfileSource
	friends  FriendSource
	newID    func() string
	now      func() time.Time
	log      *log.Logger
}

func NewTodoService(s store.Store, p ProfileSource, f FriendSource, now func() time.Time, logger *log.Logger) *TodoService {
	if now == nil {
		now = time.Now
	}
	return &TodoService{
		store:    s,
		profiles: p,
		friends:  f,
		newID:    uuid.NewString,
		now:      now,
		log:      logger,
	}
}

// Create adds a todo owned by ownerID, stamped with the owner's handle.
func (s *TodoService) Create(ctx context.Context, ownerID string, req domain.CreateRequest) (domain.Todo, error) {
	owner := Owner{ID: ownerID}
	p, err := s.profiles.Get(ctx, ownerID)
	switch {
	case err == nil:
		owner.Handle, owner.Auto = p.Handle, p.HandleAuto
	case errors.Is(err, store.ErrNotFound):
	default:
		return domain.Todo{}, fmt.Errorf("load owner profile: %w", err)
	}
	return s.Insert(ctx, owner, req)
}

// Insert adds a todo for an already resolved owner. Empty dates default to
// today; an end before the start collapses to the start.
func (s *TodoService) Insert(ctx context.Context, owner Owner, req domain.CreateRequest) (domain.Todo, error) {
	if owner.ID == "" {
		return domain.Todo{}, domain.ErrNotOwner
	}
	text := strings.TrimSpace(req.Text)
	if text == "" {
		return domain.Todo{}, domain.ErrEmptyText
	}
	days, err := recurrence.NormalizeDays(req.RepeatDays)
	if err != nil {
		return domain.Todo{}, err
	}

	now := s.now()
	today := datekey.Today(now)
	start := firstNonEmpty(req.StartDate, today)
	rng := datekey.NormalizeRange(start, firstNonEmpty(req.EndDate, start))
	if !rng.Valid() {
		return domain.Todo{}, domain.ErrInvalidDate
	}

	todo := domain.Todo{
		ID:          s.newID(),
		Text:        text,
		Done:        req.Done,
		StartDate:   rng.Start,
		EndDate:     rng.End,
		RepeatDays:  days,
		OwnerID:     owner.ID,
		OwnerHandle: owner.Handle,
		OwnerAuto:   owner.Auto,
		CreatedAt:   now.UTC(),
		UpdatedAt:   now.UTC(),
	}
	if err := s.store.Create(ctx, store.Todos, todo.ID, todo.Fields()); err != nil {
		return domain.Todo{}, fmt.Errorf("create todo: %w", err)
	}
	return todo, nil
}

// Get loads a todo by id.
func (s *TodoService) Get(ctx context.Context, id string) (domain.Todo, error) {
	doc, err := s.store.Get(ctx, store.Todos, id)
	if err != nil {
		return domain.Todo{}, err
	}
	return domain.FromDocument(*doc), nil
}

// Update applies a partial update. Only the owner may update.
func (s *TodoService) Update(ctx context.Context, caller, id string, req domain.UpdateRequest) (domain.Todo, error) {
	todo, err := s.owned(ctx, caller, id)
	if err != nil {
		return domain.Todo{}, err
	}

	if req.Text != nil {
		text := strings.TrimSpace(*req.Text)
		if text == "" {
			return domain.Todo{}, domain.ErrEmptyText
		}
		todo.Text = text
	}
	if req.StartDate != nil || req.EndDate != nil {
		start, end := todo.StartDate, todo.EndDate
		if req.StartDate != nil {
			start = *req.StartDate
		}
		if req.EndDate != nil {
			end = *req.EndDate
		}
		start = firstNonEmpty(start, datekey.Today(s.now()))
		rng := datekey.NormalizeRange(start, firstNonEmpty(end, start))
		if !rng.Valid() {
			return domain.Todo{}, domain.ErrInvalidDate
		}
		todo.StartDate, todo.EndDate = rng.Start, rng.End
	}
	if req.RepeatDays != nil {
		days, err := recurrence.NormalizeDays(*req.RepeatDays)
		if err != nil {
			return domain.Todo{}, err
		}
		todo.RepeatDays = days
	}
	if req.Done != nil {
		todo.Done = *req.Done
	}
	todo.UpdatedAt = s.now().UTC()

	days := todo.RepeatDays
	if days == nil {
		days = []int{}
	}
	err = s.store.Set(ctx, store.Todos, id, map[string]any{
		"text":       todo.Text,
		"done":       todo.Done,
		"date":       todo.StartDate,
		"startDate":  todo.StartDate,
		"endDate":    todo.EndDate,
		"repeatDays": days,
		"updatedAt":  todo.UpdatedAt,
	}, true)
	if err != nil {
		return domain.Todo{}, fmt.Errorf("update todo: %w", err)
	}
	return todo, nil
}

// Toggle flips the done flag.
func (s *TodoService) Toggle(ctx context.Context, caller, id string) (domain.Todo, error) {
	todo, err := s.owned(ctx, caller, id)
	if err != nil {
		return domain.Todo{}, err
	}
	todo.Done = !todo.Done
	todo.UpdatedAt = s.now().UTC()

	err = s.store.Set(ctx, store.Todos, id, map[string]any{
		"done":      todo.Done,
		"updatedAt": todo.UpdatedAt,
	}, true)
	if err != nil {
		return domain.Todo{}, fmt.Errorf("toggle todo: %w", err)
	}
	return todo, nil
}

// Delete removes a todo. A todo that is already gone is not an error.
func (s *TodoService) Delete(ctx context.Context, caller, id string) error {
	_, err := s.owned(ctx, caller, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if err := s.store.Delete(ctx, store.Todos, id); err != nil {
		return fmt.Errorf("delete todo: %w", err)
	}
	return nil
}

// Own lists the todos owned by owner.
func (s *TodoService) Own(ctx context.Context, owner string) ([]domain.Todo, error) {
	docs, err := s.store.Query(ctx, store.Query{Collection: store.Todos}.Where(store.Eq("ownerId", owner)))
	if err != nil {
		return nil, err
	}
	return todosFrom(docs), nil
}

// Visible lists the todos of owner and every friend, querying owner ids in
// chunks the store can serve.
func (s *TodoService) Visible(ctx context.Context, owner string) ([]domain.Todo, error) {
	rels, err := s.friends.Friends(ctx, owner)
	if err != nil {
		return nil, fmt.Errorf("list friends: %w", err)
	}

	var items []domain.Todo
	for _, chunk := range Chunk(OwnerIDs(owner, rels), store.MaxInValues) {
		docs, err := s.store.Query(ctx, todosQuery(chunk))
		if err != nil {
			return nil, err
		}
		items = append(items, todosFrom(docs)...)
	}
	return ownFirst(items, owner), nil
}

func (s *TodoService) owned(ctx context.Context, caller, id string) (domain.Todo, error) {
	todo, err := s.Get(ctx, id)
	if err != nil {
		return domain.Todo{}, err
	}
	if !todo.OwnedBy(caller) {
		return domain.Todo{}, domain.ErrNotOwner
	}
	return todo, nil
}

// OwnerIDs is owner followed by each distinct friend id.
func OwnerIDs(owner string, rels []friends.Relationship) []string {
	ids := []string{owner}
	seen := map[string]bool{owner: true}
	for _, id := range friends.FriendIDs(rels) {
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	return ids
}

// Chunk splits ids into consecutive groups of at most size.
func Chunk(ids []string, size int) [][]string {
	var chunks [][]string
	for len(ids) > 0 {
		n := min(size, len(ids))
		chunks = append(chunks, ids[:n:n])
		ids = ids[n:]
	}
	return chunks
}

// ownFirst moves owner's items ahead of friends' items, keeping the
// relative order inside each group.
func ownFirst(items []domain.Todo, owner string) []domain.Todo {
	slices.SortStableFunc(items, func(a, b domain.Todo) int {
		switch {
		case a.OwnerID == b.OwnerID || (a.OwnerID != owner && b.OwnerID != owner):
			return 0
		case a.OwnerID == owner:
			return -1
		default:
			return 1
		}
	})
	return items
}

func todosQuery(ownerIDs []string) store.Query {
	return store.Query{Collection: store.Todos}.Where(store.In("ownerId", ownerIDs...))
}

func todosFrom(docs []store.Document) []domain.Todo {
	out := make([]domain.Todo, 0, len(docs))
	for _, doc := range docs {
		out = append(out, domain.FromDocument(doc))
	}
	return out
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
