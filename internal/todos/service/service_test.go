package service_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sonenae10-blip/todo/internal/apperr"
	"github.com/sonenae10-blip/todo/internal/friends"
	"github.com/sonenae10-blip/todo/internal/handles"
	"github.com/sonenae10-blip/todo/internal/logger"
	"github.com/sonenae10-blip/todo/internal/profiles"
	"github.com/sonenae10-blip/todo/internal/store"
	"github.com/sonenae10-blip/todo/internal/store/redisstore"
	"github.com/sonenae10-blip/todo/internal/store/storetest"
	"github.com/sonenae10-blip/todo/internal/todos/domain"
	"github.com/sonenae10-blip/todo/internal/todos/service"
)

var now = time.Date(2024, 3, 5, 10, 0, 0, 0, time.Local)

func clock() time.Time { return now }

type fixture struct {
	store    *redisstore.Store
	todos    *service.TodoService
	friends  *friends.Service
	profiles *profiles.Service
}

func setup(t *testing.T) fixture {
	t.Helper()
	s, _ := storetest.New(t)
	gen := handles.NewRandomGenerator(nil)
	p := profiles.NewService(s, gen, clock, logger.Discard())
	f := friends.NewService(s, clock, logger.Discard())
	return fixture{
		store:    s,
		todos:    service.NewTodoService(s, p, f, clock, logger.Discard()),
		friends:  f,
		profiles: p,
	}
}

// befriend writes both relationship records directly.
func befriend(t *testing.T, s store.Store, a, b string) {
	t.Helper()
	require.NoError(t, s.Batch().
		Set(store.Friends, store.PairID(a, b), map[string]any{"ownerId": a, "friendId": b, "friendHandle": "h-" + b}, false).
		Set(store.Friends, store.PairID(b, a), map[string]any{"ownerId": b, "friendId": a, "friendHandle": "h-" + a}, false).
		Commit(context.Background()))
}

func ptr[T any](v T) *T { return &v }

func TestTodoService_Create(t *testing.T) {
	fx := setup(t)
	ctx := context.Background()

	p, err := fx.profiles.Ensure(ctx, "u1", "a@example.com")
	require.NoError(t, err)

	t.Run("stamps the owner and defaults dates to today", func(t *testing.T) {
		todo, err := fx.todos.Create(ctx, "u1", domain.CreateRequest{Text: "  buy milk "})
		require.NoError(t, err)
		assert.NotEmpty(t, todo.ID)
		assert.Equal(t, "buy milk", todo.Text)
		assert.Equal(t, "2024-03-05", todo.StartDate)
		assert.Equal(t, "2024-03-05", todo.EndDate)
		assert.Equal(t, p.Handle, todo.OwnerHandle)
		assert.True(t, todo.OwnerAuto)

		doc, err := fx.store.Get(ctx, store.Todos, todo.ID)
		require.NoError(t, err)
		assert.Equal(t, "2024-03-05", store.String(doc.Fields, "date"))
		assert.Equal(t, "u1", store.String(doc.Fields, "ownerId"))
	})

	t.Run("normalizes range and weekdays", func(t *testing.T) {
		todo, err := fx.todos.Create(ctx, "u1", domain.CreateRequest{
			Text:       "gym",
			StartDate:  "2024-3-10",
			EndDate:    "2024-03-01",
			RepeatDays: []int{5, 1, 1},
		})
		require.NoError(t, err)
		assert.Equal(t, "2024-03-10", todo.EndDate)
		assert.Equal(t, []int{1, 5}, todo.RepeatDays)
	})

	t.Run("rejects bad input", func(t *testing.T) {
		_, err := fx.todos.Create(ctx, "u1", domain.CreateRequest{Text: "  "})
		assert.ErrorIs(t, err, domain.ErrEmptyText)

		_, err = fx.todos.Create(ctx, "u1", domain.CreateRequest{Text: "x", StartDate: "nonsense"})
		assert.ErrorIs(t, err, apperr.ErrInvalidArgument)

		_, err = fx.todos.Create(ctx, "u1", domain.CreateRequest{Text: "x", RepeatDays: []int{7}})
		assert.ErrorIs(t, err, apperr.ErrInvalidArgument)
	})

	t.Run("keeps the done state of an inserted item", func(t *testing.T) {
		todo, err := fx.todos.Insert(ctx, service.Owner{ID: "u1"}, domain.CreateRequest{Text: "finished", Done: true})
		require.NoError(t, err)
		assert.True(t, todo.Done)

		got, err := fx.todos.Get(ctx, todo.ID)
		require.NoError(t, err)
		assert.True(t, got.Done)
	})

	t.Run("works without a profile", func(t *testing.T) {
		todo, err := fx.todos.Create(ctx, "nobody", domain.CreateRequest{Text: "x"})
		require.NoError(t, err)
		assert.Empty(t, todo.OwnerHandle)
	})
}

func TestTodoService_OwnerOnlyMutations(t *testing.T) {
	fx := setup(t)
	ctx := context.Background()

	todo, err := fx.todos.Create(ctx, "u1", domain.CreateRequest{Text: "mine", StartDate: "2024-03-01"})
	require.NoError(t, err)

	_, err = fx.todos.Toggle(ctx, "u2", todo.ID)
	assert.ErrorIs(t, err, apperr.ErrPermissionDenied)
	_, err = fx.todos.Update(ctx, "u2", todo.ID, domain.UpdateRequest{Text: ptr("hacked")})
	assert.ErrorIs(t, err, apperr.ErrPermissionDenied)
	assert.ErrorIs(t, fx.todos.Delete(ctx, "u2", todo.ID), apperr.ErrPermissionDenied)

	toggled, err := fx.todos.Toggle(ctx, "u1", todo.ID)
	require.NoError(t, err)
	assert.True(t, toggled.Done)

	updated, err := fx.todos.Update(ctx, "u1", todo.ID, domain.UpdateRequest{
		Text:       ptr("renamed"),
		EndDate:    ptr("2024-03-03"),
		RepeatDays: ptr([]int{3}),
	})
	require.NoError(t, err)
	assert.Equal(t, "renamed", updated.Text)
	assert.Equal(t, "2024-03-01", updated.StartDate)
	assert.Equal(t, "2024-03-03", updated.EndDate)
	assert.True(t, updated.Done)

	stored, err := fx.todos.Get(ctx, todo.ID)
	require.NoError(t, err)
	assert.Equal(t, updated.Text, stored.Text)
	assert.Equal(t, []int{3}, stored.RepeatDays)
	assert.True(t, stored.Done)
	assert.Equal(t, "u1", stored.OwnerID)

	require.NoError(t, fx.todos.Delete(ctx, "u1", todo.ID))
	require.NoError(t, fx.todos.Delete(ctx, "u1", todo.ID), "deleting twice is fine")

	_, err = fx.todos.Toggle(ctx, "u1", todo.ID)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestTodoService_Visible(t *testing.T) {
	fx := setup(t)
	ctx := context.Background()

	// 11 friends plus the owner need two chunks.
	for i := 1; i <= 11; i++ {
		friend := fmt.Sprintf("f%02d", i)
		befriend(t, fx.store, "u1", friend)
		_, err := fx.todos.Insert(ctx, service.Owner{ID: friend}, domain.CreateRequest{Text: "from " + friend})
		require.NoError(t, err)
	}
	for _, text := range []string{"own", "own again"} {
		_, err := fx.todos.Insert(ctx, service.Owner{ID: "u1"}, domain.CreateRequest{Text: text})
		require.NoError(t, err)
	}
	_, err := fx.todos.Insert(ctx, service.Owner{ID: "stranger"}, domain.CreateRequest{Text: "hidden"})
	require.NoError(t, err)

	items, err := fx.todos.Visible(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, items, 13)
	for i, item := range items {
		assert.NotEqual(t, "stranger", item.OwnerID)
		if i < 2 {
			assert.Equal(t, "u1", item.OwnerID, "own items come first")
		} else {
			assert.NotEqual(t, "u1", item.OwnerID)
		}
	}

	own, err := fx.todos.Own(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, own, 2)
}

func TestChunk(t *testing.T) {
	ids := make([]string, 23)
	for i := range ids {
		ids[i] = fmt.Sprint(i)
	}
	chunks := service.Chunk(ids, store.MaxInValues)
	require.Len(t, chunks, 3)
	assert.Len(t, chunks[0], 10)
	assert.Len(t, chunks[2], 3)
	assert.Equal(t, "22", chunks[2][2])

	assert.Empty(t, service.Chunk(nil, 10))
}

func TestOwnerIDs(t *testing.T) {
	got := service.OwnerIDs("u1", []friends.Relationship{{FriendID: "u2"}, {FriendID: "u1"}, {FriendID: "u2"}, {FriendID: "u3"}})
	assert.Equal(t, []string{"u1", "u2", "u3"}, got)
}

type recorder struct {
	mu      sync.Mutex
	updates []service.Update
}

func (r *recorder) record(u service.Update) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.updates = append(r.updates, u)
}

func (r *recorder) last() (service.Update, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.updates) == 0 {
		return service.Update{}, 0
	}
	return r.updates[len(r.updates)-1], len(r.updates)
}

func (r *recorder) lastHas(texts ...string) bool {
	u, _ := r.last()
	found := make(map[string]bool)
	for _, item := range u.Items {
		found[item.Text] = true
	}
	for _, text := range texts {
		if !found[text] {
			return false
		}
	}
	return len(u.Items) == len(texts)
}

func TestTodoService_Watch(t *testing.T) {
	fx := setup(t)
	ctx := context.Background()

	for i := 1; i <= 10; i++ {
		befriend(t, fx.store, "u1", fmt.Sprintf("f%02d", i))
	}
	_, err := fx.todos.Insert(ctx, service.Owner{ID: "u1"}, domain.CreateRequest{Text: "own"})
	require.NoError(t, err)
	_, err = fx.todos.Insert(ctx, service.Owner{ID: "f10"}, domain.CreateRequest{Text: "f10"})
	require.NoError(t, err)

	rec := &recorder{}
	feed, err := fx.todos.Watch(ctx, "u1", rec.record)
	require.NoError(t, err)

	wait := func(texts ...string) {
		t.Helper()
		assert.Eventually(t, func() bool { return rec.lastHas(texts...) }, 3*time.Second, 10*time.Millisecond, "want %v", texts)
	}

	// f10 is the 11th owner id and lives in the second chunk.
	wait("own", "f10")
	u, _ := rec.last()
	assert.NoError(t, u.Err)
	assert.Equal(t, "h-f10", u.Friends["f10"])

	_, err = fx.todos.Insert(ctx, service.Owner{ID: "f10"}, domain.CreateRequest{Text: "f10 again"})
	require.NoError(t, err)
	wait("own", "f10", "f10 again")

	befriend(t, fx.store, "u1", "f11")
	_, err = fx.todos.Insert(ctx, service.Owner{ID: "f11"}, domain.CreateRequest{Text: "f11"})
	require.NoError(t, err)
	wait("own", "f10", "f10 again", "f11")
	u, _ = rec.last()
	assert.Equal(t, "own", u.Items[0].Text, "own items lead the feed")

	require.NoError(t, fx.friends.Remove(ctx, "u1", "f10"))
	wait("own", "f11")

	feed.Close()
	_, count := rec.last()

	_, err = fx.todos.Insert(ctx, service.Owner{ID: "u1"}, domain.CreateRequest{Text: "after close"})
	require.NoError(t, err)
	time.Sleep(100 * time.Millisecond)

	_, after := rec.last()
	assert.Equal(t, count, after, "no updates after Close")

	feed.Close()
}

// manualStore hands todo subscriptions to the test instead of the backend.
type manualStore struct {
	store.Store
	mu   sync.Mutex
	subs []func(store.Snapshot)
}

func (m *manualStore) Subscribe(ctx context.Context, q store.Query, fn func(store.Snapshot)) (store.Subscription, error) {
	if q.Collection != store.Todos {
		return m.Store.Subscribe(ctx, q, fn)
	}
	m.mu.Lock()
	m.subs = append(m.subs, fn)
	m.mu.Unlock()
	return store.Start(ctx, func(ctx context.Context) { <-ctx.Done() }), nil
}

func (m *manualStore) push(snap store.Snapshot) {
	m.mu.Lock()
	fn := m.subs[len(m.subs)-1]
	m.mu.Unlock()
	fn(snap)
}

func TestTodoService_WatchKeepsStaleItemsOnError(t *testing.T) {
	base, _ := storetest.New(t)
	ms := &manualStore{Store: base}
	f := friends.NewService(ms, clock, logger.Discard())
	todos := service.NewTodoService(ms, profiles.NewService(ms, handles.NewRandomGenerator(nil), clock, logger.Discard()), f, clock, logger.Discard())

	rec := &recorder{}
	feed, err := todos.Watch(context.Background(), "u1", rec.record)
	require.NoError(t, err)
	defer feed.Close()

	ms.push(store.Snapshot{Docs: []store.Document{{ID: "t1", Fields: map[string]any{"text": "own", "ownerId": "u1", "startDate": "2024-03-01"}}}})
	assert.True(t, rec.lastHas("own"))

	ms.push(store.Snapshot{Err: apperr.ErrStoreUnavailable})
	u, _ := rec.last()
	assert.ErrorIs(t, u.Err, apperr.ErrStoreUnavailable)
	require.Len(t, u.Items, 1)
	assert.Equal(t, "own", u.Items[0].Text, "stale items are kept")

	ms.push(store.Snapshot{})
	u, _ = rec.last()
	assert.NoError(t, u.Err)
	assert.Empty(t, u.Items)
}
