package migration_test

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sonenae10-blip/todo/internal/localcache"
	"github.com/sonenae10-blip/todo/internal/logger"
	"github.com/sonenae10-blip/todo/internal/migration"
	"github.com/sonenae10-blip/todo/internal/todos/domain"
	"github.com/sonenae10-blip/todo/internal/todos/service"
)

var now = time.Date(2024, 3, 5, 10, 0, 0, 0, time.Local)

func clock() time.Time { return now }

type recorder struct {
	mu   sync.Mutex
	reqs []domain.CreateRequest
	fail string
}

func (r *recorder) Insert(_ context.Context, owner service.Owner, req domain.CreateRequest) (domain.Todo, error) {
	if req.Text == r.fail {
		return domain.Todo{}, errors.New("store down")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reqs = append(r.reqs, req)
	return domain.Todo{Text: req.Text, OwnerID: owner.ID}, nil
}

func (r *recorder) sorted() []domain.CreateRequest {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := append([]domain.CreateRequest(nil), r.reqs...)
	sort.Slice(out, func(i, j int) bool { return out[i].Text < out[j].Text })
	return out
}

func TestMigrator_Run(t *testing.T) {
	cache := localcache.Open(t.TempDir())
	require.NoError(t, cache.Save([]localcache.Item{
		{ID: "1", Text: "a", StartDate: "2024-03-10", EndDate: "2024-03-12", RepeatDays: []int{1}},
		{ID: "2", Text: "b", Done: true},
		{ID: "3", Text: "broken"},
	}))

	dst := &recorder{fail: "broken"}
	m := migration.New(cache, dst, clock, logger.Discard())

	res := m.Run(context.Background(), service.Owner{ID: "u1"})
	assert.Equal(t, migration.Result{Migrated: 2, Failed: 1}, res)

	reqs := dst.sorted()
	require.Len(t, reqs, 2)
	assert.Equal(t, domain.CreateRequest{Text: "a", StartDate: "2024-03-10", EndDate: "2024-03-12", RepeatDays: []int{1}}, reqs[0])
	assert.Equal(t, domain.CreateRequest{Text: "b", Done: true, StartDate: "2024-03-05", EndDate: "2024-03-05", RepeatDays: []int{}}, reqs[1])

	items, err := cache.Load()
	require.NoError(t, err)
	assert.Empty(t, items, "cleared even when an item failed")

	assert.True(t, m.Run(context.Background(), service.Owner{ID: "u1"}).Skipped)
}

func TestMigrator_EmptyCacheIsSkipped(t *testing.T) {
	dst := &recorder{}
	m := migration.New(localcache.Open(t.TempDir()), dst, clock, logger.Discard())

	res := m.Run(context.Background(), service.Owner{ID: "u1"})
	assert.True(t, res.Skipped)
	assert.Empty(t, dst.reqs)
}

func TestMigrator_EmptyCacheDoesNotUseUpRun(t *testing.T) {
	cache := localcache.Open(t.TempDir())
	dst := &recorder{}
	m := migration.New(cache, dst, clock, logger.Discard())

	assert.True(t, m.Run(context.Background(), service.Owner{ID: "u1"}).Skipped)

	require.NoError(t, cache.Save([]localcache.Item{{ID: "1", Text: "later"}}))
	res := m.Run(context.Background(), service.Owner{ID: "u1"})
	assert.Equal(t, migration.Result{Migrated: 1}, res)
	require.Len(t, dst.sorted(), 1)
}
