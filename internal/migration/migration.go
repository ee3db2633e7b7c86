// Package migration moves the pre-sign-in local todo list into the user's
// account.
package migration

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"github.com/sonenae10-blip/todo/internal/datekey"
	"github.com/sonenae10-blip/todo/internal/localcache"
	"github.com/sonenae10-blip/todo/internal/todos/domain"
	"github.com/sonenae10-blip/todo/internal/todos/service"
)

// maxInFlight bounds concurrent inserts.
const maxInFlight = 8

// Source is the local list being migrated.
type Source interface {
	Load() ([]localcache.Item, error)
	Clear() error
}

// Inserter writes todos for a resolved owner.
type Inserter interface {
	Insert(ctx context.Context, owner service.Owner, req domain.CreateRequest) (domain.Todo, error)
}

// Result summarizes one run.
type Result struct {
	Skipped  bool
	Migrated int
	Failed   int
}

// Migrator runs at most once per session.
type Migrator struct {
	src Source
	dst Inserter
	now func() time.Time
	log *log.Logger

	mu   sync.Mutex
	done bool
}

func New(src Source, dst Inserter, now func() time.Time, logger *log.Logger) *Migrator {
	if now == nil {
		now = time.Now
	}
	return &Migrator{src: src, dst: dst, now: now, log: logger}
}

// Run inserts every local item for owner and clears the local list. Each
// item is attempted once; failures are logged and counted, and the list is
// cleared regardless. Once a non-empty list has been migrated, later calls
// are no-ops.
func (m *Migrator) Run(ctx context.Context, owner service.Owner) Result {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.done {
		return Result{Skipped: true}
	}

	items, err := m.src.Load()
	if err != nil {
		m.log.Warn("failed to read local todos, skipping migration", "err", err)
		return Result{Skipped: true}
	}
	if len(items) == 0 {
		return Result{Skipped: true}
	}
	m.done = true

	today := datekey.Today(m.now())
	var migrated, failed atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxInFlight)
	for _, item := range items {
		req := request(item, today)
		g.Go(func() error {
			if _, err := m.dst.Insert(gctx, owner, req); err != nil {
				m.log.Warn("failed to migrate local todo", "id", item.ID, "err", err)
				failed.Add(1)
				return nil
			}
			migrated.Add(1)
			return nil
		})
	}
	_ = g.Wait()

	if err := m.src.Clear(); err != nil {
		m.log.Warn("failed to clear local todos", "err", err)
	}

	res := Result{Migrated: int(migrated.Load()), Failed: int(failed.Load())}
	m.log.Info("local todos migrated", "owner", owner.ID, "migrated", res.Migrated, "failed", res.Failed)
	return res
}

func request(item localcache.Item, today string) domain.CreateRequest {
	start := item.StartDate
	if start == "" {
		start = today
	}
	end := item.EndDate
	if end == "" {
		end = start
	}
	rng := datekey.NormalizeRange(start, end)
	if !rng.Valid() {
		rng = datekey.Range{Start: today, End: today}
	}
	return domain.CreateRequest{
		Text:       item.Text,
		Done:       item.Done,
		StartDate:  rng.Start,
		EndDate:    rng.End,
		RepeatDays: item.RepeatDays,
	}
}
