package service

import (
	"context"
	"errors"
	"slices"
	"sync"

	"github.com/sonenae10-blip/todo/internal/friends"
	"github.com/sonenae10-blip/todo/internal/store"
	"github.com/sonenae10-blip/todo/internal/todos/domain"
)

// Update is the merged state of a feed after a change.
type Update struct {
	// Items holds the owner's and friends' todos, chunk by chunk.
	Items []domain.Todo
	// Friends maps friend ids to their display handle.
	Friends map[string]string
	// Err reports failing subscriptions. Their previous items are kept.
	Err error
}

type chunkSub struct {
	ids    []string
	sub    store.Subscription
	items  []domain.Todo
	err    error
	active bool
}

// Feed keeps the todos visible to one owner up to date: it watches the
// owner's friends and holds one todo subscription per chunk of owner ids.
type Feed struct {
	svc   *TodoService
	ctx   context.Context
	owner string
	fn    func(Update)

	mu        sync.Mutex
	closed    bool
	friendSub store.Subscription
	friendErr error
	labels    map[string]string
	chunks    []*chunkSub
	emitMu    sync.Mutex
}

// Watch starts a feed for owner. fn receives the full merged state after
// every change and must not call Close.
func (s *TodoService) Watch(ctx context.Context, owner string, fn func(Update)) (*Feed, error) {
	f := &Feed{
		svc:    s,
		ctx:    ctx,
		owner:  owner,
		fn:     fn,
		labels: map[string]string{},
	}

	// Own todos are shown before the friend list arrives.
	if err := f.replan([]string{owner}); err != nil {
		f.Close()
		return nil, err
	}

	sub, err := s.friends.WatchFriends(ctx, owner, f.onFriends)
	if err != nil {
		f.Close()
		return nil, err
	}

	f.mu.Lock()
	f.friendSub = sub
	f.mu.Unlock()
	return f, nil
}

// Close releases every subscription. No update is delivered once Close
// returns.
func (f *Feed) Close() {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return
	}
	f.closed = true
	friendSub := f.friendSub
	f.mu.Unlock()

	if friendSub != nil {
		friendSub.Close()
	}

	// With the friend subscription closed no replan is running: chunks
	// started by the last one are attached or already closed.
	f.mu.Lock()
	var subs store.Group
	for _, c := range f.chunks {
		c.active = false
		subs = append(subs, c.sub)
	}
	f.chunks = nil
	f.mu.Unlock()
	subs.Close()

	// Wait for an emission that started before Close. The lock cannot be
	// held while closing subscriptions since their callbacks emit.
	f.emitMu.Lock()
	f.emitMu.Unlock()
}

func (f *Feed) onFriends(rels []friends.Relationship, err error) {
	if err != nil {
		f.svc.log.Warn("friend subscription failed, keeping previous friend set", "owner", f.owner, "err", err)
		f.mu.Lock()
		f.friendErr = err
		f.mu.Unlock()
		f.emit()
		return
	}

	f.mu.Lock()
	f.friendErr = nil
	f.labels = friends.HandleMap(rels)
	f.mu.Unlock()

	if err := f.replan(OwnerIDs(f.owner, rels)); err != nil {
		f.svc.log.Error("failed to subscribe to friend todos", "owner", f.owner, "err", err)
		f.mu.Lock()
		f.friendErr = err
		f.mu.Unlock()
	}
	f.emit()
}

// replan makes the chunk subscriptions match ownerIDs. Chunks whose id list
// is unchanged keep their subscription and items. Calls are serialized by
// the friend subscription.
func (f *Feed) replan(ownerIDs []string) error {
	plan := Chunk(ownerIDs, store.MaxInValues)

	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return nil
	}
	var next, started []*chunkSub
	var obsolete store.Group
	reused := make(map[*chunkSub]bool)
	for _, ids := range plan {
		var match *chunkSub
		for _, c := range f.chunks {
			if !reused[c] && slices.Equal(c.ids, ids) {
				match = c
				break
			}
		}
		if match == nil {
			match = &chunkSub{ids: ids, active: true}
			started = append(started, match)
		}
		reused[match] = true
		next = append(next, match)
	}
	for _, c := range f.chunks {
		if !reused[c] {
			c.active = false
			obsolete = append(obsolete, c.sub)
		}
	}
	f.chunks = next
	f.mu.Unlock()

	// Subscriptions are closed outside the lock: their callbacks take it.
	obsolete.Close()

	var errs []error
	for _, c := range started {
		c := c
		sub, err := f.svc.store.Subscribe(f.ctx, todosQuery(c.ids), func(snap store.Snapshot) {
			f.onChunk(c, snap)
		})
		if err != nil {
			f.mu.Lock()
			c.err = err
			f.mu.Unlock()
			errs = append(errs, err)
			continue
		}

		f.mu.Lock()
		if f.closed || !c.active {
			f.mu.Unlock()
			sub.Close()
			continue
		}
		c.sub = sub
		f.mu.Unlock()
	}
	return errors.Join(errs...)
}

func (f *Feed) onChunk(c *chunkSub, snap store.Snapshot) {
	f.mu.Lock()
	if f.closed || !c.active {
		f.mu.Unlock()
		return
	}
	if snap.Err != nil {
		f.svc.log.Warn("todo subscription failed, keeping stale items", "owner", f.owner, "chunk", c.ids, "err", snap.Err)
		c.err = snap.Err
	} else {
		c.items = todosFrom(snap.Docs)
		c.err = nil
	}
	f.mu.Unlock()
	f.emit()
}

// emit delivers the current merged state. Emissions are serialized and each
// one is built after acquiring the emit lock, so an older state is never
// delivered after a newer one.
func (f *Feed) emit() {
	f.emitMu.Lock()
	defer f.emitMu.Unlock()

	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return
	}
	update := Update{Friends: make(map[string]string, len(f.labels))}
	for id, label := range f.labels {
		update.Friends[id] = label
	}
	errs := []error{f.friendErr}
	for _, c := range f.chunks {
		update.Items = append(update.Items, c.items...)
		errs = append(errs, c.err)
	}
	update.Items = ownFirst(update.Items, f.owner)
	update.Err = errors.Join(errs...)
	f.mu.Unlock()

	f.fn(update)
}
