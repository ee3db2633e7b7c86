package store

import (
	"context"
	"sync"
)

type runningSubscription struct {
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

// Start runs loop in its own goroutine with a context derived from parent
// and returns a Subscription whose Close cancels that context and waits for
// loop to return.
func Start(parent context.Context, loop func(ctx context.Context)) Subscription {
	ctx, cancel := context.WithCancel(parent)
	s := &runningSubscription{cancel: cancel, done: make(chan struct{})}
	go func() {
		defer close(s.done)
		loop(ctx)
	}()
	return s
}

func (s *runningSubscription) Close() {
	s.once.Do(s.cancel)
	<-s.done
}

// Group closes several subscriptions together.
type Group []Subscription

// Close closes every subscription in the group.
func (g Group) Close() {
	for _, s := range g {
		if s != nil {
			s.Close()
		}
	}
}
