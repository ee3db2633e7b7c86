// Package profiles maintains user profiles and their handle claims.
package profiles

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"

	"github.com/sonenae10-blip/todo/internal/apperr"
	"github.com/sonenae10-blip/todo/internal/handles"
	"github.com/sonenae10-blip/todo/internal/store"
)

// claimRounds bounds how often a claim lost to a concurrent writer is
// retried with a fresh allocation.
const claimRounds = 3

type Profile struct {
	ID         string    `json:"id"`
	Email      string    `json:"email"`
	Handle     string    `json:"handle"`
	HandleAuto bool      `json:"handleAuto"`
	CreatedAt  time.Time `json:"createdAt"`
}

func profileFrom(doc store.Document) Profile {
	return Profile{
		ID:         doc.ID,
		Email:      store.String(doc.Fields, "email"),
		Handle:     store.String(doc.Fields, "handle"),
		HandleAuto: store.Bool(doc.Fields, "handleAuto"),
		CreatedAt:  store.Time(doc.Fields, "createdAt"),
	}
}

type Service struct {
	store    store.Store
	registry *handles.Registry
	gen      handles.Generator
	now      func() time.Time
	log      *log.Logger
}

func NewService(s store.Store, gen handles.Generator, now func() time.Time, logger *log.Logger) *Service {
	if now == nil {
		now = time.Now
	}
	return &Service{
		store:    s,
		registry: handles.NewRegistry(s),
		gen:      gen,
		now:      now,
		log:      logger,
	}
}

// Registry exposes the handle registry used by the service.
func (s *Service) Registry() *handles.Registry {
	return s.registry
}

// Get returns the stored profile, apperr.ErrNotFound when absent.
func (s *Service) Get(ctx context.Context, uid string) (Profile, error) {
	doc, err := s.store.Get(ctx, store.Users, uid)
	if err != nil {
		return Profile{}, err
	}
	return profileFrom(*doc), nil
}

// Ensure runs on every sign-in. A profile with a handle gets its casing
// normalized and a missing registry entry backfilled; a profile without one
// gets a freshly allocated handle that differs from the email.
func (s *Service) Ensure(ctx context.Context, uid, email string) (Profile, error) {
	if uid == "" {
		return Profile{}, fmt.Errorf("%w: empty uid", apperr.ErrInvalidArgument)
	}

	doc, err := s.store.Get(ctx, store.Users, uid)
	switch {
	case errors.Is(err, store.ErrNotFound):
		return s.claim(ctx, uid, email, nil, []string{email})
	case err != nil:
		return Profile{}, err
	}

	p := profileFrom(*doc)
	if p.Handle == "" {
		return s.claim(ctx, uid, email, doc.Fields, []string{email})
	}

	if normalized := handles.Normalize(p.Handle); normalized != p.Handle {
		if err := s.store.Set(ctx, store.Users, uid, map[string]any{"handle": normalized}, true); err != nil {
			return Profile{}, fmt.Errorf("normalize handle: %w", err)
		}
		p.Handle = normalized
	}

	taken, err := s.registry.Taken(ctx, p.Handle)
	if err != nil {
		return Profile{}, err
	}
	if !taken {
		err := s.store.Create(ctx, store.Handles, p.Handle, handles.Entry(uid))
		switch {
		case errors.Is(err, store.ErrAlreadyExists):
			s.log.Warn("handle registered concurrently during backfill", "uid", uid, "handle", p.Handle)
		case err != nil:
			return Profile{}, fmt.Errorf("backfill handle: %w", err)
		}
	}
	return p, nil
}

// Create is the sign-up path: the new handle differs from both the email
// and the password.
func (s *Service) Create(ctx context.Context, uid, email, password string) (Profile, error) {
	if uid == "" {
		return Profile{}, fmt.Errorf("%w: empty uid", apperr.ErrInvalidArgument)
	}
	return s.claim(ctx, uid, email, nil, []string{email, password})
}

// claim allocates a handle and writes the registry entry and the profile in
// one batch. The registry write is a conditional create, so a concurrent
// claim of the same handle fails the whole batch and triggers a new round.
func (s *Service) claim(ctx context.Context, uid, email string, existing map[string]any, excluded []string) (Profile, error) {
	createdAt := s.now().UTC()
	if existing != nil {
		if t := store.Time(existing, "createdAt"); !t.IsZero() {
			createdAt = t
		}
	}

	for round := 0; round < claimRounds; round++ {
		handle, err := handles.Allocate(ctx, s.gen, s.registry.Taken, excluded, handles.DefaultMaxAttempts)
		if err != nil {
			return Profile{}, err
		}

		p := Profile{ID: uid, Email: email, Handle: handle, HandleAuto: true, CreatedAt: createdAt}
		err = s.store.Batch().
			Create(store.Handles, handle, handles.Entry(uid)).
			Set(store.Users, uid, map[string]any{
				"email":      p.Email,
				"handle":     p.Handle,
				"handleAuto": p.HandleAuto,
				"createdAt":  p.CreatedAt,
			}, true).
			Commit(ctx)

		switch {
		case err == nil:
			s.log.Info("handle claimed", "uid", uid, "handle", handle)
			return p, nil
		case errors.Is(err, store.ErrAlreadyExists):
			s.log.Debug("handle claim lost, retrying", "uid", uid, "handle", handle, "round", round+1)
			continue
		default:
			return Profile{}, fmt.Errorf("claim handle: %w", err)
		}
	}

	return Profile{}, fmt.Errorf("%w: claim lost %d times", apperr.ErrHandleExhausted, claimRounds)
}
