package handles

import (
	"context"
	"errors"
	"fmt"

	"github.com/sonenae10-blip/todo/internal/apperr"
	"github.com/sonenae10-blip/todo/internal/store"
)

// Registry reads the handle registry (handles/{handle} -> {uid}).
// Entries are written by the profile service as part of a claim batch.
type Registry struct {
	store store.Store
}

func NewRegistry(s store.Store) *Registry {
	return &Registry{store: s}
}

// Lookup resolves a handle to its owner. Unknown handles return
// apperr.ErrNotFound.
func (r *Registry) Lookup(ctx context.Context, handle string) (string, error) {
	h := Normalize(handle)
	if h == "" {
		return "", fmt.Errorf("%w: empty handle", apperr.ErrInvalidArgument)
	}

	doc, err := r.store.Get(ctx, store.Handles, h)
	if err != nil {
		return "", err
	}
	uid := store.String(doc.Fields, "uid")
	if uid == "" {
		return "", fmt.Errorf("handle %q: %w", h, apperr.ErrNotFound)
	}
	return uid, nil
}

// Taken implements TakenFunc against the registry.
func (r *Registry) Taken(ctx context.Context, handle string) (bool, error) {
	_, err := r.store.Get(ctx, store.Handles, Normalize(handle))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, store.ErrNotFound):
		return false, nil
	default:
		return false, err
	}
}

// Entry is the registry document for handle owned by uid.
func Entry(uid string) map[string]any {
	return map[string]any{"uid": uid}
}
