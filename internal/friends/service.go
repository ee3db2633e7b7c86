package friends

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/sonenae10-blip/todo/internal/apperr"
	"github.com/sonenae10-blip/todo/internal/handles"
	"github.com/sonenae10-blip/todo/internal/store"
)

type Service struct {
	store    store.Store
	registry *handles.Registry
	now      func() time.Time
	log      *log.Logger
}

func NewService(s store.Store, now func() time.Time, logger *log.Logger) *Service {
	if now == nil {
		now = time.Now
	}
	return &Service{
		store:    s,
		registry: handles.NewRegistry(s),
		now:      now,
		log:      logger,
	}
}

// State reports the relationship state of the ordered pair (a, b).
func (s *Service) State(ctx context.Context, a, b string) (PairState, error) {
	checks := []struct {
		collection string
		id         string
		state      PairState
	}{
		{store.Friends, store.PairID(a, b), Friends},
		{store.Friends, store.PairID(b, a), Friends},
		{store.FriendRequests, store.PairID(a, b), RequestedAtoB},
		{store.FriendRequests, store.PairID(b, a), RequestedBtoA},
	}
	for _, c := range checks {
		ok, err := s.exists(ctx, c.collection, c.id)
		if err != nil {
			return None, err
		}
		if ok {
			return c.state, nil
		}
	}
	return None, nil
}

// SendRequest creates the request from -> to. It fails when the users are
// the same, already friends, or a request exists in either direction.
func (s *Service) SendRequest(ctx context.Context, from, to Party) (Request, error) {
	from.ID, to.ID = strings.TrimSpace(from.ID), strings.TrimSpace(to.ID)
	if from.ID == "" || to.ID == "" {
		return Request{}, ErrMissingUser
	}
	if from.ID == to.ID {
		return Request{}, ErrSelfRequest
	}

	state, err := s.State(ctx, from.ID, to.ID)
	if err != nil {
		return Request{}, err
	}
	switch state {
	case Friends:
		return Request{}, ErrAlreadyFriends
	case RequestedAtoB, RequestedBtoA:
		return Request{}, ErrRequestExists
	}

	req := Request{
		ID:         store.PairID(from.ID, to.ID),
		FromID:     from.ID,
		ToID:       to.ID,
		FromHandle: from.Handle,
		ToHandle:   to.Handle,
		CreatedAt:  s.now().UTC(),
	}
	err = s.store.Create(ctx, store.FriendRequests, req.ID, req.fields())
	if errors.Is(err, store.ErrAlreadyExists) {
		return Request{}, ErrRequestExists
	}
	if err != nil {
		return Request{}, fmt.Errorf("create request: %w", err)
	}

	s.log.Info("friend request sent", "from", from.ID, "to", to.ID)
	return req, nil
}

// SendRequestByHandle resolves the recipient through the handle registry.
func (s *Service) SendRequestByHandle(ctx context.Context, from Party, handle string) (Request, error) {
	if strings.TrimSpace(from.Handle) == "" {
		return Request{}, ErrHandlePending
	}
	target := handles.Normalize(handle)
	if target == "" || target == handles.Normalize(from.Handle) {
		return Request{}, ErrSelfRequest
	}

	uid, err := s.registry.Lookup(ctx, target)
	if errors.Is(err, apperr.ErrNotFound) {
		return Request{}, ErrUnknownFriendID
	}
	if err != nil {
		return Request{}, err
	}

	return s.SendRequest(ctx, from, Party{ID: uid, Handle: target})
}

// Accept turns the request fromID -> caller into a friendship.
func (s *Service) Accept(ctx context.Context, caller, fromID string) error {
	return s.AcceptRequest(ctx, caller, fromID, caller)
}

// AcceptRequest is the privileged accept: only the recipient toID may
// accept. The request is re-read from the store so handles come from the
// stored record; a request that no longer exists is a no-op.
func (s *Service) AcceptRequest(ctx context.Context, caller, fromID, toID string) error {
	if caller == "" || fromID == "" || toID == "" {
		return ErrMissingUser
	}
	if caller != toID {
		return ErrNotRecipient
	}
	if fromID == toID {
		return ErrSelfRequest
	}

	doc, err := s.store.Get(ctx, store.FriendRequests, store.PairID(fromID, toID))
	if errors.Is(err, store.ErrNotFound) {
		s.log.Debug("accept of missing request ignored", "from", fromID, "to", toID)
		return nil
	}
	if err != nil {
		return err
	}
	req := requestFrom(*doc)
	if req.ToID != "" && req.ToID != caller {
		return ErrNotRecipient
	}

	now := s.now().UTC()
	err = s.store.Batch().
		Set(store.Friends, store.PairID(toID, fromID), Relationship{
			OwnerID: toID, FriendID: fromID, FriendHandle: req.FromHandle, CreatedAt: now,
		}.fields(), false).
		Set(store.Friends, store.PairID(fromID, toID), Relationship{
			OwnerID: fromID, FriendID: toID, FriendHandle: req.ToHandle, CreatedAt: now,
		}.fields(), false).
		Delete(store.FriendRequests, doc.ID).
		Commit(ctx)
	if err != nil {
		return fmt.Errorf("accept request: %w", err)
	}

	s.log.Info("friend request accepted", "from", fromID, "to", toID)
	return nil
}

// Decline deletes the request fromID -> caller.
func (s *Service) Decline(ctx context.Context, caller, fromID string) error {
	return s.deleteRequest(ctx, fromID, caller)
}

// Cancel deletes the request caller -> toID.
func (s *Service) Cancel(ctx context.Context, caller, toID string) error {
	return s.deleteRequest(ctx, caller, toID)
}

func (s *Service) deleteRequest(ctx context.Context, fromID, toID string) error {
	if fromID == "" || toID == "" {
		return ErrMissingUser
	}
	if fromID == toID {
		return ErrSelfRequest
	}
	if err := s.store.Delete(ctx, store.FriendRequests, store.PairID(fromID, toID)); err != nil {
		return fmt.Errorf("delete request: %w", err)
	}
	return nil
}

// Remove ends the friendship between self and other. Both relationship
// records and any request in either direction are deleted in one batch.
func (s *Service) Remove(ctx context.Context, self, other string) error {
	other = strings.TrimSpace(other)
	if self == "" || other == "" {
		return ErrMissingUser
	}
	if other == self {
		return fmt.Errorf("%w: cannot remove yourself", apperr.ErrInvalidArgument)
	}

	err := s.store.Batch().
		Delete(store.Friends, store.PairID(self, other)).
		Delete(store.Friends, store.PairID(other, self)).
		Delete(store.FriendRequests, store.PairID(self, other)).
		Delete(store.FriendRequests, store.PairID(other, self)).
		Commit(ctx)
	if err != nil {
		return fmt.Errorf("remove friend: %w", err)
	}

	s.log.Info("friend removed", "uid", self, "friend", other)
	return nil
}

// Friends lists the relationships owned by owner.
func (s *Service) Friends(ctx context.Context, owner string) ([]Relationship, error) {
	docs, err := s.store.Query(ctx, friendsQuery(owner))
	if err != nil {
		return nil, err
	}
	return relationships(docs), nil
}

// Incoming lists requests addressed to uid.
func (s *Service) Incoming(ctx context.Context, uid string) ([]Request, error) {
	return s.requests(ctx, store.Eq("toId", uid))
}

// Outgoing lists requests sent by uid.
func (s *Service) Outgoing(ctx context.Context, uid string) ([]Request, error) {
	return s.requests(ctx, store.Eq("fromId", uid))
}

// WatchFriends delivers owner's full relationship list on every change.
func (s *Service) WatchFriends(ctx context.Context, owner string, fn func([]Relationship, error)) (store.Subscription, error) {
	return s.store.Subscribe(ctx, friendsQuery(owner), func(snap store.Snapshot) {
		if snap.Err != nil {
			fn(nil, snap.Err)
			return
		}
		fn(relationships(snap.Docs), nil)
	})
}

func (s *Service) requests(ctx context.Context, f store.Filter) ([]Request, error) {
	docs, err := s.store.Query(ctx, store.Query{Collection: store.FriendRequests}.Where(f))
	if err != nil {
		return nil, err
	}
	out := make([]Request, 0, len(docs))
	for _, doc := range docs {
		out = append(out, requestFrom(doc))
	}
	return out, nil
}

func (s *Service) exists(ctx context.Context, collection, id string) (bool, error) {
	_, err := s.store.Get(ctx, collection, id)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, store.ErrNotFound):
		return false, nil
	default:
		return false, err
	}
}

func friendsQuery(owner string) store.Query {
	return store.Query{Collection: store.Friends}.Where(store.Eq("ownerId", owner))
}

func relationships(docs []store.Document) []Relationship {
	out := make([]Relationship, 0, len(docs))
	for _, doc := range docs {
		out = append(out, relationshipFrom(doc))
	}
	return out
}
