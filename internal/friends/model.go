// Package friends implements the friend request and relationship
// lifecycle. Relationships are stored as mirrored pairs (A_B and B_A) and
// requests as one document per ordered pair (from_to).
package friends

import (
	"fmt"
	"time"

	"github.com/sonenae10-blip/todo/internal/apperr"
	"github.com/sonenae10-blip/todo/internal/store"
)

// DefaultLabel names a friend whose handle is unknown.
const DefaultLabel = "친구"

var (
	ErrSelfRequest     = fmt.Errorf("%w: cannot befriend yourself", apperr.ErrInvalidArgument)
	ErrAlreadyFriends  = fmt.Errorf("%w: already friends", apperr.ErrInvalidArgument)
	ErrRequestExists   = fmt.Errorf("%w: a request already exists between these users", apperr.ErrInvalidArgument)
	ErrHandlePending   = fmt.Errorf("%w: sender has no handle yet", apperr.ErrInvalidArgument)
	ErrMissingUser     = fmt.Errorf("%w: user id is required", apperr.ErrInvalidArgument)
	ErrNotRecipient    = fmt.Errorf("%w: only the recipient may accept or decline", apperr.ErrPermissionDenied)
	ErrUnknownFriendID = fmt.Errorf("%w: no user with that handle", apperr.ErrNotFound)
)

// Party identifies one side of a relationship.
type Party struct {
	ID     string
	Handle string
}

// Relationship is one direction of a friendship.
type Relationship struct {
	OwnerID      string    `json:"ownerId"`
	FriendID     string    `json:"friendId"`
	FriendHandle string    `json:"friendHandle"`
	CreatedAt    time.Time `json:"createdAt"`
}

func relationshipFrom(doc store.Document) Relationship {
	return Relationship{
		OwnerID:      store.String(doc.Fields, "ownerId"),
		FriendID:     store.String(doc.Fields, "friendId"),
		FriendHandle: store.String(doc.Fields, "friendHandle"),
		CreatedAt:    store.Time(doc.Fields, "createdAt"),
	}
}

func (r Relationship) fields() map[string]any {
	return map[string]any{
		"ownerId":      r.OwnerID,
		"friendId":     r.FriendID,
		"friendHandle": r.FriendHandle,
		"createdAt":    r.CreatedAt,
	}
}

// Request is a pending friend request.
type Request struct {
	ID         string    `json:"id"`
	FromID     string    `json:"fromId"`
	ToID       string    `json:"toId"`
	FromHandle string    `json:"fromHandle"`
	ToHandle   string    `json:"toHandle"`
	CreatedAt  time.Time `json:"createdAt"`
}

func requestFrom(doc store.Document) Request {
	return Request{
		ID:         doc.ID,
		FromID:     store.String(doc.Fields, "fromId"),
		ToID:       store.String(doc.Fields, "toId"),
		FromHandle: store.String(doc.Fields, "fromHandle"),
		ToHandle:   store.String(doc.Fields, "toHandle"),
		CreatedAt:  store.Time(doc.Fields, "createdAt"),
	}
}

func (r Request) fields() map[string]any {
	return map[string]any{
		"fromId":     r.FromID,
		"toId":       r.ToID,
		"fromHandle": r.FromHandle,
		"toHandle":   r.ToHandle,
		"createdAt":  r.CreatedAt,
	}
}

// PairState is the state of an ordered pair (A, B).
type PairState int

const (
	None PairState = iota
	RequestedAtoB
	RequestedBtoA
	Friends
)

func (s PairState) String() string {
	switch s {
	case RequestedAtoB:
		return "requested_a_to_b"
	case RequestedBtoA:
		return "requested_b_to_a"
	case Friends:
		return "friends"
	default:
		return "none"
	}
}

// HandleMap maps friend ids to their display handle, falling back to
// DefaultLabel.
func HandleMap(rels []Relationship) map[string]string {
	out := make(map[string]string, len(rels))
	for _, r := range rels {
		if r.FriendID == "" {
			continue
		}
		label := r.FriendHandle
		if label == "" {
			label = DefaultLabel
		}
		out[r.FriendID] = label
	}
	return out
}

// FriendIDs returns the friend id of every relationship, in order.
func FriendIDs(rels []Relationship) []string {
	ids := make([]string, 0, len(rels))
	for _, r := range rels {
		if r.FriendID != "" {
			ids = append(ids, r.FriendID)
		}
	}
	return ids
}
