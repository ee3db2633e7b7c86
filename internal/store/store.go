// Package store defines the document store contract consumed by the core:
// keyed documents grouped in collections, equality and short-list queries,
// live query subscriptions and atomic multi-document batches.
//
// Backends live in the firestore, redisstore and pgstore subpackages.
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/sonenae10-blip/todo/internal/apperr"
)

// MaxInValues is the largest value list an In filter may carry. Callers
// needing more values partition them into several queries.
const MaxInValues = 10

// Collections used by the application.
const (
	Users          = "users"
	Handles        = "handles"
	Todos          = "todos"
	Friends        = "friends"
	FriendRequests = "friendRequests"
)

var (
	// ErrNotFound is returned by Get when the document is absent.
	ErrNotFound = apperr.ErrNotFound
	// ErrAlreadyExists is returned by Create, or by Commit of a batch
	// containing a Create, when the target document is already present.
	ErrAlreadyExists = errors.New("document already exists")
)

// Document is a stored document. Field values are whatever the backend
// decodes them to; use the helpers in fields.go to read them.
type Document struct {
	ID     string
	Fields map[string]any
}

// Operator is a query filter operator.
type Operator string

const (
	OpEqual Operator = "=="
	OpIn    Operator = "in"
)

// Filter restricts a query on one field.
type Filter struct {
	Field  string
	Op     Operator
	Value  any
	Values []string
}

// Eq matches documents whose field equals value.
func Eq(field string, value any) Filter {
	return Filter{Field: field, Op: OpEqual, Value: value}
}

// In matches documents whose field is one of values.
func In(field string, values ...string) Filter {
	return Filter{Field: field, Op: OpIn, Values: values}
}

// Query selects documents of one collection. All filters must match.
type Query struct {
	Collection string
	Filters    []Filter
}

// Where returns a copy of q with f appended.
func (q Query) Where(f Filter) Query {
	filters := make([]Filter, 0, len(q.Filters)+1)
	filters = append(filters, q.Filters...)
	q.Filters = append(filters, f)
	return q
}

// Validate checks the query against the store contract limits.
func (q Query) Validate() error {
	if q.Collection == "" {
		return fmt.Errorf("%w: query without collection", apperr.ErrInvalidArgument)
	}
	for _, f := range q.Filters {
		switch f.Op {
		case OpEqual:
		case OpIn:
			if len(f.Values) == 0 || len(f.Values) > MaxInValues {
				return fmt.Errorf("%w: in filter on %q needs 1..%d values, got %d",
					apperr.ErrInvalidArgument, f.Field, MaxInValues, len(f.Values))
			}
		default:
			return fmt.Errorf("%w: unsupported operator %q", apperr.ErrInvalidArgument, f.Op)
		}
	}
	return nil
}

// Snapshot is the full current result set of a subscribed query, or the
// error that interrupted delivery.
type Snapshot struct {
	Docs []Document
	Err  error
}

// Subscription is a live query. Close stops delivery; once it returns no
// further callbacks run. Close must not be called from inside the
// subscription's own callback.
type Subscription interface {
	Close()
}

// Batch accumulates writes that Commit applies atomically.
type Batch interface {
	Create(collection, id string, fields map[string]any) Batch
	Set(collection, id string, fields map[string]any, merge bool) Batch
	Delete(collection, id string) Batch
	Commit(ctx context.Context) error
}

// Store is the document store contract.
type Store interface {
	Get(ctx context.Context, collection, id string) (*Document, error)
	Set(ctx context.Context, collection, id string, fields map[string]any, merge bool) error
	Create(ctx context.Context, collection, id string, fields map[string]any) error
	Delete(ctx context.Context, collection, id string) error
	Query(ctx context.Context, q Query) ([]Document, error)
	Subscribe(ctx context.Context, q Query, fn func(Snapshot)) (Subscription, error)
	Batch() Batch
	Ping(ctx context.Context) error
}

// Unavailable wraps a backend failure as ErrStoreUnavailable.
func Unavailable(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", apperr.ErrStoreUnavailable, op, err)
}

// PairID is the document id for an ordered pair of identities.
func PairID(a, b string) string {
	return a + "_" + b
}
