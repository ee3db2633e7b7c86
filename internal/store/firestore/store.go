// Package firestore implements the document store on Cloud Firestore.
package firestore

import (
	"context"
	"errors"
	"fmt"

	"cloud.google.com/go/firestore"
	"github.com/charmbracelet/log"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/sonenae10-blip/todo/internal/store"
)

// healthDoc is read by Ping; it does not need to exist.
const healthDoc = "_health"

type Store struct {
	client *firestore.Client
	log    *log.Logger
}

func New(client *firestore.Client, logger *log.Logger) *Store {
	return &Store{client: client, log: logger}
}

func (s *Store) Get(ctx context.Context, collection, id string) (*store.Document, error) {
	snap, err := s.client.Collection(collection).Doc(id).Get(ctx)
	if err != nil {
		return nil, translate("get "+collection+"/"+id, err)
	}
	return &store.Document{ID: snap.Ref.ID, Fields: snap.Data()}, nil
}

func (s *Store) Set(ctx context.Context, collection, id string, fields map[string]any, merge bool) error {
	ref := s.client.Collection(collection).Doc(id)
	var err error
	if merge {
		_, err = ref.Set(ctx, fields, firestore.MergeAll)
	} else {
		_, err = ref.Set(ctx, fields)
	}
	return translate("set "+collection+"/"+id, err)
}

func (s *Store) Create(ctx context.Context, collection, id string, fields map[string]any) error {
	_, err := s.client.Collection(collection).Doc(id).Create(ctx, fields)
	return translate("create "+collection+"/"+id, err)
}

func (s *Store) Delete(ctx context.Context, collection, id string) error {
	_, err := s.client.Collection(collection).Doc(id).Delete(ctx)
	return translate("delete "+collection+"/"+id, err)
}

func (s *Store) Query(ctx context.Context, q store.Query) ([]store.Document, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	snaps, err := s.build(q).Documents(ctx).GetAll()
	if err != nil {
		return nil, translate("query "+q.Collection, err)
	}
	return documents(snaps), nil
}

// Subscribe streams query snapshots. A listener error is delivered once as
// Snapshot.Err and ends the subscription.
func (s *Store) Subscribe(ctx context.Context, q store.Query, fn func(store.Snapshot)) (store.Subscription, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	query := s.build(q)

	return store.Start(ctx, func(ctx context.Context) {
		it := query.Snapshots(ctx)
		defer it.Stop()

		for {
			qs, err := it.Next()
			if ctx.Err() != nil {
				return
			}
			if err != nil {
				s.log.Warn("firestore listener failed", "collection", q.Collection, "err", err)
				fn(store.Snapshot{Err: translate("listen "+q.Collection, err)})
				return
			}

			snaps, err := qs.Documents.GetAll()
			if err != nil {
				fn(store.Snapshot{Err: translate("listen "+q.Collection, err)})
				return
			}
			fn(store.Snapshot{Docs: documents(snaps)})
		}
	}), nil
}

func (s *Store) Batch() store.Batch {
	return &batch{s: s}
}

func (s *Store) Ping(ctx context.Context) error {
	_, err := s.client.Collection(store.Users).Doc(healthDoc).Get(ctx)
	if err != nil && status.Code(err) != codes.NotFound {
		return err
	}
	return nil
}

func (s *Store) build(q store.Query) firestore.Query {
	query := s.client.Collection(q.Collection).Query
	for _, f := range q.Filters {
		switch f.Op {
		case store.OpIn:
			query = query.Where(f.Field, "in", f.Values)
		default:
			query = query.Where(f.Field, "==", f.Value)
		}
	}
	return query
}

type batch struct {
	store.Ops
	s *Store
}

func (b *batch) Create(collection, id string, fields map[string]any) store.Batch {
	b.Record(store.OpCreate, collection, id, fields, false)
	return b
}

func (b *batch) Set(collection, id string, fields map[string]any, merge bool) store.Batch {
	b.Record(store.OpSet, collection, id, fields, merge)
	return b
}

func (b *batch) Delete(collection, id string) store.Batch {
	b.Record(store.OpDelete, collection, id, nil, false)
	return b
}

// Commit runs the batch as a transaction. Transactions are used instead of
// write batches so that a Create conflict aborts every other write.
func (b *batch) Commit(ctx context.Context) error {
	if len(b.List) == 0 {
		return nil
	}
	client := b.s.client

	err := client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		for _, op := range b.List {
			ref := client.Collection(op.Collection).Doc(op.ID)
			var err error
			switch op.Kind {
			case store.OpCreate:
				err = tx.Create(ref, op.Fields)
			case store.OpSet:
				if op.Merge {
					err = tx.Set(ref, op.Fields, firestore.MergeAll)
				} else {
					err = tx.Set(ref, op.Fields)
				}
			case store.OpDelete:
				err = tx.Delete(ref)
			}
			if err != nil {
				return err
			}
		}
		return nil
	})

	return translate("commit", err)
}

func documents(snaps []*firestore.DocumentSnapshot) []store.Document {
	docs := make([]store.Document, 0, len(snaps))
	for _, snap := range snaps {
		docs = append(docs, store.Document{ID: snap.Ref.ID, Fields: snap.Data()})
	}
	return docs
}

// translate maps gRPC status codes onto the store error set.
func translate(op string, err error) error {
	if err == nil || errors.Is(err, iterator.Done) {
		return nil
	}
	switch status.Code(err) {
	case codes.NotFound:
		return store.ErrNotFound
	case codes.AlreadyExists:
		return fmt.Errorf("%s: %w", op, store.ErrAlreadyExists)
	case codes.InvalidArgument, codes.FailedPrecondition:
		return fmt.Errorf("%s: %w", op, err)
	default:
		return store.Unavailable(op, err)
	}
}
