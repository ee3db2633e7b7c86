// Package pgstore implements the document store on PostgreSQL: one JSONB
// row per document, change notification through NOTIFY.
package pgstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lib/pq"

	"github.com/sonenae10-blip/todo/internal/store"
)

// changeChannel carries the collection name of every committed write.
const changeChannel = "store_changes"

const (
	listenerMinReconnect = 10 * time.Second
	listenerMaxReconnect = time.Minute
	listenerPingInterval = 90 * time.Second
)

const uniqueViolation = "23505"

const (
	sqlGet    = `SELECT data FROM documents WHERE collection = $1 AND id = $2`
	sqlDelete = `DELETE FROM documents WHERE collection = $1 AND id = $2`
	sqlCreate = `
INSERT INTO documents (collection, id, data)
VALUES ($1, $2, $3::jsonb)`
	sqlReplace = `
INSERT INTO documents (collection, id, data)
VALUES ($1, $2, $3::jsonb)
ON CONFLICT (collection, id) DO UPDATE
SET data = EXCLUDED.data, updated_at = NOW()`
	sqlMerge = `
INSERT INTO documents (collection, id, data)
VALUES ($1, $2, $3::jsonb)
ON CONFLICT (collection, id) DO UPDATE
SET data = documents.data || EXCLUDED.data, updated_at = NOW()`
	sqlNotify = `SELECT pg_notify($1, $2)`
)

type Store struct {
	pool *pgxpool.Pool
	dsn  string // used by change listeners, which hold their own connection
	log  *log.Logger
}

func New(pool *pgxpool.Pool, dsn string, logger *log.Logger) *Store {
	return &Store{pool: pool, dsn: dsn, log: logger}
}

func (s *Store) Get(ctx context.Context, collection, id string) (*store.Document, error) {
	var fields map[string]any
	err := s.pool.QueryRow(ctx, sqlGet, collection, id).Scan(&fields)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, store.Unavailable("get "+collection+"/"+id, err)
	}
	return &store.Document{ID: id, Fields: fields}, nil
}

func (s *Store) Set(ctx context.Context, collection, id string, fields map[string]any, merge bool) error {
	return s.Batch().Set(collection, id, fields, merge).Commit(ctx)
}

func (s *Store) Create(ctx context.Context, collection, id string, fields map[string]any) error {
	return s.Batch().Create(collection, id, fields).Commit(ctx)
}

func (s *Store) Delete(ctx context.Context, collection, id string) error {
	return s.Batch().Delete(collection, id).Commit(ctx)
}

func (s *Store) Query(ctx context.Context, q store.Query) ([]store.Document, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	sql, args := buildQuery(q)
	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, store.Unavailable("query "+q.Collection, err)
	}
	defer rows.Close()

	var docs []store.Document
	for rows.Next() {
		var doc store.Document
		if err := rows.Scan(&doc.ID, &doc.Fields); err != nil {
			return nil, store.Unavailable("scan "+q.Collection, err)
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, store.Unavailable("query "+q.Collection, err)
	}
	return docs, nil
}

// buildQuery renders the filters as JSONB text comparisons, matching the
// string-form semantics of store.Matches.
func buildQuery(q store.Query) (string, []any) {
	var b strings.Builder
	b.WriteString(`SELECT id, data FROM documents WHERE collection = $1`)
	args := []any{q.Collection}

	for _, f := range q.Filters {
		args = append(args, f.Field)
		field := len(args)
		switch f.Op {
		case store.OpIn:
			args = append(args, f.Values)
			fmt.Fprintf(&b, ` AND data->>($%d::text) = ANY($%d::text[])`, field, len(args))
		default:
			args = append(args, fmt.Sprint(f.Value))
			fmt.Fprintf(&b, ` AND data->>($%d::text) = $%d::text`, field, len(args))
		}
	}
	b.WriteString(` ORDER BY id`)
	return b.String(), args
}

// Subscribe delivers the query result, then re-runs it whenever a write to
// the collection is notified. After a listener reconnect the query is re-run
// as notifications may have been missed.
func (s *Store) Subscribe(ctx context.Context, q store.Query, fn func(store.Snapshot)) (store.Subscription, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	listener := pq.NewListener(s.dsn, listenerMinReconnect, listenerMaxReconnect,
		func(ev pq.ListenerEventType, err error) {
			if err != nil {
				s.log.Warn("postgres listener event", "event", ev, "err", err)
			}
		})
	if err := listener.Listen(changeChannel); err != nil {
		_ = listener.Close()
		return nil, store.Unavailable("listen "+q.Collection, err)
	}

	return store.Start(ctx, func(ctx context.Context) {
		defer listener.Close()

		deliver := func() {
			docs, err := s.Query(ctx, q)
			if ctx.Err() != nil {
				return
			}
			fn(store.Snapshot{Docs: docs, Err: err})
		}

		ping := time.NewTicker(listenerPingInterval)
		defer ping.Stop()

		deliver()
		for {
			select {
			case <-ctx.Done():
				return
			case n := <-listener.Notify:
				if n != nil && n.Extra != q.Collection {
					continue
				}
				deliver()
			case <-ping.C:
				go func() { _ = listener.Ping() }()
			}
		}
	}), nil
}

func (s *Store) Batch() store.Batch {
	return &batch{s: s}
}

func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
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

// Commit applies the batch in one transaction and notifies listeners of
// every touched collection on commit.
func (b *batch) Commit(ctx context.Context) error {
	if len(b.List) == 0 {
		return nil
	}

	tx, err := b.s.pool.Begin(ctx)
	if err != nil {
		return store.Unavailable("begin", err)
	}
	defer tx.Rollback(ctx)

	for _, op := range b.List {
		var err error
		switch op.Kind {
		case store.OpCreate:
			_, err = tx.Exec(ctx, sqlCreate, op.Collection, op.ID, fieldsOrEmpty(op.Fields))
		case store.OpSet:
			sql := sqlReplace
			if op.Merge {
				sql = sqlMerge
			}
			_, err = tx.Exec(ctx, sql, op.Collection, op.ID, fieldsOrEmpty(op.Fields))
		case store.OpDelete:
			_, err = tx.Exec(ctx, sqlDelete, op.Collection, op.ID)
		}
		if err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
				return fmt.Errorf("%s/%s: %w", op.Collection, op.ID, store.ErrAlreadyExists)
			}
			return store.Unavailable(fmt.Sprintf("write %s/%s", op.Collection, op.ID), err)
		}
	}

	for _, collection := range b.Collections() {
		if _, err := tx.Exec(ctx, sqlNotify, changeChannel, collection); err != nil {
			return store.Unavailable("notify "+collection, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return store.Unavailable("commit", err)
	}
	return nil
}

func fieldsOrEmpty(fields map[string]any) map[string]any {
	if fields == nil {
		return map[string]any{}
	}
	return fields
}
