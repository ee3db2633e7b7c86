package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/charmbracelet/log"
	"github.com/redis/go-redis/v9"

	"github.com/sonenae10-blip/todo/internal/store"
)

const (
	docKeyPrefix        = "store:doc:"     // Document JSON: store:doc:{collection}:{id}
	collectionKeyPrefix = "store:col:"     // Set of ids in a collection: store:col:{collection}
	changeChannelPrefix = "store:changes:" // Pub/Sub channel notified after every write: store:changes:{collection}
)

// Store keeps documents in Redis
type Store struct {
	client *redis.Client
	log    *log.Logger
}

// New creates a Store on an existing client
func New(client *redis.Client, logger *log.Logger) *Store {
	return &Store{client: client, log: logger}
}

// Get retrieves a document by collection and id
func (s *Store) Get(ctx context.Context, collection, id string) (*store.Document, error) {
	data, err := s.client.Get(ctx, docKey(collection, id)).Result()
	if err == redis.Nil {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, store.Unavailable("get "+collection+"/"+id, err)
	}

	fields, err := decode(data)
	if err != nil {
		return nil, fmt.Errorf("decode %s/%s: %w", collection, id, err)
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

// Query loads every document of the collection and filters in memory.
// Results are ordered by document id.
func (s *Store) Query(ctx context.Context, q store.Query) ([]store.Document, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	ids, err := s.client.SMembers(ctx, collectionKey(q.Collection)).Result()
	if err != nil {
		return nil, store.Unavailable("list "+q.Collection, err)
	}
	if len(ids) == 0 {
		return nil, nil
	}
	sort.Strings(ids)

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = docKey(q.Collection, id)
	}
	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, store.Unavailable("load "+q.Collection, err)
	}

	var docs []store.Document
	for i, v := range values {
		raw, ok := v.(string)
		if !ok {
			continue // deleted between SMEMBERS and MGET
		}
		fields, err := decode(raw)
		if err != nil {
			s.log.Warn("skipping undecodable document", "collection", q.Collection, "id", ids[i], "err", err)
			continue
		}
		if store.Matches(fields, q.Filters) {
			docs = append(docs, store.Document{ID: ids[i], Fields: fields})
		}
	}
	return docs, nil
}

// Subscribe listens on the collection's change channel and re-runs the
// query after every write, delivering the full result set each time.
func (s *Store) Subscribe(ctx context.Context, q store.Query, fn func(store.Snapshot)) (store.Subscription, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	pubsub := s.client.Subscribe(ctx, changeChannel(q.Collection))
	// Wait for the subscription to be confirmed so no write between the
	// initial query and the first message is missed.
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, store.Unavailable("subscribe "+q.Collection, err)
	}

	return store.Start(ctx, func(ctx context.Context) {
		defer pubsub.Close()

		deliver := func() {
			docs, err := s.Query(ctx, q)
			if ctx.Err() != nil {
				return
			}
			fn(store.Snapshot{Docs: docs, Err: err})
		}

		deliver()
		messages := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-messages:
				if !ok {
					return
				}
				deliver()
			}
		}
	}), nil
}

func (s *Store) Batch() store.Batch {
	return &batch{s: s}
}

func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
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

// pending is the state of one key as the batch is applied.
type pending struct {
	collection string
	id         string
	fields     map[string]any
	exists     bool
	loaded     bool
}

// maxCommitAttempts bounds retries when a watched key changes mid-commit.
const maxCommitAttempts = 5

var errCodec = errors.New("document codec")

// Commit applies the batch in a single MULTI/EXEC guarded by WATCH on every
// touched key, so creates and merges see a consistent view.
func (b *batch) Commit(ctx context.Context) error {
	if len(b.List) == 0 {
		return nil
	}

	var keys []string
	seen := make(map[string]bool)
	for _, op := range b.List {
		key := docKey(op.Collection, op.ID)
		if !seen[key] {
			seen[key] = true
			keys = append(keys, key)
		}
	}

	var err error
	for attempt := 0; attempt < maxCommitAttempts; attempt++ {
		err = b.s.client.Watch(ctx, func(tx *redis.Tx) error {
			return b.apply(ctx, tx)
		}, keys...)
		if !errors.Is(err, redis.TxFailedErr) {
			break
		}
		b.s.log.Debug("batch commit conflict, retrying", "attempt", attempt+1)
	}

	switch {
	case err == nil:
		return nil
	case errors.Is(err, store.ErrAlreadyExists), errors.Is(err, errCodec):
		return err
	default:
		return store.Unavailable("commit", err)
	}
}

func (b *batch) apply(ctx context.Context, tx *redis.Tx) error {
	states := make(map[string]*pending)
	var order []string

	load := func(op store.Op) (*pending, error) {
		key := docKey(op.Collection, op.ID)
		st, ok := states[key]
		if !ok {
			st = &pending{collection: op.Collection, id: op.ID}
			states[key] = st
			order = append(order, key)
		}
		if st.loaded || op.Kind == store.OpDelete || (op.Kind == store.OpSet && !op.Merge) {
			return st, nil
		}

		data, err := tx.Get(ctx, key).Result()
		switch {
		case err == redis.Nil:
		case err != nil:
			return nil, err
		default:
			fields, err := decode(data)
			if err != nil {
				return nil, fmt.Errorf("%w: %s: %w", errCodec, key, err)
			}
			st.fields = fields
			st.exists = true
		}
		st.loaded = true
		return st, nil
	}

	for _, op := range b.List {
		st, err := load(op)
		if err != nil {
			return err
		}

		switch op.Kind {
		case store.OpCreate:
			if st.exists {
				return fmt.Errorf("%s/%s: %w", op.Collection, op.ID, store.ErrAlreadyExists)
			}
			st.fields = copyFields(op.Fields)
			st.exists = true
		case store.OpSet:
			if op.Merge && st.exists {
				for k, v := range op.Fields {
					st.fields[k] = v
				}
			} else {
				st.fields = copyFields(op.Fields)
			}
			st.exists = true
		case store.OpDelete:
			st.fields = nil
			st.exists = false
		}
		st.loaded = true
	}

	_, err := tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, key := range order {
			st := states[key]
			if !st.exists {
				pipe.Del(ctx, key)
				pipe.SRem(ctx, collectionKey(st.collection), st.id)
				continue
			}
			data, err := json.Marshal(st.fields)
			if err != nil {
				return fmt.Errorf("%w: %s: %w", errCodec, key, err)
			}
			pipe.Set(ctx, key, data, 0)
			pipe.SAdd(ctx, collectionKey(st.collection), st.id)
		}
		for _, collection := range b.Collections() {
			pipe.Publish(ctx, changeChannel(collection), collection)
		}
		return nil
	})
	return err
}

func decode(data string) (map[string]any, error) {
	fields := make(map[string]any)
	if err := json.Unmarshal([]byte(data), &fields); err != nil {
		return nil, err
	}
	return fields, nil
}

func copyFields(fields map[string]any) map[string]any {
	out := make(map[string]any, len(fields))
	for k, v := range fields {
		out[k] = v
	}
	return out
}

func docKey(collection, id string) string {
	return fmt.Sprintf("%s%s:%s", docKeyPrefix, collection, id)
}

func collectionKey(collection string) string {
	return fmt.Sprintf("%s%s", collectionKeyPrefix, collection)
}

func changeChannel(collection string) string {
	return fmt.Sprintf("%s%s", changeChannelPrefix, collection)
}
