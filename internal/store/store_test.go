package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/sonenae10-blip/todo/internal/apperr"
)

func TestQueryValidate(t *testing.T) {
	q := Query{Collection: Todos}
	assert.NoError(t, q.Where(In("ownerId", "a", "b")).Validate())

	eleven := make([]string, MaxInValues+1)
	for i := range eleven {
		eleven[i] = string(rune('a' + i))
	}
	assert.ErrorIs(t, q.Where(In("ownerId", eleven...)).Validate(), apperr.ErrInvalidArgument)
	assert.ErrorIs(t, q.Where(In("ownerId")).Validate(), apperr.ErrInvalidArgument)
	assert.ErrorIs(t, Query{}.Validate(), apperr.ErrInvalidArgument)
}

func TestQueryWhereDoesNotAlias(t *testing.T) {
	base := Query{Collection: Todos, Filters: make([]Filter, 0, 4)}
	a := base.Where(Eq("ownerId", "a"))
	b := base.Where(Eq("ownerId", "b"))
	assert.Equal(t, "a", a.Filters[0].Value)
	assert.Equal(t, "b", b.Filters[0].Value)
}

func TestFieldDecoders(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	fields := map[string]any{
		"text":       "walk",
		"done":       true,
		"native":     []int64{1, 3},
		"json":       []any{float64(5), float64(0), "x"},
		"createdAt":  now,
		"updatedAt":  now.Format(time.RFC3339Nano),
		"brokenTime": "yesterday",
	}

	assert.Equal(t, "walk", String(fields, "text"))
	assert.Equal(t, "", String(fields, "missing"))
	assert.True(t, Bool(fields, "done"))
	assert.Equal(t, []int{1, 3}, Ints(fields, "native"))
	assert.Equal(t, []int{5, 0}, Ints(fields, "json"))
	assert.True(t, now.Equal(Time(fields, "createdAt")))
	assert.True(t, now.Equal(Time(fields, "updatedAt")))
	assert.True(t, Time(fields, "brokenTime").IsZero())
}

func TestMatches(t *testing.T) {
	fields := map[string]any{"ownerId": "u1", "done": false}
	assert.True(t, Matches(fields, []Filter{Eq("ownerId", "u1")}))
	assert.True(t, Matches(fields, []Filter{Eq("done", false)}))
	assert.True(t, Matches(fields, []Filter{In("ownerId", "u9", "u1")}))
	assert.False(t, Matches(fields, []Filter{In("ownerId", "u9")}))
	assert.False(t, Matches(fields, []Filter{Eq("ownerId", "u1"), Eq("done", true)}))
}

func TestStartClose(t *testing.T) {
	ticks := make(chan struct{}, 1)
	sub := Start(context.Background(), func(ctx context.Context) {
		ticks <- struct{}{}
		<-ctx.Done()
	})
	<-ticks
	sub.Close()
	sub.Close()
}
