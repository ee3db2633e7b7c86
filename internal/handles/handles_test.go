package handles_test

import (
	"context"
	"math/rand/v2"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sonenae10-blip/todo/internal/apperr"
	"github.com/sonenae10-blip/todo/internal/handles"
	"github.com/sonenae10-blip/todo/internal/store"
	"github.com/sonenae10-blip/todo/internal/store/storetest"
)

// sequence yields the given candidates in order, then repeats the last one.
func sequence(values ...string) handles.Generator {
	i := 0
	return handles.GeneratorFunc(func() string {
		v := values[min(i, len(values)-1)]
		i++
		return v
	})
}

func takenSet(values ...string) handles.TakenFunc {
	set := make(map[string]bool)
	for _, v := range values {
		set[v] = true
	}
	return func(_ context.Context, h string) (bool, error) {
		return set[h], nil
	}
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, "todoab12cd", handles.Normalize("  TodoAB12cd "))
	assert.Equal(t, "", handles.Normalize("   "))
}

func TestRandomGenerator(t *testing.T) {
	shape := regexp.MustCompile(`^todo[0-9a-z]{6}$`)

	a := handles.NewRandomGenerator(rand.New(rand.NewPCG(1, 2)))
	b := handles.NewRandomGenerator(rand.New(rand.NewPCG(1, 2)))
	for i := 0; i < 50; i++ {
		got := a.Next()
		assert.Regexp(t, shape, got)
		assert.Equal(t, got, b.Next(), "same seed yields same sequence")
	}

	assert.Regexp(t, shape, handles.NewRandomGenerator(nil).Next())
}

func TestAllocate(t *testing.T) {
	ctx := context.Background()

	t.Run("first free candidate, normalized", func(t *testing.T) {
		got, err := handles.Allocate(ctx, sequence(" TODOAAA111 "), takenSet(), nil, 0)
		require.NoError(t, err)
		assert.Equal(t, "todoaaa111", got)
	})

	t.Run("skips taken candidates", func(t *testing.T) {
		got, err := handles.Allocate(ctx, sequence("todoaaa111", "todobbb222"), takenSet("todoaaa111"), nil, 0)
		require.NoError(t, err)
		assert.Equal(t, "todobbb222", got)
	})

	t.Run("skips excluded values case-insensitively", func(t *testing.T) {
		gen := sequence("Me@Example.com", "Secret123", "todoccc333")
		got, err := handles.Allocate(ctx, gen, takenSet(), []string{"me@example.com", " SECRET123"}, 0)
		require.NoError(t, err)
		assert.Equal(t, "todoccc333", got)
	})

	t.Run("exhaustion", func(t *testing.T) {
		calls := 0
		gen := handles.GeneratorFunc(func() string {
			calls++
			return "todotaken1"
		})
		_, err := handles.Allocate(ctx, gen, takenSet("todotaken1"), nil, 0)
		assert.ErrorIs(t, err, apperr.ErrHandleExhausted)
		assert.Equal(t, handles.DefaultMaxAttempts, calls)
	})

	t.Run("custom attempt budget", func(t *testing.T) {
		_, err := handles.Allocate(ctx, sequence("x"), takenSet("x"), nil, 3)
		assert.ErrorIs(t, err, apperr.ErrHandleExhausted)
	})

	t.Run("lookup failure propagates", func(t *testing.T) {
		boom := apperr.ErrStoreUnavailable
		_, err := handles.Allocate(ctx, sequence("todoaaa111"), func(context.Context, string) (bool, error) {
			return false, boom
		}, nil, 0)
		assert.ErrorIs(t, err, boom)
	})
}

func TestAllocate_NeverReturnsExcludedOrTaken(t *testing.T) {
	ctx := context.Background()
	gen := handles.NewRandomGenerator(rand.New(rand.NewPCG(7, 7)))

	taken := make(map[string]bool)
	for i := 0; i < 200; i++ {
		h, err := handles.Allocate(ctx, gen, func(_ context.Context, h string) (bool, error) {
			return taken[h], nil
		}, []string{"user@example.com", "password1"}, 0)
		require.NoError(t, err)
		assert.False(t, taken[h])
		assert.NotEqual(t, "user@example.com", h)
		taken[h] = true
	}
}

func TestRegistry(t *testing.T) {
	s, _ := storetest.New(t)
	ctx := context.Background()
	reg := handles.NewRegistry(s)

	require.NoError(t, s.Create(ctx, store.Handles, "todoabc123", handles.Entry("u1")))

	uid, err := reg.Lookup(ctx, " TodoABC123")
	require.NoError(t, err)
	assert.Equal(t, "u1", uid)

	_, err = reg.Lookup(ctx, "todozzz999")
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	_, err = reg.Lookup(ctx, "  ")
	assert.ErrorIs(t, err, apperr.ErrInvalidArgument)

	taken, err := reg.Taken(ctx, "todoabc123")
	require.NoError(t, err)
	assert.True(t, taken)

	taken, err = reg.Taken(ctx, "todozzz999")
	require.NoError(t, err)
	assert.False(t, taken)
}
