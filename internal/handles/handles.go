// Package handles allocates short unique user handles and resolves them
// through the handle registry.
package handles

import (
	"context"
	"fmt"
	"math/rand/v2"
	"strings"
	"sync"

	"github.com/sonenae10-blip/todo/internal/apperr"
)

const (
	// DefaultMaxAttempts bounds the generate-and-check loop of Allocate.
	DefaultMaxAttempts = 12

	Prefix       = "todo"
	SuffixLength = 6
	alphabet     = "0123456789abcdefghijklmnopqrstuvwxyz"
)

// Generator produces handle candidates.
type Generator interface {
	Next() string
}

// GeneratorFunc adapts a plain function to Generator.
type GeneratorFunc func() string

func (f GeneratorFunc) Next() string { return f() }

// TakenFunc reports whether a normalized handle is already registered.
type TakenFunc func(ctx context.Context, handle string) (bool, error)

// Normalize trims and lowercases a handle.
func Normalize(handle string) string {
	return strings.ToLower(strings.TrimSpace(handle))
}

// RandomGenerator yields Prefix followed by SuffixLength base-36 characters.
// It is safe for concurrent use.
type RandomGenerator struct {
	mu  sync.Mutex
	rnd *rand.Rand
}

// NewRandomGenerator wraps rnd. A nil rnd uses a randomly seeded PCG source.
func NewRandomGenerator(rnd *rand.Rand) *RandomGenerator {
	if rnd == nil {
		rnd = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return &RandomGenerator{rnd: rnd}
}

func (g *RandomGenerator) Next() string {
	g.mu.Lock()
	defer g.mu.Unlock()

	var b strings.Builder
	b.Grow(len(Prefix) + SuffixLength)
	b.WriteString(Prefix)
	for i := 0; i < SuffixLength; i++ {
		b.WriteByte(alphabet[g.rnd.IntN(len(alphabet))])
	}
	return b.String()
}

// Allocate returns the first normalized candidate that is neither excluded
// nor taken. Excluded values are compared after normalization. The result
// still has to be claimed; a lost claim must be retried by the caller.
func Allocate(ctx context.Context, gen Generator, isTaken TakenFunc, excluded []string, maxAttempts int) (string, error) {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}

	skip := make(map[string]struct{}, len(excluded))
	for _, e := range excluded {
		if n := Normalize(e); n != "" {
			skip[n] = struct{}{}
		}
	}

	for attempt := 0; attempt < maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		candidate := Normalize(gen.Next())
		if candidate == "" {
			continue
		}
		if _, ok := skip[candidate]; ok {
			continue
		}

		taken, err := isTaken(ctx, candidate)
		if err != nil {
			return "", err
		}
		if !taken {
			return candidate, nil
		}
	}

	return "", fmt.Errorf("%w: no free handle after %d attempts", apperr.ErrHandleExhausted, maxAttempts)
}
