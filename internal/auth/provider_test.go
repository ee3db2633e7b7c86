package auth

import (
	"context"
	"errors"
	"testing"

	"firebase.google.com/go/v4/auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sonenae10-blip/todo/internal/apperr"
	"github.com/sonenae10-blip/todo/internal/auth/domain"
)

type fakeUsers struct {
	created []*auth.UserToCreate
	deleted []string
	err     error
}

func (f *fakeUsers) CreateUser(_ context.Context, user *auth.UserToCreate) (*auth.UserRecord, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.created = append(f.created, user)
	return &auth.UserRecord{UserInfo: &auth.UserInfo{UID: "uid-1"}}, nil
}

func (f *fakeUsers) DeleteUser(_ context.Context, uid string) error {
	f.deleted = append(f.deleted, uid)
	return nil
}

func TestProvider_SignUp(t *testing.T) {
	ctx := context.Background()

	t.Run("creates the identity", func(t *testing.T) {
		users := &fakeUsers{}
		uid, err := NewProvider(users).SignUp(ctx, " me@example.com ", "abcd1234")
		require.NoError(t, err)
		assert.Equal(t, "uid-1", uid)
		assert.Len(t, users.created, 1)
	})

	t.Run("rejects a weak password before calling the provider", func(t *testing.T) {
		users := &fakeUsers{}
		_, err := NewProvider(users).SignUp(ctx, "me@example.com", "short")
		assert.ErrorIs(t, err, domain.ErrWeakPassword)
		assert.Empty(t, users.created)
	})

	t.Run("requires an email", func(t *testing.T) {
		_, err := NewProvider(&fakeUsers{}).SignUp(ctx, "  ", "abcd1234")
		assert.ErrorIs(t, err, domain.ErrInvalidEmail)
	})

	t.Run("provider failure is unavailable", func(t *testing.T) {
		users := &fakeUsers{err: errors.New("boom")}
		_, err := NewProvider(users).SignUp(ctx, "me@example.com", "abcd1234")
		assert.ErrorIs(t, err, apperr.ErrStoreUnavailable)
	})
}

func TestProvider_Delete(t *testing.T) {
	users := &fakeUsers{}
	require.NoError(t, NewProvider(users).Delete(context.Background(), "uid-1"))
	assert.Equal(t, []string{"uid-1"}, users.deleted)
}
