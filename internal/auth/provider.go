package auth

import (
	"context"
	"fmt"
	"strings"

	"firebase.google.com/go/v4/auth"

	"github.com/sonenae10-blip/todo/internal/apperr"
	"github.com/sonenae10-blip/todo/internal/auth/domain"
)

// UserManager is the slice of the Admin SDK the provider needs.
// *auth.Client implements it.
type UserManager interface {
	CreateUser(ctx context.Context, user *auth.UserToCreate) (*auth.UserRecord, error)
	DeleteUser(ctx context.Context, uid string) error
}

// Provider creates and removes identities in Firebase Auth.
type Provider struct {
	users UserManager
}

func NewProvider(users UserManager) *Provider {
	return &Provider{users: users}
}

// SignUp validates the password policy and creates the email/password
// identity, returning its uid.
func (p *Provider) SignUp(ctx context.Context, email, password string) (string, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return "", domain.ErrInvalidEmail
	}
	if err := domain.ValidatePassword(password, email); err != nil {
		return "", err
	}

	params := (&auth.UserToCreate{}).Email(email).Password(password)
	rec, err := p.users.CreateUser(ctx, params)
	switch {
	case auth.IsEmailAlreadyExists(err):
		return "", domain.ErrEmailExists
	case auth.IsInvalidEmail(err):
		return "", domain.ErrInvalidEmail
	case err != nil:
		return "", fmt.Errorf("%w: create user: %w", apperr.ErrStoreUnavailable, err)
	}
	return rec.UID, nil
}

// Delete removes the identity; used to undo a sign-up whose profile could
// not be written.
func (p *Provider) Delete(ctx context.Context, uid string) error {
	if err := p.users.DeleteUser(ctx, uid); err != nil && !auth.IsUserNotFound(err) {
		return fmt.Errorf("delete user %s: %w", uid, err)
	}
	return nil
}
