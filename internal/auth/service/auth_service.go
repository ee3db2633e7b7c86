package service

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"

	"github.com/sonenae10-blip/todo/internal/profiles"
)

// Identity creates and removes accounts at the identity provider.
type Identity interface {
	SignUp(ctx context.Context, email, password string) (string, error)
	Delete(ctx context.Context, uid string) error
}

// ProfileStore is the profile side of account setup.
type ProfileStore interface {
	Create(ctx context.Context, uid, email, password string) (profiles.Profile, error)
	Ensure(ctx context.Context, uid, email string) (profiles.Profile, error)
}

type AuthService struct {
	identity Identity
	profiles ProfileStore
	log      *log.Logger
}

func NewAuthService(identity Identity, p ProfileStore, logger *log.Logger) *AuthService {
	return &AuthService{
		identity: identity,
		profiles: p,
		log:      logger,
	}
}

// SignUp creates the account and its profile with a generated handle. When
// the profile cannot be written the account is removed again so the user
// can retry with the same email.
func (s *AuthService) SignUp(ctx context.Context, email, password string) (profiles.Profile, error) {
	uid, err := s.identity.SignUp(ctx, email, password)
	if err != nil {
		return profiles.Profile{}, err
	}

	p, err := s.profiles.Create(ctx, uid, email, password)
	if err != nil {
		if derr := s.identity.Delete(ctx, uid); derr != nil {
			s.log.Error("failed to roll back account", "uid", uid, "err", derr)
		}
		return profiles.Profile{}, fmt.Errorf("create profile: %w", err)
	}

	s.log.Info("account created", "uid", uid, "handle", p.Handle)
	return p, nil
}

// Me returns the caller's profile, allocating a handle on first sign-in.
func (s *AuthService) Me(ctx context.Context, uid, email string) (profiles.Profile, error) {
	return s.profiles.Ensure(ctx, uid, email)
}
