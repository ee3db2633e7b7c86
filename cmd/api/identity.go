package main

import (
	"context"
	"fmt"

	"github.com/sonenae10-blip/todo/internal/apperr"
)

// unsupportedIdentity stands in for the identity provider in header auth
// mode, where accounts are not created by this service.
type unsupportedIdentity struct{}

func (unsupportedIdentity) SignUp(context.Context, string, string) (string, error) {
	return "", fmt.Errorf("%w: sign-up needs AUTH_MODE=firebase", apperr.ErrPermissionDenied)
}

func (unsupportedIdentity) Delete(context.Context, string) error { return nil }
