package domain

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/sonenae10-blip/todo/internal/apperr"
)

const MinPasswordLength = 8

var (
	ErrWeakPassword = fmt.Errorf("%w: password does not satisfy the policy", apperr.ErrInvalidArgument)
	ErrEmailExists  = fmt.Errorf("%w: email already registered", apperr.ErrInvalidArgument)
	ErrInvalidEmail = fmt.Errorf("%w: email is required", apperr.ErrInvalidArgument)
)

// SignUpRequest is the body of the sign-up endpoint.
type SignUpRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// ValidatePassword enforces the account password policy: at least
// MinPasswordLength characters, no whitespace, at least two of letters,
// digits and symbols, and not equal to the email.
func ValidatePassword(password, email string) error {
	if len([]rune(password)) < MinPasswordLength {
		return ErrWeakPassword
	}

	var letter, digit, symbol bool
	for _, r := range password {
		switch {
		case unicode.IsSpace(r):
			return ErrWeakPassword
		case r < unicode.MaxASCII && unicode.IsLetter(r):
			letter = true
		case r < unicode.MaxASCII && unicode.IsDigit(r):
			digit = true
		default:
			symbol = true
		}
	}

	classes := 0
	for _, ok := range []bool{letter, digit, symbol} {
		if ok {
			classes++
		}
	}
	if classes < 2 {
		return ErrWeakPassword
	}

	if e := strings.TrimSpace(email); e != "" && password == e {
		return ErrWeakPassword
	}
	return nil
}
