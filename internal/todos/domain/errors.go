package domain

import (
	"fmt"

	"github.com/sonenae10-blip/todo/internal/apperr"
)

var (
	ErrEmptyText   = fmt.Errorf("%w: todo text is empty", apperr.ErrInvalidArgument)
	ErrInvalidDate = fmt.Errorf("%w: invalid start date", apperr.ErrInvalidArgument)
	ErrNotOwner    = fmt.Errorf("%w: todo belongs to another user", apperr.ErrPermissionDenied)
)
