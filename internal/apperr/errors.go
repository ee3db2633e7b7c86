package apperr

import (
	"errors"
	"net/http"
)

// Error kinds shared by every component. Callers compare with errors.Is;
// concrete errors wrap one of these with fmt.Errorf("...: %w", ...).
var (
	ErrInvalidArgument  = errors.New("invalid argument")
	ErrPermissionDenied = errors.New("permission denied")
	ErrNotFound         = errors.New("not found")
	ErrHandleExhausted  = errors.New("handle allocation exhausted")
	ErrStoreUnavailable = errors.New("store unavailable")
)

// Kind codes exposed to API clients.
const (
	KindInvalidArgument  = "invalid_argument"
	KindPermissionDenied = "permission_denied"
	KindNotFound         = "not_found"
	KindHandleExhausted  = "handle_exhausted"
	KindStoreUnavailable = "store_unavailable"
	KindInternal         = "internal"
)

// Kind returns the stable code for err.
func Kind(err error) string {
	switch {
	case errors.Is(err, ErrInvalidArgument):
		return KindInvalidArgument
	case errors.Is(err, ErrPermissionDenied):
		return KindPermissionDenied
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrHandleExhausted):
		return KindHandleExhausted
	case errors.Is(err, ErrStoreUnavailable):
		return KindStoreUnavailable
	default:
		return KindInternal
	}
}

// Status maps err to an HTTP status code.
func Status(err error) int {
	switch Kind(err) {
	case KindInvalidArgument:
		return http.StatusBadRequest
	case KindPermissionDenied:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindHandleExhausted:
		return http.StatusConflict
	case KindStoreUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
