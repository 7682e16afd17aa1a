package service

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound         = errors.New("not found")
	ErrPermissionDenied = errors.New("permission denied")
	ErrInvalidInput     = errors.New("invalid input")
	ErrConflict         = errors.New("conflict")
	ErrPolicyRejected   = errors.New("rejected by car policy")
	ErrDecode           = errors.New("decode error")
	ErrTransient        = errors.New("transient error")
)

var (
	ErrNoOpenSession        = fmt.Errorf("%w: no open session", ErrNotFound)
	ErrDuplicateOpenSession = fmt.Errorf("%w: open session already exists", ErrConflict)
	ErrDuplicateRetrigger   = fmt.Errorf("%w: exit triggered too soon after entry", ErrConflict)
	ErrNotPaid              = fmt.Errorf("%w: session is not paid", ErrConflict)
	ErrSessionOpen          = fmt.Errorf("%w: session is still open", ErrConflict)
)

// Reason returns the short machine-readable code reported to cameras and
// dashboards for err.
func Reason(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrPolicyRejected):
		return "blocked"
	case errors.Is(err, ErrDuplicateOpenSession):
		return "duplicate-open-session"
	case errors.Is(err, ErrDuplicateRetrigger):
		return "duplicate-retrigger"
	case errors.Is(err, ErrNoOpenSession):
		return "no-open-session"
	case errors.Is(err, ErrNotPaid):
		return "not-paid"
	case errors.Is(err, ErrSessionOpen):
		return "session-open"
	case errors.Is(err, ErrDecode):
		return "decode-error"
	case errors.Is(err, ErrInvalidInput):
		return "invalid-input"
	case errors.Is(err, ErrNotFound):
		return "not-found"
	case errors.Is(err, ErrConflict):
		return "conflict"
	case errors.Is(err, ErrPermissionDenied):
		return "permission-denied"
	default:
		return "internal-error"
	}
}
