package service

import (
	"errors"

	"github.com/iliyamo/haggle-room/internal/repository"
)

// Precondition failures.  Nothing has been written when one of these is
// returned.
var (
	ErrRoomNotFound = repository.ErrRoomNotFound
	ErrForbidden    = repository.ErrForbidden
	ErrInvalidState = errors.New("invalid room state")
	ErrInvalidInput = errors.New("invalid input")
)

// ErrTurnFailed wraps any failure after the turn lock was taken.  The
// lock has already been released when a caller sees it.
var ErrTurnFailed = errors.New("turn failed")

// ErrNoAccessToken is returned when a participant has never completed
// login and so cannot drive a proxy.
var ErrNoAccessToken = errors.New("user access token not found")

// IsPrecondition reports whether err is one of the precondition
// failures above.
func IsPrecondition(err error) bool {
	return errors.Is(err, ErrRoomNotFound) ||
		errors.Is(err, ErrForbidden) ||
		errors.Is(err, ErrInvalidState) ||
		errors.Is(err, ErrInvalidInput)
}
