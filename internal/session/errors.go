package session

import "errors"

var (
	// ErrColorLocked is returned when the human colour is changed after the first human move.
	ErrColorLocked = errors.New("colour can only be changed before the first move")
	// ErrEngineUnavailable wraps a failed opponent move request.
	ErrEngineUnavailable = errors.New("opponent engine unavailable")
	ErrInvalidColor      = errors.New("colour must be white or black")
)
