package notify

import "errors"

var (
	// ErrClosed is returned when starting a scheduler that was closed.
	ErrClosed = errors.New("notify: scheduler closed")
	// ErrInvalidMode is returned for an unknown mode string.
	ErrInvalidMode = errors.New("notify: invalid mode")
)
