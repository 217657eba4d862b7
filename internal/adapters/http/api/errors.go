package api

import "errors"

// Sentinel kinds for API errors.
var (
	ErrBadRequest        = errors.New("bad request")
	ErrNotAvailable      = errors.New("not available")
	ErrStreamUnsupported = errors.New("streaming unsupported")
)
