package render

import "errors"

// ErrSurfaceUnavailable reports a missing or zero-sized drawing surface.
// Render treats it as a no-op and never returns it.
var ErrSurfaceUnavailable = errors.New("render: surface unavailable")
