package feed

import "errors"

var (
	// ErrSubscription reports an upstream subscription failure.
	ErrSubscription = errors.New("feed: subscription failed")
	// ErrClosed is returned by operations on a closed multiplexer.
	ErrClosed = errors.New("feed: multiplexer closed")
	// ErrUnknownSlot is returned for a slot name that was never subscribed.
	ErrUnknownSlot = errors.New("feed: unknown slot")
	// ErrMalformedSnapshot reports a document missing required fields.
	ErrMalformedSnapshot = errors.New("feed: malformed snapshot")
	// ErrInvalidDescriptor reports a descriptor that cannot be evaluated.
	ErrInvalidDescriptor = errors.New("feed: invalid descriptor")
)
