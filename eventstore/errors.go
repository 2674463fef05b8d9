package eventstore

import "errors"

// Sentinel errors, checked with errors.Is.
var (
	// ErrStreamExhausted is returned by Append if allocating the next
	// sequence number for a stream would overflow a 63-bit signed integer.
	ErrStreamExhausted = errors.New("eventstore: stream sequence exhausted")

	// ErrInvalidPosition is returned by Advance when asked to move a
	// cursor past the latest sequence number of its stream.
	ErrInvalidPosition = errors.New("eventstore: invalid cursor position")

	// ErrNotFound is returned when a lookup finds no matching event.
	ErrNotFound = errors.New("eventstore: event not found")
)
