package engine

import "errors"

// Outcome classes.  Engine methods wrap one of these together with the
// underlying cause, so callers can branch with errors.Is and still log the
// detail.
var (
	// ErrInvalid marks a request that failed validation before any state
	// was consulted (agency id out of range).  Nothing is logged.
	ErrInvalid = errors.New("invalid request")

	// ErrRejected marks a business rejection: unknown flight, not enough
	// seats, or a non-positive seat count.
	ErrRejected = errors.New("request rejected")

	// ErrDurability marks a failure to write the transaction log or a
	// snapshot file.
	ErrDurability = errors.New("durability failure")
)
