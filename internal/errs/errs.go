package errs

import (
	"errors"
	"fmt"
)

// Sentinel errors mapped to HTTP/websocket responses at the edges.
var (
	ErrNotFound       = errors.New("party not found")
	ErrAlreadyExists  = errors.New("party already exists")
	ErrBusUnavailable = errors.New("event bus unavailable")
	ErrInvalidEvent   = errors.New("invalid event")

	// ErrPartyEnded matches ErrNotFound via errors.Is so callers that only
	// distinguish found/not-found keep working, while the HTTP layer can
	// report a clearer reason to late joiners.
	ErrPartyEnded = fmt.Errorf("party ended: %w", ErrNotFound)
)
