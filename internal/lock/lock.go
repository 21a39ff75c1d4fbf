package lock

import (
	"context"
	"errors"
)

// Locker guards checkout-session creation: at most one in-flight
// checkout per user.
type Locker interface {
	// Acquire fails with ErrAlreadyLocked while an unexpired lock is
	// held for the user. Must be a single atomic check-and-set.
	Acquire(ctx context.Context, userID string) (string, error)
	// Release is idempotent; releasing a lock that does not exist is
	// not an error.
	Release(ctx context.Context, userID string) error
}

var ErrAlreadyLocked = errors.New("checkout already in progress for this user")
