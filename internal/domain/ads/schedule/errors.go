// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package schedule

import (
	"context"
	"errors"
)

var (
	// ErrNotInitialized is returned by Uninitialize when no session is wired.
	ErrNotInitialized = errors.New("schedule controller not initialized")
	// ErrAlreadyInitialized is returned by Initialize on a wired controller.
	ErrAlreadyInitialized = errors.New("schedule controller already initialized")
	// ErrDuplicateAdvertisement is returned when an ID is already scheduled.
	ErrDuplicateAdvertisement = errors.New("advertisement already scheduled")
)

// isCancellation reports whether err is the silent termination path.
func isCancellation(err error) bool {
	return errors.Is(err, context.Canceled)
}
