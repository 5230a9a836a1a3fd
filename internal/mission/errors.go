package mission

import (
	"context"
	"errors"
	"fmt"

	"github.com/dukerupert/questwalk/internal/missionapi"
)

var (
	// ErrNetworkFailure means a Mission Service call did not complete and no
	// cached data could stand in for it. Retrying may succeed.
	ErrNetworkFailure = errors.New("mission service unreachable")
	// ErrMissionLocked means the requested change is not allowed once
	// progress has begun. Retrying will not help.
	ErrMissionLocked = errors.New("mission is locked")
	// ErrRejected means the Mission Service answered and refused the
	// request for a reason other than a lock. Retrying will not help.
	ErrRejected = errors.New("mission service rejected the request")
	// ErrStateConflict means a request referenced state that no longer
	// matches the local cache. The request was discarded.
	ErrStateConflict = errors.New("state conflict")
	// ErrDataInconsistency marks data that could not be interpreted and
	// was skipped.
	ErrDataInconsistency = errors.New("data inconsistency")
	// ErrBusy is returned when another operation is still outstanding.
	// The call had no effect.
	ErrBusy = errors.New("operation in progress")
	// ErrNoActiveMission is returned when an operation needs an active
	// mission and none is selected.
	ErrNoActiveMission = errors.New("no active mission")
	// ErrSuperseded is returned when a newer activation started while a
	// fetch was outstanding. Its result was not applied.
	ErrSuperseded = errors.New("activation superseded")
)

// classify maps a Mission Service error into the controller's error kinds.
// Context errors pass through untouched.
func classify(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	case errors.Is(err, missionapi.ErrLocked):
		return fmt.Errorf("%w: %w", ErrMissionLocked, err)
	case errors.Is(err, missionapi.ErrRejected):
		return fmt.Errorf("%w: %w", ErrRejected, err)
	case errors.Is(err, missionapi.ErrNotFound):
		return fmt.Errorf("%w: %w", ErrDataInconsistency, err)
	default:
		return fmt.Errorf("%w: %w", ErrNetworkFailure, err)
	}
}

// retryable reports whether an operation that failed with err left nothing
// applied and may succeed if repeated: the service was unreachable or the
// caller went away.
func retryable(err error) bool {
	return errors.Is(err, ErrNetworkFailure) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}
