package model

import (
	"errors"
	"fmt"
)

// #region sentinels
// Error kinds surfaced to callers. Every failure wraps exactly one of
// these so the transport layer can map it without string matching.
var (
	// ErrNotFound marks an unknown pair or trajectory id.
	ErrNotFound = errors.New("not found")
	// ErrInvalidRange marks trim bounds violating 0 <= start < end <= duration.
	ErrInvalidRange = errors.New("invalid trim range")
	// ErrInvalidOutcome marks a judgment type disallowed by the session config.
	ErrInvalidOutcome = errors.New("outcome not allowed")
	// ErrConflict marks an operation on a pair that already carries a judgment.
	ErrConflict = errors.New("pair already judged")
	// ErrExhausted signals that no untried pairs remain. Normal termination,
	// not a failure.
	ErrExhausted = errors.New("no pairs left")
	// ErrSessionEnded marks any operational request after termination.
	ErrSessionEnded = errors.New("session ended")
	// ErrNotReady marks a request arriving before the session reached ACTIVE.
	ErrNotReady = errors.New("session not started")
	// ErrEditingDisabled marks a trim attempt with allowEditing off.
	ErrEditingDisabled = errors.New("editing disabled")
	// ErrRewardsHidden marks a reward query with debugMode off.
	ErrRewardsHidden = errors.New("reward display disabled")
	// ErrStorage marks a persistence write that did not complete; the
	// in-memory state has been rolled back.
	ErrStorage = errors.New("storage failure")
)
// #endregion sentinels

// #region conflict-error
// ConflictError rejects a duplicate judgment and carries the committed
// one so the caller can reconcile its UI state.
type ConflictError struct {
	Existing Judgment
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("pair %s already judged: %s", e.Existing.PairID, e.Existing.Outcome)
}

// Unwrap lets errors.Is(err, ErrConflict) match.
func (e *ConflictError) Unwrap() error {
	return ErrConflict
}
// #endregion conflict-error
