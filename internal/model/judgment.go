package model

import (
	"time"

	"github.com/google/uuid"
)

// #region outcome
// Outcome is the reviewer's verdict on a pair.
type Outcome string

const (
	OutcomeLeft  Outcome = "left"
	OutcomeRight Outcome = "right"
	OutcomeEqual Outcome = "equal"
	OutcomeSkip  Outcome = "skip"
)

// Known reports whether o is one of the four defined outcomes.
func (o Outcome) Known() bool {
	switch o {
	case OutcomeLeft, OutcomeRight, OutcomeEqual, OutcomeSkip:
		return true
	}
	return false
}

// Terminal reports whether o commits the pair (skip does not).
func (o Outcome) Terminal() bool {
	return o == OutcomeLeft || o == OutcomeRight || o == OutcomeEqual
}
// #endregion outcome

// #region trim-snapshot
// TrimSnapshot captures both sides' active windows at submission time.
type TrimSnapshot struct {
	Left  Bounds `json:"left"`
	Right Bounds `json:"right"`
}
// #endregion trim-snapshot

// #region judgment
// Judgment is one committed comparison result. Immutable once stored;
// a second submission for the same pair is a conflict, not an overwrite.
type Judgment struct {
	PairID    uuid.UUID    `json:"pairId"`
	Outcome   Outcome      `json:"outcome"`
	CreatedAt time.Time    `json:"createdAt"`
	Trims     TrimSnapshot `json:"trims"`
}
// #endregion judgment
