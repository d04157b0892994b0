package model

import (
	"sync"

	"github.com/google/uuid"
)

// #region pair-status
// PairStatus is the judgment lifecycle of a pair.
type PairStatus string

const (
	PairPending PairStatus = "pending"
	PairJudged  PairStatus = "judged"
	PairSkipped PairStatus = "skipped"
)
// #endregion pair-status

// #region trajectory-pair
// TrajectoryPair is two trajectories shown together for one comparative
// judgment. Left/right assignment is fixed at creation so the frontend's
// slider/video mapping stays stable across reloads.
//
// Mu serialises trim and judgment traffic for this pair; operations on
// different pairs proceed without interference.
type TrajectoryPair struct {
	ID    uuid.UUID
	Left  uuid.UUID
	Right uuid.UUID

	Mu     sync.Mutex
	Status PairStatus
	Served bool
}

// NewPair creates a pair in the given status.
func NewPair(id, left, right uuid.UUID, status PairStatus) *TrajectoryPair {
	return &TrajectoryPair{ID: id, Left: left, Right: right, Status: status}
}

// CurrentStatus reads the status under the pair lock.
func (p *TrajectoryPair) CurrentStatus() PairStatus {
	p.Mu.Lock()
	defer p.Mu.Unlock()
	return p.Status
}

// CompareAndSwapStatus atomically moves the pair from old to new,
// reporting whether the swap happened. First writer wins.
func (p *TrajectoryPair) CompareAndSwapStatus(old, new PairStatus) bool {
	p.Mu.Lock()
	defer p.Mu.Unlock()
	if p.Status != old {
		return false
	}
	p.Status = new
	return true
}

// MarkServed records that the pair has been presented to the reviewer.
func (p *TrajectoryPair) MarkServed() {
	p.Mu.Lock()
	p.Served = true
	p.Mu.Unlock()
}

// WasServed reports whether the pair has been presented at least once.
func (p *TrajectoryPair) WasServed() bool {
	p.Mu.Lock()
	defer p.Mu.Unlock()
	return p.Served
}
// #endregion trajectory-pair
