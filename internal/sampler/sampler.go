package sampler

import (
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/rlduels/duelsrv/internal/model"
)

// #region sampler-struct
// Sampler serves trajectory pairs from a queue in stable insertion
// order. Absent an explicit requeue, no pair id is returned twice in
// one session; the cursor only moves forward.
type Sampler struct {
	allowRequeue bool

	mu     sync.Mutex
	queue  []*model.TrajectoryPair
	cursor int
	byID   map[uuid.UUID]*model.TrajectoryPair
}

// New builds a sampler over the supplied pool. allowRequeue mirrors the
// session's allowSkipping flag.
func New(pairs []*model.TrajectoryPair, allowRequeue bool) *Sampler {
	s := &Sampler{
		allowRequeue: allowRequeue,
		queue:        make([]*model.TrajectoryPair, 0, len(pairs)),
		byID:         make(map[uuid.UUID]*model.TrajectoryPair, len(pairs)),
	}
	for _, p := range pairs {
		s.queue = append(s.queue, p)
		s.byID[p.ID] = p
	}
	return s
}
// #endregion sampler-struct

// #region next
// Next returns the next untried pair, skipping any already judged or
// skipped entry, or Exhausted when none remain.
func (s *Sampler) Next() (*model.TrajectoryPair, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for s.cursor < len(s.queue) {
		p := s.queue[s.cursor]
		s.cursor++
		if p.CurrentStatus() != model.PairPending {
			continue
		}
		p.MarkServed()
		return p, nil
	}
	return nil, model.ErrExhausted
}
// #endregion next

// #region requeue
// Requeue moves a skipped pair to the end of the queue with its status
// reset to pending, so it is presented once more.
func (s *Sampler) Requeue(id uuid.UUID) error {
	if !s.allowRequeue {
		return fmt.Errorf("requeue pair %s: skipping disabled: %w", id, model.ErrInvalidOutcome)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.byID[id]
	if !ok {
		return fmt.Errorf("pair %s: %w", id, model.ErrNotFound)
	}
	if !p.CompareAndSwapStatus(model.PairSkipped, model.PairPending) {
		return fmt.Errorf("requeue pair %s in status %s: %w", id, p.CurrentStatus(), model.ErrConflict)
	}
	s.queue = append(s.queue, p)
	return nil
}
// #endregion requeue

// #region lookup
// Get resolves a pair by id, or NotFound.
func (s *Sampler) Get(id uuid.UUID) (*model.TrajectoryPair, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.byID[id]
	if !ok {
		return nil, fmt.Errorf("pair %s: %w", id, model.ErrNotFound)
	}
	return p, nil
}

// Pairs returns the distinct pairs in the pool, in insertion order.
func (s *Sampler) Pairs() []*model.TrajectoryPair {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*model.TrajectoryPair, 0, len(s.byID))
	seen := make(map[uuid.UUID]bool, len(s.byID))
	for _, p := range s.queue {
		if seen[p.ID] {
			continue
		}
		seen[p.ID] = true
		out = append(out, p)
	}
	return out
}
// #endregion lookup

// #region discard
// DiscardPending drops every not-yet-served queue entry, reporting how
// many were discarded. Used by explicit termination.
func (s *Sampler) DiscardPending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, p := range s.queue[s.cursor:] {
		if p.CurrentStatus() == model.PairPending {
			n++
		}
	}
	s.cursor = len(s.queue)
	return n
}
// #endregion discard
