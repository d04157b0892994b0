package trajectory

import (
	"context"
	"fmt"
	"math"
	"sync"

	"github.com/google/uuid"

	"github.com/rlduels/duelsrv/internal/model"
	"github.com/rlduels/duelsrv/internal/storage"
)

// #region store-struct
// Store is the read-mostly registry of trajectory records for one
// session, hydrated from SQLite at startup. Queries are side-effect
// free; the only mutation is SetBounds, reserved for the trim service.
type Store struct {
	db *storage.Store

	mu      sync.RWMutex
	records map[uuid.UUID]*model.TrajectoryRecord
}
// #endregion store-struct

// #region constructor
// NewStore creates an empty registry backed by db.
func NewStore(db *storage.Store) *Store {
	return &Store{
		db:      db,
		records: make(map[uuid.UUID]*model.TrajectoryRecord),
	}
}

// Load hydrates the registry from persisted trajectory rows, restoring
// trim bounds from the previous run.
func (s *Store) Load(ctx context.Context) error {
	records, err := s.db.ListTrajectories(ctx)
	if err != nil {
		return fmt.Errorf("load trajectories: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range records {
		rec := records[i]
		s.records[rec.ID] = &rec
	}
	return nil
}
// #endregion constructor

// #region queries
// Get returns a copy of the record, or NotFound for an unknown id.
func (s *Store) Get(id uuid.UUID) (model.TrajectoryRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[id]
	if !ok {
		return model.TrajectoryRecord{}, fmt.Errorf("trajectory %s: %w", id, model.ErrNotFound)
	}
	return *rec, nil
}

// CurrentBounds returns the trajectory's active trim window.
func (s *Store) CurrentBounds(id uuid.UUID) (model.Bounds, error) {
	rec, err := s.Get(id)
	if err != nil {
		return model.Bounds{}, err
	}
	return rec.Trim, nil
}

// WindowRewards returns the reward sequence restricted to the current
// trim window, as the half-open index range
// [floor(start*rate), floor(end*rate)) clamped to [0, len].
func (s *Store) WindowRewards(id uuid.UUID) ([]float64, error) {
	rec, err := s.Get(id)
	if err != nil {
		return nil, err
	}
	lo, hi := windowIndices(rec.Trim, rec.SampleRate, len(rec.Rewards))
	out := make([]float64, hi-lo)
	copy(out, rec.Rewards[lo:hi])
	return out, nil
}

// Len reports how many trajectories are registered.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}
// #endregion queries

// #region set-bounds
// SetBounds commits a new active window for the trajectory, writing
// through to SQLite before mutating the registry. Only the trim service
// calls this; everything else treats records as read-only.
func (s *Store) SetBounds(ctx context.Context, id uuid.UUID, b model.Bounds) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[id]
	if !ok {
		return fmt.Errorf("trajectory %s: %w", id, model.ErrNotFound)
	}
	if err := s.db.UpdateTrimBounds(ctx, id, b); err != nil {
		return fmt.Errorf("%w: %v", model.ErrStorage, err)
	}
	rec.Trim = b
	return nil
}

// SetPairBounds commits new windows for both sides of a pair in one
// database transaction: either both land or neither does, in SQLite and
// in the registry alike.
func (s *Store) SetPairBounds(ctx context.Context, leftID uuid.UUID, left model.Bounds, rightID uuid.UUID, right model.Bounds) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	leftRec, ok := s.records[leftID]
	if !ok {
		return fmt.Errorf("trajectory %s: %w", leftID, model.ErrNotFound)
	}
	rightRec, ok := s.records[rightID]
	if !ok {
		return fmt.Errorf("trajectory %s: %w", rightID, model.ErrNotFound)
	}
	if leftRec.Trim == left && rightRec.Trim == right {
		// Identical windows, nothing to write.
		return nil
	}
	if err := s.db.UpdateTrimBoundsPair(ctx, leftID, left, rightID, right); err != nil {
		return fmt.Errorf("%w: %v", model.ErrStorage, err)
	}
	leftRec.Trim = left
	rightRec.Trim = right
	return nil
}
// #endregion set-bounds

// #region window-indices
func windowIndices(b model.Bounds, rate float64, n int) (int, int) {
	lo := int(math.Floor(b.Start * rate))
	hi := int(math.Floor(b.End * rate))
	if lo < 0 {
		lo = 0
	}
	if hi > n {
		hi = n
	}
	if lo > hi {
		lo = hi
	}
	return lo, hi
}
// #endregion window-indices
