package trim

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/rlduels/duelsrv/internal/model"
	"github.com/rlduels/duelsrv/internal/trajectory"
)

// #region side
// Side names one half of a pair.
type Side string

const (
	SideLeft  Side = "left"
	SideRight Side = "right"
)
// #endregion side

// #region service-struct
// Service validates and applies trim edits to a pair's trajectories.
// Trimming is non-destructive: the full media and reward sequence are
// retained and bounds are always expressed against the full duration,
// so repeated trims never compound.
type Service struct {
	trajectories *trajectory.Store
	enabled      bool
}

// NewService creates a trim service. enabled mirrors the session's
// allowEditing flag; when false every edit is rejected outright.
func NewService(ts *trajectory.Store, enabled bool) *Service {
	return &Service{trajectories: ts, enabled: enabled}
}
// #endregion service-struct

// #region apply-trim
// ApplyTrim validates and commits a new window for the named side.
// Returns the committed bounds; applying an identical trim twice is a
// no-op. A pair that already carries a judgment rejects the edit with
// the conflict condition.
func (s *Service) ApplyTrim(ctx context.Context, pair *model.TrajectoryPair, side Side, start, end float64) (model.Bounds, error) {
	if !s.enabled {
		return model.Bounds{}, model.ErrEditingDisabled
	}
	id, err := sideID(pair, side)
	if err != nil {
		return model.Bounds{}, err
	}
	if err := s.Check(id, start, end); err != nil {
		return model.Bounds{}, err
	}

	pair.Mu.Lock()
	defer pair.Mu.Unlock()
	if pair.Status == model.PairJudged {
		return model.Bounds{}, fmt.Errorf("trim pair %s: %w", pair.ID, model.ErrConflict)
	}
	return s.commit(ctx, id, model.Bounds{Start: start, End: end})
}

// ApplyPair validates both sides before committing either, then applies
// them under a single pair lock so a concurrent judgment serialises
// against the whole edit. Both windows commit in one transaction: a
// storage failure leaves neither side changed.
func (s *Service) ApplyPair(ctx context.Context, pair *model.TrajectoryPair, snap model.TrimSnapshot) (model.TrimSnapshot, error) {
	if !s.enabled {
		return model.TrimSnapshot{}, model.ErrEditingDisabled
	}
	if err := s.Check(pair.Left, snap.Left.Start, snap.Left.End); err != nil {
		return model.TrimSnapshot{}, err
	}
	if err := s.Check(pair.Right, snap.Right.Start, snap.Right.End); err != nil {
		return model.TrimSnapshot{}, err
	}

	pair.Mu.Lock()
	defer pair.Mu.Unlock()
	if pair.Status == model.PairJudged {
		return model.TrimSnapshot{}, fmt.Errorf("trim pair %s: %w", pair.ID, model.ErrConflict)
	}

	if err := s.trajectories.SetPairBounds(ctx, pair.Left, snap.Left, pair.Right, snap.Right); err != nil {
		return model.TrimSnapshot{}, err
	}
	return snap, nil
}
// #endregion apply-trim

// #region validation
// Check verifies 0 <= start < end <= duration for the trajectory
// without mutating anything.
func (s *Service) Check(id uuid.UUID, start, end float64) error {
	rec, err := s.trajectories.Get(id)
	if err != nil {
		return err
	}
	if start < 0 || start >= end || end > rec.Duration {
		return fmt.Errorf("trajectory %s: [%g, %g] outside [0, %g]: %w",
			id, start, end, rec.Duration, model.ErrInvalidRange)
	}
	return nil
}
// #endregion validation

// #region commit
func (s *Service) commit(ctx context.Context, id uuid.UUID, b model.Bounds) (model.Bounds, error) {
	rec, err := s.trajectories.Get(id)
	if err != nil {
		return model.Bounds{}, err
	}
	if rec.Trim == b {
		// Identical trim, nothing to write.
		return b, nil
	}
	if err := s.trajectories.SetBounds(ctx, id, b); err != nil {
		return model.Bounds{}, err
	}
	return b, nil
}

func sideID(pair *model.TrajectoryPair, side Side) (uuid.UUID, error) {
	switch side {
	case SideLeft:
		return pair.Left, nil
	case SideRight:
		return pair.Right, nil
	}
	return uuid.Nil, fmt.Errorf("side %q: %w", side, model.ErrNotFound)
}
// #endregion commit
