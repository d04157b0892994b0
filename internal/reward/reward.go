package reward

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/rlduels/duelsrv/internal/model"
	"github.com/rlduels/duelsrv/internal/trajectory"
)

// #region mode
// Mode selects how the reward sequence is aggregated.
type Mode string

const (
	ModeSum  Mode = "sum"
	ModeMean Mode = "mean"
)

// ParseMode resolves a configured mode string, defaulting to sum.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeSum, "":
		return ModeSum, nil
	case ModeMean:
		return ModeMean, nil
	}
	return "", fmt.Errorf("unknown aggregation mode %q", s)
}
// #endregion mode

// #region revealer
// Revealer computes an aggregate reward per trajectory for on-screen
// debug display. Pure query, recomputed on every call so it always
// reflects the latest trim window. When debugMode is off the revealer
// is disabled entirely: callers cannot retrieve reward values at all.
type Revealer struct {
	trajectories *trajectory.Store
	mode         Mode
	enabled      bool
}

// NewRevealer creates a revealer. enabled mirrors the session's
// debugMode flag.
func NewRevealer(ts *trajectory.Store, mode Mode, enabled bool) *Revealer {
	return &Revealer{trajectories: ts, mode: mode, enabled: enabled}
}

// Aggregate returns the sum (or mean) of the trajectory's rewards
// restricted to its current trim window.
func (r *Revealer) Aggregate(id uuid.UUID) (float64, error) {
	if !r.enabled {
		return 0, model.ErrRewardsHidden
	}
	window, err := r.trajectories.WindowRewards(id)
	if err != nil {
		return 0, err
	}
	var total float64
	for _, v := range window {
		total += v
	}
	if r.mode == ModeMean && len(window) > 0 {
		return total / float64(len(window)), nil
	}
	return total, nil
}
// #endregion revealer
