package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/chainguard-dev/clog"
	"github.com/google/uuid"

	"github.com/rlduels/duelsrv/internal/config"
	"github.com/rlduels/duelsrv/internal/model"
	"github.com/rlduels/duelsrv/internal/recorder"
	"github.com/rlduels/duelsrv/internal/reward"
	"github.com/rlduels/duelsrv/internal/sampler"
	"github.com/rlduels/duelsrv/internal/storage"
	"github.com/rlduels/duelsrv/internal/trajectory"
	"github.com/rlduels/duelsrv/internal/trim"
)

// #region views
// PairView is what the frontend needs to present a pair.
type PairView struct {
	PairID     uuid.UUID `json:"pairId"`
	LeftMedia  string    `json:"leftMedia"`
	RightMedia string    `json:"rightMedia"`
}

// TrimRequest carries the edited windows for both sides of a pair.
type TrimRequest struct {
	LeftStart  float64 `json:"leftStart"`
	LeftEnd    float64 `json:"leftEnd"`
	RightStart float64 `json:"rightStart"`
	RightEnd   float64 `json:"rightEnd"`
}

// Rewards is the debug-only aggregate per side.
type Rewards struct {
	Left  float64 `json:"leftReward"`
	Right float64 `json:"rightReward"`
}
// #endregion views

// #region controller-struct
// Controller owns the session configuration and lifecycle, drives the
// sampler, and routes trim and judgment requests. One instance per
// session; no ambient globals.
type Controller struct {
	cfg          config.Session
	db           *storage.Store
	trajectories *trajectory.Store
	sampler      *sampler.Sampler
	trims        *trim.Service
	recorder     *recorder.Recorder
	revealer     *reward.Revealer

	mu    sync.Mutex
	state model.SessionState
}

// NewController wires a controller and its sub-components from the
// session configuration. The session starts in INITIALIZING; call Start
// once the pool is loaded.
func NewController(cfg config.Session, mode reward.Mode, db *storage.Store, ts *trajectory.Store, smp *sampler.Sampler) *Controller {
	return &Controller{
		cfg:          cfg,
		db:           db,
		trajectories: ts,
		sampler:      smp,
		trims:        trim.NewService(ts, cfg.AllowEditing),
		recorder:     recorder.New(db, ts, cfg.AllowTies, cfg.AllowSkipping),
		revealer:     reward.NewRevealer(ts, mode, cfg.DebugMode),
		state:        model.SessionInitializing,
	}
}
// #endregion controller-struct

// #region lifecycle
// Start verifies that every pair's trajectories are resolvable and
// moves the session to ACTIVE. Fails if the pool is empty or a pair
// references an unknown trajectory.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != model.SessionInitializing {
		return fmt.Errorf("start in state %s: %w", c.state, model.ErrSessionEnded)
	}

	pairs := c.sampler.Pairs()
	if len(pairs) == 0 {
		return fmt.Errorf("empty pair pool: %w", model.ErrNotFound)
	}
	for _, p := range pairs {
		if _, err := c.trajectories.Get(p.Left); err != nil {
			return fmt.Errorf("pair %s left: %w", p.ID, err)
		}
		if _, err := c.trajectories.Get(p.Right); err != nil {
			return fmt.Errorf("pair %s right: %w", p.ID, err)
		}
	}

	c.state = model.SessionActive
	clog.InfoContextf(ctx, "session active: %d pairs, ties=%v skipping=%v editing=%v debug=%v",
		len(pairs), c.cfg.AllowTies, c.cfg.AllowSkipping, c.cfg.AllowEditing, c.cfg.DebugMode)
	return nil
}

// State reports the current lifecycle state.
func (c *Controller) State() model.SessionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Config returns the immutable session configuration.
func (c *Controller) Config() config.Session {
	return c.cfg
}

// Terminate drives the session to TERMINATED, discarding remaining
// unjudged pairs. Committed judgments are unaffected. Safe to repeat:
// later calls are no-ops.
func (c *Controller) Terminate(ctx context.Context) error {
	c.mu.Lock()
	if c.state == model.SessionTerminated {
		c.mu.Unlock()
		return nil
	}
	c.state = model.SessionTerminating
	c.mu.Unlock()

	discarded := c.sampler.DiscardPending()
	if err := c.db.Flush(ctx); err != nil {
		clog.WarnContextf(ctx, "flush on terminate: %v", err)
	}

	c.mu.Lock()
	c.state = model.SessionTerminated
	c.mu.Unlock()
	clog.InfoContextf(ctx, "session terminated, %d pending pairs discarded", discarded)
	return nil
}
// #endregion lifecycle

// #region next-pair
// NextPair serves the next pair for presentation. On an exhausted
// sampler the session drains to TERMINATED and the exhausted signal is
// returned; callers after that get the session-ended condition.
func (c *Controller) NextPair(ctx context.Context) (PairView, error) {
	if err := c.requireActive(); err != nil {
		return PairView{}, err
	}

	p, err := c.sampler.Next()
	if errors.Is(err, model.ErrExhausted) {
		if terr := c.Terminate(ctx); terr != nil {
			clog.WarnContextf(ctx, "auto-terminate: %v", terr)
		}
		return PairView{}, err
	}
	if err != nil {
		return PairView{}, err
	}

	left, err := c.trajectories.Get(p.Left)
	if err != nil {
		return PairView{}, err
	}
	right, err := c.trajectories.Get(p.Right)
	if err != nil {
		return PairView{}, err
	}

	clog.InfoContextf(ctx, "serving pair %s: %s vs %s", p.ID, left.MediaFile, right.MediaFile)
	return PairView{PairID: p.ID, LeftMedia: left.MediaFile, RightMedia: right.MediaFile}, nil
}
// #endregion next-pair

// #region trim
// Trim applies edited windows to both sides of the pair, returning the
// committed bounds.
func (c *Controller) Trim(ctx context.Context, pairID uuid.UUID, req TrimRequest) (TrimRequest, error) {
	if err := c.requireActive(); err != nil {
		return TrimRequest{}, err
	}
	p, err := c.sampler.Get(pairID)
	if err != nil {
		return TrimRequest{}, err
	}
	snap, err := c.trims.ApplyPair(ctx, p, model.TrimSnapshot{
		Left:  model.Bounds{Start: req.LeftStart, End: req.LeftEnd},
		Right: model.Bounds{Start: req.RightStart, End: req.RightEnd},
	})
	if err != nil {
		return TrimRequest{}, err
	}
	return TrimRequest{
		LeftStart:  snap.Left.Start,
		LeftEnd:    snap.Left.End,
		RightStart: snap.Right.Start,
		RightEnd:   snap.Right.End,
	}, nil
}
// #endregion trim

// #region judge
// Judge records the reviewer's outcome for a pair; the recorder
// snapshots both sides' trim windows at submission time. Skips requeue
// the pair for a later presentation, in memory and in the persisted
// queue so the requeue survives restart.
func (c *Controller) Judge(ctx context.Context, pairID uuid.UUID, outcome model.Outcome) (model.Judgment, error) {
	p, err := c.lookupForJudgment(pairID)
	if err != nil {
		return model.Judgment{}, err
	}

	j, err := c.recorder.Record(ctx, p, outcome)
	if err != nil {
		return model.Judgment{}, err
	}

	if outcome == model.OutcomeSkip {
		if err := c.sampler.Requeue(pairID); err != nil {
			clog.WarnContextf(ctx, "requeue after skip: %v", err)
		} else if err := c.db.RequeuePair(ctx, pairID); err != nil {
			clog.WarnContextf(ctx, "persist requeue: %v", err)
		}
	}
	return j, nil
}

// lookupForJudgment applies the lifecycle gate for judgments: ACTIVE
// accepts all, TERMINATING only completes pairs already served, and
// TERMINATED rejects everything.
func (c *Controller) lookupForJudgment(pairID uuid.UUID) (*model.TrajectoryPair, error) {
	c.mu.Lock()
	state := c.state
	c.mu.Unlock()

	switch state {
	case model.SessionActive:
	case model.SessionTerminating:
		p, err := c.sampler.Get(pairID)
		if err != nil {
			return nil, err
		}
		if !p.WasServed() {
			return nil, fmt.Errorf("pair %s not served before termination: %w", pairID, model.ErrSessionEnded)
		}
		return p, nil
	default:
		return nil, fmt.Errorf("state %s: %w", state, model.ErrSessionEnded)
	}
	return c.sampler.Get(pairID)
}
// #endregion judge

// #region rewards
// RewardsFor aggregates both sides' rewards over their current trim
// windows. Only available in debug mode.
func (c *Controller) RewardsFor(ctx context.Context, pairID uuid.UUID) (Rewards, error) {
	if err := c.requireActive(); err != nil {
		return Rewards{}, err
	}
	p, err := c.sampler.Get(pairID)
	if err != nil {
		return Rewards{}, err
	}
	left, err := c.revealer.Aggregate(p.Left)
	if err != nil {
		return Rewards{}, err
	}
	right, err := c.revealer.Aggregate(p.Right)
	if err != nil {
		return Rewards{}, err
	}
	return Rewards{Left: left, Right: right}, nil
}
// #endregion rewards

// #region judgments
// Judgments returns every committed judgment. Readable in any state,
// including after termination.
func (c *Controller) Judgments(ctx context.Context) ([]model.Judgment, error) {
	return c.recorder.List(ctx)
}
// #endregion judgments

// #region state-guard
func (c *Controller) requireActive() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch c.state {
	case model.SessionActive:
		return nil
	case model.SessionInitializing:
		return fmt.Errorf("session still initializing: %w", model.ErrNotReady)
	default:
		return fmt.Errorf("state %s: %w", c.state, model.ErrSessionEnded)
	}
}
// #endregion state-guard
