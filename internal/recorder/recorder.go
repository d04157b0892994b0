package recorder

import (
	"context"
	"fmt"
	"time"

	"github.com/chainguard-dev/clog"

	"github.com/rlduels/duelsrv/internal/model"
	"github.com/rlduels/duelsrv/internal/storage"
	"github.com/rlduels/duelsrv/internal/trajectory"
)

// #region recorder-struct
// Recorder durably records judgments. Each pair is an independently
// lockable resource: submissions for the same pair serialise on the
// pair's lock and the first writer wins; the loser gets the conflict
// condition carrying the committed judgment.
type Recorder struct {
	db            *storage.Store
	trajectories  *trajectory.Store
	allowTies     bool
	allowSkipping bool
}

// New creates a recorder enforcing the session's outcome gates.
func New(db *storage.Store, ts *trajectory.Store, allowTies, allowSkipping bool) *Recorder {
	return &Recorder{db: db, trajectories: ts, allowTies: allowTies, allowSkipping: allowSkipping}
}
// #endregion recorder-struct

// #region record
// Record validates and commits a judgment for the pair. The trim
// snapshot is read inside the pair's critical section, so a trim that
// loses the race cannot slip between snapshot and commit. Skip outcomes
// move the pair to skipped without committing a terminal judgment. If
// the durable write fails the pair status stays pending, so a judgment
// is never observable unless it is stored.
func (r *Recorder) Record(ctx context.Context, pair *model.TrajectoryPair, outcome model.Outcome) (model.Judgment, error) {
	if err := r.checkOutcome(outcome); err != nil {
		return model.Judgment{}, err
	}

	pair.Mu.Lock()
	defer pair.Mu.Unlock()

	if pair.Status != model.PairPending {
		return model.Judgment{}, r.conflict(ctx, pair)
	}

	leftBounds, err := r.trajectories.CurrentBounds(pair.Left)
	if err != nil {
		return model.Judgment{}, err
	}
	rightBounds, err := r.trajectories.CurrentBounds(pair.Right)
	if err != nil {
		return model.Judgment{}, err
	}

	j := model.Judgment{
		PairID:    pair.ID,
		Outcome:   outcome,
		CreatedAt: time.Now().UTC(),
		Trims:     model.TrimSnapshot{Left: leftBounds, Right: rightBounds},
	}

	if outcome == model.OutcomeSkip {
		if err := r.db.UpdatePairStatus(ctx, pair.ID, model.PairSkipped); err != nil {
			return model.Judgment{}, fmt.Errorf("%w: %v", model.ErrStorage, err)
		}
		pair.Status = model.PairSkipped
		clog.InfoContextf(ctx, "pair %s skipped", pair.ID)
		return j, nil
	}

	if err := r.db.CommitJudgment(ctx, j); err != nil {
		// Status stays pending; nothing was committed.
		return model.Judgment{}, fmt.Errorf("%w: %v", model.ErrStorage, err)
	}
	pair.Status = model.PairJudged
	clog.InfoContextf(ctx, "pair %s judged: %s", pair.ID, outcome)
	return j, nil
}
// #endregion record

// #region gates
func (r *Recorder) checkOutcome(outcome model.Outcome) error {
	if !outcome.Known() {
		return fmt.Errorf("outcome %q: %w", outcome, model.ErrInvalidOutcome)
	}
	if outcome == model.OutcomeEqual && !r.allowTies {
		return fmt.Errorf("ties disabled: %w", model.ErrInvalidOutcome)
	}
	if outcome == model.OutcomeSkip && !r.allowSkipping {
		return fmt.Errorf("skipping disabled: %w", model.ErrInvalidOutcome)
	}
	return nil
}
// #endregion gates

// #region conflict
// conflict builds the rejection for a non-pending pair. For a judged
// pair the committed judgment rides along so the caller can reconcile.
func (r *Recorder) conflict(ctx context.Context, pair *model.TrajectoryPair) error {
	if pair.Status == model.PairJudged {
		existing, err := r.db.GetJudgment(ctx, pair.ID)
		if err == nil {
			return &model.ConflictError{Existing: existing}
		}
	}
	return fmt.Errorf("pair %s in status %s: %w", pair.ID, pair.Status, model.ErrConflict)
}
// #endregion conflict

// #region list
// List returns every committed judgment.
func (r *Recorder) List(ctx context.Context) ([]model.Judgment, error) {
	return r.db.ListJudgments(ctx)
}
// #endregion list
