package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/rlduels/duelsrv/internal/model"
)

func tempStore(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	s, err := NewStore(filepath.Join(dir, "test.db"))
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func testTrajectory(media string, n int) model.TrajectoryRecord {
	rewards := make([]float64, n)
	for i := range rewards {
		rewards[i] = float64(i)
	}
	duration := float64(n) / 30.0
	return model.TrajectoryRecord{
		ID:         uuid.New(),
		MediaFile:  media,
		Rewards:    rewards,
		SampleRate: 30,
		Duration:   duration,
		Trim:       model.Bounds{Start: 0, End: duration},
	}
}

func TestTrajectoryRoundTrip(t *testing.T) {
	s := tempStore(t)
	ctx := context.Background()

	a := testTrajectory("a.mp4", 300)
	b := testTrajectory("b.mp4", 150)
	for _, rec := range []model.TrajectoryRecord{a, b} {
		if err := s.AddTrajectory(ctx, rec); err != nil {
			t.Fatalf("AddTrajectory: %v", err)
		}
	}

	records, err := s.ListTrajectories(ctx)
	if err != nil {
		t.Fatalf("ListTrajectories: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}

	byID := map[uuid.UUID]model.TrajectoryRecord{}
	for _, rec := range records {
		byID[rec.ID] = rec
	}
	got, ok := byID[a.ID]
	if !ok {
		t.Fatalf("trajectory %s missing", a.ID)
	}
	if got.MediaFile != "a.mp4" || got.SampleRate != 30 || got.Duration != a.Duration {
		t.Errorf("unexpected fields: %+v", got)
	}
	if len(got.Rewards) != 300 || got.Rewards[0] != 0 || got.Rewards[299] != 299 {
		t.Errorf("rewards not preserved: len=%d", len(got.Rewards))
	}
	if got.Trim != (model.Bounds{Start: 0, End: a.Duration}) {
		t.Errorf("unexpected trim bounds: %+v", got.Trim)
	}
}

func TestUpdateTrimBounds(t *testing.T) {
	s := tempStore(t)
	ctx := context.Background()

	rec := testTrajectory("a.mp4", 300)
	if err := s.AddTrajectory(ctx, rec); err != nil {
		t.Fatalf("AddTrajectory: %v", err)
	}

	if err := s.UpdateTrimBounds(ctx, rec.ID, model.Bounds{Start: 2, End: 8}); err != nil {
		t.Fatalf("UpdateTrimBounds: %v", err)
	}
	records, err := s.ListTrajectories(ctx)
	if err != nil {
		t.Fatalf("ListTrajectories: %v", err)
	}
	if records[0].Trim != (model.Bounds{Start: 2, End: 8}) {
		t.Errorf("bounds not updated: %+v", records[0].Trim)
	}

	err = s.UpdateTrimBounds(ctx, uuid.New(), model.Bounds{Start: 0, End: 1})
	if !errors.Is(err, model.ErrNotFound) {
		t.Errorf("expected NotFound for unknown id, got %v", err)
	}
}

func TestPairQueueOrder(t *testing.T) {
	s := tempStore(t)
	ctx := context.Background()

	a := testTrajectory("a.mp4", 30)
	b := testTrajectory("b.mp4", 30)
	for _, rec := range []model.TrajectoryRecord{a, b} {
		if err := s.AddTrajectory(ctx, rec); err != nil {
			t.Fatalf("AddTrajectory: %v", err)
		}
	}

	ids := make([]uuid.UUID, 3)
	for i := range ids {
		p := model.NewPair(uuid.New(), a.ID, b.ID, model.PairPending)
		ids[i] = p.ID
		if err := s.AddPair(ctx, p, i); err != nil {
			t.Fatalf("AddPair: %v", err)
		}
	}

	pairs, err := s.ListPairs(ctx)
	if err != nil {
		t.Fatalf("ListPairs: %v", err)
	}
	if len(pairs) != 3 {
		t.Fatalf("expected 3 pairs, got %d", len(pairs))
	}
	for i, p := range pairs {
		if p.ID != ids[i] {
			t.Errorf("position %d: expected %s, got %s", i, ids[i], p.ID)
		}
		if p.CurrentStatus() != model.PairPending {
			t.Errorf("expected pending, got %s", p.CurrentStatus())
		}
	}
}

func TestRequeuePairMovesToBack(t *testing.T) {
	s := tempStore(t)
	ctx := context.Background()

	a := testTrajectory("a.mp4", 30)
	b := testTrajectory("b.mp4", 30)
	for _, rec := range []model.TrajectoryRecord{a, b} {
		if err := s.AddTrajectory(ctx, rec); err != nil {
			t.Fatalf("AddTrajectory: %v", err)
		}
	}
	ids := make([]uuid.UUID, 3)
	for i := range ids {
		p := model.NewPair(uuid.New(), a.ID, b.ID, model.PairPending)
		ids[i] = p.ID
		if err := s.AddPair(ctx, p, i); err != nil {
			t.Fatalf("AddPair: %v", err)
		}
	}

	if err := s.UpdatePairStatus(ctx, ids[0], model.PairSkipped); err != nil {
		t.Fatalf("UpdatePairStatus: %v", err)
	}
	if err := s.RequeuePair(ctx, ids[0]); err != nil {
		t.Fatalf("RequeuePair: %v", err)
	}

	pairs, err := s.ListPairs(ctx)
	if err != nil {
		t.Fatalf("ListPairs: %v", err)
	}
	want := []uuid.UUID{ids[1], ids[2], ids[0]}
	for i, p := range pairs {
		if p.ID != want[i] {
			t.Errorf("position %d: expected %s, got %s", i, want[i], p.ID)
		}
	}
	if pairs[2].CurrentStatus() != model.PairPending {
		t.Errorf("requeued pair status: %s", pairs[2].CurrentStatus())
	}

	if err := s.RequeuePair(ctx, uuid.New()); !errors.Is(err, model.ErrNotFound) {
		t.Errorf("expected NotFound for unknown pair, got %v", err)
	}
}

func TestUpdateTrimBoundsPairAtomic(t *testing.T) {
	s := tempStore(t)
	ctx := context.Background()

	rec := testTrajectory("a.mp4", 300)
	if err := s.AddTrajectory(ctx, rec); err != nil {
		t.Fatalf("AddTrajectory: %v", err)
	}

	// Unknown right side: the whole edit rolls back, including the
	// known left side.
	err := s.UpdateTrimBoundsPair(ctx, rec.ID, model.Bounds{Start: 2, End: 8}, uuid.New(), model.Bounds{Start: 1, End: 9})
	if !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("expected NotFound, got %v", err)
	}
	records, err := s.ListTrajectories(ctx)
	if err != nil {
		t.Fatalf("ListTrajectories: %v", err)
	}
	if records[0].Trim != rec.Trim {
		t.Errorf("left side half-applied: %+v", records[0].Trim)
	}

	// Both sides known: both land.
	other := testTrajectory("b.mp4", 300)
	if err := s.AddTrajectory(ctx, other); err != nil {
		t.Fatalf("AddTrajectory: %v", err)
	}
	if err := s.UpdateTrimBoundsPair(ctx, rec.ID, model.Bounds{Start: 2, End: 8}, other.ID, model.Bounds{Start: 1, End: 9}); err != nil {
		t.Fatalf("UpdateTrimBoundsPair: %v", err)
	}
	records, err = s.ListTrajectories(ctx)
	if err != nil {
		t.Fatalf("ListTrajectories: %v", err)
	}
	byID := map[uuid.UUID]model.TrajectoryRecord{}
	for _, r := range records {
		byID[r.ID] = r
	}
	if byID[rec.ID].Trim != (model.Bounds{Start: 2, End: 8}) {
		t.Errorf("left bounds: %+v", byID[rec.ID].Trim)
	}
	if byID[other.ID].Trim != (model.Bounds{Start: 1, End: 9}) {
		t.Errorf("right bounds: %+v", byID[other.ID].Trim)
	}
}

func TestCommitJudgmentEnforcesUniqueness(t *testing.T) {
	s := tempStore(t)
	ctx := context.Background()

	a := testTrajectory("a.mp4", 30)
	b := testTrajectory("b.mp4", 30)
	for _, rec := range []model.TrajectoryRecord{a, b} {
		if err := s.AddTrajectory(ctx, rec); err != nil {
			t.Fatalf("AddTrajectory: %v", err)
		}
	}
	p := model.NewPair(uuid.New(), a.ID, b.ID, model.PairPending)
	if err := s.AddPair(ctx, p, 0); err != nil {
		t.Fatalf("AddPair: %v", err)
	}

	j := model.Judgment{
		PairID:    p.ID,
		Outcome:   model.OutcomeLeft,
		CreatedAt: time.Now().UTC(),
		Trims: model.TrimSnapshot{
			Left:  model.Bounds{Start: 0, End: 1},
			Right: model.Bounds{Start: 0, End: 1},
		},
	}
	if err := s.CommitJudgment(ctx, j); err != nil {
		t.Fatalf("CommitJudgment: %v", err)
	}

	// Second row for the same pair must violate the primary key.
	j.Outcome = model.OutcomeRight
	if err := s.CommitJudgment(ctx, j); err == nil {
		t.Fatal("expected second judgment insert to fail")
	}

	got, err := s.GetJudgment(ctx, p.ID)
	if err != nil {
		t.Fatalf("GetJudgment: %v", err)
	}
	if got.Outcome != model.OutcomeLeft {
		t.Errorf("stored judgment changed: %s", got.Outcome)
	}

	pairs, err := s.ListPairs(ctx)
	if err != nil {
		t.Fatalf("ListPairs: %v", err)
	}
	if pairs[0].CurrentStatus() != model.PairJudged {
		t.Errorf("pair status not judged: %s", pairs[0].CurrentStatus())
	}
}

func TestJudgmentTimestampCorruptionSurfaced(t *testing.T) {
	s := tempStore(t)
	ctx := context.Background()

	a := testTrajectory("a.mp4", 30)
	b := testTrajectory("b.mp4", 30)
	for _, rec := range []model.TrajectoryRecord{a, b} {
		if err := s.AddTrajectory(ctx, rec); err != nil {
			t.Fatalf("AddTrajectory: %v", err)
		}
	}
	p := model.NewPair(uuid.New(), a.ID, b.ID, model.PairPending)
	if err := s.AddPair(ctx, p, 0); err != nil {
		t.Fatalf("AddPair: %v", err)
	}
	j := model.Judgment{PairID: p.ID, Outcome: model.OutcomeLeft, CreatedAt: time.Now().UTC()}
	if err := s.CommitJudgment(ctx, j); err != nil {
		t.Fatalf("CommitJudgment: %v", err)
	}

	if _, err := s.db.ExecContext(ctx,
		`UPDATE judgments SET created_at = 'garbage' WHERE pair_id = ?`, p.ID.String()); err != nil {
		t.Fatalf("corrupt row: %v", err)
	}

	if _, err := s.GetJudgment(ctx, p.ID); err == nil {
		t.Error("GetJudgment swallowed timestamp corruption")
	}
	if _, err := s.ListJudgments(ctx); err == nil {
		t.Error("ListJudgments swallowed timestamp corruption")
	}
}

func TestGetJudgmentNotFound(t *testing.T) {
	s := tempStore(t)
	_, err := s.GetJudgment(context.Background(), uuid.New())
	if !errors.Is(err, model.ErrNotFound) {
		t.Errorf("expected NotFound, got %v", err)
	}
}

func TestFlush(t *testing.T) {
	s := tempStore(t)
	if err := s.Flush(context.Background()); err != nil {
		t.Errorf("Flush: %v", err)
	}
}
