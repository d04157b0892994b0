package trajectory

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/google/uuid"

	"github.com/rlduels/duelsrv/internal/model"
	"github.com/rlduels/duelsrv/internal/storage"
)

func testFixture(t *testing.T) (string, *storage.Store, *Store, model.TrajectoryRecord) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	db, err := storage.NewStore(path)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	rewards := make([]float64, 300)
	for i := range rewards {
		rewards[i] = float64(i)
	}
	rec := model.TrajectoryRecord{
		ID:         uuid.New(),
		MediaFile:  "run.mp4",
		Rewards:    rewards,
		SampleRate: 30,
		Duration:   10,
		Trim:       model.Bounds{Start: 0, End: 10},
	}
	ctx := context.Background()
	if err := db.AddTrajectory(ctx, rec); err != nil {
		t.Fatalf("AddTrajectory: %v", err)
	}

	s := NewStore(db)
	if err := s.Load(ctx); err != nil {
		t.Fatalf("Load: %v", err)
	}
	return path, db, s, rec
}

func TestGetReturnsCopy(t *testing.T) {
	_, _, s, rec := testFixture(t)

	got, err := s.Get(rec.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.MediaFile != "run.mp4" || got.Duration != 10 {
		t.Errorf("unexpected record: %+v", got)
	}

	// Mutating the returned value must not affect the registry.
	got.Trim = model.Bounds{Start: 5, End: 6}
	bounds, err := s.CurrentBounds(rec.ID)
	if err != nil {
		t.Fatalf("CurrentBounds: %v", err)
	}
	if bounds != (model.Bounds{Start: 0, End: 10}) {
		t.Errorf("registry mutated through copy: %+v", bounds)
	}
}

func TestGetNotFound(t *testing.T) {
	_, _, s, _ := testFixture(t)
	if _, err := s.Get(uuid.New()); !errors.Is(err, model.ErrNotFound) {
		t.Errorf("expected NotFound, got %v", err)
	}
	if _, err := s.CurrentBounds(uuid.New()); !errors.Is(err, model.ErrNotFound) {
		t.Errorf("expected NotFound, got %v", err)
	}
	if _, err := s.WindowRewards(uuid.New()); !errors.Is(err, model.ErrNotFound) {
		t.Errorf("expected NotFound, got %v", err)
	}
}

func TestWindowRewards(t *testing.T) {
	_, _, s, rec := testFixture(t)
	ctx := context.Background()

	// Full window first.
	window, err := s.WindowRewards(rec.ID)
	if err != nil {
		t.Fatalf("WindowRewards: %v", err)
	}
	if len(window) != 300 {
		t.Fatalf("expected 300 samples, got %d", len(window))
	}

	// Trim 2.0s..8.0s at 30 samples/s selects indices [60, 240).
	if err := s.SetBounds(ctx, rec.ID, model.Bounds{Start: 2, End: 8}); err != nil {
		t.Fatalf("SetBounds: %v", err)
	}
	window, err = s.WindowRewards(rec.ID)
	if err != nil {
		t.Fatalf("WindowRewards: %v", err)
	}
	if len(window) != 180 {
		t.Fatalf("expected 180 samples, got %d", len(window))
	}
	if window[0] != 60 || window[179] != 239 {
		t.Errorf("window edges wrong: first=%g last=%g", window[0], window[179])
	}
}

func TestWindowIndicesClamp(t *testing.T) {
	cases := []struct {
		bounds model.Bounds
		rate   float64
		n      int
		lo, hi int
	}{
		{model.Bounds{Start: 0, End: 10}, 30, 300, 0, 300},
		{model.Bounds{Start: 2, End: 8}, 30, 300, 60, 240},
		{model.Bounds{Start: 0, End: 100}, 30, 300, 0, 300},
		{model.Bounds{Start: 9.99, End: 10}, 30, 300, 299, 300},
		{model.Bounds{Start: 0, End: 0.01}, 30, 300, 0, 0},
	}
	for _, c := range cases {
		lo, hi := windowIndices(c.bounds, c.rate, c.n)
		if lo != c.lo || hi != c.hi {
			t.Errorf("windowIndices(%+v): got [%d, %d), expected [%d, %d)", c.bounds, lo, hi, c.lo, c.hi)
		}
	}
}

func TestSetBoundsPersists(t *testing.T) {
	path, _, s, rec := testFixture(t)
	ctx := context.Background()

	if err := s.SetBounds(ctx, rec.ID, model.Bounds{Start: 1, End: 9}); err != nil {
		t.Fatalf("SetBounds: %v", err)
	}

	// A fresh registry over the same database sees the committed bounds.
	db2, err := storage.NewStore(path)
	if err != nil {
		t.Fatalf("reopen store: %v", err)
	}
	defer db2.Close()
	s2 := NewStore(db2)
	if err := s2.Load(ctx); err != nil {
		t.Fatalf("Load: %v", err)
	}
	bounds, err := s2.CurrentBounds(rec.ID)
	if err != nil {
		t.Fatalf("CurrentBounds: %v", err)
	}
	if bounds != (model.Bounds{Start: 1, End: 9}) {
		t.Errorf("bounds not persisted: %+v", bounds)
	}
}

func TestSetPairBounds(t *testing.T) {
	_, db, s, rec := testFixture(t)
	ctx := context.Background()

	rewards := make([]float64, 300)
	other := model.TrajectoryRecord{
		ID:         uuid.New(),
		MediaFile:  "walk.mp4",
		Rewards:    rewards,
		SampleRate: 30,
		Duration:   10,
		Trim:       model.Bounds{Start: 0, End: 10},
	}
	if err := db.AddTrajectory(ctx, other); err != nil {
		t.Fatalf("AddTrajectory: %v", err)
	}
	if err := s.Load(ctx); err != nil {
		t.Fatalf("Load: %v", err)
	}

	// Unknown right side: nothing changes on the known left side.
	err := s.SetPairBounds(ctx, rec.ID, model.Bounds{Start: 2, End: 8}, uuid.New(), model.Bounds{Start: 1, End: 9})
	if !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("expected NotFound, got %v", err)
	}
	bounds, err := s.CurrentBounds(rec.ID)
	if err != nil {
		t.Fatalf("CurrentBounds: %v", err)
	}
	if bounds != (model.Bounds{Start: 0, End: 10}) {
		t.Errorf("left side half-applied: %+v", bounds)
	}

	// Both sides known: both commit.
	if err := s.SetPairBounds(ctx, rec.ID, model.Bounds{Start: 2, End: 8}, other.ID, model.Bounds{Start: 1, End: 9}); err != nil {
		t.Fatalf("SetPairBounds: %v", err)
	}
	if bounds, _ = s.CurrentBounds(rec.ID); bounds != (model.Bounds{Start: 2, End: 8}) {
		t.Errorf("left bounds: %+v", bounds)
	}
	if bounds, _ = s.CurrentBounds(other.ID); bounds != (model.Bounds{Start: 1, End: 9}) {
		t.Errorf("right bounds: %+v", bounds)
	}
}

func TestSetBoundsUnknownID(t *testing.T) {
	_, _, s, _ := testFixture(t)
	err := s.SetBounds(context.Background(), uuid.New(), model.Bounds{Start: 0, End: 1})
	if !errors.Is(err, model.ErrNotFound) {
		t.Errorf("expected NotFound, got %v", err)
	}
}
