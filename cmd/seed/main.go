// Command seed loads a trajectory/pair manifest into the session
// database, taking the place of the rollout pipeline that would
// normally produce recordings.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/chainguard-dev/clog"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/sethvargo/go-envconfig"
	"gopkg.in/yaml.v3"

	"github.com/rlduels/duelsrv/internal/config"
	"github.com/rlduels/duelsrv/internal/model"
	"github.com/rlduels/duelsrv/internal/storage"
)

// #region manifest
type manifest struct {
	Trajectories []manifestTrajectory `yaml:"trajectories"`
	Pairs        []manifestPair       `yaml:"pairs"`
}

type manifestTrajectory struct {
	Name       string    `yaml:"name"`
	Media      string    `yaml:"media"`
	SampleRate float64   `yaml:"sampleRate"`
	Duration   float64   `yaml:"duration"` // derived from rewards when zero
	Rewards    []float64 `yaml:"rewards"`
}

type manifestPair struct {
	Left  string `yaml:"left"`
	Right string `yaml:"right"`
}
// #endregion manifest

// #region main
func main() {
	manifestPath := flag.String("manifest", "pairs.yaml", "trajectory/pair manifest to load")
	flag.Parse()

	_ = godotenv.Load()
	ctx := context.Background()

	var cfg config.Server
	if err := envconfig.Process(ctx, &cfg); err != nil {
		clog.FatalContextf(ctx, "processing config: %v", err)
	}

	m, err := loadManifest(*manifestPath)
	if err != nil {
		clog.FatalContextf(ctx, "loading manifest: %v", err)
	}

	store, err := storage.NewStore(cfg.DBPath)
	if err != nil {
		clog.FatalContextf(ctx, "opening store: %v", err)
	}
	defer store.Close()

	if err := seed(ctx, store, m); err != nil {
		clog.FatalContextf(ctx, "seeding: %v", err)
	}
	clog.InfoContextf(ctx, "seeded %d trajectories and %d pairs into %s",
		len(m.Trajectories), len(m.Pairs), cfg.DBPath)
}
// #endregion main

// #region load-manifest
func loadManifest(path string) (manifest, error) {
	f, err := os.Open(path)
	if err != nil {
		return manifest{}, err
	}
	defer f.Close()

	var m manifest
	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(&m); err != nil {
		return manifest{}, fmt.Errorf("decode %s: %w", path, err)
	}
	return m, nil
}
// #endregion load-manifest

// #region seed
func seed(ctx context.Context, store *storage.Store, m manifest) error {
	ids := make(map[string]uuid.UUID, len(m.Trajectories))
	for _, t := range m.Trajectories {
		if t.Name == "" || t.Media == "" {
			return fmt.Errorf("trajectory needs name and media: %+v", t)
		}
		if t.SampleRate <= 0 {
			return fmt.Errorf("trajectory %s: sampleRate must be positive", t.Name)
		}
		if _, dup := ids[t.Name]; dup {
			return fmt.Errorf("duplicate trajectory name %s", t.Name)
		}
		duration := t.Duration
		if duration == 0 {
			duration = float64(len(t.Rewards)) / t.SampleRate
		}
		rec := model.TrajectoryRecord{
			ID:         uuid.New(),
			MediaFile:  t.Media,
			Rewards:    t.Rewards,
			SampleRate: t.SampleRate,
			Duration:   duration,
			Trim:       model.Bounds{Start: 0, End: duration},
		}
		if err := store.AddTrajectory(ctx, rec); err != nil {
			return fmt.Errorf("trajectory %s: %w", t.Name, err)
		}
		ids[t.Name] = rec.ID
	}

	for i, p := range m.Pairs {
		left, ok := ids[p.Left]
		if !ok {
			return fmt.Errorf("pair %d: unknown trajectory %s", i, p.Left)
		}
		right, ok := ids[p.Right]
		if !ok {
			return fmt.Errorf("pair %d: unknown trajectory %s", i, p.Right)
		}
		pair := model.NewPair(uuid.New(), left, right, model.PairPending)
		if err := store.AddPair(ctx, pair, i); err != nil {
			return fmt.Errorf("pair %d: %w", i, err)
		}
	}
	return nil
}
// #endregion seed
