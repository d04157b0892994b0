package main

import (
	"context"

	"github.com/chainguard-dev/clog"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/joho/godotenv"
	"github.com/sethvargo/go-envconfig"

	"github.com/rlduels/duelsrv/internal/config"
	"github.com/rlduels/duelsrv/internal/handlers"
	"github.com/rlduels/duelsrv/internal/reward"
	"github.com/rlduels/duelsrv/internal/sampler"
	"github.com/rlduels/duelsrv/internal/session"
	"github.com/rlduels/duelsrv/internal/storage"
	"github.com/rlduels/duelsrv/internal/trajectory"
)

// #region main
func main() {
	_ = godotenv.Load()
	ctx := context.Background()

	var cfg config.Server
	if err := envconfig.Process(ctx, &cfg); err != nil {
		clog.FatalContextf(ctx, "processing config: %v", err)
	}

	sess, err := config.LoadSession(cfg.ConfigPath)
	if err != nil {
		clog.FatalContextf(ctx, "loading session config: %v", err)
	}
	mode, err := reward.ParseMode(cfg.Aggregate)
	if err != nil {
		clog.FatalContextf(ctx, "aggregation mode: %v", err)
	}

	store, err := storage.NewStore(cfg.DBPath)
	if err != nil {
		clog.FatalContextf(ctx, "opening store: %v", err)
	}
	defer store.Close()

	trajectories := trajectory.NewStore(store)
	if err := trajectories.Load(ctx); err != nil {
		clog.FatalContextf(ctx, "loading trajectories: %v", err)
	}
	pairs, err := store.ListPairs(ctx)
	if err != nil {
		clog.FatalContextf(ctx, "loading pairs: %v", err)
	}

	smp := sampler.New(pairs, sess.AllowSkipping)
	ctrl := session.NewController(sess, mode, store, trajectories, smp)
	if err := ctrl.Start(ctx); err != nil {
		clog.FatalContextf(ctx, "starting session: %v (seed the database with cmd/seed first)", err)
	}

	app := fiber.New()
	app.Use(logger.New())
	handlers.NewHandler(ctrl).Register(app, cfg.MediaDir)

	clog.InfoContextf(ctx, "duel server listening on %s (db=%s media=%s)", cfg.Addr, cfg.DBPath, cfg.MediaDir)
	if err := app.Listen(cfg.Addr); err != nil {
		clog.FatalContextf(ctx, "server stopped: %v", err)
	}
}
// #endregion main
