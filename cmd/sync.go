package main

import (
	"context"
	"fmt"
	"time"

	"github.com/soundprint-app/soundprint/internal/tasks"
	"github.com/urfave/cli/v3"
)

// SyncRun performs one incremental sync for a single user, or for every
// connected user with --all.
func (r *Runner) SyncRun(ctx context.Context, cmd *cli.Command) error {
	db, err := r.openDatabase()
	if err != nil {
		return err
	}
	defer db.Close()

	pipeline, err := r.buildPipeline(db)
	if err != nil {
		return err
	}
	defer pipeline.Close()

	if cmd.Bool("all") {
		scheduler := tasks.NewScheduler(pipeline.users, pipeline.syncer, r.schedulerOpts())
		scheduler.RunOnce(ctx)
		return r.writePlain("✓ Sync round complete\n")
	}

	userID, err := r.resolveUser(pipeline.users, cmd.StringArg("username"))
	if err != nil {
		return err
	}

	count, err := pipeline.syncer.Sync(ctx, userID)
	if err != nil {
		return fmt.Errorf("sync failed: %w", err)
	}

	if count == 0 {
		return r.writePlain("Nothing new to sync\n")
	}
	return r.writePlain("✓ Added %d plays\n", count)
}

// SyncWatch keeps syncing every connected user until interrupted.
func (r *Runner) SyncWatch(ctx context.Context, cmd *cli.Command) error {
	db, err := r.openDatabase()
	if err != nil {
		return err
	}
	defer db.Close()

	pipeline, err := r.buildPipeline(db)
	if err != nil {
		return err
	}
	defer pipeline.Close()

	opts := r.schedulerOpts()
	r.logger.Info("watching connected accounts", "interval", opts.Interval)

	scheduler := tasks.NewScheduler(pipeline.users, pipeline.syncer, opts)
	if err := scheduler.Run(ctx); err != nil && err != context.Canceled {
		return err
	}
	return nil
}

func (r *Runner) schedulerOpts() tasks.SchedulerOpts {
	return tasks.SchedulerOpts{
		Interval:          time.Duration(r.config.Sync.IntervalMinutes) * time.Minute,
		Workers:           r.config.Sync.Workers,
		RequestsPerSecond: r.config.Sync.RequestsPerSecond,
		Clock:             r.clock,
		Logger:            r.logger,
	}
}
