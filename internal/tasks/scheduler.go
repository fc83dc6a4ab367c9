package tasks

import (
	"context"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/jonboulle/clockwork"
	"github.com/soundprint-app/soundprint/internal/models"
	"github.com/soundprint-app/soundprint/internal/repositories"
	"github.com/soundprint-app/soundprint/internal/shared"
	"golang.org/x/time/rate"
)

const (
	defaultSyncInterval = 10 * time.Minute
	defaultSyncWorkers  = 3
	defaultSyncRPS      = 5.0
)

// SchedulerOpts configures the periodic sync scheduler. Zero values fall
// back to the defaults.
type SchedulerOpts struct {
	Interval          time.Duration
	Workers           int
	RequestsPerSecond float64
	Clock             clockwork.Clock
	Logger            *log.Logger
}

// Scheduler periodically syncs every connected user. Syncs are fanned out
// over a small worker pool and paced by a token-bucket limiter so a large
// user base does not burst against the provider.
type Scheduler struct {
	users    *repositories.UserRepository
	syncer   *HistorySyncer
	clock    clockwork.Clock
	logger   *log.Logger
	limiter  *rate.Limiter
	interval time.Duration
	workers  int
}

// NewScheduler creates a Scheduler.
func NewScheduler(users *repositories.UserRepository, syncer *HistorySyncer, opts SchedulerOpts) *Scheduler {
	if opts.Interval <= 0 {
		opts.Interval = defaultSyncInterval
	}
	if opts.Workers <= 0 {
		opts.Workers = defaultSyncWorkers
	}
	if opts.RequestsPerSecond <= 0 {
		opts.RequestsPerSecond = defaultSyncRPS
	}
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}

	return &Scheduler{
		users:    users,
		syncer:   syncer,
		clock:    opts.Clock,
		logger:   opts.Logger,
		limiter:  rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), 1),
		interval: opts.Interval,
		workers:  opts.Workers,
	}
}

// Run executes one sync round immediately, then one per interval until the
// context is cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	s.RunOnce(ctx)

	ticker := s.clock.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.Chan():
			s.RunOnce(ctx)
		}
	}
}

// RunOnce syncs every connected user. A failing user is logged and
// skipped; it never aborts the round for the others.
func (s *Scheduler) RunOnce(ctx context.Context) {
	users, err := s.users.ListConnected()
	if err != nil {
		s.logger.Error("failed to list connected users", "error", err)
		return
	}
	if len(users) == 0 {
		return
	}

	jobs := make(chan *models.User)
	var wg sync.WaitGroup

	for i := 0; i < s.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for user := range jobs {
				if err := s.limiter.Wait(ctx); err != nil {
					return
				}
				count, err := s.syncer.Sync(ctx, user.ID)
				if err != nil {
					s.logger.Error("sync failed", "user", user.Username, "error", err)
					continue
				}
				if count > 0 {
					s.logger.Info("sync complete", "user", user.Username, "events", count)
				}
			}
		}()
	}

	for _, user := range users {
		select {
		case <-ctx.Done():
		case jobs <- user:
		}
	}
	close(jobs)
	wg.Wait()
}
