package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/jakeharveyy/tipengine/internal/domain"
)

// jobLockTTL caps how long a crashed holder can block a job on another
// instance. Comfortably above any job's runtime.
const jobLockTTL = 5 * time.Minute

// Job is one background loop: a name for logging and locking, a cadence, and
// the work itself.
type Job struct {
	Name     string
	Interval time.Duration
	Run      func(ctx context.Context, now time.Time) error
}

// Orchestrator runs every registered job on its own ticker goroutine, plus
// the archiver on a cron schedule. Runs are serialized across instances with
// redis locks.
type Orchestrator struct {
	jobs        []Job
	archiver    *Archiver
	archiveCron string
	locks       domain.LockManager
	logger      *slog.Logger
}

// NewOrchestrator creates an Orchestrator with no jobs registered.
func NewOrchestrator(locks domain.LockManager, logger *slog.Logger) *Orchestrator {
	return &Orchestrator{
		locks:  locks,
		logger: logger,
	}
}

// Add registers ticker-driven jobs.
func (o *Orchestrator) Add(jobs ...Job) {
	o.jobs = append(o.jobs, jobs...)
}

// AddArchiver registers the archiver on a 5-field cron schedule,
// e.g. "0 3 * * *" for 03:00 UTC daily.
func (o *Orchestrator) AddArchiver(a *Archiver, cronExpr string) {
	o.archiver = a
	o.archiveCron = cronExpr
}

// Run starts all job loops as concurrent goroutines using an errgroup. Each
// goroutine respects ctx cancellation. If any goroutine returns a non-context
// error, the errgroup cancels the shared context and Run returns that error.
func (o *Orchestrator) Run(ctx context.Context) error {
	names := make([]string, 0, len(o.jobs)+1)
	for _, j := range o.jobs {
		names = append(names, j.Name)
	}
	if o.archiver != nil {
		names = append(names, "archive")
	}
	o.logger.Info("pipeline orchestrator starting", slog.Any("jobs", names))

	g, ctx := errgroup.WithContext(ctx)

	for _, job := range o.jobs {
		job := job
		g.Go(func() error {
			err := o.runLoop(ctx, job)
			if ctx.Err() != nil {
				return nil // clean shutdown
			}
			return fmt.Errorf("%s: %w", job.Name, err)
		})
	}

	if o.archiver != nil {
		g.Go(func() error {
			err := o.runArchiveCron(ctx)
			if ctx.Err() != nil {
				return nil // clean shutdown
			}
			return fmt.Errorf("archive: %w", err)
		})
	}

	if err := g.Wait(); err != nil {
		o.logger.Error("pipeline orchestrator stopped with error", slog.String("error", err.Error()))
		return err
	}

	o.logger.Info("pipeline orchestrator stopped cleanly")
	return nil
}

// runLoop runs one job on its interval until the context is cancelled.
func (o *Orchestrator) runLoop(ctx context.Context, job Job) error {
	// Run immediately on start.
	o.lockedRun(ctx, job.Name, job.Run)

	ticker := time.NewTicker(job.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			o.logger.Info("job loop stopped", slog.String("job", job.Name))
			return ctx.Err()
		case <-ticker.C:
			o.lockedRun(ctx, job.Name, job.Run)
		}
	}
}

// runArchiveCron triggers the archiver at each cron match until the context
// is cancelled.
func (o *Orchestrator) runArchiveCron(ctx context.Context) error {
	o.logger.Info("archiver cron started", slog.String("cron", o.archiveCron))

	for {
		next, err := nextCronTime(o.archiveCron, time.Now().UTC())
		if err != nil {
			return fmt.Errorf("parsing cron expression %q: %w", o.archiveCron, err)
		}

		o.logger.Info("archiver waiting for next trigger",
			slog.Time("next_run", next),
			slog.Duration("wait", time.Until(next)),
		)

		timer := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			timer.Stop()
			o.logger.Info("archiver cron stopped")
			return ctx.Err()
		case <-timer.C:
			o.lockedRun(ctx, "archive", o.archiver.Run)
		}
	}
}

// lockedRun executes one job run under its distributed lock. A lock held
// elsewhere means another instance is on it, so the run is skipped. On lock
// service errors it fails open: every job run is individually guarded
// (settlement, bonuses, exports), so a duplicate run is safe and a stalled
// job is not.
func (o *Orchestrator) lockedRun(ctx context.Context, name string, run func(context.Context, time.Time) error) {
	unlock, err := o.locks.Acquire(ctx, "job:"+name, jobLockTTL)
	switch {
	case errors.Is(err, domain.ErrLockHeld):
		o.logger.Debug("job lock held elsewhere, skipping", slog.String("job", name))
		return
	case err != nil:
		o.logger.Warn("job lock unavailable, running anyway",
			slog.String("job", name),
			slog.String("error", err.Error()),
		)
	default:
		defer unlock()
	}

	start := time.Now()
	if err := run(ctx, start.UTC()); err != nil {
		if ctx.Err() != nil {
			return
		}
		o.logger.Error("job failed",
			slog.String("job", name),
			slog.Duration("duration", time.Since(start)),
			slog.String("error", err.Error()),
		)
		return
	}
	o.logger.Debug("job complete",
		slog.String("job", name),
		slog.Duration("duration", time.Since(start)),
	)
}
