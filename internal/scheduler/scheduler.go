// Package scheduler runs the background cognition workers: periodic tasks
// that keep the memory fabric's embedding queue drained, watch code health,
// pair diffs with their outcomes, ponder on recent activity, draft briefings,
// close idle sessions, and decay stale facts. Each worker owns its own
// period and runs each tick under the scheduler's shared WorkerTimeout,
// following the ticker/stop-channel shape the teacher's
// reflection worker uses for its own periodic embedding backfill.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/ConaryLabs/mira/internal/config"
	"github.com/ConaryLabs/mira/internal/logging"
)

// Job is one named periodic unit of work. Run receives a context already
// scoped to the worker's timeout; returning an error just logs a warning -
// a failed tick never stops the ticker.
type Job struct {
	Name   string
	Period time.Duration
	Run    func(ctx context.Context) error
}

// Scheduler fans a set of Jobs out into their own goroutines and tears them
// all down together on Stop.
type Scheduler struct {
	jobs    []Job
	timeout time.Duration

	stopCh chan struct{}
	wg     sync.WaitGroup
}

func New(cfg config.SchedulerConfig) *Scheduler {
	return &Scheduler{
		timeout: cfg.WorkerTimeout,
		stopCh:  make(chan struct{}),
	}
}

// Register adds a job. Call before Start; jobs added after Start never run.
func (s *Scheduler) Register(j Job) {
	s.jobs = append(s.jobs, j)
}

// Start launches every registered job in its own goroutine, each running
// its first tick after one full period (not immediately) so a daemon
// restart doesn't thundering-herd every worker at once.
func (s *Scheduler) Start(ctx context.Context) {
	for _, j := range s.jobs {
		j := j
		s.wg.Add(1)
		go s.runJob(ctx, j)
	}
	logging.Scheduler("started %d background workers", len(s.jobs))
}

func (s *Scheduler) runJob(ctx context.Context, j Job) {
	defer s.wg.Done()

	period := j.Period
	if period <= 0 {
		period = time.Minute
	}
	ticker := time.NewTicker(period)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.tick(ctx, j)
		}
	}
}

func (s *Scheduler) tick(ctx context.Context, j Job) {
	timeout := s.timeout
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	tctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	if err := j.Run(tctx); err != nil {
		logging.Get(logging.CategoryScheduler).Warn("%s: %v", j.Name, err)
		return
	}
	logging.SchedulerDebug("%s completed in %s", j.Name, time.Since(start))
}

// Stop signals every job goroutine to exit and waits for them to drain.
func (s *Scheduler) Stop() {
	close(s.stopCh)
	s.wg.Wait()
}
