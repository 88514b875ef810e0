package scheduler

import (
	"context"
	"time"

	"github.com/ConaryLabs/mira/internal/config"
	"github.com/ConaryLabs/mira/internal/logging"
	"github.com/ConaryLabs/mira/internal/store"
)

// SessionCleanupJob closes sessions that have had no turn in
// SessionIdleHours - spec.md §4.5 gives this worker no skip condition, so
// it always scans.
func SessionCleanupJob(st *store.Store, cfg config.SchedulerConfig) Job {
	return Job{
		Name:   "session_cleanup",
		Period: cfg.SessionCleanupPeriod,
		Run: func(ctx context.Context) error {
			cutoff := time.Now().Add(-time.Duration(cfg.SessionIdleHours) * time.Hour)
			idle, err := st.IdleSessionsBefore(cutoff)
			if err != nil {
				return err
			}
			for _, sess := range idle {
				if err := st.EndSession(sess.ID); err != nil {
					logging.Get(logging.CategoryScheduler).Warn("end session %s: %v", sess.ID, err)
					continue
				}
			}
			if len(idle) > 0 {
				logging.Scheduler("session_cleanup: closed %d idle sessions", len(idle))
			}
			return nil
		},
	}
}
