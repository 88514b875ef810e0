package scheduler

import (
	"context"

	"github.com/ConaryLabs/mira/internal/config"
	"github.com/ConaryLabs/mira/internal/logging"
	"github.com/ConaryLabs/mira/internal/memory"
	"github.com/ConaryLabs/mira/internal/store"
)

// DecayJob runs the confidence-decay-and-archive pass for every known
// project. spec.md §4.5 lists this worker's skip condition as "none" - it
// always runs, archiving what's fallen below the confidence floor along
// the way (fabric.DecayAndArchive does both in one pass).
func DecayJob(st *store.Store, fabric *memory.Fabric, cfg config.SchedulerConfig) Job {
	return Job{
		Name:   "decay",
		Period: cfg.DecayPeriod,
		Run: func(ctx context.Context) error {
			projects, err := st.ListProjects()
			if err != nil {
				return err
			}
			total := 0
			for _, p := range projects {
				n, err := fabric.DecayAndArchive(p.ID)
				if err != nil {
					logging.Get(logging.CategoryScheduler).Warn("decay project %s: %v", p.ID, err)
					continue
				}
				total += n
			}
			if total > 0 {
				logging.Scheduler("decay: archived %d facts across %d projects", total, len(projects))
			}
			return nil
		},
	}
}
