package scheduler

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"time"

	"github.com/ConaryLabs/mira/internal/codeintel"
	"github.com/ConaryLabs/mira/internal/config"
	"github.com/ConaryLabs/mira/internal/logging"
	"github.com/ConaryLabs/mira/internal/store"
)

const codeHealthCursorKey = "code_health_cursor"
const codeHealthLastRunPrefix = "code_health_last_run_"

// CodeHealthJob scans one project per tick, round-robin, reporting unused
// functions and compiler warnings. spec.md §4.5 bounds this worker to one
// project per tick and a "re-runs at least daily" floor per project, tracked
// here via server_state so a restart doesn't lose the cursor or the
// per-project cooldown.
func CodeHealthJob(st *store.Store, lookup *codeintel.Lookup, cfg config.SchedulerConfig) Job {
	return Job{
		Name:   "code_health",
		Period: cfg.CodeHealthPeriod,
		Run: func(ctx context.Context) error {
			projects, err := st.ListProjects()
			if err != nil {
				return err
			}
			if len(projects) == 0 {
				return nil
			}

			idx := nextCursor(st, codeHealthCursorKey, len(projects))
			project := projects[idx]

			if !dueDaily(st, codeHealthLastRunPrefix+project.ID) {
				logging.SchedulerDebug("code_health: project %s not due yet, skipping", project.ID)
				return nil
			}

			unused, err := lookup.UnusedFunctions(project.ID)
			if err != nil {
				logging.Get(logging.CategoryScheduler).Warn("code_health: unused-function scan for %s: %v", project.ID, err)
			}

			warnings, err := runGoVet(ctx, project.RootPath)
			if err != nil {
				logging.Get(logging.CategoryScheduler).Warn("code_health: go vet for %s: %v", project.ID, err)
			}

			logging.Scheduler("code_health: project %s - %d unused functions, %d vet warnings", project.ID, len(unused), warnings)

			return st.SetState(codeHealthLastRunPrefix+project.ID, strconv.FormatInt(time.Now().Unix(), 10))
		},
	}
}

// runGoVet shells out to `go vet ./...` in root, killed on context
// cancellation, and returns the number of warning lines it printed.
func runGoVet(ctx context.Context, root string) (int, error) {
	cmd := exec.CommandContext(ctx, "go", "vet", "./...")
	cmd.Dir = root
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	err := cmd.Run()
	if err == nil {
		return 0, nil
	}
	if _, ok := err.(*exec.ExitError); !ok {
		return 0, fmt.Errorf("run go vet: %w", err)
	}
	return bytes.Count(stderr.Bytes(), []byte("\n")), nil
}

// nextCursor advances a round-robin index persisted in server_state,
// wrapping modulo n.
func nextCursor(st *store.Store, key string, n int) int {
	cur := 0
	if v, ok, err := st.GetState(key); err == nil && ok {
		if parsed, perr := strconv.Atoi(v); perr == nil {
			cur = parsed
		}
	}
	next := (cur + 1) % n
	_ = st.SetState(key, strconv.Itoa(next))
	return cur % n
}

// dueDaily reports whether at least 24h has passed since the last recorded
// run under key, treating a missing key as due.
func dueDaily(st *store.Store, key string) bool {
	v, ok, err := st.GetState(key)
	if err != nil || !ok {
		return true
	}
	unixSecs, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return true
	}
	return time.Since(time.Unix(unixSecs, 0)) >= 24*time.Hour
}
