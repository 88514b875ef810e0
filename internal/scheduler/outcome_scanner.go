package scheduler

import (
	"context"
	"os/exec"
	"strings"
	"time"

	"github.com/ConaryLabs/mira/internal/config"
	"github.com/ConaryLabs/mira/internal/logging"
	"github.com/ConaryLabs/mira/internal/store"
)

// OutcomeScannerJob records outcomes for the completed diff operations that
// UnscannedDiffOperations returns, which are only those completed inside
// cfg.OutcomeWindow. If any commit subject in the project's git log for the
// window starts with "revert" or contains "fixup!" or "hotfix", every such
// diff is recorded as reverted; changed files are not compared and there is
// no separate "fixed" outcome. Otherwise a diff is left without an outcome.
// "accepted" is recorded only for a diff whose completion passes the window
// edge between the query and the check; a diff that ages out between scans
// is not returned again and so never gets an outcome.
func OutcomeScannerJob(st *store.Store, cfg config.SchedulerConfig) Job {
	return Job{
		Name:   "outcome_scanner",
		Period: cfg.OutcomeScanPeriod,
		Run: func(ctx context.Context) error {
			projects, err := st.ListProjects()
			if err != nil {
				return err
			}

			since := time.Now().Add(-cfg.OutcomeWindow)
			scanned, flagged := 0, 0
			for _, project := range projects {
				ops, err := st.UnscannedDiffOperations(project.ID, since)
				if err != nil {
					logging.Get(logging.CategoryScheduler).Warn("outcome_scanner: list diffs for %s: %v", project.ID, err)
					continue
				}
				if len(ops) == 0 {
					continue
				}

				log, err := recentCommitMessages(ctx, project.RootPath, cfg.OutcomeWindow)
				if err != nil {
					logging.Get(logging.CategoryScheduler).Warn("outcome_scanner: git log for %s: %v", project.ID, err)
					continue
				}

				for _, op := range ops {
					outcome := "pending"
					if !op.CompletedAt.Valid || time.Since(op.CompletedAt.Time) >= cfg.OutcomeWindow {
						outcome = "accepted"
					} else if hasRevertOrFixup(log) {
						outcome = "reverted"
						if err := st.RecordDiffPattern(project.ID, revertPatternFromLog(log)); err != nil {
							logging.Get(logging.CategoryScheduler).Warn("outcome_scanner: record pattern for %s: %v", project.ID, err)
						}
						flagged++
					}
					if outcome == "pending" {
						continue
					}
					if err := st.RecordDiffOutcome(op.ID, project.ID, outcome); err != nil {
						logging.Get(logging.CategoryScheduler).Warn("outcome_scanner: record outcome for %s: %v", op.ID, err)
						continue
					}
					scanned++
				}
			}

			if scanned > 0 {
				logging.Scheduler("outcome_scanner: recorded %d outcomes (%d flagged as reverted)", scanned, flagged)
			}
			return nil
		},
	}
}

// recentCommitMessages returns one-line commit subjects from the last
// window of history in root, killed on context cancellation.
func recentCommitMessages(ctx context.Context, root string, window time.Duration) ([]string, error) {
	since := "--since=" + time.Now().Add(-window).Format("2006-01-02")
	cmd := exec.CommandContext(ctx, "git", "log", since, "--pretty=format:%s")
	cmd.Dir = root
	out, err := cmd.Output()
	if err != nil {
		if _, ok := err.(*exec.ExitError); ok {
			return nil, nil
		}
		return nil, err
	}
	if len(out) == 0 {
		return nil, nil
	}
	return strings.Split(string(out), "\n"), nil
}

func hasRevertOrFixup(log []string) bool {
	for _, msg := range log {
		lower := strings.ToLower(msg)
		if strings.HasPrefix(lower, "revert") || strings.Contains(lower, "fixup!") || strings.Contains(lower, "hotfix") {
			return true
		}
	}
	return false
}

func revertPatternFromLog(log []string) string {
	for _, msg := range log {
		lower := strings.ToLower(msg)
		if strings.HasPrefix(lower, "revert") || strings.Contains(lower, "fixup!") || strings.Contains(lower, "hotfix") {
			return msg
		}
	}
	return "unknown"
}
