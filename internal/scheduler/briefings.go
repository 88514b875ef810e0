package scheduler

import (
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/ConaryLabs/mira/internal/config"
	"github.com/ConaryLabs/mira/internal/llmadapter"
	"github.com/ConaryLabs/mira/internal/logging"
	"github.com/ConaryLabs/mira/internal/memory"
	"github.com/ConaryLabs/mira/internal/store"
)

const briefingLastHeadPrefix = "briefing_last_head_"

// BriefingsJob diffs each project's current HEAD commit against the HEAD it
// was last briefed from (a project's first run only records its HEAD) and
// stores a short summary of what changed, skipping projects with no git
// activity since the last run.
func BriefingsJob(st *store.Store, fabric *memory.Fabric, provider llmadapter.Provider, cfg config.SchedulerConfig) Job {
	return Job{
		Name:   "briefings",
		Period: cfg.BriefingsPeriod,
		Run: func(ctx context.Context) error {
			projects, err := st.ListProjects()
			if err != nil {
				return err
			}

			briefed := 0
			for _, project := range projects {
				head, err := currentHead(ctx, project.RootPath)
				if err != nil || head == "" {
					continue
				}

				lastHead, ok, err := st.GetState(briefingLastHeadPrefix + project.ID)
				if err != nil {
					logging.Get(logging.CategoryScheduler).Warn("briefings: load last head for %s: %v", project.ID, err)
					continue
				}
				if !ok {
					if err := st.SetState(briefingLastHeadPrefix+project.ID, head); err != nil {
						logging.Get(logging.CategoryScheduler).Warn("briefings: seed head for %s: %v", project.ID, err)
					}
					continue
				}
				if lastHead == head {
					continue
				}

				diff, err := diffSince(ctx, project.RootPath, lastHead, head)
				if err != nil || strings.TrimSpace(diff) == "" {
					continue
				}

				summary, err := summarizeDiff(ctx, provider, diff)
				if err != nil {
					logging.Get(logging.CategoryScheduler).Warn("briefings: summarize for %s: %v", project.ID, err)
					continue
				}
				if summary == "" {
					continue
				}

				if _, err := fabric.RecordFact(&store.MemoryFact{
					ProjectID:  project.ID,
					Statement:  summary,
					Confidence: 0.8,
					FactType:   store.FactTypeContext,
				}); err != nil {
					logging.Get(logging.CategoryScheduler).Warn("briefings: store summary for %s: %v", project.ID, err)
					continue
				}

				if err := st.SetState(briefingLastHeadPrefix+project.ID, head); err != nil {
					logging.Get(logging.CategoryScheduler).Warn("briefings: advance head for %s: %v", project.ID, err)
					continue
				}
				briefed++
			}

			if briefed > 0 {
				logging.Scheduler("briefings: stored %d project briefings", briefed)
			}
			return nil
		},
	}
}

func currentHead(ctx context.Context, root string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", "rev-parse", "HEAD")
	cmd.Dir = root
	out, err := cmd.Output()
	if err != nil {
		if _, ok := err.(*exec.ExitError); ok {
			return "", nil
		}
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}

func diffSince(ctx context.Context, root, from, to string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", "diff", "--stat", from, to)
	cmd.Dir = root
	out, err := cmd.Output()
	if err != nil {
		if _, ok := err.(*exec.ExitError); ok {
			return "", nil
		}
		return "", err
	}
	return string(out), nil
}

func summarizeDiff(ctx context.Context, provider llmadapter.Provider, diff string) (string, error) {
	resp, err := provider.Chat(ctx, llmadapter.ChatRequest{
		Messages: []llmadapter.Message{
			{Role: llmadapter.RoleSystem, Content: "Summarize this diffstat as one short sentence describing what changed in the project."},
			{Role: llmadapter.RoleUser, Content: diff},
		},
	})
	if err != nil {
		return "", fmt.Errorf("chat: %w", err)
	}
	return strings.TrimSpace(resp.Content), nil
}
