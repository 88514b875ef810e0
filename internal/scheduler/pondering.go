package scheduler

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ConaryLabs/mira/internal/config"
	"github.com/ConaryLabs/mira/internal/llmadapter"
	"github.com/ConaryLabs/mira/internal/logging"
	"github.com/ConaryLabs/mira/internal/memory"
	"github.com/ConaryLabs/mira/internal/store"
)

const ponderingLastRunPrefix = "last_pondering_"

// PonderingJob generates one cross-cutting insight per active project from
// its recent facts, skipping a project still inside PonderingCooldown or
// with too little signal to ponder on. The cooldown only advances after the
// insight is durably stored, so a storage failure lets the next tick retry
// rather than silently losing the cycle - spec.md §4.5's explicit rule.
func PonderingJob(st *store.Store, fabric *memory.Fabric, provider llmadapter.Provider, cfg config.SchedulerConfig) Job {
	return Job{
		Name:   "pondering",
		Period: cfg.PonderingPeriod,
		Run: func(ctx context.Context) error {
			projects, err := st.ListProjects()
			if err != nil {
				return err
			}

			pondered := 0
			for _, project := range projects {
				if !ponderingCooldownElapsed(st, project.ID, cfg.PonderingCooldown) {
					continue
				}

				facts, err := st.ActiveFacts(project.ID, 20)
				if err != nil {
					logging.Get(logging.CategoryScheduler).Warn("pondering: load facts for %s: %v", project.ID, err)
					continue
				}
				if len(facts) < 3 {
					continue
				}

				insight, err := generateInsight(ctx, provider, facts)
				if err != nil {
					logging.Get(logging.CategoryScheduler).Warn("pondering: generate for %s: %v", project.ID, err)
					continue
				}
				if insight == "" {
					continue
				}

				if _, err := fabric.RecordFact(&store.MemoryFact{
					ProjectID:  project.ID,
					Statement:  insight,
					Confidence: 0.6,
					FactType:   store.FactTypePattern,
				}); err != nil {
					logging.Get(logging.CategoryScheduler).Warn("pondering: store insight for %s: %v", project.ID, err)
					continue
				}

				if err := st.SetState(ponderingLastRunPrefix+project.ID, strconv.FormatInt(time.Now().Unix(), 10)); err != nil {
					logging.Get(logging.CategoryScheduler).Warn("pondering: advance cooldown for %s: %v", project.ID, err)
					continue
				}
				pondered++
			}

			if pondered > 0 {
				logging.Scheduler("pondering: stored insights for %d projects", pondered)
			}
			return nil
		},
	}
}

func ponderingCooldownElapsed(st *store.Store, projectID string, cooldown time.Duration) bool {
	v, ok, err := st.GetState(ponderingLastRunPrefix + projectID)
	if err != nil || !ok {
		return true
	}
	unixSecs, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return true
	}
	return time.Since(time.Unix(unixSecs, 0)) >= cooldown
}

func generateInsight(ctx context.Context, provider llmadapter.Provider, facts []store.MemoryFact) (string, error) {
	var sb strings.Builder
	for _, f := range facts {
		sb.WriteString("- ")
		sb.WriteString(f.Statement)
		sb.WriteString("\n")
	}

	resp, err := provider.Chat(ctx, llmadapter.ChatRequest{
		Messages: []llmadapter.Message{
			{Role: llmadapter.RoleSystem, Content: "You are reviewing a project's accumulated facts to surface one non-obvious pattern or risk worth remembering. Respond with a single sentence, or an empty response if nothing stands out."},
			{Role: llmadapter.RoleUser, Content: sb.String()},
		},
	})
	if err != nil {
		return "", fmt.Errorf("chat: %w", err)
	}
	return strings.TrimSpace(resp.Content), nil
}
