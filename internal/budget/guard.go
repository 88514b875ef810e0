// Package budget implements llmadapter.BudgetGuard: a daily and monthly USD
// cap on LLM spend, checked before every chargeable call and recorded after
// it completes. Spend only ever increases within a period and resets at UTC
// day/month boundaries (spec.md §3's budget monotonicity invariant) - there
// is no decrement path, matching the teacher's own usage tracker, which
// only ever accumulates.
package budget

import (
	"context"
	"fmt"
	"time"

	"github.com/ConaryLabs/mira/internal/config"
	"github.com/ConaryLabs/mira/internal/logging"
	"github.com/ConaryLabs/mira/internal/store"
)

// Guard implements llmadapter.BudgetGuard against the instance-wide
// persisted spend ledger.
type Guard struct {
	store *store.Store
	cfg   config.BudgetConfig
}

func New(st *store.Store, cfg config.BudgetConfig) *Guard {
	return &Guard{store: st, cfg: cfg}
}

// CheckAllowed reports whether a call estimated to cost estimatedCostUSD
// would push either the daily or monthly total over its cap. Cheap calls
// (embeddings, cached answers) are expected to skip this check entirely per
// spec.md §4.7 and go straight to RecordSpend.
func (g *Guard) CheckAllowed(ctx context.Context, estimatedCostUSD float64) error {
	now := time.Now().UTC()

	daily, err := g.store.SpendSince(startOfDay(now))
	if err != nil {
		return fmt.Errorf("read daily spend: %w", err)
	}
	if daily+estimatedCostUSD > g.cfg.DailyCapUSD {
		return fmt.Errorf("daily budget cap of $%.2f would be exceeded (spent $%.2f, call estimated at $%.2f)", g.cfg.DailyCapUSD, daily, estimatedCostUSD)
	}

	monthly, err := g.store.SpendSince(startOfMonth(now))
	if err != nil {
		return fmt.Errorf("read monthly spend: %w", err)
	}
	if monthly+estimatedCostUSD > g.cfg.MonthlyCapUSD {
		return fmt.Errorf("monthly budget cap of $%.2f would be exceeded (spent $%.2f, call estimated at $%.2f)", g.cfg.MonthlyCapUSD, monthly, estimatedCostUSD)
	}

	return nil
}

// instanceProjectID is the project_id budget entries are recorded under.
// llmadapter.BudgetGuard's RecordSpend has no project in scope - spend is
// tracked instance-wide, not per project (spec.md §9 non-goal) - so entries
// use this sentinel rather than leaving the NOT NULL column empty.
const instanceProjectID = "_instance"

// RecordSpend persists an LLM call's actual cost and token counts. The
// project it's billed against isn't known at the llmadapter layer, so spend
// is tracked instance-wide (spec.md §9: no per-project budgets).
func (g *Guard) RecordSpend(ctx context.Context, provider, model string, costUSD float64, inputTokens, outputTokens int) error {
	err := g.store.RecordSpend(&store.BudgetEntry{
		ProjectID:    instanceProjectID,
		Provider:     provider,
		Model:        model,
		CostUSD:      costUSD,
		InputTokens:  inputTokens,
		OutputTokens: outputTokens,
	})
	if err != nil {
		return fmt.Errorf("record spend: %w", err)
	}
	logging.BudgetDebug("recorded $%.4f spend on %s/%s (%d in, %d out tokens)", costUSD, provider, model, inputTokens, outputTokens)
	return nil
}

// Status reports the current daily and monthly totals against their caps,
// for a status command or UI to surface without tripping CheckAllowed.
type Status struct {
	DailySpentUSD   float64
	DailyCapUSD     float64
	MonthlySpentUSD float64
	MonthlyCapUSD   float64
}

func (g *Guard) Status() (Status, error) {
	now := time.Now().UTC()

	daily, err := g.store.SpendSince(startOfDay(now))
	if err != nil {
		return Status{}, fmt.Errorf("read daily spend: %w", err)
	}
	monthly, err := g.store.SpendSince(startOfMonth(now))
	if err != nil {
		return Status{}, fmt.Errorf("read monthly spend: %w", err)
	}

	return Status{
		DailySpentUSD:   daily,
		DailyCapUSD:     g.cfg.DailyCapUSD,
		MonthlySpentUSD: monthly,
		MonthlyCapUSD:   g.cfg.MonthlyCapUSD,
	}, nil
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func startOfMonth(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}
