package store

import (
	"time"

	"github.com/ConaryLabs/mira/internal/ids"
)

type BudgetEntry struct {
	ID           string
	ProjectID    string
	Provider     string
	Model        string
	CostUSD      float64
	InputTokens  int
	OutputTokens int
	RecordedAt   time.Time
}

func (s *Store) RecordSpend(e *BudgetEntry) error {
	if e.ID == "" {
		e.ID = ids.New().String()
	}
	_, err := s.db.Exec(
		`INSERT INTO budget_entries(id, project_id, provider, model, cost_usd, input_tokens, output_tokens) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.ProjectID, e.Provider, e.Model, e.CostUSD, e.InputTokens, e.OutputTokens,
	)
	return err
}

// SpendSince sums cost_usd recorded at or after since, across all projects -
// the budget guard checks daily and monthly totals against a single
// instance-wide cap (spec.md §9: non-goal of per-project budgets).
func (s *Store) SpendSince(since time.Time) (float64, error) {
	var total float64
	err := s.db.QueryRow(`SELECT COALESCE(SUM(cost_usd), 0) FROM budget_entries WHERE recorded_at >= ?`, since).Scan(&total)
	return total, err
}
