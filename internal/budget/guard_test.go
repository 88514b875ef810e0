package budget

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ConaryLabs/mira/internal/config"
	"github.com/ConaryLabs/mira/internal/store"
)

func newTestGuard(t *testing.T, cfg config.BudgetConfig) (*Guard, *store.Store) {
	t.Helper()
	st, err := store.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return New(st, cfg), st
}

func TestCheckAllowedWithinCaps(t *testing.T) {
	guard, _ := newTestGuard(t, config.BudgetConfig{DailyCapUSD: 10, MonthlyCapUSD: 100})
	require.NoError(t, guard.CheckAllowed(context.Background(), 1.0))
}

func TestCheckAllowedRejectsOverDailyCap(t *testing.T) {
	guard, _ := newTestGuard(t, config.BudgetConfig{DailyCapUSD: 1, MonthlyCapUSD: 100})
	require.NoError(t, guard.RecordSpend(context.Background(), "deepseek", "chat", 0.9, 1000, 200))

	err := guard.CheckAllowed(context.Background(), 0.5)
	require.Error(t, err)
	require.Contains(t, err.Error(), "daily budget cap")
}

func TestCheckAllowedRejectsOverMonthlyCap(t *testing.T) {
	guard, _ := newTestGuard(t, config.BudgetConfig{DailyCapUSD: 1000, MonthlyCapUSD: 5})
	require.NoError(t, guard.RecordSpend(context.Background(), "deepseek", "chat", 4.9, 1000, 200))

	err := guard.CheckAllowed(context.Background(), 0.5)
	require.Error(t, err)
	require.Contains(t, err.Error(), "monthly budget cap")
}

func TestRecordSpendAccumulates(t *testing.T) {
	guard, _ := newTestGuard(t, config.BudgetConfig{DailyCapUSD: 100, MonthlyCapUSD: 1000})

	require.NoError(t, guard.RecordSpend(context.Background(), "anthropic", "sonnet", 0.10, 500, 100))
	require.NoError(t, guard.RecordSpend(context.Background(), "anthropic", "sonnet", 0.20, 500, 100))

	status, err := guard.Status()
	require.NoError(t, err)
	require.InDelta(t, 0.30, status.DailySpentUSD, 0.0001)
	require.InDelta(t, 0.30, status.MonthlySpentUSD, 0.0001)
	require.Equal(t, 100.0, status.DailyCapUSD)
	require.Equal(t, 1000.0, status.MonthlyCapUSD)
}

func TestCheckAllowedExactlyAtCapIsNotRejected(t *testing.T) {
	guard, _ := newTestGuard(t, config.BudgetConfig{DailyCapUSD: 1, MonthlyCapUSD: 100})
	require.NoError(t, guard.CheckAllowed(context.Background(), 1.0))
}
