package config

// BudgetConfig configures daily/monthly cost caps enforced by the budget
// guard before any chargeable LLM call. Currency is USD only (spec.md §9).
type BudgetConfig struct {
	DailyCapUSD   float64 `yaml:"daily_cap_usd"`
	MonthlyCapUSD float64 `yaml:"monthly_cap_usd"`
}

func loadBudgetConfig() BudgetConfig {
	return BudgetConfig{
		DailyCapUSD:   getenvFloat("MIRA_BUDGET_DAILY_CAP_USD", 10.0),
		MonthlyCapUSD: getenvFloat("MIRA_BUDGET_MONTHLY_CAP_USD", 150.0),
	}
}
