package config

// OrchestratorConfig configures the turn orchestrator's chain-reset
// hysteresis. Names and defaults are spelled out here because spec.md §9
// notes the originals were referenced by name but never defined in one
// place - this is that one place.
type OrchestratorConfig struct {
	TokenThreshold   int `yaml:"reset_token_threshold"`
	HardCeiling      int `yaml:"reset_hard_ceiling"`
	MinCachePct      int `yaml:"reset_min_cache_pct"`
	HysteresisTurns  int `yaml:"reset_hysteresis_turns"`
	CooldownTurns    int `yaml:"reset_cooldown_turns"`
	TurnTimeoutSecs  int `yaml:"turn_timeout_secs"`
}

const (
	DefaultTokenThreshold  = 100_000
	DefaultHardCeiling     = 180_000
	DefaultMinCachePct     = 30
	DefaultHysteresisTurns = 3
	DefaultCooldownTurns   = 2
)

func loadOrchestratorConfig() OrchestratorConfig {
	return OrchestratorConfig{
		TokenThreshold:  getenvInt("MIRA_RESET_TOKEN_THRESHOLD", DefaultTokenThreshold),
		HardCeiling:     getenvInt("MIRA_RESET_HARD_CEILING", DefaultHardCeiling),
		MinCachePct:     getenvInt("MIRA_RESET_MIN_CACHE_PCT", DefaultMinCachePct),
		HysteresisTurns: getenvInt("MIRA_RESET_HYSTERESIS_TURNS", DefaultHysteresisTurns),
		CooldownTurns:   getenvInt("MIRA_RESET_COOLDOWN_TURNS", DefaultCooldownTurns),
		TurnTimeoutSecs: getenvInt("MIRA_TURN_TIMEOUT_SECS", 300),
	}
}
