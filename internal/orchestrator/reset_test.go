package orchestrator

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ConaryLabs/mira/internal/config"
	"github.com/ConaryLabs/mira/internal/store"
)

func testCfg() config.OrchestratorConfig {
	return config.OrchestratorConfig{
		TokenThreshold:  1000,
		HardCeiling:     2000,
		MinCachePct:     30,
		HysteresisTurns: 3,
		CooldownTurns:   2,
	}
}

func TestDecideResetHardCeilingAlwaysResets(t *testing.T) {
	cs := &store.ChainState{}
	kind := DecideReset(cs, ResetInputs{InputTokens: 5000, CachePct: 90}, testCfg())
	require.Equal(t, ResetHard, kind)
	require.Equal(t, 2, cs.CooldownRemaining)
}

func TestDecideResetCooldownWinsOverEverythingElse(t *testing.T) {
	cs := &store.ChainState{CooldownRemaining: 2}
	kind := DecideReset(cs, ResetInputs{InputTokens: 5000, CachePct: 10}, testCfg())
	require.Equal(t, ResetCooldown, kind)
	require.Equal(t, 1, cs.CooldownRemaining)
}

func TestDecideResetSoftResetAfterHysteresisTurns(t *testing.T) {
	cs := &store.ChainState{}
	cfg := testCfg()

	kind := DecideReset(cs, ResetInputs{InputTokens: 1500, CachePct: 10}, cfg)
	require.Equal(t, ResetNone, kind)
	require.Equal(t, 1, cs.ConsecutiveOver)

	kind = DecideReset(cs, ResetInputs{InputTokens: 1500, CachePct: 10}, cfg)
	require.Equal(t, ResetNone, kind)
	require.Equal(t, 2, cs.ConsecutiveOver)

	kind = DecideReset(cs, ResetInputs{InputTokens: 1500, CachePct: 10}, cfg)
	require.Equal(t, ResetSoft, kind)
	require.Equal(t, 0, cs.ConsecutiveOver)
	require.Equal(t, cfg.CooldownTurns, cs.CooldownRemaining)
}

func TestDecideResetHighCachePctAvoidsSoftReset(t *testing.T) {
	cs := &store.ChainState{}
	cfg := testCfg()
	for i := 0; i < 5; i++ {
		kind := DecideReset(cs, ResetInputs{InputTokens: 1500, CachePct: 80}, cfg)
		require.Equal(t, ResetNone, kind)
	}
	require.Equal(t, 0, cs.ConsecutiveOver)
}

func TestDecideResetLowTrafficNeverResets(t *testing.T) {
	cs := &store.ChainState{}
	cfg := testCfg()
	kind := DecideReset(cs, ResetInputs{InputTokens: 100, CachePct: 10}, cfg)
	require.Equal(t, ResetNone, kind)
	require.Equal(t, 0, cs.ConsecutiveOver)
}
