package orchestrator

import (
	"github.com/ConaryLabs/mira/internal/config"
	"github.com/ConaryLabs/mira/internal/store"
)

// ResetKind is the chain-reset hysteresis's decision for a turn.
type ResetKind string

const (
	ResetNone     ResetKind = "none"
	ResetCooldown ResetKind = "cooldown"
	ResetSoft     ResetKind = "soft"
	ResetHard     ResetKind = "hard"
)

// ResetInputs are the signals the hysteresis decides on: the input-token
// count and cache-hit percentage the provider actually reported after the
// previous turn's call, per spec.md §4.1.1 - not an estimate of the turn
// about to be sent, since that hasn't been served by the provider yet.
type ResetInputs struct {
	InputTokens int
	CachePct    int
}

// DecideReset runs the hysteresis in spec order: an active cooldown wins
// outright (even over a hard ceiling breach), then a hard ceiling breach
// resets, then sustained low cache hit rate above the soft threshold resets
// after HysteresisTurns consecutive offending turns, and anything else is a
// no-op turn that just advances the counters.
//
// cs is mutated in place to reflect the new counter state; the caller
// persists it via store.SaveChainState after the turn completes.
func DecideReset(cs *store.ChainState, in ResetInputs, cfg config.OrchestratorConfig) ResetKind {
	cs.LastTokenEstimate = in.InputTokens

	if cs.CooldownRemaining > 0 {
		cs.CooldownRemaining--
		cs.LastResetKind = string(ResetCooldown)
		return ResetCooldown
	}

	if in.InputTokens > cfg.HardCeiling {
		cs.ConsecutiveOver = 0
		cs.CooldownRemaining = cfg.CooldownTurns
		cs.LastResetKind = string(ResetHard)
		return ResetHard
	}

	if in.InputTokens > cfg.TokenThreshold && in.CachePct < cfg.MinCachePct {
		cs.ConsecutiveOver++
		if cs.ConsecutiveOver >= cfg.HysteresisTurns {
			cs.ConsecutiveOver = 0
			cs.CooldownRemaining = cfg.CooldownTurns
			cs.LastResetKind = string(ResetSoft)
			return ResetSoft
		}
		cs.LastResetKind = string(ResetNone)
		return ResetNone
	}

	cs.ConsecutiveOver = 0
	cs.LastResetKind = string(ResetNone)
	return ResetNone
}
