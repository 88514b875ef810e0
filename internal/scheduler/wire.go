package scheduler

import (
	"github.com/ConaryLabs/mira/internal/codeintel"
	"github.com/ConaryLabs/mira/internal/config"
	"github.com/ConaryLabs/mira/internal/llmadapter"
	"github.com/ConaryLabs/mira/internal/memory"
	"github.com/ConaryLabs/mira/internal/store"
)

// NewDefault builds a Scheduler with all seven background cognition workers
// registered, wired to the daemon's shared store, memory fabric, code
// intelligence lookup, and LLM provider.
func NewDefault(st *store.Store, fabric *memory.Fabric, lookup *codeintel.Lookup, provider llmadapter.Provider, cfg config.SchedulerConfig) *Scheduler {
	s := New(cfg)
	s.Register(EmbeddingBatchJob(fabric, cfg))
	s.Register(CodeHealthJob(st, lookup, cfg))
	s.Register(OutcomeScannerJob(st, cfg))
	s.Register(PonderingJob(st, fabric, provider, cfg))
	s.Register(BriefingsJob(st, fabric, provider, cfg))
	s.Register(SessionCleanupJob(st, cfg))
	s.Register(DecayJob(st, fabric, cfg))
	return s
}
