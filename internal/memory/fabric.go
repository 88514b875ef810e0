// Package memory implements Mira's hybrid memory fabric: recent-turn recall,
// semantic (vector) recall, keyword recall, cross-project fusion, entity
// linking, decay, and rolling/snapshot summarization. It sits on top of
// internal/store for persistence and accepts an Embedder/Summarizer from
// internal/llmadapter without importing it directly, the way the teacher's
// store package accepted an embedding.EmbeddingEngine.
package memory

import (
	"context"
	"database/sql"
	"time"

	"github.com/ConaryLabs/mira/internal/config"
	"github.com/ConaryLabs/mira/internal/logging"
	"github.com/ConaryLabs/mira/internal/store"
)

// Embedder is the narrow capability the fabric needs from the LLM adapter.
// Mirrors the teacher's embedding.EmbeddingEngine shape without requiring a
// dependency on the concrete llmadapter package.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Dimensions() int
}

// Summarizer produces a prose summary of a turn window. The orchestrator's
// LLM adapter implements this; the fabric only needs the one method.
type Summarizer interface {
	Summarize(ctx context.Context, turns []store.Turn) (string, error)
}

// Fabric is the memory subsystem's entry point.
type Fabric struct {
	store      *store.Store
	embedder   Embedder
	summarizer Summarizer
	cfg        config.MemoryConfig
}

func New(st *store.Store, embedder Embedder, summarizer Summarizer, cfg config.MemoryConfig) *Fabric {
	return &Fabric{store: st, embedder: embedder, summarizer: summarizer, cfg: cfg}
}

// RecordTurn appends a turn, extracts entities from it, and - once it has an
// embedder - enqueues it for embedding. Keeps memory's write path in one
// place so recall, decay, and summarization never see a half-written turn.
func (f *Fabric) RecordTurn(ctx context.Context, t *store.Turn) error {
	if err := f.store.AppendTurn(t); err != nil {
		return err
	}
	logging.MemoryDebug("recorded turn %s (session=%s role=%s)", t.ID, t.SessionID, t.Role)

	for _, ent := range ExtractEntities(t.Content) {
		e, err := f.store.UpsertEntity(t.ProjectID, ent.Name, ent.Kind)
		if err != nil {
			logging.Get(logging.CategoryMemory).Warn("upsert entity %q: %v", ent.Name, err)
			continue
		}
		if err := f.store.LinkEntity(e.ID, sql.NullString{String: t.ID, Valid: true}, sql.NullString{}, "mentions"); err != nil {
			logging.Get(logging.CategoryMemory).Warn("link entity %q: %v", ent.Name, err)
		}
	}

	if f.embedder != nil {
		if err := f.store.EnqueueEmbedding("turn", t.ID, t.ProjectID, t.Content); err != nil {
			logging.Get(logging.CategoryMemory).Warn("enqueue embedding for turn %s: %v", t.ID, err)
		}
	}

	return f.maybeSummarize(ctx, t.SessionID)
}

// RecordFact stores a fact and, once it has an embedder, enqueues it for
// embedding so it becomes a candidate for semantic and cross-project
// recall - facts inserted directly via store.InsertFact never surface in
// vec_memory otherwise.
func (f *Fabric) RecordFact(fact *store.MemoryFact) (*store.MemoryFact, error) {
	out, err := f.store.InsertFact(fact)
	if err != nil {
		return nil, err
	}
	if f.embedder != nil && !out.HasEmbedding {
		if err := f.store.EnqueueEmbedding("fact", out.ID, out.ProjectID, out.Statement); err != nil {
			logging.Get(logging.CategoryMemory).Warn("enqueue embedding for fact %s: %v", out.ID, err)
		}
	}
	return out, nil
}

// RunEmbeddingBatch drains up to the scheduler's per-tick limit from the
// pending_embeddings queue. Called by the scheduler's embedding-batch
// worker, not directly by the orchestrator.
func (f *Fabric) RunEmbeddingBatch(ctx context.Context, max int) (int, error) {
	if f.embedder == nil {
		return 0, nil
	}
	pending, err := f.store.DequeueEmbeddings(max)
	if err != nil {
		return 0, err
	}
	done := 0
	for _, p := range pending {
		vec, err := f.embedder.Embed(ctx, p.Text)
		if err != nil {
			logging.Get(logging.CategoryMemory).Warn("embed %s %s: %v", p.Kind, p.RefID, err)
			continue
		}
		switch p.Kind {
		case "turn", "fact":
			if err := f.store.UpsertMemoryVector(p.RefID, p.ProjectID, vec); err != nil {
				logging.Get(logging.CategoryMemory).Warn("store vector for %s %s: %v", p.Kind, p.RefID, err)
				continue
			}
		default:
			if err := f.store.UpsertCodeVector(p.RefID, p.ProjectID, vec); err != nil {
				logging.Get(logging.CategoryMemory).Warn("store vector for symbol %s: %v", p.RefID, err)
				continue
			}
		}
		if err := f.store.CompleteEmbedding(p); err != nil {
			logging.Get(logging.CategoryMemory).Warn("complete embedding %s: %v", p.ID, err)
			continue
		}
		done++
	}
	if done > 0 {
		logging.Memory("embedding batch: %d/%d processed", done, len(pending))
	}
	return done, nil
}

// DecayAndArchive runs the periodic confidence decay pass for a project; the
// scheduler's decay worker calls this on its own period.
func (f *Fabric) DecayAndArchive(projectID string) (int, error) {
	cutoff := time.Now().Add(-f.cfg.DecayHorizon())
	return f.store.DecayFacts(projectID, cutoff, f.cfg.DecayStep, f.cfg.ArchiveConfidenceFloor)
}
