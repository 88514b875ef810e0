package codeintel

import (
	"context"
	"fmt"

	"github.com/ConaryLabs/mira/internal/store"
)

// Embedder is the narrow capability lookup needs to run a semantic query -
// same shape as memory.Embedder, redeclared here to avoid importing the
// memory package for one method.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Lookup answers keyword and semantic queries over a project's indexed code,
// and surfaces unused functions for the code-health worker.
type Lookup struct {
	store    *store.Store
	embedder Embedder
}

func NewLookup(st *store.Store, embedder Embedder) *Lookup {
	return &Lookup{store: st, embedder: embedder}
}

// SymbolHit pairs a matched symbol with the leg that found it.
type SymbolHit struct {
	Symbol store.CodeSymbol
	Source string // "keyword" | "semantic"
}

// Search runs the keyword leg always, and the semantic leg when an embedder
// is configured and the store has a vector index loaded.
func (l *Lookup) Search(ctx context.Context, projectID, query string, limit int) ([]SymbolHit, error) {
	var hits []SymbolHit

	keywordMatches, err := l.store.KeywordSearchCode(projectID, query, limit)
	if err != nil {
		return nil, fmt.Errorf("keyword search: %w", err)
	}
	for _, s := range keywordMatches {
		hits = append(hits, SymbolHit{Symbol: s, Source: "keyword"})
	}

	if l.embedder == nil || !l.store.HasVectorIndex() {
		return hits, nil
	}

	vec, err := l.embedder.Embed(ctx, query)
	if err != nil {
		return hits, fmt.Errorf("embed query: %w", err)
	}
	matches, err := l.store.SearchCodeVectors(projectID, vec, limit)
	if err != nil {
		return hits, fmt.Errorf("vector search: %w", err)
	}

	seen := make(map[string]bool, len(hits))
	for _, h := range hits {
		seen[h.Symbol.ID] = true
	}
	for _, m := range matches {
		if seen[m.RefID] {
			continue
		}
		sym, ok, err := l.store.GetCodeSymbol(m.RefID)
		if err != nil || !ok {
			continue
		}
		hits = append(hits, SymbolHit{Symbol: sym, Source: "semantic"})
	}

	return hits, nil
}

// UnusedFunctions reports functions/methods with zero incoming calls.
func (l *Lookup) UnusedFunctions(projectID string) ([]store.CodeSymbol, error) {
	return l.store.UnusedFunctions(projectID)
}
