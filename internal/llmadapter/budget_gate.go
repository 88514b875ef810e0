package llmadapter

import (
	"context"
	"fmt"
)

// BudgetGuard is the narrow capability the adapter needs from internal/budget
// to enforce daily/monthly cost caps before a chargeable call goes out.
// Kept as an interface here (rather than importing internal/budget) for the
// same reason Fabric's Embedder/Summarizer are interfaces: avoids a cycle,
// since internal/budget will want to record spend the adapter reports back.
type BudgetGuard interface {
	CheckAllowed(ctx context.Context, estimatedCostUSD float64) error
	RecordSpend(ctx context.Context, provider, model string, costUSD float64, inputTokens, outputTokens int) error
}

// CostEstimator turns token counts into a dollar estimate; each provider
// knows its own per-token pricing.
type CostEstimator func(inputTokens, outputTokens int) float64

// GatedProvider wraps a Provider so every Chat/ChatStream call is checked
// against a BudgetGuard first and recorded afterward, matching spec.md's
// "budget gate sits in front of every chargeable LLM call" invariant.
type GatedProvider struct {
	Provider
	Guard     BudgetGuard
	Estimate  CostEstimator
}

func NewGatedProvider(p Provider, guard BudgetGuard, estimate CostEstimator) *GatedProvider {
	if estimate == nil {
		estimate = func(int, int) float64 { return 0 }
	}
	return &GatedProvider{Provider: p, Guard: guard, Estimate: estimate}
}

func (g *GatedProvider) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	if err := g.Guard.CheckAllowed(ctx, g.Estimate(estimateInputTokens(req), 0)); err != nil {
		return nil, fmt.Errorf("budget gate: %w", err)
	}
	resp, err := g.Provider.Chat(ctx, req)
	if err != nil {
		return nil, err
	}
	cost := g.Estimate(resp.InputTokens, resp.OutputTokens)
	if recErr := g.Guard.RecordSpend(ctx, g.Provider.Name(), req.Model, cost, resp.InputTokens, resp.OutputTokens); recErr != nil {
		return resp, fmt.Errorf("budget gate: record spend: %w", recErr)
	}
	return resp, nil
}

func (g *GatedProvider) ChatStream(ctx context.Context, req ChatRequest) (<-chan StreamEvent, error) {
	if err := g.Guard.CheckAllowed(ctx, g.Estimate(estimateInputTokens(req), 0)); err != nil {
		return nil, fmt.Errorf("budget gate: %w", err)
	}
	upstream, err := g.Provider.ChatStream(ctx, req)
	if err != nil {
		return nil, err
	}

	out := make(chan StreamEvent, 16)
	go func() {
		defer close(out)
		for ev := range upstream {
			if ev.Kind == StreamDone && ev.Response != nil {
				cost := g.Estimate(ev.Response.InputTokens, ev.Response.OutputTokens)
				_ = g.Guard.RecordSpend(context.Background(), g.Provider.Name(), req.Model, cost, ev.Response.InputTokens, ev.Response.OutputTokens)
			}
			out <- ev
		}
	}()
	return out, nil
}

func estimateInputTokens(req ChatRequest) int {
	total := 0
	for _, m := range req.Messages {
		total += len(m.Content) / 4
	}
	return total
}

// DetectProviderChange reports whether switching from (prevName, prevDims)
// to the active provider requires a reindex - either the provider identity
// changed or its embedding dimensionality did, per spec.md §4.3.
func DetectProviderChange(active Provider, prevName string, prevDims int) (changed bool, newDims int) {
	newDims = active.Dimensions()
	if active.Name() != prevName || newDims != prevDims {
		return true, newDims
	}
	return false, newDims
}
