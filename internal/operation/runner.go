package operation

import "context"

// FuncRunner adapts three plain functions into a Runner, the shape most
// operation kinds need: no shared state, just per-phase logic.
type FuncRunner struct {
	PlanFunc     func(ctx context.Context, input string) (string, error)
	GenerateFunc func(ctx context.Context, plan string) (string, error)
	ApplyFunc    func(ctx context.Context, artifact string) (string, error)
}

func (r FuncRunner) Plan(ctx context.Context, input string) (string, error) {
	if r.PlanFunc == nil {
		return input, nil
	}
	return r.PlanFunc(ctx, input)
}

func (r FuncRunner) Generate(ctx context.Context, plan string) (string, error) {
	if r.GenerateFunc == nil {
		return plan, nil
	}
	return r.GenerateFunc(ctx, plan)
}

func (r FuncRunner) Apply(ctx context.Context, artifact string) (string, error) {
	if r.ApplyFunc == nil {
		return artifact, nil
	}
	return r.ApplyFunc(ctx, artifact)
}
