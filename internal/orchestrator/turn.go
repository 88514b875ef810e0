// Package orchestrator runs one conversational turn end to end: recall,
// prompt assembly, the model/tool-call loop, and persistence, plus the
// chain-reset hysteresis that decides when a session's context window gets
// collapsed into a handoff blob instead of growing without bound.
package orchestrator

import (
	"context"
	"fmt"

	"github.com/ConaryLabs/mira/internal/config"
	"github.com/ConaryLabs/mira/internal/ids"
	"github.com/ConaryLabs/mira/internal/llmadapter"
	"github.com/ConaryLabs/mira/internal/logging"
	"github.com/ConaryLabs/mira/internal/memory"
	"github.com/ConaryLabs/mira/internal/store"
)

// State names one stop along the turn's state machine, surfaced to callers
// that want to report progress (e.g. an IPC status line).
type State string

const (
	StateIdle          State = "idle"
	StateRecalling     State = "recalling"
	StatePrompting     State = "prompting"
	StateModelCalling  State = "model_calling"
	StateToolLoop      State = "tool_loop"
	StatePersisting    State = "persisting"
	StateFailed        State = "failed"
)

// Result is what a completed (or cancelled) turn leaves behind.
type Result struct {
	Response   string
	ToolCalls  int
	ResetKind  ResetKind
	Cancelled  bool
	FinalState State
}

// PromptBuilder assembles the system/user messages for a turn from recalled
// memory and, optionally, a handoff blob from a prior reset. Kept as an
// interface so the orchestrator doesn't dictate prompt template ownership.
type PromptBuilder interface {
	BuildMessages(ctx context.Context, input string, recalled []memory.RecallHit, handoff string) ([]llmadapter.Message, error)
}

// Orchestrator runs turns for one session, wiring the memory fabric,
// provider, tool loop, and chain-reset hysteresis together.
type Orchestrator struct {
	store    *store.Store
	fabric   *memory.Fabric
	provider llmadapter.Provider
	prompts  PromptBuilder
	toolLoop *ToolLoop
	cfg      config.OrchestratorConfig
	llmCfg   config.LLMConfig

	state State
}

func New(
	st *store.Store,
	fabric *memory.Fabric,
	provider llmadapter.Provider,
	prompts PromptBuilder,
	executor ToolExecutor,
	cfg config.OrchestratorConfig,
	llmCfg config.LLMConfig,
) *Orchestrator {
	return &Orchestrator{
		store:    st,
		fabric:   fabric,
		provider: provider,
		prompts:  prompts,
		toolLoop: NewToolLoop(provider, executor, llmCfg),
		cfg:      cfg,
		llmCfg:   llmCfg,
		state:    StateIdle,
	}
}

// State reports the orchestrator's current stop in the turn state machine -
// useful for a caller polling status between steps of a long tool loop.
func (o *Orchestrator) State() State { return o.state }

// RunTurn drives one full turn: Idle -> Recalling -> Prompting ->
// ModelCalling -> Persisting -> Idle. The tool loop runs inside
// ModelCalling; StateToolLoop is not set by RunTurn.
//
// Cancellation is cooperative: ctx is checked after Recalling and after
// Prompting, and a turn cancelled at either point still persists the user
// input. A cancellation that makes the model/tool loop return an error
// fails the turn without persisting it.
func (o *Orchestrator) RunTurn(ctx context.Context, sessionID, projectID, input string) (*Result, error) {
	sess, err := o.store.GetSession(sessionID)
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}

	cs, err := o.store.GetChainState(sessionID)
	if err != nil {
		return nil, fmt.Errorf("load chain state: %w", err)
	}

	result := &Result{FinalState: StateFailed}

	o.state = StateRecalling
	recalled, err := o.fabric.Recall(ctx, memory.RecallRequest{ProjectID: projectID, Query: input})
	if err != nil {
		logging.Get(logging.CategoryOrchestrator).Warn("recall failed, proceeding without it: %v", err)
	}

	if cancelled(ctx) {
		result.Cancelled = true
		return o.persistPartial(ctx, sess, cs, result, input, "")
	}

	o.state = StatePrompting
	handoff := ""
	resetKind := DecideReset(cs, ResetInputs{InputTokens: cs.LastInputTokens, CachePct: cs.LastCachePct}, o.cfg)
	result.ResetKind = resetKind
	if resetKind == ResetSoft || resetKind == ResetHard {
		handoff = o.buildHandoffBlob(ctx, sess, cs)
		logging.Orchestrator("session %s: %s reset, handoff blob built (%d chars)", sessionID, resetKind, len(handoff))
	}

	messages, err := o.prompts.BuildMessages(ctx, input, recalled, handoff)
	if err != nil {
		return nil, fmt.Errorf("build prompt: %w", err)
	}

	if cancelled(ctx) {
		result.Cancelled = true
		return o.persistPartial(ctx, sess, cs, result, input, "")
	}

	o.state = StateModelCalling
	resp, err := o.toolLoop.Run(ctx, llmadapter.ChatRequest{
		Model:    o.llmCfg.PrimaryModel,
		Messages: messages,
	})
	if err != nil {
		o.state = StateFailed
		_ = o.store.SaveChainState(cs)
		return nil, fmt.Errorf("turn failed: %w", err)
	}

	cs.LastInputTokens = resp.InputTokens
	cs.LastOutputTokens = resp.OutputTokens
	cs.LastCachePct = resp.CachePct()

	o.state = StatePersisting
	final, perr := o.persistPartial(ctx, sess, cs, result, input, resp.Content)
	if perr != nil {
		return nil, perr
	}
	final.Cancelled = cancelled(ctx)
	final.FinalState = StateIdle
	o.state = StateIdle
	return final, nil
}

func (o *Orchestrator) persistPartial(ctx context.Context, sess *store.Session, cs *store.ChainState, result *Result, input, response string) (*Result, error) {
	if err := o.store.SaveChainState(cs); err != nil {
		return nil, fmt.Errorf("save chain state: %w", err)
	}

	userTurn := &store.Turn{ID: ids.New().String(), SessionID: sess.ID, ProjectID: sess.ProjectID, Role: "user", Content: input}
	if err := o.fabric.RecordTurn(ctx, userTurn); err != nil {
		return nil, fmt.Errorf("record user turn: %w", err)
	}

	if response != "" {
		assistantTurn := &store.Turn{ID: ids.New().String(), SessionID: sess.ID, ProjectID: sess.ProjectID, Role: "assistant", Content: response}
		if err := o.fabric.RecordTurn(ctx, assistantTurn); err != nil {
			return nil, fmt.Errorf("record assistant turn: %w", err)
		}
	}

	result.Response = response
	if result.FinalState != StateIdle {
		result.FinalState = StatePersisting
	}
	return result, nil
}

// buildHandoffBlob fills the handoff's recent-turns section from the
// session's last four turns and its earlier-summary section from the
// session's latest rolling summary, when one exists. The goals, decisions,
// working-set, failure, artifact and continuity sections are left empty.
func (o *Orchestrator) buildHandoffBlob(ctx context.Context, sess *store.Session, cs *store.ChainState) string {
	recent, err := o.store.RecentTurns(sess.ID, 4)
	if err != nil {
		logging.Get(logging.CategoryOrchestrator).Warn("load recent turns for handoff: %v", err)
	}
	earlier := ""
	if sum, err := o.store.LatestSummary(sess.ID, "rolling"); err == nil {
		earlier = sum.Content
	}
	return BuildHandoff(HandoffInputs{RecentTurns: recent, EarlierSummary: earlier})
}

func cancelled(ctx context.Context) bool {
	select {
	case <-ctx.Done():
		return true
	default:
		return false
	}
}
