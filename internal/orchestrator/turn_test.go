package orchestrator

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ConaryLabs/mira/internal/config"
	"github.com/ConaryLabs/mira/internal/llmadapter"
	"github.com/ConaryLabs/mira/internal/memory"
	"github.com/ConaryLabs/mira/internal/store"
)

type stubPromptBuilder struct{}

func (stubPromptBuilder) BuildMessages(ctx context.Context, input string, recalled []memory.RecallHit, handoff string) ([]llmadapter.Message, error) {
	msgs := []llmadapter.Message{{Role: llmadapter.RoleUser, Content: input}}
	if handoff != "" {
		msgs = append([]llmadapter.Message{{Role: llmadapter.RoleSystem, Content: handoff}}, msgs...)
	}
	return msgs, nil
}

type noopExecutor struct{}

func (noopExecutor) ExecuteTool(ctx context.Context, call llmadapter.ToolCall) (string, error) {
	return "", nil
}

func newTestOrchestrator(t *testing.T, responses []llmadapter.ChatResponse) (*Orchestrator, *store.Store, *store.Session) {
	t.Helper()
	st, err := store.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	proj, err := st.UpsertProject("/tmp/orchestrator-test", "test")
	require.NoError(t, err)
	sess, err := st.CreateSession(proj.ID)
	require.NoError(t, err)

	fabric := memory.New(st, nil, nil, config.MemoryConfig{KRecent: 5, KSemantic: 5, KPerHead: 5})
	provider := &scriptedProvider{responses: responses}

	o := New(st, fabric, provider, stubPromptBuilder{}, noopExecutor{}, testCfg(), config.LLMConfig{
		PrimaryModel:       "test-model",
		MaxParallelTools:   2,
		MaxTotalToolCalls:  200,
		ToolTimeoutSecs:    5,
		ToolResultMaxChars: 1000,
	})
	return o, st, sess
}

func TestRunTurnHappyPathPersistsBothTurns(t *testing.T) {
	o, st, sess := newTestOrchestrator(t, []llmadapter.ChatResponse{{Content: "hello back"}})

	result, err := o.RunTurn(context.Background(), sess.ID, sess.ProjectID, "hello")
	require.NoError(t, err)
	require.Equal(t, "hello back", result.Response)
	require.Equal(t, StateIdle, result.FinalState)
	require.False(t, result.Cancelled)

	turns, err := st.RecentTurns(sess.ID, 10)
	require.NoError(t, err)
	require.Len(t, turns, 2)
	require.Equal(t, "user", turns[0].Role)
	require.Equal(t, "assistant", turns[1].Role)
}

func TestRunTurnCancelledBeforeModelCallStillPersistsUserTurn(t *testing.T) {
	o, st, sess := newTestOrchestrator(t, []llmadapter.ChatResponse{{Content: "never reached"}})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := o.RunTurn(ctx, sess.ID, sess.ProjectID, "hello")
	require.NoError(t, err)
	require.True(t, result.Cancelled)

	turns, err := st.RecentTurns(sess.ID, 10)
	require.NoError(t, err)
	require.Len(t, turns, 1)
	require.Equal(t, "user", turns[0].Role)
}

func TestRunTurnUsesPreviousTurnsReportedUsageForResetDecision(t *testing.T) {
	o, st, sess := newTestOrchestrator(t, []llmadapter.ChatResponse{
		{Content: "first", InputTokens: 5000, OutputTokens: 50},
		{Content: "second", InputTokens: 100, OutputTokens: 10},
	})

	first, err := o.RunTurn(context.Background(), sess.ID, sess.ProjectID, "hello")
	require.NoError(t, err)
	require.Equal(t, ResetNone, first.ResetKind)

	cs, err := st.GetChainState(sess.ID)
	require.NoError(t, err)
	require.Equal(t, 5000, cs.LastInputTokens)
	require.Equal(t, 50, cs.LastOutputTokens)
	require.Equal(t, 0, cs.LastCachePct)

	second, err := o.RunTurn(context.Background(), sess.ID, sess.ProjectID, "continue")
	require.NoError(t, err)
	require.Equal(t, ResetHard, second.ResetKind)

	cs, err = st.GetChainState(sess.ID)
	require.NoError(t, err)
	require.Equal(t, testCfg().CooldownTurns, cs.CooldownRemaining)
	require.Equal(t, 100, cs.LastInputTokens)
}

func TestRunTurnPersistsCachedTokensFromResponse(t *testing.T) {
	o, st, sess := newTestOrchestrator(t, []llmadapter.ChatResponse{
		{Content: "ack", InputTokens: 1000, CachedInputTokens: 900},
	})

	_, err := o.RunTurn(context.Background(), sess.ID, sess.ProjectID, "hello")
	require.NoError(t, err)

	cs, err := st.GetChainState(sess.ID)
	require.NoError(t, err)
	require.Equal(t, 90, cs.LastCachePct)
}
