package llmadapter

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDecodeStructuredDirect(t *testing.T) {
	var out struct {
		Name string `json:"name"`
	}
	err := DecodeStructured(context.Background(), nil, "", `{"name": "mira"}`, &out)
	require.NoError(t, err)
	require.Equal(t, "mira", out.Name)
}

func TestDecodeStructuredStripsFenceAndProse(t *testing.T) {
	var out struct {
		Name string `json:"name"`
	}
	raw := "Sure, here you go:\n```json\n{\"name\": \"mira\"}\n```\nLet me know if that helps."
	err := DecodeStructured(context.Background(), nil, "", raw, &out)
	require.NoError(t, err)
	require.Equal(t, "mira", out.Name)
}

func TestDecodeStructuredRepairsWithProvider(t *testing.T) {
	provider := NewReplayProvider(MatchSequential, []Fixture{
		{Response: ChatResponse{Content: `{"name": "mira"}`}},
	}, 0)

	var out struct {
		Name string `json:"name"`
	}
	err := DecodeStructured(context.Background(), provider, "replay-model", `{"name": "mira"`, &out)
	require.NoError(t, err)
	require.Equal(t, "mira", out.Name)
}

func TestDecodeStructuredFailsWithoutProvider(t *testing.T) {
	var out struct{}
	err := DecodeStructured(context.Background(), nil, "", "not json at all", &out)
	require.Error(t, err)
}

func TestReplayProviderSequentialExhausts(t *testing.T) {
	p := NewReplayProvider(MatchSequential, []Fixture{
		{Response: ChatResponse{Content: "first"}},
	}, 4)

	resp, err := p.Chat(context.Background(), ChatRequest{})
	require.NoError(t, err)
	require.Equal(t, "first", resp.Content)

	_, err = p.Chat(context.Background(), ChatRequest{})
	require.Error(t, err)
}

func TestReplayProviderMatchLastUserMessage(t *testing.T) {
	p := NewReplayProvider(MatchLastUserMessage, []Fixture{
		{Messages: []Message{{Role: RoleUser, Content: "hello"}}, Response: ChatResponse{Content: "hi there"}},
		{Messages: []Message{{Role: RoleUser, Content: "bye"}}, Response: ChatResponse{Content: "goodbye"}},
	}, 0)

	resp, err := p.Chat(context.Background(), ChatRequest{Messages: []Message{
		{Role: RoleSystem, Content: "sys"},
		{Role: RoleUser, Content: "bye"},
	}})
	require.NoError(t, err)
	require.Equal(t, "goodbye", resp.Content)
}

func TestReplayProviderEmbedDefaultsToZeroVector(t *testing.T) {
	p := NewReplayProvider(MatchSequential, []Fixture{{Response: ChatResponse{}}}, 3)
	vec, err := p.Embed(context.Background(), "anything")
	require.NoError(t, err)
	require.Len(t, vec, 3)
}

type fakeBody struct {
	io.Reader
}

func (fakeBody) Close() error { return nil }

func TestStreamOpenAIAccumulatesContentAndToolCalls(t *testing.T) {
	lines := []string{
		`data: {"choices":[{"delta":{"content":"Hel"}}]}`,
		``,
		`data: {"choices":[{"delta":{"content":"lo"}}]}`,
		``,
		`data: {"choices":[{"delta":{"tool_calls":[{"id":"call_1","function":{"name":"search","arguments":"{\"q\":"}}]}}]}`,
		``,
		`data: {"choices":[{"delta":{"tool_calls":[{"function":{"arguments":"\"x\"}"}}]}}]}`,
		``,
		`data: {"choices":[{"delta":{},"finish_reason":"tool_calls"}],"usage":{"prompt_tokens":5,"completion_tokens":7}}`,
		``,
		`data: [DONE]`,
		``,
	}
	sse := strings.Join(lines, "\n")

	body := fakeBody{Reader: strings.NewReader(sse)}
	events := streamOpenAI(context.Background(), body)

	var text strings.Builder
	var sawToolCall, sawDone bool
	var final *ChatResponse
	for ev := range events {
		switch ev.Kind {
		case StreamTextDelta:
			text.WriteString(ev.Text)
		case StreamToolCall:
			sawToolCall = true
			require.Equal(t, "search", ev.ToolCall.Name)
			require.Equal(t, `{"q":"x"}`, ev.ToolCall.Arguments)
		case StreamDone:
			sawDone = true
			final = ev.Response
		}
	}

	require.Equal(t, "Hello", text.String())
	require.True(t, sawToolCall)
	require.True(t, sawDone)
	require.NotNil(t, final)
	require.Equal(t, 5, final.InputTokens)
	require.Equal(t, 7, final.OutputTokens)
}

type fakeGuard struct {
	allowed    bool
	recorded   int
	lastAmount float64
}

func (g *fakeGuard) CheckAllowed(ctx context.Context, estimatedCostUSD float64) error {
	if !g.allowed {
		return errors.New("budget exceeded")
	}
	return nil
}

func (g *fakeGuard) RecordSpend(ctx context.Context, provider, model string, costUSD float64, inputTokens, outputTokens int) error {
	g.recorded++
	g.lastAmount = costUSD
	return nil
}

func TestGatedProviderBlocksWhenGuardDenies(t *testing.T) {
	inner := NewReplayProvider(MatchSequential, []Fixture{{Response: ChatResponse{Content: "hi"}}}, 0)
	guard := &fakeGuard{allowed: false}
	gated := NewGatedProvider(inner, guard, nil)

	_, err := gated.Chat(context.Background(), ChatRequest{})
	require.Error(t, err)
	require.Equal(t, 0, guard.recorded)
}

func TestGatedProviderRecordsSpendOnSuccess(t *testing.T) {
	inner := NewReplayProvider(MatchSequential, []Fixture{
		{Response: ChatResponse{Content: "hi", InputTokens: 10, OutputTokens: 20}},
	}, 0)
	guard := &fakeGuard{allowed: true}
	gated := NewGatedProvider(inner, guard, func(in, out int) float64 { return float64(in+out) * 0.001 })

	resp, err := gated.Chat(context.Background(), ChatRequest{})
	require.NoError(t, err)
	require.Equal(t, "hi", resp.Content)
	require.Equal(t, 1, guard.recorded)
	require.InDelta(t, 0.03, guard.lastAmount, 0.0001)
}

func TestDetectProviderChangeFlagsNameOrDimensionChange(t *testing.T) {
	p := NewReplayProvider(MatchSequential, nil, 768)

	changed, dims := DetectProviderChange(p, "replay", 768)
	require.False(t, changed)
	require.Equal(t, 768, dims)

	changed, dims = DetectProviderChange(p, "other", 768)
	require.True(t, changed)
	require.Equal(t, 768, dims)

	changed, dims = DetectProviderChange(p, "replay", 512)
	require.True(t, changed)
	require.Equal(t, 768, dims)
}

func TestCompositeProviderRoutesChatAndEmbedSeparately(t *testing.T) {
	chatter := NewReplayProvider(MatchSequential, []Fixture{{Response: ChatResponse{Content: "chat reply"}}}, 0)
	embedder := NewReplayProvider(MatchSequential, []Fixture{{Embedding: []float32{1, 2, 3}}}, 3)

	composite := NewCompositeProvider(chatter, embedder)
	require.Equal(t, "replay", composite.Name())
	require.Equal(t, 3, composite.Dimensions())

	resp, err := composite.Chat(context.Background(), ChatRequest{})
	require.NoError(t, err)
	require.Equal(t, "chat reply", resp.Content)

	vec, err := composite.Embed(context.Background(), "anything")
	require.NoError(t, err)
	require.Len(t, vec, 3)
}
