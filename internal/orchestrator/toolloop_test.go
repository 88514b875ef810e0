package orchestrator

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ConaryLabs/mira/internal/config"
	"github.com/ConaryLabs/mira/internal/llmadapter"
)

// scriptedProvider returns one scripted ChatResponse per call, in order.
type scriptedProvider struct {
	responses []llmadapter.ChatResponse
	calls     int
}

func (p *scriptedProvider) Name() string { return "scripted" }
func (p *scriptedProvider) Chat(ctx context.Context, req llmadapter.ChatRequest) (*llmadapter.ChatResponse, error) {
	if p.calls >= len(p.responses) {
		return nil, fmt.Errorf("scripted provider exhausted")
	}
	r := p.responses[p.calls]
	p.calls++
	return &r, nil
}
func (p *scriptedProvider) ChatStream(ctx context.Context, req llmadapter.ChatRequest) (<-chan llmadapter.StreamEvent, error) {
	return nil, fmt.Errorf("not implemented")
}
func (p *scriptedProvider) Embed(ctx context.Context, text string) ([]float32, error) { return nil, nil }
func (p *scriptedProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	return nil, nil
}
func (p *scriptedProvider) Dimensions() int { return 0 }

type echoExecutor struct {
	invocations int32
}

func (e *echoExecutor) ExecuteTool(ctx context.Context, call llmadapter.ToolCall) (string, error) {
	atomic.AddInt32(&e.invocations, 1)
	if call.Name == "boom" {
		return "", fmt.Errorf("tool blew up")
	}
	return "result for " + call.Name, nil
}

func TestToolLoopStopsOnNonToolResponse(t *testing.T) {
	provider := &scriptedProvider{responses: []llmadapter.ChatResponse{
		{Content: "final answer"},
	}}
	loop := NewToolLoop(provider, &echoExecutor{}, config.LLMConfig{MaxParallelTools: 2, MaxTotalToolCalls: 200, ToolTimeoutSecs: 5, ToolResultMaxChars: 1000})

	resp, err := loop.Run(context.Background(), llmadapter.ChatRequest{Model: "m"})
	require.NoError(t, err)
	require.Equal(t, "final answer", resp.Content)
	require.Equal(t, 1, provider.calls)
}

func TestToolLoopRunsToolsThenResubmits(t *testing.T) {
	provider := &scriptedProvider{responses: []llmadapter.ChatResponse{
		{ToolCalls: []llmadapter.ToolCall{{ID: "1", Name: "search"}, {ID: "2", Name: "lookup"}}},
		{Content: "done"},
	}}
	exec := &echoExecutor{}
	loop := NewToolLoop(provider, exec, config.LLMConfig{MaxParallelTools: 2, MaxTotalToolCalls: 200, ToolTimeoutSecs: 5, ToolResultMaxChars: 1000})

	resp, err := loop.Run(context.Background(), llmadapter.ChatRequest{Model: "m"})
	require.NoError(t, err)
	require.Equal(t, "done", resp.Content)
	require.Equal(t, int32(2), exec.invocations)
}

func TestToolLoopIsolatesToolFailureAsResult(t *testing.T) {
	provider := &scriptedProvider{responses: []llmadapter.ChatResponse{
		{ToolCalls: []llmadapter.ToolCall{{ID: "1", Name: "boom"}}},
		{Content: "recovered"},
	}}
	loop := NewToolLoop(provider, &echoExecutor{}, config.LLMConfig{MaxParallelTools: 2, MaxTotalToolCalls: 200, ToolTimeoutSecs: 5, ToolResultMaxChars: 1000})

	resp, err := loop.Run(context.Background(), llmadapter.ChatRequest{Model: "m"})
	require.NoError(t, err)
	require.Equal(t, "recovered", resp.Content)
}

func TestToolLoopStopsAtTotalCallCeiling(t *testing.T) {
	provider := &scriptedProvider{responses: []llmadapter.ChatResponse{
		{ToolCalls: []llmadapter.ToolCall{{ID: "1", Name: "a"}, {ID: "2", Name: "b"}, {ID: "3", Name: "c"}}},
		{Content: "final after ceiling"},
	}}
	loop := NewToolLoop(provider, &echoExecutor{}, config.LLMConfig{MaxParallelTools: 2, MaxTotalToolCalls: 2, ToolTimeoutSecs: 5, ToolResultMaxChars: 1000})

	resp, err := loop.Run(context.Background(), llmadapter.ChatRequest{Model: "m"})
	require.NoError(t, err)
	require.Equal(t, "final after ceiling", resp.Content)
	require.Equal(t, 2, provider.calls)
}

func TestToolLoopTruncatesOversizeResults(t *testing.T) {
	provider := &scriptedProvider{responses: []llmadapter.ChatResponse{
		{ToolCalls: []llmadapter.ToolCall{{ID: "1", Name: "search"}}},
		{Content: "ok"},
	}}
	loop := NewToolLoop(provider, &echoExecutor{}, config.LLMConfig{MaxParallelTools: 1, MaxTotalToolCalls: 200, ToolTimeoutSecs: 5, ToolResultMaxChars: 5})
	_, err := loop.Run(context.Background(), llmadapter.ChatRequest{Model: "m"})
	require.NoError(t, err)
	require.Equal(t, "resul…(truncated)", loop.runOne(context.Background(), llmadapter.ToolCall{ID: "1", Name: "search"}))
}
