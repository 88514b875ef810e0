package llmadapter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/ConaryLabs/mira/internal/logging"
)

// DeepSeekProvider talks to DeepSeek's OpenAI-compatible chat-completions
// endpoint. It has no embedding capability of its own; Embed/EmbedBatch
// return errs so a caller wiring DeepSeek for chat still needs a separate
// embedding provider (see genai_embedder.go).
type DeepSeekProvider struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

func NewDeepSeekProvider(apiKey string, timeout time.Duration) *DeepSeekProvider {
	return &DeepSeekProvider{
		apiKey:  apiKey,
		baseURL: "https://api.deepseek.com/v1/chat/completions",
		client:  &http.Client{Timeout: timeout},
	}
}

func (p *DeepSeekProvider) Name() string { return "deepseek" }

type openAIChatRequest struct {
	Model       string          `json:"model"`
	Messages    []openAIMessage `json:"messages"`
	Tools       []openAITool    `json:"tools,omitempty"`
	Stream      bool            `json:"stream"`
	MaxTokens   int             `json:"max_tokens,omitempty"`
	Temperature float64         `json:"temperature,omitempty"`
}

type openAIMessage struct {
	Role       string     `json:"role"`
	Content    string     `json:"content"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
	ToolCalls  []toolCall `json:"tool_calls,omitempty"`
}

type toolCall struct {
	ID       string `json:"id"`
	Type     string `json:"type"`
	Function struct {
		Name      string `json:"name"`
		Arguments string `json:"arguments"`
	} `json:"function"`
}

type openAITool struct {
	Type     string `json:"type"`
	Function struct {
		Name        string                 `json:"name"`
		Description string                 `json:"description"`
		Parameters  map[string]interface{} `json:"parameters"`
	} `json:"function"`
}

func toOpenAIRequest(req ChatRequest, stream bool) openAIChatRequest {
	out := openAIChatRequest{Model: req.Model, Stream: stream, MaxTokens: req.MaxTokens, Temperature: req.Temperature}
	for _, m := range req.Messages {
		msg := openAIMessage{Role: string(m.Role), Content: m.Content, ToolCallID: m.ToolCallID}
		for _, tc := range m.ToolCalls {
			var wire toolCall
			wire.ID = tc.ID
			wire.Type = "function"
			wire.Function.Name = tc.Name
			wire.Function.Arguments = tc.Arguments
			msg.ToolCalls = append(msg.ToolCalls, wire)
		}
		out.Messages = append(out.Messages, msg)
	}
	for _, t := range req.Tools {
		var tool openAITool
		tool.Type = "function"
		tool.Function.Name = t.Name
		tool.Function.Description = t.Description
		tool.Function.Parameters = t.Parameters
		out.Tools = append(out.Tools, tool)
	}
	return out
}

func (p *DeepSeekProvider) newHTTPRequest(ctx context.Context, body openAIChatRequest) (*http.Request, error) {
	buf, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL, bytes.NewReader(buf))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)
	return httpReq, nil
}

func (p *DeepSeekProvider) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	httpReq, err := p.newHTTPRequest(ctx, toOpenAIRequest(req, false))
	if err != nil {
		return nil, err
	}

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("deepseek chat call: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("deepseek chat call: status %d", resp.StatusCode)
	}

	var wire struct {
		Choices []struct {
			Message      openAIMessage `json:"message"`
			FinishReason string        `json:"finish_reason"`
		} `json:"choices"`
		Usage struct {
			PromptTokens         int `json:"prompt_tokens"`
			CompletionTokens     int `json:"completion_tokens"`
			PromptCacheHitTokens int `json:"prompt_cache_hit_tokens"`
		} `json:"usage"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&wire); err != nil {
		return nil, fmt.Errorf("decode deepseek response: %w", err)
	}
	if len(wire.Choices) == 0 {
		return nil, fmt.Errorf("deepseek chat call: empty choices")
	}

	out := &ChatResponse{
		Content:           wire.Choices[0].Message.Content,
		StopReason:        wire.Choices[0].FinishReason,
		InputTokens:       wire.Usage.PromptTokens,
		OutputTokens:      wire.Usage.CompletionTokens,
		CachedInputTokens: wire.Usage.PromptCacheHitTokens,
	}
	for _, tc := range wire.Choices[0].Message.ToolCalls {
		out.ToolCalls = append(out.ToolCalls, ToolCall{ID: tc.ID, Name: tc.Function.Name, Arguments: tc.Function.Arguments})
	}
	return out, nil
}

func (p *DeepSeekProvider) ChatStream(ctx context.Context, req ChatRequest) (<-chan StreamEvent, error) {
	httpReq, err := p.newHTTPRequest(ctx, toOpenAIRequest(req, true))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Accept", "text/event-stream")

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("deepseek chat stream: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("deepseek chat stream: status %d", resp.StatusCode)
	}

	logging.LLMDebug("deepseek stream connected, model=%s", req.Model)
	return streamOpenAI(ctx, resp.Body), nil
}

func (p *DeepSeekProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	return nil, fmt.Errorf("deepseek provider does not support embeddings")
}

func (p *DeepSeekProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	return nil, fmt.Errorf("deepseek provider does not support embeddings")
}

func (p *DeepSeekProvider) Dimensions() int { return 0 }
