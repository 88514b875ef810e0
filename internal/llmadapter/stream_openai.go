package llmadapter

import (
	"context"
	"encoding/json"
	"io"

	"github.com/ConaryLabs/mira/internal/logging"
)

// openAIChunk is the wire shape of one OpenAI-compatible streaming chunk -
// the format DeepSeek's chat-completions endpoint speaks.
type openAIChunk struct {
	Choices []struct {
		Delta struct {
			Content   string `json:"content"`
			ToolCalls []struct {
				ID       string `json:"id"`
				Function struct {
					Name      string `json:"name"`
					Arguments string `json:"arguments"`
				} `json:"function"`
			} `json:"tool_calls"`
		} `json:"delta"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage *struct {
		PromptTokens         int `json:"prompt_tokens"`
		CompletionTokens     int `json:"completion_tokens"`
		PromptCacheHitTokens int `json:"prompt_cache_hit_tokens"`
	} `json:"usage"`
}

// streamOpenAI turns an OpenAI-compatible SSE body into StreamEvents on the
// returned channel, closing it once the body ends or the stream sends the
// "[DONE]" sentinel. Tool-call argument fragments are accumulated per
// tool-call id (a fragment without an id extends the most recent call)
// before being emitted whole, since providers stream them a few characters
// at a time.
func streamOpenAI(ctx context.Context, body io.ReadCloser) <-chan StreamEvent {
	out := make(chan StreamEvent, 16)

	go func() {
		defer close(out)

		var final ChatResponse
		toolBuf := map[string]*ToolCall{}
		var toolOrder []string

		err := readSSE(ctx, body, func(ev sseEvent) {
			if ev.Data == "[DONE]" {
				return
			}
			var chunk openAIChunk
			if err := json.Unmarshal([]byte(ev.Data), &chunk); err != nil {
				logging.Get(logging.CategoryLLM).Warn("decode stream chunk: %v", err)
				return
			}
			if chunk.Usage != nil {
				final.InputTokens = chunk.Usage.PromptTokens
				final.OutputTokens = chunk.Usage.CompletionTokens
				final.CachedInputTokens = chunk.Usage.PromptCacheHitTokens
			}
			for _, choice := range chunk.Choices {
				if choice.Delta.Content != "" {
					final.Content += choice.Delta.Content
					out <- StreamEvent{Kind: StreamTextDelta, Text: choice.Delta.Content}
				}
				for _, tc := range choice.Delta.ToolCalls {
					id := tc.ID
					if id == "" && len(toolOrder) > 0 {
						id = toolOrder[len(toolOrder)-1]
					}
					existing, ok := toolBuf[id]
					if !ok {
						existing = &ToolCall{ID: id, Name: tc.Function.Name}
						toolBuf[id] = existing
						toolOrder = append(toolOrder, id)
					}
					if tc.Function.Name != "" {
						existing.Name = tc.Function.Name
					}
					existing.Arguments += tc.Function.Arguments
				}
				if choice.FinishReason != "" {
					final.StopReason = choice.FinishReason
				}
			}
		})

		for _, id := range toolOrder {
			tc := *toolBuf[id]
			final.ToolCalls = append(final.ToolCalls, tc)
			out <- StreamEvent{Kind: StreamToolCall, ToolCall: &tc}
		}

		if err != nil {
			out <- StreamEvent{Kind: StreamError, Err: err}
			return
		}
		out <- StreamEvent{Kind: StreamDone, Response: &final}
	}()

	return out
}
