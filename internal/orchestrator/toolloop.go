package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/ConaryLabs/mira/internal/config"
	"github.com/ConaryLabs/mira/internal/llmadapter"
	"github.com/ConaryLabs/mira/internal/logging"
)

// ToolExecutor invokes one named tool call and returns its result text (or
// an error, which the loop folds into the tool result rather than failing
// the turn - spec.md §4.1.2 isolates tool failures from turn failures).
type ToolExecutor interface {
	ExecuteTool(ctx context.Context, call llmadapter.ToolCall) (string, error)
}

// ToolLoop drives the request/tool-call/result cycle: submit, fan out any
// tool calls in parallel, resubmit with results attached, repeat until the
// model answers without calling a tool or the turn's total call ceiling is
// reached.
type ToolLoop struct {
	provider llmadapter.Provider
	executor ToolExecutor
	cfg      config.LLMConfig
}

func NewToolLoop(provider llmadapter.Provider, executor ToolExecutor, cfg config.LLMConfig) *ToolLoop {
	return &ToolLoop{provider: provider, executor: executor, cfg: cfg}
}

// Run executes the loop starting from req's messages, returning the first
// response with no tool calls in it, or the model's response to the final
// batch of results once the call ceiling is hit.
func (tl *ToolLoop) Run(ctx context.Context, req llmadapter.ChatRequest) (*llmadapter.ChatResponse, error) {
	messages := append([]llmadapter.Message(nil), req.Messages...)
	totalCalls := 0

	for {
		resp, err := tl.provider.Chat(ctx, llmadapter.ChatRequest{
			Model:       req.Model,
			Messages:    messages,
			Tools:       req.Tools,
			MaxTokens:   req.MaxTokens,
			Temperature: req.Temperature,
		})
		if err != nil {
			return nil, fmt.Errorf("chat: %w", err)
		}
		if len(resp.ToolCalls) == 0 {
			return resp, nil
		}

		calls := resp.ToolCalls
		if remaining := tl.cfg.MaxTotalToolCalls - totalCalls; len(calls) > remaining {
			calls = calls[:remaining]
		}
		if len(calls) == 0 {
			logging.Get(logging.CategoryOrchestrator).Warn("tool call ceiling %d reached, ending turn", tl.cfg.MaxTotalToolCalls)
			return resp, nil
		}

		messages = append(messages, llmadapter.Message{Role: llmadapter.RoleAssistant, Content: resp.Content, ToolCalls: calls})

		results := tl.executeBatch(ctx, calls)
		for i, call := range calls {
			messages = append(messages, llmadapter.Message{
				Role:       llmadapter.RoleTool,
				ToolCallID: call.ID,
				Content:    results[i],
			})
		}
		totalCalls += len(calls)

		if totalCalls >= tl.cfg.MaxTotalToolCalls {
			final, err := tl.provider.Chat(ctx, llmadapter.ChatRequest{
				Model:       req.Model,
				Messages:    messages,
				Tools:       req.Tools,
				MaxTokens:   req.MaxTokens,
				Temperature: req.Temperature,
			})
			if err != nil {
				return nil, fmt.Errorf("chat (final batch): %w", err)
			}
			return final, nil
		}
	}
}

// executeBatch runs calls concurrently, bounded by MaxParallelTools, each
// under its own ToolTimeoutSecs deadline, and returns results in the same
// order as calls regardless of completion order.
func (tl *ToolLoop) executeBatch(ctx context.Context, calls []llmadapter.ToolCall) []string {
	results := make([]string, len(calls))
	sem := semaphore.NewWeighted(int64(maxInt(tl.cfg.MaxParallelTools, 1)))
	var wg sync.WaitGroup

	for i, call := range calls {
		i, call := i, call
		if err := sem.Acquire(ctx, 1); err != nil {
			results[i] = fmt.Sprintf("error: %v", err)
			continue
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer sem.Release(1)
			results[i] = tl.runOne(ctx, call)
		}()
	}

	wg.Wait()
	return results
}

func (tl *ToolLoop) runOne(ctx context.Context, call llmadapter.ToolCall) string {
	timeout := time.Duration(tl.cfg.ToolTimeoutSecs) * time.Second
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	out, err := tl.executor.ExecuteTool(callCtx, call)
	if err != nil {
		logging.Get(logging.CategoryOrchestrator).Warn("tool %s failed: %v", call.Name, err)
		return fmt.Sprintf("error: %v", err)
	}
	if max := tl.cfg.ToolResultMaxChars; max > 0 && len(out) > max {
		out = out[:max] + "…(truncated)"
	}
	return out
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
