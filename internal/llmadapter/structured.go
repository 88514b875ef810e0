package llmadapter

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ConaryLabs/mira/internal/logging"
)

// DecodeStructured unmarshals a model's text output into v, repairing common
// malformations before giving up. Three escalating steps, each only
// attempted if the previous one failed:
//
//  1. direct json.Unmarshal of the trimmed text
//  2. strip a ```json ... ``` (or bare ```) fence and/or take the balanced
//     {...} or [...] span that starts at the first '{' or '[', then retry
//  3. ask the provider itself to repair its own output and retry once
//
// Step 3 only runs when provider is non-nil, so callers without a live
// provider (tests, replay) still get steps 1-2.
func DecodeStructured(ctx context.Context, provider Provider, model, raw string, v interface{}) error {
	text := strings.TrimSpace(raw)

	if err := json.Unmarshal([]byte(text), v); err == nil {
		return nil
	}

	stripped := stripJSONFence(text)
	if err := json.Unmarshal([]byte(stripped), v); err == nil {
		return nil
	}

	if provider == nil {
		return fmt.Errorf("decode structured output: not valid JSON after fence-stripping: %s", truncate(text, 200))
	}

	logging.Get(logging.CategoryLLM).Warn("structured output failed direct decode, asking provider to repair")
	repaired, err := repairWithProvider(ctx, provider, model, text)
	if err != nil {
		return fmt.Errorf("decode structured output: repair call failed: %w", err)
	}
	if err := json.Unmarshal([]byte(stripJSONFence(repaired)), v); err != nil {
		return fmt.Errorf("decode structured output: still invalid after repair: %w", err)
	}
	return nil
}

// stripJSONFence removes a markdown code fence if present, then narrows to
// the outermost {...} or [...] span so trailing prose doesn't break parsing.
func stripJSONFence(text string) string {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```json")
		text = strings.TrimPrefix(text, "```")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
		text = strings.TrimSpace(text)
	}

	start := strings.IndexAny(text, "{[")
	if start < 0 {
		return text
	}
	open, close := byte('{'), byte('}')
	if text[start] == '[' {
		open, close = '[', ']'
	}
	depth := 0
	for i := start; i < len(text); i++ {
		switch text[i] {
		case open:
			depth++
		case close:
			depth--
			if depth == 0 {
				return text[start : i+1]
			}
		}
	}
	return text[start:]
}

func repairWithProvider(ctx context.Context, provider Provider, model, broken string) (string, error) {
	resp, err := provider.Chat(ctx, ChatRequest{
		Model: model,
		Messages: []Message{
			{Role: RoleSystem, Content: "You repair malformed JSON. Respond with only the corrected JSON, no prose, no code fences."},
			{Role: RoleUser, Content: broken},
		},
	})
	if err != nil {
		return "", err
	}
	return resp.Content, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
