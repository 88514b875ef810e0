package llmadapter

import (
	"context"
	"fmt"
	"strings"

	"github.com/ConaryLabs/mira/internal/store"
)

// ChatSummarizer adapts a Provider into memory.Fabric's narrow Summarizer
// capability, using a minimal internal utility prompt rather than the
// user-facing persona - spec.md §4.1 step 4 draws that line explicitly.
type ChatSummarizer struct {
	provider Provider
	model    string
}

func NewChatSummarizer(provider Provider, model string) *ChatSummarizer {
	return &ChatSummarizer{provider: provider, model: model}
}

// Summarize condenses turns into a short prose handoff a later prompt can
// fold back in as context.
func (s *ChatSummarizer) Summarize(ctx context.Context, turns []store.Turn) (string, error) {
	if len(turns) == 0 {
		return "", nil
	}

	var transcript strings.Builder
	for _, t := range turns {
		fmt.Fprintf(&transcript, "%s: %s\n", t.Role, t.Content)
	}

	req := ChatRequest{
		Model: s.model,
		Messages: []Message{
			{Role: RoleSystem, Content: "Summarize the following conversation turns in 2-4 sentences, preserving any decisions, file paths, and open questions. Do not add commentary."},
			{Role: RoleUser, Content: transcript.String()},
		},
	}

	resp, err := s.provider.Chat(ctx, req)
	if err != nil {
		return "", fmt.Errorf("summarize chat: %w", err)
	}
	return resp.Content, nil
}
