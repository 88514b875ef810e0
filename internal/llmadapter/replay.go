package llmadapter

import (
	"context"
	"fmt"
	"strings"
)

// MatchStrategy selects how a ReplayProvider picks its next fixture for an
// incoming request.
type MatchStrategy string

const (
	// MatchSequential returns fixtures in recorded order regardless of
	// request content - deterministic golden-file replay.
	MatchSequential MatchStrategy = "sequential"
	// MatchLastUserMessage finds the fixture whose recorded last-user-message
	// equals the request's last user message.
	MatchLastUserMessage MatchStrategy = "last_user_message"
	// MatchFullPrompt requires every message in the request to match a
	// fixture's recorded messages exactly.
	MatchFullPrompt MatchStrategy = "full_prompt"
)

// Fixture is one recorded (or hand-written) request/response pair a
// ReplayProvider can serve.
type Fixture struct {
	Messages []Message
	Response ChatResponse
	Events   []StreamEvent // if set, used for ChatStream instead of Response
	Embedding []float32
}

// ReplayProvider serves canned responses instead of calling a live backend -
// used by orchestrator/scheduler tests so they don't depend on network
// access or API keys.
type ReplayProvider struct {
	Strategy MatchStrategy
	Fixtures []Fixture
	seq      int
	dims     int
}

func NewReplayProvider(strategy MatchStrategy, fixtures []Fixture, dims int) *ReplayProvider {
	return &ReplayProvider{Strategy: strategy, Fixtures: fixtures, dims: dims}
}

func (r *ReplayProvider) Name() string { return "replay" }

func (r *ReplayProvider) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	f, err := r.match(req)
	if err != nil {
		return nil, err
	}
	resp := f.Response
	return &resp, nil
}

func (r *ReplayProvider) ChatStream(ctx context.Context, req ChatRequest) (<-chan StreamEvent, error) {
	f, err := r.match(req)
	if err != nil {
		return nil, err
	}
	out := make(chan StreamEvent, len(f.Events)+1)
	go func() {
		defer close(out)
		if len(f.Events) > 0 {
			for _, ev := range f.Events {
				out <- ev
			}
			return
		}
		resp := f.Response
		if resp.Content != "" {
			out <- StreamEvent{Kind: StreamTextDelta, Text: resp.Content}
		}
		out <- StreamEvent{Kind: StreamDone, Response: &resp}
	}()
	return out, nil
}

func (r *ReplayProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	f, err := r.match(ChatRequest{Messages: []Message{{Role: RoleUser, Content: text}}})
	if err == nil && f.Embedding != nil {
		return f.Embedding, nil
	}
	return make([]float32, r.dims), nil
}

func (r *ReplayProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := r.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (r *ReplayProvider) Dimensions() int { return r.dims }

func (r *ReplayProvider) match(req ChatRequest) (Fixture, error) {
	if len(r.Fixtures) == 0 {
		return Fixture{}, fmt.Errorf("replay provider: no fixtures loaded")
	}

	switch r.Strategy {
	case MatchLastUserMessage:
		want := lastUserMessage(req.Messages)
		for _, f := range r.Fixtures {
			if lastUserMessage(f.Messages) == want {
				return f, nil
			}
		}
		return Fixture{}, fmt.Errorf("replay provider: no fixture matched last user message %q", truncate(want, 80))

	case MatchFullPrompt:
		for _, f := range r.Fixtures {
			if messagesEqual(f.Messages, req.Messages) {
				return f, nil
			}
		}
		return Fixture{}, fmt.Errorf("replay provider: no fixture matched the full prompt")

	default: // MatchSequential
		if r.seq >= len(r.Fixtures) {
			return Fixture{}, fmt.Errorf("replay provider: sequence exhausted at fixture %d", r.seq)
		}
		f := r.Fixtures[r.seq]
		r.seq++
		return f, nil
	}
}

func lastUserMessage(msgs []Message) string {
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role == RoleUser {
			return msgs[i].Content
		}
	}
	return ""
}

func messagesEqual(a, b []Message) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].Role != b[i].Role || strings.TrimSpace(a[i].Content) != strings.TrimSpace(b[i].Content) {
			return false
		}
	}
	return true
}
