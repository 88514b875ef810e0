// Package llmadapter provides a provider-agnostic interface over chat,
// tool-calling, and embedding LLM backends, plus the SSE streaming state
// machine, structured-output JSON repair, a replay/mock provider for tests,
// and a budget-gated decorator. Concrete providers (deepseek.go,
// genai_embedder.go) adapt a specific API to this interface the way the
// teacher's embedding package adapted Ollama and GenAI to EmbeddingEngine.
package llmadapter

import "context"

// Role mirrors the chat message roles every provider in the pack speaks.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// Message is one turn of a chat conversation sent to a provider.
type Message struct {
	Role       Role
	Content    string
	ToolCallID string // set on RoleTool messages, echoes the call being answered
	ToolCalls  []ToolCall
}

// ToolDef describes a callable tool in JSON-Schema form, passed to providers
// that support tool-calling.
type ToolDef struct {
	Name        string
	Description string
	Parameters  map[string]interface{} // JSON Schema
}

// ToolCall is a provider's request to invoke a tool.
type ToolCall struct {
	ID        string
	Name      string
	Arguments string // raw JSON
}

// ChatRequest is a single non-streaming or streaming chat call.
type ChatRequest struct {
	Model       string
	Messages    []Message
	Tools       []ToolDef
	MaxTokens   int
	Temperature float64
}

// ChatResponse is a completed (non-streaming) chat call result.
type ChatResponse struct {
	Content           string
	ToolCalls         []ToolCall
	InputTokens       int
	OutputTokens      int
	CachedInputTokens int // of InputTokens, how many the provider served from its prompt cache
	StopReason        string
}

// CachePct reports what percentage of InputTokens came from the provider's
// cache, the chain-reset hysteresis's cache-hit signal. A provider that
// doesn't report cache usage at all reports 0, the conservative case.
func (r ChatResponse) CachePct() int {
	if r.InputTokens <= 0 {
		return 0
	}
	return r.CachedInputTokens * 100 / r.InputTokens
}

// StreamEventKind tags the variant of a streamed chat event.
type StreamEventKind string

const (
	StreamTextDelta  StreamEventKind = "text_delta"
	StreamToolCall   StreamEventKind = "tool_call"
	StreamDone       StreamEventKind = "done"
	StreamError      StreamEventKind = "error"
)

// StreamEvent is one unit of a streaming chat response.
type StreamEvent struct {
	Kind     StreamEventKind
	Text     string
	ToolCall *ToolCall
	Response *ChatResponse // set on StreamDone
	Err      error         // set on StreamError
}

// Provider is the capability set the orchestrator and memory fabric depend
// on. A concrete backend need not implement every method meaningfully - an
// embeddings-only provider can return an error from Chat, as GenAIEmbedder does -
// but the interface is kept this wide (rather than split per-capability) so
// budget gating and replay can wrap any provider uniformly.
type Provider interface {
	Name() string
	Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error)
	ChatStream(ctx context.Context, req ChatRequest) (<-chan StreamEvent, error)
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
}

// SamplingSupporter is an optional capability: providers that can be asked
// to resample/self-correct a structured-output failure implement this.
// Mirrors the teacher's optional HealthChecker pattern on EmbeddingEngine -
// an interface assertion, not a required method.
type SamplingSupporter interface {
	SupportsSampling() bool
}

// HealthChecker is an optional capability for providers that can verify
// reachability before a batch operation begins.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}
