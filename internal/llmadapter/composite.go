package llmadapter

import "context"

// CompositeProvider routes chat calls to one Provider and embedding calls to
// another - the default pairing is DeepSeek chat + Gemini embeddings, since
// DeepSeekProvider has no embedding endpoint and GenAIEmbedder has no chat
// endpoint. Name and SupportsSampling defer to the chat side, since that's
// the provider identity a caller cares about for reindex detection
// (DetectProviderChange) and sampling negotiation; HealthCheck checks the
// chat side first and then the embedding side.
type CompositeProvider struct {
	Chatter  Provider
	Embedder Provider
}

func NewCompositeProvider(chatter, embedder Provider) *CompositeProvider {
	return &CompositeProvider{Chatter: chatter, Embedder: embedder}
}

func (c *CompositeProvider) Name() string { return c.Chatter.Name() }

func (c *CompositeProvider) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	return c.Chatter.Chat(ctx, req)
}

func (c *CompositeProvider) ChatStream(ctx context.Context, req ChatRequest) (<-chan StreamEvent, error) {
	return c.Chatter.ChatStream(ctx, req)
}

func (c *CompositeProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	return c.Embedder.Embed(ctx, text)
}

func (c *CompositeProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	return c.Embedder.EmbedBatch(ctx, texts)
}

func (c *CompositeProvider) Dimensions() int { return c.Embedder.Dimensions() }

func (c *CompositeProvider) SupportsSampling() bool {
	if s, ok := c.Chatter.(SamplingSupporter); ok {
		return s.SupportsSampling()
	}
	return false
}

func (c *CompositeProvider) HealthCheck(ctx context.Context) error {
	if h, ok := c.Chatter.(HealthChecker); ok {
		if err := h.HealthCheck(ctx); err != nil {
			return err
		}
	}
	if h, ok := c.Embedder.(HealthChecker); ok {
		return h.HealthCheck(ctx)
	}
	return nil
}
