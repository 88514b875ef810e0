package llmadapter

import (
	"context"
	"fmt"

	"google.golang.org/genai"

	"github.com/ConaryLabs/mira/internal/logging"
)

// genaiMaxBatchSize mirrors the teacher's embedding.GenAIEngine: the API
// rejects batches larger than 100 requests.
const genaiMaxBatchSize = 100

// GenAIEmbedder wraps Google's Gemini embedding API as a Provider whose chat
// methods are unimplemented - combine it with DeepSeekProvider behind a
// small multiplexing Provider when a config wants DeepSeek chat + Gemini
// embeddings, which is the default pairing (internal/config/llm.go).
type GenAIEmbedder struct {
	client   *genai.Client
	model    string
	taskType string
	dims     int
}

func NewGenAIEmbedder(ctx context.Context, apiKey, model, taskType string, dims int) (*GenAIEmbedder, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("genai embedder: api key required")
	}
	if model == "" {
		model = "gemini-embedding-001"
	}
	if taskType == "" {
		taskType = "SEMANTIC_SIMILARITY"
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apiKey})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}

	return &GenAIEmbedder{client: client, model: model, taskType: taskType, dims: dims}, nil
}

func (e *GenAIEmbedder) Name() string { return "genai:" + e.model }

func (e *GenAIEmbedder) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	return nil, fmt.Errorf("genai embedder: chat not supported")
}

func (e *GenAIEmbedder) ChatStream(ctx context.Context, req ChatRequest) (<-chan StreamEvent, error) {
	return nil, fmt.Errorf("genai embedder: chat not supported")
}

func (e *GenAIEmbedder) Dimensions() int { return e.dims }

func (e *GenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	contents := []*genai.Content{genai.NewContentFromText(text, genai.RoleUser)}
	resp, err := e.client.Models.EmbedContent(ctx, e.model, contents, &genai.EmbedContentConfig{
		OutputDimensionality: int32Ptr(int32(e.dims)),
	})
	if err != nil {
		return nil, fmt.Errorf("genai embed: %w", err)
	}
	if len(resp.Embeddings) == 0 {
		return nil, fmt.Errorf("genai embed: empty response")
	}
	return resp.Embeddings[0].Values, nil
}

func (e *GenAIEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += genaiMaxBatchSize {
		end := start + genaiMaxBatchSize
		if end > len(texts) {
			end = len(texts)
		}
		batch := texts[start:end]

		contents := make([]*genai.Content, len(batch))
		for i, t := range batch {
			contents[i] = genai.NewContentFromText(t, genai.RoleUser)
		}
		resp, err := e.client.Models.EmbedContent(ctx, e.model, contents, &genai.EmbedContentConfig{
			OutputDimensionality: int32Ptr(int32(e.dims)),
		})
		if err != nil {
			logging.Get(logging.CategoryLLM).Warn("genai embed batch [%d:%d] failed: %v", start, end, err)
			return nil, fmt.Errorf("genai embed batch: %w", err)
		}
		for _, emb := range resp.Embeddings {
			out = append(out, emb.Values)
		}
	}
	return out, nil
}

func (e *GenAIEmbedder) HealthCheck(ctx context.Context) error {
	_, err := e.Embed(ctx, "healthcheck")
	return err
}

func int32Ptr(i int32) *int32 { return &i }
