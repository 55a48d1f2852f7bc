package ai

import (
	"context"

	genai "github.com/google/generative-ai-go/genai"

	"mediscan-backend/internal/faults"
	"mediscan-backend/internal/logger"
)

// GeminiEmbedder produces embedding vectors through the shared Gemini
// client. The vector dimension is probed once at construction so index
// consumers can validate persisted state against the live provider.
type GeminiEmbedder struct {
	client    *GeminiClient
	modelName string
	dimension int
}

func NewGeminiEmbedder(ctx context.Context, client *GeminiClient, modelName string) (*GeminiEmbedder, error) {
	e := &GeminiEmbedder{client: client, modelName: modelName}

	// Probe the model once to learn the output dimension.
	vec, err := e.EmbedQuery(ctx, "dimension probe")
	if err != nil {
		return nil, faults.Wrap(faults.DependencyUnavailable, err, "embedding model initialization failed")
	}
	e.dimension = len(vec)

	logger.Info("Embedding model ready", "model", modelName, "dimension", e.dimension)
	return e, nil
}

// Dimension returns the vector length this model produces.
func (e *GeminiEmbedder) Dimension() int {
	return e.dimension
}

// EmbedQuery embeds a single text.
func (e *GeminiEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, faults.New(faults.InputError, "cannot embed empty text")
	}

	model := e.client.client.EmbeddingModel(e.modelName)
	resp, err := model.EmbedContent(ctx, genai.Text(text))
	if err != nil {
		return nil, classifyProviderError(err)
	}
	if resp.Embedding == nil || len(resp.Embedding.Values) == 0 {
		return nil, faults.New(faults.ProviderError, "no embedding returned")
	}
	return resp.Embedding.Values, nil
}

// EmbedBatch embeds all texts in one batched call. It is all-or-nothing:
// any failure or count mismatch fails the whole batch.
func (e *GeminiEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, faults.New(faults.InputError, "no texts to embed")
	}

	model := e.client.client.EmbeddingModel(e.modelName)
	batch := model.NewBatch()
	for _, t := range texts {
		batch.AddContent(genai.Text(t))
	}

	resp, err := model.BatchEmbedContents(ctx, batch)
	if err != nil {
		return nil, classifyProviderError(err)
	}
	if len(resp.Embeddings) != len(texts) {
		return nil, faults.New(faults.ProviderError, "embedding count mismatch: sent %d, got %d", len(texts), len(resp.Embeddings))
	}

	vectors := make([][]float32, len(resp.Embeddings))
	for i, emb := range resp.Embeddings {
		if emb == nil || len(emb.Values) == 0 {
			return nil, faults.New(faults.ProviderError, "empty embedding at position %d", i)
		}
		vectors[i] = emb.Values
	}
	return vectors, nil
}
