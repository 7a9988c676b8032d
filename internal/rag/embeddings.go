package rag

import (
	"context"
	"fmt"

	"google.golang.org/genai"
)

// Embedder turns text into dense vectors.
type Embedder interface {
	EmbedText(ctx context.Context, text string) ([]float64, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float64, error)
}

// GeminiEmbedder embeds text with the Gemini embedding models.
type GeminiEmbedder struct {
	client    *genai.Client
	model     string
	dimension int
}

// NewGeminiEmbedder creates an embedder for the given model and output
// dimension.
func NewGeminiEmbedder(ctx context.Context, apiKey, model string, dimension int) (*GeminiEmbedder, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}
	return &GeminiEmbedder{client: client, model: model, dimension: dimension}, nil
}

// Dimension returns the embedding vector size.
func (e *GeminiEmbedder) Dimension() int {
	return e.dimension
}

// EmbedText embeds a single text.
func (e *GeminiEmbedder) EmbedText(ctx context.Context, text string) ([]float64, error) {
	vectors, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedBatch embeds multiple texts in one request.
func (e *GeminiEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float64, error) {
	contents := make([]*genai.Content, 0, len(texts))
	for _, text := range texts {
		contents = append(contents, genai.NewContentFromText(text, genai.RoleUser))
	}

	dimension := int32(e.dimension)
	resp, err := e.client.Models.EmbedContent(ctx, e.model, contents, &genai.EmbedContentConfig{
		OutputDimensionality: &dimension,
	})
	if err != nil {
		return nil, fmt.Errorf("embedding request failed: %w", err)
	}
	if len(resp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("embedding count mismatch: got %d, want %d", len(resp.Embeddings), len(texts))
	}

	vectors := make([][]float64, 0, len(resp.Embeddings))
	for _, embedding := range resp.Embeddings {
		vector := make([]float64, len(embedding.Values))
		for i, v := range embedding.Values {
			vector[i] = float64(v)
		}
		vectors = append(vectors, vector)
	}
	return vectors, nil
}
