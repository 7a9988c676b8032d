package rag

import (
	"context"
	"fmt"
	"math"
)

// SearchResult is one transcript chunk matched by a query.
type SearchResult struct {
	Ticker         string  `json:"ticker"`
	FiscalYear     int     `json:"fiscal_year"`
	FiscalQuarter  int     `json:"fiscal_quarter"`
	ChunkContent   string  `json:"chunk_content"`
	Speaker        string  `json:"speaker,omitempty"`
	Section        string  `json:"section,omitempty"`
	RelevanceScore float64 `json:"relevance_score"`
}

// SearchResponse wraps search results with the originating query.
type SearchResponse struct {
	Query   string         `json:"query"`
	Results []SearchResult `json:"results"`
}

// Searcher runs semantic queries against the transcript store.
type Searcher struct {
	store    *Store
	embedder Embedder
}

// NewSearcher creates a transcript searcher.
func NewSearcher(store *Store, embedder Embedder) *Searcher {
	return &Searcher{store: store, embedder: embedder}
}

// Search embeds the query and returns the topK most similar chunks,
// optionally restricted to one ticker.
func (s *Searcher) Search(ctx context.Context, query, ticker string, topK int) (*SearchResponse, error) {
	if topK <= 0 {
		topK = 5
	}

	queryVector, err := s.embedder.EmbedText(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	scored, err := s.store.Search(queryVector, ticker, topK)
	if err != nil {
		return nil, err
	}

	results := make([]SearchResult, 0, len(scored))
	for _, chunk := range scored {
		results = append(results, SearchResult{
			Ticker:         chunk.Ticker,
			FiscalYear:     chunk.FiscalYear,
			FiscalQuarter:  chunk.FiscalQuarter,
			ChunkContent:   chunk.Content,
			Speaker:        chunk.Speaker,
			Section:        chunk.Section,
			RelevanceScore: round4(chunk.Score),
		})
	}
	return &SearchResponse{Query: query, Results: results}, nil
}

func round4(val float64) float64 {
	return math.Round(val*10000) / 10000
}
