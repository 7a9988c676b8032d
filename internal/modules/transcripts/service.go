// Package transcripts manages earnings call transcripts: ingestion into the
// retrieval store, semantic search and per-call summaries.
package transcripts

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"github.com/cbottock-ai/VeraScore/internal/rag"
)

// IngestResult reports the outcome of a transcript ingestion.
type IngestResult struct {
	Ticker        string `json:"ticker"`
	FiscalYear    int    `json:"fiscal_year"`
	FiscalQuarter int    `json:"fiscal_quarter"`
	ChunksStored  int    `json:"chunks_stored"`
	Embedded      bool   `json:"embedded"`
}

// Summary describes one stored earnings call.
type Summary struct {
	Ticker                string   `json:"ticker"`
	FiscalYear            int      `json:"fiscal_year"`
	FiscalQuarter         int      `json:"fiscal_quarter"`
	Summary               string   `json:"summary"`
	KeyTopics             []string `json:"key_topics"`
	Speakers              []string `json:"speakers"`
	PreparedRemarksChunks int      `json:"prepared_remarks_chunks"`
	QAChunks              int      `json:"qa_chunks"`
	TotalChunks           int      `json:"total_chunks"`
}

// Service coordinates transcript parsing, embedding and retrieval.
type Service struct {
	chunker  *rag.Chunker
	embedder rag.Embedder
	store    *rag.Store
	searcher *rag.Searcher
	log      zerolog.Logger
}

// NewService creates a new transcripts service.
func NewService(chunker *rag.Chunker, embedder rag.Embedder, store *rag.Store, log zerolog.Logger) *Service {
	return &Service{
		chunker:  chunker,
		embedder: embedder,
		store:    store,
		searcher: rag.NewSearcher(store, embedder),
		log:      log.With().Str("service", "transcripts").Logger(),
	}
}

// Ingest parses a transcript into speaker-tagged chunks, embeds them and
// stores them, replacing any previous ingestion of the same call. When the
// embedding provider fails the chunks are still stored for later listing;
// they just stay out of semantic search.
func (s *Service) Ingest(ctx context.Context, ticker string, year, quarter int, text string) (*IngestResult, error) {
	ticker = strings.ToUpper(strings.TrimSpace(ticker))

	chunks := s.chunker.ParseTranscript(text)
	if len(chunks) == 0 {
		return nil, fmt.Errorf("no content extracted from transcript")
	}

	stored := make([]rag.StoredChunk, 0, len(chunks))
	texts := make([]string, 0, len(chunks))
	for _, chunk := range chunks {
		stored = append(stored, rag.StoredChunk{
			Ticker:        ticker,
			FiscalYear:    year,
			FiscalQuarter: quarter,
			ChunkIndex:    chunk.Index,
			Section:       chunk.Section,
			Speaker:       chunk.Speaker,
			Content:       chunk.Content,
		})
		texts = append(texts, chunk.Content)
	}

	embedded := false
	vectors, err := s.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		s.log.Error().Err(err).Str("ticker", ticker).Int("year", year).Int("quarter", quarter).
			Msg("Failed to embed transcript chunks")
	} else if len(vectors) == len(stored) {
		for i := range stored {
			stored[i].Embedding = vectors[i]
		}
		embedded = true
	}

	if err := s.store.ReplaceTranscript(ticker, year, quarter, stored); err != nil {
		return nil, err
	}

	s.log.Info().Str("ticker", ticker).Int("year", year).Int("quarter", quarter).
		Int("chunks", len(stored)).Bool("embedded", embedded).Msg("Ingested transcript")
	return &IngestResult{
		Ticker:        ticker,
		FiscalYear:    year,
		FiscalQuarter: quarter,
		ChunksStored:  len(stored),
		Embedded:      embedded,
	}, nil
}

// List returns the stored earnings calls.
func (s *Service) List() ([]rag.TranscriptRef, error) {
	return s.store.Transcripts()
}

// Search runs a semantic query over the stored transcripts.
func (s *Service) Search(ctx context.Context, query, ticker string, topK int) (*rag.SearchResponse, error) {
	return s.searcher.Search(ctx, query, ticker, topK)
}

// Summarize describes one stored call: speakers, section counts, key topics
// and an opening excerpt. Returns nil when the call is not stored.
func (s *Service) Summarize(ticker string, year, quarter int) (*Summary, error) {
	ticker = strings.ToUpper(strings.TrimSpace(ticker))

	chunks, err := s.store.Chunks(ticker, year, quarter)
	if err != nil {
		return nil, err
	}
	if len(chunks) == 0 {
		return nil, nil
	}

	speakerSet := map[string]bool{}
	prepared, qa := 0, 0
	var fullText strings.Builder
	for _, chunk := range chunks {
		if chunk.Speaker != "" {
			speakerSet[chunk.Speaker] = true
		}
		switch chunk.Section {
		case rag.SectionPreparedRemarks:
			prepared++
		case rag.SectionQandA:
			qa++
		}
		fullText.WriteString(chunk.Content)
		fullText.WriteString(" ")
	}

	speakers := make([]string, 0, len(speakerSet))
	for speaker := range speakerSet {
		speakers = append(speakers, speaker)
	}
	sort.Strings(speakers)

	var excerpt strings.Builder
	for i, chunk := range chunks {
		if i >= 3 {
			break
		}
		if excerpt.Len() > 0 {
			excerpt.WriteString(" ")
		}
		content := chunk.Content
		if len(content) > 200 {
			content = content[:200]
		}
		excerpt.WriteString(content)
	}
	summary := excerpt.String()
	if len(summary) > 500 {
		summary = summary[:500] + "..."
	}

	return &Summary{
		Ticker:                ticker,
		FiscalYear:            year,
		FiscalQuarter:         quarter,
		Summary:               summary,
		KeyTopics:             extractKeyTopics(fullText.String()),
		Speakers:              speakers,
		PreparedRemarksChunks: prepared,
		QAChunks:              qa,
		TotalChunks:           len(chunks),
	}, nil
}

// topicKeywords maps display topics to the phrases that signal them.
var topicKeywords = []struct {
	topic    string
	keywords []string
}{
	{"revenue growth", []string{"revenue growth", "top line growth", "sales growth"}},
	{"margins", []string{"gross margin", "operating margin", "profit margin", "margin expansion"}},
	{"guidance", []string{"guidance", "outlook", "forecast", "expect"}},
	{"AI", []string{"artificial intelligence", " ai ", "machine learning", "generative ai"}},
	{"cloud", []string{"cloud", "aws", "azure", "gcp"}},
	{"cost reduction", []string{"cost cutting", "cost reduction", "efficiency", "restructuring"}},
	{"acquisitions", []string{"acquisition", "merger", "m&a", "acquired"}},
	{"new products", []string{"new product", "product launch", "innovation"}},
	{"supply chain", []string{"supply chain", "inventory", "logistics"}},
	{"macroeconomic", []string{"macro", "recession", "inflation", "interest rate"}},
}

// extractKeyTopics finds up to five topics mentioned in the text.
func extractKeyTopics(text string) []string {
	lower := strings.ToLower(text)
	topics := []string{}
	for _, entry := range topicKeywords {
		for _, keyword := range entry.keywords {
			if strings.Contains(lower, keyword) {
				topics = append(topics, entry.topic)
				break
			}
		}
		if len(topics) == 5 {
			break
		}
	}
	return topics
}
