package rag

import (
	"bytes"
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/floats"
)

// StoredChunk is a transcript chunk persisted with its embedding.
type StoredChunk struct {
	ID            string
	Ticker        string
	FiscalYear    int
	FiscalQuarter int
	ChunkIndex    int
	Section       string
	Speaker       string
	Content       string
	Embedding     []float64
}

// ScoredChunk is a stored chunk with its query similarity.
type ScoredChunk struct {
	StoredChunk
	Score float64
}

// Store persists transcript chunks and runs brute-force cosine search over
// their embeddings. Corpus sizes here are small enough that a scan beats
// maintaining an index.
type Store struct {
	db *sql.DB
}

// NewStore creates a transcript chunk store.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// ReplaceTranscript atomically swaps the stored chunks for one earnings
// call.
func (s *Store) ReplaceTranscript(ticker string, year, quarter int, chunks []StoredChunk) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(
		"DELETE FROM transcript_chunks WHERE ticker = ? AND fiscal_year = ? AND fiscal_quarter = ?",
		ticker, year, quarter,
	)
	if err != nil {
		return fmt.Errorf("failed to clear transcript chunks: %w", err)
	}

	now := time.Now().Unix()
	for _, chunk := range chunks {
		id := chunk.ID
		if id == "" {
			id = uuid.NewString()
		}
		_, err = tx.Exec(`
			INSERT INTO transcript_chunks
			(id, ticker, fiscal_year, fiscal_quarter, chunk_index, section, speaker, content, embedding, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			id, ticker, year, quarter, chunk.ChunkIndex, chunk.Section, chunk.Speaker,
			chunk.Content, encodeVector(chunk.Embedding), now,
		)
		if err != nil {
			return fmt.Errorf("failed to insert transcript chunk: %w", err)
		}
	}
	return tx.Commit()
}

// Chunks returns the stored chunks for one earnings call in order.
func (s *Store) Chunks(ticker string, year, quarter int) ([]StoredChunk, error) {
	rows, err := s.db.Query(`
		SELECT id, ticker, fiscal_year, fiscal_quarter, chunk_index, section, speaker, content, embedding
		FROM transcript_chunks
		WHERE ticker = ? AND fiscal_year = ? AND fiscal_quarter = ?
		ORDER BY chunk_index`, ticker, year, quarter)
	if err != nil {
		return nil, fmt.Errorf("failed to query transcript chunks: %w", err)
	}
	defer rows.Close()
	return scanChunks(rows)
}

// Transcripts lists the distinct earnings calls in the store.
func (s *Store) Transcripts() ([]TranscriptRef, error) {
	rows, err := s.db.Query(`
		SELECT ticker, fiscal_year, fiscal_quarter, COUNT(*)
		FROM transcript_chunks
		GROUP BY ticker, fiscal_year, fiscal_quarter
		ORDER BY ticker, fiscal_year DESC, fiscal_quarter DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list transcripts: %w", err)
	}
	defer rows.Close()

	refs := []TranscriptRef{}
	for rows.Next() {
		var ref TranscriptRef
		if err := rows.Scan(&ref.Ticker, &ref.FiscalYear, &ref.FiscalQuarter, &ref.ChunkCount); err != nil {
			return nil, fmt.Errorf("failed to scan transcript ref: %w", err)
		}
		refs = append(refs, ref)
	}
	return refs, rows.Err()
}

// TranscriptRef identifies one stored earnings call.
type TranscriptRef struct {
	Ticker        string `json:"ticker"`
	FiscalYear    int    `json:"fiscal_year"`
	FiscalQuarter int    `json:"fiscal_quarter"`
	ChunkCount    int    `json:"chunk_count"`
}

// Search returns the topK chunks most similar to the query vector, by
// cosine similarity. An empty ticker searches across all companies.
func (s *Store) Search(queryVector []float64, ticker string, topK int) ([]ScoredChunk, error) {
	query := `
		SELECT id, ticker, fiscal_year, fiscal_quarter, chunk_index, section, speaker, content, embedding
		FROM transcript_chunks WHERE embedding IS NOT NULL`
	args := []interface{}{}
	if ticker != "" {
		query += " AND ticker = ?"
		args = append(args, ticker)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query embeddings: %w", err)
	}
	defer rows.Close()

	candidates, err := scanChunks(rows)
	if err != nil {
		return nil, err
	}

	scored := make([]ScoredChunk, 0, len(candidates))
	for _, chunk := range candidates {
		if len(chunk.Embedding) != len(queryVector) {
			continue
		}
		scored = append(scored, ScoredChunk{
			StoredChunk: chunk,
			Score:       cosineSimilarity(queryVector, chunk.Embedding),
		})
	}
	sort.SliceStable(scored, func(i, j int) bool { return scored[i].Score > scored[j].Score })

	if topK > 0 && len(scored) > topK {
		scored = scored[:topK]
	}
	return scored, nil
}

func scanChunks(rows *sql.Rows) ([]StoredChunk, error) {
	chunks := []StoredChunk{}
	for rows.Next() {
		var chunk StoredChunk
		var embedding []byte
		err := rows.Scan(&chunk.ID, &chunk.Ticker, &chunk.FiscalYear, &chunk.FiscalQuarter,
			&chunk.ChunkIndex, &chunk.Section, &chunk.Speaker, &chunk.Content, &embedding)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transcript chunk: %w", err)
		}
		chunk.Embedding = decodeVector(embedding)
		chunks = append(chunks, chunk)
	}
	return chunks, rows.Err()
}

// encodeVector packs a vector as little-endian float64 bytes.
func encodeVector(vector []float64) []byte {
	if len(vector) == 0 {
		return nil
	}
	buf := bytes.NewBuffer(make([]byte, 0, len(vector)*8))
	for _, v := range vector {
		var raw [8]byte
		binary.LittleEndian.PutUint64(raw[:], math.Float64bits(v))
		buf.Write(raw[:])
	}
	return buf.Bytes()
}

func decodeVector(data []byte) []float64 {
	if len(data) == 0 || len(data)%8 != 0 {
		return nil
	}
	vector := make([]float64, len(data)/8)
	for i := range vector {
		vector[i] = math.Float64frombits(binary.LittleEndian.Uint64(data[i*8:]))
	}
	return vector
}

func cosineSimilarity(a, b []float64) float64 {
	normA := floats.Norm(a, 2)
	normB := floats.Norm(b, 2)
	if normA == 0 || normB == 0 {
		return 0
	}
	return floats.Dot(a, b) / (normA * normB)
}
