// Package rag provides the retrieval pipeline for earnings transcripts:
// chunking, embedding, storage and semantic search.
package rag

import (
	"regexp"
	"strings"
)

// Default chunking window, in characters.
const (
	DefaultChunkSize    = 1000
	DefaultChunkOverlap = 200
)

// Chunk is a slice of transcript text with positional metadata.
type Chunk struct {
	Content string
	Index   int
	Speaker string
	Section string
}

// Chunker splits text into overlapping windows, preferring sentence and
// paragraph boundaries as break points.
type Chunker struct {
	Size    int
	Overlap int
}

// NewChunker creates a chunker; non-positive values fall back to defaults.
func NewChunker(size, overlap int) *Chunker {
	if size <= 0 {
		size = DefaultChunkSize
	}
	if overlap <= 0 {
		overlap = DefaultChunkOverlap
	}
	return &Chunker{Size: size, Overlap: overlap}
}

// breakSeparators are tried in order when looking for a window boundary.
var breakSeparators = []string{". ", ".\n", "\n\n", "\n", " "}

// ChunkText splits text into overlapping chunks.
func (c *Chunker) ChunkText(text string) []Chunk {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	var chunks []Chunk
	start := 0
	index := 0

	for start < len(text) {
		end := start + c.Size

		if end < len(text) {
			for _, sep := range breakSeparators {
				if breakPoint := strings.LastIndex(text[start:end], sep); breakPoint > 0 {
					end = start + breakPoint + len(sep)
					break
				}
			}
		} else {
			end = len(text)
		}

		if content := strings.TrimSpace(text[start:end]); content != "" {
			chunks = append(chunks, Chunk{Content: content, Index: index})
			index++
		}

		if end >= len(text) {
			break
		}
		next := end - c.Overlap
		if next <= start {
			next = end
		}
		start = next
	}
	return chunks
}

// qaRegex detects the transition into the question-and-answer section.
var qaRegex = regexp.MustCompile(`(?i)questions?\s*(?:and|&)\s*answer|Q\s*&\s*A|Operator.*question`)

// speakerRegex matches "Name:" or "Name --" at the start of a paragraph.
var speakerRegex = regexp.MustCompile(`^([A-Z][A-Za-z\s.,]+(?:CEO|CFO|COO|CTO|President|Analyst|VP|Director)?[^:]*?)(?::|--)`)

var paragraphRegex = regexp.MustCompile(`\n\s*\n+`)

// Sections assigned to transcript chunks.
const (
	SectionPreparedRemarks = "prepared_remarks"
	SectionQandA           = "q_and_a"
)

// ParseTranscript splits an earnings call transcript into chunks tagged
// with the current speaker and section. Paragraphs accumulate under the
// active speaker until the next speaker line.
func (c *Chunker) ParseTranscript(text string) []Chunk {
	var chunks []Chunk
	section := SectionPreparedRemarks
	chunkIndex := 0

	var speaker string
	var pending []string

	flush := func() {
		if len(pending) == 0 {
			return
		}
		for _, chunk := range c.ChunkText(strings.Join(pending, " ")) {
			chunk.Speaker = speaker
			chunk.Section = section
			chunk.Index = chunkIndex
			chunks = append(chunks, chunk)
			chunkIndex++
		}
		pending = nil
	}

	for _, para := range paragraphRegex.Split(text, -1) {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}

		if qaRegex.MatchString(para) {
			section = SectionQandA
		}

		if match := speakerRegex.FindStringSubmatchIndex(para); match != nil {
			flush()
			speaker = normalizeSpeaker(para[match[2]:match[3]])
			if remaining := strings.TrimSpace(para[match[1]:]); remaining != "" {
				pending = append(pending, remaining)
			}
			continue
		}
		pending = append(pending, para)
	}
	flush()
	return chunks
}

// speakerRoles maps title keywords to canonical speaker roles.
var speakerRoles = []struct {
	keyword string
	role    string
}{
	{"chief executive", "CEO"},
	{"ceo", "CEO"},
	{"chief financial", "CFO"},
	{"cfo", "CFO"},
	{"coo", "COO"},
	{"cto", "CTO"},
	{"president", "President"},
	{"analyst", "Analyst"},
	{"operator", "Operator"},
}

func normalizeSpeaker(speaker string) string {
	speaker = strings.TrimSpace(speaker)
	lower := strings.ToLower(speaker)
	for _, entry := range speakerRoles {
		if strings.Contains(lower, entry.keyword) {
			return entry.role
		}
	}
	if len(speaker) > 100 {
		return speaker[:100]
	}
	return speaker
}
