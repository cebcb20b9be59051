package parser

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/tmc/langchaingo/textsplitter"

	"pdf-rag/internal/config"
	"pdf-rag/internal/models"
)

const (
	defaultChunkSize            = 1200 // characters
	defaultChunkOverlap         = 300  // characters
	defaultSingleChunkThreshold = 2000 // characters
)

// paragraph, line, sentence, word, then a hard character cut
var chunkSeparators = []string{"\n\n", "\n", ". ", " ", ""}

type Chunker struct {
	threshold int
	splitter  textsplitter.RecursiveCharacter
}

// NewChunker builds a chunker from the rag section of the config. A nil config
// or zero values fall back to 1200/300 with a 2000 character single chunk cutoff.
func NewChunker(cfg *config.RAGConfig) *Chunker {
	size, overlap, threshold := defaultChunkSize, defaultChunkOverlap, defaultSingleChunkThreshold
	if cfg != nil {
		if cfg.ChunkSize > 0 {
			size = cfg.ChunkSize
		}
		if cfg.ChunkOverlap >= 0 && cfg.ChunkOverlap < size {
			overlap = cfg.ChunkOverlap
		}
		if cfg.SingleChunkThreshold > 0 {
			threshold = cfg.SingleChunkThreshold
		}
	}
	if overlap >= size {
		overlap = size / 4
	}

	return &Chunker{
		threshold: threshold,
		splitter: textsplitter.NewRecursiveCharacter(
			textsplitter.WithChunkSize(size),
			textsplitter.WithChunkOverlap(overlap),
			textsplitter.WithSeparators(chunkSeparators),
		),
	}
}

// Chunk splits a document's text. Short documents become exactly one chunk
// holding the full text; longer ones go through the recursive splitter.
func (c *Chunker) Chunk(source, content string) ([]models.Chunk, error) {
	if utf8.RuneCountInString(content) < c.threshold {
		return []models.Chunk{{Source: source, Index: 0, Content: content}}, nil
	}

	parts, err := c.splitter.SplitText(content)
	if err != nil {
		return nil, fmt.Errorf("split text: %w", err)
	}

	chunks := make([]models.Chunk, 0, len(parts))
	for _, part := range parts {
		if strings.TrimSpace(part) == "" {
			continue
		}
		chunks = append(chunks, models.Chunk{
			Source:  source,
			Index:   len(chunks),
			Content: part,
		})
	}
	return chunks, nil
}
