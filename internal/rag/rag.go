package rag

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"

	"pdf-rag/internal/config"
	"pdf-rag/internal/embedding"
	"pdf-rag/internal/models"
	"pdf-rag/internal/session"
)

type Extractor interface {
	Extract(filename string, data []byte) (string, error)
}

type Chunker interface {
	Chunk(source, content string) ([]models.Chunk, error)
}

// VectorIndex is a single collection that is replaced wholesale on every upload.
type VectorIndex interface {
	ReplaceAll(ctx context.Context, entries []models.IndexEntry) error
	Query(ctx context.Context, embedding []float32, k int) ([]string, error)
	GetAll(ctx context.Context) ([]string, error)
}

type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Archiver keeps a copy of the raw upload. It is optional.
type Archiver interface {
	Archive(ctx context.Context, filename string, data []byte) (string, error)
}

// Components are the collaborators a RAG pipeline is wired from.
type Components struct {
	Extractor Extractor
	Chunker   Chunker
	Embedder  embedding.Embedder
	Index     VectorIndex
	Generator Generator
	Archiver  Archiver
	Session   *session.Store
}

type RAG struct {
	extractor    Extractor
	chunker      Chunker
	embedder     embedding.Embedder
	index        VectorIndex
	generator    Generator
	archiver     Archiver
	session      *session.Store
	topK         int
	summaryWords int
}

func NewRAG(c Components, cfg *config.RAGConfig) *RAG {
	r := &RAG{
		extractor:    c.Extractor,
		chunker:      c.Chunker,
		embedder:     c.Embedder,
		index:        c.Index,
		generator:    c.Generator,
		archiver:     c.Archiver,
		session:      c.Session,
		topK:         3,
		summaryWords: 200,
	}
	if r.session == nil {
		r.session = session.NewStore()
	}
	if cfg != nil {
		if cfg.TopK > 0 {
			r.topK = cfg.TopK
		}
		if cfg.SummaryWords > 0 {
			r.summaryWords = cfg.SummaryWords
		}
	}
	return r
}

// Session exposes the store holding the last uploaded document.
func (r *RAG) Session() *session.Store {
	return r.session
}

// Ingest extracts, chunks, embeds and indexes one upload, replacing whatever
// was indexed before. The index is only touched after every earlier step
// succeeded.
func (r *RAG) Ingest(ctx context.Context, filename string, data []byte) (models.IngestResult, error) {
	if filename == "" {
		return models.IngestResult{}, InvalidInput("filename is required")
	}
	if len(data) == 0 {
		return models.IngestResult{}, InvalidInput("uploaded file %s is empty", filename)
	}

	text, err := r.extractor.Extract(filename, data)
	if err != nil {
		return models.IngestResult{}, newError(KindExtraction, "extract "+filename, err)
	}
	r.session.Set(models.Document{Filename: filename, Text: text})
	log.Info().Str("filename", filename).Int("chars", len(text)).Msg("Extracted document text")

	chunks, err := r.chunker.Chunk(filename, text)
	if err != nil {
		return models.IngestResult{}, newError(KindExtraction, "chunk "+filename, err)
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Content
	}
	vectors, err := embedding.EmbedTexts(ctx, r.embedder, texts)
	if err != nil {
		return models.IngestResult{}, newError(KindEmbedding, "embed chunks", err)
	}

	entries := make([]models.IndexEntry, len(chunks))
	for i, c := range chunks {
		entries[i] = models.IndexEntry{
			ID:        fmt.Sprintf("%s_%d", filename, c.Index),
			Content:   c.Content,
			Embedding: vectors[i],
			Metadata: map[string]string{
				models.MetaSource: c.Source,
				models.MetaChunk:  strconv.Itoa(c.Index),
			},
		}
		log.Debug().Str("id", entries[i].ID).Str("content", c.Content).Msg("Stored chunk")
	}

	if err := r.index.ReplaceAll(ctx, entries); err != nil {
		return models.IngestResult{}, newError(KindIndex, "replace index", err)
	}

	if r.archiver != nil {
		key, err := r.archiver.Archive(ctx, filename, data)
		if err != nil {
			log.Warn().Err(err).Str("filename", filename).Msg("Failed to archive upload")
		} else {
			log.Info().Str("object", key).Msg("Archived upload")
		}
	}

	log.Info().Str("filename", filename).Int("chunks", len(chunks)).Msg("Document indexed")
	return models.IngestResult{Filename: filename, Chunks: len(chunks)}, nil
}

// Ask answers question from the top-k chunks. When retrieval yields nothing
// the full text of the last upload is used as context instead.
func (r *RAG) Ask(ctx context.Context, question, memory string) (models.AskResponse, error) {
	if strings.TrimSpace(question) == "" {
		return models.AskResponse{}, InvalidInput("question is required")
	}

	queryEmbedding, err := embedding.EmbedQuery(ctx, r.embedder, question)
	if err != nil {
		return models.AskResponse{}, newError(KindEmbedding, "embed question", err)
	}

	hits, err := r.index.Query(ctx, queryEmbedding, r.topK)
	if err != nil {
		return models.AskResponse{}, newError(KindIndex, "query index", err)
	}

	promptContext := JoinContext(hits)
	if strings.TrimSpace(promptContext) == "" {
		log.Debug().Msg("Retrieval returned no context, falling back to document text")
		promptContext = r.session.Text()
	}
	log.Debug().Int("hits", len(hits)).Str("context", promptContext).Msg("Retrieved context")

	answer, err := r.generator.Generate(ctx, BuildAnswerPrompt(promptContext, question, memory))
	if err != nil {
		return models.AskResponse{}, newError(KindGeneration, "generate answer", err)
	}

	return models.AskResponse{Answer: strings.TrimSpace(answer), Context: promptContext}, nil
}

// Summarize summarizes the last uploaded document in about words words.
// Zero selects the configured default.
func (r *RAG) Summarize(ctx context.Context, words int) (string, error) {
	if words < 0 {
		return "", InvalidInput("words must be positive, got %d", words)
	}
	if words == 0 {
		words = r.summaryWords
	}

	doc, ok := r.session.Document()
	if !ok || strings.TrimSpace(doc.Text) == "" {
		return "", newError(KindNoDocument, "summarize", ErrNoDocument)
	}

	summary, err := r.generator.Generate(ctx, BuildSummaryPrompt(doc.Text, words))
	if err != nil {
		return "", newError(KindGeneration, "generate summary", err)
	}
	log.Info().Str("filename", doc.Filename).Int("words", words).Msg("Summarized document")
	return strings.TrimSpace(summary), nil
}

// Chunks lists every chunk currently in the index.
func (r *RAG) Chunks(ctx context.Context) ([]string, error) {
	all, err := r.index.GetAll(ctx)
	if err != nil {
		return nil, newError(KindIndex, "list chunks", err)
	}
	return all, nil
}
