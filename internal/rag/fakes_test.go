package rag

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"sync"
	"unicode"

	"pdf-rag/internal/models"
)

const fakeDims = 64

// wordEmbedder hashes lower-cased words into a fixed number of buckets, so
// texts sharing words end up close together.
type wordEmbedder struct {
	err error
}

func (e wordEmbedder) embed(text string) []float32 {
	vec := make([]float32, fakeDims+1)
	vec[fakeDims] = 0.1
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, w := range words {
		h := fnv.New32a()
		h.Write([]byte(w))
		vec[h.Sum32()%fakeDims]++
	}
	var norm float64
	for _, v := range vec {
		norm += float64(v * v)
	}
	norm = math.Sqrt(norm)
	for i := range vec {
		vec[i] = float32(float64(vec[i]) / norm)
	}
	return vec
}

func (e wordEmbedder) EmbedDocuments(_ context.Context, texts []string) ([][]float32, error) {
	if e.err != nil {
		return nil, e.err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = e.embed(t)
	}
	return out, nil
}

func (e wordEmbedder) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	if e.err != nil {
		return nil, e.err
	}
	return e.embed(text), nil
}

// recordingGenerator keeps every prompt and answers with reply.
type recordingGenerator struct {
	mu      sync.Mutex
	prompts []string
	reply   func(prompt string) string
	err     error
}

func (g *recordingGenerator) Generate(_ context.Context, prompt string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.prompts = append(g.prompts, prompt)
	if g.err != nil {
		return "", g.err
	}
	if g.reply == nil {
		return "  ok  ", nil
	}
	return g.reply(prompt), nil
}

func (g *recordingGenerator) lastPrompt() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.prompts) == 0 {
		return ""
	}
	return g.prompts[len(g.prompts)-1]
}

type recordingArchiver struct {
	names []string
	err   error
}

func (a *recordingArchiver) Archive(_ context.Context, filename string, _ []byte) (string, error) {
	a.names = append(a.names, filename)
	if a.err != nil {
		return "", a.err
	}
	return "uploads/x/" + filename, nil
}

// failingIndex wraps an index and fails chosen operations.
type failingIndex struct {
	VectorIndex
	replaceErr error
	queryErr   error
}

func (f failingIndex) ReplaceAll(ctx context.Context, entries []models.IndexEntry) error {
	if f.replaceErr != nil {
		return f.replaceErr
	}
	return f.VectorIndex.ReplaceAll(ctx, entries)
}

func (f failingIndex) Query(ctx context.Context, embedding []float32, k int) ([]string, error) {
	if f.queryErr != nil {
		return nil, f.queryErr
	}
	return f.VectorIndex.Query(ctx, embedding, k)
}
