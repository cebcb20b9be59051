package chromemdb

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"runtime"
	"sync"

	"github.com/philippgille/chromem-go"
	"github.com/rs/zerolog/log"

	"pdf-rag/internal/models"
)

// VectorDBManager encapsulates the chromem-go database operations
type VectorDBManager struct {
	mu             sync.RWMutex
	db             *chromem.DB
	collection     *chromem.Collection
	collectionName string
	ids            []string
	inMemory       bool
	dbPath         string
	compress       bool
	encryptionKey  string
	filePath       string
}

// Config selects between an in-memory database and one persisted under Path.
type Config struct {
	Path          string
	Collection    string
	InMemory      bool
	Compress      bool
	EncryptionKey string
}

var errNoEmbeddingFunc = errors.New("chromem: embeddings must be computed before insert")

// embeddings always come from the pipeline's embedder
func noEmbedding(_ context.Context, _ string) ([]float32, error) {
	return nil, errNoEmbeddingFunc
}

// NewVectorDBManager opens the database and starts from an empty collection.
func NewVectorDBManager(cfg Config) (*VectorDBManager, error) {
	var db *chromem.DB
	var err error
	if cfg.InMemory {
		db = chromem.NewDB()
	} else {
		db, err = chromem.NewPersistentDB(cfg.Path, cfg.Compress)
		if err != nil {
			return nil, fmt.Errorf("failed to create database: %v", err)
		}
	}

	m := &VectorDBManager{
		db:             db,
		collectionName: cfg.Collection,
		inMemory:       cfg.InMemory,
		dbPath:         cfg.Path,
		compress:       cfg.Compress,
		encryptionKey:  cfg.EncryptionKey,
		filePath:       filepath.Join(cfg.Path, cfg.Collection+".chromem"),
	}

	// a previous run's chunks would not match the empty session
	if err := m.resetCollection(); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *VectorDBManager) resetCollection() error {
	if m.db.GetCollection(m.collectionName, noEmbedding) != nil {
		if err := m.db.DeleteCollection(m.collectionName); err != nil {
			return fmt.Errorf("failed to drop collection: %v", err)
		}
	}
	c, err := m.db.GetOrCreateCollection(m.collectionName, nil, noEmbedding)
	if err != nil {
		return fmt.Errorf("failed to create/get collection: %v", err)
	}
	m.collection = c
	m.ids = nil
	return nil
}

// ReplaceAll drops the collection and fills a fresh one with entries. If the
// fill fails the previous contents are put back.
func (m *VectorDBManager) ReplaceAll(ctx context.Context, entries []models.IndexEntry) error {
	docs := make([]chromem.Document, len(entries))
	ids := make([]string, len(entries))
	for i, e := range entries {
		if len(e.Embedding) == 0 {
			return fmt.Errorf("entry %s has no embedding", e.ID)
		}
		if len(e.Embedding) != len(entries[0].Embedding) {
			return fmt.Errorf("entry %s has %d dimensions, want %d", e.ID, len(e.Embedding), len(entries[0].Embedding))
		}
		docs[i] = chromem.Document{
			ID:        e.ID,
			Content:   e.Content,
			Metadata:  e.Metadata,
			Embedding: e.Embedding,
		}
		ids[i] = e.ID
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	previous, err := m.snapshot(ctx)
	if err != nil {
		return err
	}
	if err := m.fill(ctx, docs, ids); err != nil {
		if restoreErr := m.fill(context.WithoutCancel(ctx), previous, m.idsOf(previous)); restoreErr != nil {
			log.Error().Err(restoreErr).Str("collection", m.collectionName).Msg("Failed to restore previous collection contents")
		}
		return err
	}

	log.Debug().Str("collection", m.collectionName).Int("count", m.collection.Count()).Msg("Replaced collection contents")

	if m.inMemory && m.encryptionKey != "" && m.dbPath != "" {
		if err := m.export(); err != nil {
			log.Warn().Err(err).Msg("Failed to export collection snapshot")
		}
	}
	return nil
}

// fill resets the collection to exactly docs
func (m *VectorDBManager) fill(ctx context.Context, docs []chromem.Document, ids []string) error {
	if err := m.resetCollection(); err != nil {
		return err
	}
	if len(docs) > 0 {
		if err := m.collection.AddDocuments(ctx, docs, runtime.NumCPU()); err != nil {
			return fmt.Errorf("failed to add documents: %v", err)
		}
		// AddDocuments skips the remaining documents without an error once ctx is done
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("failed to add documents: %v", err)
		}
	}
	m.ids = ids
	return nil
}

// snapshot copies the current documents, embeddings included, in insertion order
func (m *VectorDBManager) snapshot(ctx context.Context) ([]chromem.Document, error) {
	docs := make([]chromem.Document, 0, len(m.ids))
	for _, id := range m.ids {
		doc, err := m.collection.GetByID(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("failed to get document %s: %v", id, err)
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

func (m *VectorDBManager) idsOf(docs []chromem.Document) []string {
	ids := make([]string, len(docs))
	for i, d := range docs {
		ids[i] = d.ID
	}
	return ids
}

// Query returns the content of up to k nearest documents, most similar first.
func (m *VectorDBManager) Query(ctx context.Context, embedding []float32, k int) ([]string, error) {
	if len(embedding) == 0 {
		return nil, fmt.Errorf("query embedding must be provided")
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	n := min(k, m.collection.Count())
	if n <= 0 {
		return nil, nil
	}
	results, err := m.collection.QueryEmbedding(ctx, embedding, n, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to query by similarity: %v", err)
	}

	contents := make([]string, len(results))
	for i, r := range results {
		contents[i] = r.Content
	}
	return contents, nil
}

// GetAll returns every stored chunk in insertion order.
func (m *VectorDBManager) GetAll(ctx context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	contents := make([]string, 0, len(m.ids))
	for _, id := range m.ids {
		doc, err := m.collection.GetByID(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("failed to get document %s: %v", id, err)
		}
		contents = append(contents, doc.Content)
	}
	return contents, nil
}

// export writes an encrypted snapshot of the collection next to dbPath
func (m *VectorDBManager) export() error {
	log.Debug().Msgf("Exporting collection %s to %s (compress: %t)", m.collectionName, m.filePath, m.compress)
	if err := m.db.ExportToFile(m.filePath, m.compress, m.encryptionKey, m.collectionName); err != nil {
		return fmt.Errorf("failed to export database: %v", err)
	}
	return nil
}
