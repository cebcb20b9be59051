package main

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"pdf-rag/internal/chromemdb"
	"pdf-rag/internal/config"
	"pdf-rag/internal/db"
	"pdf-rag/internal/elasticsearch"
	"pdf-rag/internal/embedding"
	"pdf-rag/internal/helper"
	"pdf-rag/internal/llmservice"
	"pdf-rag/internal/parser"
	"pdf-rag/internal/rag"
	"pdf-rag/internal/session"
	"pdf-rag/internal/storage"
)

// app owns the pipeline and whatever connections it holds open.
type app struct {
	rag     *rag.RAG
	closers []func() error
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	a := &app{}

	embedder, err := embedding.NewEmbedder(&cfg.EmbedLLM)
	if err != nil {
		return nil, fmt.Errorf("init embedder: %w", err)
	}

	generator, err := llmservice.NewClient(&cfg.InferLLM)
	if err != nil {
		return nil, fmt.Errorf("init inference client: %w", err)
	}

	index, err := a.newIndex(ctx, &cfg.VectorDB)
	if err != nil {
		a.Close()
		return nil, err
	}
	// the session starts empty, so the index does too
	if err := index.ReplaceAll(ctx, nil); err != nil {
		a.Close()
		return nil, fmt.Errorf("clear %s index: %w", cfg.VectorDB.Type, err)
	}

	var archiver rag.Archiver
	if cfg.Storage.Enabled {
		client, err := storage.New(storage.Config{
			Endpoint:        cfg.Storage.Endpoint,
			Bucket:          cfg.Storage.Bucket,
			AccessKeyID:     cfg.Storage.AccessKeyID,
			SecretAccessKey: cfg.Storage.SecretAccessKey,
			UseSSL:          cfg.Storage.UseSSL,
		})
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("init storage: %w", err)
		}
		if err := client.EnsureBucket(ctx); err != nil {
			a.Close()
			return nil, err
		}
		log.Info().Str("bucket", client.Bucket()).Msg("Archiving uploads")
		archiver = client
	}

	a.rag = rag.NewRAG(rag.Components{
		Extractor: parser.NewExtractor(),
		Chunker:   parser.NewChunker(&cfg.RAG),
		Embedder:  embedder,
		Index:     index,
		Generator: generator,
		Archiver:  archiver,
		Session:   session.NewStore(),
	}, &cfg.RAG)
	return a, nil
}

func (a *app) newIndex(ctx context.Context, cfg *config.VectorDBConfig) (rag.VectorIndex, error) {
	log.Info().Str("type", cfg.Type).Msg("Opening vector index")

	switch cfg.Type {
	case "chromem":
		c := cfg.Chromem
		if !c.InMemory || c.EncryptionKey != "" {
			if err := helper.CreateFolder(c.Path); err != nil {
				return nil, fmt.Errorf("create chromem folder: %w", err)
			}
		}
		return chromemdb.NewVectorDBManager(chromemdb.Config{
			Path:          c.Path,
			Collection:    c.Collection,
			InMemory:      c.InMemory,
			Compress:      c.Compress,
			EncryptionKey: c.EncryptionKey,
		})
	case "pgvector":
		idx, err := db.NewIndex(ctx, &cfg.Database)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, idx.Close)
		return idx, nil
	case "elasticsearch":
		client, err := elasticsearch.New(elasticsearch.Config{
			Addresses: cfg.Elasticsearch.Addresses,
			Index:     cfg.Elasticsearch.Index,
			Username:  cfg.Elasticsearch.Username,
			Password:  cfg.Elasticsearch.Password,
		})
		if err != nil {
			return nil, err
		}
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if !client.Ping(pingCtx) {
			return nil, fmt.Errorf("elasticsearch not reachable at %v", cfg.Elasticsearch.Addresses)
		}
		return client, nil
	default:
		return nil, fmt.Errorf("unknown vector_db type: %s", cfg.Type)
	}
}

func (a *app) Close() {
	for _, c := range a.closers {
		if err := c(); err != nil {
			log.Warn().Err(err).Msg("Error closing resource")
		}
	}
}
