package db

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"

	_ "github.com/lib/pq"
	"github.com/pgvector/pgvector-go"
	"github.com/rs/zerolog/log"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/extra/bundebug"

	"pdf-rag/internal/config"
	"pdf-rag/internal/models"
)

type Document struct {
	bun.BaseModel  `bun:"table:documents,alias:d"`
	ID             string          `bun:"id,pk"`
	Content        string          `bun:"content,notnull"`
	Embedding      pgvector.Vector `bun:"embedding,notnull,type:vector"`
	SourceFilename string          `bun:"source_filename,notnull"`
	ChunkID        int             `bun:"chunk_id,notnull"`
}

func NewDB(sqldb *sql.DB, debug bool) *bun.DB {
	db := bun.NewDB(sqldb, pgdialect.New())
	if debug {
		db.AddQueryHook(bundebug.NewQueryHook(bundebug.WithVerbose(true)))
	}
	return db
}

// ConnectDB opens a connection pool with bun's pgdriver or with lib/pq.
func ConnectDB(cfg *config.DatabaseConfig) (*sql.DB, error) {
	switch cfg.Driver {
	case "postgres", "pq":
		return sql.Open("postgres", cfg.DSN)
	case "pgdriver", "":
		opts := []pgdriver.Option{pgdriver.WithDSN(cfg.DSN)}
		if cfg.Password != "" {
			opts = append(opts, pgdriver.WithPassword(cfg.Password))
		}
		return sql.OpenDB(pgdriver.NewConnector(opts...)), nil
	default:
		return nil, fmt.Errorf("unknown database driver: %s", cfg.Driver)
	}
}

func InitDB(ctx context.Context, db *bun.DB) error {
	if _, err := db.ExecContext(ctx, "CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
		return fmt.Errorf("create vector extension: %w", err)
	}
	_, err := db.NewCreateTable().Model((*Document)(nil)).IfNotExists().Exec(ctx)
	return err
}

// StoreDocuments replaces the whole table in one transaction.
func StoreDocuments(ctx context.Context, db *bun.DB, docs []Document) error {
	return db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewDelete().Model((*Document)(nil)).Where("TRUE").Exec(ctx); err != nil {
			return err
		}
		if len(docs) == 0 {
			return nil
		}
		_, err := tx.NewInsert().Model(&docs).Exec(ctx)
		return err
	})
}

func SearchDocuments(ctx context.Context, db *bun.DB, queryEmbedding []float32, limit int) ([]Document, error) {
	var docs []Document
	err := db.NewSelect().
		Model(&docs).
		Column("id", "content").
		OrderExpr("embedding <-> ?", pgvector.NewVector(queryEmbedding)).
		OrderExpr("chunk_id ASC").
		Limit(limit).
		Scan(ctx)
	return docs, err
}

func ListDocuments(ctx context.Context, db *bun.DB) ([]Document, error) {
	var docs []Document
	err := db.NewSelect().
		Model(&docs).
		Column("id", "content").
		OrderExpr("chunk_id ASC").
		Scan(ctx)
	return docs, err
}

// drop table documents
func DropDocuments(ctx context.Context, db *bun.DB) error {
	_, err := db.NewDropTable().Model((*Document)(nil)).IfExists().Exec(ctx)
	return err
}

// Index is the pgvector-backed vector index.
type Index struct {
	db *bun.DB
}

// NewIndex connects, makes sure the schema exists and returns the index.
func NewIndex(ctx context.Context, cfg *config.DatabaseConfig) (*Index, error) {
	sqldb, err := ConnectDB(cfg)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	bdb := NewDB(sqldb, cfg.Debug)
	if err := InitDB(ctx, bdb); err != nil {
		bdb.Close()
		return nil, fmt.Errorf("init database: %w", err)
	}
	return &Index{db: bdb}, nil
}

func (i *Index) ReplaceAll(ctx context.Context, entries []models.IndexEntry) error {
	docs := make([]Document, len(entries))
	for n, e := range entries {
		chunkID, err := strconv.Atoi(e.Metadata[models.MetaChunk])
		if err != nil {
			chunkID = n
		}
		docs[n] = Document{
			ID:             e.ID,
			Content:        e.Content,
			Embedding:      pgvector.NewVector(e.Embedding),
			SourceFilename: e.Metadata[models.MetaSource],
			ChunkID:        chunkID,
		}
	}
	if err := StoreDocuments(ctx, i.db, docs); err != nil {
		return fmt.Errorf("store documents: %w", err)
	}
	log.Debug().Int("count", len(docs)).Msg("Replaced documents table")
	return nil
}

func (i *Index) Query(ctx context.Context, embedding []float32, k int) ([]string, error) {
	if k <= 0 {
		return nil, nil
	}
	docs, err := SearchDocuments(ctx, i.db, embedding, k)
	if err != nil {
		return nil, fmt.Errorf("search documents: %w", err)
	}
	return contents(docs), nil
}

func (i *Index) GetAll(ctx context.Context) ([]string, error) {
	docs, err := ListDocuments(ctx, i.db)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	return contents(docs), nil
}

func (i *Index) Close() error {
	return i.db.Close()
}

func contents(docs []Document) []string {
	out := make([]string, len(docs))
	for n, d := range docs {
		out[n] = d.Content
	}
	return out
}
