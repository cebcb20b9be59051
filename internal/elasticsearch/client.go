package elasticsearch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/rs/zerolog/log"

	"pdf-rag/internal/models"
)

// Config holds Elasticsearch client configuration.
type Config struct {
	Addresses []string
	Index     string
	Username  string
	Password  string
	Transport http.RoundTripper
}

// Client is a vector index stored in a single Elasticsearch index.
type Client struct {
	es    *elasticsearch.Client
	index string
}

// chunkDocument is the stored shape of one chunk.
type chunkDocument struct {
	ID        string    `json:"id"`
	Source    string    `json:"source"`
	Chunk     int       `json:"chunk"`
	Content   string    `json:"content"`
	Embedding []float32 `json:"embedding"`
}

// maxListSize bounds GetAll; a single document never gets near it.
const maxListSize = 10000

// New creates a new Elasticsearch client.
func New(config Config) (*Client, error) {
	if config.Index == "" {
		return nil, fmt.Errorf("index is required")
	}
	cfg := elasticsearch.Config{
		Addresses: config.Addresses,
		Username:  config.Username,
		Password:  config.Password,
		Transport: config.Transport,
	}

	es, err := elasticsearch.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create ES client: %w", err)
	}

	return &Client{es: es, index: config.Index}, nil
}

// Ping checks if Elasticsearch is available.
func (c *Client) Ping(ctx context.Context) bool {
	res, err := c.es.Ping(c.es.Ping.WithContext(ctx))
	if err != nil {
		return false
	}
	defer res.Body.Close()
	return !res.IsError()
}

func indexMapping(dims int) string {
	return fmt.Sprintf(`{
	"mappings": {
		"properties": {
			"id": { "type": "keyword" },
			"source": { "type": "keyword" },
			"chunk": { "type": "integer" },
			"content": { "type": "text" },
			"embedding": {
				"type": "dense_vector",
				"dims": %d,
				"index": true,
				"similarity": "cosine"
			}
		}
	}
}`, dims)
}

// CreateIndex creates the index sized for dims-dimensional embeddings.
func (c *Client) CreateIndex(ctx context.Context, dims int) error {
	res, err := c.es.Indices.Create(
		c.index,
		c.es.Indices.Create.WithContext(ctx),
		c.es.Indices.Create.WithBody(bytes.NewReader([]byte(indexMapping(dims)))),
	)
	if err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("error creating index: %s", res.String())
	}
	return nil
}

// DeleteIndex removes the index. A missing index is not an error.
func (c *Client) DeleteIndex(ctx context.Context) error {
	res, err := c.es.Indices.Delete([]string{c.index}, c.es.Indices.Delete.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("failed to delete index: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() && res.StatusCode != http.StatusNotFound {
		return fmt.Errorf("error deleting index: %s", res.String())
	}
	return nil
}

type bulkResponse struct {
	Errors bool `json:"errors"`
	Items  []map[string]struct {
		Status int `json:"status"`
		Error  *struct {
			Reason string `json:"reason"`
		} `json:"error,omitempty"`
	} `json:"items"`
}

// ReplaceAll recreates the index and bulk-loads entries, refreshing before it returns.
func (c *Client) ReplaceAll(ctx context.Context, entries []models.IndexEntry) error {
	if err := c.DeleteIndex(ctx); err != nil {
		return err
	}
	if len(entries) == 0 {
		return nil
	}
	if err := c.CreateIndex(ctx, len(entries[0].Embedding)); err != nil {
		return err
	}

	var body bytes.Buffer
	for i, e := range entries {
		chunk, err := strconv.Atoi(e.Metadata[models.MetaChunk])
		if err != nil {
			chunk = i
		}
		meta := map[string]any{"index": map[string]any{"_index": c.index, "_id": e.ID}}
		doc := chunkDocument{
			ID:        e.ID,
			Source:    e.Metadata[models.MetaSource],
			Chunk:     chunk,
			Content:   e.Content,
			Embedding: e.Embedding,
		}
		for _, line := range []any{meta, doc} {
			data, err := json.Marshal(line)
			if err != nil {
				return fmt.Errorf("failed to marshal bulk line: %w", err)
			}
			body.Write(data)
			body.WriteByte('\n')
		}
	}

	res, err := c.es.Bulk(
		bytes.NewReader(body.Bytes()),
		c.es.Bulk.WithContext(ctx),
		c.es.Bulk.WithIndex(c.index),
		c.es.Bulk.WithRefresh("true"),
	)
	if err != nil {
		return fmt.Errorf("bulk index failed: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("bulk index error: %s", res.String())
	}

	var br bulkResponse
	if err := json.NewDecoder(res.Body).Decode(&br); err != nil {
		return fmt.Errorf("failed to decode bulk response: %w", err)
	}
	if br.Errors {
		for _, item := range br.Items {
			for _, op := range item {
				if op.Error != nil {
					return fmt.Errorf("bulk item failed (status %d): %s", op.Status, op.Error.Reason)
				}
			}
		}
		return fmt.Errorf("bulk index reported errors")
	}

	log.Debug().Str("index", c.index).Int("count", len(entries)).Msg("Replaced index contents")
	return nil
}

// searchResponse represents ES search response structure.
type searchResponse struct {
	Hits struct {
		Hits []struct {
			Source chunkDocument `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

func (c *Client) search(ctx context.Context, query map[string]any) ([]string, error) {
	data, err := json.Marshal(query)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal query: %w", err)
	}

	res, err := c.es.Search(
		c.es.Search.WithContext(ctx),
		c.es.Search.WithIndex(c.index),
		c.es.Search.WithBody(bytes.NewReader(data)),
	)
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}
	defer res.Body.Close()

	// nothing uploaded yet
	if res.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if res.IsError() {
		return nil, fmt.Errorf("search error: %s", res.String())
	}

	var sr searchResponse
	if err := json.NewDecoder(res.Body).Decode(&sr); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	out := make([]string, len(sr.Hits.Hits))
	for i, hit := range sr.Hits.Hits {
		out[i] = hit.Source.Content
	}
	return out, nil
}

// Query runs an approximate kNN search over the chunk embeddings.
func (c *Client) Query(ctx context.Context, embedding []float32, k int) ([]string, error) {
	if k <= 0 {
		return nil, nil
	}
	return c.search(ctx, map[string]any{
		"knn": map[string]any{
			"field":          "embedding",
			"query_vector":   embedding,
			"k":              k,
			"num_candidates": max(k*10, 100),
		},
		"size":    k,
		"_source": []string{"content"},
	})
}

// GetAll lists every stored chunk ordered by chunk index.
func (c *Client) GetAll(ctx context.Context) ([]string, error) {
	return c.search(ctx, map[string]any{
		"query":   map[string]any{"match_all": map[string]any{}},
		"sort":    []map[string]any{{"chunk": "asc"}},
		"size":    maxListSize,
		"_source": []string{"content"},
	})
}
