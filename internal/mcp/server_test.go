package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pdf-rag/internal/models"
)

type stubPipeline struct {
	err      error
	filename string
	data     []byte
	question string
	memory   string
	words    int
}

func (p *stubPipeline) Ingest(_ context.Context, filename string, data []byte) (models.IngestResult, error) {
	p.filename, p.data = filename, data
	return models.IngestResult{Filename: filename, Chunks: 2}, p.err
}

func (p *stubPipeline) Ask(_ context.Context, question, memory string) (models.AskResponse, error) {
	p.question, p.memory = question, memory
	return models.AskResponse{Answer: "a", Context: "c"}, p.err
}

func (p *stubPipeline) Summarize(_ context.Context, words int) (string, error) {
	p.words = words
	return "summary", p.err
}

func call(name string, args map[string]any) mcp.CallToolRequest {
	req := mcp.CallToolRequest{}
	req.Params.Name = name
	req.Params.Arguments = args
	return req
}

func text(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	require.NotNil(t, res)
	require.NotEmpty(t, res.Content)
	tc, ok := res.Content[0].(mcp.TextContent)
	require.True(t, ok)
	return tc.Text
}

func TestServer_Creation(t *testing.T) {
	s := NewServer(Config{Name: "pdf-rag", Version: "1.0.0"}, &stubPipeline{})
	require.NotNil(t, s)
	assert.NotNil(t, s.mcpServer)
}

type panickingPipeline struct {
	*stubPipeline
}

func (panickingPipeline) Ask(context.Context, string, string) (models.AskResponse, error) {
	panic("index handle is nil")
}

func TestToolPanicIsErrorResponse(t *testing.T) {
	s := NewServer(Config{Name: "pdf-rag", Version: "1.0.0"}, panickingPipeline{&stubPipeline{}})

	msg := json.RawMessage(`{"jsonrpc":"2.0","id":1,"method":"tools/call","params":{"name":"ask_document","arguments":{"question":"What?"}}}`)
	res := s.mcpServer.HandleMessage(context.Background(), msg)

	rpcErr, ok := res.(mcp.JSONRPCError)
	require.True(t, ok, "expected an error response, got %T", res)
	assert.Contains(t, rpcErr.Error.Message, "index handle is nil")
}

func TestIngestHandler(t *testing.T) {
	ctx := context.Background()
	p := &stubPipeline{}
	s := NewServer(Config{Name: "pdf-rag", Version: "1.0.0"}, p)

	path := filepath.Join(t.TempDir(), "notes.txt")
	require.NoError(t, os.WriteFile(path, []byte("hello"), 0o644))

	res, err := s.ingestHandler(ctx, call("ingest_document", map[string]any{"path": path}))
	require.NoError(t, err)
	assert.False(t, res.IsError)

	var got models.IngestResult
	require.NoError(t, json.Unmarshal([]byte(text(t, res)), &got))
	assert.Equal(t, models.IngestResult{Filename: "notes.txt", Chunks: 2}, got)
	assert.Equal(t, []byte("hello"), p.data)

	res, err = s.ingestHandler(ctx, call("ingest_document", map[string]any{}))
	require.NoError(t, err)
	assert.True(t, res.IsError)

	res, err = s.ingestHandler(ctx, call("ingest_document", map[string]any{"path": filepath.Join(t.TempDir(), "missing.pdf")}))
	require.NoError(t, err)
	assert.True(t, res.IsError)
}

func TestAskHandler(t *testing.T) {
	ctx := context.Background()
	p := &stubPipeline{}
	s := NewServer(Config{Name: "pdf-rag", Version: "1.0.0"}, p)

	res, err := s.askHandler(ctx, call("ask_document", map[string]any{"question": "why?", "memory": "before"}))
	require.NoError(t, err)
	assert.False(t, res.IsError)
	assert.JSONEq(t, `{"answer":"a","context":"c"}`, text(t, res))
	assert.Equal(t, "why?", p.question)
	assert.Equal(t, "before", p.memory)

	res, err = s.askHandler(ctx, call("ask_document", map[string]any{}))
	require.NoError(t, err)
	assert.True(t, res.IsError)
}

func TestSummarizeHandler(t *testing.T) {
	ctx := context.Background()
	p := &stubPipeline{}
	s := NewServer(Config{Name: "pdf-rag", Version: "1.0.0"}, p)

	res, err := s.summarizeHandler(ctx, call("summarize_document", map[string]any{"words": float64(80)}))
	require.NoError(t, err)
	assert.Equal(t, "summary", text(t, res))
	assert.Equal(t, 80, p.words)

	p.err = errors.New("no document uploaded")
	res, err = s.summarizeHandler(ctx, call("summarize_document", map[string]any{}))
	require.NoError(t, err)
	assert.True(t, res.IsError)
	assert.Equal(t, 0, p.words)
	assert.Contains(t, text(t, res), "no document uploaded")
}
