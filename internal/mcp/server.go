package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog/log"

	"pdf-rag/internal/models"
)

// Config holds MCP server configuration.
type Config struct {
	Name    string
	Version string
}

// Pipeline is the document pipeline the tools drive.
type Pipeline interface {
	Ingest(ctx context.Context, filename string, data []byte) (models.IngestResult, error)
	Ask(ctx context.Context, question, memory string) (models.AskResponse, error)
	Summarize(ctx context.Context, words int) (string, error)
}

// Server exposes the pipeline as MCP tools.
type Server struct {
	mcpServer *server.MCPServer
	pipeline  Pipeline
}

// NewServer creates a new MCP server with the document tools.
func NewServer(config Config, pipeline Pipeline) *Server {
	mcpServer := server.NewMCPServer(
		config.Name,
		config.Version,
		server.WithToolCapabilities(true),
		server.WithRecovery(),
	)

	s := &Server{
		mcpServer: mcpServer,
		pipeline:  pipeline,
	}

	ingestTool := mcp.NewTool("ingest_document",
		mcp.WithDescription("Load a local PDF (or docx, pptx, xlsx, md, txt) file, replacing the previously indexed document."),
		mcp.WithString("path",
			mcp.Required(),
			mcp.Description("Path of the file to index"),
		),
	)
	mcpServer.AddTool(ingestTool, s.ingestHandler)

	askTool := mcp.NewTool("ask_document",
		mcp.WithDescription("Answer a question from the indexed document."),
		mcp.WithString("question",
			mcp.Required(),
			mcp.Description("Question to answer"),
		),
		mcp.WithString("memory",
			mcp.Description("Earlier conversation to prepend to the prompt"),
		),
	)
	mcpServer.AddTool(askTool, s.askHandler)

	summarizeTool := mcp.NewTool("summarize_document",
		mcp.WithDescription("Summarize the indexed document."),
		mcp.WithNumber("words",
			mcp.Description("Approximate summary length in words (default: 200)"),
		),
	)
	mcpServer.AddTool(summarizeTool, s.summarizeHandler)

	return s
}

func (s *Server) ingestHandler(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError("path parameter is required"), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("read file failed: %v", err)), nil
	}

	res, err := s.pipeline.Ingest(ctx, filepath.Base(path), data)
	if err != nil {
		log.Error().Err(err).Str("path", path).Msg("ingest_document failed")
		return mcp.NewToolResultError(fmt.Sprintf("ingest failed: %v", err)), nil
	}
	return jsonResult(res)
}

func (s *Server) askHandler(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	question, err := req.RequireString("question")
	if err != nil {
		return mcp.NewToolResultError("question parameter is required"), nil
	}
	memory := req.GetString("memory", "")

	resp, err := s.pipeline.Ask(ctx, question, memory)
	if err != nil {
		log.Error().Err(err).Msg("ask_document failed")
		return mcp.NewToolResultError(fmt.Sprintf("ask failed: %v", err)), nil
	}
	return jsonResult(resp)
}

func (s *Server) summarizeHandler(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	words := req.GetInt("words", 0)

	summary, err := s.pipeline.Summarize(ctx, words)
	if err != nil {
		log.Error().Err(err).Msg("summarize_document failed")
		return mcp.NewToolResultError(fmt.Sprintf("summarize failed: %v", err)), nil
	}
	return mcp.NewToolResultText(summary), nil
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	result, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(result)), nil
}

// ServeStdio starts the MCP server using stdio transport.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}
