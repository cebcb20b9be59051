package main

import (
	"context"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"pdf-rag/internal/mcp"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve ingest_document, ask_document and summarize_document over MCP stdio",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(context.Background(), cfg)
		if err != nil {
			return err
		}
		defer a.Close()

		log.Info().Str("name", cfg.MCP.Name).Msg("Starting MCP server on stdio")
		s := mcp.NewServer(mcp.Config{Name: cfg.MCP.Name, Version: cfg.MCP.Version}, a.rag)
		return s.ServeStdio()
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}
