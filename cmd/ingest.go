package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"pdf-rag/internal/helper"
	"pdf-rag/internal/models"
)

var (
	filePath string
	question string
	memory   string
	words    int
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Index a local file",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withIngested(func(ctx context.Context, a *app, res models.IngestResult) error {
			helper.PrettyPrint(os.Stdout, res)
			return nil
		})
	},
}

var askCmd = &cobra.Command{
	Use:   "ask",
	Short: "Index a local file and answer one question about it",
	Long: `Examples:
  pdf-rag ask --file report.pdf --question "What was the revenue in 2023?"
  pdf-rag ask --file report.pdf --question "And in 2022?" --memory "user: revenue 2023?"`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withIngested(func(ctx context.Context, a *app, _ models.IngestResult) error {
			resp, err := a.rag.Ask(ctx, question, memory)
			if err != nil {
				return err
			}
			helper.PrettyPrint(os.Stdout, resp)
			return nil
		})
	},
}

var summarizeCmd = &cobra.Command{
	Use:   "summarize",
	Short: "Index a local file and summarize it",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withIngested(func(ctx context.Context, a *app, _ models.IngestResult) error {
			summary, err := a.rag.Summarize(ctx, words)
			if err != nil {
				return err
			}
			helper.PrettyPrint(os.Stdout, map[string]string{"summary": summary})
			return nil
		})
	},
}

func init() {
	for _, c := range []*cobra.Command{ingestCmd, askCmd, summarizeCmd} {
		c.Flags().StringVar(&filePath, "file", "", "path to the document (required)")
		c.MarkFlagRequired("file")
		rootCmd.AddCommand(c)
	}

	askCmd.Flags().StringVar(&question, "question", "", "question to answer (required)")
	askCmd.Flags().StringVar(&memory, "memory", "", "earlier conversation to include")
	askCmd.MarkFlagRequired("question")

	summarizeCmd.Flags().IntVar(&words, "words", 0, "approximate summary length (default from config)")
}

// withIngested builds the pipeline, indexes --file and then runs fn.
func withIngested(fn func(ctx context.Context, a *app, res models.IngestResult) error) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	data, err := os.ReadFile(filePath)
	if err != nil {
		return fmt.Errorf("read %s: %w", filePath, err)
	}

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	res, err := a.rag.Ingest(ctx, filepath.Base(filePath), data)
	if err != nil {
		return err
	}
	log.Info().Str("filename", res.Filename).Int("chunks", res.Chunks).Msg("Indexed file")

	return fn(ctx, a, res)
}
