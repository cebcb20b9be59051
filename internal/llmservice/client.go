package llmservice

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"

	"pdf-rag/internal/config"
	"pdf-rag/internal/models"
)

var thinkRe = regexp.MustCompile(models.ThinkTag)

// Client generates answers with a single langchaingo model.
type Client struct {
	llm   llms.Model
	model string
}

// NewClient builds the inference model for the configured provider.
func NewClient(llmConfig *config.LLMConfig) (*Client, error) {
	log.Debug().Interface("llmConfig", map[string]string{
		"provider": llmConfig.Provider,
		"base_url": llmConfig.BaseURL,
		"model":    llmConfig.Model,
	}).Msg("Creating inference client")

	var (
		llm llms.Model
		err error
	)
	switch llmConfig.Provider {
	case "ollama":
		llm, err = ollama.New(
			ollama.WithServerURL(llmConfig.BaseURL),
			ollama.WithModel(llmConfig.Model),
		)
	case "openai", "":
		llm, err = openai.New(
			openai.WithBaseURL(llmConfig.BaseURL),
			openai.WithToken(strings.TrimPrefix(llmConfig.Key, "Bearer ")),
			openai.WithModel(llmConfig.Model),
		)
	default:
		return nil, fmt.Errorf("unknown inference provider: %s", llmConfig.Provider)
	}
	if err != nil {
		return nil, err
	}
	return NewClientWithModel(llm, llmConfig.Model), nil
}

// NewClientWithModel wraps an existing langchaingo model.
func NewClientWithModel(llm llms.Model, model string) *Client {
	return &Client{llm: llm, model: model}
}

// Generate sends prompt as a single human message and returns the cleaned answer.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	msgContent := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeHuman, prompt),
	}

	res, err := c.llm.GenerateContent(ctx, msgContent)
	if err != nil {
		return "", err
	}
	if res == nil || len(res.Choices) == 0 {
		return "", errors.New("empty response from model")
	}
	log.Debug().Str("model", c.model).Int("prompt_len", len(prompt)).Msg("Generated content")
	return CleanAnswer(res.Choices[0].Content), nil
}

// CleanAnswer drops reasoning blocks and surrounding whitespace.
func CleanAnswer(s string) string {
	return strings.TrimSpace(thinkRe.ReplaceAllString(s, ""))
}
