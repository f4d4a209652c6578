// Package openai generates answers with an OpenAI-compatible chat completions API.
package openai

import (
	"context"
	"net/http"
	"os"
	"strings"

	"go.uber.org/zap"

	"github.com/flarexio/ragblade/generator"
)

type chatRequest struct {
	Model       string              `json:"model"`
	Messages    []generator.Message `json:"messages"`
	Temperature float64             `json:"temperature"`
	TopP        float64             `json:"top_p"`
	MaxTokens   int                 `json:"max_tokens"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

type Generator struct {
	cfg    generator.Config
	apiKey string
	client *http.Client
	log    *zap.Logger
}

func New(cfg generator.Config) *Generator {
	cfg.Provider = generator.ProviderOpenAI
	cfg.ApplyDefaults()
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	return &Generator{
		cfg:    cfg,
		apiKey: os.Getenv(cfg.APIKeyEnv),
		client: &http.Client{},
		log: zap.L().With(
			zap.String("component", "generator"),
			zap.String("provider", "openai"),
		),
	}
}

func (g *Generator) Generate(ctx context.Context, messages []generator.Message) generator.Response {
	ctx, cancel := context.WithTimeout(ctx, g.cfg.Timeout)
	defer cancel()

	req := chatRequest{
		Model:       g.cfg.Model,
		Messages:    messages,
		Temperature: *g.cfg.Temperature,
		TopP:        *g.cfg.TopP,
		MaxTokens:   g.cfg.MaxTokens,
	}

	headers := make(map[string]string)
	if g.apiKey != "" {
		headers["Authorization"] = "Bearer " + g.apiKey
	}

	var resp chatResponse
	err := generator.PostJSON(ctx, g.client, g.cfg.BaseURL+"/chat/completions", headers, req, &resp)
	if err != nil {
		g.log.Error(err.Error())
		return generator.FromError(err)
	}

	if len(resp.Choices) == 0 {
		err := &generator.FormatError{Reason: "no choices"}
		g.log.Error(err.Error())
		return generator.FromError(err)
	}

	answer := strings.TrimSpace(resp.Choices[0].Message.Content)
	if answer == "" {
		err := &generator.FormatError{Reason: "empty answer"}
		g.log.Warn(err.Error())
		return generator.FromError(err)
	}

	return generator.Response{
		Content: answer,
		Success: true,
	}
}
