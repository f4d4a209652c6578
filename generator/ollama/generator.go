// Package ollama generates answers with a local Ollama server.
package ollama

import (
	"context"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/flarexio/ragblade/generator"
)

type chatRequest struct {
	Model    string              `json:"model"`
	Messages []generator.Message `json:"messages"`
	Stream   bool                `json:"stream"`
	Options  options             `json:"options"`
}

type options struct {
	Temperature float64 `json:"temperature"`
	TopP        float64 `json:"top_p"`
	NumPredict  int     `json:"num_predict"`
}

type chatResponse struct {
	Message *struct {
		Role    string  `json:"role"`
		Content *string `json:"content"`
	} `json:"message"`
	Done bool `json:"done"`
}

type Generator struct {
	cfg    generator.Config
	client *http.Client
	log    *zap.Logger
}

func New(cfg generator.Config) *Generator {
	cfg.Provider = generator.ProviderOllama
	cfg.ApplyDefaults()
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	return &Generator{
		cfg:    cfg,
		client: &http.Client{},
		log: zap.L().With(
			zap.String("component", "generator"),
			zap.String("provider", "ollama"),
		),
	}
}

func (g *Generator) Generate(ctx context.Context, messages []generator.Message) generator.Response {
	ctx, cancel := context.WithTimeout(ctx, g.cfg.Timeout)
	defer cancel()

	req := chatRequest{
		Model:    g.cfg.Model,
		Messages: messages,
		Stream:   false,
		Options: options{
			Temperature: *g.cfg.Temperature,
			TopP:        *g.cfg.TopP,
			NumPredict:  g.cfg.MaxTokens,
		},
	}

	var resp chatResponse
	err := generator.PostJSON(ctx, g.client, g.cfg.BaseURL+"/api/chat", nil, req, &resp)
	if err != nil {
		g.log.Error(err.Error())
		return generator.FromError(err)
	}

	if resp.Message == nil || resp.Message.Content == nil {
		err := &generator.FormatError{Reason: "missing message content"}
		g.log.Error(err.Error())
		return generator.FromError(err)
	}

	answer := strings.TrimSpace(*resp.Message.Content)
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
