// Package embedding builds the embedding function a collection is bound to.
package embedding

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/philippgille/chromem-go"
	"golang.org/x/time/rate"

	"github.com/flarexio/ragblade/vector"
)

type Provider string

const (
	ProviderOllama       Provider = "ollama"
	ProviderOpenAI       Provider = "openai"
	ProviderOpenAICompat Provider = "openai-compat"
	ProviderHash         Provider = "hash"
)

const (
	DefaultOllamaModel = "nomic-embed-text"
	DefaultOpenAIModel = string(chromem.EmbeddingModelOpenAI3Small)
	DefaultAPIKeyEnv   = "OPENAI_API_KEY"
	DefaultDimensions  = 256
)

var (
	ErrUnknownProvider = errors.New("unknown embedding provider")
	ErrMissingAPIKey   = errors.New("missing embedding api key")
	ErrMissingBaseURL  = errors.New("missing embedding base url")
)

type Config struct {
	Provider   Provider `yaml:"provider"`
	Model      string   `yaml:"model"`
	BaseURL    string   `yaml:"baseURL"`
	APIKeyEnv  string   `yaml:"apiKeyEnv"`
	Dimensions int      `yaml:"dimensions"`
	RateLimit  float64  `yaml:"rateLimit"`
	Burst      int      `yaml:"burst"`
}

func (cfg *Config) ApplyDefaults() {
	if cfg.Provider == "" {
		cfg.Provider = ProviderOllama
	}

	if cfg.APIKeyEnv == "" {
		cfg.APIKeyEnv = DefaultAPIKeyEnv
	}

	if cfg.Model == "" {
		switch cfg.Provider {
		case ProviderOllama:
			cfg.Model = DefaultOllamaModel
		case ProviderOpenAI, ProviderOpenAICompat:
			cfg.Model = DefaultOpenAIModel
		}
	}

	if cfg.Provider == ProviderHash && cfg.Dimensions <= 0 {
		cfg.Dimensions = DefaultDimensions
	}

	if cfg.Burst <= 0 {
		cfg.Burst = 1
	}
}

// Identity names the model a collection gets bound to, e.g. "ollama/nomic-embed-text".
func (cfg Config) Identity() string {
	if cfg.Provider == ProviderHash {
		return string(cfg.Provider) + "/" + strconv.Itoa(cfg.Dimensions)
	}

	return string(cfg.Provider) + "/" + cfg.Model
}

func New(cfg Config) (vector.Embedder, error) {
	cfg.ApplyDefaults()

	var fn vector.EmbeddingFunc
	switch cfg.Provider {
	case ProviderOllama:
		fn = vector.EmbeddingFunc(chromem.NewEmbeddingFuncOllama(cfg.Model, cfg.BaseURL))

	case ProviderOpenAI:
		key := os.Getenv(cfg.APIKeyEnv)
		if key == "" {
			return vector.Embedder{}, fmt.Errorf("%w: %s", ErrMissingAPIKey, cfg.APIKeyEnv)
		}

		model := chromem.EmbeddingModelOpenAI(cfg.Model)
		fn = vector.EmbeddingFunc(chromem.NewEmbeddingFuncOpenAI(key, model))

	case ProviderOpenAICompat:
		if cfg.BaseURL == "" {
			return vector.Embedder{}, ErrMissingBaseURL
		}

		key := os.Getenv(cfg.APIKeyEnv)
		fn = vector.EmbeddingFunc(chromem.NewEmbeddingFuncOpenAICompat(cfg.BaseURL, key, cfg.Model, nil))

	case ProviderHash:
		fn = NewHashFunc(cfg.Dimensions)

	default:
		return vector.Embedder{}, fmt.Errorf("%w: %s", ErrUnknownProvider, cfg.Provider)
	}

	if cfg.RateLimit > 0 {
		limiter := rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.Burst)
		fn = RateLimited(fn, limiter)
	}

	return vector.Embedder{
		Func:     fn,
		Identity: cfg.Identity(),
	}, nil
}

// RateLimited waits on limiter before every call to fn.
func RateLimited(fn vector.EmbeddingFunc, limiter *rate.Limiter) vector.EmbeddingFunc {
	return func(ctx context.Context, text string) ([]float32, error) {
		if err := limiter.Wait(ctx); err != nil {
			return nil, err
		}

		return fn(ctx, text)
	}
}
