// Package generator defines the chat-completion boundary and its failure taxonomy.
package generator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/url"
	"time"
)

type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

type ErrorType string

const (
	ErrorTypeTimeout    ErrorType = "timeout"
	ErrorTypeConnection ErrorType = "connection"
	ErrorTypeHTTP       ErrorType = "http"
	ErrorTypeFormat     ErrorType = "format"
	ErrorTypeUnexpected ErrorType = "unexpected"
)

// Response is the outcome of a generation. Failures are reported here
// with Success false and Content holding a user-facing message.
type Response struct {
	Content   string    `json:"content"`
	Success   bool      `json:"success"`
	ErrorType ErrorType `json:"error_type,omitempty"`
}

type Generator interface {
	Generate(ctx context.Context, messages []Message) Response
}

type Provider string

const (
	ProviderOllama Provider = "ollama"
	ProviderOpenAI Provider = "openai"
)

const (
	DefaultOllamaBaseURL = "http://localhost:11434"
	DefaultOllamaModel   = "llama3.2:latest"
	DefaultOpenAIBaseURL = "https://api.openai.com/v1"
	DefaultOpenAIModel   = "gpt-4o-mini"
	DefaultAPIKeyEnv     = "OPENAI_API_KEY"
	DefaultTimeout       = 60 * time.Second
	DefaultTemperature   = 0.7
	DefaultTopP          = 0.9
	DefaultMaxTokens     = 1000
)

type Config struct {
	Provider    Provider      `yaml:"provider"`
	Model       string        `yaml:"model"`
	BaseURL     string        `yaml:"baseURL"`
	APIKeyEnv   string        `yaml:"apiKeyEnv"`
	Timeout     time.Duration `yaml:"timeout"`
	Temperature *float64      `yaml:"temperature"`
	TopP        *float64      `yaml:"topP"`
	MaxTokens   int           `yaml:"maxTokens"`
}

func (cfg *Config) ApplyDefaults() {
	if cfg.Provider == "" {
		cfg.Provider = ProviderOllama
	}

	switch cfg.Provider {
	case ProviderOllama:
		if cfg.BaseURL == "" {
			cfg.BaseURL = DefaultOllamaBaseURL
		}
		if cfg.Model == "" {
			cfg.Model = DefaultOllamaModel
		}

	case ProviderOpenAI:
		if cfg.BaseURL == "" {
			cfg.BaseURL = DefaultOpenAIBaseURL
		}
		if cfg.Model == "" {
			cfg.Model = DefaultOpenAIModel
		}
	}

	if cfg.APIKeyEnv == "" {
		cfg.APIKeyEnv = DefaultAPIKeyEnv
	}

	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	// nil means unset; an explicit 0 is a valid sampling setting
	if cfg.Temperature == nil || *cfg.Temperature < 0 {
		cfg.Temperature = Float(DefaultTemperature)
	}

	if cfg.TopP == nil || *cfg.TopP < 0 {
		cfg.TopP = Float(DefaultTopP)
	}

	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = DefaultMaxTokens
	}
}

// Float returns a pointer to v, for optional sampling settings.
func Float(v float64) *float64 {
	return &v
}

// StatusError is a non-2xx reply from the model server.
type StatusError struct {
	StatusCode int
	Detail     string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("model server returned HTTP %d: %s", e.StatusCode, e.Detail)
}

// FormatError is a reply that could not be interpreted as an answer.
type FormatError struct {
	Reason string
	Err    error
}

func (e *FormatError) Error() string {
	if e.Err != nil {
		return "malformed model response: " + e.Reason + ": " + e.Err.Error()
	}
	return "malformed model response: " + e.Reason
}

func (e *FormatError) Unwrap() error {
	return e.Err
}

// Classify maps a transport or decoding error onto an ErrorType.
func Classify(err error) ErrorType {
	if err == nil {
		return ""
	}

	var (
		netErr    net.Error
		statusErr *StatusError
		formatErr *FormatError
		syntaxErr *json.SyntaxError
		typeErr   *json.UnmarshalTypeError
		opErr     *net.OpError
		urlErr    *url.Error
	)

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return ErrorTypeTimeout
	case errors.As(err, &netErr) && netErr.Timeout():
		return ErrorTypeTimeout
	case errors.As(err, &statusErr):
		return ErrorTypeHTTP
	case errors.As(err, &formatErr),
		errors.As(err, &syntaxErr),
		errors.As(err, &typeErr),
		errors.Is(err, io.ErrUnexpectedEOF):
		return ErrorTypeFormat
	case errors.As(err, &opErr), errors.As(err, &urlErr):
		return ErrorTypeConnection
	default:
		return ErrorTypeUnexpected
	}
}

// Failure builds the user-facing response for a failed generation.
func Failure(errType ErrorType, err error) Response {
	var content string
	switch errType {
	case ErrorTypeTimeout:
		content = "The AI took too long to respond. Please try again later."
	case ErrorTypeConnection:
		content = "Cannot connect to the AI server. Make sure it is running."
	case ErrorTypeHTTP:
		var statusErr *StatusError
		if errors.As(err, &statusErr) {
			content = fmt.Sprintf("The AI server returned an error (HTTP %d): %s. Please try again later.",
				statusErr.StatusCode, statusErr.Detail)
		} else {
			content = "The AI server returned an error. Please try again later."
		}
	case ErrorTypeFormat:
		content = "The AI response could not be understood. Please try again later."
	default:
		errType = ErrorTypeUnexpected
		content = "An unexpected problem occurred while generating the answer. Please try again later."
	}

	return Response{
		Content:   content,
		Success:   false,
		ErrorType: errType,
	}
}

// FromError classifies err and builds the matching failure.
func FromError(err error) Response {
	return Failure(Classify(err), err)
}
