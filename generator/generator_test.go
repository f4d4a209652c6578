package generator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	assert := assert.New(t)

	var syntaxErr error = &json.SyntaxError{}
	connErr := &url.Error{Op: "Post", URL: "http://localhost:1", Err: &net.OpError{Op: "dial", Err: errors.New("connection refused")}}

	assert.Equal(ErrorType(""), Classify(nil))
	assert.Equal(ErrorTypeTimeout, Classify(context.DeadlineExceeded))
	assert.Equal(ErrorTypeTimeout, Classify(fmt.Errorf("send: %w", context.DeadlineExceeded)))
	assert.Equal(ErrorTypeHTTP, Classify(&StatusError{StatusCode: 500, Detail: "boom"}))
	assert.Equal(ErrorTypeFormat, Classify(&FormatError{Reason: "empty answer"}))
	assert.Equal(ErrorTypeFormat, Classify(syntaxErr))
	assert.Equal(ErrorTypeConnection, Classify(connErr))
	assert.Equal(ErrorTypeUnexpected, Classify(errors.New("something else")))
}

func TestFailure(t *testing.T) {
	assert := assert.New(t)

	resp := Failure(ErrorTypeHTTP, &StatusError{StatusCode: 404, Detail: "model not found"})
	assert.False(resp.Success)
	assert.Equal(ErrorTypeHTTP, resp.ErrorType)
	assert.Contains(resp.Content, "HTTP 404")
	assert.Contains(resp.Content, "model not found")

	for _, errType := range []ErrorType{
		ErrorTypeTimeout,
		ErrorTypeConnection,
		ErrorTypeFormat,
		ErrorTypeUnexpected,
	} {
		resp := Failure(errType, nil)
		assert.False(resp.Success)
		assert.Equal(errType, resp.ErrorType)
		assert.NotEmpty(resp.Content)
	}

	resp = Failure("", nil)
	assert.Equal(ErrorTypeUnexpected, resp.ErrorType)
}

func TestErrorDetail(t *testing.T) {
	assert := assert.New(t)

	assert.Equal("model not found", errorDetail([]byte(`{"error":"model not found"}`)))
	assert.Equal("bad key", errorDetail([]byte(`{"error":{"message":"bad key"}}`)))
	assert.Equal("plain text", errorDetail([]byte("plain text")))
	assert.Equal("no error details", errorDetail(nil))
}

func TestConfigDefaults(t *testing.T) {
	assert := assert.New(t)

	var cfg Config
	cfg.ApplyDefaults()

	assert.Equal(ProviderOllama, cfg.Provider)
	assert.Equal(DefaultOllamaBaseURL, cfg.BaseURL)
	assert.Equal(DefaultTimeout, cfg.Timeout)
	assert.Equal(DefaultMaxTokens, cfg.MaxTokens)
	assert.Equal(DefaultTemperature, *cfg.Temperature)
	assert.Equal(DefaultTopP, *cfg.TopP)

	cfg = Config{Temperature: Float(0), TopP: Float(0)}
	cfg.ApplyDefaults()
	assert.Equal(0.0, *cfg.Temperature, "explicit zero survives")
	assert.Equal(0.0, *cfg.TopP, "explicit zero survives")

	cfg = Config{Temperature: Float(-1)}
	cfg.ApplyDefaults()
	assert.Equal(DefaultTemperature, *cfg.Temperature)

	cfg = Config{Provider: ProviderOpenAI}
	cfg.ApplyDefaults()
	assert.Equal(DefaultOpenAIBaseURL, cfg.BaseURL)
	assert.Equal(DefaultOpenAIModel, cfg.Model)
}
