package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/flarexio/ragblade/generator"
)

func TestGenerate(t *testing.T) {
	assert := assert.New(t)

	t.Setenv("RAGBLADE_TEST_OPENAI_KEY", "sk-test")

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal("/v1/chat/completions", r.URL.Path)
		assert.Equal("Bearer sk-test", r.Header.Get("Authorization"))

		var req chatRequest
		json.NewDecoder(r.Body).Decode(&req)
		assert.Equal("gpt-4o-mini", req.Model)
		assert.Len(req.Messages, 1)

		w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"Answer."}}]}`))
	}))
	defer srv.Close()

	g := New(generator.Config{
		BaseURL:   srv.URL + "/v1/",
		APIKeyEnv: "RAGBLADE_TEST_OPENAI_KEY",
		Timeout:   time.Second,
	})

	resp := g.Generate(context.Background(), []generator.Message{
		{Role: generator.RoleUser, Content: "Question?"},
	})

	assert.True(resp.Success)
	assert.Equal("Answer.", resp.Content)
}

func TestGenerateNoChoices(t *testing.T) {
	assert := assert.New(t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices":[]}`))
	}))
	defer srv.Close()

	g := New(generator.Config{BaseURL: srv.URL, Timeout: time.Second})

	resp := g.Generate(context.Background(), []generator.Message{
		{Role: generator.RoleUser, Content: "Question?"},
	})

	assert.False(resp.Success)
	assert.Equal(generator.ErrorTypeFormat, resp.ErrorType)
}

func TestGenerateUnauthorized(t *testing.T) {
	assert := assert.New(t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":{"message":"invalid api key"}}`))
	}))
	defer srv.Close()

	g := New(generator.Config{BaseURL: srv.URL, Timeout: time.Second})

	resp := g.Generate(context.Background(), []generator.Message{
		{Role: generator.RoleUser, Content: "Question?"},
	})

	assert.False(resp.Success)
	assert.Equal(generator.ErrorTypeHTTP, resp.ErrorType)
	assert.Contains(resp.Content, "invalid api key")
}
