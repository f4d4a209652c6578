package main

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"

	mcpE "github.com/flarexio/ragblade/mcp"
)

func TestStdioMCPServer(t *testing.T) {
	assert := assert.New(t)

	input := strings.Join([]string{
		`{"jsonrpc":"2.0","id":1,"method":"ping"}`,
		`{"jsonrpc":"2.0","method":"notifications/initialized"}`,
		``,
		`not json`,
		`{"jsonrpc":"2.0","id":2,"method":"resources/list"}`,
	}, "\n")

	var out bytes.Buffer

	s := NewStdioMCPServer(strings.NewReader(input), &out)
	assert.NoError(s.AddEndpoint(mcp.MethodPing, mcpE.PingEndpoint(nil)))
	assert.Error(s.AddEndpoint(mcp.MethodPing, mcpE.PingEndpoint(nil)))

	err := s.Listen(context.Background())
	assert.NoError(err)

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if !assert.Len(lines, 2) {
		return
	}

	var pong map[string]any
	assert.NoError(json.Unmarshal([]byte(lines[0]), &pong))
	assert.Equal(float64(1), pong["id"])
	assert.Contains(pong, "result")

	var notFound map[string]any
	assert.NoError(json.Unmarshal([]byte(lines[1]), &notFound))
	assert.Equal(float64(2), notFound["id"])
	assert.Contains(lines[1], "method not found")
}
