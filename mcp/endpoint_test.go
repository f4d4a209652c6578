package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"

	"github.com/flarexio/ragblade"
	"github.com/flarexio/ragblade/generator"
	"github.com/flarexio/ragblade/scoring"
)

func TestUnmarshalInitializeRequest(t *testing.T) {
	assert := assert.New(t)

	input := []byte(`{
	  "jsonrpc": "2.0",
	  "id": 1,
	  "method": "initialize",
	  "params": {
	    "protocolVersion": "2024-11-05",
	    "capabilities": {
	      "roots": {
	        "listChanged": true
	      },
	      "sampling": {},
	      "elicitation": {}
	    },
	    "clientInfo": {
	      "name": "ExampleClient",
	      "title": "Example Client Display Name",
	      "version": "1.0.0"
	    }
	  }
	}`)

	var req JSONRPCRequest
	if err := json.Unmarshal(input, &req); err != nil {
		assert.Fail(err.Error())
		return
	}

	var params mcp.InitializeParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		assert.Fail(err.Error())
		return
	}

	assert.Equal(mcp.JSONRPC_VERSION, req.JSONRPC)
	assert.Equal(mcp.NewRequestId(int64(1)), req.ID)
	assert.Equal(mcp.MethodInitialize, req.Method)
	assert.Equal("2024-11-05", params.ProtocolVersion)
}

func TestUnmarshalCallToolRequest(t *testing.T) {
	assert := assert.New(t)

	input := []byte(`{
	  "jsonrpc": "2.0",
	  "id": 2,
	  "method": "tools/call",
	  "params": {
	    "name": "get_weather",
	    "arguments": {
	      "location": "New York"
	    }
	  }
	}`)

	var req JSONRPCRequest
	if err := json.Unmarshal(input, &req); err != nil {
		assert.Fail(err.Error())
		return
	}

	var params mcp.CallToolParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		assert.Fail(err.Error())
		return
	}

	assert.Equal(mcp.JSONRPC_VERSION, req.JSONRPC)
	assert.Equal(mcp.NewRequestId(int64(2)), req.ID)
	assert.Equal(mcp.MethodToolsCall, req.Method)
	assert.Equal("get_weather", params.Name)
	assert.Contains(params.Arguments, "location")

	callToolReq := mcp.CallToolRequest{Params: params}
	assert.Equal("New York", callToolReq.GetArguments()["location"])
}

type fakeService struct {
	query    ragblade.QueryRequest
	response *ragblade.QueryResponse
	k        int
	contexts []scoring.RetrievedContext
	err      error
}

func (f *fakeService) Close() error { return nil }

func (f *fakeService) Query(ctx context.Context, req ragblade.QueryRequest) (*ragblade.QueryResponse, error) {
	f.query = req
	return f.response, f.err
}

func (f *fakeService) Search(ctx context.Context, query string, k int) ([]scoring.RetrievedContext, error) {
	f.k = k
	return f.contexts, f.err
}

func (f *fakeService) Ingest(ctx context.Context, req ragblade.IngestRequest) (*ragblade.IngestReport, error) {
	return nil, errors.New("method not implemented")
}

func (f *fakeService) Stats(ctx context.Context) (*ragblade.Stats, error) {
	return nil, errors.New("method not implemented")
}

func callTool(t *testing.T, svc ragblade.Service, params string) mcp.JSONRPCMessage {
	input := `{"jsonrpc":"2.0","id":7,"method":"tools/call","params":` + params + `}`

	var req JSONRPCRequest
	if err := json.Unmarshal([]byte(input), &req); err != nil {
		t.Fatal(err)
	}

	return CallToolEndpoint(svc)(context.Background(), req)
}

func textOf(t *testing.T, msg mcp.JSONRPCMessage) (string, bool) {
	resp, ok := msg.(mcp.JSONRPCResponse)
	if !ok {
		t.Fatalf("unexpected message %T", msg)
	}

	result, ok := resp.Result.(*mcp.CallToolResult)
	if !ok || len(result.Content) == 0 {
		t.Fatalf("unexpected result %T", resp.Result)
	}

	text, ok := result.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("unexpected content %T", result.Content[0])
	}

	return text.Text, result.IsError
}

func TestListTools(t *testing.T) {
	assert := assert.New(t)

	msg := ListToolsEndpoint(&fakeService{})(context.Background(), JSONRPCRequest{
		JSONRPC: mcp.JSONRPC_VERSION,
		ID:      mcp.NewRequestId(int64(1)),
		Method:  mcp.MethodToolsList,
	})

	resp, ok := msg.(mcp.JSONRPCResponse)
	if !assert.True(ok) {
		return
	}

	result, ok := resp.Result.(*mcp.ListToolsResult)
	if !assert.True(ok) {
		return
	}

	names := make([]string, len(result.Tools))
	for i, tool := range result.Tools {
		names[i] = tool.Name
	}

	assert.Equal([]string{ToolAsk, ToolSearch}, names)
}

func TestCallAsk(t *testing.T) {
	assert := assert.New(t)

	svc := &fakeService{
		response: &ragblade.QueryResponse{
			Content: "Paris",
			Score:   0.8,
			Source:  "geo.txt",
			Success: true,
		},
	}

	text, isError := textOf(t, callTool(t, svc, `{"name":"ask","arguments":{"query":"capital of France?"}}`))

	assert.False(isError)
	assert.Equal("capital of France?", svc.query.Query)
	assert.Contains(text, "Paris")
	assert.Contains(text, "Source: geo.txt (score 0.800)")
}

func TestCallAskGenerationFailure(t *testing.T) {
	assert := assert.New(t)

	svc := &fakeService{
		response: &ragblade.QueryResponse{
			Content:   "The language model timed out.",
			Success:   false,
			ErrorType: generator.ErrorTypeTimeout,
		},
	}

	text, isError := textOf(t, callTool(t, svc, `{"name":"ask","arguments":{"query":"hello"}}`))

	assert.True(isError)
	assert.Equal("The language model timed out.", text)
}

func TestCallSearch(t *testing.T) {
	assert := assert.New(t)

	svc := &fakeService{
		contexts: []scoring.RetrievedContext{
			{
				Content:  "chunk one",
				Score:    0.5,
				Distance: 1,
				Metadata: map[string]string{"source": "a.txt"},
				Passed:   true,
			},
			{
				Content:  "chunk two",
				Score:    0.1,
				Distance: 9,
				Metadata: map[string]string{"source": "b.txt"},
			},
		},
	}

	text, isError := textOf(t, callTool(t, svc, `{"name":"search","arguments":{"query":"chunk","k":2}}`))

	assert.False(isError)
	assert.Equal(2, svc.k)
	assert.Contains(text, "*[1] a.txt (score 0.500, distance 1.000)\nchunk one")
	assert.Contains(text, " [2] b.txt (score 0.100, distance 9.000)\nchunk two")
}

func TestCallToolInvalid(t *testing.T) {
	assert := assert.New(t)

	msg := callTool(t, &fakeService{}, `{"name":"ask","arguments":{}}`)
	_, ok := msg.(mcp.JSONRPCError)
	assert.True(ok)

	msg = callTool(t, &fakeService{}, `{"name":"unknown","arguments":{"query":"x"}}`)
	_, ok = msg.(mcp.JSONRPCError)
	assert.True(ok)
}
