package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/flarexio/ragblade"
)

type JSONRPCRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      mcp.RequestId   `json:"id"`
	Method  mcp.MCPMethod   `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

func errorResponse(id mcp.RequestId, code int, message string) mcp.JSONRPCError {
	return mcp.JSONRPCError{
		JSONRPC: mcp.JSONRPC_VERSION,
		ID:      id,
		Error: struct {
			Code    int    `json:"code"`
			Message string `json:"message"`
			Data    any    `json:"data,omitempty"`
		}{
			Code:    code,
			Message: message,
		},
	}
}

// ParseError answers a body that is not a JSON-RPC request.
func ParseError(message string) mcp.JSONRPCMessage {
	return errorResponse(mcp.RequestId{}, mcp.PARSE_ERROR, message)
}

// MethodNotFound answers a request whose method has no endpoint.
func MethodNotFound(req JSONRPCRequest) mcp.JSONRPCMessage {
	return mcp.JSONRPCError{
		JSONRPC: mcp.JSONRPC_VERSION,
		ID:      req.ID,
		Error: struct {
			Code    int    `json:"code"`
			Message string `json:"message"`
			Data    any    `json:"data,omitempty"`
		}{
			Code:    mcp.METHOD_NOT_FOUND,
			Message: "method not found",
		},
	}
}

type MCPEndpoint func(ctx context.Context, req JSONRPCRequest) mcp.JSONRPCMessage

const (
	ToolAsk    = "ask"
	ToolSearch = "search"
)

const MCPSERVER_INSTRUCTIONS string = `RAGBlade answers questions from an indexed document collection.

Available tools:
- ask: answer a question grounded in the most relevant document chunks
- search: list scored chunks for a query without generating an answer

Answers report the source document and its relevance score. A score of 0 with source "generated" means no indexed context was used.`

// Tools lists the tools exposed by the knowledge base.
func Tools() []mcp.Tool {
	return []mcp.Tool{
		mcp.NewTool(ToolAsk,
			mcp.WithDescription("Answer a question using the indexed documents as context"),
			mcp.WithString("query",
				mcp.Required(),
				mcp.Description("The question to answer"),
			),
		),
		mcp.NewTool(ToolSearch,
			mcp.WithDescription("Find document chunks relevant to a query, with scores"),
			mcp.WithString("query",
				mcp.Required(),
				mcp.Description("The search query"),
			),
			mcp.WithNumber("k",
				mcp.Description("Number of candidates to return"),
			),
		),
	}
}

func InitializeEndpoint(svc ragblade.Service) MCPEndpoint {
	return func(ctx context.Context, req JSONRPCRequest) mcp.JSONRPCMessage {
		var params mcp.InitializeParams
		if err := json.Unmarshal(req.Params, &params); err != nil {
			return errorResponse(req.ID, mcp.INVALID_PARAMS, err.Error())
		}

		protocolVersion := mcp.LATEST_PROTOCOL_VERSION
		if clientVersion := params.ProtocolVersion; clientVersion != "" {
			if slices.Contains(mcp.ValidProtocolVersions, clientVersion) {
				protocolVersion = clientVersion
			}
		}

		result := &mcp.InitializeResult{
			ProtocolVersion: protocolVersion,
			Capabilities: mcp.ServerCapabilities{
				Tools: &struct {
					ListChanged bool `json:"listChanged,omitempty"`
				}{},
			},
			ServerInfo: mcp.Implementation{
				Name:    "ragblade",
				Version: "1.0.0",
			},
			Instructions: MCPSERVER_INSTRUCTIONS,
		}

		return mcp.JSONRPCResponse{
			JSONRPC: mcp.JSONRPC_VERSION,
			ID:      req.ID,
			Result:  result,
		}
	}
}

func PingEndpoint(svc ragblade.Service) MCPEndpoint {
	return func(ctx context.Context, req JSONRPCRequest) mcp.JSONRPCMessage {
		return mcp.JSONRPCResponse{
			JSONRPC: mcp.JSONRPC_VERSION,
			ID:      req.ID,
			Result:  struct{}{}, // empty response
		}
	}
}

func ListToolsEndpoint(svc ragblade.Service) MCPEndpoint {
	return func(ctx context.Context, req JSONRPCRequest) mcp.JSONRPCMessage {
		result := &mcp.ListToolsResult{
			Tools: Tools(),
		}

		return mcp.JSONRPCResponse{
			JSONRPC: mcp.JSONRPC_VERSION,
			ID:      req.ID,
			Result:  result,
		}
	}
}

func CallToolEndpoint(svc ragblade.Service) MCPEndpoint {
	return func(ctx context.Context, req JSONRPCRequest) mcp.JSONRPCMessage {
		var params mcp.CallToolParams
		if err := json.Unmarshal(req.Params, &params); err != nil {
			return errorResponse(req.ID, mcp.INVALID_PARAMS, err.Error())
		}

		callToolReq := mcp.CallToolRequest{
			Request: mcp.Request{
				Method: string(req.Method),
			},
			Params: params,
		}

		args := callToolReq.GetArguments()

		query, _ := args["query"].(string)
		if strings.TrimSpace(query) == "" {
			return errorResponse(req.ID, mcp.INVALID_PARAMS, "query is required")
		}

		var result *mcp.CallToolResult
		switch params.Name {
		case ToolAsk:
			result = ask(ctx, svc, query)

		case ToolSearch:
			k := 0
			if n, ok := args["k"].(float64); ok {
				k = int(n)
			}

			result = search(ctx, svc, query, k)

		default:
			return errorResponse(req.ID, mcp.INVALID_PARAMS, "unknown tool: "+params.Name)
		}

		return mcp.JSONRPCResponse{
			JSONRPC: mcp.JSONRPC_VERSION,
			ID:      req.ID,
			Result:  result,
		}
	}
}

func ask(ctx context.Context, svc ragblade.Service, query string) *mcp.CallToolResult {
	resp, err := svc.Query(ctx, ragblade.QueryRequest{Query: query})
	if err != nil {
		return mcp.NewToolResultError(err.Error())
	}

	if !resp.Success {
		return mcp.NewToolResultError(resp.Content)
	}

	text := fmt.Sprintf("%s\n\nSource: %s (score %.3f)", resp.Content, resp.Source, resp.Score)
	return mcp.NewToolResultText(text)
}

func search(ctx context.Context, svc ragblade.Service, query string, k int) *mcp.CallToolResult {
	contexts, err := svc.Search(ctx, query, k)
	if err != nil {
		return mcp.NewToolResultError(err.Error())
	}

	if len(contexts) == 0 {
		return mcp.NewToolResultText("No documents found.")
	}

	var sb strings.Builder
	for i, c := range contexts {
		if i > 0 {
			sb.WriteString("\n\n")
		}

		mark := " "
		if c.Passed {
			mark = "*"
		}

		fmt.Fprintf(&sb, "%s[%d] %s (score %.3f, distance %.3f)\n%s",
			mark, i+1, c.Source(), c.Score, c.Distance, c.Content)
	}

	return mcp.NewToolResultText(sb.String())
}
