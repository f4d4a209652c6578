package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mark3labs/mcp-go/mcp"

	mcpE "github.com/flarexio/ragblade/mcp"
)

func MCPStreamableHandler(endpoints map[mcp.MCPMethod]mcpE.MCPEndpoint) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req mcpE.JSONRPCRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.Error(err)
			c.Abort()

			c.JSON(http.StatusBadRequest, mcpE.ParseError(err.Error()))
			return
		}

		endpoint, ok := endpoints[req.Method]
		if !ok {
			c.Error(errors.New("endpoint not found"))
			c.Abort()

			c.JSON(http.StatusNotFound, mcpE.MethodNotFound(req))
			return
		}

		ctx := c.Request.Context()
		resp := endpoint(ctx, req)

		c.JSON(http.StatusOK, &resp)
	}
}
