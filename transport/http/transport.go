package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-kit/kit/endpoint"

	"github.com/flarexio/ragblade"
	"github.com/flarexio/ragblade/generator"
)

func QueryHandler(endpoint endpoint.Endpoint) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req ragblade.QueryRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.String(http.StatusBadRequest, err.Error())
			c.Error(err)
			c.Abort()
			return
		}

		ctx := c.Request.Context()
		resp, err := endpoint(ctx, req)
		if err != nil {
			c.String(statusOf(err), err.Error())
			c.Error(err)
			c.Abort()
			return
		}

		result, ok := resp.(*ragblade.QueryResponse)
		if !ok {
			err := errors.New("invalid response type")
			c.String(http.StatusInternalServerError, err.Error())
			c.Error(err)
			c.Abort()
			return
		}

		c.JSON(queryStatus(result), result)
	}
}

// queryStatus maps a failed generation onto a gateway status. The body
// still carries the user message and the error type.
func queryStatus(resp *ragblade.QueryResponse) int {
	if resp.Success {
		return http.StatusOK
	}

	if resp.ErrorType == generator.ErrorTypeTimeout {
		return http.StatusGatewayTimeout
	}

	return http.StatusBadGateway
}

func statusOf(err error) int {
	switch {
	case errors.Is(err, ragblade.ErrEmptyQuery),
		errors.Is(err, ragblade.ErrDocumentRootNotSet):
		return http.StatusBadRequest
	default:
		return http.StatusExpectationFailed
	}
}

func SearchHandler(endpoint endpoint.Endpoint) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req ragblade.SearchRequest
		if err := c.ShouldBind(&req); err != nil {
			c.String(http.StatusBadRequest, err.Error())
			c.Error(err)
			c.Abort()
			return
		}

		ctx := c.Request.Context()
		resp, err := endpoint(ctx, req)
		if err != nil {
			c.String(statusOf(err), err.Error())
			c.Error(err)
			c.Abort()
			return
		}

		c.JSON(http.StatusOK, &resp)
	}
}

func IngestHandler(endpoint endpoint.Endpoint) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req ragblade.IngestRequest
		if c.Request.ContentLength != 0 {
			if err := c.ShouldBindJSON(&req); err != nil {
				c.String(http.StatusBadRequest, err.Error())
				c.Error(err)
				c.Abort()
				return
			}
		}

		ctx := c.Request.Context()
		resp, err := endpoint(ctx, req)
		if err != nil {
			c.String(statusOf(err), err.Error())
			c.Error(err)
			c.Abort()
			return
		}

		c.JSON(http.StatusOK, &resp)
	}
}

func StatsHandler(endpoint endpoint.Endpoint) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		resp, err := endpoint(ctx, nil)
		if err != nil {
			c.String(http.StatusExpectationFailed, err.Error())
			c.Error(err)
			c.Abort()
			return
		}

		c.JSON(http.StatusOK, &resp)
	}
}

func HealthHandler(endpoint endpoint.Endpoint) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		resp, err := endpoint(ctx, nil)
		if err != nil {
			c.Error(err)
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status": "unavailable",
				"error":  err.Error(),
			})
			return
		}

		stats, ok := resp.(*ragblade.Stats)
		if !ok {
			c.JSON(http.StatusInternalServerError, gin.H{
				"status": "unavailable",
				"error":  "invalid response type",
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"status":     "ok",
			"collection": stats.Collection,
			"count":      stats.Count,
		})
	}
}
