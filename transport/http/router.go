package http

import (
	"github.com/gin-gonic/gin"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/flarexio/ragblade"

	mcpE "github.com/flarexio/ragblade/mcp"
)

func AddRouters(r *gin.Engine, endpoints ragblade.EndpointSet) {
	r.GET("/health", HealthHandler(endpoints.Stats))

	// RESTful API routes
	api := r.Group("/api")
	{
		api.POST("/query", QueryHandler(endpoints.Query))
		api.GET("/search", SearchHandler(endpoints.Search))
		api.POST("/search", SearchHandler(endpoints.Search))
		api.POST("/ingest", IngestHandler(endpoints.Ingest))
		api.GET("/stats", StatsHandler(endpoints.Stats))
	}
}

func AddMetricsRouter(r *gin.Engine, gatherer prometheus.Gatherer) {
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
}

func AddStreamableRouters(r *gin.Engine, endpoints map[mcp.MCPMethod]mcpE.MCPEndpoint) {
	mcp := r.Group("/mcp")
	{
		mcp.POST("/", MCPStreamableHandler(endpoints))
	}
}
