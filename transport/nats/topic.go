package nats

import (
	"github.com/nats-io/nats.go/micro"

	"github.com/flarexio/ragblade"
)

func AddEndpoints(group micro.Group, endpoints ragblade.EndpointSet) {
	group.AddEndpoint("query", QueryHandler(endpoints.Query))
	group.AddEndpoint("search", SearchHandler(endpoints.Search))
	group.AddEndpoint("ingest", IngestHandler(endpoints.Ingest))
	group.AddEndpoint("stats", StatsHandler(endpoints.Stats))
}
