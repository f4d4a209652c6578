package nats

import (
	"context"
	"encoding/json"

	"github.com/go-kit/kit/endpoint"
	"github.com/nats-io/nats.go/micro"

	"github.com/flarexio/ragblade"
	"github.com/flarexio/ragblade/scoring"
)

func QueryHandler(endpoint endpoint.Endpoint) micro.HandlerFunc {
	return func(r micro.Request) {
		var req ragblade.QueryRequest
		if err := json.Unmarshal(r.Data(), &req); err != nil {
			r.Error("400", err.Error(), nil)
			return
		}

		ctx := context.Background()
		resp, err := endpoint(ctx, req)
		if err != nil {
			r.Error("417", err.Error(), nil)
			return
		}

		result, ok := resp.(*ragblade.QueryResponse)
		if !ok {
			r.Error("500", "invalid response type", nil)
			return
		}

		r.RespondJSON(result)
	}
}

func SearchHandler(endpoint endpoint.Endpoint) micro.HandlerFunc {
	return func(r micro.Request) {
		var req ragblade.SearchRequest
		if err := json.Unmarshal(r.Data(), &req); err != nil {
			r.Error("400", err.Error(), nil)
			return
		}

		ctx := context.Background()
		resp, err := endpoint(ctx, req)
		if err != nil {
			r.Error("417", err.Error(), nil)
			return
		}

		contexts, ok := resp.([]scoring.RetrievedContext)
		if !ok {
			r.Error("500", "invalid response type", nil)
			return
		}

		r.RespondJSON(&contexts)
	}
}

func IngestHandler(endpoint endpoint.Endpoint) micro.HandlerFunc {
	return func(r micro.Request) {
		var req ragblade.IngestRequest
		if len(r.Data()) > 0 {
			if err := json.Unmarshal(r.Data(), &req); err != nil {
				r.Error("400", err.Error(), nil)
				return
			}
		}

		ctx := context.Background()
		resp, err := endpoint(ctx, req)
		if err != nil {
			r.Error("417", err.Error(), nil)
			return
		}

		report, ok := resp.(*ragblade.IngestReport)
		if !ok {
			r.Error("500", "invalid response type", nil)
			return
		}

		r.RespondJSON(report)
	}
}

func StatsHandler(endpoint endpoint.Endpoint) micro.HandlerFunc {
	return func(r micro.Request) {
		ctx := context.Background()
		resp, err := endpoint(ctx, nil)
		if err != nil {
			r.Error("417", err.Error(), nil)
			return
		}

		stats, ok := resp.(*ragblade.Stats)
		if !ok {
			r.Error("500", "invalid response type", nil)
			return
		}

		r.RespondJSON(stats)
	}
}
