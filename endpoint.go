package ragblade

import (
	"context"
	"errors"

	"github.com/go-kit/kit/endpoint"
)

type EndpointSet struct {
	Query  endpoint.Endpoint
	Search endpoint.Endpoint
	Ingest endpoint.Endpoint
	Stats  endpoint.Endpoint
}

func MakeEndpoints(svc Service) *EndpointSet {
	return &EndpointSet{
		Query:  QueryEndpoint(svc),
		Search: SearchEndpoint(svc),
		Ingest: IngestEndpoint(svc),
		Stats:  StatsEndpoint(svc),
	}
}

func QueryEndpoint(svc Service) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		req, ok := request.(QueryRequest)
		if !ok {
			return nil, errors.New("invalid request type")
		}

		return svc.Query(ctx, req)
	}
}

func SearchEndpoint(svc Service) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		req, ok := request.(SearchRequest)
		if !ok {
			return nil, errors.New("invalid request type")
		}

		return svc.Search(ctx, req.Query, req.K)
	}
}

func IngestEndpoint(svc Service) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		req, ok := request.(IngestRequest)
		if !ok {
			return nil, errors.New("invalid request type")
		}

		return svc.Ingest(ctx, req)
	}
}

func StatsEndpoint(svc Service) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		return svc.Stats(ctx)
	}
}
