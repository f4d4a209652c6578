package ragblade

import (
	"context"
	"errors"

	"github.com/flarexio/ragblade/scoring"
)

func ProxyMiddleware(endpoints *EndpointSet) ServiceMiddleware {
	return func(next Service) Service {
		return &proxyMiddleware{
			endpoints: endpoints,
		}
	}
}

type proxyMiddleware struct {
	endpoints *EndpointSet
}

func (mw *proxyMiddleware) Close() error {
	return errors.New("method not implemented")
}

func (mw *proxyMiddleware) Query(ctx context.Context, req QueryRequest) (*QueryResponse, error) {
	resp, err := mw.endpoints.Query(ctx, req)
	if err != nil {
		return nil, err
	}

	result, ok := resp.(*QueryResponse)
	if !ok {
		return nil, errors.New("invalid response type")
	}

	return result, nil
}

func (mw *proxyMiddleware) Search(ctx context.Context, query string, k int) ([]scoring.RetrievedContext, error) {
	req := SearchRequest{
		Query: query,
		K:     k,
	}

	resp, err := mw.endpoints.Search(ctx, req)
	if err != nil {
		return nil, err
	}

	ctxs, ok := resp.([]scoring.RetrievedContext)
	if !ok {
		return nil, errors.New("invalid response type")
	}

	return ctxs, nil
}

func (mw *proxyMiddleware) Ingest(ctx context.Context, req IngestRequest) (*IngestReport, error) {
	resp, err := mw.endpoints.Ingest(ctx, req)
	if err != nil {
		return nil, err
	}

	report, ok := resp.(*IngestReport)
	if !ok {
		return nil, errors.New("invalid response type")
	}

	return report, nil
}

func (mw *proxyMiddleware) Stats(ctx context.Context) (*Stats, error) {
	resp, err := mw.endpoints.Stats(ctx, nil)
	if err != nil {
		return nil, err
	}

	stats, ok := resp.(*Stats)
	if !ok {
		return nil, errors.New("invalid response type")
	}

	return stats, nil
}
