package ragblade

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/flarexio/ragblade/generator"
	"github.com/flarexio/ragblade/scoring"
)

type stubService struct {
	query  *QueryResponse
	report *IngestReport
	err    error
	closed bool
}

func (s *stubService) Close() error {
	s.closed = true
	return s.err
}

func (s *stubService) Query(ctx context.Context, req QueryRequest) (*QueryResponse, error) {
	if s.err != nil {
		return nil, s.err
	}

	return s.query, nil
}

func (s *stubService) Search(ctx context.Context, query string, k int) ([]scoring.RetrievedContext, error) {
	if s.err != nil {
		return nil, s.err
	}

	return []scoring.RetrievedContext{{Content: query, Score: 0.5, Passed: true}}, nil
}

func (s *stubService) Ingest(ctx context.Context, req IngestRequest) (*IngestReport, error) {
	return s.report, s.err
}

func (s *stubService) Stats(ctx context.Context) (*Stats, error) {
	if s.err != nil {
		return nil, s.err
	}

	return &Stats{Collection: "documents", Count: 12, Embedding: "hash/256"}, nil
}

func TestInstrumentingMiddleware(t *testing.T) {
	assert := assert.New(t)

	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	stub := &stubService{
		query: &QueryResponse{
			Content:          "failed",
			ErrorType:        generator.ErrorTypeHTTP,
			RetrievalSkipped: true,
		},
		report: &IngestReport{ChunksInserted: 9},
	}

	svc := InstrumentingMiddleware(m)(stub)
	ctx := context.Background()

	_, err := svc.Query(ctx, QueryRequest{Query: "yes"})
	assert.NoError(err)

	stub.query = &QueryResponse{Content: "ok", Success: true, Summarized: true}
	_, err = svc.Query(ctx, QueryRequest{Query: "again"})
	assert.NoError(err)

	_, err = svc.Ingest(ctx, IngestRequest{})
	assert.NoError(err)

	_, err = svc.Stats(ctx)
	assert.NoError(err)

	stub.err = errors.New("store closed")
	_, err = svc.Search(ctx, "topic", 3)
	assert.Error(err)

	assert.Equal(1.0, testutil.ToFloat64(m.Requests.WithLabelValues("query", "generation_failed")))
	assert.Equal(1.0, testutil.ToFloat64(m.Requests.WithLabelValues("query", "success")))
	assert.Equal(1.0, testutil.ToFloat64(m.Requests.WithLabelValues("search", "error")))
	assert.Equal(1.0, testutil.ToFloat64(m.GenerationFailures.WithLabelValues("http")))
	assert.Equal(1.0, testutil.ToFloat64(m.RetrievalsSkipped))
	assert.Equal(1.0, testutil.ToFloat64(m.Summarizations))
	assert.Equal(9.0, testutil.ToFloat64(m.ChunksInserted))
	assert.Equal(12.0, testutil.ToFloat64(m.Documents))
	assert.Equal(4, testutil.CollectAndCount(m.Duration))
}

func TestLoggingMiddleware(t *testing.T) {
	assert := assert.New(t)

	core, logs := observer.New(zapcore.DebugLevel)
	stub := &stubService{
		query: &QueryResponse{Content: "ok", Success: true},
	}

	svc := LoggingMiddleware(zap.New(core))(stub)

	_, err := svc.Query(context.Background(), QueryRequest{Query: "hello"})
	assert.NoError(err)

	stub.err = errors.New("store closed")
	_, err = svc.Stats(context.Background())
	assert.Error(err)

	assert.Equal(1, logs.FilterMessage("store closed").FilterField(zap.String("action", "stats")).Len())
	assert.Equal(1, logs.FilterField(zap.String("action", "query")).Len())
}

func TestTracingMiddleware(t *testing.T) {
	assert := assert.New(t)

	stub := &stubService{
		query: &QueryResponse{Content: "ok", Success: true, Source: "a.txt"},
	}

	tracer := noop.NewTracerProvider().Tracer("test")
	svc := TracingMiddleware(tracer)(stub)

	resp, err := svc.Query(context.Background(), QueryRequest{Query: "hello"})
	assert.NoError(err)
	assert.Equal("a.txt", resp.Source)

	assert.NoError(svc.Close())
	assert.True(stub.closed)
}

func TestProxyMiddleware(t *testing.T) {
	assert := assert.New(t)

	stub := &stubService{
		query:  &QueryResponse{Content: "ok", Success: true},
		report: &IngestReport{Files: 2},
	}

	var svc Service
	svc = ProxyMiddleware(MakeEndpoints(stub))(svc)

	ctx := context.Background()

	resp, err := svc.Query(ctx, QueryRequest{Query: "hello"})
	assert.NoError(err)
	assert.Equal("ok", resp.Content)

	ctxs, err := svc.Search(ctx, "topic", 2)
	assert.NoError(err)
	assert.Equal("topic", ctxs[0].Content)

	report, err := svc.Ingest(ctx, IngestRequest{})
	assert.NoError(err)
	assert.Equal(2, report.Files)

	stats, err := svc.Stats(ctx)
	assert.NoError(err)
	assert.Equal(12, stats.Count)

	assert.Error(svc.Close())
}

func TestEndpointRejectsWrongRequest(t *testing.T) {
	assert := assert.New(t)

	endpoints := MakeEndpoints(&stubService{})

	_, err := endpoints.Query(context.Background(), "not a request")
	assert.EqualError(err, "invalid request type")

	_, err = endpoints.Search(context.Background(), nil)
	assert.EqualError(err, "invalid request type")

	_, err = endpoints.Ingest(context.Background(), 42)
	assert.EqualError(err, "invalid request type")
}
