package ragblade

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/flarexio/ragblade/scoring"
)

const tracerName = "github.com/flarexio/ragblade"

// TracingMiddleware opens one span per service action. A nil tracer uses
// the global provider.
func TracingMiddleware(tracer trace.Tracer) ServiceMiddleware {
	if tracer == nil {
		tracer = otel.Tracer(tracerName)
	}

	return func(next Service) Service {
		return &tracingMiddleware{
			tracer: tracer,
			next:   next,
		}
	}
}

type tracingMiddleware struct {
	tracer trace.Tracer
	next   Service
}

func finish(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

func (mw *tracingMiddleware) Close() error {
	return mw.next.Close()
}

func (mw *tracingMiddleware) Query(ctx context.Context, req QueryRequest) (*QueryResponse, error) {
	ctx, span := mw.tracer.Start(ctx, "ragblade.query", trace.WithAttributes(
		attribute.Int("ragblade.history.length", len(req.History)),
	))

	resp, err := mw.next.Query(ctx, req)
	if err == nil {
		span.SetAttributes(
			attribute.Bool("ragblade.success", resp.Success),
			attribute.Int("ragblade.contexts", len(resp.Contexts)),
			attribute.Float64("ragblade.score", resp.Score),
			attribute.String("ragblade.source", resp.Source),
			attribute.Bool("ragblade.summarized", resp.Summarized),
			attribute.Bool("ragblade.retrieval_skipped", resp.RetrievalSkipped),
		)

		if !resp.Success {
			span.SetStatus(codes.Error, string(resp.ErrorType))
		}
	}

	finish(span, err)
	return resp, err
}

func (mw *tracingMiddleware) Search(ctx context.Context, query string, k int) ([]scoring.RetrievedContext, error) {
	ctx, span := mw.tracer.Start(ctx, "ragblade.search", trace.WithAttributes(
		attribute.Int("ragblade.k", k),
	))

	ctxs, err := mw.next.Search(ctx, query, k)
	span.SetAttributes(attribute.Int("ragblade.results", len(ctxs)))

	finish(span, err)
	return ctxs, err
}

func (mw *tracingMiddleware) Ingest(ctx context.Context, req IngestRequest) (*IngestReport, error) {
	ctx, span := mw.tracer.Start(ctx, "ragblade.ingest", trace.WithAttributes(
		attribute.String("ragblade.root", req.Root),
		attribute.Bool("ragblade.rebuild", req.Rebuild),
	))

	report, err := mw.next.Ingest(ctx, req)
	if report != nil {
		span.SetAttributes(
			attribute.Int("ragblade.files", report.Files),
			attribute.Int("ragblade.chunks.requested", report.ChunksRequested),
			attribute.Int("ragblade.chunks.inserted", report.ChunksInserted),
		)
	}

	finish(span, err)
	return report, err
}

func (mw *tracingMiddleware) Stats(ctx context.Context) (*Stats, error) {
	ctx, span := mw.tracer.Start(ctx, "ragblade.stats")

	stats, err := mw.next.Stats(ctx)
	if stats != nil {
		span.SetAttributes(attribute.Int("ragblade.count", stats.Count))
	}

	finish(span, err)
	return stats, err
}
