package ragblade

import (
	"context"

	"go.uber.org/zap"

	"github.com/flarexio/ragblade/scoring"
)

func LoggingMiddleware(log *zap.Logger) ServiceMiddleware {
	log = log.With(
		zap.String("service", "ragblade"),
	)

	return func(next Service) Service {
		log.Info("service initialized")

		return &loggingMiddleware{
			log:  log,
			next: next,
		}
	}
}

type loggingMiddleware struct {
	log  *zap.Logger
	next Service
}

func (mw *loggingMiddleware) Close() error {
	log := mw.log.With(
		zap.String("action", "close"),
	)

	err := mw.next.Close()
	if err != nil {
		log.Error(err.Error())
		return err
	}

	log.Info("service closed")
	return nil
}

func (mw *loggingMiddleware) Query(ctx context.Context, req QueryRequest) (*QueryResponse, error) {
	log := mw.log.With(
		zap.String("action", "query"),
		zap.String("query", req.Query),
		zap.Int("history", len(req.History)),
	)

	resp, err := mw.next.Query(ctx, req)
	if err != nil {
		log.Error(err.Error())
		return nil, err
	}

	log = log.With(
		zap.Bool("success", resp.Success),
		zap.Int("contexts", len(resp.Contexts)),
		zap.Float64("score", resp.Score),
		zap.String("source", resp.Source),
		zap.Bool("summarized", resp.Summarized),
		zap.Bool("retrieval_skipped", resp.RetrievalSkipped),
	)

	if !resp.Success {
		log.Error("generation failed", zap.String("error_type", string(resp.ErrorType)))
		return resp, nil
	}

	log.Info("query answered")
	return resp, nil
}

func (mw *loggingMiddleware) Search(ctx context.Context, query string, k int) ([]scoring.RetrievedContext, error) {
	log := mw.log.With(
		zap.String("action", "search"),
		zap.String("query", query),
		zap.Int("k", k),
	)

	ctxs, err := mw.next.Search(ctx, query, k)
	if err != nil {
		log.Error(err.Error())
		return nil, err
	}

	passed := 0
	for _, c := range ctxs {
		if c.Passed {
			passed++
		}
	}

	log.Info("search completed",
		zap.Int("results", len(ctxs)),
		zap.Int("passed", passed),
	)

	return ctxs, nil
}

func (mw *loggingMiddleware) Ingest(ctx context.Context, req IngestRequest) (*IngestReport, error) {
	log := mw.log.With(
		zap.String("action", "ingest"),
		zap.String("root", req.Root),
		zap.Bool("rebuild", req.Rebuild),
	)

	report, err := mw.next.Ingest(ctx, req)
	if err != nil {
		log.Error(err.Error())
		return report, err
	}

	log.Info("documents ingested",
		zap.Int("files", report.Files),
		zap.Int("chunks_requested", report.ChunksRequested),
		zap.Int("chunks_inserted", report.ChunksInserted),
		zap.Int("total_tokens", report.TotalTokens),
		zap.Float64("avg_tokens", report.AvgTokens),
		zap.Duration("elapsed", report.Elapsed.Duration()),
	)

	if report.ChunksInserted < report.ChunksRequested {
		log.Warn("some chunks were not inserted",
			zap.Int("missing", report.ChunksRequested-report.ChunksInserted),
		)
	}

	return report, nil
}

func (mw *loggingMiddleware) Stats(ctx context.Context) (*Stats, error) {
	log := mw.log.With(
		zap.String("action", "stats"),
	)

	stats, err := mw.next.Stats(ctx)
	if err != nil {
		log.Error(err.Error())
		return nil, err
	}

	log.Debug("stats collected",
		zap.String("collection", stats.Collection),
		zap.Int("count", stats.Count),
	)

	return stats, nil
}
