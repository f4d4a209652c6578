package ragblade

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/flarexio/ragblade/scoring"
)

type Metrics struct {
	Requests           *prometheus.CounterVec
	Duration           *prometheus.HistogramVec
	GenerationFailures *prometheus.CounterVec
	RetrievalsSkipped  prometheus.Counter
	Summarizations     prometheus.Counter
	ChunksInserted     prometheus.Counter
	Documents          prometheus.Gauge
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ragblade_requests_total",
				Help: "Total number of service requests by action and outcome",
			},
			[]string{"action", "outcome"},
		),
		Duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "ragblade_request_duration_seconds",
				Help:    "Duration of service requests in seconds",
				Buckets: prometheus.ExponentialBuckets(0.01, 2, 14), // 10ms to ~80s
			},
			[]string{"action"},
		),
		GenerationFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ragblade_generation_failures_total",
				Help: "Total number of failed generations by error type",
			},
			[]string{"error_type"},
		),
		RetrievalsSkipped: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "ragblade_retrievals_skipped_total",
				Help: "Total number of queries answered without retrieval",
			},
		),
		Summarizations: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "ragblade_summarizations_total",
				Help: "Total number of conversation histories summarized",
			},
		),
		ChunksInserted: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "ragblade_chunks_inserted_total",
				Help: "Total number of chunks committed to the vector store",
			},
		),
		Documents: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "ragblade_collection_documents",
				Help: "Number of records in the collection at the last observation",
			},
		),
	}

	reg.MustRegister(
		m.Requests,
		m.Duration,
		m.GenerationFailures,
		m.RetrievalsSkipped,
		m.Summarizations,
		m.ChunksInserted,
		m.Documents,
	)

	return m
}

func InstrumentingMiddleware(m *Metrics) ServiceMiddleware {
	return func(next Service) Service {
		return &instrumentingMiddleware{
			metrics: m,
			next:    next,
		}
	}
}

type instrumentingMiddleware struct {
	metrics *Metrics
	next    Service
}

func (mw *instrumentingMiddleware) observe(action string, begin time.Time, err error) {
	outcome := "success"
	if err != nil {
		outcome = "error"
	}

	mw.metrics.Requests.WithLabelValues(action, outcome).Inc()
	mw.metrics.Duration.WithLabelValues(action).Observe(time.Since(begin).Seconds())
}

func (mw *instrumentingMiddleware) Close() error {
	return mw.next.Close()
}

func (mw *instrumentingMiddleware) Query(ctx context.Context, req QueryRequest) (*QueryResponse, error) {
	begin := time.Now()

	resp, err := mw.next.Query(ctx, req)
	if err != nil {
		mw.observe("query", begin, err)
		return nil, err
	}

	if !resp.Success {
		mw.metrics.Requests.WithLabelValues("query", "generation_failed").Inc()
		mw.metrics.Duration.WithLabelValues("query").Observe(time.Since(begin).Seconds())
		mw.metrics.GenerationFailures.WithLabelValues(string(resp.ErrorType)).Inc()
	} else {
		mw.observe("query", begin, nil)
	}

	if resp.RetrievalSkipped {
		mw.metrics.RetrievalsSkipped.Inc()
	}

	if resp.Summarized {
		mw.metrics.Summarizations.Inc()
	}

	return resp, nil
}

func (mw *instrumentingMiddleware) Search(ctx context.Context, query string, k int) ([]scoring.RetrievedContext, error) {
	begin := time.Now()

	ctxs, err := mw.next.Search(ctx, query, k)
	mw.observe("search", begin, err)
	return ctxs, err
}

func (mw *instrumentingMiddleware) Ingest(ctx context.Context, req IngestRequest) (*IngestReport, error) {
	begin := time.Now()

	report, err := mw.next.Ingest(ctx, req)
	mw.observe("ingest", begin, err)

	if report != nil {
		mw.metrics.ChunksInserted.Add(float64(report.ChunksInserted))
	}

	return report, err
}

func (mw *instrumentingMiddleware) Stats(ctx context.Context) (*Stats, error) {
	begin := time.Now()

	stats, err := mw.next.Stats(ctx)
	mw.observe("stats", begin, err)

	if stats != nil {
		mw.metrics.Documents.Set(float64(stats.Count))
	}

	return stats, err
}
