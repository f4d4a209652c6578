package ragblade

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/flarexio/ragblade/chunker"
	"github.com/flarexio/ragblade/generator"
	"github.com/flarexio/ragblade/generator/ollama"
	"github.com/flarexio/ragblade/generator/openai"
	"github.com/flarexio/ragblade/reader"
	"github.com/flarexio/ragblade/scoring"
	"github.com/flarexio/ragblade/token"
	"github.com/flarexio/ragblade/vector"
)

// Service defines the core logic of RAGBlade.
type Service interface {

	// Close releases the vector store.
	Close() error

	// Query answers a question from retrieved contexts and the conversation so far.
	Query(ctx context.Context, req QueryRequest) (*QueryResponse, error)

	// Search returns scored candidates without filtering them out.
	Search(ctx context.Context, query string, k int) ([]scoring.RetrievedContext, error)

	// Ingest reads, chunks and indexes a document tree.
	Ingest(ctx context.Context, req IngestRequest) (*IngestReport, error)

	// Stats describes the indexed collection.
	Stats(ctx context.Context) (*Stats, error)
}

type ServiceMiddleware func(Service) Service

// Store is the part of the vector store the service relies on.
type Store interface {
	Name() string
	Binding() vector.Binding
	AddBatch(ctx context.Context, records []vector.Record) (int, error)
	Query(ctx context.Context, text string, k int) ([]vector.Result, error)
	ClearAndRecreate(ctx context.Context) error
	Count(ctx context.Context) (int, error)
	Close() error
}

// NewGenerator builds the configured generator provider.
func NewGenerator(cfg generator.Config) (generator.Generator, error) {
	cfg.ApplyDefaults()

	switch cfg.Provider {
	case generator.ProviderOllama:
		return ollama.New(cfg), nil
	case generator.ProviderOpenAI:
		return openai.New(cfg), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownGenerator, cfg.Provider)
	}
}

func NewService(cfg Config, store Store, gen generator.Generator) (Service, error) {
	if store == nil {
		return nil, ErrStoreNotSet
	}

	if gen == nil {
		return nil, ErrGeneratorNotSet
	}

	cfg.ApplyDefaults()

	log := zap.L().With(
		zap.String("service", "ragblade"),
	)

	counter, err := token.New(cfg.Chunker.Counter)
	if err != nil {
		log.Warn("token counter unavailable, falling back to estimate",
			zap.String("counter", cfg.Chunker.Counter),
			zap.Error(err),
		)

		counter = token.EstimateCounter{}
	}

	followUps := make(map[string]struct{}, len(cfg.Retrieval.FollowUps))
	for _, phrase := range cfg.Retrieval.FollowUps {
		followUps[normalize(phrase)] = struct{}{}
	}

	svc := &service{
		cfg:       cfg,
		store:     store,
		generator: gen,
		counter:   counter,
		chunker: chunker.New(counter,
			chunker.WithMaxTokens(cfg.Chunker.MaxTokens),
			chunker.WithOverlapTokens(cfg.Chunker.Overlap()),
		),
		reader:    reader.New(reader.WithLogger(log)),
		followUps: followUps,
		log:       log,
	}

	return svc, nil
}

type service struct {
	cfg       Config
	store     Store
	generator generator.Generator
	counter   token.Counter
	chunker   *chunker.Chunker
	reader    *reader.Reader
	followUps map[string]struct{}
	log       *zap.Logger
}

func (svc *service) Close() error {
	return svc.store.Close()
}

func (svc *service) Query(ctx context.Context, req QueryRequest) (*QueryResponse, error) {
	query := strings.TrimSpace(req.Query)
	if query == "" {
		return nil, ErrEmptyQuery
	}

	ctx, cancel := context.WithTimeout(ctx, svc.cfg.Retrieval.Timeout.Duration())
	defer cancel()

	log := svc.log.With(
		zap.String("action", "query"),
	)

	resp := &QueryResponse{
		Score:  0,
		Source: scoring.SourceGenerated,
	}

	history := make([]generator.Message, len(req.History))
	copy(history, req.History)

	if tokens := svc.historyTokens(history); tokens > svc.cfg.Retrieval.SummarizeThresholdTokens {
		log.Info("summarizing history", zap.Int("tokens", tokens))

		summary := svc.summarize(ctx, history)
		history = []generator.Message{
			{Role: generator.RoleAssistant, Content: SummaryPrefix + summary},
		}

		resp.Summarized = true
	}

	var contexts []scoring.RetrievedContext
	if svc.IsFollowUp(query) {
		log.Debug("retrieval skipped for follow-up")
		resp.RetrievalSkipped = true
	} else {
		results, err := svc.store.Query(ctx, query, svc.cfg.Retrieval.CandidateK)
		if err != nil {
			log.Error(err.Error())
		} else {
			ranked := scoring.FilterAndRank(results, svc.cfg.Retrieval.ScoreThreshold)
			contexts = scoring.Cap(ranked, svc.cfg.Retrieval.MaxContexts)
		}
	}

	messages := svc.assemble(history, query, contexts)
	answer := svc.generator.Generate(ctx, messages)

	resp.Content = answer.Content
	resp.Success = answer.Success
	resp.ErrorType = answer.ErrorType
	resp.Contexts = contexts

	if len(contexts) > 0 {
		resp.Score = contexts[0].Score
		resp.Source = contexts[0].Source()
	}

	resp.UpdatedHistory = history
	if answer.Success {
		resp.UpdatedHistory = append(history,
			generator.Message{Role: generator.RoleUser, Content: query},
			generator.Message{Role: generator.RoleAssistant, Content: answer.Content},
		)
	}

	return resp, nil
}

// IsFollowUp reports whether query is a short conversational reply that
// carries nothing worth retrieving.
func (svc *service) IsFollowUp(query string) bool {
	_, ok := svc.followUps[normalize(query)]
	return ok
}

func normalize(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.TrimRight(s, ".!? ")
	return strings.Join(strings.Fields(s), " ")
}

func (svc *service) historyTokens(history []generator.Message) int {
	if len(history) == 0 {
		return 0
	}

	bs, err := json.Marshal(history)
	if err != nil {
		return 0
	}

	return svc.counter.Count(string(bs))
}

func (svc *service) assemble(history []generator.Message, query string, contexts []scoring.RetrievedContext) []generator.Message {
	messages := make([]generator.Message, 0, len(history)+2)
	messages = append(messages, generator.Message{
		Role:    generator.RoleSystem,
		Content: svc.cfg.Retrieval.SystemPrompt,
	})
	messages = append(messages, history...)

	content := query
	if len(contexts) > 0 {
		texts := make([]string, len(contexts))
		for i, c := range contexts {
			texts[i] = c.Content
		}

		content = "Context:\n" + strings.Join(texts, "\n\n") + "\n\nQuestion: " + query
	}

	return append(messages, generator.Message{
		Role:    generator.RoleUser,
		Content: content,
	})
}

func (svc *service) Search(ctx context.Context, query string, k int) ([]scoring.RetrievedContext, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrEmptyQuery
	}

	if k <= 0 {
		k = svc.cfg.Retrieval.CandidateK
	}

	results, err := svc.store.Query(ctx, query, k)
	if err != nil {
		return nil, err
	}

	return scoring.RankAll(results, svc.cfg.Retrieval.ScoreThreshold), nil
}

func (svc *service) Ingest(ctx context.Context, req IngestRequest) (*IngestReport, error) {
	root := req.Root
	if root == "" {
		root = svc.cfg.Documents
	}

	if root == "" {
		return nil, ErrDocumentRootNotSet
	}

	log := svc.log.With(
		zap.String("action", "ingest"),
		zap.String("root", root),
	)

	start := time.Now()

	docs, err := svc.reader.ReadAll(ctx, root)
	if err != nil {
		return nil, err
	}

	if req.Rebuild {
		if err := svc.store.ClearAndRecreate(ctx); err != nil {
			return nil, err
		}

		log.Info("collection recreated", zap.String("collection", svc.store.Name()))
	}

	report := &IngestReport{
		Root:    root,
		Rebuilt: req.Rebuild,
		Files:   len(docs),
		PerFile: make(map[string]int, len(docs)),
	}

	var records []vector.Record
	for _, doc := range docs {
		source, err := filepath.Rel(root, doc.Path)
		if err != nil {
			source = doc.Filename
		}
		source = filepath.ToSlash(source)

		chunks := svc.chunker.Chunks(source, doc.Content)
		report.PerFile[source] = len(chunks)

		for _, c := range chunks {
			report.TotalTokens += c.TokenCount

			records = append(records, vector.Record{
				Text:   c.Text,
				Source: c.Source,
				Index:  c.Index,
				Metadata: map[string]string{
					"filename": doc.Filename,
					"type":     string(doc.Type),
				},
			})
		}

		log.Debug("document chunked",
			zap.String("source", source),
			zap.Int("chunks", len(chunks)),
		)
	}

	report.ChunksRequested = len(records)
	if len(records) > 0 {
		report.AvgTokens = float64(report.TotalTokens) / float64(len(records))
	}

	inserted, err := svc.store.AddBatch(ctx, records)
	report.ChunksInserted = inserted
	report.Elapsed = Duration(time.Since(start))

	if err != nil {
		return report, err
	}

	return report, nil
}

func (svc *service) Stats(ctx context.Context) (*Stats, error) {
	count, err := svc.store.Count(ctx)
	if err != nil {
		return nil, err
	}

	binding := svc.store.Binding()

	return &Stats{
		Collection: svc.store.Name(),
		Count:      count,
		Embedding:  binding.Embedding,
		Dimensions: binding.Dimensions,
	}, nil
}
