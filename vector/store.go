package vector

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var ErrNoEmbedder = errors.New("embedding function not set")

type StoreOption func(*Store)

func WithLogger(log *zap.Logger) StoreOption {
	return func(s *Store) {
		if log != nil {
			s.log = log
		}
	}
}

// Store owns a collection together with the embedding it is bound to.
// Reads run concurrently; writes and rebuilds are exclusive.
type Store struct {
	db       VectorDB
	cfg      Config
	embedder Embedder
	log      *zap.Logger

	mu         sync.RWMutex
	collection Collection

	bindingMu   sync.Mutex
	binding     Binding
	bindingPath string
}

func NewStore(ctx context.Context, db VectorDB, cfg Config, embedder Embedder, opts ...StoreOption) (*Store, error) {
	if embedder.Func == nil {
		return nil, ErrNoEmbedder
	}

	cfg.ApplyDefaults()

	s := &Store{
		db:          db,
		cfg:         cfg,
		embedder:    embedder,
		log:         zap.L().With(zap.String("component", "vector")),
		bindingPath: bindingPath(cfg),
	}

	for _, opt := range opts {
		opt(s)
	}

	binding := s.freshBinding()
	if s.bindingPath != "" {
		persisted, err := loadBinding(s.bindingPath)
		switch {
		case err == nil:
			if err := persisted.Check(embedder.Identity, cfg.Dimensions); err != nil {
				return nil, err
			}

			binding = persisted

		case isNotExist(err):
			if err := saveBinding(s.bindingPath, binding); err != nil {
				return nil, err
			}

		default:
			return nil, err
		}
	}

	s.binding = binding

	collection, err := db.Collection(ctx, cfg.Collection, embedder.Func)
	if err != nil {
		return nil, fmt.Errorf("open collection %s: %w", cfg.Collection, err)
	}

	s.collection = collection
	return s, nil
}

func (s *Store) freshBinding() Binding {
	return Binding{
		Collection: s.cfg.Collection,
		Embedding:  s.embedder.Identity,
		Dimensions: s.cfg.Dimensions,
	}
}

func (s *Store) Name() string {
	return s.cfg.Collection
}

func (s *Store) Binding() Binding {
	s.bindingMu.Lock()
	defer s.bindingMu.Unlock()

	return s.binding
}

// AddBatch embeds and commits records in batches. A failing batch is
// logged and skipped; the count of committed records is returned.
func (s *Store) AddBatch(ctx context.Context, records []Record) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	log := s.log.With(
		zap.String("action", "add_batch"),
		zap.String("collection", s.cfg.Collection),
	)

	inserted := 0
	for start := 0; start < len(records); start += s.cfg.BatchSize {
		if err := ctx.Err(); err != nil {
			return inserted, err
		}

		end := min(start+s.cfg.BatchSize, len(records))
		batch := start / s.cfg.BatchSize

		docs, err := s.prepare(ctx, records[start:end])
		if err != nil {
			log.Error(err.Error(), zap.Int("batch", batch))
			continue
		}

		if err := s.collection.AddDocuments(ctx, docs); err != nil {
			log.Error(err.Error(), zap.Int("batch", batch))
			continue
		}

		inserted += len(docs)
		log.Debug("batch committed",
			zap.Int("batch", batch),
			zap.Int("size", len(docs)),
		)
	}

	return inserted, nil
}

func (s *Store) prepare(ctx context.Context, records []Record) ([]Document, error) {
	docs := make([]Document, len(records))
	for i, r := range records {
		id := s.documentID(r)

		metadata := make(map[string]string, len(r.Metadata)+3)
		for k, v := range r.Metadata {
			metadata[k] = v
		}
		metadata["source"] = r.Source
		metadata["chunk_id"] = strconv.Itoa(r.Index)

		docs[i] = Document{
			ID:       id,
			Metadata: metadata,
			Content:  r.Text,
		}
	}

	if err := s.embedAll(ctx, docs); err != nil {
		return nil, err
	}

	return docs, nil
}

func (s *Store) embedAll(ctx context.Context, docs []Document) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		wg       sync.WaitGroup
		once     sync.Once
		firstErr error
	)

	jobs := make(chan int)
	for range min(s.cfg.Concurrency, len(docs)) {
		wg.Add(1)
		go func() {
			defer wg.Done()

			for i := range jobs {
				embedding, err := s.embed(ctx, docs[i].Content)
				if err != nil {
					once.Do(func() {
						firstErr = fmt.Errorf("embed document %s: %w", docs[i].ID, err)
						cancel()
					})
					continue
				}

				docs[i].Embedding = embedding
			}
		}()
	}

	for i := range docs {
		jobs <- i
	}
	close(jobs)

	wg.Wait()
	return firstErr
}

func (s *Store) embed(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	embedding, err := s.embedder.Func(ctx, text)
	if err != nil {
		return nil, err
	}

	if err := s.bind(len(embedding)); err != nil {
		return nil, err
	}

	return embedding, nil
}

// bind records the embedding size on first use and rejects any other size after.
func (s *Store) bind(dims int) error {
	if dims == 0 {
		return ErrEmptyEmbedding
	}

	s.bindingMu.Lock()
	defer s.bindingMu.Unlock()

	if s.binding.Dimensions == 0 {
		s.binding.Dimensions = dims
		return saveBinding(s.bindingPath, s.binding)
	}

	return s.binding.Check(s.embedder.Identity, dims)
}

func (s *Store) documentID(r Record) string {
	if s.cfg.IDMode == IDModeRandom {
		return uuid.NewString()
	}

	data := r.Source + "|" + strconv.Itoa(r.Index) + "|" + r.Text
	hash := sha256.Sum256([]byte(data))
	return "chunk_" + hex.EncodeToString(hash[:12])
}

// Query returns up to k records nearest to text. An empty collection
// yields an empty result.
func (s *Store) Query(ctx context.Context, text string, k int) ([]Result, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if k <= 0 {
		return []Result{}, nil
	}

	count, err := s.collection.Count(ctx)
	if err != nil {
		return nil, err
	}

	if count == 0 {
		return []Result{}, nil
	}

	if k > count {
		k = count
	}

	embedding, err := s.embed(ctx, text)
	if err != nil {
		return nil, err
	}

	results, err := s.collection.Query(ctx, embedding, k)
	if err != nil {
		return nil, err
	}

	if results == nil {
		results = []Result{}
	}

	return results, nil
}

func (s *Store) FindDocument(ctx context.Context, id string) (Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.collection.FindDocument(ctx, id)
}

// ClearAndRecreate drops every record and reopens an empty collection
// under the same name and embedding.
func (s *Store) ClearAndRecreate(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.db.DeleteCollection(ctx, s.cfg.Collection); err != nil {
		return fmt.Errorf("delete collection %s: %w", s.cfg.Collection, err)
	}

	collection, err := s.db.Collection(ctx, s.cfg.Collection, s.embedder.Func)
	if err != nil {
		return fmt.Errorf("recreate collection %s: %w", s.cfg.Collection, err)
	}

	s.collection = collection

	s.bindingMu.Lock()
	defer s.bindingMu.Unlock()

	s.binding = s.freshBinding()
	return saveBinding(s.bindingPath, s.binding)
}

func (s *Store) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.collection.Count(ctx)
}

func (s *Store) Close() error {
	return s.db.Close()
}
