package chromem

import (
	"context"
	"fmt"

	"github.com/philippgille/chromem-go"

	"github.com/flarexio/ragblade/vector"
)

func NewChromemVectorDB(cfg vector.Config) (vector.VectorDB, error) {
	var db *chromem.DB
	if !cfg.Persistent {
		db = chromem.NewDB()
	} else {
		d, err := chromem.NewPersistentDB(cfg.Path, cfg.Compress)
		if err != nil {
			return nil, err
		}

		db = d
	}

	return &chromemVectorDB{db, cfg.Concurrency}, nil
}

type chromemVectorDB struct {
	db          *chromem.DB
	concurrency int
}

func (v *chromemVectorDB) Collection(ctx context.Context, name string, embed vector.EmbeddingFunc) (vector.Collection, error) {
	var fn chromem.EmbeddingFunc
	if embed != nil {
		fn = chromem.EmbeddingFunc(embed)
	}

	c, err := v.db.GetOrCreateCollection(name, nil, fn)
	if err != nil {
		return nil, err
	}

	concurrency := v.concurrency
	if concurrency <= 0 {
		concurrency = 1
	}

	return &collection{c, concurrency}, nil
}

func (v *chromemVectorDB) DeleteCollection(ctx context.Context, name string) error {
	return v.db.DeleteCollection(name)
}

func (v *chromemVectorDB) Close() error {
	return nil
}

type collection struct {
	collection  *chromem.Collection
	concurrency int
}

func (c *collection) AddDocuments(ctx context.Context, docs []vector.Document) error {
	documents := make([]chromem.Document, len(docs))
	for i, doc := range docs {
		documents[i] = chromem.Document{
			ID:        doc.ID,
			Metadata:  doc.Metadata,
			Embedding: doc.Embedding,
			Content:   doc.Content,
		}
	}

	return c.collection.AddDocuments(ctx, documents, c.concurrency)
}

func (c *collection) FindDocument(ctx context.Context, id string) (vector.Document, error) {
	document, err := c.collection.GetByID(ctx, id)
	if err != nil {
		return vector.Document{}, fmt.Errorf("%w: %w", vector.ErrDocumentNotFound, err)
	}

	return vector.Document{
		ID:        document.ID,
		Metadata:  document.Metadata,
		Embedding: document.Embedding,
		Content:   document.Content,
	}, nil
}

func (c *collection) Query(ctx context.Context, embedding []float32, k int) ([]vector.Result, error) {
	if k > c.collection.Count() {
		k = c.collection.Count()
	}

	if k <= 0 {
		return []vector.Result{}, nil
	}

	results, err := c.collection.QueryEmbedding(ctx, embedding, k, nil, nil)
	if err != nil {
		return nil, err
	}

	docs := make([]vector.Result, len(results))
	for i, result := range results {
		docs[i] = vector.Result{
			Document: vector.Document{
				ID:        result.ID,
				Metadata:  result.Metadata,
				Embedding: result.Embedding,
				Content:   result.Content,
			},
			Distance: 1 - float64(result.Similarity),
		}
	}

	return docs, nil
}

func (c *collection) Count(ctx context.Context) (int, error) {
	return c.collection.Count(), nil
}
