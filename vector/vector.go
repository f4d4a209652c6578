package vector

import (
	"context"
	"errors"
)

type Backend string

const (
	BackendChromem  Backend = "chromem"
	BackendQdrant   Backend = "qdrant"
	BackendPgvector Backend = "pgvector"
)

type IDMode string

const (
	IDModeDeterministic IDMode = "deterministic"
	IDModeRandom        IDMode = "random"
)

const (
	DefaultBatchSize   = 100
	DefaultConcurrency = 4
)

var (
	ErrEmbeddingMismatch = errors.New("embedding does not match collection binding")
	ErrUnknownBackend    = errors.New("unknown vector backend")
	ErrDocumentNotFound  = errors.New("document not found")
	ErrEmptyEmbedding    = errors.New("empty embedding")
)

type Config struct {
	Backend     Backend `yaml:"backend"`
	Persistent  bool    `yaml:"persistent"`
	Path        string  `yaml:"path"`
	Collection  string  `yaml:"collection"`
	Compress    bool    `yaml:"compress"`
	BatchSize   int     `yaml:"batchSize"`
	Concurrency int     `yaml:"concurrency"`
	IDMode      IDMode  `yaml:"idMode"`
	Endpoint    string  `yaml:"endpoint"`
	DSN         string  `yaml:"dsn"`
	Dimensions  int     `yaml:"dimensions"`
}

func (cfg *Config) ApplyDefaults() {
	if cfg.Backend == "" {
		cfg.Backend = BackendChromem
	}

	if cfg.Collection == "" {
		cfg.Collection = "documents"
	}

	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}

	if cfg.Concurrency <= 0 {
		cfg.Concurrency = DefaultConcurrency
	}

	if cfg.IDMode == "" {
		cfg.IDMode = IDModeDeterministic
	}
}

// EmbeddingFunc maps a text to its embedding vector.
type EmbeddingFunc func(ctx context.Context, text string) ([]float32, error)

// Embedder pairs an embedding function with the identity it is bound under.
type Embedder struct {
	Func     EmbeddingFunc
	Identity string
}

type VectorDB interface {
	// Collection gets or creates the named collection.
	Collection(ctx context.Context, name string, embed EmbeddingFunc) (Collection, error)
	DeleteCollection(ctx context.Context, name string) error
	Close() error
}

// Collection stores documents with precomputed embeddings.
type Collection interface {
	// AddDocuments upserts docs by ID.
	AddDocuments(ctx context.Context, docs []Document) error
	FindDocument(ctx context.Context, id string) (Document, error)
	// Query returns up to k nearest documents, nearest first.
	Query(ctx context.Context, embedding []float32, k int) ([]Result, error)
	Count(ctx context.Context) (int, error)
}

type Document struct {
	ID        string            `json:"id"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	Content   string            `json:"content"`
	Embedding []float32         `json:"embedding,omitempty"`
}

// Result is a matched document with its cosine distance to the query.
type Result struct {
	Document
	Distance float64 `json:"distance"`
}

// Record is a chunk waiting to be indexed.
type Record struct {
	Text     string            `json:"text"`
	Source   string            `json:"source"`
	Index    int               `json:"index"`
	Metadata map[string]string `json:"metadata,omitempty"`
}
