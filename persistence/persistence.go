// Package persistence selects a vector backend from configuration.
package persistence

import (
	"context"
	"fmt"

	"github.com/flarexio/ragblade/persistence/chromem"
	"github.com/flarexio/ragblade/persistence/pgvector"
	"github.com/flarexio/ragblade/persistence/qdrant"
	"github.com/flarexio/ragblade/vector"
)

func New(ctx context.Context, cfg vector.Config) (vector.VectorDB, error) {
	switch cfg.Backend {
	case "", vector.BackendChromem:
		return chromem.NewChromemVectorDB(cfg)
	case vector.BackendQdrant:
		return qdrant.NewQdrantVectorDB(cfg)
	case vector.BackendPgvector:
		return pgvector.NewPgvectorVectorDB(ctx, cfg)
	default:
		return nil, fmt.Errorf("%w: %s", vector.ErrUnknownBackend, cfg.Backend)
	}
}
