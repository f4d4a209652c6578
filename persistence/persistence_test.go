package persistence

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/flarexio/ragblade/persistence/qdrant"
	"github.com/flarexio/ragblade/vector"
)

func TestNew(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	db, err := New(ctx, vector.Config{})
	if assert.NoError(err) {
		db.Close()
	}

	db, err = New(ctx, vector.Config{Backend: vector.BackendQdrant, Endpoint: "http://localhost:6333"})
	if assert.NoError(err) {
		db.Close()
	}

	_, err = New(ctx, vector.Config{Backend: vector.BackendQdrant})
	assert.ErrorIs(err, qdrant.ErrEndpointRequired)

	_, err = New(ctx, vector.Config{Backend: "milvus"})
	assert.ErrorIs(err, vector.ErrUnknownBackend)
}
