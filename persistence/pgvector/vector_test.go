package pgvector

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/flarexio/ragblade/vector"
)

func TestVectorLiteral(t *testing.T) {
	assert := assert.New(t)

	literal := toVectorLiteral([]float32{1, 2.5, -0.125})
	assert.Equal("[1,2.5,-0.125]", literal)

	v, err := parseVectorLiteral(literal)
	if assert.NoError(err) {
		assert.Equal([]float32{1, 2.5, -0.125}, v)
	}

	v, err = parseVectorLiteral("[]")
	assert.NoError(err)
	assert.Empty(v)

	_, err = parseVectorLiteral("1,2")
	assert.Error(err)
}

func TestTableName(t *testing.T) {
	assert := assert.New(t)

	assert.Equal(`"ragblade_docs"`, tableName("docs"))
	assert.Equal(`"ragblade_a""b"`, tableName(`a"b`))
}

func TestNewPgvectorVectorDBRequiresDSN(t *testing.T) {
	assert := assert.New(t)

	_, err := NewPgvectorVectorDB(context.Background(), vector.Config{})
	assert.ErrorIs(err, ErrDSNRequired)
}
