package embedding

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"unicode"

	"github.com/flarexio/ragblade/vector"
)

// NewHashFunc returns an offline embedding that hashes lowercased words
// into dims buckets and normalizes the result. Texts sharing words end
// up close to each other, which is enough for local runs and tests.
func NewHashFunc(dims int) vector.EmbeddingFunc {
	if dims <= 0 {
		dims = DefaultDimensions
	}

	return func(ctx context.Context, text string) ([]float32, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		v := make([]float64, dims)
		words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsDigit(r)
		})

		for _, word := range words {
			h := fnv.New64a()
			h.Write([]byte(word))
			sum := h.Sum64()

			sign := 1.0
			if sum&(1<<63) != 0 {
				sign = -1.0
			}

			v[sum%uint64(dims)] += sign
		}

		var norm float64
		for _, x := range v {
			norm += x * x
		}

		embedding := make([]float32, dims)
		if norm == 0 {
			embedding[0] = 1
			return embedding, nil
		}

		norm = math.Sqrt(norm)
		for i, x := range v {
			embedding[i] = float32(x / norm)
		}

		return embedding, nil
	}
}
