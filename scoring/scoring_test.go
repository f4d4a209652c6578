package scoring

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/flarexio/ragblade/vector"
)

func result(content string, distance float64) vector.Result {
	return vector.Result{
		Document: vector.Document{
			Content:  content,
			Metadata: map[string]string{"source": content + ".txt"},
		},
		Distance: distance,
	}
}

func TestDistanceToScore(t *testing.T) {
	assert := assert.New(t)

	assert.Equal(1.0, DistanceToScore(0))
	assert.InDelta(1/1.2, DistanceToScore(0.2), 1e-9)
	assert.InDelta(1/1.8, DistanceToScore(0.8), 1e-9)
	assert.Equal(DistanceToScore(0.5), DistanceToScore(-0.5))

	prev := DistanceToScore(0)
	for d := 0.1; d < 100; d *= 1.7 {
		score := DistanceToScore(d)
		assert.Less(score, prev)
		assert.Greater(score, 0.0)
		assert.LessOrEqual(score, 1.0)
		prev = score
	}
}

func TestFilterAndRank(t *testing.T) {
	assert := assert.New(t)

	results := []vector.Result{
		result("far", 0.8),
		result("near", 0.2),
	}

	ctxs := FilterAndRank(results, 0.15)
	if assert.Len(ctxs, 2) {
		assert.Equal("near", ctxs[0].Content)
		assert.Equal("near.txt", ctxs[0].Source())
		assert.Equal("far", ctxs[1].Content)
	}

	ctxs = FilterAndRank(results, 0.6)
	if assert.Len(ctxs, 1) {
		assert.Equal("near", ctxs[0].Content)
	}

	// strictly greater than the threshold
	ctxs = FilterAndRank([]vector.Result{result("edge", 1)}, 0.5)
	assert.Empty(ctxs)
}

func TestFilterAndRankStable(t *testing.T) {
	assert := assert.New(t)

	results := []vector.Result{
		result("first", 0.3),
		result("second", 0.3),
		result("best", 0.1),
		result("third", 0.3),
	}

	ctxs := FilterAndRank(results, 0)

	var contents []string
	for _, c := range ctxs {
		contents = append(contents, c.Content)
	}
	assert.Equal([]string{"best", "first", "second", "third"}, contents)
}

func TestRankAll(t *testing.T) {
	assert := assert.New(t)

	ctxs := RankAll([]vector.Result{
		result("far", 0.8),
		result("near", 0.2),
	}, 0.6)

	if assert.Len(ctxs, 2) {
		assert.True(ctxs[0].Passed)
		assert.False(ctxs[1].Passed)
	}
}

func TestCap(t *testing.T) {
	assert := assert.New(t)

	ctxs := RankAll([]vector.Result{
		result("a", 0.1), result("b", 0.2), result("c", 0.3), result("d", 0.4),
	}, 0)

	assert.Len(Cap(ctxs, 3), 3)
	assert.Len(Cap(ctxs, 10), 4)
	assert.Empty(Cap(ctxs, 0))
}

func TestCleanContent(t *testing.T) {
	assert := assert.New(t)

	assert.Equal("line one\nline two", cleanContent("  line one\n\n\nline two \n"))
}
