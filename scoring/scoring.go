// Package scoring turns store distances into bounded relevance scores.
package scoring

import (
	"math"
	"regexp"
	"sort"
	"strings"

	"github.com/flarexio/ragblade/vector"
)

const SourceGenerated = "generated"

type RetrievedContext struct {
	Content  string            `json:"content"`
	Score    float64           `json:"score"`
	Distance float64           `json:"distance"`
	Metadata map[string]string `json:"metadata,omitempty"`
	Passed   bool              `json:"passed"`
}

// Source reports the originating file, if known.
func (c RetrievedContext) Source() string {
	return c.Metadata["source"]
}

// DistanceToScore maps a distance onto (0, 1], decreasing as distance grows.
func DistanceToScore(d float64) float64 {
	return 1 / (1 + math.Abs(d))
}

var blankLinesRe = regexp.MustCompile(`\n\s*\n`)

func cleanContent(s string) string {
	return strings.TrimSpace(blankLinesRe.ReplaceAllString(s, "\n"))
}

// RankAll scores every result and sorts by descending score, keeping
// retrieval order on ties. Passed marks results above threshold.
func RankAll(results []vector.Result, threshold float64) []RetrievedContext {
	ctxs := make([]RetrievedContext, len(results))
	for i, r := range results {
		score := DistanceToScore(r.Distance)
		ctxs[i] = RetrievedContext{
			Content:  cleanContent(r.Content),
			Score:    score,
			Distance: r.Distance,
			Metadata: r.Metadata,
			Passed:   score > threshold,
		}
	}

	sort.SliceStable(ctxs, func(i, j int) bool {
		return ctxs[i].Score > ctxs[j].Score
	})

	return ctxs
}

// FilterAndRank keeps the results scoring strictly above threshold.
func FilterAndRank(results []vector.Result, threshold float64) []RetrievedContext {
	ranked := RankAll(results, threshold)

	passed := make([]RetrievedContext, 0, len(ranked))
	for _, c := range ranked {
		if c.Passed {
			passed = append(passed, c)
		}
	}

	return passed
}

func Cap(ctxs []RetrievedContext, m int) []RetrievedContext {
	if m < 0 {
		m = 0
	}

	if len(ctxs) > m {
		return ctxs[:m]
	}

	return ctxs
}
