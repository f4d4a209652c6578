package chunker

import (
	"strings"
	"unicode/utf8"

	"github.com/flarexio/ragblade/token"
)

const (
	DefaultMaxTokens     = 400
	DefaultOverlapTokens = 50
)

// delimiters are tried in order when a single sentence exceeds the budget.
var delimiters = []string{";", ":", " - ", " – ", " — "}

type Config struct {
	Counter       string `yaml:"counter"`
	MaxTokens     int    `yaml:"maxTokens"`
	OverlapTokens *int   `yaml:"overlapTokens"`
}

// Overlap returns the configured overlap, or the default when unset.
func (cfg Config) Overlap() int {
	if cfg.OverlapTokens == nil || *cfg.OverlapTokens < 0 {
		return DefaultOverlapTokens
	}

	return *cfg.OverlapTokens
}

type Chunk struct {
	Text       string `json:"text"`
	TokenCount int    `json:"token_count"`
	CharLength int    `json:"char_length"`
	Source     string `json:"source"`
	Index      int    `json:"index"`
}

type Option func(*Chunker)

func WithMaxTokens(n int) Option {
	return func(c *Chunker) {
		if n > 0 {
			c.maxTokens = n
		}
	}
}

func WithOverlapTokens(n int) Option {
	return func(c *Chunker) {
		if n >= 0 {
			c.overlapTokens = n
		}
	}
}

// Chunker packs sentences into chunks bounded by a token budget, carrying
// whole trailing sentences of each chunk into the next as overlap.
type Chunker struct {
	counter       token.Counter
	maxTokens     int
	overlapTokens int
}

func New(counter token.Counter, opts ...Option) *Chunker {
	if counter == nil {
		counter = token.EstimateCounter{}
	}

	c := &Chunker{
		counter:       counter,
		maxTokens:     DefaultMaxTokens,
		overlapTokens: DefaultOverlapTokens,
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.overlapTokens >= c.maxTokens {
		c.overlapTokens = c.maxTokens / 4
	}

	return c
}

func (c *Chunker) MaxTokens() int {
	return c.maxTokens
}

func (c *Chunker) OverlapTokens() int {
	return c.overlapTokens
}

func (c *Chunker) Counter() token.Counter {
	return c.counter
}

// Split returns the chunk texts for text in document order.
func (c *Chunker) Split(text string) []string {
	var (
		chunks  []string
		current []string
	)

	flush := func() {
		if len(current) > 0 {
			chunks = append(chunks, strings.Join(current, " "))
			current = nil
		}
	}

	for _, sentence := range SplitSentences(text) {
		if c.counter.Count(sentence) > c.maxTokens {
			flush()
			chunks = append(chunks, c.splitLong(sentence)...)
			continue
		}

		if len(current) > 0 && c.countJoined(current, sentence) > c.maxTokens {
			chunks = append(chunks, strings.Join(current, " "))

			overlap := c.overlap(current, sentence)
			current = append(overlap, sentence)
			continue
		}

		current = append(current, sentence)
	}

	flush()
	return chunks
}

// Chunks splits text and annotates every chunk with its source and position.
func (c *Chunker) Chunks(source string, text string) []Chunk {
	texts := c.Split(text)

	chunks := make([]Chunk, len(texts))
	for i, t := range texts {
		chunks[i] = Chunk{
			Text:       t,
			TokenCount: c.counter.Count(t),
			CharLength: utf8.RuneCountInString(t),
			Source:     source,
			Index:      i,
		}
	}

	return chunks
}

// overlap selects the longest run of trailing sentences of prev that fits
// the overlap budget and still leaves room for next.
func (c *Chunker) overlap(prev []string, next string) []string {
	if c.overlapTokens == 0 {
		return nil
	}

	start := len(prev)
	for i := len(prev) - 1; i >= 0; i-- {
		tail := prev[i:]
		if c.counter.Count(strings.Join(tail, " ")) > c.overlapTokens {
			break
		}

		if c.countJoined(tail, next) > c.maxTokens {
			break
		}

		start = i
	}

	if start == len(prev) {
		return nil
	}

	overlap := make([]string, len(prev)-start, len(prev)-start+1)
	copy(overlap, prev[start:])
	return overlap
}

func (c *Chunker) countJoined(sentences []string, next string) int {
	return c.counter.Count(strings.Join(sentences, " ") + " " + next)
}

// splitLong breaks an oversized sentence at the first delimiter it
// contains, falling back to comma clauses.
func (c *Chunker) splitLong(sentence string) []string {
	for _, delim := range delimiters {
		if !strings.Contains(sentence, delim) {
			continue
		}

		pieces := strings.Split(sentence, delim)

		var fragments []string
		for i, piece := range pieces {
			if i < len(pieces)-1 {
				piece += strings.TrimRight(delim, " ")
			}

			piece = strings.TrimSpace(piece)
			if piece == "" {
				continue
			}

			if c.counter.Count(piece) > c.maxTokens {
				fragments = append(fragments, c.splitClauses(piece)...)
				continue
			}

			fragments = append(fragments, piece)
		}

		return c.pack(fragments, " ")
	}

	return c.splitClauses(sentence)
}

func (c *Chunker) splitClauses(text string) []string {
	return c.pack(strings.Split(text, ","), ",")
}

// pack joins adjacent parts with sep while the result stays within budget.
// A part that is over budget on its own is emitted as is.
func (c *Chunker) pack(parts []string, sep string) []string {
	var (
		out     []string
		current string
	)

	emit := func(s string) {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}

	for _, part := range parts {
		if strings.TrimSpace(current) == "" {
			current = part
			continue
		}

		candidate := current + sep + part
		if c.counter.Count(strings.TrimSpace(candidate)) <= c.maxTokens {
			current = candidate
			continue
		}

		emit(current)
		current = part
	}

	emit(current)
	return out
}
