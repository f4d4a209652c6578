// Package token counts (or estimates) the number of model tokens in a text span.
package token

import (
	"errors"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/pkoukk/tiktoken-go"
	tiktoken_loader "github.com/pkoukk/tiktoken-go-loader"
)

const DefaultEncoding = "cl100k_base"

var ErrUnknownCounter = errors.New("unknown token counter")

// Counter measures text length in tokens.
type Counter interface {
	Count(text string) int
	Name() string
}

// New returns the counter named by kind: "estimate", "tiktoken" or
// "tiktoken:<encoding>". An empty kind selects the estimator.
func New(kind string) (Counter, error) {
	name, encoding, _ := strings.Cut(kind, ":")

	switch name {
	case "", "estimate":
		return EstimateCounter{}, nil

	case "tiktoken":
		if encoding == "" {
			encoding = DefaultEncoding
		}

		return NewTiktokenCounter(encoding)

	default:
		return nil, ErrUnknownCounter
	}
}

// EstimateCounter approximates tokens as one per four characters, rounded up.
type EstimateCounter struct{}

func (EstimateCounter) Name() string {
	return "estimate"
}

func (EstimateCounter) Count(text string) int {
	n := utf8.RuneCountInString(text)
	return (n + 3) / 4
}

var loaderOnce sync.Once

// TiktokenCounter counts BPE tokens with an OpenAI encoding.
type TiktokenCounter struct {
	encoding string
	tke      *tiktoken.Tiktoken
}

// NewTiktokenCounter loads the named encoding from the bundled offline
// BPE ranks, so no network access is needed.
func NewTiktokenCounter(encoding string) (*TiktokenCounter, error) {
	loaderOnce.Do(func() {
		tiktoken.SetBpeLoader(tiktoken_loader.NewOfflineLoader())
	})

	tke, err := tiktoken.GetEncoding(encoding)
	if err != nil {
		return nil, err
	}

	return &TiktokenCounter{
		encoding: encoding,
		tke:      tke,
	}, nil
}

func (c *TiktokenCounter) Name() string {
	return "tiktoken:" + c.encoding
}

func (c *TiktokenCounter) Count(text string) int {
	if text == "" {
		return 0
	}

	return len(c.tke.Encode(text, nil, nil))
}
