package ragblade

import (
	"encoding/json"
	"errors"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/flarexio/ragblade/chunker"
	"github.com/flarexio/ragblade/embedding"
	"github.com/flarexio/ragblade/generator"
	"github.com/flarexio/ragblade/scoring"
	"github.com/flarexio/ragblade/vector"
)

var (
	ErrEmptyQuery         = errors.New("empty query")
	ErrStoreNotSet        = errors.New("vector store not set")
	ErrGeneratorNotSet    = errors.New("generator not set")
	ErrDocumentRootNotSet = errors.New("document root not set")
	ErrUnknownGenerator   = errors.New("unknown generator provider")
)

const (
	SummaryPrefix   = "Summary of our previous conversation:\n"
	SummaryFallback = "Unable to summarize previous conversation."
)

const DefaultSystemPrompt = `You are a helpful assistant that answers questions using the provided context.
If the context does not relate to the question, ignore it and answer from general knowledge, saying so.
Do not fabricate facts such as dates or amounts.`

const DefaultSummaryPrompt = `You are an assistant whose only job is to create a very brief, clear and coherent summary of the following chat history.
Write a single concise paragraph that captures the main topics, the questions asked and the key information provided.
Do not add any new information, pleasantries or advice, and do not ask questions. Just the summary itself.`

var DefaultFollowUps = []string{
	"yes",
	"no",
	"tell me more",
	"elaborate",
	"can you elaborate",
	"please elaborate",
	"i would",
	"i would like to",
	"yes please",
	"no thanks",
}

type Config struct {
	Documents string           `yaml:"documents"`
	Chunker   chunker.Config   `yaml:"chunker"`
	Embedding embedding.Config `yaml:"embedding"`
	Vector    vector.Config    `yaml:"vector"`
	Generator generator.Config `yaml:"generator"`
	Retrieval RetrievalConfig  `yaml:"retrieval"`
}

type RetrievalConfig struct {
	CandidateK               int      `yaml:"candidateK"`
	MaxContexts              int      `yaml:"maxContexts"`
	ScoreThreshold           float64  `yaml:"scoreThreshold"`
	SummarizeThresholdTokens int      `yaml:"summarizeThresholdTokens"`
	FollowUps                []string `yaml:"followUps"`
	SystemPrompt             string   `yaml:"systemPrompt"`
	SummaryPrompt            string   `yaml:"summaryPrompt"`
	Timeout                  Duration `yaml:"timeout"`
}

func (cfg *Config) ApplyDefaults() {
	if cfg.Chunker.MaxTokens <= 0 {
		cfg.Chunker.MaxTokens = chunker.DefaultMaxTokens
	}

	// nil means unset; an explicit 0 disables overlap
	overlap := cfg.Chunker.Overlap()
	cfg.Chunker.OverlapTokens = &overlap

	cfg.Embedding.ApplyDefaults()
	cfg.Vector.ApplyDefaults()
	cfg.Generator.ApplyDefaults()

	r := &cfg.Retrieval
	if r.CandidateK <= 0 {
		r.CandidateK = 5
	}

	if r.MaxContexts <= 0 {
		r.MaxContexts = 3
	}

	if r.MaxContexts > r.CandidateK {
		r.MaxContexts = r.CandidateK
	}

	if r.ScoreThreshold <= 0 {
		r.ScoreThreshold = 0.15
	}

	if r.SummarizeThresholdTokens <= 0 {
		r.SummarizeThresholdTokens = 2000
	}

	if r.FollowUps == nil {
		r.FollowUps = DefaultFollowUps
	}

	if r.SystemPrompt == "" {
		r.SystemPrompt = DefaultSystemPrompt
	}

	if r.SummaryPrompt == "" {
		r.SummaryPrompt = DefaultSummaryPrompt
	}

	if r.Timeout <= 0 {
		r.Timeout = Duration(2 * time.Minute)
	}
}

type Duration time.Duration

func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

func (d Duration) MarshalJSON() ([]byte, error) {
	str := d.Duration().String()
	return json.Marshal(str)
}

func (d *Duration) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return err
	}

	duration, err := time.ParseDuration(str)
	if err != nil {
		return err
	}

	*d = Duration(duration)
	return nil
}

func (d Duration) MarshalYAML() (any, error) {
	return d.Duration().String(), nil
}

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var str string
	if err := value.Decode(&str); err != nil {
		return err
	}

	duration, err := time.ParseDuration(str)
	if err != nil {
		return err
	}

	*d = Duration(duration)
	return nil
}

type QueryRequest struct {
	Query   string              `json:"query"`
	History []generator.Message `json:"chat_history,omitempty"`
}

type QueryResponse struct {
	Content          string                     `json:"content"`
	Score            float64                    `json:"score"`
	Source           string                     `json:"source"`
	Success          bool                       `json:"success"`
	ErrorType        generator.ErrorType        `json:"error_type,omitempty"`
	Contexts         []scoring.RetrievedContext `json:"contexts,omitempty"`
	UpdatedHistory   []generator.Message        `json:"updated_chat_history"`
	Summarized       bool                       `json:"summarized,omitempty"`
	RetrievalSkipped bool                       `json:"retrieval_skipped,omitempty"`
}

type SearchRequest struct {
	Query string `json:"query" form:"query"`
	K     int    `json:"k,omitempty" form:"k"`
}

type IngestRequest struct {
	Root    string `json:"root,omitempty"`
	Rebuild bool   `json:"rebuild,omitempty"`
}

type IngestReport struct {
	Root            string         `json:"root"`
	Rebuilt         bool           `json:"rebuilt"`
	Files           int            `json:"files"`
	ChunksRequested int            `json:"chunks_requested"`
	ChunksInserted  int            `json:"chunks_inserted"`
	TotalTokens     int            `json:"total_tokens"`
	AvgTokens       float64        `json:"avg_tokens"`
	PerFile         map[string]int `json:"per_file"`
	Elapsed         Duration       `json:"elapsed"`
}

type Stats struct {
	Collection string `json:"collection"`
	Count      int    `json:"count"`
	Embedding  string `json:"embedding"`
	Dimensions int    `json:"dimensions,omitempty"`
}
