package reader

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/ledongthuc/pdf"
	"go.uber.org/zap"
)

type FileType string

const (
	FileTypeText     FileType = "text"
	FileTypeJSON     FileType = "json"
	FileTypePDF      FileType = "pdf"
	FileTypeMarkdown FileType = "markdown"
)

var defaultExtensions = map[string]FileType{
	".txt":  FileTypeText,
	".json": FileTypeJSON,
	".pdf":  FileTypePDF,
	".md":   FileTypeMarkdown,
}

var (
	ErrInvalidRoot     = errors.New("invalid document root")
	ErrUnsupportedType = errors.New("unsupported file type")
)

type SourceDocument struct {
	Content  string   `json:"content"`
	Filename string   `json:"filename"`
	Type     FileType `json:"type"`
	Path     string   `json:"path"`
}

type Option func(*Reader)

// WithExtensions restricts reading to the given extensions, e.g. ".md".
func WithExtensions(exts ...string) Option {
	return func(r *Reader) {
		allowed := make(map[string]FileType)
		for _, ext := range exts {
			ext = strings.ToLower(ext)
			if !strings.HasPrefix(ext, ".") {
				ext = "." + ext
			}

			if t, ok := defaultExtensions[ext]; ok {
				allowed[ext] = t
			}
		}

		r.extensions = allowed
	}
}

func WithRecursive(recursive bool) Option {
	return func(r *Reader) {
		r.recursive = recursive
	}
}

func WithLogger(log *zap.Logger) Option {
	return func(r *Reader) {
		if log != nil {
			r.log = log
		}
	}
}

type Reader struct {
	extensions map[string]FileType
	recursive  bool
	log        *zap.Logger
}

func New(opts ...Option) *Reader {
	r := &Reader{
		extensions: defaultExtensions,
		recursive:  true,
		log:        zap.L().With(zap.String("component", "reader")),
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// ReadAll walks root and extracts the text of every supported file.
// Files that fail to extract are logged and skipped.
func (r *Reader) ReadAll(ctx context.Context, root string) ([]SourceDocument, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRoot, err)
	}

	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s is not a directory", ErrInvalidRoot, root)
	}

	docs := make([]SourceDocument, 0)
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			r.log.Error(err.Error(), zap.String("path", path))
			return nil
		}

		if err := ctx.Err(); err != nil {
			return err
		}

		if d.IsDir() {
			if path != root && !r.recursive {
				return filepath.SkipDir
			}
			return nil
		}

		doc, err := r.Read(path)
		if err != nil {
			if errors.Is(err, ErrUnsupportedType) {
				r.log.Debug("skip unsupported file", zap.String("path", path))
				return nil
			}

			r.log.Error(err.Error(), zap.String("path", path))
			return nil
		}

		if strings.TrimSpace(doc.Content) == "" {
			r.log.Debug("skip empty file", zap.String("path", path))
			return nil
		}

		docs = append(docs, *doc)
		return nil
	})

	if err != nil {
		return nil, err
	}

	return docs, nil
}

// Read extracts a single file.
func (r *Reader) Read(path string) (*SourceDocument, error) {
	ext := strings.ToLower(filepath.Ext(path))

	fileType, ok := r.extensions[ext]
	if !ok {
		return nil, ErrUnsupportedType
	}

	var (
		content string
		err     error
	)

	switch fileType {
	case FileTypeJSON:
		content, err = readJSON(path)
	case FileTypePDF:
		content, err = readPDF(path)
	default:
		content, err = readText(path)
	}

	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	return &SourceDocument{
		Content:  content,
		Filename: filepath.Base(path),
		Type:     fileType,
		Path:     path,
	}, nil
}

func readText(path string) (string, error) {
	bs, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}

	return string(bs), nil
}

func readJSON(path string) (string, error) {
	bs, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}

	var data any
	if err := json.Unmarshal(bs, &data); err != nil {
		return "", err
	}

	return RenderJSON(data)
}

// RenderJSON renders question/answer records as "Q: ...\nA: ..." blocks and
// anything else as indented JSON.
func RenderJSON(data any) (string, error) {
	switch v := data.(type) {
	case map[string]any:
		if qa, ok := renderQA(v); ok {
			return qa, nil
		}

	case []any:
		blocks := make([]string, 0, len(v))
		for _, item := range v {
			m, ok := item.(map[string]any)
			if !ok {
				blocks = nil
				break
			}

			qa, ok := renderQA(m)
			if !ok {
				blocks = nil
				break
			}

			blocks = append(blocks, qa)
		}

		if len(blocks) > 0 {
			return strings.Join(blocks, "\n\n"), nil
		}
	}

	bs, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return "", err
	}

	return string(bs), nil
}

func renderQA(m map[string]any) (string, bool) {
	var question, answer any
	var hasQ, hasA bool

	for k, v := range m {
		switch strings.ToLower(k) {
		case "question":
			question, hasQ = v, true
		case "answer":
			answer, hasA = v, true
		}
	}

	if !hasQ || !hasA {
		return "", false
	}

	return fmt.Sprintf("Q: %v\nA: %v", question, answer), true
}

// FlattenMetadata converts arbitrary values into strings suitable for a
// vector store: lists are joined with ", " and maps are JSON encoded.
func FlattenMetadata(metadata map[string]any) map[string]string {
	flat := make(map[string]string, len(metadata))
	for k, v := range metadata {
		switch val := v.(type) {
		case nil:
			flat[k] = ""
		case string:
			flat[k] = val
		case []string:
			flat[k] = strings.Join(val, ", ")
		case []any:
			items := make([]string, len(val))
			for i, item := range val {
				items[i] = fmt.Sprint(item)
			}
			flat[k] = strings.Join(items, ", ")
		case map[string]any:
			bs, err := json.Marshal(val)
			if err != nil {
				flat[k] = fmt.Sprint(val)
				continue
			}
			flat[k] = string(bs)
		default:
			flat[k] = fmt.Sprint(val)
		}
	}

	return flat
}

var blankRunRe = regexp.MustCompile(`\n\s*\n+`)

// ErrMalformedPDF reports a PDF whose object structure cannot be parsed.
var ErrMalformedPDF = errors.New("malformed pdf")

func readPDF(path string) (content string, err error) {
	// the pdf package panics on broken objects outside of GetPlainText
	defer func() {
		if rec := recover(); rec != nil {
			content = ""
			err = fmt.Errorf("%w: %v", ErrMalformedPDF, rec)
		}
	}()

	f, r, err := pdf.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	pages := make([]string, 0, r.NumPage())
	for i := 1; i <= r.NumPage(); i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}

		text, err := page.GetPlainText(nil)
		if err != nil {
			return "", fmt.Errorf("page %d: %w", i, err)
		}

		pages = append(pages, text)
	}

	return joinPages(pages), nil
}

// joinPages separates non-empty pages with a blank line and collapses
// longer blank runs inside them.
func joinPages(pages []string) string {
	kept := make([]string, 0, len(pages))
	for _, page := range pages {
		page = strings.TrimSpace(page)
		if page != "" {
			kept = append(kept, page)
		}
	}

	content := strings.Join(kept, "\n\n")
	return blankRunRe.ReplaceAllString(content, "\n\n")
}
