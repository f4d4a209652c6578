package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"hash/fnv"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/flarexio/ragblade/vector"
)

const (
	payloadID      = "_id"
	payloadContent = "_content"
)

var (
	ErrEndpointRequired = errors.New("qdrant endpoint is required")
	errNotFound         = errors.New("not found")
)

// NewQdrantVectorDB talks to a Qdrant server over its REST API.
func NewQdrantVectorDB(cfg vector.Config) (vector.VectorDB, error) {
	if cfg.Endpoint == "" {
		return nil, ErrEndpointRequired
	}

	return &qdrantVectorDB{
		endpoint: strings.TrimRight(cfg.Endpoint, "/"),
		client:   &http.Client{},
	}, nil
}

type qdrantVectorDB struct {
	endpoint string
	client   *http.Client
}

func (db *qdrantVectorDB) Collection(ctx context.Context, name string, embed vector.EmbeddingFunc) (vector.Collection, error) {
	return &collection{db: db, name: name}, nil
}

func (db *qdrantVectorDB) DeleteCollection(ctx context.Context, name string) error {
	err := db.do(ctx, http.MethodDelete, "/collections/"+url.PathEscape(name), nil, nil)
	if errors.Is(err, errNotFound) {
		return nil
	}

	return err
}

func (db *qdrantVectorDB) Close() error {
	db.client.CloseIdleConnections()
	return nil
}

func (db *qdrantVectorDB) do(ctx context.Context, method string, path string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}

		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, db.endpoint+path, reader)
	if err != nil {
		return err
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := db.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return errNotFound
	}

	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("qdrant %s %s failed: %s %s", method, path, resp.Status, string(b))
	}

	if out == nil {
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode qdrant response: %w", err)
	}

	return nil
}

type collection struct {
	db   *qdrantVectorDB
	name string

	mu      sync.Mutex
	ensured bool
}

func (c *collection) path(suffix string) string {
	return "/collections/" + url.PathEscape(c.name) + suffix
}

// ensure creates the collection sized for dims unless it already exists.
func (c *collection) ensure(ctx context.Context, dims int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.ensured {
		return nil
	}

	err := c.db.do(ctx, http.MethodGet, c.path(""), nil, nil)
	if err == nil {
		c.ensured = true
		return nil
	}

	if !errors.Is(err, errNotFound) {
		return err
	}

	body := map[string]any{
		"vectors": map[string]any{
			"size":     dims,
			"distance": "Cosine",
		},
	}

	if err := c.db.do(ctx, http.MethodPut, c.path(""), body, nil); err != nil {
		return fmt.Errorf("create collection: %w", err)
	}

	c.ensured = true
	return nil
}

func (c *collection) AddDocuments(ctx context.Context, docs []vector.Document) error {
	if len(docs) == 0 {
		return nil
	}

	if err := c.ensure(ctx, len(docs[0].Embedding)); err != nil {
		return err
	}

	points := make([]any, len(docs))
	for i, doc := range docs {
		payload := make(map[string]string, len(doc.Metadata)+2)
		for k, v := range doc.Metadata {
			payload[k] = v
		}
		payload[payloadID] = doc.ID
		payload[payloadContent] = doc.Content

		points[i] = map[string]any{
			"id":      pointID(doc.ID),
			"vector":  doc.Embedding,
			"payload": payload,
		}
	}

	body := map[string]any{"points": points}
	return c.db.do(ctx, http.MethodPut, c.path("/points?wait=true"), body, nil)
}

type point struct {
	ID      uint64         `json:"id"`
	Score   float64        `json:"score"`
	Payload map[string]any `json:"payload"`
	Vector  []float32      `json:"vector"`
}

func (p point) document() vector.Document {
	doc := vector.Document{
		Metadata:  make(map[string]string),
		Embedding: p.Vector,
	}

	for k, v := range p.Payload {
		s, ok := v.(string)
		if !ok {
			s = fmt.Sprint(v)
		}

		switch k {
		case payloadID:
			doc.ID = s
		case payloadContent:
			doc.Content = s
		default:
			doc.Metadata[k] = s
		}
	}

	return doc
}

func (c *collection) FindDocument(ctx context.Context, id string) (vector.Document, error) {
	var result struct {
		Result point `json:"result"`
	}

	err := c.db.do(ctx, http.MethodGet, c.path(fmt.Sprintf("/points/%d", pointID(id))), nil, &result)
	if errors.Is(err, errNotFound) {
		return vector.Document{}, vector.ErrDocumentNotFound
	}

	if err != nil {
		return vector.Document{}, err
	}

	return result.Result.document(), nil
}

func (c *collection) Query(ctx context.Context, embedding []float32, k int) ([]vector.Result, error) {
	body := map[string]any{
		"vector":       embedding,
		"limit":        k,
		"with_payload": true,
	}

	var result struct {
		Result []point `json:"result"`
	}

	err := c.db.do(ctx, http.MethodPost, c.path("/points/search"), body, &result)
	if errors.Is(err, errNotFound) {
		return []vector.Result{}, nil
	}

	if err != nil {
		return nil, err
	}

	results := make([]vector.Result, len(result.Result))
	for i, p := range result.Result {
		results[i] = vector.Result{
			Document: p.document(),
			Distance: 1 - p.Score,
		}
	}

	return results, nil
}

func (c *collection) Count(ctx context.Context) (int, error) {
	var result struct {
		Result struct {
			Count int `json:"count"`
		} `json:"result"`
	}

	err := c.db.do(ctx, http.MethodPost, c.path("/points/count"), map[string]any{"exact": true}, &result)
	if errors.Is(err, errNotFound) {
		return 0, nil
	}

	if err != nil {
		return 0, err
	}

	return result.Result.Count, nil
}

// pointID hashes a document ID into a Qdrant point ID with FNV-1a.
func pointID(id string) uint64 {
	h := fnv.New64a()
	h.Write([]byte(id))
	return h.Sum64()
}
