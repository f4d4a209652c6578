package pgvector

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/lib/pq"

	"github.com/flarexio/ragblade/vector"
)

const tablePrefix = "ragblade_"

var ErrDSNRequired = errors.New("pgvector dsn is required")

func NewPgvectorVectorDB(ctx context.Context, cfg vector.Config) (vector.VectorDB, error) {
	if cfg.DSN == "" {
		return nil, ErrDSNRequired
	}

	db, err := sql.Open("postgres", cfg.DSN)
	if err != nil {
		return nil, err
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}

	if _, err := db.ExecContext(ctx, "CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable pgvector: %w", err)
	}

	return &pgVectorDB{db}, nil
}

type pgVectorDB struct {
	db *sql.DB
}

func tableName(collection string) string {
	return pq.QuoteIdentifier(tablePrefix + collection)
}

func (v *pgVectorDB) Collection(ctx context.Context, name string, embed vector.EmbeddingFunc) (vector.Collection, error) {
	table := tableName(name)

	query := `CREATE TABLE IF NOT EXISTS ` + table + ` (
		id        TEXT PRIMARY KEY,
		content   TEXT NOT NULL,
		metadata  JSONB NOT NULL DEFAULT '{}',
		embedding vector NOT NULL
	)`

	if _, err := v.db.ExecContext(ctx, query); err != nil {
		return nil, fmt.Errorf("create table %s: %w", table, err)
	}

	return &collection{v.db, table}, nil
}

func (v *pgVectorDB) DeleteCollection(ctx context.Context, name string) error {
	_, err := v.db.ExecContext(ctx, `DROP TABLE IF EXISTS `+tableName(name))
	return err
}

func (v *pgVectorDB) Close() error {
	return v.db.Close()
}

type collection struct {
	db    *sql.DB
	table string
}

func (c *collection) AddDocuments(ctx context.Context, docs []vector.Document) error {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO `+c.table+` (id, content, metadata, embedding)
		VALUES ($1, $2, $3, $4::vector)
		ON CONFLICT (id) DO UPDATE SET
			content = EXCLUDED.content,
			metadata = EXCLUDED.metadata,
			embedding = EXCLUDED.embedding`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, doc := range docs {
		metadata, err := json.Marshal(doc.Metadata)
		if err != nil {
			return err
		}

		_, err = stmt.ExecContext(ctx, doc.ID, doc.Content, string(metadata), toVectorLiteral(doc.Embedding))
		if err != nil {
			return fmt.Errorf("insert %s: %w", doc.ID, err)
		}
	}

	return tx.Commit()
}

func (c *collection) FindDocument(ctx context.Context, id string) (vector.Document, error) {
	row := c.db.QueryRowContext(ctx,
		`SELECT id, content, metadata, embedding::text FROM `+c.table+` WHERE id = $1`, id)

	var (
		doc       vector.Document
		metadata  []byte
		embedding string
	)

	err := row.Scan(&doc.ID, &doc.Content, &metadata, &embedding)
	if errors.Is(err, sql.ErrNoRows) {
		return vector.Document{}, vector.ErrDocumentNotFound
	}

	if err != nil {
		return vector.Document{}, err
	}

	if err := json.Unmarshal(metadata, &doc.Metadata); err != nil {
		return vector.Document{}, err
	}

	doc.Embedding, err = parseVectorLiteral(embedding)
	if err != nil {
		return vector.Document{}, err
	}

	return doc, nil
}

func (c *collection) Query(ctx context.Context, embedding []float32, k int) ([]vector.Result, error) {
	rows, err := c.db.QueryContext(ctx,
		`SELECT id, content, metadata, embedding <=> $1::vector AS distance
		FROM `+c.table+`
		ORDER BY distance
		LIMIT $2`, toVectorLiteral(embedding), k)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	results := make([]vector.Result, 0, k)
	for rows.Next() {
		var (
			r        vector.Result
			metadata []byte
		)

		if err := rows.Scan(&r.ID, &r.Content, &metadata, &r.Distance); err != nil {
			return nil, err
		}

		if err := json.Unmarshal(metadata, &r.Metadata); err != nil {
			return nil, err
		}

		results = append(results, r)
	}

	return results, rows.Err()
}

func (c *collection) Count(ctx context.Context) (int, error) {
	var count int
	err := c.db.QueryRowContext(ctx, `SELECT count(*) FROM `+c.table).Scan(&count)
	return count, err
}

// toVectorLiteral renders v in pgvector's text format, e.g. [1,2.5,3].
func toVectorLiteral(v []float32) string {
	var sb strings.Builder
	sb.WriteByte('[')
	for i, f := range v {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(strconv.FormatFloat(float64(f), 'f', -1, 32))
	}
	sb.WriteByte(']')
	return sb.String()
}

func parseVectorLiteral(s string) ([]float32, error) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "[") || !strings.HasSuffix(s, "]") {
		return nil, fmt.Errorf("invalid vector literal: %q", s)
	}

	s = strings.TrimSpace(s[1 : len(s)-1])
	if s == "" {
		return []float32{}, nil
	}

	parts := strings.Split(s, ",")
	v := make([]float32, len(parts))
	for i, part := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(part), 32)
		if err != nil {
			return nil, fmt.Errorf("invalid vector literal: %w", err)
		}
		v[i] = float32(f)
	}

	return v, nil
}
