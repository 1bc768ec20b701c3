// Package pgvector implements storage.VectorIndex on PostgreSQL with the
// pgvector extension. Each index is a table holding node id, indexed text
// and embedding, searched with the cosine distance operator.
package pgvector

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/awslabs/graphrag-toolkit/model"
	"github.com/awslabs/graphrag-toolkit/storage"
)

// MaxTopK is the largest top-k a single query may request.
const MaxTopK = 10000

// Querier is the subset of pgxpool.Pool the index needs. pgxmock pools
// satisfy it, which keeps the tests off a live database.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// Index is a pgvector-backed vector index over one node class.
type Index struct {
	db       Querier
	table    string
	embedder storage.Embedder
}

// NewIndex creates an index over the given table. The table must carry
// node_id, value and embedding columns.
func NewIndex(db Querier, table string, embedder storage.Embedder) *Index {
	return &Index{db: db, table: table, embedder: embedder}
}

// TopK returns the k nearest nodes by cosine distance.
func (i *Index) TopK(ctx context.Context, q model.Query, k int) ([]storage.VectorHit, error) {
	if k > MaxTopK {
		return nil, &storage.TopKLimitError{Requested: k, Limit: MaxTopK}
	}

	embedding := q.Embedding
	if embedding == nil {
		if i.embedder == nil {
			return nil, fmt.Errorf("query has no embedding and index has no embedder")
		}
		var err error
		embedding, err = i.embedder.Embed(ctx, q.Text)
		if err != nil {
			return nil, fmt.Errorf("embedding query failed: %w", err)
		}
	}

	sql := fmt.Sprintf(
		`SELECT node_id, value, 1 - (embedding <=> $1::vector) AS score FROM %s ORDER BY embedding <=> $1::vector LIMIT $2`,
		pgx.Identifier{i.table}.Sanitize(),
	)

	rows, err := i.db.Query(ctx, sql, formatVector(embedding), k)
	if err != nil {
		return nil, fmt.Errorf("top-k query on %s failed: %w", i.table, err)
	}
	defer rows.Close()

	var hits []storage.VectorHit
	for rows.Next() {
		var nodeID, value string
		var score float64
		if err := rows.Scan(&nodeID, &value, &score); err != nil {
			return nil, fmt.Errorf("scanning top-k row: %w", err)
		}
		hits = append(hits, storage.VectorHit{
			NodeID:   nodeID,
			Score:    score,
			Metadata: map[string]any{"value": value},
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading top-k rows: %w", err)
	}
	return hits, nil
}

// GetEmbeddings fetches stored embeddings for the given node ids.
func (i *Index) GetEmbeddings(ctx context.Context, ids []string) (map[string][]float64, error) {
	if len(ids) == 0 {
		return map[string][]float64{}, nil
	}

	sql := fmt.Sprintf(
		`SELECT node_id, embedding::text FROM %s WHERE node_id = ANY($1)`,
		pgx.Identifier{i.table}.Sanitize(),
	)

	rows, err := i.db.Query(ctx, sql, ids)
	if err != nil {
		return nil, fmt.Errorf("embedding fetch on %s failed: %w", i.table, err)
	}
	defer rows.Close()

	embeddings := make(map[string][]float64, len(ids))
	for rows.Next() {
		var nodeID, text string
		if err := rows.Scan(&nodeID, &text); err != nil {
			return nil, fmt.Errorf("scanning embedding row: %w", err)
		}
		vector, err := parseVector(text)
		if err != nil {
			return nil, fmt.Errorf("parsing embedding for %s: %w", nodeID, err)
		}
		embeddings[nodeID] = vector
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading embedding rows: %w", err)
	}
	return embeddings, nil
}

// formatVector renders an embedding in pgvector's text format.
func formatVector(v []float64) string {
	var b strings.Builder
	b.WriteByte('[')
	for n, f := range v {
		if n > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.FormatFloat(f, 'g', -1, 64))
	}
	b.WriteByte(']')
	return b.String()
}

// parseVector reads pgvector's text format back into a slice.
func parseVector(s string) ([]float64, error) {
	s = strings.TrimSpace(s)
	if len(s) < 2 || s[0] != '[' || s[len(s)-1] != ']' {
		return nil, fmt.Errorf("malformed vector literal %q", s)
	}
	body := s[1 : len(s)-1]
	if body == "" {
		return []float64{}, nil
	}
	parts := strings.Split(body, ",")
	vector := make([]float64, len(parts))
	for n, part := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil {
			return nil, fmt.Errorf("malformed vector component %q: %w", part, err)
		}
		vector[n] = f
	}
	return vector, nil
}
