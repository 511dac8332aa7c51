package vector

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"feedbackd/internal/metrics"

	"github.com/pgvector/pgvector-go"
)

// PgvectorIndex stores embeddings in a dedicated pgvector table, separate
// from the feedback table so vector availability never blocks item reads.
type PgvectorIndex struct {
	db         *sql.DB
	dimensions int
}

func NewPgvectorIndex(db *sql.DB, dimensions int) (*PgvectorIndex, error) {
	idx := &PgvectorIndex{db: db, dimensions: dimensions}
	if err := idx.initSchema(); err != nil {
		return nil, fmt.Errorf("failed to initialize vector schema: %w", err)
	}
	return idx, nil
}

func (idx *PgvectorIndex) initSchema() error {
	if _, err := idx.db.Exec("CREATE EXTENSION IF NOT EXISTS vector;"); err != nil {
		return fmt.Errorf("failed to create vector extension: %w", err)
	}

	createTableSQL := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS feedback_vectors (
			id VARCHAR(64) PRIMARY KEY,
			embedding vector(%d) NOT NULL,
			item_id VARCHAR(64) NOT NULL,
			sentiment VARCHAR(20),
			category VARCHAR(50),
			updated_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
		);
	`, idx.dimensions)
	if _, err := idx.db.Exec(createTableSQL); err != nil {
		return fmt.Errorf("failed to create feedback_vectors table: %w", err)
	}

	// ivfflat creation fails on an empty table in some pgvector versions;
	// the index is an optimization, so a failure here is not fatal.
	vectorIndexSQL := "CREATE INDEX IF NOT EXISTS idx_feedback_vectors_embedding ON feedback_vectors USING ivfflat (embedding vector_cosine_ops);"
	if _, err := idx.db.Exec(vectorIndexSQL); err != nil {
		slog.Warn("Could not create ivfflat index yet", "error", err)
	}

	return nil
}

func (idx *PgvectorIndex) Upsert(ctx context.Context, id string, embedding []float32, meta Metadata) error {
	query := `
		INSERT INTO feedback_vectors (id, embedding, item_id, sentiment, category)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id)
		DO UPDATE SET
			embedding = EXCLUDED.embedding,
			sentiment = EXCLUDED.sentiment,
			category = EXCLUDED.category,
			updated_at = NOW()
	`

	_, err := idx.db.ExecContext(ctx, query,
		id, pgvector.NewVector(embedding), meta.ItemID, meta.Sentiment, meta.Category)
	if err != nil {
		metrics.VectorUpserts.WithLabelValues("error").Inc()
		return fmt.Errorf("%w: upsert failed: %v", ErrUnavailable, err)
	}

	metrics.VectorUpserts.WithLabelValues("success").Inc()
	return nil
}

func (idx *PgvectorIndex) Query(ctx context.Context, embedding []float32, topK int) ([]Match, error) {
	query := `
		SELECT item_id, 1 - (embedding <=> $1) AS similarity
		FROM feedback_vectors
		ORDER BY embedding <=> $1
		LIMIT $2
	`

	rows, err := idx.db.QueryContext(ctx, query, pgvector.NewVector(embedding), topK)
	if err != nil {
		return nil, fmt.Errorf("%w: query failed: %v", ErrUnavailable, err)
	}
	defer rows.Close()

	var matches []Match
	for rows.Next() {
		var m Match
		if err := rows.Scan(&m.ID, &m.Similarity); err != nil {
			return nil, fmt.Errorf("%w: scan failed: %v", ErrUnavailable, err)
		}
		matches = append(matches, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: read failed: %v", ErrUnavailable, err)
	}

	return matches, nil
}

func (idx *PgvectorIndex) Close() error {
	return nil
}
