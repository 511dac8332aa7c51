package storage

import (
	"context"
	"database/sql"
	"fmt"

	"feedbackd/internal/metrics"

	"github.com/lib/pq"
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(databaseURL string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	store := &PostgresStore{db: db}
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

// NewPostgresStoreWithDB wraps an existing connection, for callers that
// share one pool across the store, vector index and checkpoint table.
func NewPostgresStoreWithDB(db *sql.DB) (*PostgresStore, error) {
	store := &PostgresStore{db: db}
	if err := store.initSchema(); err != nil {
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return store, nil
}

func (s *PostgresStore) initSchema() error {
	createTableSQL := `
		CREATE TABLE IF NOT EXISTS feedback (
			id VARCHAR(64) PRIMARY KEY,
			raw_text TEXT NOT NULL,
			source VARCHAR(50) NOT NULL DEFAULT 'web',
			status VARCHAR(20) NOT NULL DEFAULT 'PROCESSING',
			sentiment VARCHAR(20),
			category VARCHAR(50),
			urgency VARCHAR(20),
			summary TEXT,
			tags TEXT[],
			vector_id VARCHAR(64),
			created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
			updated_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
			processing_completed_at TIMESTAMP WITH TIME ZONE
		);
	`
	if _, err := s.db.Exec(createTableSQL); err != nil {
		return fmt.Errorf("failed to create feedback table: %w", err)
	}

	indexes := []string{
		"CREATE INDEX IF NOT EXISTS idx_feedback_created_at ON feedback(created_at DESC);",
		"CREATE INDEX IF NOT EXISTS idx_feedback_status ON feedback(status);",
		"CREATE INDEX IF NOT EXISTS idx_feedback_source ON feedback(source);",
	}
	for _, indexSQL := range indexes {
		if _, err := s.db.Exec(indexSQL); err != nil {
			return fmt.Errorf("failed to create index: %w", err)
		}
	}

	return nil
}

func (s *PostgresStore) Insert(ctx context.Context, item *FeedbackItem) error {
	query := `
		INSERT INTO feedback (id, raw_text, source, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := s.db.ExecContext(ctx, query,
		item.ID, item.RawText, item.Source, item.Status, item.CreatedAt, item.UpdatedAt)
	if err != nil {
		metrics.DatabaseOperations.WithLabelValues("insert", "error").Inc()
		return fmt.Errorf("failed to insert feedback item: %w", err)
	}

	metrics.DatabaseOperations.WithLabelValues("insert", "success").Inc()
	return nil
}

const itemColumns = `id, raw_text, source, status, sentiment, category, urgency,
	summary, tags, vector_id, created_at, updated_at, processing_completed_at`

func (s *PostgresStore) Get(ctx context.Context, id string) (*FeedbackItem, error) {
	query := `SELECT ` + itemColumns + ` FROM feedback WHERE id = $1`

	item, err := scanItem(s.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		metrics.DatabaseOperations.WithLabelValues("get", "error").Inc()
		return nil, fmt.Errorf("failed to get feedback item: %w", err)
	}

	metrics.DatabaseOperations.WithLabelValues("get", "success").Inc()
	return item, nil
}

func (s *PostgresStore) List(ctx context.Context, limit, offset int) ([]*FeedbackItem, error) {
	query := `SELECT ` + itemColumns + `
		FROM feedback
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2`

	rows, err := s.db.QueryContext(ctx, query, limit, offset)
	if err != nil {
		metrics.DatabaseOperations.WithLabelValues("list", "error").Inc()
		return nil, fmt.Errorf("failed to list feedback items: %w", err)
	}
	defer rows.Close()

	items, err := scanItems(rows)
	if err != nil {
		metrics.DatabaseOperations.WithLabelValues("list", "error").Inc()
		return nil, err
	}

	metrics.DatabaseOperations.WithLabelValues("list", "success").Inc()
	return items, nil
}

func (s *PostgresStore) GetByIDs(ctx context.Context, ids []string) (map[string]*FeedbackItem, error) {
	if len(ids) == 0 {
		return map[string]*FeedbackItem{}, nil
	}

	query := `SELECT ` + itemColumns + ` FROM feedback WHERE id = ANY($1)`

	rows, err := s.db.QueryContext(ctx, query, pq.Array(ids))
	if err != nil {
		metrics.DatabaseOperations.WithLabelValues("get_by_ids", "error").Inc()
		return nil, fmt.Errorf("failed to hydrate feedback items: %w", err)
	}
	defer rows.Close()

	items, err := scanItems(rows)
	if err != nil {
		metrics.DatabaseOperations.WithLabelValues("get_by_ids", "error").Inc()
		return nil, err
	}

	byID := make(map[string]*FeedbackItem, len(items))
	for _, item := range items {
		byID[item.ID] = item
	}

	metrics.DatabaseOperations.WithLabelValues("get_by_ids", "success").Inc()
	return byID, nil
}

func (s *PostgresStore) SearchKeyword(ctx context.Context, query string, limit int) ([]*FeedbackItem, error) {
	sqlQuery := `SELECT ` + itemColumns + `
		FROM feedback
		WHERE raw_text ILIKE '%' || $1 || '%'
		ORDER BY created_at DESC
		LIMIT $2`

	rows, err := s.db.QueryContext(ctx, sqlQuery, query, limit)
	if err != nil {
		metrics.DatabaseOperations.WithLabelValues("search_keyword", "error").Inc()
		return nil, fmt.Errorf("failed to run keyword search: %w", err)
	}
	defer rows.Close()

	items, err := scanItems(rows)
	if err != nil {
		metrics.DatabaseOperations.WithLabelValues("search_keyword", "error").Inc()
		return nil, err
	}

	metrics.DatabaseOperations.WithLabelValues("search_keyword", "success").Inc()
	return items, nil
}

// CompleteProcessing writes all annotations and the terminal COMPLETED
// status in one statement, so an item is never observable half-annotated.
func (s *PostgresStore) CompleteProcessing(ctx context.Context, id string, ann Annotations, vectorID string) error {
	query := `
		UPDATE feedback
		SET sentiment = $1, category = $2, urgency = $3, summary = $4,
			tags = $5, vector_id = NULLIF($6, ''), status = $7,
			updated_at = NOW(), processing_completed_at = NOW()
		WHERE id = $8
	`

	result, err := s.db.ExecContext(ctx, query,
		ann.Sentiment, ann.Category, ann.Urgency, ann.Summary,
		pq.Array(ann.Tags), vectorID, StatusCompleted, id)
	if err != nil {
		metrics.DatabaseOperations.WithLabelValues("complete", "error").Inc()
		return fmt.Errorf("failed to finalize feedback item: %w", err)
	}

	affected, err := result.RowsAffected()
	if err == nil && affected == 0 {
		metrics.DatabaseOperations.WithLabelValues("complete", "error").Inc()
		return fmt.Errorf("failed to finalize feedback item %s: %w", id, ErrNotFound)
	}

	metrics.DatabaseOperations.WithLabelValues("complete", "success").Inc()
	return nil
}

func (s *PostgresStore) MarkFailed(ctx context.Context, id string) error {
	query := `
		UPDATE feedback
		SET status = $1, updated_at = NOW()
		WHERE id = $2 AND status = $3
	`

	_, err := s.db.ExecContext(ctx, query, StatusFailed, id, StatusProcessing)
	if err != nil {
		metrics.DatabaseOperations.WithLabelValues("mark_failed", "error").Inc()
		return fmt.Errorf("failed to mark feedback item failed: %w", err)
	}

	metrics.DatabaseOperations.WithLabelValues("mark_failed", "success").Inc()
	return nil
}

func (s *PostgresStore) ListMissingVectors(ctx context.Context, limit int) ([]*FeedbackItem, error) {
	query := `SELECT ` + itemColumns + `
		FROM feedback
		WHERE status = $1 AND vector_id IS NULL
		ORDER BY created_at ASC
		LIMIT $2`

	rows, err := s.db.QueryContext(ctx, query, StatusCompleted, limit)
	if err != nil {
		metrics.DatabaseOperations.WithLabelValues("list_missing_vectors", "error").Inc()
		return nil, fmt.Errorf("failed to list items missing vectors: %w", err)
	}
	defer rows.Close()

	return scanItems(rows)
}

func (s *PostgresStore) SetVectorID(ctx context.Context, id, vectorID string) error {
	query := `
		UPDATE feedback
		SET vector_id = $1, updated_at = NOW()
		WHERE id = $2
	`

	_, err := s.db.ExecContext(ctx, query, vectorID, id)
	if err != nil {
		metrics.DatabaseOperations.WithLabelValues("set_vector_id", "error").Inc()
		return fmt.Errorf("failed to set vector id: %w", err)
	}

	metrics.DatabaseOperations.WithLabelValues("set_vector_id", "success").Inc()
	return nil
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanItem(row rowScanner) (*FeedbackItem, error) {
	item := &FeedbackItem{}
	var sentiment, category, urgency, summary, vectorID sql.NullString
	var tags pq.StringArray
	var completedAt sql.NullTime

	err := row.Scan(
		&item.ID,
		&item.RawText,
		&item.Source,
		&item.Status,
		&sentiment,
		&category,
		&urgency,
		&summary,
		&tags,
		&vectorID,
		&item.CreatedAt,
		&item.UpdatedAt,
		&completedAt,
	)
	if err != nil {
		return nil, err
	}

	item.Sentiment = sentiment.String
	item.Category = category.String
	item.Urgency = urgency.String
	item.Summary = summary.String
	item.Tags = tags
	item.VectorID = vectorID.String
	if completedAt.Valid {
		t := completedAt.Time
		item.ProcessingCompletedAt = &t
	}

	return item, nil
}

func scanItems(rows *sql.Rows) ([]*FeedbackItem, error) {
	var items []*FeedbackItem
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan feedback item: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read feedback rows: %w", err)
	}
	return items, nil
}
