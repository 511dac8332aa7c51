package workflow

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
)

// PostgresCheckpointStore persists checkpoints in a workflow_checkpoints
// table, one row per (run, step).
type PostgresCheckpointStore struct {
	db *sql.DB
}

func NewPostgresCheckpointStore(db *sql.DB) (*PostgresCheckpointStore, error) {
	createTableSQL := `
		CREATE TABLE IF NOT EXISTS workflow_checkpoints (
			run_id VARCHAR(64) NOT NULL,
			step VARCHAR(64) NOT NULL,
			output JSONB NOT NULL,
			completed_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
			PRIMARY KEY (run_id, step)
		);
	`
	if _, err := db.Exec(createTableSQL); err != nil {
		return nil, fmt.Errorf("failed to create workflow_checkpoints table: %w", err)
	}

	return &PostgresCheckpointStore{db: db}, nil
}

func (s *PostgresCheckpointStore) Save(ctx context.Context, runID, step string, output json.RawMessage) error {
	query := `
		INSERT INTO workflow_checkpoints (run_id, step, output)
		VALUES ($1, $2, $3)
		ON CONFLICT (run_id, step)
		DO UPDATE SET output = EXCLUDED.output, completed_at = NOW()
	`

	if _, err := s.db.ExecContext(ctx, query, runID, step, []byte(output)); err != nil {
		return fmt.Errorf("failed to save checkpoint %s/%s: %w", runID, step, err)
	}
	return nil
}

func (s *PostgresCheckpointStore) Load(ctx context.Context, runID string) (map[string]json.RawMessage, error) {
	query := `SELECT step, output FROM workflow_checkpoints WHERE run_id = $1`

	rows, err := s.db.QueryContext(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to load checkpoints for %s: %w", runID, err)
	}
	defer rows.Close()

	outputs := make(map[string]json.RawMessage)
	for rows.Next() {
		var step string
		var output []byte
		if err := rows.Scan(&step, &output); err != nil {
			return nil, fmt.Errorf("failed to scan checkpoint: %w", err)
		}
		outputs[step] = json.RawMessage(output)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read checkpoints: %w", err)
	}

	return outputs, nil
}

// MemoryCheckpointStore is an in-memory CheckpointStore for tests and
// single-process development setups.
type MemoryCheckpointStore struct {
	mu   sync.Mutex
	runs map[string]map[string]json.RawMessage
}

func NewMemoryCheckpointStore() *MemoryCheckpointStore {
	return &MemoryCheckpointStore{runs: make(map[string]map[string]json.RawMessage)}
}

func (s *MemoryCheckpointStore) Save(ctx context.Context, runID, step string, output json.RawMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.runs[runID] == nil {
		s.runs[runID] = make(map[string]json.RawMessage)
	}
	s.runs[runID][step] = output
	return nil
}

func (s *MemoryCheckpointStore) Load(ctx context.Context, runID string) (map[string]json.RawMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	outputs := make(map[string]json.RawMessage, len(s.runs[runID]))
	for step, output := range s.runs[runID] {
		outputs[step] = output
	}
	return outputs, nil
}
