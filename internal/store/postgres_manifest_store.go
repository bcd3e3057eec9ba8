package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/dunamismax/levelforge/internal/domain"
	_ "github.com/lib/pq"
)

const manifestSchemaSQL = `
CREATE TABLE IF NOT EXISTS level_assets (
	run_id TEXT NOT NULL,
	level INTEGER NOT NULL,
	source_name TEXT NOT NULL,
	outputs JSONB NOT NULL,
	converted_at TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (run_id, level)
);
`

type PostgresManifestStore struct {
	db *sql.DB
}

func NewPostgresManifestStore(ctx context.Context, dsn string) (*PostgresManifestStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres connection: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	store := &PostgresManifestStore{db: db}
	if err := store.EnsureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return store, nil
}

func (s *PostgresManifestStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, manifestSchemaSQL); err != nil {
		return fmt.Errorf("ensure level_assets schema: %w", err)
	}
	return nil
}

func (s *PostgresManifestStore) Close() error {
	return s.db.Close()
}

func (s *PostgresManifestStore) RecordLevel(ctx context.Context, record domain.LevelRecord) error {
	outputsJSON, err := json.Marshal(record.Outputs)
	if err != nil {
		return fmt.Errorf("marshal level outputs: %w", err)
	}

	_, err = s.db.ExecContext(
		ctx,
		`INSERT INTO level_assets (run_id, level, source_name, outputs, converted_at)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (run_id, level) DO UPDATE
		 SET source_name = EXCLUDED.source_name,
		     outputs = EXCLUDED.outputs,
		     converted_at = EXCLUDED.converted_at`,
		record.RunID,
		record.Level,
		record.SourceName,
		outputsJSON,
		record.ConvertedAt,
	)
	if err != nil {
		return fmt.Errorf("insert level record: %w", err)
	}

	return nil
}

func (s *PostgresManifestStore) ListLevels(ctx context.Context, runID string) ([]domain.LevelRecord, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT run_id, level, source_name, outputs, converted_at
		 FROM level_assets
		 WHERE run_id = $1
		 ORDER BY level`,
		runID,
	)
	if err != nil {
		return nil, fmt.Errorf("query level records: %w", err)
	}
	defer rows.Close()

	var out []domain.LevelRecord
	for rows.Next() {
		var (
			record      domain.LevelRecord
			outputsJSON []byte
		)
		if err := rows.Scan(
			&record.RunID,
			&record.Level,
			&record.SourceName,
			&outputsJSON,
			&record.ConvertedAt,
		); err != nil {
			return nil, fmt.Errorf("scan level record: %w", err)
		}
		if err := json.Unmarshal(outputsJSON, &record.Outputs); err != nil {
			return nil, fmt.Errorf("unmarshal level outputs: %w", err)
		}
		out = append(out, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate level records: %w", err)
	}

	return out, nil
}
