package store

import (
	"context"

	"github.com/dunamismax/levelforge/internal/domain"
)

// ManifestStore records which assets each run produced for each level.
type ManifestStore interface {
	RecordLevel(ctx context.Context, record domain.LevelRecord) error
	ListLevels(ctx context.Context, runID string) ([]domain.LevelRecord, error)
}
