package ports

import (
	"context"

	"github.com/samirrijal/raycross/internal/core/domain"
)

// ObservationRepository persists bulk-import rows grouped in named batches.
type ObservationRepository interface {
	InsertBatch(ctx context.Context, batch string, rows []domain.RawRow) (int, error)
	RowsByBatch(ctx context.Context, batch string) ([]domain.RawRow, error)
	ListBatches(ctx context.Context) ([]string, error)
}
