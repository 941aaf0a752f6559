package postgres

import (
	"context"

	"github.com/samirrijal/raycross/internal/core/domain"
	"github.com/samirrijal/raycross/internal/core/ports"
)

// BatchFeed reads one stored batch as a row feed.
type BatchFeed struct {
	repo  ports.ObservationRepository
	batch string
}

// NewBatchFeed creates a feed over a named batch.
func NewBatchFeed(repo ports.ObservationRepository, batch string) *BatchFeed {
	return &BatchFeed{repo: repo, batch: batch}
}

// Rows loads the batch.
func (f *BatchFeed) Rows(ctx context.Context) ([]domain.RawRow, error) {
	return f.repo.RowsByBatch(ctx, f.batch)
}

// Source names the feed after its batch.
func (f *BatchFeed) Source() string { return "batch:" + f.batch }
