package postgres

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/samirrijal/raycross/internal/core/domain"
)

func TestPadRow(t *testing.T) {
	assert.Equal(t, [4]string{"1", "2", "", ""}, padRow(domain.RawRow{"1", "2"}))
	assert.Equal(t, [4]string{"1", "2", "3", "4"}, padRow(domain.RawRow{"1", "2", "3", "4", "extra"}))
	assert.Equal(t, [4]string{}, padRow(nil))
}

type stubObservations struct {
	rows map[string][]domain.RawRow
	err  error
}

func (s *stubObservations) InsertBatch(ctx context.Context, batch string, rows []domain.RawRow) (int, error) {
	return len(rows), s.err
}

func (s *stubObservations) RowsByBatch(ctx context.Context, batch string) ([]domain.RawRow, error) {
	return s.rows[batch], s.err
}

func (s *stubObservations) ListBatches(ctx context.Context) ([]string, error) { return nil, s.err }

func TestBatchFeed(t *testing.T) {
	repo := &stubObservations{rows: map[string][]domain.RawRow{
		"survey-1": {{"0", "0", "90", "1000"}},
	}}
	f := NewBatchFeed(repo, "survey-1")

	rows, err := f.Rows(context.Background())
	require.NoError(t, err)
	assert.Len(t, rows, 1)
	assert.Equal(t, "batch:survey-1", f.Source())

	repo.err = errors.New("boom")
	_, err = f.Rows(context.Background())
	assert.Error(t, err)
}
