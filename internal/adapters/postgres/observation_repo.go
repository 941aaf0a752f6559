package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/samirrijal/raycross/internal/core/domain"
)

// ObservationRepo implements ports.ObservationRepository with pgx.
// Rows are stored as text so that invalid cells survive until import time,
// where they are counted as skipped rows.
type ObservationRepo struct {
	db *DB
}

// NewObservationRepo creates a new ObservationRepo.
func NewObservationRepo(db *DB) *ObservationRepo {
	return &ObservationRepo{db: db}
}

// InsertBatch appends rows to a batch using pgx.Batch. Rows with fewer than
// four cells are padded with empty strings.
func (r *ObservationRepo) InsertBatch(ctx context.Context, batch string, rows []domain.RawRow) (int, error) {
	if len(rows) == 0 {
		return 0, nil
	}

	var next int
	if err := r.db.Pool.QueryRow(ctx, `
		SELECT COALESCE(MAX(row_no) + 1, 0) FROM bearing_observations WHERE batch = $1
	`, batch).Scan(&next); err != nil {
		return 0, fmt.Errorf("next row: %w", err)
	}

	b := &pgx.Batch{}
	for i, row := range rows {
		cells := padRow(row)
		b.Queue(`
			INSERT INTO bearing_observations (batch, row_no, latitude, longitude, bearing, distance)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, batch, next+i, cells[0], cells[1], cells[2], cells[3])
	}

	br := r.db.Pool.SendBatch(ctx, b)
	defer br.Close()
	for range rows {
		if _, err := br.Exec(); err != nil {
			return 0, fmt.Errorf("batch exec: %w", err)
		}
	}
	return len(rows), nil
}

// RowsByBatch returns a batch's rows in insertion order.
func (r *ObservationRepo) RowsByBatch(ctx context.Context, batch string) ([]domain.RawRow, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT latitude, longitude, bearing, distance
		FROM bearing_observations
		WHERE batch = $1
		ORDER BY row_no
	`, batch)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.RawRow
	for rows.Next() {
		var lat, lon, bearing, dist string
		if err := rows.Scan(&lat, &lon, &bearing, &dist); err != nil {
			return nil, err
		}
		out = append(out, domain.RawRow{lat, lon, bearing, dist})
	}
	return out, rows.Err()
}

// ListBatches returns batch names, newest first.
func (r *ObservationRepo) ListBatches(ctx context.Context) ([]string, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT batch FROM bearing_observations
		GROUP BY batch
		ORDER BY MAX(created_at) DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		out = append(out, name)
	}
	return out, rows.Err()
}

func padRow(row domain.RawRow) [4]string {
	var cells [4]string
	copy(cells[:], row)
	return cells
}
