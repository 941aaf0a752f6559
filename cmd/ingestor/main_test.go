package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/samirrijal/raycross/internal/core/domain"
)

type memRepo struct {
	batches map[string][]domain.RawRow
}

func (m *memRepo) InsertBatch(ctx context.Context, batch string, rows []domain.RawRow) (int, error) {
	m.batches[batch] = append(m.batches[batch], rows...)
	return len(rows), nil
}

func (m *memRepo) RowsByBatch(ctx context.Context, batch string) ([]domain.RawRow, error) {
	return m.batches[batch], nil
}

func (m *memRepo) ListBatches(ctx context.Context) ([]string, error) { return nil, nil }

const sampleCSV = "latitude,longitude,bearing,distance\n43.26,-2.93,45,1500\n"

func TestLoadManifest(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "manifest.json")

	os.WriteFile(path, []byte(`{"source":"survey","batches":[{"name":"a","path":"a.csv"},{"name":"b","url":"http://x/b.csv"}]}`), 0o600)
	m, err := loadManifest(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(m.Batches) != 2 {
		t.Fatalf("expected 2 batches, got %d", len(m.Batches))
	}

	os.WriteFile(path, []byte(`{"batches":[{"name":"a","path":"a.csv","url":"http://x"}]}`), 0o600)
	if _, err := loadManifest(path); err == nil {
		t.Error("expected error when both path and url are set")
	}

	os.WriteFile(path, []byte(`{"batches":[{"path":"a.csv"}]}`), 0o600)
	if _, err := loadManifest(path); err == nil {
		t.Error("expected error for unnamed batch")
	}
}

func TestIngestBatch_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "obs.csv")
	if err := os.WriteFile(path, []byte(sampleCSV), 0o600); err != nil {
		t.Fatal(err)
	}

	repo := &memRepo{batches: map[string][]domain.RawRow{}}
	n, err := ingestBatch(context.Background(), repo, http.DefaultClient, BatchEntry{Name: "survey", Path: path})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// The header row is stored too; it is skipped at import time.
	if n != 2 || len(repo.batches["survey"]) != 2 {
		t.Fatalf("expected 2 rows stored, got %d", n)
	}
}

func TestIngestBatch_URL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/csv")
		w.Write([]byte(sampleCSV))
	}))
	defer srv.Close()

	repo := &memRepo{batches: map[string][]domain.RawRow{}}
	n, err := ingestBatch(context.Background(), repo, srv.Client(), BatchEntry{Name: "remote", URL: srv.URL + "/obs"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 2 {
		t.Errorf("expected 2 rows, got %d", n)
	}
}

func TestIngestBatch_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	repo := &memRepo{batches: map[string][]domain.RawRow{}}
	if _, err := ingestBatch(context.Background(), repo, srv.Client(), BatchEntry{Name: "x", URL: srv.URL + "/missing.csv"}); err == nil {
		t.Error("expected error for 404")
	}
}
