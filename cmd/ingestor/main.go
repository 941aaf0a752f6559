package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/samirrijal/raycross/internal/adapters/feed"
	"github.com/samirrijal/raycross/internal/adapters/postgres"
	"github.com/samirrijal/raycross/internal/core/ports"
	"github.com/samirrijal/raycross/internal/pkg/config"
)

// Manifest lists the observation files to load, one batch each.
type Manifest struct {
	Source  string       `json:"source"`
	Batches []BatchEntry `json:"batches"`
}

// BatchEntry names a batch and where its rows come from. Exactly one of
// Path and URL is set.
type BatchEntry struct {
	Name string `json:"name"`
	Path string `json:"path,omitempty"`
	URL  string `json:"url,omitempty"`
}

func main() {
	cfg, err := config.Load("raycross-ingestor")
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	ctx := context.Background()

	db, err := postgres.New(ctx, cfg.Database.DSN())
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer db.Close()
	repo := postgres.NewObservationRepo(db)

	manifestPath := "manifest.json"
	if len(os.Args) > 1 {
		manifestPath = os.Args[1]
	}
	manifest, err := loadManifest(manifestPath)
	if err != nil {
		log.Fatalf("manifest: %v", err)
	}

	log.Printf("Raycross ingestor: %d batches from %s", len(manifest.Batches), manifest.Source)

	// Optional CLI arg: comma-separated batch names
	filter := map[string]bool{}
	if len(os.Args) > 2 {
		for _, s := range strings.Split(os.Args[2], ",") {
			filter[strings.TrimSpace(s)] = true
		}
	}

	client := &http.Client{Timeout: 120 * time.Second}

	var wg sync.WaitGroup
	sem := make(chan struct{}, 4) // max 4 concurrent loads

	for _, entry := range manifest.Batches {
		if len(filter) > 0 && !filter[entry.Name] {
			continue
		}

		wg.Add(1)
		go func(e BatchEntry) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			n, err := ingestBatch(ctx, repo, client, e)
			if err != nil {
				log.Printf("ERROR [%s]: %v", e.Name, err)
				return
			}
			log.Printf("[%s] %d rows stored", e.Name, n)
		}(entry)
	}

	wg.Wait()
	log.Println("ingestion complete")
}

func loadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read: %w", err)
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse: %w", err)
	}
	for i, b := range m.Batches {
		if b.Name == "" {
			return nil, fmt.Errorf("batch %d has no name", i)
		}
		if (b.Path == "") == (b.URL == "") {
			return nil, fmt.Errorf("batch %s: set exactly one of path and url", b.Name)
		}
	}
	return &m, nil
}

// ingestBatch reads one file and stores its rows unparsed. Invalid rows are
// kept; they are counted as skipped when a session imports the batch.
func ingestBatch(ctx context.Context, repo ports.ObservationRepository, client *http.Client, e BatchEntry) (int, error) {
	body, contentType, name, err := fetch(ctx, client, e)
	if err != nil {
		return 0, err
	}

	format, err := feed.Detect(contentType, name, body)
	if err != nil {
		return 0, err
	}
	rf, err := feed.FromBytes(format, body)
	if err != nil {
		return 0, err
	}
	rows, err := rf.Rows(ctx)
	if err != nil {
		return 0, fmt.Errorf("read %s: %w", rf.Source(), err)
	}
	return repo.InsertBatch(ctx, e.Name, rows)
}

func fetch(ctx context.Context, client *http.Client, e BatchEntry) (body []byte, contentType, name string, err error) {
	if e.Path != "" {
		body, err = os.ReadFile(e.Path)
		return body, "", filepath.Base(e.Path), err
	}

	log.Printf("[%s] downloading %s", e.Name, e.URL)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.URL, nil)
	if err != nil {
		return nil, "", "", err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, "", "", fmt.Errorf("download: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", "", fmt.Errorf("HTTP %d for %s", resp.StatusCode, e.URL)
	}
	body, err = io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", "", fmt.Errorf("read body: %w", err)
	}
	return body, resp.Header.Get("Content-Type"), filepath.Base(req.URL.Path), nil
}
