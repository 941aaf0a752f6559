package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const squareCSV = `latitude,longitude,bearing,distance
0,-0.005,90,2223.9
0.01,-0.005,90,2223.9
-0.005,0,0,2223.9
-0.005,0.01,0,2223.9
`

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestProject(t *testing.T) {
	out, err := run(t, "project", "0", "0", "90", "1000")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out, "destination") || !strings.Contains(out, "0.008993") {
		t.Errorf("unexpected output:\n%s", out)
	}
}

func TestProject_InvalidInput(t *testing.T) {
	if _, err := run(t, "project", "0", "0", "90", "-1"); err == nil {
		t.Error("expected error for negative distance")
	}
	if _, err := run(t, "project", "0", "0", "90"); err == nil {
		t.Error("expected error for missing argument")
	}
}

func TestFit(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "square.csv")
	if err := os.WriteFile(path, []byte(squareCSV), 0o600); err != nil {
		t.Fatal(err)
	}
	geoPath := filepath.Join(dir, "out.geojson")

	out, err := run(t, "fit", "--rays", "--geojson", geoPath, path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, want := range []string{"4 rays loaded, 1 rows skipped", "4 of 6 pairs", "ellipse centre"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in output:\n%s", want, out)
		}
	}

	data, err := os.ReadFile(geoPath)
	if err != nil {
		t.Fatalf("geojson not written: %v", err)
	}
	var fc struct {
		Features []json.RawMessage `json:"features"`
	}
	if err := json.Unmarshal(data, &fc); err != nil {
		t.Fatal(err)
	}
	if len(fc.Features) != 9 {
		t.Errorf("expected 9 features, got %d", len(fc.Features))
	}
}

func TestFit_TooFewRays(t *testing.T) {
	path := filepath.Join(t.TempDir(), "two.csv")
	os.WriteFile(path, []byte("0,0,0,100\n0,0,90,100\n"), 0o600)

	out, err := run(t, "fit", path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out, "Please add at least three rays.") {
		t.Errorf("unexpected output:\n%s", out)
	}
}
