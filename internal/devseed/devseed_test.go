package devseed

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDatasetSeed(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "seed.json")
	content := `{"posts":[{"id":"p1","title":"a"},{"title":"b"}],"authors":[]}`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write seed: %v", err)
	}

	seeds, err := LoadDatasetSeed(path)
	if err != nil {
		t.Fatalf("LoadDatasetSeed: %v", err)
	}
	if len(seeds) != 2 {
		t.Fatalf("expected 2 datasets, got %d", len(seeds))
	}
	if seeds[0].Dataset != "authors" || len(seeds[0].Records) != 0 {
		t.Fatalf("unexpected first dataset: %#v", seeds[0])
	}
	if seeds[1].Dataset != "posts" || len(seeds[1].Records) != 2 {
		t.Fatalf("unexpected second dataset: %#v", seeds[1])
	}
}

func TestParseDatasetSeedRejectsNonObjects(t *testing.T) {
	if _, err := ParseDatasetSeed([]byte(`{"posts":[1,2]}`)); err == nil {
		t.Fatalf("expected error for scalar records")
	}
	if _, err := ParseDatasetSeed([]byte(`[]`)); err == nil {
		t.Fatalf("expected error for non-object seed")
	}
}

func TestLoadDatasetSeedMissingFile(t *testing.T) {
	if _, err := LoadDatasetSeed(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}

func TestParseDatasetSeedEmpty(t *testing.T) {
	seeds, err := ParseDatasetSeed([]byte("  "))
	if err != nil {
		t.Fatalf("ParseDatasetSeed: %v", err)
	}
	if seeds != nil {
		t.Fatalf("expected nil seeds, got %#v", seeds)
	}
}
