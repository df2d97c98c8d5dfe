// Package devseed loads JSON fixtures used to pre-populate the in-memory
// Cosmo datastore in mock mode and in the sandbox server.
//
// A seed file maps dataset names to arrays of records:
//
//	{
//	  "posts": [
//	    {"id": "p1", "title": "hello", "body": "world", "createdAt": "2024-01-01T00:00:00.000Z"}
//	  ]
//	}
//
// Records without an "id" are assigned one when applied.
package devseed

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
)

// DatasetSeed holds the records seeded into one dataset.
type DatasetSeed struct {
	Dataset string
	Records []json.RawMessage
}

// LoadDatasetSeed reads and parses a seed file.
func LoadDatasetSeed(path string) ([]DatasetSeed, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("devseed: read %s: %w", path, err)
	}
	return ParseDatasetSeed(data)
}

// ParseDatasetSeed parses seed content. Datasets are returned sorted by name.
func ParseDatasetSeed(data []byte) ([]DatasetSeed, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}
	var raw map[string][]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("devseed: decode seed: %w", err)
	}

	names := make([]string, 0, len(raw))
	for name := range raw {
		if strings.TrimSpace(name) == "" {
			return nil, fmt.Errorf("devseed: dataset name is empty")
		}
		names = append(names, name)
	}
	sort.Strings(names)

	seeds := make([]DatasetSeed, 0, len(names))
	for _, name := range names {
		records := raw[name]
		for i, rec := range records {
			trimmed := bytes.TrimSpace(rec)
			if len(trimmed) == 0 || trimmed[0] != '{' {
				return nil, fmt.Errorf("devseed: %s[%d]: record must be a JSON object", name, i)
			}
		}
		seeds = append(seeds, DatasetSeed{Dataset: name, Records: records})
	}
	return seeds, nil
}
