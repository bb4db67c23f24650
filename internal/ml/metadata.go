package ml

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"migraine-sense/internal/common"
)

// ModelMetadata contains information about the loaded model
type ModelMetadata struct {
	Version      string    `json:"version"`
	ModelType    string    `json:"model_type"`
	TrainedAt    time.Time `json:"trained_at"`
	Features     []string  `json:"features,omitempty"`
	Accuracy     float64   `json:"accuracy"`
	TrainingRows int       `json:"training_rows"`
}

func defaultMetadata() ModelMetadata {
	return ModelMetadata{Version: "unknown"}
}

// loadModelMetadata reads model_metadata.json from dir, falling back to the
// newest model_metadata_*.json.
func loadModelMetadata(dir string) (*ModelMetadata, error) {
	primary := filepath.Join(dir, common.ModelMetadataFile)

	if md, err := decodeMetadata(primary); err == nil {
		return md, nil
	}

	pattern := filepath.Join(dir, "model_metadata_*.json")
	matches, err := filepath.Glob(pattern)
	if err != nil || len(matches) == 0 {
		return nil, fmt.Errorf("no metadata files found in %s", dir)
	}
	sort.Strings(matches)                          // chronological order
	return decodeMetadata(matches[len(matches)-1]) // newest
}

func decodeMetadata(path string) (*ModelMetadata, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var md ModelMetadata
	if err := json.NewDecoder(file).Decode(&md); err != nil {
		return nil, err
	}
	if md.Version == "" {
		md.Version = "unknown"
	}
	return &md, nil
}
