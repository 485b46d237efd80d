package manifest

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

const (
	manifestName = "manifest.json"
)

const (
	StageCollect = "collect"
	StageEmbed   = "embed"
	StageReduce  = "reduce"
	StageIndex   = "index"
	StageExport  = "export"
)

// StageData records what a pipeline stage last produced.
type StageData struct {
	Output    string
	Records   int
	Model     string `json:",omitempty"`
	Dimension int    `json:",omitempty"`
	Completed string
}

// Runs is the manifest kept alongside the stage files in the data directory.
type Runs struct {
	LastUpdated string
	Stages      map[string]StageData
}

func Load(dataDirectory string) (*Runs, error) {
	var manifest Runs
	manifestBytes, err := os.ReadFile(filepath.Join(dataDirectory, manifestName))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("unexpected error reading run manifest: %w", err)
	}

	if err == nil {
		err = json.Unmarshal(manifestBytes, &manifest)
		if err != nil {
			return nil, fmt.Errorf("unexpected error parsing run manifest: %w", err)
		}
	}
	if manifest.Stages == nil {
		manifest.Stages = make(map[string]StageData)
	}

	return &manifest, nil
}

// Record stamps stage with the current time and stores it.
func (r *Runs) Record(stage string, data StageData) {
	now := time.Now().UTC().Format(time.RFC3339)
	data.Completed = now
	r.Stages[stage] = data
	r.LastUpdated = now
}

func Update(dataDirectory string, manifest *Runs) error {
	manifestBytes, err := json.MarshalIndent(manifest, "", " ")
	if err != nil {
		return fmt.Errorf("failed to marshal manifest for updating: %w", err)
	}
	if err := os.MkdirAll(dataDirectory, 0755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}
	err = os.WriteFile(filepath.Join(dataDirectory, manifestName), manifestBytes, 0644)
	if err != nil {
		return fmt.Errorf("failed to write updated manifest: %w", err)
	}

	return nil
}

// Stamp loads the manifest in dataDirectory, records one stage and writes it
// back.
func Stamp(dataDirectory, stage string, data StageData) error {
	runs, err := Load(dataDirectory)
	if err != nil {
		return err
	}
	runs.Record(stage, data)
	return Update(dataDirectory, runs)
}
