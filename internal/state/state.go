// Package state persists the selection Decision Record: a single JSON
// artifact capturing the full decision trail of one pipeline run.
package state

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/geranium-0019/sbas-pipeline/internal/config"
	"github.com/geranium-0019/sbas-pipeline/internal/sbas"
)

// FileName is the state artifact name under <project>/.state/.
const FileName = "sbas_pairs.json"

// Record is the persisted Decision Record. Downstream steps read
// exactly two fields as contract: selected_bbox and selected_ids;
// everything else is audit trail and may grow without breaking readers.
type Record struct {
	GeneratedAt string `json:"generated_at"`
	RunID       string `json:"run_id"`

	// Configuration echo
	AOIBBox        []float64             `json:"aoi_bbox"`
	DateStart      string                `json:"date_start"`
	DateEnd        string                `json:"date_end"`
	OrbitDirection string                `json:"orbit_direction,omitempty"`
	Download       config.DownloadConfig `json:"s1_download"`
	SBASParams     config.SBASConfig     `json:"sbas_params"`
	ThinParams     config.ThinConfig     `json:"thin_params"`

	// Grouping decision
	TotalCandidates        int            `json:"total_candidates"`
	Groups                 map[string]int `json:"groups"`
	ChosenGroupKey         string         `json:"chosen_group_key"`
	EnforceSameFrame       bool           `json:"enforce_same_frame"`
	ChosenFrame            string         `json:"chosen_frame,omitempty"`
	ChosenGroupFrameCounts map[string]int `json:"chosen_group_frame_counts"`

	// Geometry
	ChosenGroupBBox []float64 `json:"chosen_group_bbox,omitempty"`
	SelectedBBox    []float64 `json:"selected_bbox,omitempty"`

	// Thinning and selection
	ChosenGroupSizeBefore int         `json:"chosen_group_size_before"`
	ChosenGroupSizeAfter  int         `json:"chosen_group_size_after"`
	SelectedCount         int         `json:"selected_count"`
	SelectedIDs           []string    `json:"selected_ids"`
	Pairs                 []sbas.Pair `json:"pairs"` // indices into the thinned list
	PairsCount            int         `json:"pairs_count"`
}

// Path returns the state artifact path for a project directory.
func Path(projectDir string) string {
	return filepath.Join(projectDir, ".state", FileName)
}

// Write persists the record at path with write-then-replace semantics:
// a reader never observes a half-written document, and any prior record
// is replaced whole.
func Write(path string, rec *Record) error {
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal decision record: %w", err)
	}
	data = append(data, '\n')

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to replace %s: %w", path, err)
	}
	return nil
}

// Read loads a previously written record, as downstream steps do.
func Read(path string) (*Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read state file: %w", err)
	}
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("failed to parse state file %s: %w", path, err)
	}
	return &rec, nil
}
