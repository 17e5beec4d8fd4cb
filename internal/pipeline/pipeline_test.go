package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/geranium-0019/sbas-pipeline/internal/asf"
	"github.com/geranium-0019/sbas-pipeline/internal/config"
	"github.com/geranium-0019/sbas-pipeline/internal/scene"
	"github.com/geranium-0019/sbas-pipeline/internal/state"
	"github.com/geranium-0019/sbas-pipeline/pkg/geojson"
)

// fakeClient serves a canned catalog and records what the pipeline
// asked of it.
type fakeClient struct {
	features   []asf.Feature
	searchErr  error
	lastParams asf.SearchParams
	downloads  []string
}

func (f *fakeClient) Search(ctx context.Context, params asf.SearchParams) (*asf.SearchResponse, error) {
	f.lastParams = params
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	return &asf.SearchResponse{Type: "FeatureCollection", Features: f.features}, nil
}

func (f *fakeClient) DownloadGranule(ctx context.Context, url, destPath string) error {
	f.downloads = append(f.downloads, url)
	return os.WriteFile(destPath, []byte("granule"), 0o644)
}

// granule builds a catalog feature over the test AOI. frame may be a
// string, a float64 or nil for missing frame metadata.
func granule(id, startTime string, frame any) asf.Feature {
	coords := json.RawMessage(`[[[130.0,32.0],[131.0,32.0],[131.0,33.0],[130.0,33.0],[130.0,32.0]]]`)
	props := asf.Properties{
		"sceneName":       id,
		"startTime":       startTime,
		"pathNumber":      float64(46),
		"flightDirection": "ASCENDING",
		"processingLevel": "SLC",
		"beamMode":        "IW",
		"url":             "https://example.com/" + id + ".zip",
		"fileName":        id + ".zip",
	}
	if frame != nil {
		props["frameNumber"] = frame
	}
	return asf.Feature{
		Type:       "Feature",
		Geometry:   &geojson.Geometry{Type: "Polygon", Coordinates: coords},
		Properties: props,
	}
}

// fiveDayStack is the 5-acquisition timeline at days [0, 6, 12, 18, 24].
func fiveDayStack() []asf.Feature {
	days := []string{"2023-01-01", "2023-01-07", "2023-01-13", "2023-01-19", "2023-01-25"}
	features := make([]asf.Feature, len(days))
	for i, d := range days {
		features[i] = granule(fmt.Sprintf("S1A_%02d", i), d+"T09:00:00.000000", float64(447))
	}
	return features
}

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.AOIBBox = []float64{130, 32, 131, 33}
	cfg.DateStart = "2023-01-01"
	cfg.DateEnd = "2023-02-28"
	cfg.OrbitDirection = "ASC"
	cfg.SBAS.MaxTemporalDays = 20
	return cfg
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRun_EndToEnd(t *testing.T) {
	projectDir := t.TempDir()
	client := &fakeClient{features: fiveDayStack()}
	p := New(testConfig(), client, discardLogger())

	summary, err := p.Run(context.Background(), projectDir, false)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if !summary.Searched || !summary.Downloaded {
		t.Errorf("Expected searched and downloaded, got %+v", summary)
	}
	if summary.TotalCandidates != 5 || summary.SelectedCount != 5 {
		t.Errorf("Expected 5 candidates all selected, got %+v", summary)
	}
	if summary.ChosenGroupKey != "(46, ASCENDING, SLC, IW)" {
		t.Errorf("Unexpected chosen group key: %s", summary.ChosenGroupKey)
	}
	if summary.PairsCount != 7 {
		t.Errorf("Expected 7 pairs for the 5-day stack, got %d", summary.PairsCount)
	}

	rec, err := state.Read(summary.PairsFile)
	if err != nil {
		t.Fatalf("Failed to read decision record: %v", err)
	}
	if rec.ChosenFrame != "447" {
		t.Errorf("Expected chosen frame 447, got %q", rec.ChosenFrame)
	}
	if len(rec.SelectedIDs) != rec.SelectedCount {
		t.Errorf("selected_ids length %d does not match selected_count %d", len(rec.SelectedIDs), rec.SelectedCount)
	}
	if len(rec.SelectedBBox) != 4 {
		t.Errorf("Expected a 4-element selected_bbox, got %v", rec.SelectedBBox)
	}
	for _, p := range rec.Pairs {
		if p.I < 0 || p.J >= rec.SelectedCount || p.I >= p.J {
			t.Errorf("Pair %v does not index the selected list", p)
		}
	}

	if len(client.downloads) != 5 {
		t.Errorf("Expected 5 downloads, got %d", len(client.downloads))
	}
	for i := 0; i < 5; i++ {
		name := fmt.Sprintf("S1A_%02d.zip", i)
		if _, err := os.Stat(filepath.Join(summary.OutDir, name)); err != nil {
			t.Errorf("Expected %s in output directory: %v", name, err)
		}
	}
}

func TestRun_SearchParams(t *testing.T) {
	projectDir := t.TempDir()
	client := &fakeClient{features: fiveDayStack()}
	p := New(testConfig(), client, discardLogger())

	if _, err := p.Run(context.Background(), projectDir, true); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	params := client.lastParams
	if len(params.Dataset) != 1 || params.Dataset[0] != "SENTINEL-1" {
		t.Errorf("Unexpected dataset: %v", params.Dataset)
	}
	if params.FlightDirection != "ASCENDING" {
		t.Errorf("Expected normalized flight direction ASCENDING, got %q", params.FlightDirection)
	}
	if params.IntersectsWith != "POLYGON((130 32,131 32,131 33,130 33,130 32))" {
		t.Errorf("Unexpected AOI polygon: %s", params.IntersectsWith)
	}
	if params.Start == nil || params.End == nil {
		t.Fatal("Expected both start and end to be set")
	}
	if h, m, s := params.End.Clock(); h != 23 || m != 59 || s != 59 {
		t.Errorf("Expected inclusive day end, got %v", params.End)
	}
}

func TestRun_EmptyCatalog(t *testing.T) {
	projectDir := t.TempDir()
	client := &fakeClient{}
	p := New(testConfig(), client, discardLogger())

	summary, err := p.Run(context.Background(), projectDir, false)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if !summary.Searched || summary.Downloaded || summary.TotalCandidates != 0 {
		t.Errorf("Unexpected summary for empty catalog: %+v", summary)
	}
	if _, err := os.Stat(state.Path(projectDir)); !os.IsNotExist(err) {
		t.Error("Expected no decision record for an empty catalog")
	}
}

func TestRun_SearchOnly(t *testing.T) {
	projectDir := t.TempDir()
	client := &fakeClient{features: fiveDayStack()}
	p := New(testConfig(), client, discardLogger())

	summary, err := p.Run(context.Background(), projectDir, true)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if summary.Downloaded {
		t.Error("Expected no download in search-only mode")
	}
	if len(client.downloads) != 0 {
		t.Errorf("Expected no download calls, got %d", len(client.downloads))
	}
	if _, err := os.Stat(summary.PairsFile); err != nil {
		t.Errorf("Expected decision record even in search-only mode: %v", err)
	}
}

func TestRun_DrySearchOnlyConfig(t *testing.T) {
	projectDir := t.TempDir()
	client := &fakeClient{features: fiveDayStack()}
	cfg := testConfig()
	cfg.Download.DrySearchOnly = true
	p := New(cfg, client, discardLogger())

	summary, err := p.Run(context.Background(), projectDir, false)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if summary.Downloaded || len(client.downloads) != 0 {
		t.Error("Expected dry_search_only to suppress downloads")
	}
}

func TestRun_MissingFrameMetadata(t *testing.T) {
	projectDir := t.TempDir()
	client := &fakeClient{features: []asf.Feature{
		granule("S1A_00", "2023-01-01T09:00:00.000000", nil),
		granule("S1A_01", "2023-01-13T09:00:00.000000", nil),
		granule("S1A_02", "2023-01-25T09:00:00.000000", nil),
	}}
	p := New(testConfig(), client, discardLogger())

	_, err := p.Run(context.Background(), projectDir, false)
	if !errors.Is(err, scene.ErrMissingFrameMetadata) {
		t.Fatalf("Expected ErrMissingFrameMetadata, got %v", err)
	}
}

func TestRun_FrameEnforcementOff(t *testing.T) {
	projectDir := t.TempDir()
	client := &fakeClient{features: []asf.Feature{
		granule("S1A_00", "2023-01-01T09:00:00.000000", nil),
		granule("S1A_01", "2023-01-13T09:00:00.000000", nil),
		granule("S1A_02", "2023-01-25T09:00:00.000000", nil),
	}}
	cfg := testConfig()
	cfg.SBAS.EnforceSameFrame = false
	p := New(cfg, client, discardLogger())

	summary, err := p.Run(context.Background(), projectDir, true)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if summary.SelectedCount != 3 {
		t.Errorf("Expected all 3 scenes selected with enforcement off, got %d", summary.SelectedCount)
	}
}

func TestRun_Thinning(t *testing.T) {
	projectDir := t.TempDir()
	client := &fakeClient{features: fiveDayStack()}
	cfg := testConfig()
	cfg.SBAS.Thin.MinRepeatDays = 12
	p := New(cfg, client, discardLogger())

	summary, err := p.Run(context.Background(), projectDir, true)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	// Spacing keeps days [0, 12, 24]: size goes 5 -> 3.
	if summary.ChosenGroupSizeBefore != 5 || summary.ChosenGroupSizeAfter != 3 {
		t.Errorf("Expected 5 -> 3 after thinning, got %d -> %d",
			summary.ChosenGroupSizeBefore, summary.ChosenGroupSizeAfter)
	}

	rec, err := state.Read(summary.PairsFile)
	if err != nil {
		t.Fatalf("Failed to read decision record: %v", err)
	}
	if rec.ChosenGroupSizeBefore != 5 || rec.ChosenGroupSizeAfter != 3 {
		t.Errorf("Record sizes disagree with summary: %d -> %d",
			rec.ChosenGroupSizeBefore, rec.ChosenGroupSizeAfter)
	}
}

func TestRun_SearchError(t *testing.T) {
	client := &fakeClient{searchErr: errors.New("upstream down")}
	p := New(testConfig(), client, discardLogger())

	if _, err := p.Run(context.Background(), t.TempDir(), false); err == nil {
		t.Fatal("Expected error when the catalog search fails, got nil")
	}
}
