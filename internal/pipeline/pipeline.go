// Package pipeline runs the end-to-end SBAS scene selection: catalog
// search, grouping, frame enforcement, thinning, pair building,
// selection reduction, state write and download.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/geranium-0019/sbas-pipeline/internal/asf"
	"github.com/geranium-0019/sbas-pipeline/internal/config"
	"github.com/geranium-0019/sbas-pipeline/internal/download"
	"github.com/geranium-0019/sbas-pipeline/internal/sbas"
	"github.com/geranium-0019/sbas-pipeline/internal/scene"
	"github.com/geranium-0019/sbas-pipeline/internal/state"
	"github.com/geranium-0019/sbas-pipeline/pkg/geojson"
)

// Searcher is the catalog search collaborator.
type Searcher interface {
	Search(ctx context.Context, params asf.SearchParams) (*asf.SearchResponse, error)
}

// Client bundles the two external collaborators the pipeline needs;
// *asf.Client satisfies it.
type Client interface {
	Searcher
	download.Fetcher
}

// Summary is the caller-facing result of one run.
type Summary struct {
	Searched              bool
	Downloaded            bool
	TotalCandidates       int
	ChosenGroupKey        string
	ChosenGroupSizeBefore int
	ChosenGroupSizeAfter  int
	SelectedCount         int
	PairsCount            int
	OutDir                string
	PairsFile             string
}

// Pipeline wires configuration, the ASF client and a logger.
type Pipeline struct {
	cfg    *config.Config
	client Client
	logger *slog.Logger
}

// New creates a pipeline.
func New(cfg *config.Config, client Client, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{cfg: cfg, client: client, logger: logger}
}

// Run executes the pipeline against projectDir. With searchOnly (or
// s1_download.dry_search_only) every stage through the state write
// runs, but no download is attempted. An empty catalog is not an
// error: the summary comes back with zero counts and no state file.
func (p *Pipeline) Run(ctx context.Context, projectDir string, searchOnly bool) (*Summary, error) {
	cfg := p.cfg

	results, err := p.search(ctx)
	if err != nil {
		return nil, err
	}

	if len(results.Features) == 0 {
		p.logger.Info("search returned no candidates")
		return &Summary{Searched: true}, nil
	}

	infos, err := scene.Extract(results.Features)
	if err != nil {
		return nil, fmt.Errorf("failed to extract scene info: %w", err)
	}

	groups := scene.GroupByKey(infos)
	chosenKey, chosenInfos, err := scene.ChooseGroup(groups, cfg.SBAS.ChooseGroup)
	if err != nil {
		return nil, err
	}
	p.logger.Info("chose acquisition group",
		slog.String("key", chosenKey.String()),
		slog.Int("size", len(chosenInfos)),
		slog.Int("groups", len(groups)),
	)

	beforeFrameFilter := chosenInfos
	frameCountsBefore := scene.FrameCounts(beforeFrameFilter)

	// SBAS stacks must not mix frames/slices; enforcement is on by
	// default and opting out is an explicit, warned decision.
	var chosenFrame string
	if cfg.SBAS.EnforceSameFrame {
		chosenFrame, chosenInfos = scene.ChooseDominantFrame(chosenInfos)
		if chosenFrame == "" {
			return nil, fmt.Errorf("%w, but sbas.enforce_same_frame is enabled (default); "+
				"adjust search filters or explicitly set sbas.enforce_same_frame: false",
				scene.ErrMissingFrameMetadata)
		}
		p.logger.Info("enforced single frame",
			slog.String("frame", chosenFrame),
			slog.Int("kept", len(chosenInfos)),
		)
	} else if len(frameCountsBefore) > 1 {
		p.logger.Warn("multiple frames detected in chosen group and sbas.enforce_same_frame is disabled",
			slog.Any("frame_counts", frameCountsBefore),
		)
	}

	beforeThinning := chosenInfos
	chosenInfos = sbas.Thin(chosenInfos, cfg.SBAS.Thin.MinRepeatDays, cfg.SBAS.Thin.MaxAcquisitions, cfg.SBAS.Thin.KeepEnds)

	pairs := sbas.BuildPairs(scene.Times(chosenInfos), cfg.SBAS.MaxTemporalDays, cfg.SBAS.KNeighbors, cfg.SBAS.EnsureChain)

	selected := make([]scene.Info, 0, len(chosenInfos))
	for _, i := range sbas.UsedIndices(pairs) {
		selected = append(selected, chosenInfos[i])
	}

	selectedIDs := make([]string, len(selected))
	for i, info := range selected {
		selectedIDs[i] = info.Feature.Properties.SceneID()
	}

	groupSizes := make(map[string]int, len(groups))
	for k, v := range groups {
		groupSizes[k.String()] = len(v)
	}

	rec := &state.Record{
		GeneratedAt:            time.Now().UTC().Truncate(time.Second).Format(time.RFC3339),
		RunID:                  uuid.NewString(),
		AOIBBox:                cfg.AOIBBox,
		DateStart:              cfg.DateStart,
		DateEnd:                cfg.DateEnd,
		OrbitDirection:         cfg.OrbitDirection,
		Download:               cfg.Download,
		SBASParams:             cfg.SBAS,
		ThinParams:             cfg.SBAS.Thin,
		TotalCandidates:        len(results.Features),
		Groups:                 groupSizes,
		ChosenGroupKey:         chosenKey.String(),
		EnforceSameFrame:       cfg.SBAS.EnforceSameFrame,
		ChosenFrame:            chosenFrame,
		ChosenGroupFrameCounts: frameCountsBefore,
		ChosenGroupBBox:        bboxOf(beforeThinning),
		SelectedBBox:           bboxOf(selected),
		ChosenGroupSizeBefore:  len(beforeThinning),
		ChosenGroupSizeAfter:   len(chosenInfos),
		SelectedCount:          len(selected),
		SelectedIDs:            selectedIDs,
		Pairs:                  pairs,
		PairsCount:             len(pairs),
	}

	pairsFile := state.Path(projectDir)
	if err := state.Write(pairsFile, rec); err != nil {
		return nil, err
	}
	p.logger.Info("wrote decision record",
		slog.String("path", pairsFile),
		slog.Int("selected", len(selected)),
		slog.Int("pairs", len(pairs)),
	)

	outDir := filepath.Join(projectDir, cfg.Download.OutDir)
	summary := &Summary{
		Searched:              true,
		TotalCandidates:       len(results.Features),
		ChosenGroupKey:        chosenKey.String(),
		ChosenGroupSizeBefore: len(beforeThinning),
		ChosenGroupSizeAfter:  len(chosenInfos),
		SelectedCount:         len(selected),
		PairsCount:            len(pairs),
		OutDir:                outDir,
		PairsFile:             pairsFile,
	}

	if searchOnly || cfg.Download.DrySearchOnly {
		return summary, nil
	}

	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	items := make([]download.Item, len(selected))
	for i, info := range selected {
		props := info.Feature.Properties
		items[i] = download.Item{
			ID:       props.SceneID(),
			URL:      props.URL(),
			FileName: props.FileName(),
		}
	}

	driver := download.NewDriver(p.client, outDir, cfg.Download.SkipExisting, cfg.Download.ShowProgress, p.logger)
	var results2 []download.Result
	if cfg.Download.ShowProgress {
		results2, err = driver.Run(ctx, items)
	} else {
		results2, err = driver.RunBulk(ctx, items, cfg.Download.Processes)
	}
	if err != nil {
		completed := make([]string, len(results2))
		for i, r := range results2 {
			completed[i] = r.ID
		}
		p.logger.Error("download aborted",
			slog.Any("completed", completed),
			slog.String("error", err.Error()),
		)
		return nil, err
	}

	p.logger.Info("download complete", slog.String("out_dir", outDir))
	summary.Downloaded = true
	return summary, nil
}

// search builds the AOI polygon (with optional inward shrink) and runs
// the catalog query.
func (p *Pipeline) search(ctx context.Context) (*asf.SearchResponse, error) {
	cfg := p.cfg

	aoiWKT, err := geojson.ShrinkToWKT(cfg.AOIBBox, cfg.Download.AOIShrinkM)
	if err != nil {
		return nil, err
	}

	flightDirection, err := config.NormalizeOrbitDirection(cfg.OrbitDirection)
	if err != nil {
		return nil, err
	}

	start := cfg.StartTime()
	end := cfg.EndTime()

	params := asf.SearchParams{
		Dataset:         []string{"SENTINEL-1"},
		IntersectsWith:  aoiWKT,
		Start:           &start,
		End:             &end,
		BeamMode:        []string{cfg.Download.BeamMode},
		ProcessingLevel: []string{cfg.Download.ProcessingLevel},
		FlightDirection: flightDirection,
		MaxResults:      cfg.Download.MaxResults,
		Output:          "geojson",
	}
	if cfg.Download.Platform != "" {
		params.Platform = []string{cfg.Download.Platform}
	}

	results, err := p.client.Search(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("catalog search failed: %w", err)
	}
	return results, nil
}

// bboxOf unions the per-scene bounding boxes of infos.
func bboxOf(infos []scene.Info) []float64 {
	boxes := make([][]float64, 0, len(infos))
	for _, info := range infos {
		if b := geojson.ComputeBBox(info.Feature.Geometry); b != nil {
			boxes = append(boxes, b)
		}
	}
	return geojson.UnionBBox(boxes)
}
