// Package download drives the retrieval of selected granules into the
// project output directory.
package download

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"

	"golang.org/x/sync/errgroup"
)

// Outcome values reported per item.
const (
	OutcomeDownloaded = "downloaded"
	OutcomeSkipped    = "skipped"
)

// Fetcher retrieves one granule to a destination path.
type Fetcher interface {
	DownloadGranule(ctx context.Context, url, destPath string) error
}

// Item is one selected granule to retrieve.
type Item struct {
	ID       string // scene identifier, used for the skip-existing check
	URL      string
	FileName string // file name under the output directory
}

// Result is the per-item outcome.
type Result struct {
	ID      string
	Outcome string
}

// Driver downloads selected granules. A failed item aborts the run;
// already-completed items remain on disk, so a rerun with skip-existing
// resumes where it stopped without extra bookkeeping.
type Driver struct {
	fetcher      Fetcher
	outDir       string
	skipExisting bool
	showProgress bool
	logger       *slog.Logger
}

// NewDriver creates a download driver writing into outDir.
func NewDriver(fetcher Fetcher, outDir string, skipExisting, showProgress bool, logger *slog.Logger) *Driver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Driver{
		fetcher:      fetcher,
		outDir:       outDir,
		skipExisting: skipExisting,
		showProgress: showProgress,
		logger:       logger,
	}
}

// Run downloads the items serially with per-item progress reporting.
// It stops at the first hard failure and returns the outcomes of the
// items completed before it.
func (d *Driver) Run(ctx context.Context, items []Item) ([]Result, error) {
	results := make([]Result, 0, len(items))
	total := len(items)

	for i, item := range items {
		skip, err := d.shouldSkip(item)
		if err != nil {
			return results, err
		}
		if skip {
			if d.showProgress {
				d.logger.Info(fmt.Sprintf("[%d/%d] skip existing: %s", i+1, total, item.ID))
			}
			results = append(results, Result{ID: item.ID, Outcome: OutcomeSkipped})
			continue
		}

		if d.showProgress {
			d.logger.Info(fmt.Sprintf("[%d/%d] downloading: %s", i+1, total, item.ID))
		}
		if err := d.download(ctx, item); err != nil {
			return results, err
		}
		results = append(results, Result{ID: item.ID, Outcome: OutcomeDownloaded})
	}

	return results, nil
}

// RunBulk downloads the items with up to workers parallel fetches. The
// first failure cancels the remaining fetches; outcomes of items that
// finished before the failure are still returned. Selection semantics
// are identical to Run.
func (d *Driver) RunBulk(ctx context.Context, items []Item, workers int) ([]Result, error) {
	if workers < 1 {
		workers = 1
	}

	var mu sync.Mutex
	results := make([]Result, 0, len(items))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for _, item := range items {
		item := item
		g.Go(func() error {
			skip, err := d.shouldSkip(item)
			if err != nil {
				return err
			}
			outcome := OutcomeSkipped
			if !skip {
				if err := d.download(ctx, item); err != nil {
					return err
				}
				outcome = OutcomeDownloaded
			}
			mu.Lock()
			results = append(results, Result{ID: item.ID, Outcome: outcome})
			mu.Unlock()
			return nil
		})
	}

	err := g.Wait()
	return results, err
}

// shouldSkip reports whether a file for the item already exists under
// the output directory.
func (d *Driver) shouldSkip(item Item) (bool, error) {
	if !d.skipExisting {
		return false, nil
	}
	matches, err := filepath.Glob(filepath.Join(d.outDir, item.ID+"*"))
	if err != nil {
		return false, fmt.Errorf("failed to check existing files for %s: %w", item.ID, err)
	}
	return len(matches) > 0, nil
}

func (d *Driver) download(ctx context.Context, item Item) error {
	if item.URL == "" {
		return fmt.Errorf("scene %s has no download URL", item.ID)
	}
	name := item.FileName
	if name == "" {
		name = item.ID + ".zip"
	}
	dest := filepath.Join(d.outDir, name)
	if err := d.fetcher.DownloadGranule(ctx, item.URL, dest); err != nil {
		return fmt.Errorf("download of %s failed: %w", item.ID, err)
	}
	return nil
}
