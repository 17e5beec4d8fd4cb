// sbas-pipeline searches the ASF catalog for Sentinel-1 SLC scenes,
// selects a temporally-consistent SBAS acquisition set and downloads it.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/geranium-0019/sbas-pipeline/internal/asf"
	"github.com/geranium-0019/sbas-pipeline/internal/config"
	"github.com/geranium-0019/sbas-pipeline/internal/pipeline"
)

var (
	configFlag     string
	projectDirFlag string
	searchOnlyFlag bool
	quietFlag      bool
)

var rootCmd = &cobra.Command{
	Use:           "sbas-pipeline",
	Short:         "Sentinel-1 SBAS scene selection and download",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Search, select and download scenes for an SBAS stack",
	Long: `Searches the ASF catalog for Sentinel-1 SLC acquisitions over the
configured AOI and date range, groups them by track, enforces
single-frame consistency, thins the timeline, builds the SBAS pairing
graph, writes <project>/.state/sbas_pairs.json and downloads exactly
the scenes referenced by the pairs.`,
	RunE: runPipeline,
}

func init() {
	runCmd.Flags().StringVarP(&configFlag, "config", "c", "config.yaml", "Path to the project config.yaml")
	runCmd.Flags().StringVar(&projectDirFlag, "project-dir", "", "Override project_dir (default: config file parent directory)")
	runCmd.Flags().BoolVar(&searchOnlyFlag, "search-only", false, "Run every stage through the state write but skip downloads")
	runCmd.Flags().BoolVarP(&quietFlag, "quiet", "q", false, "Reduce console output")
	rootCmd.AddCommand(runCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func runPipeline(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configFlag)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger := setupLogger(cfg.Env.LogLevel, cfg.Env.LogFormat, quietFlag)

	projectDir, err := resolveProjectDir(cfg)
	if err != nil {
		return err
	}

	logger.Info("starting SBAS search and selection",
		slog.String("config", configFlag),
		slog.String("project_dir", projectDir),
		slog.Any("aoi_bbox", cfg.AOIBBox),
		slog.String("date_start", cfg.DateStart),
		slog.String("date_end", cfg.DateEnd),
		slog.Bool("search_only", searchOnlyFlag || cfg.Download.DrySearchOnly),
	)

	client := asf.NewClient(cfg.Env.ASFBaseURL, cfg.Env.ASFTimeout).
		WithLogger(logger).
		WithCredentials(asf.Credentials{
			Username: cfg.Env.EarthdataUser,
			Password: cfg.Env.EarthdataPass,
			Token:    cfg.Env.EarthdataToken,
		})

	summary, err := pipeline.New(cfg, client, logger).Run(cmd.Context(), projectDir, searchOnlyFlag)
	if err != nil {
		return err
	}

	logger.Info("run finished",
		slog.Bool("searched", summary.Searched),
		slog.Bool("downloaded", summary.Downloaded),
		slog.Int("total_candidates", summary.TotalCandidates),
		slog.String("chosen_group_key", summary.ChosenGroupKey),
		slog.Int("chosen_group_size_before", summary.ChosenGroupSizeBefore),
		slog.Int("chosen_group_size_after", summary.ChosenGroupSizeAfter),
		slog.Int("selected_count", summary.SelectedCount),
		slog.Int("pairs_count", summary.PairsCount),
		slog.String("out_dir", summary.OutDir),
		slog.String("pairs_file", summary.PairsFile),
	)
	return nil
}

// resolveProjectDir prefers the --project-dir flag, then the config's
// project_dir, then the config file's parent directory.
func resolveProjectDir(cfg *config.Config) (string, error) {
	dir := projectDirFlag
	if dir == "" {
		dir = cfg.ProjectDir
	}
	if dir == "" {
		dir = filepath.Dir(configFlag)
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("failed to resolve project directory %q: %w", dir, err)
	}
	return abs, nil
}

func setupLogger(level, format string, quiet bool) *slog.Logger {
	var logLevel slog.Level
	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "info":
		logLevel = slog.LevelInfo
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}
	if quiet && logLevel < slog.LevelWarn {
		logLevel = slog.LevelWarn
	}

	opts := &slog.HandlerOptions{Level: logLevel}

	var handler slog.Handler
	if format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}
