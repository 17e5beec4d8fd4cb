// Package config provides the validated configuration for a pipeline
// run: a per-project YAML file merged with environment overrides for
// credentials and API endpoints.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
	"gopkg.in/yaml.v3"
)

// dateLayout is the day-granularity layout used by date_start/date_end.
const dateLayout = "2006-01-02"

// Config holds the complete pipeline configuration.
type Config struct {
	ProjectDir     string    `yaml:"project_dir" json:"-"`
	AOIBBox        []float64 `yaml:"aoi_bbox" json:"aoi_bbox"`
	DateStart      string    `yaml:"date_start" json:"date_start"`
	DateEnd        string    `yaml:"date_end" json:"date_end"`
	OrbitDirection string    `yaml:"orbit_direction" json:"orbit_direction"`

	Download DownloadConfig `yaml:"s1_download" json:"s1_download"`
	SBAS     SBASConfig     `yaml:"sbas" json:"sbas"`

	Env EnvConfig `yaml:"-" json:"-"`
}

// DownloadConfig contains search and download tuning.
type DownloadConfig struct {
	MaxResults      int     `yaml:"max_results" json:"max_results"`
	Platform        string  `yaml:"platform" json:"platform,omitempty"`
	BeamMode        string  `yaml:"beam_mode" json:"beam_mode"`
	ProcessingLevel string  `yaml:"processing_level" json:"processing_level"`
	AOIShrinkM      float64 `yaml:"aoi_shrink_m" json:"aoi_shrink_m"`
	OutDir          string  `yaml:"out_dir" json:"out_dir"`
	DrySearchOnly   bool    `yaml:"dry_search_only" json:"dry_search_only"`
	ShowProgress    bool    `yaml:"show_progress" json:"show_progress"`
	SkipExisting    bool    `yaml:"skip_existing" json:"skip_existing"`
	Processes       int     `yaml:"processes" json:"processes"`
}

// SBASConfig contains selection and pairing tuning.
type SBASConfig struct {
	ChooseGroup      string     `yaml:"choose_group" json:"choose_group"`
	EnforceSameFrame bool       `yaml:"enforce_same_frame" json:"enforce_same_frame"`
	MaxTemporalDays  int        `yaml:"max_temporal_days" json:"max_temporal_days"`
	KNeighbors       int        `yaml:"k_neighbors" json:"k_neighbors"`
	EnsureChain      bool       `yaml:"ensure_chain" json:"ensure_chain"`
	Thin             ThinConfig `yaml:"thin_acquisitions" json:"thin_acquisitions"`
}

// ThinConfig contains acquisition thinning tuning. Zero values disable
// the corresponding stage.
type ThinConfig struct {
	MinRepeatDays   int  `yaml:"min_repeat_days" json:"min_repeat_days"`
	MaxAcquisitions int  `yaml:"max_acquisitions" json:"max_acquisitions"`
	KeepEnds        bool `yaml:"keep_ends" json:"keep_ends"`
}

// EnvConfig contains environment-borne settings: Earthdata credentials,
// ASF endpoint and logging.
type EnvConfig struct {
	ASFBaseURL     string        `env:"ASF_BASE_URL" envDefault:"https://api.daac.asf.alaska.edu"`
	ASFTimeout     time.Duration `env:"ASF_TIMEOUT" envDefault:"60s"`
	EarthdataUser  string        `env:"EARTHDATA_USERNAME"`
	EarthdataPass  string        `env:"EARTHDATA_PASSWORD"`
	EarthdataToken string        `env:"EARTHDATA_TOKEN"`
	LogLevel       string        `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat      string        `env:"LOG_FORMAT" envDefault:"text"`
}

// Default returns a Config populated with the documented defaults.
// YAML decoding overlays it, so absent keys keep their defaults.
func Default() *Config {
	return &Config{
		Download: DownloadConfig{
			MaxResults:      5000,
			BeamMode:        "IW",
			ProcessingLevel: "SLC",
			OutDir:          "data/s1_slc",
			ShowProgress:    true,
			SkipExisting:    true,
			Processes:       8,
		},
		SBAS: SBASConfig{
			ChooseGroup:      "largest",
			EnforceSameFrame: true,
			MaxTemporalDays:  48,
			KNeighbors:       2,
			EnsureChain:      true,
			Thin: ThinConfig{
				KeepEnds: true,
			},
		},
	}
}

// Load reads the YAML project configuration at path, applies
// environment overrides and validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	if err := env.Parse(&cfg.Env); err != nil {
		return nil, fmt.Errorf("failed to parse environment configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	if len(c.AOIBBox) != 4 {
		return fmt.Errorf("aoi_bbox must have 4 values [west, south, east, north], got %d", len(c.AOIBBox))
	}
	if c.AOIBBox[0] >= c.AOIBBox[2] {
		return fmt.Errorf("aoi_bbox west (%g) must be less than east (%g)", c.AOIBBox[0], c.AOIBBox[2])
	}
	if c.AOIBBox[1] >= c.AOIBBox[3] {
		return fmt.Errorf("aoi_bbox south (%g) must be less than north (%g)", c.AOIBBox[1], c.AOIBBox[3])
	}

	start, err := time.Parse(dateLayout, c.DateStart)
	if err != nil {
		return fmt.Errorf("date_start must be YYYY-MM-DD, got %q", c.DateStart)
	}
	end, err := time.Parse(dateLayout, c.DateEnd)
	if err != nil {
		return fmt.Errorf("date_end must be YYYY-MM-DD, got %q", c.DateEnd)
	}
	if end.Before(start) {
		return fmt.Errorf("date_end (%s) must not be before date_start (%s)", c.DateEnd, c.DateStart)
	}

	if _, err := NormalizeOrbitDirection(c.OrbitDirection); err != nil {
		return err
	}

	if c.Download.MaxResults < 1 {
		return fmt.Errorf("s1_download.max_results must be at least 1, got %d", c.Download.MaxResults)
	}
	if c.Download.AOIShrinkM < 0 {
		return fmt.Errorf("s1_download.aoi_shrink_m must not be negative, got %g", c.Download.AOIShrinkM)
	}
	if c.Download.OutDir == "" {
		return fmt.Errorf("s1_download.out_dir must not be empty")
	}
	if c.Download.Processes < 1 {
		return fmt.Errorf("s1_download.processes must be at least 1, got %d", c.Download.Processes)
	}

	if c.SBAS.ChooseGroup == "" {
		return fmt.Errorf("sbas.choose_group must not be empty")
	}
	if c.SBAS.MaxTemporalDays < 1 {
		return fmt.Errorf("sbas.max_temporal_days must be at least 1, got %d", c.SBAS.MaxTemporalDays)
	}
	if c.SBAS.KNeighbors < 1 {
		return fmt.Errorf("sbas.k_neighbors must be at least 1, got %d", c.SBAS.KNeighbors)
	}
	if c.SBAS.Thin.MinRepeatDays < 0 {
		return fmt.Errorf("sbas.thin_acquisitions.min_repeat_days must not be negative, got %d", c.SBAS.Thin.MinRepeatDays)
	}
	if c.SBAS.Thin.MaxAcquisitions < 0 {
		return fmt.Errorf("sbas.thin_acquisitions.max_acquisitions must not be negative, got %d", c.SBAS.Thin.MaxAcquisitions)
	}

	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[c.Env.LogLevel] {
		return fmt.Errorf("invalid log level %q, must be one of: debug, info, warn, error", c.Env.LogLevel)
	}
	validLogFormats := map[string]bool{"json": true, "text": true}
	if !validLogFormats[c.Env.LogFormat] {
		return fmt.Errorf("invalid log format %q, must be one of: json, text", c.Env.LogFormat)
	}

	return nil
}

// NormalizeOrbitDirection maps the accepted orbit-direction tokens to
// the ASF flightDirection values. Empty and "BOTH" mean unrestricted
// and return "".
func NormalizeOrbitDirection(s string) (string, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "", "BOTH":
		return "", nil
	case "ASC", "ASCENDING":
		return "ASCENDING", nil
	case "DESC", "DESCENDING":
		return "DESCENDING", nil
	default:
		return "", fmt.Errorf("orbit_direction must be ASC/DESC/BOTH, got %q", s)
	}
}

// StartTime returns date_start at the inclusive UTC day start.
func (c *Config) StartTime() time.Time {
	t, _ := time.Parse(dateLayout, c.DateStart)
	return t
}

// EndTime returns date_end at the inclusive UTC day end.
func (c *Config) EndTime() time.Time {
	t, _ := time.Parse(dateLayout, c.DateEnd)
	return t.Add(23*time.Hour + 59*time.Minute + 59*time.Second)
}
