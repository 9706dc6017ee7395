package vrc

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level vrc configuration.
type Config struct {
	Environments EnvironmentsConfig `yaml:"environments"`
	Pages        []PageTarget       `yaml:"pages"`
	Browser      BrowserConfig      `yaml:"browser"`
	Capture      CaptureConfig      `yaml:"capture"`
	Diff         DiffConfig         `yaml:"diff"`
	Output       OutputConfig       `yaml:"output"`
	History      HistoryConfig      `yaml:"history"`
}

// EnvironmentConfig describes one deployment of the site.
type EnvironmentConfig struct {
	BaseURL string `yaml:"base_url"`

	// Optional HTTP basic auth. Passed opaquely to the browser session.
	BasicAuthUser string `yaml:"basic_auth_user"`
	BasicAuthPass string `yaml:"basic_auth_pass"`
}

// EnvironmentsConfig names the two deployments under comparison. Staging is
// the reference, prod the candidate.
type EnvironmentsConfig struct {
	Staging EnvironmentConfig `yaml:"staging"`
	Prod    EnvironmentConfig `yaml:"prod"`
}

// BrowserConfig controls the Chrome session.
type BrowserConfig struct {
	// Remote is the WebSocket URL of an external Chrome instance.
	// Empty = launch a local headless Chrome.
	Remote  string `yaml:"remote"`
	Headful bool   `yaml:"headful"`
}

// CaptureConfig controls the page-readiness sequence and its retry policy.
type CaptureConfig struct {
	NavTimeout       time.Duration `yaml:"nav_timeout"`
	ImageWaitTimeout time.Duration `yaml:"image_wait_timeout"`
	SettleDelay      time.Duration `yaml:"settle_delay"`
	ScrollStep       int           `yaml:"scroll_step"`
	Attempts         int           `yaml:"attempts"`

	// AttemptTimeout bounds one whole capture attempt end to end.
	AttemptTimeout time.Duration `yaml:"attempt_timeout"`

	// StrictImages turns an image-load wait timeout into an attempt
	// failure instead of a logged warning.
	StrictImages bool `yaml:"strict_images"`
}

// DiffConfig controls normalization and pixel comparison.
type DiffConfig struct {
	// Threshold is the perceptual sensitivity on a normalized 0-1 scale.
	Threshold float64 `yaml:"threshold"`

	// CanvasWidth/Height is the canonical size both captures are
	// normalized to before diffing.
	CanvasWidth  int `yaml:"canvas_width"`
	CanvasHeight int `yaml:"canvas_height"`

	// PassPercentage is the similarity at or above which a page passes.
	PassPercentage float64 `yaml:"pass_percentage"`
}

// OutputConfig names the artifact locations. Filenames inside the three image
// directories derive deterministically from page paths, so re-runs overwrite.
type OutputConfig struct {
	StagingDir  string `yaml:"staging_dir"`
	ProdDir     string `yaml:"prod_dir"`
	DiffDir     string `yaml:"diff_dir"`
	SummaryPath string `yaml:"summary_path"`
}

// HistoryConfig controls the optional SQLite run-history store.
type HistoryConfig struct {
	// Path to the database file. Empty disables history.
	Path          string `yaml:"path"`
	RetentionDays int    `yaml:"retention_days"`
}

// LoadConfigFile reads a YAML configuration file and applies defaults.
func LoadConfigFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ApplyDefaults fills zero-valued fields with production defaults.
func (c *Config) ApplyDefaults() {
	if c.Capture.NavTimeout <= 0 {
		c.Capture.NavTimeout = 30 * time.Second
	}
	if c.Capture.ImageWaitTimeout <= 0 {
		c.Capture.ImageWaitTimeout = 10 * time.Second
	}
	if c.Capture.SettleDelay <= 0 {
		c.Capture.SettleDelay = time.Second
	}
	if c.Capture.ScrollStep <= 0 {
		c.Capture.ScrollStep = 512
	}
	if c.Capture.Attempts <= 0 {
		c.Capture.Attempts = 3
	}
	if c.Capture.AttemptTimeout <= 0 {
		c.Capture.AttemptTimeout = 2 * time.Minute
	}
	if c.Diff.Threshold <= 0 {
		c.Diff.Threshold = 0.1
	}
	if c.Diff.CanvasWidth <= 0 {
		c.Diff.CanvasWidth = 1280
	}
	if c.Diff.CanvasHeight <= 0 {
		c.Diff.CanvasHeight = 4096
	}
	if c.Diff.PassPercentage <= 0 {
		c.Diff.PassPercentage = 95.0
	}
	if c.Output.StagingDir == "" {
		c.Output.StagingDir = "shots/staging"
	}
	if c.Output.ProdDir == "" {
		c.Output.ProdDir = "shots/prod"
	}
	if c.Output.DiffDir == "" {
		c.Output.DiffDir = "shots/diff"
	}
	if c.Output.SummaryPath == "" {
		c.Output.SummaryPath = "shots/summary.json"
	}
	if c.History.RetentionDays <= 0 {
		c.History.RetentionDays = 90
	}
}

// Validate rejects configurations that cannot produce a run.
func (c *Config) Validate() error {
	if c.Environments.Staging.BaseURL == "" {
		return fmt.Errorf("vrc: environments.staging.base_url is required")
	}
	if c.Environments.Prod.BaseURL == "" {
		return fmt.Errorf("vrc: environments.prod.base_url is required")
	}
	return nil
}
