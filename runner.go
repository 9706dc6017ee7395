package vrc

import (
	"context"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/hazyhaar/vrc/idgen"
	"github.com/hazyhaar/vrc/internal/imgdiff"
)

// Capturer produces one full-page raster per call. Each environment gets its
// own Capturer so credentials stay bound to the session that needs them.
type Capturer interface {
	Capture(ctx context.Context, url, destPath string) error
}

// Runner orchestrates the capture→normalize→diff pipeline across the two
// environments and hands the aggregated summary to the reporting layer.
type Runner struct {
	cfg     *Config
	staging Capturer
	prod    Capturer
	newID   idgen.Generator
	logger  *slog.Logger
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithRunIDGenerator sets a custom ID generator for run IDs.
func WithRunIDGenerator(gen idgen.Generator) RunnerOption {
	return func(r *Runner) { r.newID = gen }
}

// NewRunner creates a Runner comparing staging (reference) against prod
// (candidate) captures.
func NewRunner(cfg *Config, staging, prod Capturer, logger *slog.Logger, opts ...RunnerOption) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Runner{
		cfg:     cfg,
		staging: staging,
		prod:    prod,
		newID:   idgen.Timestamped(idgen.UUIDv7()),
		logger:  logger,
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Run compares every configured page in order and returns the aggregated
// summary. Per-page failures degrade to outcomes; the only fatal condition is
// an empty page set, surfaced before any capture work begins.
func (r *Runner) Run(ctx context.Context) (*Summary, error) {
	if len(r.cfg.Pages) == 0 {
		return nil, ErrNoPages
	}

	runID := r.newID()
	r.logger.Info("vrc: run starting", "run_id", runID, "pages", len(r.cfg.Pages))

	results := make([]Result, 0, len(r.cfg.Pages))
	for _, target := range r.cfg.Pages {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		results = append(results, r.CompareOne(ctx, target))
	}

	sum := Aggregate(results, r.cfg.Diff.PassPercentage)
	sum.RunID = runID
	r.logger.Info("vrc: run finished", "run_id", runID,
		"passed", sum.Passed, "failed", sum.Failed, "errored", sum.Errored)
	return &sum, nil
}

// CompareOne captures target on both environments, normalizes the pair, and
// diffs it. It always produces exactly one Result; every failure mode is
// folded into the outcome.
func (r *Runner) CompareOne(ctx context.Context, target PageTarget) Result {
	fname := SanitizePath(target.Path) + ".png"
	res := Result{
		Target:       target,
		StagingImage: filepath.Join(r.cfg.Output.StagingDir, fname),
		ProdImage:    filepath.Join(r.cfg.Output.ProdDir, fname),
	}

	stagingURL := r.cfg.Environments.Staging.BaseURL + target.Path
	prodURL := r.cfg.Environments.Prod.BaseURL + target.Path

	r.logger.Info("vrc: comparing page", "path", target.Path)

	if err := r.staging.Capture(ctx, stagingURL, res.StagingImage); err != nil {
		r.logger.Error("vrc: staging capture failed", "path", target.Path, "error", err)
		res.Outcome = CaptureErrorOutcome(err.Error())
		return res
	}
	if err := r.prod.Capture(ctx, prodURL, res.ProdImage); err != nil {
		r.logger.Error("vrc: prod capture failed", "path", target.Path, "error", err)
		res.Outcome = CaptureErrorOutcome(err.Error())
		return res
	}

	w, h := r.cfg.Diff.CanvasWidth, r.cfg.Diff.CanvasHeight

	a, err := imgdiff.NormalizeFile(res.StagingImage, w, h)
	if err != nil {
		res.Outcome = CaptureErrorOutcome(err.Error())
		return res
	}
	b, err := imgdiff.NormalizeFile(res.ProdImage, w, h)
	if err != nil {
		res.Outcome = CaptureErrorOutcome(err.Error())
		return res
	}

	// Normalization guarantees equal dimensions; guard anyway so a broken
	// codec surfaces as the named condition instead of a crash downstream.
	if a.Bounds().Size() != b.Bounds().Size() {
		res.Outcome = SizeMismatchOutcome()
		return res
	}

	mismatched, diffImg, err := imgdiff.Diff(a, b, r.cfg.Diff.Threshold)
	if err != nil {
		res.Outcome = SizeMismatchOutcome()
		return res
	}

	res.DiffImage = filepath.Join(r.cfg.Output.DiffDir, fname)
	if err := imgdiff.SavePNG(diffImg, res.DiffImage); err != nil {
		r.logger.Error("vrc: diff artifact write failed", "path", target.Path, "error", err)
		res.DiffImage = ""
		res.Outcome = CaptureErrorOutcome(err.Error())
		return res
	}

	res.Outcome = SimilarityOutcome(imgdiff.Similarity(mismatched, w*h), mismatched)
	return res
}

// SanitizePath converts a route path into a flat, deterministic filename stem:
// separators and unsafe characters become underscores, the root path becomes
// "index". Re-runs therefore overwrite prior artifacts instead of
// accumulating.
func SanitizePath(p string) string {
	p = strings.Trim(p, "/")
	if p == "" {
		return "index"
	}
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '-' || r == '.':
			return r
		default:
			return '_'
		}
	}, p)
}
