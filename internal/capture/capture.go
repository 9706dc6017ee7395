// Package capture drives a browser session through a deterministic readiness
// sequence and persists full-page screenshots, retrying the whole sequence on
// transient failures.
package capture

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/hazyhaar/vrc/retry"
)

// Session is the navigate/wait/screenshot contract the capturer drives. The
// session is passed in explicitly rather than captured from enclosing scope,
// so callers can run one session per environment and tests can substitute a
// fake.
type Session interface {
	// Navigate loads the URL and returns once DOM content is ready.
	Navigate(ctx context.Context, url string) error
	// DismissConsent removes a cookie-consent overlay if one is visible.
	DismissConsent(ctx context.Context) error
	// ScrollFullPage scrolls to the bottom of the document and back.
	ScrollFullPage(ctx context.Context) error
	// WaitImagesLoaded blocks until all images are loaded or a bounded
	// timeout fires, in which case it returns an error.
	WaitImagesLoaded(ctx context.Context) error
	// Screenshot captures the full scrollable page as PNG bytes.
	Screenshot(ctx context.Context) ([]byte, error)
}

// Config configures a Capturer.
type Config struct {
	// Attempts is the maximum number of full capture attempts. Default: 3.
	Attempts int

	// Backoff is the base delay between attempts, growing linearly.
	// Default: 500ms.
	Backoff time.Duration

	// SettleDelay is a fixed pause before the screenshot, letting layout
	// and animation finish. Default: 1s.
	SettleDelay time.Duration

	// AttemptTimeout bounds one full capture attempt, so a wedged step
	// (a scroll or screenshot that never resolves) converts to a retried
	// failure instead of hanging the run. Default: 2m.
	AttemptTimeout time.Duration

	// StrictImages makes an image-load wait timeout fail the attempt.
	// Off by default: a partially loaded page is captured as-is.
	StrictImages bool

	Logger *slog.Logger
}

func (c *Config) defaults() {
	if c.Attempts <= 0 {
		c.Attempts = 3
	}
	if c.Backoff <= 0 {
		c.Backoff = 500 * time.Millisecond
	}
	if c.SettleDelay <= 0 {
		c.SettleDelay = time.Second
	}
	if c.AttemptTimeout <= 0 {
		c.AttemptTimeout = 2 * time.Minute
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Capturer produces stable full-page rasters through a Session.
type Capturer struct {
	sess Session
	cfg  Config
}

// New creates a Capturer driving the given session.
func New(sess Session, cfg Config) *Capturer {
	cfg.defaults()
	return &Capturer{sess: sess, cfg: cfg}
}

// Capture runs the readiness sequence against url and writes exactly one PNG
// to destPath, creating intermediate directories as needed. The whole
// sequence is retried up to the attempt cap; on exhaustion the last failure
// is returned and nothing is written.
func (c *Capturer) Capture(ctx context.Context, url, destPath string) error {
	err := retry.Do(ctx, c.cfg.Attempts, c.cfg.Backoff, func(ctx context.Context, attempt int) error {
		if err := c.captureOnce(ctx, url, destPath); err != nil {
			c.cfg.Logger.Warn("capture: attempt failed",
				"url", url, "attempt", attempt, "error", err)
			return err
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("capture %s: %w", url, err)
	}
	return nil
}

func (c *Capturer) captureOnce(ctx context.Context, url, destPath string) error {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.AttemptTimeout)
	defer cancel()

	if err := c.sess.Navigate(ctx, url); err != nil {
		return err
	}

	// Best-effort: a missing consent overlay is the common case.
	if err := c.sess.DismissConsent(ctx); err != nil {
		c.cfg.Logger.Debug("capture: consent dismissal failed", "url", url, "error", err)
	}

	if err := c.sess.ScrollFullPage(ctx); err != nil {
		return err
	}

	if err := c.sess.WaitImagesLoaded(ctx); err != nil {
		if c.cfg.StrictImages {
			return err
		}
		c.cfg.Logger.Warn("capture: proceeding with partially loaded images",
			"url", url, "error", err)
	}

	if err := sleepCtx(ctx, c.cfg.SettleDelay); err != nil {
		return err
	}

	bin, err := c.sess.Screenshot(ctx)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return fmt.Errorf("capture: mkdir: %w", err)
	}
	if err := os.WriteFile(destPath, bin, 0o644); err != nil {
		return fmt.Errorf("capture: write %s: %w", destPath, err)
	}
	return nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
