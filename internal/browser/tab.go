package browser

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
)

// TabConfig configures one capture tab. A tab is bound to a single
// environment: its auth header applies to every navigation it performs.
type TabConfig struct {
	// NavTimeout bounds navigation plus the DOM-content-ready wait.
	NavTimeout time.Duration

	// ImageWaitTimeout bounds the wait for image elements to finish loading.
	ImageWaitTimeout time.Duration

	// ScrollStep is the increment, in CSS pixels, of the lazy-load scroll.
	ScrollStep int

	// BasicAuthHeader is a precomputed "Basic ..." Authorization value,
	// empty for unauthenticated environments.
	BasicAuthHeader string

	Logger *slog.Logger
}

func (c *TabConfig) defaults() {
	if c.NavTimeout <= 0 {
		c.NavTimeout = 30 * time.Second
	}
	if c.ImageWaitTimeout <= 0 {
		c.ImageWaitTimeout = 10 * time.Second
	}
	if c.ScrollStep <= 0 {
		c.ScrollStep = 512
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// BasicAuth encodes credentials as an Authorization header value.
func BasicAuth(user, pass string) string {
	if user == "" && pass == "" {
		return ""
	}
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(user+":"+pass))
}

// Tab wraps a Rod page with the capture-specific setup. It implements the
// capture Session contract: navigate, dismiss consent, scroll, wait for
// images, screenshot.
type Tab struct {
	page *rod.Page
	cfg  TabConfig
}

// OpenTab creates a new stealth tab on the managed browser and applies the
// environment's auth header. The tab is reused for every page of its
// environment within a run.
func OpenTab(mgr *Manager, cfg TabConfig) (*Tab, error) {
	cfg.defaults()

	b := mgr.Browser()
	if b == nil {
		return nil, fmt.Errorf("browser: no active browser")
	}

	page, err := stealth.Page(b)
	if err != nil {
		return nil, fmt.Errorf("browser: create tab: %w", err)
	}

	if cfg.BasicAuthHeader != "" {
		if _, err := page.SetExtraHeaders([]string{"Authorization", cfg.BasicAuthHeader}); err != nil {
			page.Close()
			return nil, fmt.Errorf("browser: set auth header: %w", err)
		}
	}

	return &Tab{page: page, cfg: cfg}, nil
}

// Navigate loads the URL and waits until DOM content is ready. Full load is
// deliberately not awaited: long-polling and analytics beacons never go idle.
func (t *Tab) Navigate(ctx context.Context, pageURL string) error {
	navCtx, cancel := context.WithTimeout(ctx, t.cfg.NavTimeout)
	defer cancel()

	page := t.page.Context(navCtx)
	wait := page.WaitNavigation(proto.PageLifecycleEventNameDOMContentLoaded)

	if err := page.Navigate(pageURL); err != nil {
		return fmt.Errorf("browser: navigate %s: %w", pageURL, err)
	}
	wait()

	if err := navCtx.Err(); err != nil {
		return fmt.Errorf("browser: navigate %s: %w", pageURL, err)
	}
	return nil
}

// consentSelectors are dismissal controls of common cookie-consent overlays.
var consentSelectors = []string{
	"#onetrust-accept-btn-handler",
	"#cookie-accept",
	"button[data-testid='cookie-accept']",
	"button[aria-label='Accept cookies']",
	".cookie-consent button.accept",
}

// DismissConsent clicks the first visible consent control, if any. Absence of
// a control is not an error.
func (t *Tab) DismissConsent(ctx context.Context) error {
	res, err := t.page.Context(ctx).Eval(`(selectors) => {
		for (const s of selectors) {
			const el = document.querySelector(s);
			if (el && el.offsetParent !== null) {
				el.click();
				return s;
			}
		}
		return "";
	}`, consentSelectors)
	if err != nil {
		return fmt.Errorf("browser: dismiss consent: %w", err)
	}
	if s := res.Value.Str(); s != "" {
		t.cfg.Logger.Debug("browser: dismissed consent overlay", "selector", s)
	}
	return nil
}

// ScrollFullPage scrolls in fixed increments to the document's full scrollable
// height and back to the top, so viewport-intersection lazy loading fires
// before capture.
func (t *Tab) ScrollFullPage(ctx context.Context) error {
	_, err := t.page.Context(ctx).Eval(`async (step) => {
		const pause = (ms) => new Promise((r) => setTimeout(r, ms));
		let pos = 0;
		while (pos < document.documentElement.scrollHeight) {
			pos += step;
			window.scrollTo(0, pos);
			await pause(100);
		}
		window.scrollTo(0, 0);
		await pause(100);
	}`, t.cfg.ScrollStep)
	if err != nil {
		return fmt.Errorf("browser: scroll: %w", err)
	}
	return nil
}

// WaitImagesLoaded blocks until every image element reports complete with a
// non-zero intrinsic height, or the image-wait timeout fires.
func (t *Tab) WaitImagesLoaded(ctx context.Context) error {
	waitCtx, cancel := context.WithTimeout(ctx, t.cfg.ImageWaitTimeout)
	defer cancel()

	const js = `() => Array.from(document.images).every((img) => img.complete && img.naturalHeight > 0)`

	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()

	for {
		res, err := t.page.Context(waitCtx).Eval(js)
		if err == nil && res.Value.Bool() {
			return nil
		}
		select {
		case <-waitCtx.Done():
			return fmt.Errorf("browser: images still loading: %w", waitCtx.Err())
		case <-ticker.C:
		}
	}
}

// Screenshot captures the full scrollable page, not just the viewport, as PNG.
func (t *Tab) Screenshot(ctx context.Context) ([]byte, error) {
	bin, err := t.page.Context(ctx).Screenshot(true, &proto.PageCaptureScreenshot{
		Format: proto.PageCaptureScreenshotFormatPng,
	})
	if err != nil {
		return nil, fmt.Errorf("browser: screenshot: %w", err)
	}
	return bin, nil
}

// Close closes the tab.
func (t *Tab) Close() error {
	if t.page != nil {
		return t.page.Close()
	}
	return nil
}
