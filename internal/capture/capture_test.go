package capture

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// fakeSession scripts per-step failures and records the call sequence.
type fakeSession struct {
	calls       []string
	navFailures int // fail the first n Navigate calls
	imagesErr   error
	shotErr     error
	navCount    int
}

func (f *fakeSession) Navigate(_ context.Context, url string) error {
	f.calls = append(f.calls, "navigate")
	f.navCount++
	if f.navCount <= f.navFailures {
		return errors.New("net::ERR_CONNECTION_RESET")
	}
	return nil
}

func (f *fakeSession) DismissConsent(context.Context) error {
	f.calls = append(f.calls, "consent")
	return nil
}

func (f *fakeSession) ScrollFullPage(context.Context) error {
	f.calls = append(f.calls, "scroll")
	return nil
}

func (f *fakeSession) WaitImagesLoaded(context.Context) error {
	f.calls = append(f.calls, "images")
	return f.imagesErr
}

func (f *fakeSession) Screenshot(context.Context) ([]byte, error) {
	f.calls = append(f.calls, "screenshot")
	if f.shotErr != nil {
		return nil, f.shotErr
	}
	return []byte("\x89PNG fake"), nil
}

func testCapturer(sess Session, cfg Config) *Capturer {
	cfg.Backoff = time.Millisecond
	cfg.SettleDelay = time.Millisecond
	return New(sess, cfg)
}

func TestCaptureSequence(t *testing.T) {
	sess := &fakeSession{}
	dest := filepath.Join(t.TempDir(), "shots", "index.png")

	c := testCapturer(sess, Config{})
	if err := c.Capture(context.Background(), "https://staging.example.com/", dest); err != nil {
		t.Fatal(err)
	}

	want := []string{"navigate", "consent", "scroll", "images", "screenshot"}
	if len(sess.calls) != len(want) {
		t.Fatalf("expected calls %v, got %v", want, sess.calls)
	}
	for i, w := range want {
		if sess.calls[i] != w {
			t.Fatalf("call %d: expected %s, got %s", i, w, sess.calls[i])
		}
	}

	data, err := os.ReadFile(dest)
	if err != nil {
		t.Fatalf("screenshot not written: %v", err)
	}
	if len(data) == 0 {
		t.Fatal("empty screenshot file")
	}
}

func TestCaptureRetriesTransientFailure(t *testing.T) {
	sess := &fakeSession{navFailures: 2}
	dest := filepath.Join(t.TempDir(), "page.png")

	c := testCapturer(sess, Config{Attempts: 3})
	if err := c.Capture(context.Background(), "https://staging.example.com/", dest); err != nil {
		t.Fatalf("expected recovery on third attempt, got %v", err)
	}
	if sess.navCount != 3 {
		t.Fatalf("expected 3 navigations, got %d", sess.navCount)
	}
	if _, err := os.Stat(dest); err != nil {
		t.Fatalf("screenshot not written after recovery: %v", err)
	}
}

func TestCaptureExhaustionWritesNothing(t *testing.T) {
	sess := &fakeSession{navFailures: 10}
	dest := filepath.Join(t.TempDir(), "page.png")

	c := testCapturer(sess, Config{Attempts: 3})
	err := c.Capture(context.Background(), "https://staging.example.com/broken", dest)
	if err == nil {
		t.Fatal("expected error after exhausting retries")
	}
	if sess.navCount != 3 {
		t.Fatalf("expected exactly 3 attempts, got %d", sess.navCount)
	}
	if _, statErr := os.Stat(dest); !os.IsNotExist(statErr) {
		t.Fatal("expected no file on total failure")
	}
}

func TestCaptureImageWaitTimeoutNonFatal(t *testing.T) {
	sess := &fakeSession{imagesErr: errors.New("images still loading: context deadline exceeded")}
	dest := filepath.Join(t.TempDir(), "page.png")

	c := testCapturer(sess, Config{})
	if err := c.Capture(context.Background(), "https://staging.example.com/", dest); err != nil {
		t.Fatalf("image-wait timeout must not fail the capture: %v", err)
	}
	if _, err := os.Stat(dest); err != nil {
		t.Fatalf("screenshot not written: %v", err)
	}
}

func TestCaptureImageWaitTimeoutStrict(t *testing.T) {
	sess := &fakeSession{imagesErr: errors.New("images still loading")}
	dest := filepath.Join(t.TempDir(), "page.png")

	c := testCapturer(sess, Config{Attempts: 2, StrictImages: true})
	err := c.Capture(context.Background(), "https://staging.example.com/", dest)
	if err == nil {
		t.Fatal("strict mode must fail on image-wait timeout")
	}
	if _, statErr := os.Stat(dest); !os.IsNotExist(statErr) {
		t.Fatal("expected no file in strict failure")
	}
}

// wedgedSession hangs in ScrollFullPage until its context dies, like a page
// whose scroll evaluation never resolves.
type wedgedSession struct {
	fakeSession
	scrolls int
}

func (w *wedgedSession) ScrollFullPage(ctx context.Context) error {
	w.scrolls++
	<-ctx.Done()
	return ctx.Err()
}

func TestCaptureAttemptTimeoutUnwedgesRun(t *testing.T) {
	sess := &wedgedSession{}
	dest := filepath.Join(t.TempDir(), "page.png")

	c := testCapturer(sess, Config{Attempts: 2, AttemptTimeout: 10 * time.Millisecond})

	done := make(chan error, 1)
	go func() {
		done <- c.Capture(context.Background(), "https://staging.example.com/", dest)
	}()

	select {
	case err := <-done:
		if err == nil {
			t.Fatal("expected failure from a wedged attempt")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("capture hung despite attempt timeout")
	}
	if sess.scrolls != 2 {
		t.Fatalf("expected the wedged step to be retried, got %d attempts", sess.scrolls)
	}
	if _, statErr := os.Stat(dest); !os.IsNotExist(statErr) {
		t.Fatal("expected no file after wedged attempts")
	}
}

func TestCaptureScreenshotFailureRetried(t *testing.T) {
	sess := &fakeSession{shotErr: errors.New("target crashed")}
	dest := filepath.Join(t.TempDir(), "page.png")

	c := testCapturer(sess, Config{Attempts: 3})
	err := c.Capture(context.Background(), "https://staging.example.com/", dest)
	if err == nil {
		t.Fatal("expected error")
	}
	shots := 0
	for _, call := range sess.calls {
		if call == "screenshot" {
			shots++
		}
	}
	if shots != 3 {
		t.Fatalf("expected 3 screenshot attempts, got %d", shots)
	}
}
