package history

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	_ "modernc.org/sqlite" // register "sqlite" driver

	"github.com/hazyhaar/vrc"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleSummary(runID string) *vrc.Summary {
	return &vrc.Summary{
		RunID: runID,
		Results: []vrc.Result{
			{
				Target:       vrc.PageTarget{Path: "/broken"},
				StagingImage: "shots/staging/broken.png",
				Outcome:      vrc.CaptureErrorOutcome("navigation timeout"),
			},
			{
				Target:       vrc.PageTarget{Path: "/events"},
				StagingImage: "shots/staging/events.png",
				ProdImage:    "shots/prod/events.png",
				DiffImage:    "shots/diff/events.png",
				Outcome:      vrc.SimilarityOutcome(75.0, 10000),
			},
		},
		Passed:  0,
		Failed:  1,
		Errored: 1,
	}
}

func TestRecordRunRoundTrip(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	started := time.Now()

	if err := s.RecordRun(ctx, started, sampleSummary("run_1")); err != nil {
		t.Fatal(err)
	}

	runs, err := s.Recent(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 1 {
		t.Fatalf("expected 1 run, got %d", len(runs))
	}
	if runs[0].RunID != "run_1" || runs[0].Failed != 1 || runs[0].Errored != 1 {
		t.Fatalf("unexpected run record: %+v", runs[0])
	}

	results, err := s.Results(ctx, "run_1")
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].Outcome.Kind != vrc.OutcomeCaptureError {
		t.Fatalf("expected capture error first, got %s", results[0].Outcome.Kind)
	}
	if results[0].Outcome.Message != "navigation timeout" {
		t.Fatalf("message lost: %q", results[0].Outcome.Message)
	}
	if results[1].Outcome.Percentage != 75.0 || results[1].Outcome.MismatchedPixels != 10000 {
		t.Fatalf("similarity fields lost: %+v", results[1].Outcome)
	}
	if results[1].DiffImage != "shots/diff/events.png" {
		t.Fatalf("diff path lost: %q", results[1].DiffImage)
	}
}

func TestRecentNewestFirst(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	old := time.Now().Add(-48 * time.Hour)
	if err := s.RecordRun(ctx, old, sampleSummary("run_old")); err != nil {
		t.Fatal(err)
	}
	if err := s.RecordRun(ctx, time.Now(), sampleSummary("run_new")); err != nil {
		t.Fatal(err)
	}

	runs, err := s.Recent(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 2 || runs[0].RunID != "run_new" {
		t.Fatalf("expected run_new first, got %+v", runs)
	}
}

func TestCleanupDropsExpiredRuns(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	if err := s.RecordRun(ctx, time.Now().Add(-40*24*time.Hour), sampleSummary("run_old")); err != nil {
		t.Fatal(err)
	}
	if err := s.RecordRun(ctx, time.Now(), sampleSummary("run_new")); err != nil {
		t.Fatal(err)
	}

	if err := s.Cleanup(ctx, 30); err != nil {
		t.Fatal(err)
	}

	runs, err := s.Recent(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 1 || runs[0].RunID != "run_new" {
		t.Fatalf("expected only run_new to survive, got %+v", runs)
	}
	if results, _ := s.Results(ctx, "run_old"); len(results) != 0 {
		t.Fatalf("expired results not removed: %d left", len(results))
	}
}

func TestCleanupDisabled(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	if err := s.RecordRun(ctx, time.Now().Add(-400*24*time.Hour), sampleSummary("run_ancient")); err != nil {
		t.Fatal(err)
	}
	if err := s.Cleanup(ctx, 0); err != nil {
		t.Fatal(err)
	}
	runs, err := s.Recent(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 1 {
		t.Fatal("retention 0 must disable cleanup")
	}
}
