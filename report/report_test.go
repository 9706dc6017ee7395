package report

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/hazyhaar/vrc"
)

func testSummary() *vrc.Summary {
	return &vrc.Summary{
		RunID: "run_test",
		Results: []vrc.Result{
			{
				Target:       vrc.PageTarget{Path: "/events"},
				StagingImage: "staging/events.png",
				ProdImage:    "prod/events.png",
				DiffImage:    "diff/events.png",
				Outcome:      vrc.SimilarityOutcome(75, 10000),
			},
		},
		Failed: 1,
	}
}

func TestWriteSummaryRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "summary.json")
	if err := WriteSummary(path, testSummary()); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var got vrc.Summary
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatal(err)
	}
	if got.RunID != "run_test" || got.Failed != 1 || len(got.Results) != 1 {
		t.Fatalf("summary lost in round trip: %+v", got)
	}
	if got.Results[0].Outcome.Kind != vrc.OutcomeSimilarity {
		t.Fatalf("outcome kind lost: %s", got.Results[0].Outcome.Kind)
	}
}

func TestHandlerServesSummaryAndImages(t *testing.T) {
	dir := t.TempDir()
	out := vrc.OutputConfig{
		StagingDir: filepath.Join(dir, "staging"),
		ProdDir:    filepath.Join(dir, "prod"),
		DiffDir:    filepath.Join(dir, "diff"),
	}
	summaryPath := filepath.Join(dir, "summary.json")
	if err := WriteSummary(summaryPath, testSummary()); err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(out.DiffDir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(out.DiffDir, "events.png"), []byte("png-bytes"), 0o644); err != nil {
		t.Fatal(err)
	}

	srv := httptest.NewServer(Handler(summaryPath, out))
	t.Cleanup(srv.Close)

	for _, tc := range []struct {
		path string
		want int
	}{
		{"/health", http.StatusOK},
		{"/summary.json", http.StatusOK},
		{"/images/diff/events.png", http.StatusOK},
		{"/images/diff/absent.png", http.StatusNotFound},
	} {
		resp, err := http.Get(srv.URL + tc.path)
		if err != nil {
			t.Fatal(err)
		}
		resp.Body.Close()
		if resp.StatusCode != tc.want {
			t.Errorf("GET %s: expected %d, got %d", tc.path, tc.want, resp.StatusCode)
		}
	}
}

func TestHandlerMissingSummary(t *testing.T) {
	srv := httptest.NewServer(Handler(filepath.Join(t.TempDir(), "none.json"), vrc.OutputConfig{}))
	t.Cleanup(srv.Close)

	resp, err := http.Get(srv.URL + "/summary.json")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}
