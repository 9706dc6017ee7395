// Package report emits the machine-readable run summary and serves finished
// artifacts over HTTP. It renders nothing: report presentation belongs to
// consumers of the summary.
package report

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"

	"github.com/go-chi/chi/v5"

	"github.com/hazyhaar/vrc"
)

// WriteSummary writes the JSON summary artifact, creating intermediate
// directories as needed. Re-runs overwrite.
func WriteSummary(path string, sum *vrc.Summary) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("report: mkdir: %w", err)
		}
	}
	data, err := json.MarshalIndent(sum, "", "  ")
	if err != nil {
		return fmt.Errorf("report: marshal summary: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("report: write %s: %w", path, err)
	}
	return nil
}

// Handler serves the run summary and the three raw image directories:
//
//	GET /health
//	GET /summary.json
//	GET /images/staging/{file}
//	GET /images/prod/{file}
//	GET /images/diff/{file}
func Handler(summaryPath string, out vrc.OutputConfig) http.Handler {
	r := chi.NewRouter()

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Get("/summary.json", func(w http.ResponseWriter, req *http.Request) {
		data, err := os.ReadFile(summaryPath)
		if err != nil {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "no summary for this run"})
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(data)
	})

	for role, dir := range map[string]string{
		"staging": out.StagingDir,
		"prod":    out.ProdDir,
		"diff":    out.DiffDir,
	} {
		prefix := "/images/" + role + "/"
		r.Handle(prefix+"*", http.StripPrefix(prefix, http.FileServer(http.Dir(dir))))
	}

	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
