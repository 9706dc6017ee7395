// Package vrc compares two deployments of the same website pixel by pixel.
//
// For a configured set of route paths it captures full-page screenshots of
// both environments, normalizes the pair to a shared canvas, computes a
// perceptual pixel difference, and classifies each page as passed, failed, or
// errored. The output is a Summary of immutable per-page results, ordered
// worst-first, which reporting layers consume as-is.
package vrc

// PageTarget identifies one route, resolved against both environment base
// URLs. Sourced from configuration, never mutated.
type PageTarget struct {
	Path string `json:"path" yaml:"path"`
}

// OutcomeKind tags the result of one page comparison.
type OutcomeKind string

const (
	// OutcomeSimilarity means both captures succeeded and were diffed.
	OutcomeSimilarity OutcomeKind = "similarity"
	// OutcomeSizeMismatch means the normalized dimensions could not be
	// reconciled. A named condition, not a crash: pages can legitimately
	// differ in layout.
	OutcomeSizeMismatch OutcomeKind = "size_mismatch"
	// OutcomeCaptureError means one or both captures failed after
	// exhausting retries, or an expected artifact went missing.
	OutcomeCaptureError OutcomeKind = "capture_error"
)

// Outcome is the tagged result of one page comparison.
type Outcome struct {
	Kind OutcomeKind `json:"kind"`

	// Percentage and MismatchedPixels are set when Kind is
	// OutcomeSimilarity. Zero is a legitimate value for both (a fully
	// divergent page), so they always serialize.
	Percentage       float64 `json:"percentage"`
	MismatchedPixels int     `json:"mismatched_pixels"`

	// Message carries the last failure when Kind is OutcomeCaptureError.
	Message string `json:"message,omitempty"`
}

// SimilarityOutcome builds a successful comparison outcome.
func SimilarityOutcome(percentage float64, mismatched int) Outcome {
	return Outcome{Kind: OutcomeSimilarity, Percentage: percentage, MismatchedPixels: mismatched}
}

// SizeMismatchOutcome builds an outcome for irreconcilable dimensions.
func SizeMismatchOutcome() Outcome {
	return Outcome{Kind: OutcomeSizeMismatch}
}

// CaptureErrorOutcome builds an outcome for an exhausted or impossible capture.
func CaptureErrorOutcome(message string) Outcome {
	return Outcome{Kind: OutcomeCaptureError, Message: message}
}

// Status is the human-facing classification of a Result.
type Status string

const (
	StatusPassed  Status = "passed"
	StatusFailed  Status = "failed"
	StatusErrored Status = "errored"
)

// Result is the record produced for exactly one configured page. Immutable
// once created; the aggregator owns the collection afterwards.
type Result struct {
	Target       PageTarget `json:"target"`
	StagingImage string     `json:"staging_image"`
	ProdImage    string     `json:"prod_image"`
	DiffImage    string     `json:"diff_image,omitempty"`
	Outcome      Outcome    `json:"outcome"`
}

// Status classifies the result against the pass threshold. SizeMismatch and
// CaptureError both classify as errored.
func (r Result) Status(passPercentage float64) Status {
	if r.Outcome.Kind != OutcomeSimilarity {
		return StatusErrored
	}
	if r.Outcome.Percentage >= passPercentage {
		return StatusPassed
	}
	return StatusFailed
}

// Summary is the aggregated output of one run: all results ordered by
// severity plus classification counts. Derived, never persisted by the core.
type Summary struct {
	RunID   string   `json:"run_id"`
	Results []Result `json:"results"`
	Passed  int      `json:"passed"`
	Failed  int      `json:"failed"`
	Errored int      `json:"errored"`
}
