package schema

// Violation is a single obligation failure surfaced by the refinement,
// contract, or tooling checkers (spec.md §4.9).
type Violation struct {
	Class      FailureClass   `json:"class"`
	Code       string         `json:"code"`
	Message    string         `json:"message"`
	EventIndex int            `json:"event_index"`
	Path       string         `json:"path,omitempty"`
	Expected   any            `json:"expected,omitempty"`
	Actual     any            `json:"actual,omitempty"`
	Details    map[string]any `json:"details,omitempty"`
}

// Witness identifies the single violation the report leads with, chosen by
// lowest event index, then by failure-class rank, then by code (spec.md
// §4.10). All holds every violation anchored at EventIndex, in the same
// sorted order as Primary was picked from — not the full violation list.
type Witness struct {
	EventIndex int          `json:"event_index"`
	Primary    *Violation   `json:"primary,omitempty"`
	All        []*Violation `json:"all_violations_at_witness,omitempty"`
}

// ReportMetadata carries the version pins a report was produced under, for
// the same reason TraceMeta does: so a reader can tell which normalizer and
// side-effect registry a report's verdict was computed against without
// replaying anything (spec.md §6 "TRT report").
type ReportMetadata struct {
	ReportSchemaVersion       string `json:"report_schema_version"`
	NormalizerVersion         string `json:"normalizer_version"`
	SideEffectRegistryVersion string `json:"side_effect_registry_version"`
}

// ShrinkStats summarizes a delta-debugging shrink run that produced a
// report's counterexample traces (spec.md §4.11, §6).
type ShrinkStats struct {
	OriginalLen int     `json:"original_len"`
	ReducedLen  int     `json:"reduced_len"`
	Iterations  int     `json:"iterations"`
	Seconds     float64 `json:"seconds"`
}

// Report is the top-level TRT report (spec.md §6 "TRT report"). The outcome
// is `verdict`; the witness index, primary violation, and
// all_violations_at_witness are nested under `witness`, and the failure
// class is the primary violation's `class` (there is no top-level
// failure_class field).
type Report struct {
	SchemaVersion       string         `json:"schema_version"`
	SpecName            string         `json:"spec_name"`
	BaselineRunID       string         `json:"baseline_run_id"`
	CurrentRunID        string         `json:"current_run_id"`
	Verdict             string         `json:"verdict"` // "PASS" | "FAIL"
	Violations          []*Violation   `json:"violations"`
	Witness             *Witness       `json:"witness,omitempty"`
	Metadata            ReportMetadata `json:"metadata"`
	CounterexamplePaths []string       `json:"counterexample_paths,omitempty"`
	ReproCommand        string         `json:"repro_command,omitempty"`
	ShrinkStats         *ShrinkStats   `json:"shrink_stats,omitempty"`
	DurationMs          int64          `json:"duration_ms,omitempty"`
	GeneratedAt         string         `json:"generated_at,omitempty"`
}

// DiffReport is the standalone baseline-vs-current diff artifact (spec.md
// §6 "Diff-report file").
type DiffReport struct {
	SchemaVersion string      `json:"schema_version"`
	Summary       string      `json:"summary"`
	Findings      []*Finding  `json:"findings"`
}

// Finding is one entry of a DiffReport.
type Finding struct {
	Classification string `json:"classification"`
	Message        string `json:"message"`
	Severity       string `json:"severity"` // empty unless set; no default is filled in
	Path           string `json:"path,omitempty"`
	Baseline       any    `json:"baseline,omitempty"`
	Current        any    `json:"current,omitempty"`
}

// ReproArtifact is the minimized failing-trace bundle shrink produces
// (spec.md §4.11, §6 "Repro artifact").
type ReproArtifact struct {
	SchemaVersion  string  `json:"schema_version"`
	SpecName       string  `json:"spec_name"`
	OriginalLen    int     `json:"original_len"`
	ReducedLen     int     `json:"reduced_len"`
	Iterations     int     `json:"iterations"`
	Seconds        float64 `json:"seconds"`
	ReducedEvents  []Event `json:"reduced_events"`
}

// LatestRun is the small aggregate pointer file summarizing the most recent
// evaluation across all discovered specs (spec.md §6 "Latest-run aggregate").
type LatestRun struct {
	SchemaVersion string           `json:"schema_version"`
	GeneratedAt   string           `json:"generated_at"`
	Results       []LatestRunEntry `json:"results"`
}

type LatestRunEntry struct {
	SpecName   string `json:"spec_name"`
	Verdict    string `json:"verdict"`
	ReportPath string `json:"report_path"`
	Error      string `json:"error,omitempty"`
}
