package report

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/trajectly/trt/internal/schema"
)

func TestRenderReportMarkdown_PassAndFail(t *testing.T) {
	pass := &schema.Report{SpecName: "checkout", Verdict: "PASS"}
	out := RenderReportMarkdown("checkout", pass)
	if !strings.Contains(out, "No regression") {
		t.Fatalf("expected PASS report to read 'No regression', got %s", out)
	}

	fail := &schema.Report{
		SpecName: "checkout",
		Verdict:  "FAIL",
		Violations: []*schema.Violation{
			{Class: schema.FailureClassContract, Code: schema.CodeContractToolDenied, EventIndex: 3, Message: "tool delete_account is denied"},
		},
		Witness: &schema.Witness{
			EventIndex: 3,
			Primary:    &schema.Violation{Class: schema.FailureClassContract, Code: schema.CodeContractToolDenied},
		},
	}
	out = RenderReportMarkdown("checkout", fail)
	if !strings.Contains(out, "Regression detected") {
		t.Fatalf("expected FAIL report to read 'Regression detected', got %s", out)
	}
	if !strings.Contains(out, schema.CodeContractToolDenied) {
		t.Fatalf("expected violation code in markdown, got %s", out)
	}
}

func TestRenderLatestMarkdown_ListsErrorsAndSpecs(t *testing.T) {
	latest := &schema.LatestRun{
		Results: []schema.LatestRunEntry{
			{SpecName: "checkout", Verdict: "PASS", ReportPath: "reports/checkout.json"},
			{SpecName: "refund", Verdict: "FAIL", ReportPath: "reports/refund.json"},
		},
	}
	out := RenderLatestMarkdown(latest, []string{"spec x failed to load"})
	if !strings.Contains(out, "## Errors") || !strings.Contains(out, "spec x failed to load") {
		t.Fatalf("expected errors section, got %s", out)
	}
	if !strings.Contains(out, "`checkout`: clean") || !strings.Contains(out, "`refund`: regression") {
		t.Fatalf("expected per-spec status lines, got %s", out)
	}
}

func TestRenderLatestMarkdown_NoSpecsProcessed(t *testing.T) {
	out := RenderLatestMarkdown(&schema.LatestRun{}, nil)
	if !strings.Contains(out, "No specs processed.") {
		t.Fatalf("expected empty-state message, got %s", out)
	}
}

func TestWriteReport_WritesJSONAndMarkdown(t *testing.T) {
	dir := t.TempDir()
	r := &schema.Report{SchemaVersion: schema.ReportSchemaVersion, SpecName: "checkout", Verdict: "PASS"}
	jsonPath, mdPath, err := WriteReport(dir, "checkout", r)
	if err != nil {
		t.Fatalf("WriteReport: %v", err)
	}
	if _, err := os.Stat(jsonPath); err != nil {
		t.Fatalf("expected json report: %v", err)
	}
	if _, err := os.Stat(mdPath); err != nil {
		t.Fatalf("expected markdown report: %v", err)
	}
}

func TestWriteLatest_WritesAggregateFiles(t *testing.T) {
	dir := t.TempDir()
	latest := &schema.LatestRun{SchemaVersion: schema.ReportSchemaVersion}
	jsonPath, mdPath, err := WriteLatest(dir, latest, nil)
	if err != nil {
		t.Fatalf("WriteLatest: %v", err)
	}
	if filepath.Base(jsonPath) != "latest.json" || filepath.Base(mdPath) != "latest.md" {
		t.Fatalf("unexpected latest file names: %s %s", jsonPath, mdPath)
	}
}

func TestWriteRepro_WritesArtifact(t *testing.T) {
	dir := t.TempDir()
	artifact := &schema.ReproArtifact{SchemaVersion: schema.ReportSchemaVersion, SpecName: "checkout"}
	path, err := WriteRepro(dir, "checkout", artifact)
	if err != nil {
		t.Fatalf("WriteRepro: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected repro artifact file: %v", err)
	}
}
