// Package report renders and writes the on-disk report family: a TRT
// report, a diff-report, a repro artifact, and the cross-spec latest-run
// aggregate (spec.md §6). All but the repro artifact, which is written as
// JSON only, are paired with a human-readable Markdown twin.
package report

import (
	"fmt"
	"strings"

	"github.com/trajectly/trt/internal/schema"
)

// RenderReportMarkdown renders one TRT report as Markdown, grounded on the
// original's render_markdown: a status line, a findings section, and (when
// a witness exists) the witness location.
func RenderReportMarkdown(specName string, r *schema.Report) string {
	var b strings.Builder
	fmt.Fprintf(&b, "## Trajectly Report: %s\n\n", specName)

	status := "No regression"
	if r.Verdict == "FAIL" {
		status = "Regression detected"
	}
	fmt.Fprintf(&b, "- Status: **%s**\n", status)
	fmt.Fprintf(&b, "- Findings: **%d**\n", len(r.Violations))
	if r.Witness != nil && r.Witness.Primary != nil {
		fmt.Fprintf(&b, "- Witness: **%s** (`%s`) at index **%d**\n",
			r.Witness.Primary.Class, r.Witness.Primary.Code, r.Witness.EventIndex)
	}
	if r.DurationMs > 0 {
		fmt.Fprintf(&b, "- Duration: **%dms**\n", r.DurationMs)
	}

	b.WriteString("\n### Violations\n\n")
	if len(r.Violations) == 0 {
		b.WriteString("No violations.\n")
	} else {
		for _, v := range r.Violations {
			fmt.Fprintf(&b, "- `%s` (%s) at event %d: %s\n", v.Code, v.Class, v.EventIndex, v.Message)
		}
	}
	b.WriteString("\n")
	return b.String()
}

// RenderDiffMarkdown renders a DiffReport as Markdown, grounded on the
// original's render_markdown for a legacy diff result (budgets table plus
// a findings list keyed by classification/path/message).
func RenderDiffMarkdown(specName string, d *schema.DiffReport) string {
	var b strings.Builder
	fmt.Fprintf(&b, "## Trajectly Report: %s\n\n", specName)
	fmt.Fprintf(&b, "- Summary: %s\n", d.Summary)
	fmt.Fprintf(&b, "- Findings: **%d**\n\n", len(d.Findings))

	b.WriteString("### Findings\n\n")
	if len(d.Findings) == 0 {
		b.WriteString("No findings.\n")
	} else {
		for _, f := range d.Findings {
			location := ""
			if f.Path != "" {
				location = fmt.Sprintf(" at `%s`", f.Path)
			}
			fmt.Fprintf(&b, "- `%s`%s: %s\n", f.Classification, location, f.Message)
		}
	}
	b.WriteString("\n")
	return b.String()
}

// RenderLatestMarkdown renders the cross-spec latest-run aggregate,
// grounded on the original's _aggregate_markdown: an Errors section (only
// when non-empty) followed by a Specs section.
func RenderLatestMarkdown(latest *schema.LatestRun, errs []string) string {
	var b strings.Builder
	b.WriteString("# Trajectly Latest Run\n\n")

	if len(errs) > 0 {
		b.WriteString("## Errors\n\n")
		for _, e := range errs {
			fmt.Fprintf(&b, "- %s\n", e)
		}
		b.WriteString("\n")
	}

	b.WriteString("## Specs\n\n")
	if len(latest.Results) == 0 {
		b.WriteString("No specs processed.\n")
	} else {
		for _, row := range latest.Results {
			status := "clean"
			if row.Verdict == "FAIL" {
				status = "regression"
			}
			fmt.Fprintf(&b, "- `%s`: %s\n", row.SpecName, status)
			fmt.Fprintf(&b, "  - report: `%s`\n", row.ReportPath)
		}
	}
	b.WriteString("\n")
	return b.String()
}
