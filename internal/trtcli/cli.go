// Package trtcli is the thin process entrypoint over the core engine:
// load a spec, load a recorded baseline, evaluate it against a current
// trace, and print the report. It is deliberately small — the core
// (internal/engine and friends) consumes already-parsed spec values and
// in-memory event slices; this package is just the glue that gets those
// values from disk and argv (spec.md §1 "YAML/CLI glue").
package trtcli

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/trajectly/trt/internal/baseline"
	"github.com/trajectly/trt/internal/engine"
	"github.com/trajectly/trt/internal/event"
	"github.com/trajectly/trt/internal/ids"
	"github.com/trajectly/trt/internal/report"
	"github.com/trajectly/trt/internal/schema"
	"github.com/trajectly/trt/internal/specs"
)

// Runner is the command dispatcher, mirroring the teacher CLI's
// Runner{Version, Stdout, Stderr} shape so tests can capture output
// without touching os.Stdout/os.Stderr.
type Runner struct {
	Version string
	Now     func() time.Time
	Stdout  io.Writer
	Stderr  io.Writer
}

func (r Runner) Run(args []string) int {
	if r.Stdout == nil {
		r.Stdout = os.Stdout
	}
	if r.Stderr == nil {
		r.Stderr = os.Stderr
	}
	if r.Now == nil {
		r.Now = time.Now
	}

	if len(args) == 0 || args[0] == "-h" || args[0] == "--help" || args[0] == "help" {
		printRootHelp(r.Stdout)
		return 0
	}

	switch args[0] {
	case "evaluate":
		return r.runEvaluate(args[1:])
	case "record":
		return r.runRecord(args[1:])
	case "version":
		fmt.Fprintf(r.Stdout, "%s\n", r.Version)
		return 0
	default:
		fmt.Fprintf(r.Stderr, "TRT_E_USAGE: unknown command %q\n", args[0])
		printRootHelp(r.Stderr)
		return schema.ExitInternalError
	}
}

func (r Runner) runEvaluate(args []string) int {
	fs := flag.NewFlagSet("evaluate", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	specPath := fs.String("spec", "", "path to a .trt.yaml spec file (required)")
	stateDir := fs.String("state-dir", schema.StateDir, "TRT state directory")
	currentPath := fs.String("current", "", "path to the current run's events JSONL file (required)")
	writeReport := fs.Bool("write", false, "also write the report family under <state-dir>/reports")
	help := fs.Bool("help", false, "show help")

	if err := fs.Parse(args); err != nil {
		return r.failUsage("evaluate: invalid flags")
	}
	if *help {
		printEvaluateHelp(r.Stdout)
		return 0
	}
	if *specPath == "" || *currentPath == "" {
		printEvaluateHelp(r.Stderr)
		return r.failUsage("evaluate: --spec and --current are required")
	}

	spec, err := specs.Load(*specPath)
	if err != nil {
		fmt.Fprintf(r.Stderr, "TRT_E_SPEC: %s\n", err.Error())
		return schema.ExitInternalError
	}

	baselineEvents, baselineMeta, err := baseline.Load(*stateDir, spec.Name)
	if err != nil {
		fmt.Fprintf(r.Stderr, "TRT_E_BASELINE: no usable baseline for spec %q: %s\n", spec.Name, err.Error())
		return schema.ExitInternalError
	}

	currentEvents, err := event.ReadJSONL(*currentPath)
	if err != nil {
		fmt.Fprintf(r.Stderr, "TRT_E_IO: %s\n", err.Error())
		return schema.ExitInternalError
	}
	currentMeta := schema.TraceMeta{
		SchemaVersion:     schema.TraceSchemaVersion,
		NormalizerVersion: schema.NormalizerVersion,
		SpecName:          spec.Name,
	}

	rep := &schema.Report{
		SchemaVersion: schema.ReportSchemaVersion,
		SpecName:      spec.Name,
		BaselineRunID: baselineMeta.RunID,
		CurrentRunID:  currentMeta.RunID,
		Metadata: schema.ReportMetadata{
			ReportSchemaVersion:       schema.ReportSchemaVersion,
			NormalizerVersion:         schema.NormalizerVersion,
			SideEffectRegistryVersion: schema.SideEffectRegistryV1,
		},
	}

	if mismatch := engine.CheckNormalizerVersions(baselineMeta, currentMeta); mismatch != nil {
		rep.Verdict = "FAIL"
		rep.Violations = []*schema.Violation{mismatch}
		rep.Witness = &schema.Witness{EventIndex: mismatch.EventIndex, Primary: mismatch, All: rep.Violations}
		return r.finishEvaluate(rep, *stateDir, *writeReport)
	}

	result, err := engine.EvaluateTRT(baselineEvents, currentEvents, spec)
	if err != nil {
		fmt.Fprintf(r.Stderr, "TRT_E_INTERNAL: %s\n", err.Error())
		return schema.ExitInternalError
	}
	result.Report.BaselineRunID = baselineMeta.RunID
	result.Report.CurrentRunID = currentMeta.RunID
	return r.finishEvaluate(result.Report, *stateDir, *writeReport)
}

func (r Runner) finishEvaluate(rep *schema.Report, stateDir string, writeReport bool) int {
	if writeReport {
		reportsDir := filepath.Join(stateDir, "reports")
		if _, _, err := report.WriteReport(reportsDir, ids.SanitizeComponent(rep.SpecName), rep); err != nil {
			fmt.Fprintf(r.Stderr, "TRT_E_IO: %s\n", err.Error())
			return schema.ExitInternalError
		}
	}
	if exit := r.writeJSON(rep); exit != 0 {
		return exit
	}
	if rep.Verdict == "FAIL" {
		return schema.ExitRegression
	}
	return schema.ExitSuccess
}

func (r Runner) runRecord(args []string) int {
	fs := flag.NewFlagSet("record", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	specPath := fs.String("spec", "", "path to a .trt.yaml spec file (required)")
	stateDir := fs.String("state-dir", schema.StateDir, "TRT state directory")
	tracePath := fs.String("trace", "", "path to the events JSONL file to record as the baseline (required)")
	runID := fs.String("run-id", "", "run id to stamp (default: generated from the current time)")
	override := fs.Bool("override", false, "bypass the CI write guard")
	help := fs.Bool("help", false, "show help")

	if err := fs.Parse(args); err != nil {
		return r.failUsage("record: invalid flags")
	}
	if *help {
		printRecordHelp(r.Stdout)
		return 0
	}
	if *specPath == "" || *tracePath == "" {
		printRecordHelp(r.Stderr)
		return r.failUsage("record: --spec and --trace are required")
	}

	spec, err := specs.Load(*specPath)
	if err != nil {
		fmt.Fprintf(r.Stderr, "TRT_E_SPEC: %s\n", err.Error())
		return schema.ExitInternalError
	}

	events, err := event.ReadJSONL(*tracePath)
	if err != nil {
		fmt.Fprintf(r.Stderr, "TRT_E_IO: %s\n", err.Error())
		return schema.ExitInternalError
	}

	resolvedRunID := *runID
	if resolvedRunID == "" {
		resolvedRunID, err = ids.NewRunID(r.Now())
		if err != nil {
			fmt.Fprintf(r.Stderr, "TRT_E_INTERNAL: %s\n", err.Error())
			return schema.ExitInternalError
		}
	}

	result, err := baseline.Record(baseline.RecordOpts{
		StateDir: *stateDir,
		Slug:     spec.Name,
		RunID:    resolvedRunID,
		Events:   events,
		Meta:     schema.TraceMeta{SpecName: spec.Name},
		Override: *override,
	})
	if err != nil {
		var blocked *baseline.ErrCIBlocked
		if errors.As(err, &blocked) {
			fmt.Fprintf(r.Stderr, "TRT_E_CI_BLOCKED: %s\n", err.Error())
		} else {
			fmt.Fprintf(r.Stderr, "TRT_E_IO: %s\n", err.Error())
		}
		return schema.ExitInternalError
	}
	return r.writeJSON(result)
}

func (r Runner) writeJSON(v any) int {
	enc := json.NewEncoder(r.Stdout)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		fmt.Fprintf(r.Stderr, "TRT_E_IO: failed to encode json\n")
		return schema.ExitInternalError
	}
	return schema.ExitSuccess
}

func (r Runner) failUsage(msg string) int {
	fmt.Fprintf(r.Stderr, "TRT_E_USAGE: %s\n", msg)
	return schema.ExitInternalError
}

func printRootHelp(w io.Writer) {
	fmt.Fprint(w, `trt - Trajectly Regression Testing

Usage:
  trt evaluate --spec <spec.trt.yaml> --current <events.jsonl> [--state-dir .trajectly] [--write]
  trt record --spec <spec.trt.yaml> --trace <events.jsonl> [--run-id <id>] [--state-dir .trajectly] [--override]
  trt version

Commands:
  evaluate   Compare a current trace against the recorded baseline and print the report.
  record     Record (or supersede) the baseline trace for a spec.
  version    Print version.
`)
}

func printEvaluateHelp(w io.Writer) {
	fmt.Fprint(w, `Usage:
  trt evaluate --spec <spec.trt.yaml> --current <events.jsonl> [--state-dir .trajectly] [--write]
`)
}

func printRecordHelp(w io.Writer) {
	fmt.Fprint(w, `Usage:
  trt record --spec <spec.trt.yaml> --trace <events.jsonl> [--run-id <id>] [--state-dir .trajectly] [--override]
`)
}
