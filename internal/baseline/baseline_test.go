package baseline

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/trajectly/trt/internal/schema"
)

func sampleEvents() []schema.Event {
	return []schema.Event{
		{SchemaVersion: "0.4", EventType: "run_started", Seq: 0, RunID: "r1", Payload: map[string]any{}},
		{SchemaVersion: "0.4", EventType: "run_finished", Seq: 1, RunID: "r1", Payload: map[string]any{"returncode": 0.0}},
	}
}

func TestRecord_WritesTraceAndMeta(t *testing.T) {
	dir := t.TempDir()
	result, err := Record(RecordOpts{
		StateDir: dir,
		Slug:     "Checkout Flow",
		RunID:    "20260730-120000Z-abcdef",
		Events:   sampleEvents(),
	})
	if err != nil {
		t.Fatalf("Record: %v", err)
	}
	if result.Slug != "checkout-flow" {
		t.Fatalf("expected sanitized slug, got %q", result.Slug)
	}
	if _, err := os.Stat(result.TracePath); err != nil {
		t.Fatalf("expected trace file to exist: %v", err)
	}
	if _, err := os.Stat(result.MetaPath); err != nil {
		t.Fatalf("expected meta file to exist: %v", err)
	}

	events, meta, err := Load(dir, "checkout-flow")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("expected 2 events loaded back, got %d", len(events))
	}
	if meta.NormalizerVersion != schema.NormalizerVersion {
		t.Fatalf("expected normalizer version stamped, got %q", meta.NormalizerVersion)
	}
}

func TestRecord_RejectsEmptyTrace(t *testing.T) {
	dir := t.TempDir()
	_, err := Record(RecordOpts{StateDir: dir, Slug: "x", RunID: "r"})
	if err == nil {
		t.Fatalf("expected rejection of empty trace")
	}
}

func TestRecord_BlocksUnderCIWithoutOverride(t *testing.T) {
	t.Setenv(CIEnvVar, "1")
	dir := t.TempDir()
	_, err := Record(RecordOpts{StateDir: dir, Slug: "x", RunID: "r", Events: sampleEvents()})
	if err == nil {
		t.Fatalf("expected CI-blocked error")
	}
	if _, ok := err.(*ErrCIBlocked); !ok {
		t.Fatalf("expected *ErrCIBlocked, got %#v", err)
	}
}

func TestRecord_OverrideBypassesCIBlock(t *testing.T) {
	t.Setenv(CIEnvVar, "1")
	dir := t.TempDir()
	_, err := Record(RecordOpts{StateDir: dir, Slug: "x", RunID: "r", Events: sampleEvents(), Override: true})
	if err != nil {
		t.Fatalf("expected override to bypass CI block, got %v", err)
	}
}

func TestRecord_SupersedesPreviousBaseline(t *testing.T) {
	dir := t.TempDir()
	if _, err := Record(RecordOpts{StateDir: dir, Slug: "x", RunID: "r1", Events: sampleEvents()}); err != nil {
		t.Fatalf("first Record: %v", err)
	}
	secondEvents := append(sampleEvents(), schema.Event{SchemaVersion: "0.4", EventType: "agent_step", Seq: 2, RunID: "r2", Payload: map[string]any{}})
	if _, err := Record(RecordOpts{StateDir: dir, Slug: "x", RunID: "r2", Events: secondEvents}); err != nil {
		t.Fatalf("second Record: %v", err)
	}
	events, meta, err := Load(dir, "x")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(events) != 3 {
		t.Fatalf("expected superseded baseline to have 3 events, got %d", len(events))
	}
	if meta.RunID != "r2" {
		t.Fatalf("expected meta to reflect superseding run id, got %q", meta.RunID)
	}
}

func TestPin_TogglesPinnedFlag(t *testing.T) {
	dir := t.TempDir()
	if _, err := Record(RecordOpts{StateDir: dir, Slug: "x", RunID: "r1", Events: sampleEvents()}); err != nil {
		t.Fatalf("Record: %v", err)
	}
	meta, err := Pin(dir, "x", true)
	if err != nil {
		t.Fatalf("Pin: %v", err)
	}
	if !meta.Pinned {
		t.Fatalf("expected pinned=true")
	}
	meta, err = Pin(dir, "x", false)
	if err != nil {
		t.Fatalf("Pin: %v", err)
	}
	if meta.Pinned {
		t.Fatalf("expected pinned=false after demote")
	}
}

func TestPin_RejectsMissingBaseline(t *testing.T) {
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, "baselines"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if _, err := Pin(dir, "does-not-exist", true); err == nil {
		t.Fatalf("expected error pinning a nonexistent baseline")
	}
}

func TestCIBlocked_RespectsOverride(t *testing.T) {
	t.Setenv(CIEnvVar, "1")
	if !CIBlocked(false) {
		t.Fatalf("expected blocked when CI=1 and no override")
	}
	if CIBlocked(true) {
		t.Fatalf("expected override to bypass CI block")
	}
}
