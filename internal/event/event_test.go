package event

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/trajectly/trt/internal/schema"
)

func TestNew_AssignsStableEventID(t *testing.T) {
	ev1, err := New("tool_called", 1, "run-a", 100, map[string]any{"tool": "checkout"}, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ev2, err := New("tool_called", 1, "run-a", 999, map[string]any{"tool": "checkout"}, map[string]any{"note": "ignored"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if ev1.EventID == "" {
		t.Fatalf("expected non-empty event id")
	}
	if ev1.EventID != ev2.EventID {
		t.Fatalf("rel_ms/meta should not affect event id: %s vs %s", ev1.EventID, ev2.EventID)
	}
}

func TestNew_RejectsUnknownEventType(t *testing.T) {
	if _, err := New("bogus_type", 0, "run-a", 0, nil, nil); err == nil {
		t.Fatalf("expected error for unsupported event type")
	}
}

func TestNew_DifferentPayloadsDifferentIDs(t *testing.T) {
	a, _ := New("tool_called", 1, "run-a", 0, map[string]any{"tool": "checkout"}, nil)
	b, _ := New("tool_called", 1, "run-a", 0, map[string]any{"tool": "refund"}, nil)
	if a.EventID == b.EventID {
		t.Fatalf("different payloads should not collide: %s", a.EventID)
	}
}

func TestAppendJSONL_RoundTrips(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "trace.jsonl")

	ev, err := New("run_started", 0, "run-a", 0, map[string]any{"spec": "checkout_flow"}, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := AppendJSONL(path, ev); err != nil {
		t.Fatalf("AppendJSONL: %v", err)
	}
	ev2, err := New("run_finished", 1, "run-a", 10, map[string]any{"status": "ok"}, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := AppendJSONL(path, ev2); err != nil {
		t.Fatalf("AppendJSONL: %v", err)
	}

	events, err := ReadJSONL(path)
	if err != nil {
		t.Fatalf("ReadJSONL: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	if events[0].EventType != "run_started" || events[1].EventType != "run_finished" {
		t.Fatalf("unexpected event order: %#v", events)
	}
}

func TestReadJSONL_SkipsBlankLines(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "trace.jsonl")

	ev, _ := New("agent_step", 0, "run-a", 0, map[string]any{"name": "plan"}, nil)
	if err := AppendJSONL(path, ev); err != nil {
		t.Fatalf("AppendJSONL: %v", err)
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		t.Fatalf("OpenFile: %v", err)
	}
	if _, err := f.WriteString("\n\n"); err != nil {
		t.Fatalf("write blank lines: %v", err)
	}
	_ = f.Close()

	events, err := ReadJSONL(path)
	if err != nil {
		t.Fatalf("ReadJSONL: %v", err)
	}
	if len(events) != 1 || events[0].EventType != "agent_step" {
		t.Fatalf("unexpected events: %#v", events)
	}
}

func TestValidate_RejectsMissingRunID(t *testing.T) {
	ev := schema.Event{EventType: "tool_called", Seq: 0}
	if err := Validate(ev); err == nil {
		t.Fatalf("expected error for missing run_id")
	}
}
