package fixture

import (
	"testing"

	"github.com/trajectly/trt/internal/canonical"
	"github.com/trajectly/trt/internal/schema"
)

func TestBuildFromEvents_PairsToolCallAndReturn(t *testing.T) {
	events := []schema.Event{
		{EventType: "tool_called", Payload: map[string]any{"tool_name": "checkout", "input": map[string]any{"kwargs": map[string]any{"order_id": "1"}}}},
		{EventType: "tool_returned", Payload: map[string]any{"output": "ok"}},
	}
	store, err := BuildFromEvents(events)
	if err != nil {
		t.Fatalf("BuildFromEvents: %v", err)
	}
	entries := store.Entries["tool:checkout"]
	if len(entries) != 1 {
		t.Fatalf("expected 1 fixture entry, got %d", len(entries))
	}
	if entries[0].InputHash == "" {
		t.Fatalf("expected non-empty input hash")
	}
}

func TestBuildFromEvents_DropsUnmatchedReturn(t *testing.T) {
	events := []schema.Event{
		{EventType: "tool_returned", Payload: map[string]any{"output": "ok"}},
	}
	store, err := BuildFromEvents(events)
	if err != nil {
		t.Fatalf("BuildFromEvents: %v", err)
	}
	if len(store.Entries) != 0 {
		t.Fatalf("expected no entries, got %#v", store.Entries)
	}
}

func TestMatcher_ByIndexReturnsInOrder(t *testing.T) {
	store := schema.FixtureStoreFile{Entries: map[string][]schema.FixtureEntry{
		"tool:checkout": {
			{Kind: "tool", Name: "checkout", InputHash: "h1", OutputPayload: map[string]any{"output": "first"}},
			{Kind: "tool", Name: "checkout", InputHash: "h2", OutputPayload: map[string]any{"output": "second"}},
		},
	}}
	m := NewMatcher(store, "by_index", false)
	e1, err := m.Match("tool", "checkout", map[string]any{"a": 1})
	if err != nil {
		t.Fatalf("Match 1: %v", err)
	}
	if e1.OutputPayload["output"] != "first" {
		t.Fatalf("expected first entry, got %#v", e1)
	}
	e2, err := m.Match("tool", "checkout", map[string]any{"a": 2})
	if err != nil {
		t.Fatalf("Match 2: %v", err)
	}
	if e2.OutputPayload["output"] != "second" {
		t.Fatalf("expected second entry, got %#v", e2)
	}
}

func TestMatcher_ByIndexExhausted(t *testing.T) {
	store := schema.FixtureStoreFile{Entries: map[string][]schema.FixtureEntry{
		"tool:checkout": {{Kind: "tool", Name: "checkout", InputHash: "h1"}},
	}}
	m := NewMatcher(store, "by_index", false)
	if _, err := m.Match("tool", "checkout", nil); err != nil {
		t.Fatalf("first match should succeed: %v", err)
	}
	_, err := m.Match("tool", "checkout", nil)
	var exhausted *ExhaustedError
	if err == nil {
		t.Fatalf("expected exhausted error")
	}
	if ex, ok := err.(*ExhaustedError); !ok {
		t.Fatalf("expected *ExhaustedError, got %T", err)
	} else {
		exhausted = ex
	}
	if exhausted.AvailableCount != 1 || exhausted.ConsumedCount != 1 {
		t.Fatalf("unexpected exhausted error: %#v", exhausted)
	}
}

func TestMatcher_ByIndexStrictMismatch(t *testing.T) {
	store := schema.FixtureStoreFile{Entries: map[string][]schema.FixtureEntry{
		"tool:checkout": {{Kind: "tool", Name: "checkout", InputHash: "expected-hash"}},
	}}
	m := NewMatcher(store, "by_index", true)
	_, err := m.Match("tool", "checkout", map[string]any{"different": "input"})
	if _, ok := err.(*LookupError); !ok {
		t.Fatalf("expected *LookupError for strict mismatch, got %v", err)
	}
}

func TestMatcher_ByHashFindsFirstUnused(t *testing.T) {
	input := map[string]any{"order_id": "1"}
	h, _ := canonical.SHA256(input, false)
	store := schema.FixtureStoreFile{Entries: map[string][]schema.FixtureEntry{
		"tool:checkout": {
			{Kind: "tool", Name: "checkout", InputHash: h, OutputPayload: map[string]any{"output": "first"}},
			{Kind: "tool", Name: "checkout", InputHash: h, OutputPayload: map[string]any{"output": "second"}},
		},
	}}
	m := NewMatcher(store, "by_hash", false)
	e1, err := m.Match("tool", "checkout", input)
	if err != nil {
		t.Fatalf("Match 1: %v", err)
	}
	e2, err := m.Match("tool", "checkout", input)
	if err != nil {
		t.Fatalf("Match 2: %v", err)
	}
	if e1.OutputPayload["output"] == e2.OutputPayload["output"] {
		t.Fatalf("expected distinct entries consumed in order, got %#v and %#v", e1, e2)
	}
}

func TestMatcher_ByHashNoMatchReturnsNil(t *testing.T) {
	store := schema.FixtureStoreFile{Entries: map[string][]schema.FixtureEntry{}}
	m := NewMatcher(store, "by_hash", false)
	entry, err := m.Match("tool", "checkout", map[string]any{"x": 1})
	if err != nil {
		t.Fatalf("Match: %v", err)
	}
	if entry != nil {
		t.Fatalf("expected nil entry for unknown key, got %#v", entry)
	}
}

