package canonical

import (
	"math"
	"testing"
)

func TestDumps_SortsKeys(t *testing.T) {
	v := map[string]any{"b": 1, "a": 2}
	text, err := Dumps(Normalize(v))
	if err != nil {
		t.Fatalf("Dumps: %v", err)
	}
	if text != `{"a":2,"b":1}` {
		t.Fatalf("unexpected output: %s", text)
	}
}

func TestStripVolatile_RemovesKeys(t *testing.T) {
	v := map[string]any{
		"run_id": "r1",
		"tool":   "checkout",
		"nested": map[string]any{"timestamp": 1.0, "amount": 5.0},
	}
	out := StripVolatile(v, DefaultVolatileKeys).(map[string]any)
	if _, ok := out["run_id"]; ok {
		t.Fatalf("run_id should have been stripped: %#v", out)
	}
	nested := out["nested"].(map[string]any)
	if _, ok := nested["timestamp"]; ok {
		t.Fatalf("nested timestamp should have been stripped: %#v", nested)
	}
	if nested["amount"] != 5.0 {
		t.Fatalf("amount should survive unchanged: %#v", nested["amount"])
	}
}

func TestNormalizeFloat_NaNAndInf(t *testing.T) {
	out := normalizeFloat(math.NaN())
	if out != "NaN" {
		t.Fatalf("NaN: got %#v", out)
	}
	out = normalizeFloat(math.Inf(1))
	if out != "Infinity" {
		t.Fatalf("+Inf: got %#v", out)
	}
	out = normalizeFloat(math.Inf(-1))
	if out != "-Infinity" {
		t.Fatalf("-Inf: got %#v", out)
	}
}

func TestSHA256_StableAcrossKeyOrder(t *testing.T) {
	a := map[string]any{"x": 1.0, "y": 2.0}
	b := map[string]any{"y": 2.0, "x": 1.0}
	hashA, err := SHA256(a, false)
	if err != nil {
		t.Fatalf("SHA256 a: %v", err)
	}
	hashB, err := SHA256(b, false)
	if err != nil {
		t.Fatalf("SHA256 b: %v", err)
	}
	if hashA != hashB {
		t.Fatalf("hashes diverged across key order: %s vs %s", hashA, hashB)
	}
}

func TestSHA256_VolatileStripIgnoresRunID(t *testing.T) {
	withRunID := map[string]any{"run_id": "r1", "tool": "checkout"}
	withoutRunID := map[string]any{"tool": "checkout"}
	stripped, err := SHA256(withRunID, true)
	if err != nil {
		t.Fatalf("SHA256 stripped: %v", err)
	}
	notStripped, err := SHA256(withoutRunID, true)
	if err != nil {
		t.Fatalf("SHA256 not stripped: %v", err)
	}
	if stripped != notStripped {
		t.Fatalf("run_id should not affect hash once stripped: %s vs %s", stripped, notStripped)
	}
}

func TestSHA256Subset_IgnoresConfiguredKeys(t *testing.T) {
	v := map[string]any{"event_id": "e1", "tool": "checkout"}
	h1, err := SHA256Subset(v, map[string]bool{"event_id": true})
	if err != nil {
		t.Fatalf("SHA256Subset: %v", err)
	}
	h2, err := SHA256Subset(map[string]any{"tool": "checkout"}, nil)
	if err != nil {
		t.Fatalf("SHA256Subset: %v", err)
	}
	if h1 != h2 {
		t.Fatalf("subset hash should ignore event_id: %s vs %s", h1, h2)
	}
}
