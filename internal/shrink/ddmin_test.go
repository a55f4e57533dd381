package shrink

import (
	"testing"

	"github.com/trajectly/trt/internal/schema"
)

func events(n int) []schema.Event {
	out := make([]schema.Event, n)
	for i := range out {
		out[i] = schema.Event{Seq: i}
	}
	return out
}

func TestDDMinShrink_ReducesToMinimalFailingSubsequence(t *testing.T) {
	// Failure reproduces only when event with Seq==3 is present.
	predicate := func(candidate []schema.Event) bool {
		for _, ev := range candidate {
			if ev.Seq == 3 {
				return true
			}
		}
		return false
	}
	result, err := DDMinShrink(events(8), predicate, 5.0, 1000)
	if err != nil {
		t.Fatalf("DDMinShrink: %v", err)
	}
	if !result.Reduced() {
		t.Fatalf("expected reduction, got %#v", result)
	}
	found := false
	for _, ev := range result.ReducedEvents {
		if ev.Seq == 3 {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected seq 3 to survive shrinking: %#v", result.ReducedEvents)
	}
}

func TestDDMinShrink_AllEventsNecessary(t *testing.T) {
	predicate := func(candidate []schema.Event) bool { return len(candidate) >= 4 }
	result, err := DDMinShrink(events(4), predicate, 5.0, 1000)
	if err != nil {
		t.Fatalf("DDMinShrink: %v", err)
	}
	if result.Reduced() {
		t.Fatalf("expected no reduction when all events are necessary: %#v", result)
	}
}

func TestDDMinShrink_RejectsEmptyEvents(t *testing.T) {
	_, err := DDMinShrink(nil, func([]schema.Event) bool { return true }, 1.0, 10)
	if err == nil {
		t.Fatalf("expected error for empty events")
	}
}

func TestDDMinShrink_RejectsFailingPredicateOnOriginal(t *testing.T) {
	_, err := DDMinShrink(events(2), func([]schema.Event) bool { return false }, 1.0, 10)
	if err == nil {
		t.Fatalf("expected error when predicate does not hold for the original events")
	}
}
