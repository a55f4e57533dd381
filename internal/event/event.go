// Package event builds and serializes trajectory events: the run_started /
// agent_step / llm_called / llm_returned / tool_called / tool_returned /
// run_finished records that make up a trace.
package event

import (
	"fmt"

	"github.com/trajectly/trt/internal/canonical"
	"github.com/trajectly/trt/internal/schema"
)

// idIgnoredKeys are excluded from the content hash used to derive an
// event's id: event_id itself (not yet assigned), rel_ms (wall-clock
// dependent), and meta (free-form annotations, including redaction
// bookkeeping, must not perturb identity).
var idIgnoredKeys = map[string]bool{
	"event_id": true,
	"rel_ms":   true,
	"meta":     true,
}

// New builds an Event of kind eventType and assigns its event_id from the
// content hash of its envelope. eventType must be one of schema.EventKinds.
func New(eventType string, seq int, runID string, relMs int64, payload map[string]any, meta map[string]any) (schema.Event, error) {
	if !schema.EventKinds[eventType] {
		return schema.Event{}, fmt.Errorf("event: unsupported event type %q", eventType)
	}
	if meta == nil {
		meta = map[string]any{}
	}
	if payload == nil {
		payload = map[string]any{}
	}
	ev := schema.Event{
		SchemaVersion: schema.TraceSchemaVersion,
		EventType:     eventType,
		Seq:           seq,
		RunID:         runID,
		RelMs:         relMs,
		Payload:       payload,
		Meta:          meta,
	}
	id, err := ComputeEventID(ev)
	if err != nil {
		return schema.Event{}, fmt.Errorf("event: compute event id: %w", err)
	}
	ev.EventID = id
	return ev, nil
}

// ComputeEventID derives an event's content-addressed id from its envelope,
// excluding the id field itself and the fields that legitimately vary
// between otherwise-identical events (rel_ms, meta). The payload is hashed
// as given: no package in this module applies internal/redact rules to it
// before the id is derived.
func ComputeEventID(ev schema.Event) (string, error) {
	envelope := map[string]any{
		"schema_version": ev.SchemaVersion,
		"event_type":     ev.EventType,
		"seq":            ev.Seq,
		"run_id":         ev.RunID,
		"payload":        ev.Payload,
	}
	return canonical.SHA256Subset(envelope, idIgnoredKeys)
}

// Validate checks structural invariants on a fully-decoded event: a
// supported schema version (the live trace version or the legacy v1 event
// schema), a known kind, a non-negative seq, and a non-empty run id.
func Validate(ev schema.Event) error {
	if ev.SchemaVersion != schema.TraceSchemaVersion && ev.SchemaVersion != schema.LegacyEventSchemaVersion {
		return fmt.Errorf("event: unsupported schema_version %q", ev.SchemaVersion)
	}
	if !schema.EventKinds[ev.EventType] {
		return fmt.Errorf("event: unsupported event type %q", ev.EventType)
	}
	if ev.Seq < 0 {
		return fmt.Errorf("event: negative seq %d", ev.Seq)
	}
	if ev.RunID == "" {
		return fmt.Errorf("event: missing run_id")
	}
	return nil
}
