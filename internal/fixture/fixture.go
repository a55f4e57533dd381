// Package fixture builds a fixture store from a baseline trace and matches
// tool/LLM calls observed during replay against it (spec.md §4.6).
package fixture

import (
	"fmt"

	"github.com/trajectly/trt/internal/canonical"
	"github.com/trajectly/trt/internal/schema"
)

// BuildFromEvents pairs each tool_called/tool_returned and
// llm_called/llm_returned event into a FixtureEntry, in call order. A
// returned event with no pending call of the matching kind is dropped, the
// same way an unmatched return is dropped in a live trace.
func BuildFromEvents(events []schema.Event) (schema.FixtureStoreFile, error) {
	var pendingTool []pendingCall
	var pendingLLM []pendingCall
	var entries []schema.FixtureEntry

	for _, ev := range events {
		payload := ev.Payload
		switch ev.EventType {
		case "tool_called":
			name := stringOr(payload, "tool_name", "unknown")
			input, _ := payload["input"].(map[string]any)
			if input == nil {
				input = map[string]any{}
			}
			hash, err := canonical.SHA256(input, false)
			if err != nil {
				return schema.FixtureStoreFile{}, fmt.Errorf("fixture: hash tool input: %w", err)
			}
			pendingTool = append(pendingTool, pendingCall{name: name, input: input, hash: hash})
		case "tool_returned":
			if len(pendingTool) == 0 {
				continue
			}
			prior := pendingTool[0]
			pendingTool = pendingTool[1:]
			output := map[string]any{"output": payload["output"], "error": payload["error"]}
			entries = append(entries, schema.FixtureEntry{
				Kind:          "tool",
				Name:          prior.name,
				InputPayload:  prior.input,
				InputHash:     prior.hash,
				OutputPayload: output,
				Error:         errorField(payload),
			})
		case "llm_called":
			name := fmt.Sprintf("%s:%s", stringOr(payload, "provider", "unknown"), stringOr(payload, "model", "unknown"))
			request, _ := payload["request"].(map[string]any)
			if request == nil {
				request = map[string]any{}
			}
			hash, err := canonical.SHA256(request, false)
			if err != nil {
				return schema.FixtureStoreFile{}, fmt.Errorf("fixture: hash llm request: %w", err)
			}
			pendingLLM = append(pendingLLM, pendingCall{name: name, input: request, hash: hash})
		case "llm_returned":
			if len(pendingLLM) == 0 {
				continue
			}
			prior := pendingLLM[0]
			pendingLLM = pendingLLM[1:]
			usage, _ := payload["usage"].(map[string]any)
			output := map[string]any{
				"response": payload["response"],
				"usage":    usage,
				"result":   payload["result"],
				"error":    payload["error"],
			}
			entries = append(entries, schema.FixtureEntry{
				Kind:          "llm",
				Name:          prior.name,
				InputPayload:  prior.input,
				InputHash:     prior.hash,
				OutputPayload: output,
				Error:         errorField(payload),
			})
		}
	}

	byKey := map[string][]schema.FixtureEntry{}
	for _, e := range entries {
		key := e.Kind + ":" + e.Name
		byKey[key] = append(byKey[key], e)
	}

	return schema.FixtureStoreFile{
		SchemaVersion: schema.SideEffectRegistryV1,
		Entries:       byKey,
	}, nil
}

type pendingCall struct {
	name  string
	input map[string]any
	hash  string
}

func stringOr(payload map[string]any, key, fallback string) string {
	if v, ok := payload[key].(string); ok {
		return v
	}
	return fallback
}

func errorField(payload map[string]any) any {
	return payload["error"]
}
