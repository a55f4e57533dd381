// Package refinement checks the skeleton refinement preorder between a
// baseline and current trace: baseline tool calls must embed as a
// subsequence of current tool calls, and any extra calls must be permitted
// by policy (spec.md §4.4).
package refinement

import "github.com/trajectly/trt/internal/abstraction"

// Step is one CALL token reduced to its event index and tool name.
type Step struct {
	EventIndex int
	ToolName   string
}

// ExtractCallSkeleton reduces an abstract trace to its ordered sequence of
// tool-call steps, dropping any names in ignoreCallTools.
func ExtractCallSkeleton(trace abstraction.AbstractTrace, ignoreCallTools map[string]bool) []Step {
	var steps []Step
	for _, tok := range trace.Tokens {
		if tok.Kind != abstraction.TokenCall {
			continue
		}
		if ignoreCallTools[tok.Name] {
			continue
		}
		steps = append(steps, Step{EventIndex: tok.EventIndex, ToolName: tok.Name})
	}
	return steps
}
