package refinement

import (
	"fmt"
	"sort"

	"github.com/trajectly/trt/internal/schema"
)

// Result is the outcome of CheckSkeletonRefinement.
type Result struct {
	Violations []*schema.Violation
	Vacuous    bool
}

// isSubsequenceWithMatches is the greedy O(|baseline|+|current|) subsequence
// scan: every matched element consumes the earliest possible current
// position, which maximizes room for subsequent matches and makes a single
// left-to-right pass sufficient.
func isSubsequenceWithMatches(baselineNames, currentNames []string) (matched bool, matchIndices []int, firstMissing string) {
	bi, ci := 0, 0
	for bi < len(baselineNames) && ci < len(currentNames) {
		if baselineNames[bi] == currentNames[ci] {
			matchIndices = append(matchIndices, ci)
			bi++
			ci++
			continue
		}
		ci++
	}
	if bi == len(baselineNames) {
		return true, matchIndices, ""
	}
	return false, matchIndices, baselineNames[bi]
}

// CheckSkeletonRefinement verifies the skeleton refinement preorder between
// baseline and current tool-call sequences. sideEffectTools is the
// configured side-effect tool registry used to decide whether an extra call
// needs explicit side-effect allowance on top of the generic allow-list.
func CheckSkeletonRefinement(baselineSteps, currentSteps []Step, policy schema.RefinementPolicy, sideEffectTools map[string]bool) Result {
	if policy.Mode == "none" {
		return Result{}
	}

	baselineNames := make([]string, len(baselineSteps))
	for i, s := range baselineSteps {
		baselineNames[i] = s.ToolName
	}
	currentNames := make([]string, len(currentSteps))
	for i, s := range currentSteps {
		currentNames[i] = s.ToolName
	}

	if len(baselineNames) == 0 {
		// Empty baseline skeleton is vacuous for refinement; contracts remain
		// the only active obligations.
		return Result{Vacuous: true}
	}

	var violations []*schema.Violation
	matched, matchIndices, firstMissing := isSubsequenceWithMatches(baselineNames, currentNames)
	if !matched {
		eventIndex := 0
		if len(currentSteps) > 0 {
			eventIndex = currentSteps[len(currentSteps)-1].EventIndex
		}
		missing := firstMissing
		if missing == "" {
			missing = "unknown"
		}
		violations = append(violations, &schema.Violation{
			Class:      schema.FailureClassRefinement,
			Code:       schema.CodeRefinementBaselineCallMissing,
			Message:    fmt.Sprintf("Baseline skeleton call missing in current run: %s", missing),
			EventIndex: eventIndex,
			Expected:   firstMissing,
			Actual:     currentNames,
		})
	}

	matchedSet := make(map[int]bool, len(matchIndices))
	for _, i := range matchIndices {
		matchedSet[i] = true
	}
	baselineToolSet := toSet(baselineNames)
	allowedExtraTools := toSet(policy.AllowExtraTools)
	allowedExtraSideEffect := toSet(policy.AllowExtraSideEffectTools)

	for index, step := range currentSteps {
		if matchedSet[index] {
			continue
		}
		toolName := step.ToolName

		if !allowedExtraTools[toolName] {
			violations = append(violations, &schema.Violation{
				Class:      schema.FailureClassRefinement,
				Code:       schema.CodeRefinementExtraToolCall,
				Message:    fmt.Sprintf("Extra tool call not allowed by refinement policy: %s", toolName),
				EventIndex: step.EventIndex,
				Expected:   sortedKeys(allowedExtraTools),
				Actual:     toolName,
			})
		}

		if sideEffectTools[toolName] && !allowedExtraSideEffect[toolName] {
			violations = append(violations, &schema.Violation{
				Class:      schema.FailureClassRefinement,
				Code:       schema.CodeRefinementExtraSideEffectCall,
				Message:    fmt.Sprintf("Extra side-effect tool call not allowed: %s", toolName),
				EventIndex: step.EventIndex,
				Expected:   sortedKeys(allowedExtraSideEffect),
				Actual:     toolName,
			})
		}

		if !policy.AllowNewToolNames && !baselineToolSet[toolName] && !allowedExtraTools[toolName] {
			union := map[string]bool{}
			for k := range baselineToolSet {
				union[k] = true
			}
			for k := range allowedExtraTools {
				union[k] = true
			}
			violations = append(violations, &schema.Violation{
				Class:      schema.FailureClassRefinement,
				Code:       schema.CodeRefinementNewToolNameForbidden,
				Message:    fmt.Sprintf("New tool name not permitted by refinement policy: %s", toolName),
				EventIndex: step.EventIndex,
				Expected:   sortedKeys(union),
				Actual:     toolName,
			})
		}
	}

	return Result{Violations: violations}
}

func toSet(values []string) map[string]bool {
	out := make(map[string]bool, len(values))
	for _, v := range values {
		out[v] = true
	}
	return out
}

func sortedKeys(set map[string]bool) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
