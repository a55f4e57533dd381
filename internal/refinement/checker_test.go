package refinement

import (
	"testing"

	"github.com/trajectly/trt/internal/schema"
)

func steps(names ...string) []Step {
	out := make([]Step, len(names))
	for i, n := range names {
		out[i] = Step{EventIndex: i, ToolName: n}
	}
	return out
}

func TestCheckSkeletonRefinement_EmptyBaselineIsVacuous(t *testing.T) {
	result := CheckSkeletonRefinement(nil, steps("checkout"), schema.RefinementPolicy{Mode: "skeleton"}, nil)
	if !result.Vacuous {
		t.Fatalf("expected vacuous result for empty baseline")
	}
	if len(result.Violations) != 0 {
		t.Fatalf("expected no violations, got %#v", result.Violations)
	}
}

func TestCheckSkeletonRefinement_ModeNoneSkipsCheck(t *testing.T) {
	result := CheckSkeletonRefinement(steps("checkout"), steps("refund"), schema.RefinementPolicy{Mode: "none"}, nil)
	if len(result.Violations) != 0 || result.Vacuous {
		t.Fatalf("expected no-op result, got %#v", result)
	}
}

func TestCheckSkeletonRefinement_SubsequenceMatches(t *testing.T) {
	baseline := steps("lookup_order", "checkout")
	current := steps("lookup_order", "log", "checkout")
	result := CheckSkeletonRefinement(baseline, current, schema.RefinementPolicy{Mode: "skeleton", AllowExtraTools: []string{"log"}}, nil)
	if len(result.Violations) != 0 {
		t.Fatalf("expected no violations, got %#v", result.Violations)
	}
}

func TestCheckSkeletonRefinement_MissingBaselineCall(t *testing.T) {
	baseline := steps("lookup_order", "checkout")
	current := steps("lookup_order")
	result := CheckSkeletonRefinement(baseline, current, schema.RefinementPolicy{Mode: "skeleton"}, nil)
	if len(result.Violations) != 1 || result.Violations[0].Code != schema.CodeRefinementBaselineCallMissing {
		t.Fatalf("expected one baseline-call-missing violation, got %#v", result.Violations)
	}
}

func TestCheckSkeletonRefinement_ExtraToolNotAllowed(t *testing.T) {
	baseline := steps("checkout")
	current := steps("checkout", "delete_account")
	result := CheckSkeletonRefinement(baseline, current, schema.RefinementPolicy{Mode: "skeleton"}, nil)
	foundExtra := false
	for _, v := range result.Violations {
		if v.Code == schema.CodeRefinementExtraToolCall {
			foundExtra = true
		}
	}
	if !foundExtra {
		t.Fatalf("expected extra-tool-call violation, got %#v", result.Violations)
	}
}

func TestCheckSkeletonRefinement_ExtraSideEffectRequiresExplicitAllow(t *testing.T) {
	baseline := steps("checkout")
	current := steps("checkout", "create_refund")
	sideEffects := map[string]bool{"create_refund": true}
	policy := schema.RefinementPolicy{Mode: "skeleton", AllowExtraTools: []string{"create_refund"}}
	result := CheckSkeletonRefinement(baseline, current, policy, sideEffects)
	foundSideEffect := false
	for _, v := range result.Violations {
		if v.Code == schema.CodeRefinementExtraSideEffectCall {
			foundSideEffect = true
		}
	}
	if !foundSideEffect {
		t.Fatalf("expected extra-side-effect-call violation even though tool is in allow_extra_tools, got %#v", result.Violations)
	}
}

func TestCheckSkeletonRefinement_NewToolNameForbiddenByDefault(t *testing.T) {
	baseline := steps("checkout")
	current := steps("checkout", "brand_new_tool")
	result := CheckSkeletonRefinement(baseline, current, schema.RefinementPolicy{Mode: "skeleton"}, nil)
	foundNewName := false
	for _, v := range result.Violations {
		if v.Code == schema.CodeRefinementNewToolNameForbidden {
			foundNewName = true
		}
	}
	if !foundNewName {
		t.Fatalf("expected new-tool-name-forbidden violation, got %#v", result.Violations)
	}
}

func TestCheckSkeletonRefinement_AllowNewToolNamesSuppressesViolation(t *testing.T) {
	baseline := steps("checkout")
	current := steps("checkout", "brand_new_tool")
	policy := schema.RefinementPolicy{Mode: "skeleton", AllowNewToolNames: true}
	result := CheckSkeletonRefinement(baseline, current, policy, nil)
	for _, v := range result.Violations {
		if v.Code == schema.CodeRefinementNewToolNameForbidden {
			t.Fatalf("did not expect new-tool-name violation when AllowNewToolNames is set: %#v", result.Violations)
		}
	}
}
