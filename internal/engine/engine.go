// Package engine composes abstraction, contract evaluation, skeleton
// refinement, and witness resolution into the single TRT decision
// procedure: EvaluateTRT (spec.md §4.9).
//
// Soundness: EvaluateTRT returns PASS only when zero violations were
// collected from any checker. Determinism: for fixed inputs the verdict,
// witness index, and violation list are identical across invocations —
// no randomness, no map-iteration-order dependency.
package engine

import (
	"fmt"
	"sort"

	"github.com/trajectly/trt/internal/abstraction"
	"github.com/trajectly/trt/internal/contract"
	"github.com/trajectly/trt/internal/refinement"
	"github.com/trajectly/trt/internal/schema"
	"github.com/trajectly/trt/internal/witness"
)

// Result is the full outcome of EvaluateTRT: the on-disk report plus the
// intermediate values callers (cmd/trt, the shrinker) need without
// recomputing them.
type Result struct {
	Report             *schema.Report
	AbstractBaseline   abstraction.AbstractTrace
	AbstractCurrent    abstraction.AbstractTrace
	RefinementVacuous  bool
}

// fixtureExhaustedViolations scans current for tool_returned/llm_returned
// events whose payload carries error_code=FIXTURE_EXHAUSTED and lifts each
// into a CONTRACT-class violation, per spec.md §4.9 step 4. A trace
// recorded offline against a fixture store that ran dry fails the run the
// same way an explicit contract obligation would.
func fixtureExhaustedViolations(current []schema.Event) []*schema.Violation {
	var violations []*schema.Violation
	for index, ev := range current {
		if ev.EventType != "tool_returned" && ev.EventType != "llm_returned" {
			continue
		}
		code, _ := ev.Payload["error_code"].(string)
		if code != schema.CodeFixtureExhausted {
			continue
		}
		message := "Replay fixture exhausted"
		if raw, ok := ev.Payload["error"].(string); ok && raw != "" {
			message = raw
		}
		var details map[string]any
		if d, ok := ev.Payload["error_details"].(map[string]any); ok {
			details = d
		}
		violations = append(violations, &schema.Violation{
			Class:      schema.FailureClassContract,
			Code:       schema.CodeFixtureExhausted,
			Message:    message,
			EventIndex: index,
			Details:    details,
		})
	}
	return violations
}

// CheckNormalizerVersions checks the NORMALIZER_VERSION_MISMATCH tooling
// obligation (spec.md §4.1): baseline and current trace metadata must
// carry the same normalizer version, or the comparison is meaningless and
// re-recording is the only remedy. Callers run this before EvaluateTRT,
// against the metadata sidecar each trace file carries, and short-circuit
// to a TOOLING-class failing report on mismatch rather than running the
// rest of the pipeline against traces that cannot be compared.
func CheckNormalizerVersions(baselineMeta, currentMeta schema.TraceMeta) *schema.Violation {
	if baselineMeta.NormalizerVersion == "" || currentMeta.NormalizerVersion == "" {
		return nil
	}
	if baselineMeta.NormalizerVersion == currentMeta.NormalizerVersion {
		return nil
	}
	return &schema.Violation{
		Class:      schema.FailureClassTooling,
		Code:       schema.CodeNormalizerVersionMismatch,
		Message:    fmt.Sprintf("baseline was normalized with version %s, current with %s", baselineMeta.NormalizerVersion, currentMeta.NormalizerVersion),
		EventIndex: 0,
		Expected:   baselineMeta.NormalizerVersion,
		Actual:     currentMeta.NormalizerVersion,
	}
}

// sortViolations orders a violation list deterministically: by event
// index, then failure-class rank, then code. Map iteration never drives
// violation order; every contributor already appends in a fixed sequence,
// but the composed list still needs one final deterministic sort because
// contract, fixture-exhausted, and refinement violations are appended in
// that category order rather than event order.
func sortViolations(violations []*schema.Violation) {
	sort.SliceStable(violations, func(i, j int) bool {
		if violations[i].EventIndex != violations[j].EventIndex {
			return violations[i].EventIndex < violations[j].EventIndex
		}
		ri, rj := schema.ClassRank(violations[i].Class), schema.ClassRank(violations[j].Class)
		if ri != rj {
			return ri < rj
		}
		return violations[i].Code < violations[j].Code
	})
}

// sideEffectToolSet returns the built-in v1 side-effect tool registry as a
// set.
func sideEffectToolSet() map[string]bool {
	out := make(map[string]bool, len(schema.SideEffectToolRegistryV1))
	for _, name := range schema.SideEffectToolRegistryV1 {
		out[name] = true
	}
	return out
}

func ignoreCallToolSet(names []string) map[string]bool {
	out := make(map[string]bool, len(names))
	for _, n := range names {
		out[n] = true
	}
	return out
}

// EvaluateTRT is the TRT decision procedure: it composes abstraction,
// contract evaluation, skeleton refinement, and witness resolution over a
// baseline and current trace under one spec, and returns PASS iff no
// checker produced a violation (spec.md §4.9).
func EvaluateTRT(baseline, current []schema.Event, spec schema.Spec) (*Result, error) {
	ignoreTools := ignoreCallToolSet(spec.Abstraction.IgnoreCallTools)

	baselineAbs := abstraction.BuildAbstractTrace(baseline, spec.Abstraction)
	currentAbs := abstraction.BuildAbstractTrace(current, spec.Abstraction)

	var violations []*schema.Violation

	violations = append(violations, contract.Evaluate(current, spec.Contracts)...)
	violations = append(violations, fixtureExhaustedViolations(current)...)

	baselineSteps := refinement.ExtractCallSkeleton(baselineAbs, ignoreTools)
	currentSteps := refinement.ExtractCallSkeleton(currentAbs, ignoreTools)
	refinementResult := refinement.CheckSkeletonRefinement(baselineSteps, currentSteps, spec.Refinement, sideEffectToolSet())
	violations = append(violations, refinementResult.Violations...)

	sortViolations(violations)

	verdict := "PASS"
	var w *schema.Witness
	if len(violations) > 0 {
		verdict = "FAIL"
		w = witness.Resolve(violations)
		if w.EventIndex != minEventIndex(violations) {
			return nil, fmt.Errorf("engine: witness minimality invariant violated")
		}
	}
	if (verdict == "PASS") != (len(violations) == 0) {
		return nil, fmt.Errorf("engine: soundness invariant violated")
	}

	report := &schema.Report{
		SchemaVersion: schema.ReportSchemaVersion,
		SpecName:      spec.Name,
		Verdict:       verdict,
		Violations:    violations,
		Witness:       w,
		Metadata: schema.ReportMetadata{
			ReportSchemaVersion:       schema.ReportSchemaVersion,
			NormalizerVersion:         schema.NormalizerVersion,
			SideEffectRegistryVersion: schema.SideEffectRegistryV1,
		},
	}

	return &Result{
		Report:            report,
		AbstractBaseline:  baselineAbs,
		AbstractCurrent:   currentAbs,
		RefinementVacuous: refinementResult.Vacuous,
	}, nil
}

func minEventIndex(violations []*schema.Violation) int {
	min := violations[0].EventIndex
	for _, v := range violations[1:] {
		if v.EventIndex < min {
			min = v.EventIndex
		}
	}
	return min
}
