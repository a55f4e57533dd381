// Package redact applies a spec's configured redaction rules to an event
// payload, plus a built-in PII scan. The contract evaluator's data-leak
// checks use their own PII matching and do not import this package.
package redact

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/trajectly/trt/internal/ids"
)

// Rule is one configured redaction rule: a regex and the replacement text
// to substitute in its place.
type Rule struct {
	ID          string
	Regex       string
	Replacement string

	compiled *regexp.Regexp
}

// builtinRules ship active regardless of what a spec configures: they
// catch the two most common secret shapes a transcript can leak.
var builtinRules = []Rule{
	{ID: "github-token", Regex: `\bghp_[A-Za-z0-9]{10,}\b`, Replacement: "[REDACTED:GITHUB_TOKEN]"},
	{ID: "openai-key", Regex: `\bsk-[A-Za-z0-9]{10,}\b`, Replacement: "[REDACTED:OPENAI_KEY]"},
}

const (
	maxRules          = 128
	maxRegexLength    = 4096
	maxReplacementLen = 256
)

// CompileRules validates and compiles a spec's redact list (spec.md's
// `redact` field: a list of "id=regex" or "id=regex=>replacement" entries)
// together with the built-in rules, modeled on the teacher's
// ValidateRedactionRules caps (rule count, regex/replacement length,
// canonical kebab-case ids).
func CompileRules(extra []string) ([]Rule, error) {
	rules := append([]Rule(nil), builtinRules...)
	for _, raw := range extra {
		rule, err := parseRule(raw)
		if err != nil {
			return nil, err
		}
		rules = append(rules, rule)
	}
	if len(rules) > maxRules {
		return nil, fmt.Errorf("redact: too many redaction rules (max %d)", maxRules)
	}

	seen := map[string]bool{}
	for i := range rules {
		r := &rules[i]
		id := strings.TrimSpace(r.ID)
		if id == "" {
			return nil, fmt.Errorf("redact: rule id is missing")
		}
		if ids.SanitizeComponent(id) != id {
			return nil, fmt.Errorf("redact: rule id %q is not canonical (use lowercase kebab-case)", id)
		}
		if seen[id] {
			return nil, fmt.Errorf("redact: duplicate rule id %q", id)
		}
		seen[id] = true

		re := strings.TrimSpace(r.Regex)
		if re == "" {
			return nil, fmt.Errorf("redact: rule %q regex is missing", id)
		}
		if len(re) > maxRegexLength {
			return nil, fmt.Errorf("redact: rule %q regex too long", id)
		}
		compiled, err := regexp.Compile(re)
		if err != nil {
			return nil, fmt.Errorf("redact: rule %q regex invalid: %w", id, err)
		}
		r.Regex = re
		r.compiled = compiled

		if r.Replacement == "" {
			r.Replacement = fmt.Sprintf("[REDACTED:%s]", strings.ToUpper(strings.ReplaceAll(id, "-", "_")))
		}
		if len(r.Replacement) > maxReplacementLen {
			return nil, fmt.Errorf("redact: rule %q replacement too long", id)
		}
	}

	sort.Slice(rules, func(i, j int) bool { return rules[i].ID < rules[j].ID })
	return rules, nil
}

// parseRule parses one spec.md `redact` entry: "id=regex" or
// "id=regex=>replacement".
func parseRule(raw string) (Rule, error) {
	idAndRest := strings.SplitN(raw, "=", 2)
	if len(idAndRest) != 2 {
		return Rule{}, fmt.Errorf("redact: malformed rule %q, want id=regex", raw)
	}
	id := strings.TrimSpace(idAndRest[0])
	rest := idAndRest[1]

	regex, replacement := rest, ""
	if idx := strings.Index(rest, "=>"); idx >= 0 {
		regex = rest[:idx]
		replacement = rest[idx+2:]
	}
	return Rule{ID: id, Regex: strings.TrimSpace(regex), Replacement: strings.TrimSpace(replacement)}, nil
}

// Applied names the rules that fired while redacting a value.
type Applied struct {
	Names []string
}

// Text applies rules to s in rule-id order, returning the redacted string
// and which rule ids fired.
func Text(s string, rules []Rule) (string, Applied) {
	var applied Applied
	out := s
	for _, r := range rules {
		if r.compiled == nil {
			continue
		}
		if r.compiled.MatchString(out) {
			out = r.compiled.ReplaceAllString(out, r.Replacement)
			applied.Names = append(applied.Names, r.ID)
		}
	}
	return out, applied
}

// Payload recursively applies rules to every string leaf of a payload map,
// returning a new map (the input is left untouched) and the union of rule
// ids that fired anywhere in it.
func Payload(payload map[string]any, rules []Rule) (map[string]any, Applied) {
	var applied Applied
	out := make(map[string]any, len(payload))
	for k, v := range payload {
		redactedValue, a := redactValue(v, rules)
		out[k] = redactedValue
		applied.Names = append(applied.Names, a.Names...)
	}
	applied.Names = dedupeSorted(applied.Names)
	return out, applied
}

func redactValue(value any, rules []Rule) (any, Applied) {
	switch v := value.(type) {
	case string:
		redacted, applied := Text(v, rules)
		return redacted, applied
	case map[string]any:
		return Payload(v, rules)
	case []any:
		var applied Applied
		out := make([]any, len(v))
		for i, item := range v {
			redactedItem, a := redactValue(item, rules)
			out[i] = redactedItem
			applied.Names = append(applied.Names, a.Names...)
		}
		return out, applied
	default:
		return value, Applied{}
	}
}

func dedupeSorted(names []string) []string {
	if len(names) == 0 {
		return nil
	}
	seen := map[string]bool{}
	var out []string
	for _, n := range names {
		if !seen[n] {
			seen[n] = true
			out = append(out, n)
		}
	}
	sort.Strings(out)
	return out
}
