// Package contract evaluates a spec's declarative tool/sequence/network/
// data-leak obligations against a current trace (spec.md §4.5). Unlike
// refinement, contract checking never looks at the baseline: every
// obligation is evaluated against current alone.
package contract

import (
	"fmt"
	"net/url"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/trajectly/trt/internal/schema"
)

var writeToolHints = []string{
	"write", "delete", "remove", "rm", "update", "patch", "save", "create", "insert", "upsert",
}

var (
	emailRe = regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`)
	phoneRe = regexp.MustCompile(`\b(?:\+?1[-.\s]?)?(?:\(?\d{3}\)?[-.\s]?)?\d{3}[-.\s]?\d{4}\b`)
)

func toolNameFromEvent(ev schema.Event) (string, bool) {
	if ev.EventType != "tool_called" {
		return "", false
	}
	name, ok := ev.Payload["tool_name"].(string)
	return name, ok
}

func operationSignature(ev schema.Event) (string, bool) {
	switch ev.EventType {
	case "tool_called":
		if name, ok := ev.Payload["tool_name"].(string); ok {
			return "tool:" + name, true
		}
	case "llm_called":
		provider, okP := ev.Payload["provider"].(string)
		model, okM := ev.Payload["model"].(string)
		if okP && okM {
			return fmt.Sprintf("llm:%s:%s", provider, model), true
		}
	case "agent_step":
		if name, ok := ev.Payload["name"].(string); ok {
			return "step:" + name, true
		}
	}
	return "", false
}

func looksLikeWriteTool(name string) bool {
	normalized := strings.ToLower(strings.TrimSpace(name))
	for _, hint := range writeToolHints {
		if strings.Contains(normalized, hint) {
			return true
		}
	}
	return false
}

func findRequiredSequenceMissing(requirements, operations []string) []string {
	var missing []string
	cursor := 0
	for _, required := range requirements {
		idx := indexFrom(operations, required, cursor)
		if idx < 0 {
			missing = append(missing, required)
			continue
		}
		cursor = idx + 1
	}
	return missing
}

func indexFrom(haystack []string, target string, from int) int {
	for i := from; i < len(haystack); i++ {
		if haystack[i] == target {
			return i
		}
	}
	return -1
}

func indexOf(haystack []string, target string) int {
	return indexFrom(haystack, target, 0)
}

func countOf(haystack []string, target string) int {
	n := 0
	for _, v := range haystack {
		if v == target {
			n++
		}
	}
	return n
}

func extractToolInput(ev schema.Event) map[string]any {
	if input, ok := ev.Payload["input"].(map[string]any); ok {
		return input
	}
	return map[string]any{}
}

func extractToolKwargs(ev schema.Event) map[string]any {
	input := extractToolInput(ev)
	if kwargs, ok := input["kwargs"].(map[string]any); ok {
		return kwargs
	}
	return map[string]any{}
}

func extractToolArgs(ev schema.Event) []any {
	input := extractToolInput(ev)
	if args, ok := input["args"].([]any); ok {
		return args
	}
	return nil
}

func coerceNumber(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case string:
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

func containsPII(value any) bool {
	switch v := value.(type) {
	case string:
		return emailRe.MatchString(v) || phoneRe.MatchString(v)
	case map[string]any:
		for _, item := range v {
			if containsPII(item) {
				return true
			}
		}
	case []any:
		for _, item := range v {
			if containsPII(item) {
				return true
			}
		}
	}
	return false
}

func containsRegex(value any, pattern *regexp.Regexp) bool {
	switch v := value.(type) {
	case string:
		return pattern.MatchString(v)
	case map[string]any:
		for _, item := range v {
			if containsRegex(item, pattern) {
				return true
			}
		}
	case []any:
		for _, item := range v {
			if containsRegex(item, pattern) {
				return true
			}
		}
	}
	return false
}

func extractURLFromEvent(ev schema.Event) (string, bool) {
	kwargs := extractToolKwargs(ev)
	for _, key := range []string{"url", "uri", "endpoint"} {
		if v, ok := kwargs[key].(string); ok {
			if trimmed := strings.TrimSpace(v); trimmed != "" {
				return trimmed, true
			}
		}
	}
	args := extractToolArgs(ev)
	if len(args) > 0 {
		if first, ok := args[0].(string); ok {
			if trimmed := strings.TrimSpace(first); trimmed != "" {
				return trimmed, true
			}
		}
	}
	return "", false
}

func extractDomain(value string) (string, bool) {
	if parsed, err := url.Parse(value); err == nil {
		if host := parsed.Hostname(); host != "" {
			return strings.ToLower(host), true
		}
	}
	if !strings.Contains(value, "://") && !strings.Contains(value, "/") && strings.Contains(value, ".") {
		return strings.ToLower(value), true
	}
	return "", false
}

// Evaluate runs every configured contract obligation against events and
// returns the accumulated violations. Args/schema validation additionally
// uses a JSON Schema validator for fields declared with `schema` sub-blocks,
// while the required_keys / min / max / enum / regex shorthand is evaluated
// directly as in the original field rule table.
func Evaluate(events []schema.Event, contracts schema.Contracts) []*schema.Violation {
	var violations []*schema.Violation

	var toolEvents []int // indices into events
	var toolNames []string
	var operations []string
	for i, ev := range events {
		if ev.EventType == "tool_called" {
			toolEvents = append(toolEvents, i)
			if name, ok := toolNameFromEvent(ev); ok {
				toolNames = append(toolNames, name)
			}
		}
		if sig, ok := operationSignature(ev); ok {
			operations = append(operations, sig)
		}
	}

	denyTools := toSet(contracts.Tools.Deny)
	allowTools := toSet(contracts.Tools.Allow)

	for position, toolName := range toolNames {
		eventIndex := toolEvents[position]
		if denyTools[toolName] {
			violations = append(violations, v(schema.FailureClassContract, schema.CodeContractToolDenied,
				fmt.Sprintf("Contract denied tool call: %s", toolName), eventIndex,
				fmt.Sprintf("$.tool_calls[%d]", position), nil, toolName))
		}
		if len(allowTools) > 0 && !allowTools[toolName] {
			violations = append(violations, v(schema.FailureClassContract, schema.CodeContractToolNotAllowed,
				fmt.Sprintf("Tool call not in contracts.tools.allow: %s", toolName), eventIndex,
				fmt.Sprintf("$.tool_calls[%d]", position), nil, toolName))
		}
		if contracts.SideEffects.DenyWriteTools && looksLikeWriteTool(toolName) {
			violations = append(violations, v(schema.FailureClassContract, schema.CodeContractSideEffectWriteToolDenied,
				fmt.Sprintf("Write-like tool blocked by contracts.side_effects.deny_write_tools: %s", toolName), eventIndex,
				fmt.Sprintf("$.tool_calls[%d]", position), nil, toolName))
		}
	}

	lastEventIndex := len(events) - 1
	if lastEventIndex < 0 {
		lastEventIndex = 0
	}

	if contracts.Tools.MaxCallsTotal != nil && len(toolNames) > *contracts.Tools.MaxCallsTotal {
		violations = append(violations, v(schema.FailureClassContract, schema.CodeContractMaxCallsTotalExceeded,
			fmt.Sprintf("contracts.tools.max_calls_total exceeded (limit=%d, actual=%d)", *contracts.Tools.MaxCallsTotal, len(toolNames)),
			lastEventIndex, "$.tool_calls", *contracts.Tools.MaxCallsTotal, len(toolNames)))
	}

	if len(contracts.Tools.MaxCallsPerTool) > 0 {
		counts := map[string]int{}
		for _, name := range toolNames {
			counts[name]++
		}
		names := make([]string, 0, len(contracts.Tools.MaxCallsPerTool))
		for name := range contracts.Tools.MaxCallsPerTool {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			limit := contracts.Tools.MaxCallsPerTool[name]
			actual := counts[name]
			if actual > limit {
				violations = append(violations, v(schema.FailureClassContract, schema.CodeContractMaxCallsPerToolExceeded,
					fmt.Sprintf("contracts.tools.max_calls_per_tool exceeded for %s (limit=%d, actual=%d)", name, limit, actual),
					lastEventIndex, fmt.Sprintf("$.tool_calls.%s", name), limit, actual))
			}
		}
	}

	for _, missing := range findRequiredSequenceMissing(contracts.Sequence.Require, operations) {
		violations = append(violations, v(schema.FailureClassContract, schema.CodeContractSequenceRequiredMissing,
			fmt.Sprintf("Required sequence operation missing: %s", missing), lastEventIndex, "$.operations", nil, operations))
	}

	forbidSet := toSet(contracts.Sequence.Forbid)
	if len(forbidSet) > 0 {
		for position, op := range operations {
			if forbidSet[op] {
				violations = append(violations, v(schema.FailureClassContract, schema.CodeContractSequenceForbiddenSeen,
					fmt.Sprintf("Forbidden sequence operation observed: %s", op), opEventIndex(events, position),
					fmt.Sprintf("$.operations[%d]", position), nil, op))
			}
		}
	}

	for _, pair := range contracts.Sequence.RequireBefore {
		before, after := pair[0], pair[1]
		beforeIdx := indexOf(operations, before)
		afterIdx := indexOf(operations, after)
		if beforeIdx < 0 || afterIdx < 0 || beforeIdx > afterIdx {
			violations = append(violations, v(schema.FailureClassContract, schema.CodeContractSequenceRequireBeforeViolated,
				fmt.Sprintf("Required order violated: %s before %s", before, after), lastEventIndex, "$.operations", nil, operations))
		}
	}

	for _, required := range contracts.Sequence.Eventually {
		if indexOf(operations, required) < 0 {
			violations = append(violations, v(schema.FailureClassContract, schema.CodeContractSequenceEventuallyMissing,
				fmt.Sprintf("Expected operation missing: %s", required), lastEventIndex, "$.operations", nil, operations))
		}
	}

	neverSet := toSet(contracts.Sequence.Never)
	if len(neverSet) > 0 {
		for position, op := range operations {
			if neverSet[op] {
				violations = append(violations, v(schema.FailureClassContract, schema.CodeContractSequenceNeverSeen,
					fmt.Sprintf("Operation forbidden by `never`: %s", op), opEventIndex(events, position),
					fmt.Sprintf("$.operations[%d]", position), nil, op))
			}
		}
	}

	for _, target := range contracts.Sequence.AtMostOnce {
		count := countOf(operations, target)
		if count > 1 {
			violations = append(violations, v(schema.FailureClassContract, schema.CodeContractSequenceAtMostOnceExceeded,
				fmt.Sprintf("Operation appears more than once: %s", target), lastEventIndex, "$.operations", 1, count))
		}
	}

	for _, idx := range toolEvents {
		ev := events[idx]
		toolName, ok := toolNameFromEvent(ev)
		if !ok {
			continue
		}
		toolSchema, ok := contracts.Tools.Schema[toolName]
		if !ok {
			continue
		}
		violations = append(violations, validateToolSchema(toolName, ev, toolSchema, idx)...)
	}

	violations = append(violations, evaluateNetwork(events, toolEvents, contracts.Network)...)
	violations = append(violations, evaluateDataLeak(events, contracts.DataLeak)...)

	return violations
}

func opEventIndex(events []schema.Event, operationPosition int) int {
	count := -1
	for i, ev := range events {
		if _, ok := operationSignature(ev); ok {
			count++
			if count == operationPosition {
				return i
			}
		}
	}
	return len(events) - 1
}

func v(class schema.FailureClass, code, message string, eventIndex int, path string, expected, actual any) *schema.Violation {
	return &schema.Violation{
		Class:      class,
		Code:       code,
		Message:    message,
		EventIndex: eventIndex,
		Path:       path,
		Expected:   expected,
		Actual:     actual,
	}
}

func toSet(values []string) map[string]bool {
	out := make(map[string]bool, len(values))
	for _, s := range values {
		out[s] = true
	}
	return out
}

func validateToolSchema(toolName string, ev schema.Event, toolSchema schema.ToolSchema, eventIndex int) []*schema.Violation {
	var findings []*schema.Violation
	kwargs := extractToolKwargs(ev)
	args := extractToolArgs(ev)

	merged := make(map[string]any, len(kwargs)+len(args))
	for k, val := range kwargs {
		merged[k] = val
	}
	for i, val := range args {
		merged[fmt.Sprintf("arg_%d", i)] = val
	}

	if len(toolSchema.JSONSchema) > 0 {
		if compiled, err := compileJSONSchema(toolName, toolSchema.JSONSchema); err == nil {
			if err := compiled.Validate(merged); err != nil {
				findings = append(findings, v(schema.FailureClassContract, schema.CodeContractArgsSchemaViolation,
					fmt.Sprintf("Field %s args failed json_schema validation: %s", toolName, err.Error()),
					eventIndex, fmt.Sprintf("$.tool_call.%s.json_schema", toolName), toolSchema.JSONSchema, merged))
			}
		}
	}

	for _, required := range toolSchema.RequiredKeys {
		if _, ok := merged[required]; !ok {
			findings = append(findings, v(schema.FailureClassContract, schema.CodeContractArgsRequiredKeyMissing,
				fmt.Sprintf("Required argument missing for tool %s: %s", toolName, required), eventIndex,
				fmt.Sprintf("$.tool_call.%s.required_keys", toolName), nil, required))
		}
	}

	fieldNames := make([]string, 0, len(toolSchema.Fields))
	for name := range toolSchema.Fields {
		fieldNames = append(fieldNames, name)
	}
	sort.Strings(fieldNames)

	for _, fieldName := range fieldNames {
		rules := toolSchema.Fields[fieldName]
		value, present := merged[fieldName]
		if !present {
			continue
		}
		path := fmt.Sprintf("$.tool_call.%s.fields.%s", toolName, fieldName)

		switch rules.Type {
		case "number":
			numeric, ok := coerceNumber(value)
			if !ok {
				findings = append(findings, v(schema.FailureClassContract, schema.CodeContractArgsTypeViolation,
					fmt.Sprintf("Field %s.%s must be numeric", toolName, fieldName), eventIndex, path, nil, value))
				continue
			}
			if rules.Max != nil && numeric > *rules.Max {
				findings = append(findings, v(schema.FailureClassContract, schema.CodeContractArgsMaxViolation,
					fmt.Sprintf("Field %s.%s exceeds max (%v > %v)", toolName, fieldName, numeric, *rules.Max),
					eventIndex, path, *rules.Max, numeric))
			}
			if rules.Min != nil && numeric < *rules.Min {
				findings = append(findings, v(schema.FailureClassContract, schema.CodeContractArgsMinViolation,
					fmt.Sprintf("Field %s.%s below min (%v < %v)", toolName, fieldName, numeric, *rules.Min),
					eventIndex, path, *rules.Min, numeric))
			}
		case "string":
			text := fmt.Sprintf("%v", value)
			if len(rules.Enum) > 0 {
				allowed := false
				for _, e := range rules.Enum {
					if e == text {
						allowed = true
						break
					}
				}
				if !allowed {
					findings = append(findings, v(schema.FailureClassContract, schema.CodeContractArgsEnumViolation,
						fmt.Sprintf("Field %s.%s not in enum", toolName, fieldName), eventIndex, path, rules.Enum, text))
				}
			}
			if rules.Regex != "" {
				re, err := regexp.Compile(rules.Regex)
				if err == nil && !re.MatchString(text) {
					findings = append(findings, v(schema.FailureClassContract, schema.CodeContractArgsRegexViolation,
						fmt.Sprintf("Field %s.%s does not match regex", toolName, fieldName), eventIndex, path, rules.Regex, text))
				}
			}
		}
	}
	return findings
}

func evaluateNetwork(events []schema.Event, toolEvents []int, network schema.NetworkContract) []*schema.Violation {
	var violations []*schema.Violation

	allowlist := network.Allowlist
	if len(allowlist) == 0 {
		allowlist = network.AllowDomains
	}
	defaultPolicy := strings.ToLower(strings.TrimSpace(network.Default))
	if defaultPolicy == "" {
		defaultPolicy = "deny"
	}

	allowDomains := map[string]bool{}
	for _, d := range allowlist {
		if t := strings.ToLower(strings.TrimSpace(d)); t != "" {
			allowDomains[t] = true
		}
	}

	var networkIndices []int
	for _, idx := range toolEvents {
		name, _ := toolNameFromEvent(events[idx])
		if name == "http_request" || name == "web_search" {
			networkIndices = append(networkIndices, idx)
		}
	}

	for position, idx := range networkIndices {
		ev := events[idx]
		toolName, _ := toolNameFromEvent(ev)
		url, hasURL := extractURLFromEvent(ev)
		var domain string
		var hasDomain bool
		if hasURL {
			domain, hasDomain = extractDomain(url)
		}

		if defaultPolicy == "deny" {
			if !hasDomain {
				violations = append(violations, v(schema.FailureClassContract, schema.CodeContractNetworkDomainDenied,
					fmt.Sprintf("Outbound network call blocked (no domain): %s", toolName), idx,
					fmt.Sprintf("$.tool_calls[%d]", position), sortedSet(allowDomains), url))
				continue
			}
			if !allowDomains[domain] {
				violations = append(violations, v(schema.FailureClassContract, schema.CodeContractNetworkDomainDenied,
					fmt.Sprintf("Network domain denied by contracts.network.allow_domains: %s", domain), idx,
					fmt.Sprintf("$.tool_calls[%d]", position), sortedSet(allowDomains), domain))
				continue
			}
		} else if len(allowDomains) > 0 && hasDomain && !allowDomains[domain] {
			violations = append(violations, v(schema.FailureClassContract, schema.CodeContractNetworkDomainDenied,
				fmt.Sprintf("Network domain not in allowlist: %s", domain), idx,
				fmt.Sprintf("$.tool_calls[%d]", position), sortedSet(allowDomains), domain))
		}
	}

	if len(allowlist) > 0 {
		for i := len(events) - 1; i >= 0; i-- {
			if events[i].EventType != "run_finished" {
				continue
			}
			stderrTail, ok := events[i].Payload["stderr_tail"].(string)
			if ok && strings.Contains(stderrTail, "Trajectly replay mode blocks network access") {
				violations = append(violations, v(schema.FailureClassContract, schema.CodeContractNetworkAllowlistBlocked,
					"Network call was blocked during replay and did not match contracts.network.allowlist",
					i, "$.run_finished.stderr_tail", nil, stderrTail))
			}
			break
		}
	}

	return violations
}

func sortedSet(set map[string]bool) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

var eventKindMap = map[string]string{
	"TOOL_CALL":   "tool_called",
	"LLM_REQUEST": "llm_called",
}

func evaluateDataLeak(events []schema.Event, dataLeak schema.DataLeakContract) []*schema.Violation {
	var violations []*schema.Violation

	var eligible []int
	outboundKinds := toSet(dataLeak.OutboundKinds)
	kinds := make([]string, 0, len(outboundKinds))
	for k := range outboundKinds {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	for _, kind := range kinds {
		eventType, ok := eventKindMap[kind]
		if !ok {
			continue
		}
		for i, ev := range events {
			if ev.EventType == eventType {
				eligible = append(eligible, i)
			}
		}
	}

	if dataLeak.DenyPIIOutbound {
		for _, idx := range eligible {
			if containsPII(events[idx].Payload) {
				violations = append(violations, v(schema.FailureClassContract, schema.CodeContractDataLeakPIIOutbound,
					fmt.Sprintf("PII detected in outbound payload for %s", events[idx].EventType), idx,
					"$.payload", nil, events[idx].Payload))
				break
			}
		}
	}

	for _, pattern := range dataLeak.SecretPatterns {
		re, err := regexp.Compile(pattern)
		if err != nil {
			continue
		}
		for _, idx := range eligible {
			if containsRegex(events[idx].Payload, re) {
				violations = append(violations, v(schema.FailureClassContract, schema.CodeContractDataLeakSecretPattern,
					fmt.Sprintf("Secret pattern detected in outbound payload for %s", events[idx].EventType), idx,
					"$.payload", pattern, events[idx].Payload))
				break
			}
		}
	}

	return violations
}

// compileJSONSchema compiles a tool's declared json_schema document (for
// args shapes richer than the required_keys/fields shorthand above) into a
// validator, called from validateToolSchema for every tool call that
// declares one.
func compileJSONSchema(name string, document map[string]any) (*jsonschema.Schema, error) {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(name, document); err != nil {
		return nil, fmt.Errorf("contract: add schema resource %s: %w", name, err)
	}
	return compiler.Compile(name)
}
