package redact

import "testing"

func TestCompileRules_BuiltinsCatchCommonSecretShapes(t *testing.T) {
	rules, err := CompileRules(nil)
	if err != nil {
		t.Fatalf("CompileRules: %v", err)
	}
	out, applied := Text("token is ghp_abcdefghij1234", rules)
	if out != "token is [REDACTED:GITHUB_TOKEN]" {
		t.Fatalf("unexpected redaction: %q", out)
	}
	if len(applied.Names) != 1 || applied.Names[0] != "github-token" {
		t.Fatalf("unexpected applied rules: %#v", applied)
	}
}

func TestCompileRules_CustomRuleWithReplacement(t *testing.T) {
	rules, err := CompileRules([]string{"order-id=ORD-[0-9]+=>[REDACTED:ORDER]"})
	if err != nil {
		t.Fatalf("CompileRules: %v", err)
	}
	out, _ := Text("charge for ORD-99182", rules)
	if out != "charge for [REDACTED:ORDER]" {
		t.Fatalf("unexpected redaction: %q", out)
	}
}

func TestCompileRules_RejectsNonCanonicalID(t *testing.T) {
	_, err := CompileRules([]string{"Order_ID=ORD-[0-9]+"})
	if err == nil {
		t.Fatalf("expected rejection of non-canonical rule id")
	}
}

func TestCompileRules_RejectsDuplicateID(t *testing.T) {
	_, err := CompileRules([]string{"github-token=foo"})
	if err == nil {
		t.Fatalf("expected rejection of id colliding with a builtin rule")
	}
}

func TestCompileRules_RejectsInvalidRegex(t *testing.T) {
	_, err := CompileRules([]string{"bad=ORD-[0-9+"})
	if err == nil {
		t.Fatalf("expected rejection of invalid regex")
	}
}

func TestPayload_RedactsNestedStrings(t *testing.T) {
	rules, _ := CompileRules(nil)
	payload := map[string]any{
		"args": map[string]any{
			"notes": []any{"contact sk-abcdefghij1234567890", "fine"},
		},
	}
	out, applied := Payload(payload, rules)
	nested := out["args"].(map[string]any)["notes"].([]any)
	if nested[0] != "contact [REDACTED:OPENAI_KEY]" {
		t.Fatalf("unexpected redacted nested value: %#v", nested)
	}
	if nested[1] != "fine" {
		t.Fatalf("expected untouched value to survive, got %#v", nested[1])
	}
	if len(applied.Names) != 1 || applied.Names[0] != "openai-key" {
		t.Fatalf("unexpected applied rules: %#v", applied)
	}
}

func TestPayload_LeavesInputUntouched(t *testing.T) {
	rules, _ := CompileRules(nil)
	payload := map[string]any{"secret": "ghp_abcdefghij1234"}
	_, _ = Payload(payload, rules)
	if payload["secret"] != "ghp_abcdefghij1234" {
		t.Fatalf("expected original payload to be left unmodified, got %#v", payload["secret"])
	}
}

func TestContainsPII_DetectsEmailAndPhone(t *testing.T) {
	if !ContainsPII("reach me at a@b.com") {
		t.Fatalf("expected email to be detected")
	}
	if !ContainsPII("call 555-867-5309") {
		t.Fatalf("expected phone number to be detected")
	}
	if ContainsPII("no pii here") {
		t.Fatalf("expected clean text to pass")
	}
}

func TestContainsPII_RecursesIntoNestedValues(t *testing.T) {
	value := map[string]any{"a": []any{map[string]any{"b": "x@y.com"}}}
	if !ContainsPII(value) {
		t.Fatalf("expected nested PII to be detected")
	}
}
