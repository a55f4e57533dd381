// Package abstraction builds the abstract trace (token stream + predicate
// bag) that refinement and contract checking operate over, rather than raw
// events (spec.md §4.3).
package abstraction

import (
	"fmt"
	"sort"
	"strings"

	"github.com/trajectly/trt/internal/schema"
)

// TokenKind is the fixed set of token kinds the event-to-token case table
// can produce.
type TokenKind string

const (
	TokenCall        TokenKind = "CALL"
	TokenResult      TokenKind = "RESULT"
	TokenLLMRequest  TokenKind = "LLM_REQUEST"
	TokenLLMResponse TokenKind = "LLM_RESPONSE"
	TokenMessage     TokenKind = "MESSAGE"
	TokenObservation TokenKind = "OBSERVATION"
)

// Token is one abstracted event: its originating index, fixed kind, stable
// name (tool name, "provider:model", or step name), and the event's payload.
type Token struct {
	EventIndex int
	Kind       TokenKind
	Name       string
	Payload    map[string]any
}

// Predicates is the fixed-shape predicate bag accumulated over a trace's
// tokens.
type Predicates struct {
	ToolCallsTotal   int            `json:"tool_calls_total"`
	ToolCallsByName  map[string]int `json:"tool_calls_by_name"`
	Domains          []string       `json:"domains"`
	PIIEmail         bool           `json:"-"`
	PIIPhone         bool           `json:"-"`
	MaxNumericValue  *float64       `json:"max_numeric_value"`
	RefundCount      int            `json:"refund_count"`
}

// PII renders the pii sub-object the way the report schema expects.
func (p Predicates) PII() map[string]bool {
	return map[string]bool{"email": p.PIIEmail, "phone": p.PIIPhone}
}

// AbstractTrace is the output of BuildAbstractTrace: a token stream in event
// order plus the derived predicate bag.
type AbstractTrace struct {
	Tokens     []Token
	Predicates Predicates
}

// tokenFromEvent maps one concrete event to at most one token, per the fixed
// case table (spec.md §4.3). Events outside the table (llm intermediate
// chunks, unknown types) contribute no token.
func tokenFromEvent(ev schema.Event, index int, ignoreCallTools map[string]bool) *Token {
	payload := ev.Payload
	switch ev.EventType {
	case "tool_called":
		name := stringField(payload, "tool_name", "unknown")
		if ignoreCallTools[name] {
			return nil
		}
		return &Token{EventIndex: index, Kind: TokenCall, Name: name, Payload: payload}
	case "tool_returned":
		name := stringField(payload, "tool_name", "unknown")
		return &Token{EventIndex: index, Kind: TokenResult, Name: name, Payload: payload}
	case "llm_called":
		name := fmt.Sprintf("%s:%s", stringField(payload, "provider", "unknown"), stringField(payload, "model", "unknown"))
		return &Token{EventIndex: index, Kind: TokenLLMRequest, Name: name, Payload: payload}
	case "llm_returned":
		name := fmt.Sprintf("%s:%s", stringField(payload, "provider", "unknown"), stringField(payload, "model", "unknown"))
		return &Token{EventIndex: index, Kind: TokenLLMResponse, Name: name, Payload: payload}
	case "agent_step":
		name := stringField(payload, "name", "step")
		return &Token{EventIndex: index, Kind: TokenMessage, Name: name, Payload: payload}
	case "run_finished":
		return &Token{EventIndex: index, Kind: TokenObservation, Name: "run_finished", Payload: payload}
	default:
		return nil
	}
}

func stringField(payload map[string]any, key, fallback string) string {
	if v, ok := payload[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return fallback
}

// BuildAbstractTrace runs the deterministic abstraction pipeline over
// events: a single pass producing the token stream, followed by a single
// pass accumulating predicates.
func BuildAbstractTrace(events []schema.Event, cfg schema.AbstractionConfig) AbstractTrace {
	ignoreCallTools := map[string]bool{}
	for _, t := range cfg.IgnoreCallTools {
		ignoreCallTools[t] = true
	}

	var tokens []Token
	for i, ev := range events {
		if tok := tokenFromEvent(ev, i, ignoreCallTools); tok != nil {
			tokens = append(tokens, *tok)
		}
	}

	enablePII := cfg.EnablePIIDetection == nil || *cfg.EnablePIIDetection
	enableDomains := cfg.EnableDomainExtraction == nil || *cfg.EnableDomainExtraction
	enableNumeric := cfg.EnableNumericExtraction == nil || *cfg.EnableNumericExtraction

	toolCounts := map[string]int{}
	domains := map[string]bool{}
	var numericValues []float64
	hasEmail, hasPhone := false, false
	refundCount := 0
	toolCallsTotal := 0

	for _, tok := range tokens {
		if tok.Kind == TokenCall {
			toolCallsTotal++
			toolCounts[tok.Name]++
			if strings.Contains(strings.ToLower(tok.Name), "refund") {
				refundCount++
			}
		}
		if enableDomains {
			for _, d := range extractDomains(tok.Payload) {
				domains[d] = true
			}
		}
		if enableNumeric {
			numericValues = append(numericValues, extractNumericValues(tok.Payload)...)
		}
		if enablePII {
			hasEmail = hasEmail || containsEmail(tok.Payload)
			hasPhone = hasPhone || containsPhone(tok.Payload)
		}
	}

	sortedDomains := make([]string, 0, len(domains))
	for d := range domains {
		sortedDomains = append(sortedDomains, d)
	}
	sort.Strings(sortedDomains)

	var maxNumeric *float64
	for _, v := range numericValues {
		v := v
		if maxNumeric == nil || v > *maxNumeric {
			maxNumeric = &v
		}
	}

	return AbstractTrace{
		Tokens: tokens,
		Predicates: Predicates{
			ToolCallsTotal:  toolCallsTotal,
			ToolCallsByName: toolCounts,
			Domains:         sortedDomains,
			PIIEmail:        hasEmail,
			PIIPhone:        hasPhone,
			MaxNumericValue: maxNumeric,
			RefundCount:     refundCount,
		},
	}
}
