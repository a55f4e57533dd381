package fixture

import (
	"fmt"

	"github.com/trajectly/trt/internal/canonical"
	"github.com/trajectly/trt/internal/schema"
)

// LookupError is raised by Matcher.Match when a by_index strict-mode input
// hash disagrees with the recorded fixture.
type LookupError struct {
	Message string
}

func (e *LookupError) Error() string { return e.Message }

// ExhaustedError is raised when a key's fixture entries have all been
// consumed but another call for that key arrives (spec.md §7 FIXTURE_EXHAUSTED).
type ExhaustedError struct {
	Kind               string
	Name               string
	ExpectedSignature  string
	ConsumedCount      int
	AvailableCount     int
}

func (e *ExhaustedError) Error() string {
	contextKey := "tool_name"
	if e.Kind != "tool" {
		contextKey = "llm_signature"
	}
	return fmt.Sprintf("FIXTURE_EXHAUSTED: %s=%s expected_signature=%s consumed_count=%d available_count=%d",
		contextKey, e.Name, e.ExpectedSignature, e.ConsumedCount, e.AvailableCount)
}

// ToPayload renders the structured FIXTURE_EXHAUSTED payload (spec.md §7).
func (e *ExhaustedError) ToPayload() map[string]any {
	contextKey := "tool_name"
	if e.Kind != "tool" {
		contextKey = "llm_signature"
	}
	return map[string]any{
		"code":                schema.CodeFixtureExhausted,
		"failure_class":       string(schema.FailureClassContract),
		"expected_signature":  e.ExpectedSignature,
		"consumed_count":      e.ConsumedCount,
		"available_count":     e.AvailableCount,
		contextKey:            e.Name,
	}
}

// Matcher serves fixture entries to a replaying agent, either by the order
// they were recorded (by_index) or by a content match against the recorded
// input (by_hash).
type Matcher struct {
	policy         string
	strict         bool
	entriesByKey   map[string][]schema.FixtureEntry
	indexCursor    map[string]int
	usedHashSlots  map[string]map[int]bool
}

// NewMatcher builds a Matcher over store using the given fixture_policy
// ("by_index" or "by_hash") and strict-hash-check setting.
func NewMatcher(store schema.FixtureStoreFile, policy string, strict bool) *Matcher {
	return &Matcher{
		policy:        policy,
		strict:        strict,
		entriesByKey:  store.Entries,
		indexCursor:   map[string]int{},
		usedHashSlots: map[string]map[int]bool{},
	}
}

func key(kind, name string) string { return kind + ":" + name }

// Match returns the fixture entry for the next call to (kind, name) with the
// given input payload, or nil if no fixture exists for that key at all
// (under by_hash, also nil when no entry for the key has the request's
// hash). It returns *ExhaustedError when the candidate entries (all entries
// for the key under by_index, those with a matching hash under by_hash) are
// all consumed, and *LookupError when strict by_index hash verification
// fails.
func (m *Matcher) Match(kind, name string, input map[string]any) (*schema.FixtureEntry, error) {
	k := key(kind, name)
	entries := m.entriesByKey[k]
	requestHash, err := canonical.SHA256(input, false)
	if err != nil {
		return nil, fmt.Errorf("fixture: hash request: %w", err)
	}

	if m.policy == "by_index" {
		idx := m.indexCursor[k]
		if idx >= len(entries) {
			if len(entries) > 0 {
				return nil, &ExhaustedError{
					Kind: kind, Name: name, ExpectedSignature: requestHash,
					ConsumedCount: idx, AvailableCount: len(entries),
				}
			}
			return nil, nil
		}
		candidate := entries[idx]
		m.indexCursor[k] = idx + 1
		if m.strict && candidate.InputHash != requestHash {
			return nil, &LookupError{Message: fmt.Sprintf(
				"by_index mismatch for %s:%s; expected hash %s, got %s", kind, name, candidate.InputHash, requestHash)}
		}
		return &candidate, nil
	}

	var matchingIndices []int
	for idx, candidate := range entries {
		if candidate.InputHash != requestHash {
			continue
		}
		matchingIndices = append(matchingIndices, idx)
		if m.usedHashSlots[k] == nil {
			m.usedHashSlots[k] = map[int]bool{}
		}
		if m.usedHashSlots[k][idx] {
			continue
		}
		m.usedHashSlots[k][idx] = true
		return &candidate, nil
	}
	if len(matchingIndices) > 0 {
		consumed := 0
		for _, idx := range matchingIndices {
			if m.usedHashSlots[k][idx] {
				consumed++
			}
		}
		return nil, &ExhaustedError{
			Kind: kind, Name: name, ExpectedSignature: requestHash,
			ConsumedCount: consumed, AvailableCount: len(matchingIndices),
		}
	}
	return nil, nil
}
