// Package canonical produces the stable, byte-exact JSON representation TRT
// hashes for content comparison and fixture lookup. Two semantically equal
// payloads must normalize to identical bytes regardless of map insertion
// order, float formatting, or embedded NaN/Inf values.
package canonical

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"math"
	"sort"
	"strconv"
)

// DefaultVolatileKeys are envelope fields that vary run-to-run and must not
// participate in content hashing or refinement comparison.
var DefaultVolatileKeys = map[string]bool{
	"timestamp":  true,
	"run_id":     true,
	"request_id": true,
	"event_id":   true,
	"rel_ms":     true,
	"created_at": true,
	"updated_at": true,
}

const floatPrecision = 12

// StripVolatile recursively normalizes value and removes any map key present
// in volatileKeys. Map keys are sorted lexically; floats are rounded to a
// fixed precision and NaN/Inf are mapped to sentinel strings so the result is
// always JSON-encodable.
func StripVolatile(value any, volatileKeys map[string]bool) any {
	return normalize(value, volatileKeys)
}

// Normalize recursively normalizes value without stripping any keys: map
// keys are sorted and floats are rounded, but nothing is removed.
func Normalize(value any) any {
	return normalize(value, nil)
}

func normalize(value any, volatileKeys map[string]bool) any {
	switch v := value.(type) {
	case map[string]any:
		keys := make([]string, 0, len(v))
		for k := range v {
			if volatileKeys != nil && volatileKeys[k] {
				continue
			}
			keys = append(keys, k)
		}
		sort.Strings(keys)
		out := make(map[string]any, len(keys))
		for _, k := range keys {
			out[k] = normalize(v[k], volatileKeys)
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = normalize(item, volatileKeys)
		}
		return out
	case float64:
		return normalizeFloat(v)
	case float32:
		return normalizeFloat(float64(v))
	case nil, string, bool:
		return v
	case int, int64, int32:
		return v
	default:
		return v
	}
}

func normalizeFloat(f float64) any {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "Infinity"
	case math.IsInf(f, -1):
		return "-Infinity"
	default:
		scale := math.Pow(10, floatPrecision)
		return math.Round(f*scale) / scale
	}
}

// Dumps renders value as canonical JSON: sorted keys, no whitespace, and
// HTML escaping disabled. Callers normalize (via StripVolatile or Normalize)
// before calling Dumps; Dumps itself does not re-sort nested maps beyond
// what encoding/json already guarantees for map[string]any.
func Dumps(value any) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(value); err != nil {
		return "", err
	}
	b := bytes.TrimRight(buf.Bytes(), "\n")
	return string(b), nil
}

// SHA256 hashes the canonical JSON form of value. When stripVolatile is true
// the default volatile keys are removed before hashing.
func SHA256(value any, stripVolatile bool) (string, error) {
	var normalized any
	if stripVolatile {
		normalized = StripVolatile(value, DefaultVolatileKeys)
	} else {
		normalized = Normalize(value)
	}
	text, err := Dumps(normalized)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:]), nil
}

// SHA256Subset hashes value after removing ignoredKeys, without volatile
// stripping. Used for event-id derivation (event.ComputeEventID), where the
// caller already knows exactly which envelope keys to exclude.
func SHA256Subset(value map[string]any, ignoredKeys map[string]bool) (string, error) {
	subset := make(map[string]any, len(value))
	for k, v := range value {
		if ignoredKeys != nil && ignoredKeys[k] {
			continue
		}
		subset[k] = v
	}
	return SHA256(subset, false)
}

// FormatFloat renders f in its shortest round-tripping form, for a string
// form outside of full JSON encoding. Integral values carry no trailing
// ".0" (100.0 renders as "100"), unlike Python's json.dumps.
func FormatFloat(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}
