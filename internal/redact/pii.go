package redact

import "regexp"

var (
	emailRe = regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`)
	phoneRe = regexp.MustCompile(`\b(?:\+?1[-.\s]?)?(?:\(?\d{3}\)?[-.\s]?)?\d{3}[-.\s]?\d{4}\b`)
)

// ContainsPII reports whether value (recursively, for maps/slices) has any
// string leaf matching the email or phone shape.
func ContainsPII(value any) bool {
	switch v := value.(type) {
	case string:
		return emailRe.MatchString(v) || phoneRe.MatchString(v)
	case map[string]any:
		for _, item := range v {
			if ContainsPII(item) {
				return true
			}
		}
	case []any:
		for _, item := range v {
			if ContainsPII(item) {
				return true
			}
		}
	}
	return false
}
