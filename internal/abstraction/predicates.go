package abstraction

import (
	"net/url"
	"regexp"
	"sort"
	"strings"
)

var (
	emailRe = regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`)
	phoneRe = regexp.MustCompile(`\b(?:\+?1[-.\s]?)?(?:\(?\d{3}\)?[-.\s]?)?\d{3}[-.\s]?\d{4}\b`)
	urlRe   = regexp.MustCompile(`https?://[^\s)]+`)
)

// walkStrings yields every string leaf reachable from value, walking
// map[string]any and []any the same way the abstraction pipeline's payloads
// are shaped after JSON decoding.
func walkStrings(value any, yield func(string)) {
	switch v := value.(type) {
	case string:
		yield(v)
	case map[string]any:
		for _, item := range v {
			walkStrings(item, yield)
		}
	case []any:
		for _, item := range v {
			walkStrings(item, yield)
		}
	}
}

func containsEmail(value any) bool {
	found := false
	walkStrings(value, func(s string) {
		if !found && emailRe.MatchString(s) {
			found = true
		}
	})
	return found
}

func containsPhone(value any) bool {
	found := false
	walkStrings(value, func(s string) {
		if !found && phoneRe.MatchString(s) {
			found = true
		}
	})
	return found
}

func extractDomains(value any) []string {
	domains := map[string]bool{}
	walkStrings(value, func(s string) {
		candidates := append([]string{s}, urlRe.FindAllString(s, -1)...)
		for _, candidate := range candidates {
			parsed, err := url.Parse(candidate)
			if err != nil {
				continue
			}
			host := parsed.Hostname()
			if host != "" {
				domains[strings.ToLower(host)] = true
			}
		}
	})
	out := make([]string, 0, len(domains))
	for d := range domains {
		out = append(out, d)
	}
	sort.Strings(out)
	return out
}

func extractNumericValues(value any) []float64 {
	var numbers []float64
	switch v := value.(type) {
	case float64:
		numbers = append(numbers, v)
	case int:
		numbers = append(numbers, float64(v))
	case int64:
		numbers = append(numbers, float64(v))
	case map[string]any:
		for _, item := range v {
			numbers = append(numbers, extractNumericValues(item)...)
		}
	case []any:
		for _, item := range v {
			numbers = append(numbers, extractNumericValues(item)...)
		}
	}
	return numbers
}
