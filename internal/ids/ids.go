// Package ids generates and validates the opaque identifiers TRT attaches
// to runs, fixtures, and reports.
package ids

import (
	"crypto/rand"
	"encoding/hex"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	reInvalid = regexp.MustCompile(`[^a-z0-9-]+`)
	reDashes  = regexp.MustCompile(`-+`)
	reRunID   = regexp.MustCompile(`^[0-9]{8}-[0-9]{6}Z-[0-9a-f]{6}$`)
)

// NewRunID mints a baseline/current run id: YYYYMMDD-HHMMSSZ-<hex6>. Sorting
// lexically sorts chronologically.
func NewRunID(now time.Time) (string, error) {
	prefix := now.UTC().Format("20060102-150405Z")

	var b [3]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "", err
	}
	return prefix + "-" + hex.EncodeToString(b[:]), nil
}

// IsValidRunID reports whether s has the NewRunID shape. Used when
// accepting a run id from a CLI flag or report file rather than minting
// one.
func IsValidRunID(s string) bool {
	return reRunID.MatchString(strings.TrimSpace(s))
}

// SanitizeComponent normalizes a spec name or tool name into a safe
// filesystem path component: lowercase, [a-z0-9-], collapsed dashes.
func SanitizeComponent(s string) string {
	v := strings.ToLower(strings.TrimSpace(s))
	v = strings.ReplaceAll(v, "_", "-")
	v = reInvalid.ReplaceAllString(v, "-")
	v = reDashes.ReplaceAllString(v, "-")
	v = strings.Trim(v, "-")
	return v
}

// NewUUID mints a random, standards-conformant RFC 4122 v4 UUID, independent
// of any replay's determinism profile (internal/sandbox owns the
// *deterministic* in-replay UUID derivation).
func NewUUID() string {
	return uuid.NewString()
}
