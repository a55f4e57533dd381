// Package sandbox enforces the determinism profile a spec declares for
// replay: a frozen clock, seeded randomness (including UUID re-derivation),
// and filesystem/subprocess allow-lists (spec.md §4.7).
//
// The agent under test runs as a separate OS process, so unlike an
// in-process interpreter hook this package cannot monkeypatch the agent's
// own clock/random/filesystem calls. Runtime instead serves two purposes:
// its methods make the determinism decisions themselves (deriving replay
// UUIDs, deciding whether a path or command is in-bounds), and it renders
// the profile into the environment passed to the agent subprocess so a
// language-appropriate agent-side shim can enforce the same rules
// in-process.
package sandbox

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math/rand"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/trajectly/trt/internal/schema"
)

// Violation mirrors DeterminismViolationError: a structured tooling failure
// with expected/actual values and content hashes for stable comparison.
type Violation struct {
	Code          string
	Message       string
	Expected      any
	Actual        any
	SuggestedFix  string
	PayloadDiff   map[string]any
}

func (v *Violation) Error() string {
	return fmt.Sprintf("%s: %s", v.Code, v.Message)
}

// ToViolation renders a Violation as a report-level schema.Violation,
// classed TOOLING (spec.md §4.9).
func (v *Violation) ToViolation(eventIndex int) *schema.Violation {
	details := map[string]any{
		"expected":       v.Expected,
		"actual":         v.Actual,
		"expected_hash":  shaOf(v.Expected),
		"actual_hash":    shaOf(v.Actual),
		"suggested_fix":  v.SuggestedFix,
	}
	if v.PayloadDiff != nil {
		details["payload_diff"] = v.PayloadDiff
	}
	return &schema.Violation{
		Class:      schema.FailureClassTooling,
		Code:       v.Code,
		Message:    v.Message,
		EventIndex: eventIndex,
		Details:    details,
	}
}

func shaOf(value any) string {
	raw, err := json.Marshal(value)
	if err != nil {
		raw = []byte(fmt.Sprintf("%#v", value))
	}
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}

// Runtime holds the resolved state needed to enforce one spec's
// determinism profile during a single replay run.
type Runtime struct {
	Mode        string // "record" | "replay"
	ProjectRoot string
	Profile     schema.DeterminismProfile

	clockSeed  *float64
	randomSeed *int64

	allowReadPaths  []string
	allowWritePaths []string
	allowCommands   map[string]bool

	rng              *rand.Rand
	frozenTimestamp  *float64
}

// NewRuntime resolves a Runtime from a spec's determinism profile. The
// internal TRT state directory is always implicitly allowed for read/write
// regardless of filesystem mode, so replay never blocks TRT's own
// bookkeeping.
func NewRuntime(mode, projectRoot string, profile schema.DeterminismProfile, trtStateDirs ...string) *Runtime {
	r := &Runtime{
		Mode:          mode,
		ProjectRoot:   projectRoot,
		Profile:       profile,
		allowCommands: map[string]bool{},
	}
	if profile.Clock.Seed != nil {
		r.clockSeed = profile.Clock.Seed
	}
	if profile.Random.Seed != nil {
		r.randomSeed = profile.Random.Seed
	}
	for _, p := range profile.Filesystem.AllowReadPaths {
		r.allowReadPaths = append(r.allowReadPaths, resolvePath(projectRoot, p))
	}
	for _, p := range profile.Filesystem.AllowWritePaths {
		r.allowWritePaths = append(r.allowWritePaths, resolvePath(projectRoot, p))
	}
	for _, dir := range trtStateDirs {
		resolved := resolvePath(projectRoot, dir)
		r.allowReadPaths = append(r.allowReadPaths, resolved)
		r.allowWritePaths = append(r.allowWritePaths, resolved)
	}
	for _, c := range profile.Subprocess.AllowCommands {
		c = strings.ToLower(strings.TrimSpace(c))
		if c != "" {
			r.allowCommands[c] = true
		}
	}
	if r.randomSeed != nil {
		r.rng = rand.New(rand.NewSource(*r.randomSeed))
	}
	return r
}

func resolvePath(root, raw string) string {
	if filepath.IsAbs(raw) {
		return filepath.Clean(raw)
	}
	return filepath.Clean(filepath.Join(root, raw))
}

// FrozenUnix resolves the clock value replay should observe, enforcing that
// a seed was recorded whenever freezing is required.
func (r *Runtime) FrozenUnix() (float64, error) {
	mode := r.Profile.Clock.Mode
	if mode == "disabled" {
		return 0, nil
	}
	shouldFreeze := mode == "record_and_freeze" || (mode == "freeze_only" && r.Mode == "replay")
	if !shouldFreeze {
		return 0, nil
	}
	if r.clockSeed == nil {
		return 0, &Violation{
			Code:         schema.CodeNondeterminismClock,
			Message:      "Clock freeze requested but no clock seed was provided",
			Expected:     map[string]any{"clock_seed": "float timestamp"},
			Actual:       map[string]any{"clock_seed": nil},
			SuggestedFix: "Re-record baseline with determinism.clock.mode=record_and_freeze to capture clock_seed.",
		}
	}
	r.frozenTimestamp = r.clockSeed
	return *r.clockSeed, nil
}

// DeterministicUUID4 derives a UUID the way a seeded deterministic RNG
// would, bit-twiddled into a valid version-4 / RFC-4122 variant UUID. In
// "strict" random mode, UUID generation during replay is itself a
// violation: the baseline should have recorded the UUID via an explicit
// tool rather than relying on ambient randomness.
func (r *Runtime) DeterministicUUID4() (uuid.UUID, error) {
	mode := r.Profile.Random.Mode
	if mode == "disabled" {
		return uuid.UUID{}, fmt.Errorf("sandbox: random determinism is disabled")
	}
	if r.randomSeed == nil {
		return uuid.UUID{}, &Violation{
			Code:         schema.CodeNondeterminismRandom,
			Message:      "Random determinism enabled but no random_seed was provided",
			Expected:     map[string]any{"random_seed": "int"},
			Actual:       map[string]any{"random_seed": nil},
			SuggestedFix: "Re-record baseline with deterministic randomness enabled to capture random_seed.",
		}
	}
	if mode == "strict" {
		return uuid.UUID{}, &Violation{
			Code:         schema.CodeNondeterminismUUID,
			Message:      "uuid generation is blocked in strict deterministic mode",
			Expected:     map[string]any{"uuid_source": "explicit deterministic tool or seeded generator"},
			Actual:       map[string]any{"call": "uuid4"},
			SuggestedFix: "Wrap UUID generation in an explicit tool and record its output.",
		}
	}

	var raw [16]byte
	for i := range raw {
		raw[i] = byte(r.rng.Intn(256))
	}
	raw[6] = (raw[6] & 0x0F) | 0x40 // version 4
	raw[8] = (raw[8] & 0x3F) | 0x80 // RFC 4122 variant
	id, err := uuid.FromBytes(raw[:])
	if err != nil {
		return uuid.UUID{}, fmt.Errorf("sandbox: build deterministic uuid: %w", err)
	}
	return id, nil
}

func isWithin(parent, child string) bool {
	rel, err := filepath.Rel(parent, child)
	if err != nil {
		return false
	}
	return rel == "." || (!strings.HasPrefix(rel, "..") && !filepath.IsAbs(rel))
}

func allowedPath(path string, allowlist []string) bool {
	for _, candidate := range allowlist {
		if isWithin(candidate, path) {
			return true
		}
	}
	return false
}

func parseAccessMode(mode string) (isRead, isWrite bool) {
	if mode == "" {
		mode = "r"
	}
	isRead = strings.Contains(mode, "r") || strings.Contains(mode, "+")
	for _, flag := range []string{"w", "a", "x", "+"} {
		if strings.Contains(mode, flag) {
			isWrite = true
			break
		}
	}
	return
}

// GuardPathAccess enforces filesystem.mode=="strict": a project-local path
// accessed for read or write must be covered by the matching allow-list.
// Paths outside the project root are never guarded, mirroring the original
// guard's decision to leave interpreter/module internals alone.
func (r *Runtime) GuardPathAccess(path, mode string) error {
	if r.Profile.Filesystem.Mode != "strict" {
		return nil
	}
	candidate, err := filepath.Abs(path)
	if err != nil {
		return nil
	}
	if !isWithin(r.ProjectRoot, candidate) {
		return nil
	}

	isRead, isWrite := parseAccessMode(mode)
	if isRead && !allowedPath(candidate, r.allowReadPaths) {
		return &Violation{
			Code:         schema.CodeNondeterminismFilesystem,
			Message:      fmt.Sprintf("Unapproved file read during deterministic replay: %s", candidate),
			Expected:     map[string]any{"allow_read_paths": r.allowReadPaths},
			Actual:       map[string]any{"path": candidate, "mode": mode},
			SuggestedFix: "Add the path under determinism.filesystem.allow_read_paths in your spec, or route file access through an explicit deterministic tool.",
			PayloadDiff:  map[string]any{"missing_allow_read_path": candidate},
		}
	}
	if isWrite && !allowedPath(candidate, r.allowWritePaths) {
		return &Violation{
			Code:         schema.CodeNondeterminismFilesystem,
			Message:      fmt.Sprintf("Unapproved file write during deterministic replay: %s", candidate),
			Expected:     map[string]any{"allow_write_paths": r.allowWritePaths},
			Actual:       map[string]any{"path": candidate, "mode": mode},
			SuggestedFix: "Add the path under determinism.filesystem.allow_write_paths in your spec, or disable strict filesystem determinism for this spec.",
			PayloadDiff:  map[string]any{"missing_allow_write_path": candidate},
		}
	}
	return nil
}

func extractCommandName(command []string) string {
	if len(command) == 0 {
		return ""
	}
	return strings.ToLower(strings.TrimSpace(command[0]))
}

// GuardCommand enforces subprocess.mode=="strict": only commands named in
// allow_commands may be spawned.
func (r *Runtime) GuardCommand(command []string) error {
	if r.Profile.Subprocess.Mode != "strict" {
		return nil
	}
	name := extractCommandName(command)
	if name == "" || r.allowCommands[name] {
		return nil
	}
	allowed := make([]string, 0, len(r.allowCommands))
	for c := range r.allowCommands {
		allowed = append(allowed, c)
	}
	return &Violation{
		Code:         schema.CodeNondeterminismFilesystem,
		Message:      fmt.Sprintf("Subprocess command blocked in strict deterministic mode: %s", name),
		Expected:     map[string]any{"allow_commands": allowed},
		Actual:       map[string]any{"command": strings.Join(command, " ")},
		SuggestedFix: "Add the command name under determinism.subprocess.allow_commands or disable strict mode.",
		PayloadDiff:  map[string]any{"blocked_command": name},
	}
}

// EnvJSON renders the profile (plus the resolved seeds) as the
// TRAJECTLY_DETERMINISM_JSON environment value passed to the agent
// subprocess, so an agent-side shim can install the same guards in-process.
func (r *Runtime) EnvJSON() (string, error) {
	payload := map[string]any{
		"clock":      r.Profile.Clock,
		"random":     r.Profile.Random,
		"filesystem": r.Profile.Filesystem,
		"subprocess": r.Profile.Subprocess,
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("sandbox: marshal determinism env: %w", err)
	}
	return string(raw), nil
}

// ClockSeedEnv and RandomSeedEnv render the seed env values the way the
// original replay guard reads TRAJECTLY_CLOCK_SEED / TRAJECTLY_RANDOM_SEED.
func (r *Runtime) ClockSeedEnv() string {
	if r.clockSeed == nil {
		return ""
	}
	return strconv.FormatFloat(*r.clockSeed, 'f', -1, 64)
}

func (r *Runtime) RandomSeedEnv() string {
	if r.randomSeed == nil {
		return ""
	}
	return strconv.FormatInt(*r.randomSeed, 10)
}

// FrozenClock returns a clock function that always returns the frozen
// timestamp, for callers in this process (e.g. timestamping TRT's own
// report generation during a frozen-clock replay) that need to agree with
// what the agent subprocess was told to freeze at.
func (r *Runtime) FrozenClock() func() time.Time {
	seed := r.clockSeed
	return func() time.Time {
		if seed == nil {
			return time.Now()
		}
		sec := int64(*seed)
		nsec := int64((*seed - float64(sec)) * 1e9)
		return time.Unix(sec, nsec).UTC()
	}
}
