// Package baseline owns the golden-trace lifecycle: writing a new baseline
// from a record run, pinning one as the active reference for a spec slug,
// and the CI guard that keeps baseline writes out of automated pipelines
// unless explicitly overridden (spec.md §3, §5).
package baseline

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/trajectly/trt/internal/event"
	"github.com/trajectly/trt/internal/ids"
	"github.com/trajectly/trt/internal/schema"
	"github.com/trajectly/trt/internal/store"
)

// CIEnvVar is the environment variable that blocks baseline writes by
// default, per spec.md §6 ("TRAJECTLY_CI... blocks baseline writes unless
// override").
const CIEnvVar = "TRAJECTLY_CI"

// RecordOpts configures one baseline write.
type RecordOpts struct {
	StateDir string // the project's .trajectly directory
	Slug     string // sanitized spec name
	RunID    string
	Events   []schema.Event
	Meta     schema.TraceMeta

	Override bool // explicit --force / override flag
}

// Result is the outcome of a successful Record.
type Result struct {
	Slug       string
	RunID      string
	TracePath  string
	MetaPath   string
}

// ErrCIBlocked is returned when a baseline write is attempted under CI
// without an explicit override.
type ErrCIBlocked struct{ Slug string }

func (e *ErrCIBlocked) Error() string {
	return fmt.Sprintf("baseline: refusing to write baseline for %q under CI without --override", e.Slug)
}

// Record writes a new baseline trace (and its trace-meta sibling) for
// slug, superseding whatever baseline previously existed at that path:
// baselines are immutable once written but a slug's active baseline file
// can be replaced wholesale by a fresh Record (spec.md §3, "may be
// superseded by a fresh record").
func Record(opts RecordOpts) (Result, error) {
	slug := ids.SanitizeComponent(opts.Slug)
	if slug == "" {
		return Result{}, fmt.Errorf("baseline: empty slug")
	}
	if len(opts.Events) == 0 {
		return Result{}, fmt.Errorf("baseline: refusing to record an empty trace")
	}
	if CIBlocked(opts.Override) {
		return Result{}, &ErrCIBlocked{Slug: slug}
	}

	baselinesDir := filepath.Join(opts.StateDir, "baselines")
	if err := os.MkdirAll(baselinesDir, 0o755); err != nil {
		return Result{}, err
	}

	tracePath := filepath.Join(baselinesDir, slug+".jsonl")
	metaPath := filepath.Join(baselinesDir, slug+".meta.json")

	if err := os.Remove(tracePath); err != nil && !os.IsNotExist(err) {
		return Result{}, err
	}
	for _, ev := range opts.Events {
		if err := event.AppendJSONL(tracePath, ev); err != nil {
			return Result{}, err
		}
	}

	meta := opts.Meta
	meta.SchemaVersion = schema.TraceSchemaVersion
	meta.NormalizerVersion = schema.NormalizerVersion
	meta.SpecName = opts.Slug
	meta.RunID = opts.RunID
	meta.Mode = "record"
	if err := store.WriteJSONAtomic(metaPath, meta); err != nil {
		return Result{}, err
	}

	return Result{Slug: slug, RunID: opts.RunID, TracePath: tracePath, MetaPath: metaPath}, nil
}

// Load reads back a slug's baseline trace and trace-meta sibling.
func Load(stateDir, slugRaw string) ([]schema.Event, schema.TraceMeta, error) {
	slug := ids.SanitizeComponent(slugRaw)
	baselinesDir := filepath.Join(stateDir, "baselines")
	tracePath := filepath.Join(baselinesDir, slug+".jsonl")
	metaPath := filepath.Join(baselinesDir, slug+".meta.json")

	if err := guardContainment(baselinesDir, tracePath); err != nil {
		return nil, schema.TraceMeta{}, err
	}

	events, err := event.ReadJSONL(tracePath)
	if err != nil {
		return nil, schema.TraceMeta{}, fmt.Errorf("baseline: no baseline recorded for %q: %w", slug, err)
	}

	raw, err := os.ReadFile(metaPath)
	if err != nil {
		return nil, schema.TraceMeta{}, fmt.Errorf("baseline: missing trace meta for %q: %w", slug, err)
	}
	var meta schema.TraceMeta
	if err := json.Unmarshal(raw, &meta); err != nil {
		return nil, schema.TraceMeta{}, fmt.Errorf("baseline: invalid trace meta for %q: %w", slug, err)
	}

	return events, meta, nil
}

// Pin marks a baseline as the active reference for its slug. Every slug
// has at most one baseline file, so pinning is a metadata flag
// (TraceMeta.Pinned) rather than a move/rename — set pinned to true to
// promote, false to demote, mirroring the teacher's pin.Set idiom
// adapted from run-attempt pinning to baseline pinning.
func Pin(stateDir, slugRaw string, pinned bool) (schema.TraceMeta, error) {
	slug := ids.SanitizeComponent(slugRaw)
	baselinesDir := filepath.Join(stateDir, "baselines")
	metaPath := filepath.Join(baselinesDir, slug+".meta.json")

	if err := guardContainment(baselinesDir, metaPath); err != nil {
		return schema.TraceMeta{}, err
	}

	raw, err := os.ReadFile(metaPath)
	if err != nil {
		if os.IsNotExist(err) {
			return schema.TraceMeta{}, fmt.Errorf("baseline: no baseline recorded for %q", slug)
		}
		return schema.TraceMeta{}, err
	}
	var meta schema.TraceMeta
	if err := json.Unmarshal(raw, &meta); err != nil {
		return schema.TraceMeta{}, fmt.Errorf("baseline: invalid trace meta for %q: %w", slug, err)
	}

	meta.Pinned = pinned
	if err := store.WriteJSONAtomic(metaPath, meta); err != nil {
		return schema.TraceMeta{}, err
	}
	return meta, nil
}

// guardContainment rejects a path that (via symlinks) escapes dir, the
// same traversal guard the teacher's pin.Set uses before touching a
// run-scoped file.
func guardContainment(dir, path string) error {
	if _, err := os.Stat(dir); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("baseline: state directory %q does not exist", dir)
		}
		return err
	}
	dirEval, err := filepath.EvalSymlinks(dir)
	if err != nil {
		return err
	}
	parentEval, err := filepath.EvalSymlinks(filepath.Dir(path))
	if err != nil {
		if os.IsNotExist(err) {
			return nil // nothing written yet; nothing to traverse
		}
		return err
	}
	dirEval = filepath.Clean(dirEval)
	parentEval = filepath.Clean(parentEval)
	if parentEval != dirEval && !strings.HasPrefix(parentEval, dirEval+string(os.PathSeparator)) {
		return fmt.Errorf("baseline: path escapes state directory (symlink traversal)")
	}
	return nil
}

// CIBlocked reports whether the current environment should block baseline
// writes absent an explicit override: CIEnvVar set to "1" blocks unless
// override (RecordOpts.Override in Record) is true.
func CIBlocked(override bool) bool {
	return strings.TrimSpace(os.Getenv(CIEnvVar)) == "1" && !override
}
