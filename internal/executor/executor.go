// Package executor spawns the agent-under-test as a subprocess with the
// TRAJECTLY_* environment contract pinned, captures its stdout/stderr, and
// reads back the events file it wrote (spec.md §6 "Agent-to-TRT
// contract").
package executor

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sort"
	"sync"
	"syscall"
	"time"

	"golang.org/x/sys/unix"

	"github.com/trajectly/trt/internal/event"
	"github.com/trajectly/trt/internal/sandbox"
	"github.com/trajectly/trt/internal/schema"
)

// Result is one subprocess run's outcome, mirroring ExecutionResult
// (original_source/src/trajectly/runtime.py): exit status, captured
// output, the events the agent wrote, and (if TRT itself failed to spawn
// or reap the process) an internal error distinct from the agent's own
// exit code.
type Result struct {
	ExitCode      int
	DurationMs    int64
	Stdout        string
	Stderr        string
	Events        []schema.Event
	InternalError string
}

// Options configures one Run.
type Options struct {
	Command    string // shell command line, run via `sh -c`
	WorkDir    string
	Env        map[string]string
	Mode       string // "record" | "replay"
	EventsPath string
	FixturePolicy string
	Strict     bool
	FixturesPath string // empty when no fixture file is wired for this run
	Contracts  schema.Contracts
	Determinism *sandbox.Runtime // nil disables the determinism env block
	MaxPreviewBytes int
	Timeout    time.Duration
}

const maxCaptureBytes = 1 << 20 // 1 MiB bounded stdout/stderr capture

type boundedCapture struct {
	max int
	mu  sync.Mutex
	buf bytes.Buffer
}

func (c *boundedCapture) Write(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	remaining := c.max - c.buf.Len()
	if remaining <= 0 {
		return len(p), nil
	}
	if len(p) > remaining {
		_, _ = c.buf.Write(p[:remaining])
		return len(p), nil
	}
	_, _ = c.buf.Write(p)
	return len(p), nil
}

func (c *boundedCapture) String() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.buf.String()
}

// Run spawns opts.Command, waits for it (or opts.Timeout, killing the
// whole process group on expiry), and returns its Result. It never
// returns a non-nil error for the agent's own nonzero exit or for a
// killed-on-timeout run; those surface as Result.ExitCode /
// Result.InternalError so callers can still read back whatever events the
// agent managed to write before dying.
func Run(ctx context.Context, opts Options) (Result, error) {
	if opts.Command == "" {
		return Result{}, errors.New("executor: missing command")
	}
	if opts.EventsPath == "" {
		return Result{}, errors.New("executor: missing events path")
	}
	_ = os.Remove(opts.EventsPath)

	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, "sh", "-c", opts.Command)
	cmd.Dir = opts.WorkDir
	cmd.Env = buildEnv(opts)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		killProcessGroup(cmd.Process.Pid)
		return nil
	}

	var outCap, errCap boundedCapture
	outCap.max = previewLimit(opts.MaxPreviewBytes)
	errCap.max = previewLimit(opts.MaxPreviewBytes)
	cmd.Stdout = &outCap
	cmd.Stderr = &errCap

	start := time.Now()
	if err := cmd.Start(); err != nil {
		return Result{
			ExitCode:      1,
			DurationMs:    0,
			Events:        loadEvents(opts.EventsPath),
			InternalError: err.Error(),
		}, nil
	}

	waitErr := cmd.Wait()
	duration := time.Since(start).Milliseconds()

	if ctx.Err() == context.DeadlineExceeded {
		killProcessGroup(cmd.Process.Pid)
		return Result{
			ExitCode:      1,
			DurationMs:    duration,
			Stdout:        outCap.String(),
			Stderr:        errCap.String(),
			Events:        loadEvents(opts.EventsPath),
			InternalError: fmt.Sprintf("executor: command timed out after %s", opts.Timeout),
		}, nil
	}

	exitCode := 0
	if waitErr != nil {
		var exitErr *exec.ExitError
		if errors.As(waitErr, &exitErr) {
			exitCode = exitErr.ExitCode()
		} else {
			return Result{
				ExitCode:      1,
				DurationMs:    duration,
				Stdout:        outCap.String(),
				Stderr:        errCap.String(),
				Events:        loadEvents(opts.EventsPath),
				InternalError: waitErr.Error(),
			}, nil
		}
	}

	return Result{
		ExitCode:   exitCode,
		DurationMs: duration,
		Stdout:     outCap.String(),
		Stderr:     errCap.String(),
		Events:     loadEvents(opts.EventsPath),
	}, nil
}

func previewLimit(n int) int {
	if n <= 0 {
		return maxCaptureBytes
	}
	return n
}

// killProcessGroup sends SIGKILL to the whole process group so a timed-out
// agent cannot leave grandchildren running past the deadline.
func killProcessGroup(pid int) {
	if pid <= 0 {
		return
	}
	pgid, err := unix.Getpgid(pid)
	if err != nil {
		_ = unix.Kill(pid, unix.SIGKILL)
		return
	}
	_ = unix.Kill(-pgid, unix.SIGKILL)
}

func loadEvents(path string) []schema.Event {
	if _, err := os.Stat(path); err != nil {
		return nil
	}
	events, err := event.ReadJSONL(path)
	if err != nil {
		return nil
	}
	return events
}

// buildEnv renders the TRAJECTLY_* environment contract a spawned agent
// relies on to know where to write events, what mode it is running under,
// and (during replay) what determinism profile an agent-side shim should
// enforce in-process (spec.md §6, §4.7; original_source/src/trajectly/
// runtime.py's execute_spec).
func buildEnv(opts Options) []string {
	base := os.Environ()
	env := make(map[string]string, len(base)+16)
	for _, kv := range base {
		for i := 0; i < len(kv); i++ {
			if kv[i] == '=' {
				env[kv[:i]] = kv[i+1:]
				break
			}
		}
	}
	for k, v := range opts.Env {
		env[k] = v
	}

	env["PYTHONHASHSEED"] = "0"
	env["LC_ALL"] = "C.UTF-8"
	env["LANG"] = "C.UTF-8"
	env["TZ"] = "UTC"
	env["TRAJECTLY_MODE"] = opts.Mode
	env["TRAJECTLY_EVENTS_FILE"] = opts.EventsPath
	env["TRAJECTLY_FIXTURE_POLICY"] = opts.FixturePolicy
	if opts.Strict {
		env["TRAJECTLY_STRICT"] = "1"
	} else {
		env["TRAJECTLY_STRICT"] = "0"
	}
	if raw, err := json.Marshal(opts.Contracts); err == nil {
		env["TRAJECTLY_CONTRACTS_JSON"] = string(raw)
	}
	if opts.FixturesPath != "" {
		env["TRAJECTLY_FIXTURES_FILE"] = opts.FixturesPath
	}
	if len(opts.Contracts.Network.Allowlist) > 0 {
		env["TRAJECTLY_NETWORK_ALLOWLIST"] = joinComma(opts.Contracts.Network.Allowlist)
	}
	if opts.Mode == "replay" {
		env["TRAJECTLY_REPLAY_GUARD"] = "1"
	}
	if opts.Determinism != nil {
		if raw, err := opts.Determinism.EnvJSON(); err == nil {
			env["TRAJECTLY_DETERMINISM_JSON"] = raw
		}
		if seed := opts.Determinism.ClockSeedEnv(); seed != "" {
			env["TRAJECTLY_CLOCK_SEED"] = seed
		}
		if seed := opts.Determinism.RandomSeedEnv(); seed != "" {
			env["TRAJECTLY_RANDOM_SEED"] = seed
		}
	}

	keys := make([]string, 0, len(env))
	for k := range env {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, k+"="+env[k])
	}
	return out
}

func joinComma(items []string) string {
	var b bytes.Buffer
	for i, item := range items {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(item)
	}
	return b.String()
}
