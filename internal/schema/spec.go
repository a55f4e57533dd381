package schema

// Spec is the subset of an agent spec the core engine consumes
// (spec.md §3 "Spec (subset consumed by the core)"). YAML/JSON glue that
// locates and parses a spec file on disk is internal/specs; this type is
// the already-parsed value the engine operates on.
type Spec struct {
	SchemaVersion string `json:"schema_version" yaml:"schema_version"`
	Name          string `json:"name" yaml:"name"`
	Command       string `json:"command" yaml:"command"`
	WorkDir       string `json:"work_dir,omitempty" yaml:"work_dir,omitempty"`
	Env           map[string]string `json:"env,omitempty" yaml:"env,omitempty"`

	FixturePolicy string `json:"fixture_policy" yaml:"fixture_policy"` // "by_index" | "by_hash"
	Strict        bool   `json:"strict" yaml:"strict"`

	Redact []string `json:"redact,omitempty" yaml:"redact,omitempty"`

	Budget BudgetThresholds `json:"budget,omitempty" yaml:"budget,omitempty"`

	Contracts  Contracts        `json:"contracts,omitempty" yaml:"contracts,omitempty"`
	Refinement RefinementPolicy `json:"refinement,omitempty" yaml:"refinement,omitempty"`
	Replay     ReplayConfig     `json:"replay,omitempty" yaml:"replay,omitempty"`
	Determinism DeterminismProfile `json:"determinism,omitempty" yaml:"determinism,omitempty"`

	Abstraction AbstractionConfig `json:"abstraction,omitempty" yaml:"abstraction,omitempty"`
}

// BudgetThresholds bounds latency, tool-call count, and tokens.
type BudgetThresholds struct {
	LatencyMs    int64 `json:"latency_ms,omitempty" yaml:"latency_ms,omitempty"`
	ToolCalls    int   `json:"tool_calls,omitempty" yaml:"tool_calls,omitempty"`
	Tokens       int64 `json:"tokens,omitempty" yaml:"tokens,omitempty"`
}

// RefinementPolicy configures the skeleton/refinement checker (spec.md §4.4).
type RefinementPolicy struct {
	Mode                       string   `json:"mode" yaml:"mode"` // "none" | "skeleton" | "strict"
	AllowExtraTools            []string `json:"allow_extra_tools,omitempty" yaml:"allow_extra_tools,omitempty"`
	AllowExtraSideEffectTools  []string `json:"allow_extra_side_effect_tools,omitempty" yaml:"allow_extra_side_effect_tools,omitempty"`
	AllowNewToolNames          bool     `json:"allow_new_tool_names,omitempty" yaml:"allow_new_tool_names,omitempty"`
}

// ReplayConfig configures offline/online replay and fixture match modes.
type ReplayConfig struct {
	Mode      string `json:"mode,omitempty" yaml:"mode,omitempty"` // "offline" | "online"
	MatchMode string `json:"match_mode,omitempty" yaml:"match_mode,omitempty"`
}

// AbstractionConfig configures the event→token pipeline (spec.md §4.3).
type AbstractionConfig struct {
	IgnoreCallTools        []string `json:"ignore_call_tools,omitempty" yaml:"ignore_call_tools,omitempty"`
	EnablePIIDetection     *bool    `json:"enable_pii_detection,omitempty" yaml:"enable_pii_detection,omitempty"`
	EnableDomainExtraction *bool    `json:"enable_domain_extraction,omitempty" yaml:"enable_domain_extraction,omitempty"`
	EnableNumericExtraction *bool   `json:"enable_numeric_extraction,omitempty" yaml:"enable_numeric_extraction,omitempty"`
}

// Contracts is the full contract block (spec.md §4.5).
type Contracts struct {
	Tools       ToolsContract       `json:"tools,omitempty" yaml:"tools,omitempty"`
	Sequence    SequenceContract    `json:"sequence,omitempty" yaml:"sequence,omitempty"`
	SideEffects SideEffectsContract `json:"side_effects,omitempty" yaml:"side_effects,omitempty"`
	Network     NetworkContract     `json:"network,omitempty" yaml:"network,omitempty"`
	DataLeak    DataLeakContract    `json:"data_leak,omitempty" yaml:"data_leak,omitempty"`
}

type ToolsContract struct {
	Allow            []string          `json:"allow,omitempty" yaml:"allow,omitempty"`
	Deny             []string          `json:"deny,omitempty" yaml:"deny,omitempty"`
	MaxCallsTotal    *int              `json:"max_calls_total,omitempty" yaml:"max_calls_total,omitempty"`
	MaxCallsPerTool  map[string]int    `json:"max_calls_per_tool,omitempty" yaml:"max_calls_per_tool,omitempty"`
	Schema           map[string]ToolSchema `json:"schema,omitempty" yaml:"schema,omitempty"`
}

// ToolSchema is one tool's required-key + per-field constraint block
// (spec.md §4.5 "schema / args (merged)"). JSONSchema is an optional raw
// JSON Schema document, for args shapes richer than required_keys/fields
// can express; when present it is compiled and validated against the
// tool's merged kwargs/args in addition to the shorthand rules.
type ToolSchema struct {
	RequiredKeys []string               `json:"required_keys,omitempty" yaml:"required_keys,omitempty"`
	Fields       map[string]FieldSchema `json:"fields,omitempty" yaml:"fields,omitempty"`
	JSONSchema   map[string]any         `json:"json_schema,omitempty" yaml:"json_schema,omitempty"`
}

type FieldSchema struct {
	Type  string   `json:"type,omitempty" yaml:"type,omitempty"` // "number" | "string"
	Min   *float64 `json:"min,omitempty" yaml:"min,omitempty"`
	Max   *float64 `json:"max,omitempty" yaml:"max,omitempty"`
	Enum  []string `json:"enum,omitempty" yaml:"enum,omitempty"`
	Regex string   `json:"regex,omitempty" yaml:"regex,omitempty"`
}

type SequenceContract struct {
	Require      []string    `json:"require,omitempty" yaml:"require,omitempty"`
	Forbid       []string    `json:"forbid,omitempty" yaml:"forbid,omitempty"`
	RequireBefore [][2]string `json:"require_before,omitempty" yaml:"require_before,omitempty"`
	Eventually   []string    `json:"eventually,omitempty" yaml:"eventually,omitempty"`
	Never        []string    `json:"never,omitempty" yaml:"never,omitempty"`
	AtMostOnce   []string    `json:"at_most_once,omitempty" yaml:"at_most_once,omitempty"`
}

type SideEffectsContract struct {
	DenyWriteTools bool `json:"deny_write_tools,omitempty" yaml:"deny_write_tools,omitempty"`
}

type NetworkContract struct {
	Default      string   `json:"default,omitempty" yaml:"default,omitempty"` // "deny" | "allow"
	Allowlist    []string `json:"allowlist,omitempty" yaml:"allowlist,omitempty"`
	AllowDomains []string `json:"allow_domains,omitempty" yaml:"allow_domains,omitempty"`
}

type DataLeakContract struct {
	OutboundKinds   []string `json:"outbound_kinds,omitempty" yaml:"outbound_kinds,omitempty"`
	DenyPIIOutbound bool     `json:"deny_pii_outbound,omitempty" yaml:"deny_pii_outbound,omitempty"`
	SecretPatterns  []string `json:"secret_patterns,omitempty" yaml:"secret_patterns,omitempty"`
}

// DeterminismProfile configures the replay sandbox (spec.md §4.7).
type DeterminismProfile struct {
	Clock      ClockConfig      `json:"clock,omitempty" yaml:"clock,omitempty"`
	Random     RandomConfig     `json:"random,omitempty" yaml:"random,omitempty"`
	Filesystem FilesystemConfig `json:"filesystem,omitempty" yaml:"filesystem,omitempty"`
	Subprocess SubprocessConfig `json:"subprocess,omitempty" yaml:"subprocess,omitempty"`
}

type ClockConfig struct {
	Mode string `json:"mode" yaml:"mode"` // "disabled" | "freeze_only" | "record_and_freeze"
	Seed *float64 `json:"seed,omitempty" yaml:"seed,omitempty"`
}

type RandomConfig struct {
	Mode string `json:"mode" yaml:"mode"` // "disabled" | "deterministic_seed" | "strict"
	Seed *int64 `json:"seed,omitempty" yaml:"seed,omitempty"`
}

type FilesystemConfig struct {
	Mode           string   `json:"mode" yaml:"mode"` // "permissive" | "strict"
	AllowReadPaths []string `json:"allow_read_paths,omitempty" yaml:"allow_read_paths,omitempty"`
	AllowWritePaths []string `json:"allow_write_paths,omitempty" yaml:"allow_write_paths,omitempty"`
}

type SubprocessConfig struct {
	Mode          string   `json:"mode" yaml:"mode"` // "disabled" | "strict"
	AllowCommands []string `json:"allow_commands,omitempty" yaml:"allow_commands,omitempty"`
}
