package specs

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/trajectly/trt/internal/ids"
	"github.com/trajectly/trt/internal/schema"
)

// Load reads, migrates, and validates one spec file.
func Load(path string) (schema.Spec, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return schema.Spec{}, fmt.Errorf("specs: read %s: %w", path, err)
	}

	var spec schema.Spec
	if err := yaml.Unmarshal(raw, &spec); err != nil {
		return schema.Spec{}, fmt.Errorf("specs: parse %s: %w", path, err)
	}

	spec = Migrate(spec)

	if err := Validate(spec); err != nil {
		return schema.Spec{}, fmt.Errorf("specs: %s: %w", path, err)
	}
	return spec, nil
}

// Migrate upgrades a spec whose schema_version predates the live 0.4
// family (no schema_version, or the legacy "v1"), filling in the fields the
// legacy shape left implicit. A spec already at 0.4, or at any other
// version, passes through unchanged, so Validate rejects an unrecognized
// version. This mirrors the teacher's
// config.LoadRedactionMerged "merge old into new" pattern applied to a
// single spec rather than to global+project config layers: missing
// fields fall back to conservative defaults instead of being left zero.
func Migrate(spec schema.Spec) schema.Spec {
	if spec.SchemaVersion == schema.SpecSchemaVersion {
		return spec
	}
	if spec.SchemaVersion == "" || spec.SchemaVersion == schema.LegacyEventSchemaVersion {
		if spec.FixturePolicy == "" {
			spec.FixturePolicy = "by_index"
		}
		if spec.Refinement.Mode == "" {
			spec.Refinement.Mode = "skeleton"
		}
		if spec.Replay.Mode == "" {
			spec.Replay.Mode = "offline"
		}
		if spec.Replay.MatchMode == "" {
			spec.Replay.MatchMode = spec.FixturePolicy
		}
		if spec.Contracts.Tools.MaxCallsPerTool == nil && spec.Contracts.Tools.MaxCallsTotal != nil {
			// Legacy specs carried only a total cap; the 0.4 family
			// exposes a per-tool cap alongside it, left empty (no
			// per-tool caps implied) rather than guessed.
			spec.Contracts.Tools.MaxCallsPerTool = map[string]int{}
		}
		spec.SchemaVersion = schema.SpecSchemaVersion
	}
	return spec
}

const (
	maxRedactRules  = 128
	maxAllowedTools = 256
	maxSpecNameLen  = 128
)

// Validate enforces the structural caps and canonical-name requirements a
// spec file must satisfy, modeled on config.ValidateRedactionRules's
// length/count/canonicality checks.
func Validate(spec schema.Spec) error {
	if spec.SchemaVersion != schema.SpecSchemaVersion {
		return fmt.Errorf("unsupported schema_version %q", spec.SchemaVersion)
	}
	name := strings.TrimSpace(spec.Name)
	if name == "" {
		return fmt.Errorf("spec name is missing")
	}
	if len(name) > maxSpecNameLen {
		return fmt.Errorf("spec name too long (max %d)", maxSpecNameLen)
	}
	if ids.SanitizeComponent(name) == "" {
		return fmt.Errorf("spec name %q has no canonical form", name)
	}
	if strings.TrimSpace(spec.Command) == "" {
		return fmt.Errorf("spec command is missing")
	}
	if spec.FixturePolicy != "by_index" && spec.FixturePolicy != "by_hash" {
		return fmt.Errorf("fixture_policy must be by_index or by_hash, got %q", spec.FixturePolicy)
	}
	switch spec.Refinement.Mode {
	case "", "none", "skeleton", "strict":
	default:
		return fmt.Errorf("refinement.mode must be none, skeleton, or strict, got %q", spec.Refinement.Mode)
	}
	if len(spec.Redact) > maxRedactRules {
		return fmt.Errorf("too many redact rules (max %d)", maxRedactRules)
	}
	if len(spec.Contracts.Tools.Allow)+len(spec.Contracts.Tools.Deny) > maxAllowedTools {
		return fmt.Errorf("too many tool allow/deny entries (max %d combined)", maxAllowedTools)
	}
	if spec.Contracts.Tools.MaxCallsTotal != nil && *spec.Contracts.Tools.MaxCallsTotal < 0 {
		return fmt.Errorf("contracts.tools.max_calls_total must be >= 0")
	}
	for tool, max := range spec.Contracts.Tools.MaxCallsPerTool {
		if max < 0 {
			return fmt.Errorf("contracts.tools.max_calls_per_tool[%q] must be >= 0", tool)
		}
	}
	return nil
}
