// Package policy loads engine configuration and compiles it into the
// immutable form the orchestrators consume. Every field is optional and
// default-merged; malformed fields (wrong type, out of range) are ignored
// in favor of the inherited value, so a bad config degrades instead of
// failing.
package policy

import (
	"fmt"
	"os"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"gyeokguk/internal/competition"
	"gyeokguk/internal/quality"
	"gyeokguk/internal/rules"
)

// Config is the raw, loosely-typed configuration as loaded from YAML or
// JSON. Quality and competition sections stay untyped until default-merge
// so wrong-typed fields can be dropped individually.
type Config struct {
	Version      string         `yaml:"version" json:"version"`
	Priority     []string       `yaml:"priority" json:"priority"`
	PatternRules any            `yaml:"pattern_rules" json:"pattern_rules"`
	PenaltyRules any            `yaml:"penalty_rules" json:"penalty_rules"`
	Quality      map[string]any `yaml:"quality" json:"quality"`
	Competition  map[string]any `yaml:"competition" json:"competition"`
}

// Policy is the compiled, immutable form of one configuration. A Policy is
// built once per distinct configuration version and shared read-only across
// calls (and goroutines).
type Policy struct {
	Version     string
	Patterns    *rules.RuleSet
	Penalties   *rules.RuleSet
	Quality     *quality.ModelSet
	Competition competition.Policy
	Priority    []string
}

// Load reads a YAML (or JSON; YAML is a superset here) config file. A
// config without an explicit version is stamped with a generated one, so
// the compile cache has a stable identity key for this loaded object.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(data)
}

// Parse decodes config bytes and stamps a version if absent.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if cfg.Version == "" {
		cfg.Version = uuid.NewString()
	}
	return &cfg, nil
}
