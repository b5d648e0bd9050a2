package policy

import (
	_ "embed"
	"fmt"
)

//go:embed default_policy.yaml
var defaultPolicyYAML []byte

// Default returns the built-in configuration. The embedded file is part of
// the build, so a parse failure is a programming error.
func Default() *Config {
	cfg, err := Parse(defaultPolicyYAML)
	if err != nil {
		panic(fmt.Sprintf("embedded default policy invalid: %v", err))
	}
	return cfg
}
