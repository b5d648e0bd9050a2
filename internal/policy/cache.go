package policy

import (
	"encoding/json"
	"sync"

	"golang.org/x/sync/singleflight"

	"gyeokguk/internal/logging"
	"gyeokguk/internal/rules"
)

// Compiled policies are cached by configuration version: write once per
// distinct version, read many. Configurations are immutable for the
// engine's lifetime, so there is no invalidation; singleflight only
// suppresses the (harmless) duplicate compile on a cold first access.
var (
	cacheMu sync.RWMutex
	cache   = make(map[string]*Policy)
	inBuild singleflight.Group
)

// Build compiles a configuration into its immutable Policy, serving
// repeated builds of the same version from the cache. Build never fails:
// sections that cannot be compiled are logged and replaced by their neutral
// default (an empty rule set, a disabled competition pass), per the
// degrade-don't-abort contract.
func Build(cfg *Config) *Policy {
	cacheMu.RLock()
	p, ok := cache[cfg.Version]
	cacheMu.RUnlock()
	if ok {
		return p
	}

	v, _, _ := inBuild.Do(cfg.Version, func() (any, error) {
		cacheMu.RLock()
		p, ok := cache[cfg.Version]
		cacheMu.RUnlock()
		if ok {
			return p, nil
		}
		p = compile(cfg)
		cacheMu.Lock()
		cache[cfg.Version] = p
		cacheMu.Unlock()
		return p, nil
	})
	return v.(*Policy)
}

func compile(cfg *Config) *Policy {
	return &Policy{
		Version:     cfg.Version,
		Patterns:    compileRules(cfg.PatternRules, "pattern_rules"),
		Penalties:   compileRules(cfg.PenaltyRules, "penalty_rules"),
		Quality:     mergeQuality(cfg.Quality),
		Competition: mergeCompetition(cfg.Competition),
		Priority:    append([]string(nil), cfg.Priority...),
	}
}

// compileRules round-trips an inline YAML/JSON rule section through JSON so
// the schema-validating compiler sees one canonical form. Any failure
// degrades to a nil (empty) rule set.
func compileRules(section any, name string) *rules.RuleSet {
	if section == nil {
		return nil
	}
	log := logging.New("policy")
	data, err := json.Marshal(section)
	if err != nil {
		log.Warn("rule section not serializable, using empty set", "section", name, "err", err)
		return nil
	}
	rs, err := rules.Compile(data)
	if err != nil {
		log.Warn("rule section rejected, using empty set", "section", name, "err", err)
		return nil
	}
	return rs
}
