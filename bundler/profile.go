package bundler

import (
	"maps"
)

// Profile is the shape of the emitted webpack configuration. It is selected
// once from the detected webpack major version.
type Profile int

const (
	// ProfileModern targets webpack 4 and later: module.rules and mode.
	ProfileModern Profile = iota
	// ProfileLegacy targets webpack 1 to 3: module.loaders, no mode, and
	// loader options under "query".
	ProfileLegacy
)

func (p Profile) String() string {
	if p == ProfileLegacy {
		return "legacy"
	}
	return "modern"
}

// ProfileFor selects the profile for a webpack major version.
func ProfileFor(major int) Profile {
	if major < 4 {
		return ProfileLegacy
	}
	return ProfileModern
}

// RulesKey is the key under "module" the rules are emitted at.
func (p Profile) RulesKey() string {
	if p == ProfileLegacy {
		return "loaders"
	}
	return "rules"
}

// HasMode reports whether the profile emits a top-level mode.
func (p Profile) HasMode() bool {
	return p == ProfileModern
}

// EmitRules converts rules to their serialised form. User rules pass
// through untouched.
func (p Profile) EmitRules(rules []Rule) []any {
	out := make([]any, 0, len(rules))
	for _, r := range rules {
		raw := r.Raw()
		if r.Synthesized && p == ProfileLegacy {
			raw = maps.Clone(raw)
			if opts, ok := raw["options"]; ok {
				delete(raw, "options")
				raw["query"] = opts
			}
		}
		out = append(out, raw)
	}
	return out
}

// Emit builds the module block for rules.
func (p Profile) Emit(rules []Rule) map[string]any {
	return map[string]any{p.RulesKey(): p.EmitRules(rules)}
}
