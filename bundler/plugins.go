package bundler

import (
	"fmt"
	"regexp"
	"slices"
)

// Capability tags a plugin may declare through its karmaticTags property or
// through the pluginTags section of the project settings.
const (
	TagTestSafe   = "test-safe"
	TagTestUnsafe = "test-unsafe"
)

// DefaultAllowlistPattern admits the build plugins that are harmless in a
// test bundle.
const DefaultAllowlistPattern = `(?i)^\s*(UglifyJS|HTML|ExtractText|BabelMinify)(.*Webpack)?Plugin\s*$`

// Plugin is a bundler plugin from the user config.
type Plugin struct {
	// Name is the constructor name, or the stub name for packages that were
	// not evaluated.
	Name string
	Tags []string
	// Value is the serialised plugin, passed through to the harness.
	Value any
}

// ParsePlugin decodes a serialised plugin entry.
func ParsePlugin(raw any) Plugin {
	p := Plugin{Value: raw}
	m, ok := raw.(map[string]any)
	if !ok {
		return p
	}
	p.Name, _ = m["name"].(string)
	if tags, ok := m["tags"].([]any); ok {
		for _, t := range tags {
			if s, ok := t.(string); ok {
				p.Tags = append(p.Tags, s)
			}
		}
	}
	return p
}

// HasTag reports whether p declares tag.
func (p Plugin) HasTag(tag string) bool {
	return slices.Contains(p.Tags, tag)
}

// Allowlist decides which user plugins survive into the test build when a
// plugin declares no capability tag.
type Allowlist struct {
	patterns []*regexp.Regexp
}

// DefaultAllowlist returns the allowlist used when the project configures
// none.
func DefaultAllowlist() *Allowlist {
	return &Allowlist{patterns: []*regexp.Regexp{regexp.MustCompile(DefaultAllowlistPattern)}}
}

// NewAllowlist compiles name patterns. An empty list yields the default.
func NewAllowlist(patterns []string) (*Allowlist, error) {
	if len(patterns) == 0 {
		return DefaultAllowlist(), nil
	}
	a := &Allowlist{}
	for _, p := range patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("invalid plugin allowlist pattern %q: %w", p, err)
		}
		a.patterns = append(a.patterns, re)
	}
	return a, nil
}

// Allows reports whether name matches any pattern.
func (a *Allowlist) Allows(name string) bool {
	if a == nil {
		a = DefaultAllowlist()
	}
	for _, re := range a.patterns {
		if re.MatchString(name) {
			return true
		}
	}
	return false
}

// AllowPlugin reports whether p is kept in the test build. Capability tags
// take precedence over the name allowlist.
func AllowPlugin(p Plugin, allow *Allowlist) bool {
	switch {
	case p.HasTag(TagTestUnsafe):
		return false
	case p.HasTag(TagTestSafe):
		return true
	case p.Name == "":
		return false
	default:
		return allow.Allows(p.Name)
	}
}

// FilterPlugins keeps the allowed plugins in order. tagsByName adds
// settings-file tags to plugins by name.
func FilterPlugins(plugins []Plugin, allow *Allowlist, tagsByName map[string][]string) []Plugin {
	var kept []Plugin
	for _, p := range plugins {
		if extra := tagsByName[p.Name]; len(extra) > 0 {
			p.Tags = append(slices.Clone(p.Tags), extra...)
		}
		if AllowPlugin(p, allow) {
			kept = append(kept, p)
		}
	}
	return kept
}
