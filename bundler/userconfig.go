package bundler

import (
	"strings"
)

// UserConfig is a project's own bundler configuration after evaluation.
type UserConfig struct {
	Kind Kind
	// Path is empty when the config was supplied as an object.
	Path string
	Raw  map[string]any
}

// Lookup resolves a dotted key path ("module.rules") in the config.
func (c *UserConfig) Lookup(key string) (any, bool) {
	if c == nil {
		return nil, false
	}
	var cur any = c.Raw
	for _, part := range strings.Split(key, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		if cur, ok = m[part]; !ok {
			return nil, false
		}
	}
	return cur, true
}

// Map returns the object at key, or nil.
func (c *UserConfig) Map(key string) map[string]any {
	v, _ := c.Lookup(key)
	m, _ := v.(map[string]any)
	return m
}

// List returns the array at key, or nil.
func (c *UserConfig) List(key string) []any {
	v, _ := c.Lookup(key)
	l, _ := v.([]any)
	return l
}

// String returns the string at key, or "".
func (c *UserConfig) String(key string) string {
	v, _ := c.Lookup(key)
	s, _ := v.(string)
	return s
}

// Rules returns the legacy loaders followed by the modern rules.
func (c *UserConfig) Rules() []Rule {
	var rules []Rule
	for _, key := range []string{"module.loaders", "module.rules"} {
		for _, raw := range c.List(key) {
			if m, ok := raw.(map[string]any); ok {
				rules = append(rules, ParseRule(m))
			}
		}
	}
	return rules
}

// Plugins returns the configured plugin list.
func (c *UserConfig) Plugins() []Plugin {
	list := c.List("plugins")
	plugins := make([]Plugin, 0, len(list))
	for _, raw := range list {
		if raw == nil {
			continue
		}
		plugins = append(plugins, ParsePlugin(raw))
	}
	return plugins
}
