package bundler

import (
	"maps"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/dlclark/regexp2"
)

// Condition is a webpack rule condition in its serialised form: a path
// prefix string, a {"$regexp"} marker, an array (any of), an object with
// and/or/not, or a function reference. Function references cannot be
// evaluated outside node and never match.
type Condition struct {
	raw any
	set bool
}

// NewCondition wraps a decoded condition value.
func NewCondition(raw any) Condition {
	return Condition{raw: raw, set: raw != nil}
}

// IsSet reports whether the rule declared this condition.
func (c Condition) IsSet() bool {
	return c.set
}

// Match evaluates the condition against an absolute resource path.
func (c Condition) Match(path string) bool {
	return matchCondition(c.raw, path)
}

func matchCondition(raw any, path string) bool {
	switch v := raw.(type) {
	case string:
		return strings.HasPrefix(path, v)
	case []any:
		for _, item := range v {
			if matchCondition(item, path) {
				return true
			}
		}
		return false
	case map[string]any:
		if src, ok := v["$regexp"].(string); ok {
			flags, _ := v["flags"].(string)
			return matchRegExp(src, flags, path)
		}
		if _, ok := v["$ref"]; ok {
			return false
		}
		matched := false
		if and, ok := v["and"].([]any); ok {
			for _, item := range and {
				if !matchCondition(item, path) {
					return false
				}
			}
			matched = true
		}
		if or, ok := v["or"]; ok {
			if !matchCondition(or, path) {
				return false
			}
			matched = true
		}
		if not, ok := v["not"]; ok {
			if matchCondition(not, path) {
				return false
			}
			matched = true
		}
		return matched
	default:
		return false
	}
}

// matchRegExp runs a JavaScript regular expression with ECMAScript
// semantics. Invalid patterns never match.
func matchRegExp(src, flags, input string) bool {
	opts := regexp2.RegexOptions(regexp2.ECMAScript)
	if strings.Contains(flags, "i") {
		opts |= regexp2.IgnoreCase
	}
	if strings.Contains(flags, "m") {
		opts |= regexp2.Multiline
	}
	re, err := regexp2.Compile(src, opts)
	if err != nil {
		return false
	}
	ok, err := re.MatchString(input)
	return err == nil && ok
}

// RegExp builds the serialised form of a JavaScript regular expression.
func RegExp(src, flags string) map[string]any {
	return map[string]any{"$regexp": src, "flags": flags}
}

// Rule is one module transform rule. Rules are evaluated in order and the
// first matching rule wins.
type Rule struct {
	Test    Condition
	Include Condition
	Exclude Condition
	// Resource is webpack's explicit resource condition.
	Resource Condition
	Loader   string
	Use      any
	Options  map[string]any
	OneOf    []Rule
	// Synthesized marks rules added on the project's behalf.
	Synthesized bool

	raw map[string]any
}

// ParseRule decodes a rule object.
func ParseRule(m map[string]any) Rule {
	r := Rule{
		Test:     NewCondition(m["test"]),
		Include:  NewCondition(m["include"]),
		Exclude:  NewCondition(m["exclude"]),
		Resource: NewCondition(m["resource"]),
		Use:      m["use"],
		raw:      m,
	}
	r.Loader, _ = m["loader"].(string)
	if r.Use == nil {
		r.Use = m["loaders"]
	}
	if opts, ok := m["options"].(map[string]any); ok {
		r.Options = opts
	} else if q, ok := m["query"].(map[string]any); ok {
		r.Options = q
	}
	for _, key := range []string{"oneOf", "rules"} {
		list, _ := m[key].([]any)
		for _, item := range list {
			if sub, ok := item.(map[string]any); ok {
				r.OneOf = append(r.OneOf, ParseRule(sub))
			}
		}
	}
	return r
}

// Raw returns the rule in its serialised form.
func (r Rule) Raw() map[string]any {
	return r.raw
}

// Matches reports whether the rule applies to the resource at path. A rule
// without any positive condition (test, include, resource or nested rules)
// matches nothing.
func (r Rule) Matches(path string) bool {
	if !r.Test.IsSet() && !r.Include.IsSet() && !r.Resource.IsSet() && len(r.OneOf) == 0 {
		return false
	}
	if r.Test.IsSet() && !r.Test.Match(path) {
		return false
	}
	if r.Include.IsSet() && !r.Include.Match(path) {
		return false
	}
	if r.Exclude.IsSet() && r.Exclude.Match(path) {
		return false
	}
	if r.Resource.IsSet() && !r.Resource.Match(path) {
		return false
	}
	if len(r.OneOf) == 0 {
		return true
	}
	for _, sub := range r.OneOf {
		if sub.Matches(path) {
			return true
		}
	}
	return false
}

var babelLoaderRe = regexp.MustCompile(`\bbabel-loader\b`)

// UsesBabel reports whether the rule, or any nested rule, loads files
// through babel-loader.
func (r Rule) UsesBabel() bool {
	if babelLoaderRe.MatchString(r.Loader) || referencesBabel(r.Use) {
		return true
	}
	for _, sub := range r.OneOf {
		if sub.UsesBabel() {
			return true
		}
	}
	return false
}

func referencesBabel(use any) bool {
	switch v := use.(type) {
	case string:
		return babelLoaderRe.MatchString(v)
	case []any:
		for _, item := range v {
			if referencesBabel(item) {
				return true
			}
		}
	case map[string]any:
		return referencesBabel(v["loader"])
	}
	return false
}

// cssProbeFile is the resource tested against user rules to decide whether
// the project already handles stylesheets.
const cssProbeFile = "foo.css"

// MergeRules prepends a babel rule unless a user rule already uses
// babel-loader and appends a stylesheet rule unless a user rule already
// matches a .css file under root. Applying it to its own output is a no-op.
func MergeRules(root string, user []Rule, babelLoader string, babel map[string]any) []Rule {
	hasBabel := false
	for _, r := range user {
		if r.UsesBabel() {
			hasBabel = true
			break
		}
	}

	probe := filepath.Join(root, cssProbeFile)
	hasCSS := false
	for _, r := range user {
		if r.Matches(probe) {
			hasCSS = true
			break
		}
	}

	out := make([]Rule, 0, len(user)+2)
	if !hasBabel {
		out = append(out, babelRule(babelLoader, babel))
	}
	out = append(out, user...)
	if !hasCSS {
		out = append(out, cssRule())
	}
	return out
}

func babelRule(loader string, options map[string]any) Rule {
	r := ParseRule(map[string]any{
		"test":    RegExp(`\.jsx?$`, ""),
		"exclude": RegExp(`node_modules`, ""),
		"loader":  loader,
		"options": maps.Clone(options),
	})
	r.Synthesized = true
	return r
}

func cssRule() Rule {
	r := ParseRule(map[string]any{
		"test":   RegExp(`\.css$`, ""),
		"loader": "style-loader!css-loader",
	})
	r.Synthesized = true
	return r
}
