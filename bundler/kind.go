// Package bundler detects the module bundler a project uses, loads the
// project's own bundler configuration and synthesizes the configuration the
// test harness builds test files with.
package bundler

import (
	"fmt"
)

// Kind names a supported bundler.
type Kind string

const (
	Webpack Kind = "webpack"
	Rollup  Kind = "rollup"
)

func (k Kind) String() string {
	return string(k)
}

// ConfigCandidates is the fixed discovery list for k, highest priority first.
func (k Kind) ConfigCandidates() []string {
	switch k {
	case Webpack:
		return []string{"webpack.config.babel.js", "webpack.config.js"}
	case Rollup:
		return []string{"rollup.config.mjs", "rollup.config.cjs", "rollup.config.js"}
	default:
		return nil
	}
}

// KarmaPlugin is the karma plugin integrating k.
func (k Kind) KarmaPlugin() string {
	switch k {
	case Webpack:
		return "karma-webpack"
	case Rollup:
		return "karma-rollup-preprocessor"
	default:
		return ""
	}
}

// ConfigKey is the karma configuration key k's config block lives under.
func (k Kind) ConfigKey() string {
	switch k {
	case Webpack:
		return "webpack"
	case Rollup:
		return "rollupPreprocessor"
	default:
		return ""
	}
}

// ParseKind converts s into a Kind.
func ParseKind(s string) (Kind, error) {
	switch Kind(s) {
	case Webpack, Rollup:
		return Kind(s), nil
	default:
		return "", fmt.Errorf("unknown bundler %q", s)
	}
}
