package bundler

import (
	"path/filepath"
	"regexp"
	"strings"
)

// DefaultPragma is the JSX factory used when none is configured.
const DefaultPragma = "h"

var legacyBrowserRe = regexp.MustCompile(`(?i)(\b|ms|microsoft)(ie|internet.explorer|edge)`)

// needsLegacyTargets reports whether the build must support Internet
// Explorer class browsers.
func needsLegacyTargets(downlevel bool, browsers []string) bool {
	return downlevel || legacyBrowserRe.MatchString(strings.Join(browsers, ","))
}

// ToolPath resolves a package installed alongside karmatic. Without a
// toolchain directory the bare name is left for node to resolve.
func ToolPath(toolchainDir, name string) string {
	if toolchainDir == "" {
		return name
	}
	return filepath.Join(toolchainDir, "node_modules", filepath.FromSlash(name))
}

// BabelOptions is the babel configuration shared by the webpack loader and
// the rollup babel plugin.
func BabelOptions(opts Options) map[string]any {
	browsers := []any{"last 2 Chrome versions", "last 2 Firefox versions"}
	if needsLegacyTargets(opts.Downlevel, opts.Browsers) {
		browsers = append(browsers, "ie>=9")
	}
	pragma := opts.Pragma
	if pragma == "" {
		pragma = DefaultPragma
	}

	plugins := []any{
		[]any{ToolPath(opts.ToolchainDir, "@babel/plugin-transform-react-jsx"), map[string]any{"pragma": pragma}},
	}
	if opts.Coverage {
		plugins = append(plugins, ToolPath(opts.ToolchainDir, "babel-plugin-istanbul"))
	}

	return map[string]any{
		"presets": []any{
			[]any{ToolPath(opts.ToolchainDir, "@babel/preset-env"), map[string]any{
				"targets":     map[string]any{"browsers": browsers},
				"corejs":      3,
				"useBuiltIns": "usage",
				"modules":     false,
				"loose":       true,
			}},
		},
		"plugins": plugins,
	}
}
