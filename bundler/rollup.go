package bundler

import (
	"context"
	"maps"
	"slices"
)

// RollupOutputName is the global the default rollup bundle is exposed as.
const RollupOutputName = "KarmaticTests"

// RequirePlugin describes a plugin the karma runner instantiates under node:
// require(module)[export](...args). Export may be empty.
func RequirePlugin(module, export string, args ...any) map[string]any {
	if args == nil {
		args = []any{}
	}
	return map[string]any{"$require": module, "export": export, "args": args}
}

func (s *Synthesizer) rollup(ctx context.Context) (*Result, error) {
	det := s.probe.Detect(ctx, Rollup)
	user, err := s.probe.Discover(ctx, Rollup, s.opts.RollupConfig, s.opts.RollupObject)
	if err != nil {
		return nil, err
	}
	var block map[string]any
	if user != nil {
		block = UserRollupConfig(s.opts, user)
	} else {
		block = DefaultRollupConfig(s.opts)
	}
	return &Result{
		Kind:         Rollup,
		Block:        block,
		Preprocessor: Rollup.String(),
		KarmaPlugin:  ToolPath(s.opts.ToolchainDir, Rollup.KarmaPlugin()),
		Detection:    det,
		UserConfig:   user,
	}, nil
}

// UserRollupConfig uses the project's config, adding coverage
// instrumentation when requested.
func UserRollupConfig(opts Options, user *UserConfig) map[string]any {
	block := maps.Clone(user.Raw)
	if !opts.Coverage {
		return block
	}
	plugins := slices.Clone(user.List("plugins"))
	plugins = append(plugins, RequirePlugin(ToolPath(opts.ToolchainDir, "@rollup/plugin-babel"), "default", map[string]any{
		"babelHelpers": "bundled",
		"plugins":      []any{ToolPath(opts.ToolchainDir, "babel-plugin-istanbul")},
	}))
	block["plugins"] = plugins
	return block
}

// DefaultRollupConfig bundles each test as an IIFE with an inline source map.
func DefaultRollupConfig(opts Options) map[string]any {
	babel := BabelOptions(opts)
	babel["babelHelpers"] = "bundled"
	return map[string]any{
		"output": map[string]any{
			"format":    "iife",
			"name":      RollupOutputName,
			"sourcemap": "inline",
		},
		"plugins": []any{
			RequirePlugin(ToolPath(opts.ToolchainDir, "@rollup/plugin-babel"), "default", babel),
			RequirePlugin(ToolPath(opts.ToolchainDir, "@rollup/plugin-node-resolve"), "default"),
			RequirePlugin(ToolPath(opts.ToolchainDir, "@rollup/plugin-commonjs"), ""),
		},
	}
}
