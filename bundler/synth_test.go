package bundler

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func synthesize(t *testing.T, root string, opts Options) *Result {
	t.Helper()
	opts.Root = root
	logger := log.NewLogger(log.DiscardHandler())
	res, err := NewSynthesizer(opts, NewProbe(root, opts.ToolchainDir, logger), logger).Synthesize(context.Background())
	require.NoError(t, err)
	return res
}

func TestSynthesizeWebpack(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{
		"package.json":                      `{"name": "demo"}`,
		"node_modules/webpack/package.json": `{"version": "5.90.0"}`,
		"webpack.config.js": `
const HtmlWebpackPlugin = require('html-webpack-plugin');
const { DefinePlugin } = require('webpack');
module.exports = {
  mode: 'production',
  resolve: { alias: { demo: '/elsewhere' }, modules: ['src', 'node_modules'], extensions: ['.ts'] },
  module: { rules: [{ test: /\.ts$/, use: 'ts-loader' }] },
  plugins: [new HtmlWebpackPlugin(), new DefinePlugin({})],
  node: { fs: 'empty' },
};
`,
	})

	res := synthesize(t, root, Options{})
	assert.Equal(t, Webpack, res.Kind)
	assert.Equal(t, ProfileModern, res.Profile)
	assert.Equal(t, "webpack", res.Preprocessor)
	assert.Equal(t, "karma-webpack", res.KarmaPlugin)
	assert.Equal(t, WebpackMiddleware(), res.Middleware)
	require.NotNil(t, res.UserConfig)

	block := res.Block
	assert.Equal(t, "production", block["mode"])
	assert.Equal(t, "inline-source-map", block["devtool"])
	assert.Equal(t, map[string]any{"hints": false}, block["performance"])
	assert.Equal(t, map[string]any{"fs": "empty"}, block["node"])

	rules := block["module"].(map[string]any)["rules"].([]any)
	require.Len(t, rules, 3)
	assert.Equal(t, "babel-loader", rules[0].(map[string]any)["loader"])
	assert.Equal(t, "ts-loader", rules[1].(map[string]any)["use"])
	assert.Equal(t, "style-loader!css-loader", rules[2].(map[string]any)["loader"])

	resolve := block["resolve"].(map[string]any)
	alias := resolve["alias"].(map[string]any)
	assert.Equal(t, "/elsewhere", alias["demo"], "user alias wins")
	assert.Equal(t, filepath.Join(root, "src"), alias["src"])
	assert.Equal(t, []any{"node_modules", "src"}, resolve["modules"])
	assert.Equal(t, []any{".ts"}, resolve["extensions"])

	loaderAlias := block["resolveLoader"].(map[string]any)["alias"].(map[string]any)
	assert.Equal(t, root, loaderAlias["demo"])

	plugins := block["plugins"].([]any)
	require.Len(t, plugins, 1)
	assert.Equal(t, "HtmlWebpackPlugin", plugins[0].(map[string]any)["name"])
}

func TestSynthesizeWebpackLegacy(t *testing.T) {
	root := t.TempDir()
	toolchain := t.TempDir()
	writeFiles(t, toolchain, map[string]string{"node_modules/webpack/package.json": `{"version": "3.12.0"}`})

	res := synthesize(t, root, Options{ToolchainDir: toolchain, Coverage: true, Pragma: "React.createElement"})
	assert.Equal(t, ProfileLegacy, res.Profile)
	assert.Nil(t, res.UserConfig)
	assert.NotContains(t, res.Block, "mode")
	assert.Equal(t, filepath.Join(toolchain, "node_modules", "karma-webpack"), res.KarmaPlugin)

	module := res.Block["module"].(map[string]any)
	require.NotContains(t, module, "rules")
	loaders := module["loaders"].([]any)
	babel := loaders[0].(map[string]any)
	assert.Equal(t, filepath.Join(toolchain, "node_modules", "babel-loader"), babel["loader"])
	query := babel["query"].(map[string]any)
	plugins := query["plugins"].([]any)
	require.Len(t, plugins, 2)
	assert.Equal(t, map[string]any{"pragma": "React.createElement"}, plugins[0].([]any)[1])
	assert.Equal(t, filepath.Join(toolchain, "node_modules", "babel-plugin-istanbul"), plugins[1])

	modules := res.Block["resolve"].(map[string]any)["modules"].([]any)
	assert.Equal(t, []any{"node_modules", filepath.Join(toolchain, "node_modules")}, modules)
}

func TestSynthesizeRollupDefault(t *testing.T) {
	res := synthesize(t, t.TempDir(), Options{})
	assert.Equal(t, Rollup, res.Kind)
	assert.Equal(t, "rollup", res.Preprocessor)
	assert.Equal(t, "karma-rollup-preprocessor", res.KarmaPlugin)
	assert.Nil(t, res.Middleware)

	output := res.Block["output"].(map[string]any)
	assert.Equal(t, "iife", output["format"])
	assert.Equal(t, RollupOutputName, output["name"])
	assert.Equal(t, "inline", output["sourcemap"])

	plugins := res.Block["plugins"].([]any)
	require.Len(t, plugins, 3)
	babel := plugins[0].(map[string]any)
	assert.Equal(t, "@rollup/plugin-babel", babel["$require"])
	opts := babel["args"].([]any)[0].(map[string]any)
	assert.Equal(t, "bundled", opts["babelHelpers"])
	assert.Contains(t, opts, "presets")
	assert.Equal(t, "@rollup/plugin-commonjs", plugins[2].(map[string]any)["$require"])
}

func TestSynthesizeRollupUserConfig(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{
		"rollup.config.js": `
import resolve from '@rollup/plugin-node-resolve';
export default [{ input: 'a.js', plugins: [resolve()] }, { input: 'b.js' }];
`,
	})

	res := synthesize(t, root, Options{})
	require.NotNil(t, res.UserConfig)
	assert.Equal(t, "a.js", res.Block["input"])
	assert.Len(t, res.Block["plugins"], 1)

	res = synthesize(t, root, Options{Coverage: true})
	plugins := res.Block["plugins"].([]any)
	require.Len(t, plugins, 2)
	assert.Equal(t, "call", plugins[0].(map[string]any)["call"])
	assert.Equal(t, "@rollup/plugin-babel", plugins[1].(map[string]any)["$require"])
	assert.Len(t, res.UserConfig.List("plugins"), 1, "user config is not mutated")
}

func TestMergeAlias(t *testing.T) {
	merged := MergeAlias(map[string]any{"pkg": "/a", "src": "/a/src"}, map[string]any{"pkg": "/b"})
	assert.Equal(t, map[string]any{"pkg": "/b", "src": "/a/src"}, merged)
	assert.Equal(t, map[string]any{"x": "/x"}, MergeAlias(map[string]any{"x": "/x"}, nil))
}

func TestMergeModules(t *testing.T) {
	assert.Equal(t, []string{"node_modules", "/tools/node_modules", "src"},
		MergeModules([]string{"node_modules", "/tools/node_modules"}, []string{"src", "node_modules"}))
}

func TestBabelOptions(t *testing.T) {
	targets := func(o map[string]any) []any {
		preset := o["presets"].([]any)[0].([]any)[1].(map[string]any)
		return preset["targets"].(map[string]any)["browsers"].([]any)
	}
	assert.Len(t, targets(BabelOptions(Options{})), 2)
	assert.Contains(t, targets(BabelOptions(Options{Downlevel: true})), "ie>=9")
	assert.Contains(t, targets(BabelOptions(Options{Browsers: []string{"sauce-ie-11"}})), "ie>=9")
	assert.Contains(t, targets(BabelOptions(Options{Browsers: []string{"MSEdge"}})), "ie>=9")
	assert.Len(t, targets(BabelOptions(Options{Browsers: []string{"chrome", "firefox"}})), 2)

	plugins := BabelOptions(Options{})["plugins"].([]any)
	require.Len(t, plugins, 1)
	assert.Equal(t, map[string]any{"pragma": DefaultPragma}, plugins[0].([]any)[1])
}
