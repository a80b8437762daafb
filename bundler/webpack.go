package bundler

import (
	"context"
	"maps"
	"path/filepath"
)

// Resolve is a webpack resolve or resolveLoader block.
type Resolve struct {
	// Alias values are normally paths but user configs may use other shapes.
	Alias   map[string]any
	Modules []string
	// Extra holds the remaining user keys, emitted unchanged.
	Extra map[string]any
}

// Config is the synthesized webpack configuration.
type Config struct {
	Rules         []Rule
	Resolve       Resolve
	ResolveLoader Resolve
	Plugins       []Plugin
	Node          map[string]any
	Mode          string
}

// WebpackMiddleware keeps the dev middleware quiet unless the build fails.
func WebpackMiddleware() map[string]any {
	return map[string]any{
		"noInfo":   true,
		"logLevel": "error",
		"stats":    "errors-only",
	}
}

func (s *Synthesizer) webpack(ctx context.Context, det Detection) (*Result, error) {
	user, err := s.probe.Discover(ctx, Webpack, s.opts.WebpackConfig, s.opts.WebpackObject)
	if err != nil {
		return nil, err
	}
	pkg, _ := LoadPackage(s.opts.Root)
	cfg := BuildWebpackConfig(s.opts, pkg, user)
	profile := ProfileFor(det.Major)
	return &Result{
		Kind:         Webpack,
		Block:        cfg.Emit(profile),
		Middleware:   WebpackMiddleware(),
		Preprocessor: Webpack.String(),
		KarmaPlugin:  ToolPath(s.opts.ToolchainDir, Webpack.KarmaPlugin()),
		Detection:    det,
		Profile:      profile,
		UserConfig:   user,
		Webpack:      cfg,
	}, nil
}

// BuildWebpackConfig merges user (which may be nil) with the test defaults.
func BuildWebpackConfig(opts Options, pkg *Package, user *UserConfig) *Config {
	if user == nil {
		user = &UserConfig{Kind: Webpack, Raw: map[string]any{}}
	}
	babel := BabelOptions(opts)
	cfg := &Config{
		Rules:   MergeRules(opts.Root, user.Rules(), ToolPath(opts.ToolchainDir, "babel-loader"), babel),
		Plugins: FilterPlugins(user.Plugins(), opts.Allowlist, opts.PluginTags),
		Node:    maps.Clone(user.Map("node")),
		Mode:    user.String("mode"),
	}
	if cfg.Node == nil {
		cfg.Node = map[string]any{}
	}
	if cfg.Mode == "" {
		cfg.Mode = "development"
	}

	alias := defaultAlias(opts.Root, pkg)
	modules := defaultModules(opts.ToolchainDir)
	cfg.Resolve = mergeResolve(user.Map("resolve"), alias, modules)
	cfg.ResolveLoader = mergeResolve(user.Map("resolveLoader"), alias, modules)
	return cfg
}

func defaultAlias(root string, pkg *Package) map[string]any {
	alias := map[string]any{"src": filepath.Join(root, "src")}
	if pkg != nil && pkg.Name != "" {
		alias[pkg.Name] = root
	}
	return alias
}

func defaultModules(toolchainDir string) []string {
	modules := []string{"node_modules"}
	if toolchainDir != "" {
		modules = append(modules, filepath.Join(toolchainDir, "node_modules"))
	}
	return modules
}

// mergeResolve layers a user resolve block over the defaults. User alias
// keys win; modules are the defaults followed by the user's, de-duplicated.
func mergeResolve(user map[string]any, alias map[string]any, modules []string) Resolve {
	r := Resolve{
		Alias:   MergeAlias(alias, asMap(user["alias"])),
		Modules: MergeModules(modules, asStrings(user["modules"])),
		Extra:   map[string]any{},
	}
	for k, v := range user {
		if k != "alias" && k != "modules" {
			r.Extra[k] = v
		}
	}
	return r
}

// MergeAlias returns defaults overlaid with user.
func MergeAlias(defaults, user map[string]any) map[string]any {
	out := maps.Clone(defaults)
	if out == nil {
		out = map[string]any{}
	}
	maps.Copy(out, user)
	return out
}

// MergeModules concatenates defaults and user, keeping the first occurrence
// of each entry.
func MergeModules(defaults, user []string) []string {
	seen := make(map[string]bool, len(defaults)+len(user))
	var out []string
	for _, list := range [][]string{defaults, user} {
		for _, m := range list {
			if !seen[m] {
				seen[m] = true
				out = append(out, m)
			}
		}
	}
	return out
}

func asMap(v any) map[string]any {
	m, _ := v.(map[string]any)
	return m
}

func asStrings(v any) []string {
	list, _ := v.([]any)
	out := make([]string, 0, len(list))
	for _, item := range list {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func (r Resolve) emit() map[string]any {
	out := maps.Clone(r.Extra)
	if out == nil {
		out = map[string]any{}
	}
	modules := make([]any, len(r.Modules))
	for i, m := range r.Modules {
		modules[i] = m
	}
	out["modules"] = modules
	out["alias"] = r.Alias
	return out
}

// Emit renders the config in the shape profile expects.
func (c *Config) Emit(profile Profile) map[string]any {
	plugins := make([]any, len(c.Plugins))
	for i, p := range c.Plugins {
		plugins[i] = p.Value
	}
	block := map[string]any{
		"devtool":       "inline-source-map",
		"module":        profile.Emit(c.Rules),
		"resolve":       c.Resolve.emit(),
		"resolveLoader": c.ResolveLoader.emit(),
		"plugins":       plugins,
		"node":          c.Node,
		"performance":   map[string]any{"hints": false},
	}
	if profile.HasMode() {
		block["mode"] = c.Mode
	}
	return block
}
