package harness

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ethereum-optimism/infra/op-karmatic/bundler"
	"github.com/ethereum-optimism/infra/op-karmatic/diagnostic"
	"github.com/ethereum-optimism/infra/op-karmatic/sourcemap"
	"github.com/ethereum/go-ethereum/log"
	"github.com/go-rod/rod/lib/launcher"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

// Environment variables read while building.
const (
	EnvChromeBin      = "CHROME_BIN"
	EnvSauceUsername  = "SAUCE_USERNAME"
	EnvSauceAccessKey = "SAUCE_ACCESS_KEY"
)

// ExpectShim is the jest expect build injected ahead of the tests.
const ExpectShim = "expect/build-es5/index.js"

var basePlugins = []string{
	"karma-chrome-launcher",
	"karma-jasmine",
	"karma-spec-reporter",
	"karma-min-reporter",
	"karma-sourcemap-loader",
}

// Options is the user facing configuration of a run.
type Options struct {
	// Root is the absolute project directory.
	Root         string
	ToolchainDir string

	Files             []string
	Browsers          []string
	Headless          bool
	Watch             bool
	Coverage          bool
	Downlevel         bool
	Pragma            string
	ChromeDataDir     string
	InactivityTimeout time.Duration

	WebpackConfig string
	RollupConfig  string
	WebpackObject map[string]any
	RollupObject  map[string]any
	Allowlist     *bundler.Allowlist
	PluginTags    map[string][]string
}

// Synthesizer produces the bundler block.
type Synthesizer interface {
	Synthesize(ctx context.Context) (*bundler.Result, error)
}

// Builder assembles the karma configuration.
type Builder struct {
	opts     Options
	log      log.Logger
	synth    Synthesizer
	renderer *diagnostic.Renderer
	tracer   trace.Tracer

	lookupEnv func(string) (string, bool)
	lookPath  func() (string, bool)
}

// NewBuilder returns a Builder for opts.
func NewBuilder(opts Options, logger log.Logger) *Builder {
	if logger == nil {
		logger = log.New()
	}
	synth := bundler.NewSynthesizer(bundler.Options{
		Root:          opts.Root,
		ToolchainDir:  opts.ToolchainDir,
		Coverage:      opts.Coverage,
		Downlevel:     opts.Downlevel,
		Browsers:      opts.Browsers,
		Pragma:        opts.Pragma,
		WebpackConfig: opts.WebpackConfig,
		RollupConfig:  opts.RollupConfig,
		WebpackObject: opts.WebpackObject,
		RollupObject:  opts.RollupObject,
		Allowlist:     opts.Allowlist,
		PluginTags:    opts.PluginTags,
	}, nil, logger)
	return &Builder{
		opts:  opts,
		log:   logger,
		synth: synth,
		renderer: diagnostic.NewRenderer(diagnostic.Config{
			Root:     opts.Root,
			Resolver: sourcemap.NewFileResolver(opts.Root, logger),
			Log:      logger,
			Color:    true,
		}),
		tracer:    otel.Tracer("harness"),
		lookupEnv: os.LookupEnv,
		lookPath:  launcher.LookPath,
	}
}

// Renderer is the diagnostic renderer registered as FormatError.
func (b *Builder) Renderer() *diagnostic.Renderer {
	return b.renderer
}

// Build assembles the configuration. A SauceLabs browser without
// credentials fails before anything else is computed.
func (b *Builder) Build(ctx context.Context) (*Config, error) {
	ctx, span := b.tracer.Start(ctx, "build harness config")
	defer span.End()

	browsers := ResolveBrowsers(b.opts.Browsers, b.opts.Headless)
	if browsers.SauceLabs {
		for _, v := range []string{EnvSauceUsername, EnvSauceAccessKey} {
			if val, ok := b.lookupEnv(v); !ok || val == "" {
				err := &ConfigError{Variable: v, Reason: "missing SauceLabs auth configuration"}
				span.RecordError(err)
				return nil, err
			}
		}
	}

	env := map[string]string{}
	if bin, ok := b.lookupEnv(EnvChromeBin); ok && bin != "" {
		env[EnvChromeBin] = bin
	} else if bin, ok := b.lookPath(); ok {
		env[EnvChromeBin] = bin
	} else {
		b.log.Debug("No Chrome binary found, leaving it to the launcher")
	}

	plugins := append([]string{}, basePlugins...)
	if b.opts.Coverage {
		plugins = append(plugins, "karma-coverage")
	}
	plugins = append(plugins, browsers.Plugins...)
	for i, p := range plugins {
		plugins[i] = bundler.ToolPath(b.opts.ToolchainDir, p)
	}

	reporters := []string{"spec"}
	if b.opts.Watch {
		reporters = []string{"min"}
	}
	if b.opts.Coverage {
		reporters = append(reporters, "coverage")
	}
	if browsers.SauceLabs {
		reporters = append(reporters, "saucelabs")
	}

	rootGlob := RootGlob(RootEntries(b.opts.Root))
	cfg := &Config{
		BasePath:                 b.opts.Root,
		Frameworks:               []string{"jasmine"},
		Plugins:                  plugins,
		Reporters:                reporters,
		Browsers:                 browsers.Names,
		CustomLaunchers:          b.launchers(browsers),
		Files:                    TestFiles(b.opts.Files, rootGlob, b.expectShim()),
		Preprocessors:            Preprocessors(rootGlob),
		CoverageReporter:         coverageReporter(),
		Client:                   map[string]any{"captureConsole": true, "jasmine": map[string]any{"random": false}},
		BrowserNoActivityTimeout: int(b.opts.InactivityTimeout / time.Millisecond),
		SingleRun:                !b.opts.Watch,
		Colors:                   true,
		LogLevel:                 "ERROR",
		FormatError:              b.renderer.Render,
		Env:                      env,
	}
	if browsers.SauceLabs {
		cfg.SauceLabs = &SauceLabs{}
		if pkg, ok := bundler.LoadPackage(b.opts.Root); ok {
			cfg.SauceLabs.TestName = pkg.Name
		}
	}

	res, err := b.synth.Synthesize(ctx)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	if err := ApplyBundler(cfg, res); err != nil {
		span.RecordError(err)
		return nil, err
	}
	return cfg, nil
}

func (b *Builder) launchers(browsers Browsers) map[string]Launcher {
	dataDir := b.opts.ChromeDataDir
	if dataDir != "" && !filepath.IsAbs(dataDir) {
		dataDir = filepath.Join(b.opts.Root, dataDir)
	}
	flags := []string{"--no-sandbox"}
	launchers := map[string]Launcher{
		ChromeLauncher:         {Base: "Chrome", ChromeDataDir: dataDir, Flags: flags},
		ChromeHeadlessLauncher: {Base: "ChromeHeadless", ChromeDataDir: dataDir, Flags: flags},
	}
	for name, l := range browsers.Launchers {
		launchers[name] = l
	}
	return launchers
}

func (b *Builder) expectShim() string {
	if b.opts.ToolchainDir != "" {
		return bundler.ToolPath(b.opts.ToolchainDir, ExpectShim)
	}
	return filepath.Join(b.opts.Root, "node_modules", filepath.FromSlash(ExpectShim))
}

func coverageReporter() map[string]any {
	return map[string]any{
		"reporters": []any{
			map[string]any{"type": "text-summary"},
			map[string]any{"type": "html"},
			map[string]any{"type": "lcovonly", "subdir": ".", "file": "lcov.info"},
		},
	}
}

// ApplyBundler wires a synthesized bundler block into cfg: its
// preprocessor runs first on every pattern, its karma plugin is loaded, and
// rollup builds turn off karma's own file watching.
func ApplyBundler(cfg *Config, res *bundler.Result) error {
	if res == nil {
		return fmt.Errorf("no bundler configuration synthesized")
	}
	if res.Kind != bundler.Webpack && res.Kind != bundler.Rollup {
		return fmt.Errorf("unknown bundler %q", res.Kind)
	}
	for pattern, list := range cfg.Preprocessors {
		cfg.Preprocessors[pattern] = append([]string{res.Preprocessor}, list...)
	}
	cfg.Plugins = append(cfg.Plugins, res.KarmaPlugin)
	cfg.Bundler = res.Kind.String()
	if res.UserConfig != nil {
		cfg.UserConfig = res.UserConfig.Path
	}

	switch res.Kind {
	case bundler.Webpack:
		cfg.Webpack = res.Block
		cfg.WebpackMiddleware = res.Middleware
	case bundler.Rollup:
		cfg.RollupPreprocessor = res.Block
		for i := range cfg.Files {
			cfg.Files[i].Watched = false
		}
	}
	return nil
}
