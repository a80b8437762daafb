package karmatic

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/ethereum/go-ethereum/log"
	"github.com/urfave/cli/v2"

	"github.com/ethereum-optimism/infra/op-karmatic/bundler"
	"github.com/ethereum-optimism/infra/op-karmatic/flags"
	"github.com/ethereum-optimism/infra/op-karmatic/harness"
)

// Mode is the command a run was started with.
type Mode int

const (
	ModeRun Mode = iota
	ModeWatch
	// ModeDebug watches in a visible browser without coverage.
	ModeDebug
)

func (m Mode) String() string {
	switch m {
	case ModeRun:
		return "run"
	case ModeWatch:
		return "watch"
	case ModeDebug:
		return "debug"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// Config holds the application configuration
type Config struct {
	Mode       Mode
	Harness    harness.Options
	NodeBinary string
	LogDir     string    // Directory to store run logs, empty to keep none
	Settings   *Settings // Project settings the flags were merged over
	Log        log.Logger
}

// Watch reports whether karma keeps running after the first pass.
func (c *Config) Watch() bool {
	return c.Harness.Watch
}

// NewConfig creates a Config from the cli context. Positional arguments
// replace --files. Flags that are set win over the project settings file,
// which wins over flag defaults; debug mode turns headless and coverage off
// unless the flags say otherwise.
func NewConfig(ctx *cli.Context, logger log.Logger, mode Mode) (*Config, error) {
	if logger == nil {
		logger = log.New()
	}

	root := ctx.String(flags.ProjectDir.Name)
	if root == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to determine working directory: %w", err)
		}
		root = wd
	}
	root, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve absolute path for project directory '%s': %w", root, err)
	}

	settings, err := LoadSettings(root, ctx.String(flags.Settings.Name), logger)
	if err != nil {
		return nil, fmt.Errorf("failed to load settings: %w", err)
	}

	files := ctx.Args().Slice()
	if len(files) == 0 {
		files = stringSlice(ctx, flags.Files, settings.Files)
	}

	headless := boolOption(ctx, flags.Headless, settings.Headless)
	coverage := boolOption(ctx, flags.Coverage, settings.Coverage)
	if mode == ModeDebug {
		if !ctx.IsSet(flags.Headless.Name) {
			headless = false
		}
		if !ctx.IsSet(flags.Coverage.Name) {
			coverage = false
		}
	}

	timeout := ctx.Duration(flags.InactivityTimeout.Name)
	if !ctx.IsSet(flags.InactivityTimeout.Name) {
		d, ok, err := settings.Timeout()
		if err != nil {
			return nil, err
		}
		if ok {
			timeout = d
		}
	}

	allowlist, err := bundler.NewAllowlist(settings.PluginAllowlist)
	if err != nil {
		return nil, fmt.Errorf("invalid pluginAllowlist in %s: %w", settings.Path, err)
	}

	toolchain := ctx.String(flags.ToolchainDir.Name)
	if toolchain != "" {
		if toolchain, err = filepath.Abs(toolchain); err != nil {
			return nil, fmt.Errorf("failed to resolve absolute path for toolchain directory: %w", err)
		}
	}

	logDir := ctx.String(flags.LogDir.Name)
	if logDir != "" {
		if logDir, err = filepath.Abs(logDir); err != nil {
			return nil, fmt.Errorf("failed to resolve absolute path for log directory '%s': %w", logDir, err)
		}
	}

	return &Config{
		Mode: mode,
		Harness: harness.Options{
			Root:              root,
			ToolchainDir:      toolchain,
			Files:             files,
			Browsers:          stringSlice(ctx, flags.Browsers, settings.Browsers),
			Headless:          headless,
			Watch:             mode != ModeRun || ctx.Bool(flags.Watch.Name),
			Coverage:          coverage,
			Downlevel:         boolOption(ctx, flags.Downlevel, settings.Downlevel),
			Pragma:            stringOption(ctx, flags.Pragma, settings.Pragma),
			ChromeDataDir:     stringOption(ctx, flags.ChromeDataDir, settings.ChromeDataDir),
			InactivityTimeout: timeout,
			WebpackConfig:     projectPath(root, stringOption(ctx, flags.WebpackConfig, settings.WebpackConfig)),
			RollupConfig:      projectPath(root, stringOption(ctx, flags.RollupConfig, settings.RollupConfig)),
			WebpackObject:     settings.Webpack,
			RollupObject:      settings.Rollup,
			Allowlist:         allowlist,
			PluginTags:        settings.PluginTags,
		},
		NodeBinary: ctx.String(flags.NodeBinary.Name),
		LogDir:     logDir,
		Settings:   settings,
		Log:        logger,
	}, nil
}

func boolOption(ctx *cli.Context, f *cli.BoolFlag, setting *bool) bool {
	if !ctx.IsSet(f.Name) && setting != nil {
		return *setting
	}
	return ctx.Bool(f.Name)
}

func stringOption(ctx *cli.Context, f *cli.StringFlag, setting string) string {
	if !ctx.IsSet(f.Name) && setting != "" {
		return setting
	}
	return ctx.String(f.Name)
}

func stringSlice(ctx *cli.Context, f *cli.StringSliceFlag, setting []string) []string {
	if !ctx.IsSet(f.Name) && len(setting) > 0 {
		return setting
	}
	return ctx.StringSlice(f.Name)
}

func projectPath(root, p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(root, p)
}

