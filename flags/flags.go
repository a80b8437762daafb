package flags

import (
	"time"

	"github.com/urfave/cli/v2"

	opservice "github.com/ethereum-optimism/optimism/op-service"
	oplog "github.com/ethereum-optimism/optimism/op-service/log"
	opmetrics "github.com/ethereum-optimism/optimism/op-service/metrics"
)

const EnvVarPrefix = "OP_KARMATIC"

var (
	ProjectDir = &cli.StringFlag{
		Name:    "project-dir",
		Value:   "",
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "PROJECT_DIR"),
		Usage:   "Project directory to test. Defaults to the working directory",
	}
	Files = &cli.StringSliceFlag{
		Name:    "files",
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "FILES"),
		Usage:   "Minimatch pattern(s) for test files",
	}
	Browsers = &cli.StringSliceFlag{
		Name:    "browsers",
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "BROWSERS"),
		Usage:   "Browsers to run in (eg. 'chrome,firefox,sauce-ie-11-windows_7')",
	}
	Headless = &cli.BoolFlag{
		Name:    "headless",
		Value:   true,
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "HEADLESS"),
		Usage:   "Run using Chrome Headless",
	}
	Coverage = &cli.BoolFlag{
		Name:    "coverage",
		Value:   true,
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "COVERAGE"),
		Usage:   "Report code coverage of tests",
	}
	Downlevel = &cli.BoolFlag{
		Name:    "downlevel",
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "DOWNLEVEL"),
		Usage:   "Downlevel syntax to ES5",
	}
	Pragma = &cli.StringFlag{
		Name:    "pragma",
		Value:   "h",
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "PRAGMA"),
		Usage:   "JSX pragma used when compiling tests",
	}
	ChromeDataDir = &cli.StringFlag{
		Name:    "chrome-data-dir",
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "CHROME_DATA_DIR"),
		Usage:   "Directory to save Chrome preferences in",
	}
	InactivityTimeout = &cli.DurationFlag{
		Name:    "inactivity-timeout",
		Value:   10 * time.Minute,
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "INACTIVITY_TIMEOUT"),
		Usage:   "How long a browser may stay silent before karma gives up on it",
	}
	WebpackConfig = &cli.StringFlag{
		Name:    "webpack-config",
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "WEBPACK_CONFIG"),
		Usage:   "Path to the project's webpack config. Discovered when unset",
	}
	RollupConfig = &cli.StringFlag{
		Name:    "rollup-config",
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "ROLLUP_CONFIG"),
		Usage:   "Path to the project's rollup config. Discovered when unset",
	}
	Settings = &cli.StringFlag{
		Name:    "settings",
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "SETTINGS"),
		Usage:   "Path to a settings file. Defaults to .karmatic.{yaml,yml,toml} in the project directory",
	}
	ToolchainDir = &cli.StringFlag{
		Name:    "toolchain-dir",
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "TOOLCHAIN_DIR"),
		Usage:   "Directory whose node_modules provides karma, its plugins and the bundler loaders",
	}
	NodeBinary = &cli.StringFlag{
		Name:    "node-binary",
		Value:   "node",
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "NODE_BINARY"),
		Usage:   "Path to the node binary used to run karma",
	}
	LogDir = &cli.StringFlag{
		Name:    "log-dir",
		Value:   "",
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "LOG_DIR"),
		Usage:   "Directory to store run logs in. Run logs are not kept when unset",
	}
	Watch = &cli.BoolFlag{
		Name:    "watch",
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "WATCH"),
		Usage:   "Enable watch mode (alias: op-karmatic watch)",
	}
)

var optionalFlags = []cli.Flag{
	ProjectDir,
	Files,
	Browsers,
	Headless,
	Coverage,
	Downlevel,
	Pragma,
	ChromeDataDir,
	InactivityTimeout,
	WebpackConfig,
	RollupConfig,
	Settings,
	ToolchainDir,
	NodeBinary,
	LogDir,
	Watch,
}

var Flags []cli.Flag

func init() {
	optionalFlags = append(optionalFlags, oplog.CLIFlags(EnvVarPrefix)...)
	optionalFlags = append(optionalFlags, opmetrics.CLIFlags(EnvVarPrefix)...)

	Flags = optionalFlags
}
