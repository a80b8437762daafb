// Package harness assembles the karma configuration: test files, browser
// launchers, plugins and reporters, with the bundler block synthesized by
// the bundler package.
package harness

// File is a karma files entry.
type File struct {
	Pattern  string `json:"pattern" yaml:"pattern"`
	Watched  bool   `json:"watched" yaml:"watched"`
	Included bool   `json:"included" yaml:"included"`
	Served   bool   `json:"served" yaml:"served"`
}

// Launcher is a karma custom launcher definition.
type Launcher struct {
	Base          string   `json:"base" yaml:"base"`
	Flags         []string `json:"flags,omitempty" yaml:"flags,omitempty"`
	ChromeDataDir string   `json:"chromeDataDir,omitempty" yaml:"chromeDataDir,omitempty"`
	BrowserName   string   `json:"browserName,omitempty" yaml:"browserName,omitempty"`
	Version       string   `json:"version,omitempty" yaml:"version,omitempty"`
	Platform      string   `json:"platform,omitempty" yaml:"platform,omitempty"`
}

// SauceLabs holds the sauce launcher options.
type SauceLabs struct {
	TestName string `json:"testName,omitempty" yaml:"testName,omitempty"`
}

// Config is the karma configuration handed to the test runner. Everything
// except FormatError and Env serialises into karma's config object.
type Config struct {
	BasePath                 string              `json:"basePath" yaml:"basePath"`
	Frameworks               []string            `json:"frameworks" yaml:"frameworks"`
	Plugins                  []string            `json:"plugins" yaml:"plugins"`
	Reporters                []string            `json:"reporters" yaml:"reporters"`
	Browsers                 []string            `json:"browsers" yaml:"browsers"`
	CustomLaunchers          map[string]Launcher `json:"customLaunchers" yaml:"customLaunchers"`
	Files                    []File              `json:"files" yaml:"files"`
	Preprocessors            map[string][]string `json:"preprocessors" yaml:"preprocessors"`
	Webpack                  map[string]any      `json:"webpack,omitempty" yaml:"webpack,omitempty"`
	WebpackMiddleware        map[string]any      `json:"webpackMiddleware,omitempty" yaml:"webpackMiddleware,omitempty"`
	RollupPreprocessor       map[string]any      `json:"rollupPreprocessor,omitempty" yaml:"rollupPreprocessor,omitempty"`
	CoverageReporter         map[string]any      `json:"coverageReporter,omitempty" yaml:"coverageReporter,omitempty"`
	SauceLabs                *SauceLabs          `json:"sauceLabs,omitempty" yaml:"sauceLabs,omitempty"`
	Client                   map[string]any      `json:"client" yaml:"client"`
	BrowserNoActivityTimeout int                 `json:"browserNoActivityTimeout,omitempty" yaml:"browserNoActivityTimeout,omitempty"`
	SingleRun                bool                `json:"singleRun" yaml:"singleRun"`
	Colors                   bool                `json:"colors" yaml:"colors"`
	LogLevel                 string              `json:"logLevel" yaml:"logLevel"`

	// FormatError renders every raw failure karma reports.
	FormatError func(string) string `json:"-" yaml:"-"`
	// Env is added to the test runner's environment.
	Env map[string]string `json:"-" yaml:"-"`
	// Bundler names the bundler the config was synthesized for.
	Bundler string `json:"-" yaml:"-"`
	// UserConfig is the bundler config file that references in the
	// bundler block point into, if one was loaded from disk.
	UserConfig string `json:"-" yaml:"-"`
}
