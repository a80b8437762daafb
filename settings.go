package karmatic

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/ethereum/go-ethereum/log"
	"gopkg.in/yaml.v3"
)

// SettingsFiles are the settings file names looked up in the project
// directory, in order.
var SettingsFiles = []string{".karmatic.yaml", ".karmatic.yml", ".karmatic.toml"}

// Settings are per-project defaults. Command line flags override them.
type Settings struct {
	Files             []string            `yaml:"files" toml:"files"`
	Browsers          []string            `yaml:"browsers" toml:"browsers"`
	Headless          *bool               `yaml:"headless" toml:"headless"`
	Coverage          *bool               `yaml:"coverage" toml:"coverage"`
	Downlevel         *bool               `yaml:"downlevel" toml:"downlevel"`
	Pragma            string              `yaml:"pragma" toml:"pragma"`
	ChromeDataDir     string              `yaml:"chromeDataDir" toml:"chromeDataDir"`
	InactivityTimeout string              `yaml:"inactivityTimeout" toml:"inactivityTimeout"`
	WebpackConfig     string              `yaml:"webpackConfig" toml:"webpackConfig"`
	RollupConfig      string              `yaml:"rollupConfig" toml:"rollupConfig"`
	Webpack           map[string]any      `yaml:"webpack" toml:"webpack"`
	Rollup            map[string]any      `yaml:"rollup" toml:"rollup"`
	PluginAllowlist   []string            `yaml:"pluginAllowlist" toml:"pluginAllowlist"`
	PluginTags        map[string][]string `yaml:"pluginTags" toml:"pluginTags"`

	// Path is the file the settings were read from.
	Path string `yaml:"-" toml:"-"`
}

// Timeout parses InactivityTimeout. It reports false when unset.
func (s *Settings) Timeout() (time.Duration, bool, error) {
	if s.InactivityTimeout == "" {
		return 0, false, nil
	}
	d, err := time.ParseDuration(s.InactivityTimeout)
	if err != nil {
		return 0, false, fmt.Errorf("%s: invalid inactivityTimeout %q: %w", s.Path, s.InactivityTimeout, err)
	}
	return d, true, nil
}

// LoadSettings reads the settings file at path, or when path is empty the
// first of SettingsFiles present in dir. Having no settings file is not an
// error; an empty Settings is returned.
func LoadSettings(dir, path string, logger log.Logger) (*Settings, error) {
	if logger == nil {
		logger = log.New()
	}
	if path != "" {
		if !filepath.IsAbs(path) {
			path = filepath.Join(dir, path)
		}
		return readSettings(path, logger)
	}
	for _, name := range SettingsFiles {
		candidate := filepath.Join(dir, name)
		if _, err := os.Stat(candidate); err != nil {
			continue
		}
		logger.Debug("Using settings file", "path", candidate)
		return readSettings(candidate, logger)
	}
	return &Settings{}, nil
}

func readSettings(path string, logger log.Logger) (*Settings, error) {
	s := &Settings{}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		meta, err := toml.DecodeFile(path, s)
		if err != nil {
			return nil, fmt.Errorf("%s: failed to parse TOML: %w", path, err)
		}
		for _, key := range meta.Undecoded() {
			logger.Warn("Ignoring unknown settings key", "path", path, "key", key.String())
		}
	case ".yaml", ".yml":
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read settings file: %w", err)
		}
		if err := yaml.Unmarshal(b, s); err != nil {
			return nil, fmt.Errorf("%s: failed to parse YAML: %w", path, err)
		}
	default:
		return nil, errors.New("settings file must be .yaml, .yml or .toml: " + path)
	}
	s.Path = path
	return s, nil
}
