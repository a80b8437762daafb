package karmatic

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func TestLoadSettingsYAML(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, ".karmatic.yml"), `
files: ["test/**/*.spec.js"]
browsers: [chrome, firefox]
headless: false
inactivityTimeout: 45s
webpack:
  resolve:
    alias:
      lib: ./lib
pluginAllowlist: ["^DefinePlugin$"]
pluginTags:
  MyPlugin: [test-safe]
`)
	s, err := LoadSettings(dir, "", log.NewLogger(log.DiscardHandler()))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, ".karmatic.yml"), s.Path)
	assert.Equal(t, []string{"test/**/*.spec.js"}, s.Files)
	assert.Equal(t, []string{"chrome", "firefox"}, s.Browsers)
	require.NotNil(t, s.Headless)
	assert.False(t, *s.Headless)
	assert.Nil(t, s.Coverage)
	assert.Equal(t, map[string]any{"resolve": map[string]any{"alias": map[string]any{"lib": "./lib"}}}, s.Webpack)
	assert.Equal(t, []string{"^DefinePlugin$"}, s.PluginAllowlist)
	assert.Equal(t, map[string][]string{"MyPlugin": {"test-safe"}}, s.PluginTags)

	d, ok, err := s.Timeout()
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 45*time.Second, d)
}

func TestLoadSettingsTOML(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "conf", "karmatic.toml"), `
browsers = ["sauce-chrome-latest"]
coverage = false
rollupConfig = "build/rollup.test.js"

[rollup.output]
format = "iife"
`)
	s, err := LoadSettings(dir, "conf/karmatic.toml", nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"sauce-chrome-latest"}, s.Browsers)
	require.NotNil(t, s.Coverage)
	assert.False(t, *s.Coverage)
	assert.Equal(t, "build/rollup.test.js", s.RollupConfig)
	assert.Equal(t, map[string]any{"output": map[string]any{"format": "iife"}}, s.Rollup)
}

func TestLoadSettingsPriority(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, ".karmatic.toml"), `pragma = "React.createElement"`)
	writeFile(t, filepath.Join(dir, ".karmatic.yaml"), `pragma: h`)
	s, err := LoadSettings(dir, "", nil)
	require.NoError(t, err)
	assert.Equal(t, "h", s.Pragma)
}

func TestLoadSettingsErrors(t *testing.T) {
	dir := t.TempDir()
	s, err := LoadSettings(dir, "", nil)
	require.NoError(t, err)
	assert.Empty(t, s.Path)

	writeFile(t, filepath.Join(dir, "bad.yaml"), "files: [unterminated")
	_, err = LoadSettings(dir, "bad.yaml", nil)
	assert.ErrorContains(t, err, "failed to parse YAML")

	writeFile(t, filepath.Join(dir, "settings.json"), "{}")
	_, err = LoadSettings(dir, "settings.json", nil)
	assert.ErrorContains(t, err, "must be .yaml, .yml or .toml")

	_, err = LoadSettings(dir, "missing.yaml", nil)
	assert.Error(t, err)

	bad := &Settings{Path: "x.yaml", InactivityTimeout: "soon"}
	_, _, err = bad.Timeout()
	assert.ErrorContains(t, err, `invalid inactivityTimeout "soon"`)
}
