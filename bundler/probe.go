package bundler

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/log"
	"golang.org/x/mod/semver"
)

// DefaultVersion is assumed when an installed bundler does not declare one.
const DefaultVersion = "3.0.0"

// ConfigLoader evaluates a bundler config file.
type ConfigLoader interface {
	Load(ctx context.Context, path string) (map[string]any, error)
}

// Detection describes an installed bundler.
type Detection struct {
	Available bool
	Version   string
	Major     int
	// Dir is the package directory the bundler was found in.
	Dir string
}

// Probe finds installed bundlers and the project's own bundler config.
type Probe struct {
	Root string
	// ToolchainDir is where karmatic's own node dependencies are installed.
	// It is searched after the project.
	ToolchainDir string
	Log          log.Logger
	Loader       ConfigLoader
}

// NewProbe returns a Probe for the project at root.
func NewProbe(root, toolchainDir string, logger log.Logger) *Probe {
	if logger == nil {
		logger = log.New()
	}
	return &Probe{
		Root:         root,
		ToolchainDir: toolchainDir,
		Log:          logger,
		Loader:       NewLoader(root, logger),
	}
}

// Detect looks for node_modules/<kind> from the project root upwards, then in
// the toolchain directory. A missing bundler is not an error.
func (p *Probe) Detect(ctx context.Context, kind Kind) Detection {
	var dirs []string
	for dir := p.Root; ; {
		dirs = append(dirs, filepath.Join(dir, "node_modules", string(kind)))
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	if p.ToolchainDir != "" {
		dirs = append(dirs, filepath.Join(p.ToolchainDir, "node_modules", string(kind)))
	}

	for _, dir := range dirs {
		if ctx.Err() != nil {
			break
		}
		b, err := os.ReadFile(filepath.Join(dir, "package.json"))
		if err != nil {
			continue
		}
		var meta struct {
			Version string `json:"version"`
		}
		if err := json.Unmarshal(b, &meta); err != nil {
			p.Log.Debug("Ignoring unreadable bundler package", "bundler", kind, "dir", dir, "err", err)
			continue
		}
		version := meta.Version
		if version == "" {
			version = DefaultVersion
		}
		d := Detection{Available: true, Version: version, Major: majorVersion(version), Dir: dir}
		p.Log.Debug("Detected bundler", "bundler", kind, "version", version, "dir", dir)
		return d
	}
	return Detection{}
}

// majorVersion parses the major component of a semantic version. Versions
// that are not valid semver fall back to the default major.
func majorVersion(version string) int {
	v := version
	if !strings.HasPrefix(v, "v") {
		v = "v" + v
	}
	if !semver.IsValid(v) {
		v = "v" + DefaultVersion
	}
	n, err := strconv.Atoi(strings.TrimPrefix(semver.Major(v), "v"))
	if err != nil {
		return 0
	}
	return n
}

var configFlagRe = regexp.MustCompile(`(?:^|\s)(?:-c|--config)(?:\s+|=)(?:"([^"]*)"|'([^']*)'|(\S+))`)

// scriptConfigPaths returns the config paths passed to kind in the
// project's package scripts, in declaration order.
func scriptConfigPaths(kind Kind, pkg *Package) []string {
	if pkg == nil {
		return nil
	}
	invokes := regexp.MustCompile(`\b` + regexp.QuoteMeta(string(kind)) + `\b[^&|]*(?:-c|--config)\b`)
	var paths []string
	for _, s := range pkg.Scripts {
		loc := invokes.FindStringIndex(s.Command)
		if loc == nil {
			continue
		}
		m := configFlagRe.FindStringSubmatch(s.Command[loc[0]:])
		if m == nil {
			continue
		}
		for _, group := range m[1:] {
			if group != "" {
				paths = append(paths, group)
				break
			}
		}
	}
	return paths
}

// Candidates lists the config paths tried for kind, highest priority first:
// the fixed file names, then paths found in package scripts.
func (p *Probe) Candidates(kind Kind, pkg *Package) []string {
	var out []string
	seen := make(map[string]bool)
	for _, name := range append(kind.ConfigCandidates(), scriptConfigPaths(kind, pkg)...) {
		path := name
		if !filepath.IsAbs(path) {
			path = filepath.Join(p.Root, path)
		}
		if !seen[path] {
			seen[path] = true
			out = append(out, path)
		}
	}
	return out
}

// Discover returns the project's config for kind. An explicit object wins,
// then an explicit path (which must load), then the first candidate that
// exists and evaluates. No config at all yields nil without error.
func (p *Probe) Discover(ctx context.Context, kind Kind, explicitPath string, explicitObject map[string]any) (*UserConfig, error) {
	if explicitObject != nil {
		p.Log.Debug("Using bundler config from settings", "bundler", kind)
		return &UserConfig{Kind: kind, Raw: explicitObject}, nil
	}
	if explicitPath != "" {
		path := explicitPath
		if !filepath.IsAbs(path) {
			path = filepath.Join(p.Root, path)
		}
		raw, err := p.Loader.Load(ctx, path)
		if err != nil {
			return nil, fmt.Errorf("failed to load %s config %s: %w", kind, explicitPath, err)
		}
		p.Log.Debug("Using explicit bundler config", "bundler", kind, "file", path)
		return &UserConfig{Kind: kind, Path: path, Raw: raw}, nil
	}

	pkg, _ := LoadPackage(p.Root)
	for _, path := range p.Candidates(kind, pkg) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		info, err := os.Stat(path)
		if err != nil || info.IsDir() {
			continue
		}
		raw, err := p.Loader.Load(ctx, path)
		if err != nil {
			p.Log.Warn("Failed to load bundler config, trying the next candidate", "bundler", kind, "file", path, "err", err)
			continue
		}
		p.Log.Debug("Discovered bundler config", "bundler", kind, "file", path)
		return &UserConfig{Kind: kind, Path: path, Raw: raw}, nil
	}
	return nil, nil
}
