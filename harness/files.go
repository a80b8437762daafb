package harness

import (
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strings"
)

// DefaultTestPattern matches test files when none are given.
const DefaultTestPattern = "**/{*.test.js,*_test.js}"

// SourceMapPreprocessor loads source maps of served files.
const SourceMapPreprocessor = "sourcemap"

var (
	recursivePatternRe = regexp.MustCompile(`^\*\*/(.+)$`)
	gitignoreNoiseRe   = regexp.MustCompile(`#.*$`)
)

// RootEntries lists the top-level names of root that test globs descend
// into: no dotfiles, no node_modules, nothing named in .gitignore.
func RootEntries(root string) []string {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil
	}
	ignored := gitignoreNames(root)
	var names []string
	for _, e := range entries {
		name := e.Name()
		if strings.HasPrefix(name, ".") || name == "node_modules" || slices.Contains(ignored, name) {
			continue
		}
		names = append(names, name)
	}
	return names
}

func gitignoreNames(root string) []string {
	b, err := os.ReadFile(filepath.Join(root, ".gitignore"))
	if err != nil {
		return nil
	}
	var names []string
	for _, line := range strings.Split(string(b), "\n") {
		line = strings.TrimSpace(gitignoreNoiseRe.ReplaceAllString(line, ""))
		line = strings.Trim(line, "/")
		if line != "" {
			names = append(names, line)
		}
	}
	return names
}

// RootGlob is the brace group of root entries, e.g. "{src,test}".
func RootGlob(entries []string) string {
	return "{" + strings.Join(entries, ",") + "}"
}

// TestFiles expands test patterns into karma file entries. A "**/x" pattern
// becomes "{entries}/**/x" plus "x", which keeps karma out of node_modules
// and ignored directories. The expect shim is always served first.
func TestFiles(patterns []string, rootGlob, expectShim string) []File {
	var nonEmpty []string
	for _, p := range patterns {
		if p != "" {
			nonEmpty = append(nonEmpty, p)
		}
	}
	if len(nonEmpty) == 0 {
		nonEmpty = []string{DefaultTestPattern}
	}

	files := []File{{Pattern: expectShim, Watched: false, Included: true, Served: true}}
	for _, p := range nonEmpty {
		m := recursivePatternRe.FindStringSubmatch(p)
		if m == nil {
			files = append(files, testFile(p))
			continue
		}
		files = append(files, testFile(rootGlob+"/"+m[0]), testFile(m[1]))
	}
	return files
}

func testFile(pattern string) File {
	return File{Pattern: pattern, Watched: true, Included: true, Served: true}
}

// Preprocessors assigns the source map preprocessor to everything under the
// root entries.
func Preprocessors(rootGlob string) map[string][]string {
	return map[string][]string{
		rootGlob + "/**/*": {SourceMapPreprocessor},
		rootGlob:           {SourceMapPreprocessor},
	}
}
