package bundler

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Script is one entry of a package's "scripts" map.
type Script struct {
	Name    string
	Command string
}

// Package is the subset of package.json the synthesizer reads.
type Package struct {
	Name    string
	Version string
	// Scripts keeps the declaration order of package.json.
	Scripts []Script
}

// LoadPackage reads <dir>/package.json. A missing or unreadable file yields
// false; it never fails synthesis.
func LoadPackage(dir string) (*Package, bool) {
	b, err := os.ReadFile(filepath.Join(dir, "package.json"))
	if err != nil {
		return nil, false
	}
	pkg, err := ParsePackage(b)
	if err != nil {
		return nil, false
	}
	return pkg, true
}

// ParsePackage decodes package.json content.
func ParsePackage(b []byte) (*Package, error) {
	var meta struct {
		Name    string          `json:"name"`
		Version string          `json:"version"`
		Scripts json.RawMessage `json:"scripts"`
	}
	if err := json.Unmarshal(b, &meta); err != nil {
		return nil, fmt.Errorf("invalid package.json: %w", err)
	}
	pkg := &Package{Name: meta.Name, Version: meta.Version}
	if len(meta.Scripts) == 0 || string(meta.Scripts) == "null" {
		return pkg, nil
	}
	scripts, err := orderedScripts(meta.Scripts)
	if err != nil {
		return nil, fmt.Errorf("invalid package.json scripts: %w", err)
	}
	pkg.Scripts = scripts
	return pkg, nil
}

// orderedScripts walks the scripts object token by token so that the
// declaration order survives.
func orderedScripts(raw json.RawMessage) ([]Script, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, errors.New("scripts is not an object")
	}
	var scripts []Script
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		name, _ := tok.(string)
		var value any
		if err := dec.Decode(&value); err != nil {
			return nil, err
		}
		if cmd, ok := value.(string); ok {
			scripts = append(scripts, Script{Name: name, Command: cmd})
		}
	}
	if _, err := dec.Token(); err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	return scripts, nil
}
