package karmatic

import (
	"context"
	"fmt"
	"io"
	"sort"

	"github.com/jedib0t/go-pretty/v6/table"
	"gopkg.in/yaml.v3"

	"github.com/ethereum-optimism/infra/op-karmatic/harness"
)

// PrintConfig builds the karma configuration for config without running it
// and writes it to w.
func PrintConfig(ctx context.Context, config *Config, w io.Writer) error {
	cfg, err := harness.NewBuilder(config.Harness, config.Log).Build(ctx)
	if err != nil {
		return fmt.Errorf("failed to build karma config: %w", err)
	}
	return WriteConfig(w, cfg)
}

// WriteConfig writes cfg as YAML followed by a table of the launchers its
// browsers use.
func WriteConfig(w io.Writer, cfg *harness.Config) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode karma config: %w", err)
	}
	if err := enc.Close(); err != nil {
		return err
	}

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetTitle(fmt.Sprintf("Launchers (%s)", cfg.Bundler))
	t.AppendHeader(table.Row{"Browser", "Base", "Name", "Version", "Platform", "Flags"})

	names := append([]string(nil), cfg.Browsers...)
	sort.Strings(names)
	for _, name := range names {
		l, ok := cfg.CustomLaunchers[name]
		if !ok {
			t.AppendRow(table.Row{name, name, "", "", "", ""})
			continue
		}
		t.AppendRow(table.Row{name, l.Base, l.BrowserName, l.Version, l.Platform, fmt.Sprint(l.Flags)})
	}
	t.SetStyle(table.StyleLight)
	t.Render()
	return nil
}
