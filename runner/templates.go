package runner

import (
	"embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"text/template"
)

//go:embed templates/*.js.tmpl
var templateFS embed.FS

var templateFuncs = template.FuncMap{
	"json": func(v any) (string, error) {
		b, err := json.Marshal(v)
		return string(b), err
	},
}

// scriptData is what the node templates are rendered with.
type scriptData struct {
	RunID          string
	Root           string
	ConfigPath     string
	UserConfigPath string
	AppenderPath   string
	EvalEnv        string
	EvalArgv       string
	FrameStart     string
	FrameEnd       string
}

// getScriptTemplate returns the named node script template.
func getScriptTemplate(name string) (*template.Template, error) {
	tmpl, err := template.New(name).Funcs(templateFuncs).ParseFS(templateFS, "templates/"+name)
	if err == nil {
		return tmpl, nil
	}

	// Fall back to the copy next to this file
	_, filename, _, ok := runtime.Caller(0)
	if !ok {
		return nil, fmt.Errorf("unable to determine current file path")
	}
	templatePath := filepath.Join(filepath.Dir(filename), "templates", name)
	if _, err := os.Stat(templatePath); err != nil {
		return nil, fmt.Errorf("template not found at %s: %w", templatePath, err)
	}
	return template.New(name).Funcs(templateFuncs).ParseFiles(templatePath)
}

func renderScript(name, path string, data scriptData) error {
	tmpl, err := getScriptTemplate(name + ".tmpl")
	if err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := tmpl.Execute(f, data); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to render %s: %w", name, err)
	}
	return f.Close()
}
