package diagnostic

import (
	"path/filepath"
	"strings"

	"github.com/ethereum/go-ethereum/log"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/ethereum-optimism/infra/op-karmatic/metrics"
	"github.com/ethereum-optimism/infra/op-karmatic/stacktrace"
)

var (
	gray = text.Colors{text.FgHiBlack}
	cyan = text.Colors{text.FgHiCyan}
)

// Config holds the collaborators of a Renderer.
type Config struct {
	// Root is the project directory relative frame paths are anchored to.
	Root     string
	Resolver stacktrace.Resolver
	Reader   SourceReader
	Log      log.Logger
	Color    bool
}

// Renderer formats raw failures. It holds no state between calls.
type Renderer struct {
	root     string
	resolver stacktrace.Resolver
	reader   SourceReader
	log      log.Logger
	color    bool
	rewriter *stacktrace.Rewriter
}

// NewRenderer creates a Renderer, filling in defaults for unset collaborators.
func NewRenderer(cfg Config) *Renderer {
	if cfg.Log == nil {
		cfg.Log = log.New()
	}
	if cfg.Reader == nil {
		logger := cfg.Log
		cfg.Reader = OSReader{OnError: func(path string, err error) {
			logger.Debug("source read failed", "file", path, "err", err)
		}}
	}
	return &Renderer{
		root:     cfg.Root,
		resolver: cfg.Resolver,
		reader:   cfg.Reader,
		log:      cfg.Log,
		color:    cfg.Color,
		rewriter: stacktrace.NewRewriter(cfg.Root),
	}
}

// Render is Format(Build(raw)).
func (r *Renderer) Render(raw string) string {
	return r.Format(r.Build(raw))
}

// Build normalizes raw into a Diagnostic.
func (r *Renderer) Build(raw string) Diagnostic {
	msg := UnwrapMessage(raw)
	msg = StripTransportPrefixes(msg)
	msg = r.rewriter.Rewrite(msg)

	message, frames := stacktrace.SplitMessage(msg)
	stacktrace.ResolveFrames(frames, r.resolver)
	return Diagnostic{Message: message, Frames: frames}
}

// Format lays out d as the message, the code frame of the nearest user frame
// when it can be read, and the frame list.
func (r *Renderer) Format(d Diagnostic) string {
	var b strings.Builder
	b.WriteString("\n")
	b.WriteString(indent(d.Message, 2))
	b.WriteString("\n\n")

	frame, ok := r.CodeFrame(d)
	if ok {
		b.WriteString(indent(frame, 2))
		b.WriteString("\n\n")
	}
	metrics.RecordDiagnostic(ok)

	b.WriteString(indent(r.frameList(d.Frames), 4))
	b.WriteString("\n")
	return b.String()
}

// CodeFrame renders the source around the nearest user frame of d.
func (r *Renderer) CodeFrame(d Diagnostic) (string, bool) {
	f, ok := d.NearestUserFrame()
	if !ok {
		return "", false
	}
	loc := f.Generated
	if f.Original != nil {
		loc = *f.Original
	}
	if strings.Contains(loc.File, "://") {
		r.log.Debug("no local source for frame", "file", loc.File)
		return "", false
	}

	path := r.localPath(loc.File)
	src, ok := r.reader.Read(path)
	if !ok {
		r.log.Warn("INTERNAL WARNING: failed to read stack frame code", "file", path)
		return "", false
	}
	frame, ok := CodeFrame(src, loc.Line, loc.Column)
	if !ok {
		r.log.Warn("INTERNAL WARNING: stack frame line outside of source", "file", path, "line", loc.Line)
		return "", false
	}
	if r.color {
		frame = Highlight(frame)
	}
	return frame, true
}

func (r *Renderer) frameList(frames []stacktrace.Frame) string {
	lines := make([]string, 0, len(frames))
	for _, f := range frames {
		if f.Name == "" || f.Kind == stacktrace.KindNative {
			lines = append(lines, r.paint(gray, strings.TrimSpace(f.Raw)))
			continue
		}
		var b strings.Builder
		b.WriteString(r.paint(gray, "at "+f.Name+" ("))
		b.WriteString(r.paint(cyan, f.Generated.String()))
		if f.Original != nil {
			b.WriteString(r.paint(gray, " <- "+f.Original.String()))
		}
		b.WriteString(r.paint(gray, ")"))
		lines = append(lines, b.String())
	}
	return strings.Join(lines, "\n")
}

func (r *Renderer) paint(c text.Colors, s string) string {
	if !r.color {
		return s
	}
	return c.Sprint(s)
}

func (r *Renderer) localPath(file string) string {
	p := filepath.FromSlash(file)
	if filepath.IsAbs(p) || r.root == "" {
		return p
	}
	return filepath.Join(r.root, p)
}

func indent(s string, n int) string {
	pad := strings.Repeat(" ", n)
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = pad + line
	}
	return strings.Join(lines, "\n")
}
