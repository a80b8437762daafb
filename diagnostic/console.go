package diagnostic

import (
	"fmt"
	"io"
	"regexp"
	"strings"
	"sync"

	"github.com/acarl005/stripansi"
	"github.com/jedib0t/go-pretty/v6/text"
)

// ConsoleSink receives lines destined for the terminal.
type ConsoleSink interface {
	WriteLine(line string)
}

// WriterSink writes each line to W followed by a newline. It is safe for
// concurrent use.
type WriterSink struct {
	mu sync.Mutex
	W  io.Writer
}

func NewWriterSink(w io.Writer) *WriterSink {
	return &WriterSink{W: w}
}

func (s *WriterSink) WriteLine(line string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Fprintln(s.W, line) //nolint:errcheck
}

// SinkFunc adapts a function to ConsoleSink.
type SinkFunc func(string)

func (f SinkFunc) WriteLine(line string) { f(line) }

var (
	logLevelRe      = regexp.MustCompile(`(?s)^LOG\s*([A-Z]+): (.*)$`)
	logPlainRe      = regexp.MustCompile(`(?s)^(LOG): (.*)$`)
	browserPrefixRe = regexp.MustCompile(`^[\n\s]*HeadlessChrome`)
	browserLabelRe  = regexp.MustCompile(`^[\n\s]*.*?: `)
	successRe       = regexp.MustCompile(`\bSUCCESS\b`)

	badge       = text.Colors{text.BgHiBlue, text.FgWhite}
	badgeText   = text.Colors{text.FgBlue}
	passColour  = text.Colors{text.FgHiGreen}
	otherColour = text.Colors{text.FgMagenta}
)

// Prettifier tidies the runner's console output before passing it on:
// forwarded browser console calls get a level badge, the single browser's
// name prefix is removed and the per-browser TOTAL summary is dropped.
type Prettifier struct {
	Next ConsoleSink
}

func (p *Prettifier) WriteLine(line string) {
	out, keep := Prettify(line)
	if keep {
		p.Next.WriteLine(out)
	}
}

// Prettify rewrites one console line. It reports false for lines that should
// not be shown.
func Prettify(line string) (string, bool) {
	if strings.HasPrefix(strings.TrimSpace(stripansi.Strip(line)), "TOTAL: ") {
		return "", false
	}

	m := logLevelRe.FindStringSubmatch(line)
	if m == nil {
		m = logPlainRe.FindStringSubmatch(line)
	}
	if m != nil {
		line = badge.Sprint(" "+m[1]+": ") + " " + badgeText.Sprint(m[2])
	}

	if browserPrefixRe.MatchString(line) {
		colour := otherColour
		if successRe.MatchString(line) {
			colour = passColour
		}
		line = colour.Sprint(browserLabelRe.ReplaceAllString(line, ""))
	}
	return line, true
}
