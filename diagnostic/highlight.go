package diagnostic

import (
	"regexp"
	"strings"

	"github.com/jedib0t/go-pretty/v6/text"
)

var (
	targetLineRe = regexp.MustCompile(`^>\s`)
	caretLineRe  = regexp.MustCompile(`^\s+\|\s+\^`)

	emphasis = text.Colors{text.Bold, text.FgHiRed}
	body     = text.Colors{text.FgWhite}
	muted    = text.Colors{text.Faint}
)

// Highlight colours a code frame: the ">" marker and the caret stand out,
// every other line is dimmed. Only SGR escapes are added, so stripping them
// yields the input unchanged.
func Highlight(frame string) string {
	lines := strings.Split(frame, "\n")
	for i, line := range lines {
		switch {
		case targetLineRe.MatchString(line):
			lines[i] = emphasis.Sprint(">") + body.Sprint(line[1:])
		case caretLineRe.MatchString(line):
			bar := strings.Index(line, "|")
			caret := strings.LastIndex(line, "^")
			lines[i] = line[:bar] + muted.Sprint("|") + line[bar+1:caret] + emphasis.Sprint("^") + line[caret+1:]
		case line == "":
		default:
			lines[i] = muted.Sprint(line)
		}
	}
	return strings.Join(lines, "\n")
}
