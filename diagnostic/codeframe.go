package diagnostic

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/mattn/go-runewidth"
)

const (
	linesBefore = 2
	linesAfter  = 2
)

// CodeFrame renders the lines around line (1-based) of source, marking the
// target line with ">" and the column (1-based) with a caret on the line
// below it. It reports false when line is outside the file.
//
//	   8 | const a = 1;
//	   9 |
//	> 10 | foo(a);
//	     | ^
//	  11 | bar();
func CodeFrame(source string, line, column int) (string, bool) {
	lines := strings.Split(strings.ReplaceAll(source, "\r\n", "\n"), "\n")
	if line < 1 || line > len(lines) {
		return "", false
	}
	start := max(1, line-linesBefore)
	end := min(len(lines), line+linesAfter)
	width := len(strconv.Itoa(end))

	var out []string
	for n := start; n <= end; n++ {
		text := lines[n-1]
		marker := "  "
		if n == line {
			marker = "> "
		}
		out = append(out, gutterLine(marker, fmt.Sprintf("%*d", width, n), text))
		if n == line && column > 0 {
			out = append(out, gutterLine("  ", strings.Repeat(" ", width), caretPad(text, column)+"^"))
		}
	}
	return strings.Join(out, "\n"), true
}

func gutterLine(marker, number, text string) string {
	if text == "" {
		return marker + number + " |"
	}
	return marker + number + " | " + text
}

// caretPad reproduces the visual offset of column within text. Tabs are kept
// so the caret lines up whatever the tab width; wide runes take two cells.
func caretPad(text string, column int) string {
	var b strings.Builder
	runes := []rune(text)
	for i := 0; i < column-1; i++ {
		if i >= len(runes) {
			b.WriteByte(' ')
			continue
		}
		r := runes[i]
		if r == '\t' {
			b.WriteByte('\t')
			continue
		}
		b.WriteString(strings.Repeat(" ", runewidth.RuneWidth(r)))
	}
	return b.String()
}
