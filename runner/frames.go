package runner

import (
	"encoding/json"
	"strings"
)

// RecordKind identifies a framed record.
type RecordKind string

const (
	// RecordError carries a raw failure karma passed to formatError.
	RecordError RecordKind = "error"
	// RecordLog carries a karma log record.
	RecordLog RecordKind = "log"
	// RecordFatal carries an error that stopped the entry script.
	RecordFatal RecordKind = "fatal"
)

// Record is one framed record.
type Record struct {
	Kind    RecordKind `json:"-"`
	Level   string     `json:"level,omitempty"`
	Message string     `json:"message"`
}

// ParseLine extracts every well formed record from line and returns the
// remaining text. Records may appear anywhere in the line since karma writes
// its own output around them. A malformed frame is left in the text.
func ParseLine(line string) (string, []Record) {
	if !strings.Contains(line, FrameStart) {
		return line, nil
	}

	var (
		text    strings.Builder
		records []Record
	)
	for {
		i := strings.Index(line, FrameStart)
		if i < 0 {
			text.WriteString(line)
			break
		}
		text.WriteString(line[:i])
		rest := line[i+len(FrameStart):]
		j := strings.Index(rest, FrameEnd)
		if j < 0 {
			text.WriteString(line[i:])
			break
		}
		if rec, ok := decodeRecord(rest[:j]); ok {
			records = append(records, rec)
		} else {
			text.WriteString(line[i : i+len(FrameStart)+j+len(FrameEnd)])
		}
		line = rest[j+len(FrameEnd):]
	}
	return text.String(), records
}

func decodeRecord(body string) (Record, bool) {
	kind, payload, ok := strings.Cut(body, ":")
	if !ok {
		return Record{}, false
	}
	var rec Record
	if err := json.Unmarshal([]byte(payload), &rec); err != nil {
		return Record{}, false
	}
	switch k := RecordKind(kind); k {
	case RecordError, RecordLog, RecordFatal:
		rec.Kind = k
		return rec, true
	}
	return Record{}, false
}
