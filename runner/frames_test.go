package runner

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func frame(kind, payload string) string {
	return FrameStart + kind + ":" + payload + FrameEnd
}

func TestParseLine(t *testing.T) {
	tests := []struct {
		name    string
		line    string
		text    string
		records []Record
	}{
		{
			name: "plain",
			line: "Executed 1 of 1 SUCCESS",
			text: "Executed 1 of 1 SUCCESS",
		},
		{
			name:    "error only",
			line:    frame("error", `{"message":"Error: boom"}`),
			records: []Record{{Kind: RecordError, Message: "Error: boom"}},
		},
		{
			name:    "embedded in karma output",
			line:    "Chrome FAILED\t" + frame("error", `{"message":"x"}`) + " (0.01s)",
			text:    "Chrome FAILED\t (0.01s)",
			records: []Record{{Kind: RecordError, Message: "x"}},
		},
		{
			name: "several",
			line: frame("log", `{"level":"ERROR","message":"a"}`) + frame("fatal", `{"message":"b"}`),
			records: []Record{
				{Kind: RecordLog, Level: "ERROR", Message: "a"},
				{Kind: RecordFatal, Message: "b"},
			},
		},
		{
			name: "unterminated",
			line: "x" + FrameStart + `error:{"message":"y"}`,
			text: "x" + FrameStart + `error:{"message":"y"}`,
		},
		{
			name: "bad json",
			line: frame("error", `{nope`),
			text: frame("error", `{nope`),
		},
		{
			name: "unknown kind",
			line: frame("other", `{"message":"y"}`),
			text: frame("other", `{"message":"y"}`),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			text, records := ParseLine(tt.line)
			assert.Equal(t, tt.text, text)
			assert.Equal(t, tt.records, records)
		})
	}
}

func TestTailBuffer(t *testing.T) {
	b := newTailBuffer(4)
	_, _ = b.Write([]byte("ab"))
	assert.Equal(t, "ab", b.String())
	assert.False(t, b.Truncated())
	_, _ = b.Write([]byte("cdef"))
	assert.Equal(t, "cdef", b.String())
	assert.True(t, b.Truncated())
}
