package diagnostic

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUnwrapMessage(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "json record", in: `{"message":"Error: boom","str":"x"}`, want: "Error: boom"},
		{name: "json with padding", in: "  {\"message\":\"a\\nb\"}\n", want: "a\nb"},
		{name: "json without message", in: `{"stack":"x"}`, want: `{"stack":"x"}`},
		{name: "invalid json", in: `{nope`, want: `{nope`},
		{name: "plain text", in: "Error: boom", want: "Error: boom"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, UnwrapMessage(tt.in))
		})
	}
}

func TestStripTransportPrefixes(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "log error", in: "LOG ERROR: Error: boom", want: "Error: boom"},
		{name: "log", in: "LOG: 'hello'", want: "'hello'"},
		{name: "warn log", in: "WARN LOG: careful", want: "careful"},
		{name: "karma timestamp", in: "18 10 2026 12:34:56.789:ERROR [karma-server]: Error: boom", want: "Error: boom"},
		{name: "timestamp then log", in: "18 10 2026 12:34:56.789:WARN [web-server]: LOG ERROR: x", want: "x"},
		{name: "error type untouched", in: "TypeError: LOG: is not a function", want: "TypeError: LOG: is not a function"},
		{name: "plain", in: "Error: boom\n    at foo (./a.js:1:1)", want: "Error: boom\n    at foo (./a.js:1:1)"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StripTransportPrefixes(tt.in))
		})
	}
}
