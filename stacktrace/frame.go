// Package stacktrace parses JavaScript stack traces emitted by browsers into
// structured frames and rewrites the locations they reference.
package stacktrace

import (
	"fmt"
)

// Kind classifies where a frame originates.
type Kind int

const (
	// KindUser frames carry a resolvable file location.
	KindUser Kind = iota
	// KindNative frames come from the engine and have no source location.
	KindNative
)

func (k Kind) String() string {
	switch k {
	case KindUser:
		return "user"
	case KindNative:
		return "native"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Location is a position in a file. Line and Column are 1-based; a zero
// Column means the trace carried no column.
type Location struct {
	File   string
	Line   int
	Column int
}

func (l Location) IsZero() bool {
	return l.File == "" && l.Line == 0 && l.Column == 0
}

func (l Location) String() string {
	if l.Column == 0 {
		return fmt.Sprintf("%s:%d", l.File, l.Line)
	}
	return fmt.Sprintf("%s:%d:%d", l.File, l.Line, l.Column)
}

// Frame is a single call-site of a trace.
type Frame struct {
	Raw       string
	Kind      Kind
	Name      string
	Generated Location
	// Original is set only when a source map resolved Generated.
	Original *Location
}

// Resolver maps a generated location back to its original source location.
// Implementations must not panic; a false result means "no mapping".
type Resolver interface {
	Resolve(generated Location) (Location, bool)
}

// ResolverFunc adapts a function to the Resolver interface.
type ResolverFunc func(Location) (Location, bool)

func (f ResolverFunc) Resolve(generated Location) (Location, bool) {
	return f(generated)
}
