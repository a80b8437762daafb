package stacktrace

import (
	"regexp"
	"strconv"
	"strings"
)

// Recognised frame grammars, tried in order against each trimmed line:
//
//	| Engine          | Form                                  | Result                     |
//	|-----------------|---------------------------------------|----------------------------|
//	| V8              | at [async] [new] name (file:line:col) | user frame with name       |
//	| V8              | at name (eval at f (file:l:c), ...)   | user frame, eval origin    |
//	| V8              | at name (native) / (<anonymous>)      | native frame with name     |
//	| V8              | at file:line:col                      | user frame without name    |
//	| V8              | at <Marker>                           | native frame named Marker  |
//	| Firefox/Safari  | name@file:line:col                    | user frame (name optional) |
//	| Firefox/Safari  | name@[native code]                    | native frame               |
//
// Anything else is free text and never becomes a frame.
var (
	v8CallRe   = regexp.MustCompile(`^at (?:async )?(?:new )?(.*?) \((.*)\)$`)
	v8BareRe   = regexp.MustCompile(`^at (?:async )?(.+)$`)
	markerRe   = regexp.MustCompile(`^<([^<>]+)>$`)
	geckoRe    = regexp.MustCompile(`^([^@\s]*)@(.+)$`)
	locationRe = regexp.MustCompile(`^(.*?):(\d+)(?::(\d+))?$`)
	evalLocRe  = regexp.MustCompile(`\(([^()\s]+?):(\d+)(?::(\d+))?\)`)
)

var nativeMarkers = map[string]bool{
	"native":        true,
	"<anonymous>":   true,
	"[native code]": true,
}

// frameworkFiles are files of the test framework's own dispatch machinery.
var frameworkFiles = []string{
	"jasmine-core/",
	"karma-jasmine/",
}

// Parse parses every recognisable frame of trace, in trace order.
func Parse(trace string) []Frame {
	return ParseWithResolver(trace, nil)
}

// ParseWithResolver parses trace and maps user frames through resolver.
// A nil resolver or a failed lookup leaves Frame.Original nil.
func ParseWithResolver(trace string, resolver Resolver) []Frame {
	_, frames := split(trace)
	ResolveFrames(frames, resolver)
	return frames
}

// ResolveFrames sets Original on every user frame resolver can map.
func ResolveFrames(frames []Frame, resolver Resolver) {
	if resolver == nil {
		return
	}
	for i := range frames {
		if frames[i].Kind != KindUser {
			continue
		}
		if orig, ok := resolver.Resolve(frames[i].Generated); ok && !orig.IsZero() {
			frames[i].Original = &orig
		}
	}
}

// SplitMessage separates the free text leading a trace from its frames. The
// message is every line before the first frame, each trimmed. When the trace
// has no frames at all the whole text is the message.
func SplitMessage(trace string) (string, []Frame) {
	return split(trace)
}

func split(trace string) (string, []Frame) {
	lines := strings.Split(strings.ReplaceAll(trace, "\r\n", "\n"), "\n")
	first := -1
	var frames []Frame
	for i, line := range lines {
		f, ok := ParseLine(line)
		if !ok {
			continue
		}
		if first < 0 {
			first = i
		}
		if isFrameworkFrame(f) {
			continue
		}
		frames = append(frames, f)
	}

	var msg []string
	end := len(lines)
	if first >= 0 {
		end = first
	}
	for _, line := range lines[:end] {
		msg = append(msg, strings.TrimSpace(line))
	}
	return strings.TrimSpace(strings.Join(msg, "\n")), frames
}

// ParseLine parses a single line of a trace.
func ParseLine(line string) (Frame, bool) {
	raw := strings.TrimRight(line, "\r")
	s := strings.TrimSpace(raw)
	if s == "" {
		return Frame{}, false
	}

	if m := v8CallRe.FindStringSubmatch(s); m != nil {
		return frameFor(raw, m[1], m[2])
	}
	if m := v8BareRe.FindStringSubmatch(s); m != nil {
		loc := m[1]
		if mk := markerRe.FindStringSubmatch(loc); mk != nil && !nativeMarkers[loc] {
			return Frame{Raw: raw, Kind: KindNative, Name: mk[1]}, true
		}
		return frameFor(raw, "", loc)
	}
	if m := geckoRe.FindStringSubmatch(s); m != nil {
		return frameFor(raw, m[1], m[2])
	}
	return Frame{}, false
}

func frameFor(raw, name, loc string) (Frame, bool) {
	loc = strings.TrimSpace(loc)
	if nativeMarkers[loc] {
		return Frame{Raw: raw, Kind: KindNative, Name: name}, true
	}
	if strings.HasPrefix(loc, "eval at ") {
		m := evalLocRe.FindStringSubmatch(loc)
		if m == nil {
			return Frame{Raw: raw, Kind: KindNative, Name: name}, true
		}
		return Frame{Raw: raw, Kind: KindUser, Name: name, Generated: location(m)}, true
	}
	m := locationRe.FindStringSubmatch(loc)
	if m == nil || m[1] == "" {
		return Frame{}, false
	}
	if nativeMarkers[m[1]] {
		return Frame{Raw: raw, Kind: KindNative, Name: name}, true
	}
	return Frame{Raw: raw, Kind: KindUser, Name: name, Generated: location(m)}, true
}

func location(m []string) Location {
	l := Location{File: m[1]}
	l.Line, _ = strconv.Atoi(m[2])
	if m[3] != "" {
		l.Column, _ = strconv.Atoi(m[3])
	}
	return l
}

func isFrameworkFrame(f Frame) bool {
	if f.Kind == KindNative {
		return f.Name == "Jasmine"
	}
	for _, marker := range frameworkFiles {
		if strings.Contains(f.Generated.File, marker) {
			return true
		}
	}
	return false
}
