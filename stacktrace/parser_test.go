package stacktrace

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLine(t *testing.T) {
	tests := []struct {
		name   string
		line   string
		ok     bool
		kind   Kind
		symbol string
		file   string
		line1  int
		column int
	}{
		{
			name:   "v8 named frame",
			line:   "    at foo (./src/app.js:10:5)",
			ok:     true,
			kind:   KindUser,
			symbol: "foo",
			file:   "./src/app.js",
			line1:  10,
			column: 5,
		},
		{
			name:   "v8 async constructor frame",
			line:   "    at async new Widget (http://localhost:9876/base/src/w.js:3:14)",
			ok:     true,
			kind:   KindUser,
			symbol: "Widget",
			file:   "http://localhost:9876/base/src/w.js",
			line1:  3,
			column: 14,
		},
		{
			name:   "v8 anonymous frame",
			line:   "    at ./src/app.js:7:1",
			ok:     true,
			kind:   KindUser,
			file:   "./src/app.js",
			line1:  7,
			column: 1,
		},
		{
			name:   "v8 native frame",
			line:   "    at Array.forEach (<anonymous>)",
			ok:     true,
			kind:   KindNative,
			symbol: "Array.forEach",
		},
		{
			name:   "v8 native keyword",
			line:   "    at JSON.parse (native)",
			ok:     true,
			kind:   KindNative,
			symbol: "JSON.parse",
		},
		{
			name:   "v8 marker frame",
			line:   "    at <Jasmine>",
			ok:     true,
			kind:   KindNative,
			symbol: "Jasmine",
		},
		{
			name:   "v8 eval frame",
			line:   "    at eval (eval at run (./src/run.js:4:9), <anonymous>:1:1)",
			ok:     true,
			kind:   KindUser,
			symbol: "eval",
			file:   "./src/run.js",
			line1:  4,
			column: 9,
		},
		{
			name:   "firefox frame",
			line:   "render@http://localhost:9876/base/src/view.js:22:3",
			ok:     true,
			kind:   KindUser,
			symbol: "render",
			file:   "http://localhost:9876/base/src/view.js",
			line1:  22,
			column: 3,
		},
		{
			name:   "firefox anonymous frame without column",
			line:   "@./src/view.js:22",
			ok:     true,
			kind:   KindUser,
			file:   "./src/view.js",
			line1:  22,
		},
		{
			name:   "safari native frame",
			line:   "forEach@[native code]",
			ok:     true,
			kind:   KindNative,
			symbol: "forEach",
		},
		{name: "message line", line: "Error: boom"},
		{name: "prose with at", line: "    at least one spy was expected"},
		{name: "email address", line: "contact me@example.com"},
		{name: "blank", line: "   "},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, ok := ParseLine(tt.line)
			require.Equal(t, tt.ok, ok)
			if !ok {
				return
			}
			assert.Equal(t, tt.line, f.Raw)
			assert.Equal(t, tt.kind, f.Kind)
			assert.Equal(t, tt.symbol, f.Name)
			assert.Equal(t, tt.file, f.Generated.File)
			assert.Equal(t, tt.line1, f.Generated.Line)
			assert.Equal(t, tt.column, f.Generated.Column)
			assert.Nil(t, f.Original)
		})
	}
}

func TestSplitMessage(t *testing.T) {
	trace := "Expected 1 to be 2.\n  Error: boom\n    at foo (./src/app.js:10:5)\n    at <Jasmine>\n    at bar (./src/bar.js:1:1)"

	msg, frames := SplitMessage(trace)
	assert.Equal(t, "Expected 1 to be 2.\nError: boom", msg)
	require.Len(t, frames, 2)
	assert.Equal(t, "foo", frames[0].Name)
	assert.Equal(t, "bar", frames[1].Name)
}

func TestSplitMessageWithoutFrames(t *testing.T) {
	msg, frames := SplitMessage("  Error: nothing to see\n  here  ")
	assert.Equal(t, "Error: nothing to see\nhere", msg)
	assert.Empty(t, frames)
}

func TestSplitMessageStartingWithFrame(t *testing.T) {
	msg, frames := SplitMessage("    at foo (./src/app.js:10:5)")
	assert.Empty(t, msg)
	require.Len(t, frames, 1)
}

func TestParseFiltersFrameworkFrames(t *testing.T) {
	trace := `Error: boom
    at UserContext.<anonymous> (./test/app.test.js:5:11)
    at <Jasmine>
    at QueueRunner.run (./node_modules/jasmine-core/lib/jasmine-core/jasmine.js:7:3)
    at Array.forEach (<anonymous>)`

	frames := Parse(trace)
	require.Len(t, frames, 2)
	assert.Equal(t, "UserContext.<anonymous>", frames[0].Name)
	assert.Equal(t, KindUser, frames[0].Kind)
	assert.Equal(t, "Array.forEach", frames[1].Name)
	assert.Equal(t, KindNative, frames[1].Kind)
}

func TestParseWithResolver(t *testing.T) {
	trace := "Error: boom\n    at foo (./dist/bundle.js:100:20)\n    at Array.map (<anonymous>)\n    at bar (./dist/other.js:1:1)"
	calls := 0
	resolver := ResolverFunc(func(loc Location) (Location, bool) {
		calls++
		if loc.File == "./dist/bundle.js" {
			return Location{File: "./src/app.js", Line: 10, Column: 5}, true
		}
		return Location{}, false
	})

	frames := ParseWithResolver(trace, resolver)
	require.Len(t, frames, 3)
	require.NotNil(t, frames[0].Original)
	assert.Equal(t, Location{File: "./src/app.js", Line: 10, Column: 5}, *frames[0].Original)
	assert.Nil(t, frames[1].Original)
	assert.Nil(t, frames[2].Original)
	assert.Equal(t, 2, calls, "native frames are never resolved")
}

func TestOriginalImpliesGenerated(t *testing.T) {
	resolver := ResolverFunc(func(loc Location) (Location, bool) {
		return Location{File: "orig.js", Line: 1, Column: 1}, true
	})
	for _, f := range ParseWithResolver("at a (x.js:1:2)\nat <Jasmine>\nat b (native)\n@y.js:3", resolver) {
		if f.Original != nil {
			assert.False(t, f.Generated.IsZero())
		}
	}
}

func TestLocationString(t *testing.T) {
	assert.Equal(t, "./a.js:1:2", Location{File: "./a.js", Line: 1, Column: 2}.String())
	assert.Equal(t, "./a.js:1", Location{File: "./a.js", Line: 1}.String())
	assert.True(t, Location{}.IsZero())
	assert.Equal(t, "native", KindNative.String())
}
