package runner

const (
	// DefaultNodeBinary is the node executable used when none is configured.
	DefaultNodeBinary = "node"

	// FrameStart and FrameEnd delimit a record in node's stdout:
	// FrameStart + kind + ":" + JSON + FrameEnd.
	FrameStart = "\x1ekarmatic:"
	FrameEnd   = "\x1f"

	entryScript    = "run.js"
	appenderScript = "appender.js"
	configFile     = "config.json"

	defaultStderrTailBytes = 64 * 1024
	maxLineBytes           = 16 * 1024 * 1024
)
