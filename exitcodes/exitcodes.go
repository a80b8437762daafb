// Package exitcodes defines the exit codes used by op-karmatic.
package exitcodes

// Exit code constants used by op-karmatic:
//
// * Success (0): karma finished and every test passed
// * Failure (1): tests failed, or op-karmatic could not run them
//
// Karma's own exit code is passed through when it is a small positive
// number, see FromRunner.
const (
	Success = 0
	Failure = 1

	// maxRunnerCode bounds the runner exit codes passed through verbatim.
	maxRunnerCode = 10
)

// FromRunner maps the exit code karma finished with onto the process exit
// code: codes between 1 and 9 pass through, anything else non-zero is
// Failure.
func FromRunner(code int) int {
	switch {
	case code == 0:
		return Success
	case code > 0 && code < maxRunnerCode:
		return code
	default:
		return Failure
	}
}
