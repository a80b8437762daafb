// Package diagnostic turns raw test failures into readable reports: a
// normalized message, the de-noised frame list and a code frame around the
// first frame in user code.
package diagnostic

import (
	"strings"

	"github.com/ethereum-optimism/infra/op-karmatic/stacktrace"
)

// VendorDir marks files that belong to installed dependencies.
const VendorDir = "node_modules"

// Diagnostic is one reported failure. Frames are ordered closest to the throw
// point first.
type Diagnostic struct {
	Message string
	Frames  []stacktrace.Frame
}

// NearestUserFrame returns the first user frame outside of VendorDir.
func (d Diagnostic) NearestUserFrame() (stacktrace.Frame, bool) {
	for _, f := range d.Frames {
		if f.Kind != stacktrace.KindUser {
			continue
		}
		if strings.Contains(f.Generated.File, VendorDir) {
			continue
		}
		return f, true
	}
	return stacktrace.Frame{}, false
}
