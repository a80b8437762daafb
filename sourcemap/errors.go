package sourcemap

import "errors"

var errTooLarge = errors.New("file exceeds size limit")
