package diagnostic

import (
	"fmt"
	"os"
)

// DefaultMaxSourceSize bounds code frame reads.
const DefaultMaxSourceSize = 4 << 20

// SourceReader loads the text of a source file. Implementations must not
// panic; a false result means the file is unavailable.
type SourceReader interface {
	Read(path string) (string, bool)
}

// OSReader reads from the local filesystem.
type OSReader struct {
	MaxSize int64
	// OnError, when set, observes the reason a read failed.
	OnError func(path string, err error)
}

func (r OSReader) Read(path string) (string, bool) {
	limit := r.MaxSize
	if limit <= 0 {
		limit = DefaultMaxSourceSize
	}
	info, err := os.Stat(path)
	if err != nil {
		r.fail(path, err)
		return "", false
	}
	if info.IsDir() {
		r.fail(path, fmt.Errorf("%s is a directory", path))
		return "", false
	}
	if info.Size() > limit {
		r.fail(path, fmt.Errorf("%s is %d bytes, limit is %d", path, info.Size(), limit))
		return "", false
	}
	b, err := os.ReadFile(path)
	if err != nil {
		r.fail(path, err)
		return "", false
	}
	return string(b), true
}

func (r OSReader) fail(path string, err error) {
	if r.OnError != nil {
		r.OnError(path, err)
	}
}

// MapReader serves sources from memory, keyed by path.
type MapReader map[string]string

func (m MapReader) Read(path string) (string, bool) {
	s, ok := m[path]
	return s, ok
}
