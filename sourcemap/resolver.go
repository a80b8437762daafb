// Package sourcemap resolves generated JavaScript locations back to their
// original sources using inline or sibling source maps.
package sourcemap

import (
	"encoding/base64"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/ethereum/go-ethereum/log"
	gosourcemap "github.com/go-sourcemap/sourcemap"

	"github.com/ethereum-optimism/infra/op-karmatic/stacktrace"
)

// MaxFileSize bounds every read the resolver performs.
const MaxFileSize = 16 << 20

var (
	mappingURLRe  = regexp.MustCompile(`(?m)^[ \t]*//[#@][ \t]*sourceMappingURL=(\S+)[ \t]*$`)
	dataURLPrefix = regexp.MustCompile(`^data:application/json;(?:charset=[^;,]+;)?base64,`)
	webpackPrefix = "webpack:///"
)

// FileResolver reads generated files from disk and follows their
// sourceMappingURL comment.
type FileResolver struct {
	// Root anchors relative frame paths and is the base for reported sources.
	Root string
	Log  log.Logger

	readFile func(string) ([]byte, error)
}

var _ stacktrace.Resolver = (*FileResolver)(nil)

// NewFileResolver returns a resolver rooted at root.
func NewFileResolver(root string, logger log.Logger) *FileResolver {
	if logger == nil {
		logger = log.New()
	}
	return &FileResolver{Root: root, Log: logger, readFile: readBounded}
}

// Resolve maps generated to its original location. Any failure yields false.
func (r *FileResolver) Resolve(generated stacktrace.Location) (stacktrace.Location, bool) {
	if generated.File == "" || generated.Line < 1 {
		return stacktrace.Location{}, false
	}
	file := r.abs(generated.File)

	src, err := r.read(file)
	if err != nil {
		r.debug("source map lookup skipped", "file", file, "err", err)
		return stacktrace.Location{}, false
	}
	mapURL, mapBytes, ok := r.findMap(file, src)
	if !ok {
		return stacktrace.Location{}, false
	}
	col := generated.Column - 1
	if col < 0 {
		col = 0
	}
	source, line, column, ok := r.lookup(file, mapURL, mapBytes, generated.Line, col)
	if !ok || source == "" {
		return stacktrace.Location{}, false
	}
	return stacktrace.Location{
		File:   r.relative(filepath.Dir(file), source),
		Line:   line,
		Column: column + 1,
	}, true
}

// lookup parses the map and queries it. go-sourcemap indexes sources and
// names straight from the mappings, so a map referencing entries it does not
// declare panics instead of failing.
func (r *FileResolver) lookup(file, mapURL string, mapBytes []byte, line, col int) (source string, srcLine, srcCol int, ok bool) {
	defer func() {
		if rec := recover(); rec != nil {
			r.debug("malformed source map", "file", file, "map", mapURL, "err", rec)
			source, srcLine, srcCol, ok = "", 0, 0, false
		}
	}()

	consumer, err := gosourcemap.Parse(mapURL, mapBytes)
	if err != nil {
		r.debug("invalid source map", "file", file, "err", err)
		return "", 0, 0, false
	}
	source, _, srcLine, srcCol, ok = consumer.Source(line, col)
	return source, srcLine, srcCol, ok
}

func (r *FileResolver) findMap(file string, src []byte) (string, []byte, bool) {
	matches := mappingURLRe.FindAllSubmatch(src, -1)
	if len(matches) == 0 {
		return "", nil, false
	}
	ref := string(matches[len(matches)-1][1])

	if loc := dataURLPrefix.FindStringIndex(ref); loc != nil {
		b, err := base64.StdEncoding.DecodeString(ref[loc[1]:])
		if err != nil {
			r.debug("invalid inline source map", "file", file, "err", err)
			return "", nil, false
		}
		return file, b, true
	}
	if strings.Contains(ref, "://") {
		return "", nil, false
	}

	mapFile := filepath.Join(filepath.Dir(file), filepath.FromSlash(ref))
	b, err := r.read(mapFile)
	if err != nil {
		r.debug("source map unreadable", "map", mapFile, "err", err)
		return "", nil, false
	}
	return mapFile, b, true
}

// relative turns a source map source into a root-anchored "./path" when it
// lives under Root.
func (r *FileResolver) relative(dir, source string) string {
	var abs string
	switch {
	case strings.HasPrefix(source, webpackPrefix):
		rest := strings.TrimPrefix(source, webpackPrefix)
		rest = strings.TrimPrefix(rest, "./")
		if filepath.IsAbs(rest) {
			abs = rest
		} else {
			abs = filepath.Join(r.Root, filepath.FromSlash(rest))
		}
	case strings.Contains(source, "://"):
		return source
	case filepath.IsAbs(source):
		abs = source
	default:
		abs = filepath.Join(dir, filepath.FromSlash(source))
	}

	if r.Root == "" {
		return abs
	}
	rel, err := filepath.Rel(r.Root, abs)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return abs
	}
	return "./" + filepath.ToSlash(rel)
}

func (r *FileResolver) abs(file string) string {
	if filepath.IsAbs(file) || r.Root == "" {
		return file
	}
	return filepath.Join(r.Root, filepath.FromSlash(file))
}

func (r *FileResolver) read(path string) ([]byte, error) {
	if r.readFile == nil {
		return readBounded(path)
	}
	return r.readFile(path)
}

func (r *FileResolver) debug(msg string, ctx ...interface{}) {
	if r.Log != nil {
		r.Log.Debug(msg, ctx...)
	}
}

func readBounded(path string) ([]byte, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if info.Size() > MaxFileSize {
		return nil, &os.PathError{Op: "read", Path: path, Err: errTooLarge}
	}
	return os.ReadFile(path)
}

// Nop never resolves anything.
type Nop struct{}

func (Nop) Resolve(stacktrace.Location) (stacktrace.Location, bool) {
	return stacktrace.Location{}, false
}
