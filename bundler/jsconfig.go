package bundler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"

	"github.com/dop251/goja"
	"github.com/dop251/goja_nodejs/require"
	"github.com/ethereum/go-ethereum/log"
	"gopkg.in/yaml.v3"
)

// EvalContext is what a config exported as a function is called with. The
// generated karma runner calls it the same way so that references into the
// evaluated config stay valid.
const (
	EvalEnvJSON  = `{"karmatic":true,"testMode":true}`
	EvalArgvJSON = `{"mode":"development","karmatic":true}`
)

// Loader evaluates bundler configuration files without a node installation.
//
// JavaScript configs run in goja with a CommonJS require. Relative modules
// are read from disk, "path", "fs" and "url" are provided natively and every
// other package resolves to an inert stub. Calling or constructing a stub
// records the call instead of running it, so a config such as
//
//	const HtmlWebpackPlugin = require('html-webpack-plugin')
//	module.exports = { plugins: [new HtmlWebpackPlugin()] }
//
// evaluates to a plugin list whose only entry is named HtmlWebpackPlugin.
// The evaluated value is converted to JSON with these markers:
//
//	{"$regexp": "\\.css$", "flags": "i"}            RegExp
//	{"$ref": "/plugins/0", "kind": "stub", ...}    stub value, call or construction
//	{"$ref": "/module/rules/0/test", "kind": "function", "name": "f"}
//	{"$ref": "/plugins/1", "kind": "instance", "name": "MyPlugin", "tags": [...]}
//
// "$ref" is a JSON pointer into the evaluated config; the karma runner
// re-evaluates the config under node and substitutes the live value.
type Loader struct {
	// Dir is the working directory seen by the config (process.cwd()).
	Dir string
	// Env backs process.env; nil means the current environment.
	Env map[string]string
	Log log.Logger
}

// NewLoader returns a Loader evaluating configs as if run from dir.
func NewLoader(dir string, logger log.Logger) *Loader {
	if logger == nil {
		logger = log.New()
	}
	return &Loader{Dir: dir, Log: logger}
}

// Load evaluates the config file at path and returns its JSON form.
func (l *Loader) Load(ctx context.Context, path string) (map[string]any, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		var out map[string]any
		if err := json.Unmarshal(b, &out); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
		return out, nil
	case ".yaml", ".yml":
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		var out map[string]any
		if err := yaml.Unmarshal(b, &out); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
		return out, nil
	default:
		return l.loadJS(ctx, path)
	}
}

func (l *Loader) loadJS(ctx context.Context, path string) (map[string]any, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(abs); err != nil {
		return nil, err
	}

	rt := goja.New()
	registry := require.NewRegistry(require.WithLoader(moduleSource))
	registry.RegisterNativeModule("path", l.pathModule)
	registry.RegisterNativeModule("fs", l.fsModule)
	registry.RegisterNativeModule("url", urlModule)
	req := registry.Enable(rt)

	if err := l.installGlobals(rt); err != nil {
		return nil, err
	}
	if _, err := rt.RunString(prelude); err != nil {
		return nil, fmt.Errorf("failed to initialise config runtime: %w", err)
	}

	stop := context.AfterFunc(ctx, func() {
		rt.Interrupt(ctx.Err())
	})
	defer stop()

	exports, err := req.Require(filepath.ToSlash(abs))
	if err != nil {
		return nil, fmt.Errorf("failed to evaluate %s: %w", path, err)
	}
	evaluate, _ := goja.AssertFunction(rt.Get("__karmaticEvaluate"))
	value, err := evaluate(goja.Undefined(), exports, jsonValue(rt, EvalEnvJSON), jsonValue(rt, EvalArgvJSON))
	if err != nil {
		return nil, fmt.Errorf("failed to evaluate %s: %w", path, err)
	}

	if p, ok := value.Export().(*goja.Promise); ok {
		switch p.State() {
		case goja.PromiseStateFulfilled:
			value = p.Result()
		case goja.PromiseStateRejected:
			return nil, fmt.Errorf("config %s rejected: %s", path, p.Result().String())
		default:
			return nil, fmt.Errorf("config %s returned a promise that never settled", path)
		}
	}

	if obj, ok := value.(*goja.Object); ok && obj.ClassName() == "Array" {
		n := obj.Get("length").ToInteger()
		if n == 0 {
			return nil, fmt.Errorf("config %s exports an empty array", path)
		}
		if n > 1 {
			l.Log.Warn("Bundler config exports an array of configs, using the first one for tests", "file", path, "count", n)
		}
		value = obj.Get("0")
	}

	serialize, _ := goja.AssertFunction(rt.Get("__karmaticSerialize"))
	encoded, err := serialize(goja.Undefined(), value)
	if err != nil {
		return nil, fmt.Errorf("failed to serialise %s: %w", path, err)
	}
	if goja.IsUndefined(encoded) || goja.IsNull(encoded) {
		return nil, fmt.Errorf("config %s does not export an object", path)
	}

	var out map[string]any
	if err := json.Unmarshal([]byte(encoded.String()), &out); err != nil {
		return nil, fmt.Errorf("config %s does not export an object: %w", path, err)
	}
	return out, nil
}

func jsonValue(rt *goja.Runtime, src string) goja.Value {
	v, err := rt.RunString("(" + src + ")")
	if err != nil {
		panic(err)
	}
	return v
}

func (l *Loader) installGlobals(rt *goja.Runtime) error {
	env := rt.NewObject()
	for k, v := range l.environ() {
		if err := env.Set(k, v); err != nil {
			return err
		}
	}
	process := rt.NewObject()
	for name, value := range map[string]any{
		"env":      env,
		"platform": runtime.GOOS,
		"argv":     []any{"node", "karmatic"},
		"versions": map[string]any{"node": "20.0.0"},
		"cwd":      func() string { return l.Dir },
	} {
		if err := process.Set(name, value); err != nil {
			return err
		}
	}
	if err := rt.Set("process", process); err != nil {
		return err
	}

	console := rt.NewObject()
	for _, level := range []string{"log", "info", "debug", "warn", "error"} {
		if err := console.Set(level, func(call goja.FunctionCall) goja.Value {
			parts := make([]string, len(call.Arguments))
			for i, a := range call.Arguments {
				parts[i] = a.String()
			}
			l.Log.Debug("Bundler config output", "msg", strings.Join(parts, " "))
			return goja.Undefined()
		}); err != nil {
			return err
		}
	}
	return rt.Set("console", console)
}

func (l *Loader) environ() map[string]string {
	if l.Env != nil {
		return l.Env
	}
	env := make(map[string]string)
	for _, kv := range os.Environ() {
		if k, v, ok := strings.Cut(kv, "="); ok {
			env[k] = v
		}
	}
	return env
}

// moduleSource serves project files to require. JavaScript sources are
// rewritten so that ES module syntax and bare package imports work.
func moduleSource(p string) ([]byte, error) {
	path := filepath.FromSlash(p)
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		if err == nil || errors.Is(err, fs.ErrNotExist) {
			return nil, require.ModuleFileDoesNotExistError
		}
		return nil, err
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if strings.HasSuffix(path, ".json") {
		return b, nil
	}
	return []byte(TransformModule(string(b))), nil
}

var (
	importDefaultNamedRe = regexp.MustCompile(`(?m)^(\s*)import\s+([A-Za-z_$][\w$]*)\s*,\s*\{([^}]*)\}\s*from\s*(['"][^'"\n]+['"])\s*;?`)
	importNamespaceRe    = regexp.MustCompile(`(?m)^(\s*)import\s+\*\s+as\s+([A-Za-z_$][\w$]*)\s+from\s*(['"][^'"\n]+['"])\s*;?`)
	importNamedRe        = regexp.MustCompile(`(?m)^(\s*)import\s*\{([^}]*)\}\s*from\s*(['"][^'"\n]+['"])\s*;?`)
	importDefaultRe      = regexp.MustCompile(`(?m)^(\s*)import\s+([A-Za-z_$][\w$]*)\s+from\s*(['"][^'"\n]+['"])\s*;?`)
	importBareRe         = regexp.MustCompile(`(?m)^(\s*)import\s*(['"][^'"\n]+['"])\s*;?`)
	exportDefaultRe      = regexp.MustCompile(`(?m)^(\s*)export\s+default\s+`)
	exportDeclRe         = regexp.MustCompile(`(?m)^(\s*)export\s+((?:async\s+)?function\*?|const|let|var|class)\s+([A-Za-z_$][\w$]*)`)
	exportListRe         = regexp.MustCompile(`(?m)^(\s*)export\s*\{([^}]*)\}\s*;?`)
	importMetaURLRe      = regexp.MustCompile(`\bimport\.meta\.url\b`)
	requireResolveRe     = regexp.MustCompile(`(^|[^.\w$])require\.resolve\s*\(`)
	requireCallRe        = regexp.MustCompile(`(^|[^.\w$])require\s*\(`)
)

// TransformModule rewrites ES module syntax into CommonJS and routes every
// require call through the stub-aware resolver of the config runtime.
func TransformModule(src string) string {
	esm := false
	mark := func(re *regexp.Regexp, repl func([]string) string) {
		src = re.ReplaceAllStringFunc(src, func(m string) string {
			esm = true
			return repl(re.FindStringSubmatch(m))
		})
	}

	mark(importDefaultNamedRe, func(m []string) string {
		return fmt.Sprintf("%sconst %s = __karmaticInterop(require(%s)); const {%s} = require(%s);", m[1], m[2], m[4], destructure(m[3]), m[4])
	})
	mark(importNamespaceRe, func(m []string) string {
		return fmt.Sprintf("%sconst %s = require(%s);", m[1], m[2], m[3])
	})
	mark(importNamedRe, func(m []string) string {
		return fmt.Sprintf("%sconst {%s} = require(%s);", m[1], destructure(m[2]), m[3])
	})
	mark(importDefaultRe, func(m []string) string {
		return fmt.Sprintf("%sconst %s = __karmaticInterop(require(%s));", m[1], m[2], m[3])
	})
	mark(importBareRe, func(m []string) string {
		return fmt.Sprintf("%srequire(%s);", m[1], m[2])
	})

	var named []string
	mark(exportDefaultRe, func(m []string) string {
		return m[1] + "module.exports.default = "
	})
	mark(exportDeclRe, func(m []string) string {
		named = append(named, m[3]+": "+m[3])
		return m[1] + m[2] + " " + m[3]
	})
	mark(exportListRe, func(m []string) string {
		for _, spec := range strings.Split(m[2], ",") {
			local, exported, ok := strings.Cut(strings.TrimSpace(spec), " as ")
			if !ok {
				exported = local
			}
			if local = strings.TrimSpace(local); local != "" {
				named = append(named, strings.TrimSpace(exported)+": "+local)
			}
		}
		return m[1]
	})
	src = importMetaURLRe.ReplaceAllString(src, `("file://" + __filename)`)

	src = requireResolveRe.ReplaceAllString(src, "${1}__karmaticResolve(__dirname, ")
	src = requireCallRe.ReplaceAllString(src, "${1}__karmaticRequire(require, ")

	if !esm {
		return src
	}
	var b strings.Builder
	b.WriteString(`Object.defineProperty(module.exports, "__esModule", { value: true });`)
	b.WriteString(src)
	if len(named) > 0 {
		fmt.Fprintf(&b, "\nObject.assign(module.exports, {%s});\n", strings.Join(named, ", "))
	}
	return b.String()
}

// destructure turns an import specifier list ("a, b as c") into object
// pattern syntax ("a, b: c").
func destructure(list string) string {
	var parts []string
	for _, spec := range strings.Split(list, ",") {
		spec = strings.TrimSpace(spec)
		if spec == "" {
			continue
		}
		if from, to, ok := strings.Cut(spec, " as "); ok {
			spec = strings.TrimSpace(from) + ": " + strings.TrimSpace(to)
		}
		parts = append(parts, spec)
	}
	return strings.Join(parts, ", ")
}

func (l *Loader) pathModule(rt *goja.Runtime, module *goja.Object) {
	exports := module.Get("exports").(*goja.Object)
	set := func(name string, v any) {
		if err := exports.Set(name, v); err != nil {
			panic(rt.NewGoError(err))
		}
	}
	set("sep", string(filepath.Separator))
	set("delimiter", string(filepath.ListSeparator))
	set("join", func(parts ...string) string {
		if len(parts) == 0 {
			return "."
		}
		return filepath.Join(parts...)
	})
	set("resolve", func(parts ...string) string {
		return resolvePath(l.Dir, parts)
	})
	set("normalize", filepath.Clean)
	set("dirname", filepath.Dir)
	set("extname", filepath.Ext)
	set("isAbsolute", filepath.IsAbs)
	set("basename", func(p string, ext ...string) string {
		base := filepath.Base(p)
		if len(ext) > 0 && ext[0] != "" && ext[0] != base {
			base = strings.TrimSuffix(base, ext[0])
		}
		return base
	})
	set("relative", func(from, to string) string {
		rel, err := filepath.Rel(resolvePath(l.Dir, []string{from}), resolvePath(l.Dir, []string{to}))
		if err != nil {
			return to
		}
		if rel == "." {
			return ""
		}
		return rel
	})
	set("posix", exports)
}

func (l *Loader) fsModule(rt *goja.Runtime, module *goja.Object) {
	exports := module.Get("exports").(*goja.Object)
	abs := func(p string) string {
		return resolvePath(l.Dir, []string{p})
	}
	for name, fn := range map[string]any{
		"existsSync": func(p string) bool {
			_, err := os.Stat(abs(p))
			return err == nil
		},
		"readFileSync": func(p string) string {
			b, err := os.ReadFile(abs(p))
			if err != nil {
				panic(rt.NewGoError(err))
			}
			return string(b)
		},
		"readdirSync": func(p string) []string {
			entries, err := os.ReadDir(abs(p))
			if err != nil {
				panic(rt.NewGoError(err))
			}
			names := make([]string, len(entries))
			for i, e := range entries {
				names[i] = e.Name()
			}
			return names
		},
	} {
		if err := exports.Set(name, fn); err != nil {
			panic(rt.NewGoError(err))
		}
	}
}

func urlModule(rt *goja.Runtime, module *goja.Object) {
	exports := module.Get("exports").(*goja.Object)
	for name, fn := range map[string]any{
		"fileURLToPath": func(s string) string {
			u, err := url.Parse(s)
			if err != nil || u.Scheme != "file" {
				panic(rt.NewTypeError("invalid file URL: %s", s))
			}
			return filepath.FromSlash(u.Path)
		},
		"pathToFileURL": func(p string) map[string]any {
			u := url.URL{Scheme: "file", Path: filepath.ToSlash(p)}
			return map[string]any{"href": u.String(), "pathname": u.Path}
		},
	} {
		if err := exports.Set(name, fn); err != nil {
			panic(rt.NewGoError(err))
		}
	}
}

func resolvePath(cwd string, parts []string) string {
	p := ""
	for i := len(parts) - 1; i >= 0; i-- {
		if parts[i] == "" {
			continue
		}
		p = filepath.Join(parts[i], p)
		if filepath.IsAbs(parts[i]) {
			return filepath.Clean(p)
		}
	}
	return filepath.Join(cwd, p)
}

// prelude installs the stub machinery, the evaluation convention and the
// serialiser into a fresh runtime.
const prelude = `
var __karmaticStubKey = Symbol('karmaticStub');
var __karmaticNative = ['path', 'fs', 'url'];

function __karmaticPascal(spec) {
  var base = spec.replace(/^@[^/]+\//, '').split('/').pop();
  var name = base.split(/[^A-Za-z0-9]+/).filter(Boolean).map(function (p) {
    return p.charAt(0).toUpperCase() + p.slice(1);
  }).join('');
  return name || 'Module';
}

function __karmaticStub(spec, members, call) {
  var name = members.length ? members[members.length - 1] : __karmaticPascal(spec);
  var info = { module: spec, members: members, name: name, call: call || '' };
  var target = function () {};
  var proxy = new Proxy(target, {
    get: function (t, key) {
      if (key === __karmaticStubKey) return info;
      if (typeof key === 'symbol') return undefined;
      if (key === 'name') return name;
      if (key === '__esModule' || key === 'then') return undefined;
      if (key === 'default') return proxy;
      if (key === 'toString' || key === 'valueOf') {
        return function () { return '[karmatic stub ' + spec + ']'; };
      }
      return __karmaticStub(spec, members.concat([String(key)]));
    },
    apply: function () {
      return __karmaticStub(spec, members, 'call');
    },
    construct: function () {
      return __karmaticStub(spec, members, 'new');
    }
  });
  return proxy;
}

function __karmaticRequire(req, spec) {
  var s = String(spec);
  if (s.indexOf('node:') === 0) s = s.slice(5);
  if (s.charAt(0) === '.' || s.charAt(0) === '/') return req(s);
  if (__karmaticNative.indexOf(s) >= 0) return req(s);
  return __karmaticStub(s, []);
}

function __karmaticResolve(dir, spec) {
  var s = String(spec);
  if (s.charAt(0) === '.' || s.charAt(0) === '/') return require('path').resolve(dir, s);
  return s;
}

function __karmaticInterop(m) {
  return m && m.__esModule ? m.default : m;
}

function __karmaticEvaluate(m, env, argv) {
  if (m && m.__esModule && m.default !== undefined) m = m.default;
  if (typeof m === 'function' && !m[__karmaticStubKey]) m = m(env, argv);
  return m;
}

function __karmaticSerialize(root) {
  var stack = [];
  function esc(k) { return String(k).replace(/~/g, '~0').replace(/\//g, '~1'); }
  function tags(v) {
    var t = v.karmaticTags;
    return Array.isArray(t) ? t.map(String) : undefined;
  }
  function walk(v, ptr) {
    if (v === undefined) return undefined;
    if (v === null) return null;
    var t = typeof v;
    if (t === 'string' || t === 'boolean') return v;
    if (t === 'number') return isFinite(v) ? v : null;
    if (t === 'bigint') return String(v);
    if (t === 'symbol') return undefined;
    var stub = v[__karmaticStubKey];
    if (stub) {
      return { $ref: ptr, kind: 'stub', module: stub.module, members: stub.members, name: stub.name, call: stub.call };
    }
    if (t === 'function') return { $ref: ptr, kind: 'function', name: v.name || '' };
    if (v instanceof RegExp) return { $regexp: v.source, flags: v.flags };
    if (stack.indexOf(v) >= 0) return { $ref: ptr, kind: 'circular' };
    var proto = Object.getPrototypeOf(v);
    if (!Array.isArray(v) && proto !== null && proto !== Object.prototype) {
      var ctor = proto.constructor;
      return { $ref: ptr, kind: 'instance', name: (ctor && ctor.name) || '', tags: tags(v) };
    }
    stack.push(v);
    var out;
    if (Array.isArray(v)) {
      out = [];
      for (var i = 0; i < v.length; i++) {
        var item = walk(v[i], ptr + '/' + i);
        out.push(item === undefined ? null : item);
      }
    } else {
      out = {};
      Object.keys(v).forEach(function (k) {
        var item = walk(v[k], ptr + '/' + esc(k));
        if (item !== undefined) out[k] = item;
      });
    }
    stack.pop();
    return out;
  }
  var result = walk(root, '');
  if (result === null || typeof result !== 'object' || Array.isArray(result) || result.$ref !== undefined) {
    return undefined;
  }
  return JSON.stringify(result);
}
`
