package runner

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/ethereum-optimism/optimism/devnet-sdk/telemetry"
	"github.com/ethereum/go-ethereum/log"
	"github.com/google/uuid"
	"github.com/jedib0t/go-pretty/v6/text"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/ethereum-optimism/infra/op-karmatic/bundler"
	"github.com/ethereum-optimism/infra/op-karmatic/diagnostic"
	"github.com/ethereum-optimism/infra/op-karmatic/harness"
	"github.com/ethereum-optimism/infra/op-karmatic/logging"
	"github.com/ethereum-optimism/infra/op-karmatic/metrics"
	"github.com/ethereum-optimism/infra/op-karmatic/stacktrace"
)

var red = text.Colors{text.FgRed}

// Runner executes a karma configuration and reports the exit code karma
// finished with.
type Runner interface {
	Run(ctx context.Context, cfg *harness.Config) (int, error)
}

// Config holds configuration for creating a KarmaRunner.
type Config struct {
	NodeBinary string // path to the node binary
	// ToolchainDir holds op-karmatic's own node_modules; it is added to
	// NODE_PATH so karma and its plugins resolve without a project install.
	ToolchainDir string
	Sink         diagnostic.ConsoleSink
	RunLog       *logging.RunLog // optional
	Log          log.Logger
}

// KarmaRunner runs karma under node.
type KarmaRunner struct {
	node         string
	toolchainDir string
	sink         diagnostic.ConsoleSink
	runLog       *logging.RunLog
	log          log.Logger
	tracer       trace.Tracer

	cmdBuilder func(ctx context.Context, name string, arg ...string) *exec.Cmd
}

// NewKarmaRunner creates a KarmaRunner. Output goes to stdout unless a sink
// is configured.
func NewKarmaRunner(cfg Config) *KarmaRunner {
	if cfg.Log == nil {
		cfg.Log = log.New()
	}
	if cfg.NodeBinary == "" {
		cfg.NodeBinary = DefaultNodeBinary
	}
	if cfg.Sink == nil {
		cfg.Sink = diagnostic.NewWriterSink(os.Stdout)
	}
	return &KarmaRunner{
		node:         cfg.NodeBinary,
		toolchainDir: cfg.ToolchainDir,
		sink:         cfg.Sink,
		runLog:       cfg.RunLog,
		log:          cfg.Log,
		tracer:       otel.Tracer("karma runner"),
		cmdBuilder:   exec.CommandContext,
	}
}

// runState collects what the output pumps observed.
type runState struct {
	mu       sync.Mutex
	failures int
	fatal    string
}

// Run starts karma with cfg and blocks until it exits. A non-zero exit code
// from karma is not an error; a failure to start node or karma is.
func (r *KarmaRunner) Run(ctx context.Context, cfg *harness.Config) (int, error) {
	if cfg == nil {
		return 1, fmt.Errorf("karma config is required")
	}

	runID := uuid.New().String()
	if r.runLog != nil {
		runID = r.runLog.RunID()
	}
	ctx, span := r.tracer.Start(ctx, "karma run", trace.WithAttributes(
		attribute.String("run_id", runID),
		attribute.String("bundler", cfg.Bundler),
		attribute.Bool("single_run", cfg.SingleRun),
	))
	defer span.End()

	start := time.Now()
	code, state, err := r.run(ctx, runID, cfg)
	duration := time.Since(start)

	span.SetAttributes(attribute.Int("exit_code", code))
	if err != nil {
		span.RecordError(err)
		metrics.RecordErrorDetails("karma_run", err)
	}
	metrics.RecordRun(cfg.Bundler, code, duration.Seconds())
	r.log.Debug("Karma finished", "run_id", runID, "exit_code", code, "duration", duration)

	if r.runLog != nil {
		if serr := r.runLog.WriteSummary(logging.Summary{
			Bundler:  cfg.Bundler,
			Browsers: cfg.Browsers,
			ExitCode: code,
			Duration: duration,
			Failures: state.failures,
		}); serr != nil {
			r.log.Warn("Failed to write run summary", "err", serr)
		}
	}
	return code, err
}

func (r *KarmaRunner) run(ctx context.Context, runID string, cfg *harness.Config) (int, *runState, error) {
	state := &runState{}

	workDir, err := os.MkdirTemp("", "op-karmatic-run-*")
	if err != nil {
		return 1, state, fmt.Errorf("failed to create run directory: %w", err)
	}
	defer func() {
		_ = os.RemoveAll(workDir)
	}()

	entry, err := r.writeRunDir(workDir, runID, cfg)
	if err != nil {
		return 1, state, err
	}

	cmd := r.cmdBuilder(ctx, r.node, entry)
	cmd.Dir = cfg.BasePath
	cmd.Env = telemetry.InstrumentEnvironment(ctx, r.environ(cfg))

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return 1, state, fmt.Errorf("failed to open stdout: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return 1, state, fmt.Errorf("failed to open stderr: %w", err)
	}
	stderrTail := newTailBuffer(defaultStderrTailBytes)

	r.log.Debug("Starting karma", "node", r.node, "entry", entry, "dir", cmd.Dir)
	if err := cmd.Start(); err != nil {
		return 1, state, fmt.Errorf("failed to start %s: %w", r.node, err)
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		r.pump(stdout, func(line string) { r.handleLine(line, cfg, state) })
	}()
	go func() {
		defer wg.Done()
		r.pump(io.TeeReader(stderr, stderrTail), r.emit)
	}()
	wg.Wait()

	runErr := cmd.Wait()
	code := 0
	if runErr != nil {
		exitErr := &exec.ExitError{}
		if !errors.As(runErr, &exitErr) {
			return 1, state, fmt.Errorf("failed to run karma: %w", runErr)
		}
		code = exitErr.ExitCode()
		if code < 0 {
			// killed by a signal
			code = 1
		}
	}

	if ctx.Err() != nil {
		return code, state, ctx.Err()
	}
	if state.fatal != "" {
		return 1, state, fmt.Errorf("karma failed to start: %s", state.fatal)
	}
	if code != 0 && state.failures == 0 {
		if tail := strings.TrimSpace(stderrTail.String()); tail != "" {
			r.log.Debug("Karma exited with stderr output", "exit_code", code, "stderr", tail, "truncated", stderrTail.Truncated())
		}
	}
	return code, state, nil
}

// writeRunDir writes the serialised config and the node scripts, returning
// the entry script path.
func (r *KarmaRunner) writeRunDir(dir, runID string, cfg *harness.Config) (string, error) {
	data := scriptData{
		RunID:          runID,
		Root:           cfg.BasePath,
		ConfigPath:     filepath.Join(dir, configFile),
		UserConfigPath: cfg.UserConfig,
		AppenderPath:   filepath.Join(dir, appenderScript),
		EvalEnv:        bundler.EvalEnvJSON,
		EvalArgv:       bundler.EvalArgvJSON,
		FrameStart:     FrameStart,
		FrameEnd:       FrameEnd,
	}

	b, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to serialise karma config: %w", err)
	}
	if err := os.WriteFile(data.ConfigPath, b, 0644); err != nil {
		return "", fmt.Errorf("failed to write karma config: %w", err)
	}
	if err := renderScript(appenderScript, data.AppenderPath, data); err != nil {
		return "", err
	}
	entry := filepath.Join(dir, entryScript)
	if err := renderScript(entryScript, entry, data); err != nil {
		return "", err
	}
	return entry, nil
}

func (r *KarmaRunner) environ(cfg *harness.Config) []string {
	env := os.Environ()
	for k, v := range cfg.Env {
		env = append(env, k+"="+v)
	}
	if r.toolchainDir != "" {
		paths := []string{filepath.Join(r.toolchainDir, "node_modules")}
		if existing := os.Getenv("NODE_PATH"); existing != "" {
			paths = append(paths, existing)
		}
		env = append(env, "NODE_PATH="+strings.Join(paths, string(os.PathListSeparator)))
	}
	return env
}

func (r *KarmaRunner) pump(rd io.Reader, handle func(string)) {
	scanner := bufio.NewScanner(rd)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	for scanner.Scan() {
		handle(scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		r.log.Warn("Failed to read karma output", "err", err)
		// drain so node never blocks on a full pipe
		_, _ = io.Copy(io.Discard, rd)
	}
}

func (r *KarmaRunner) emit(line string) {
	r.sink.WriteLine(line)
	if r.runLog != nil {
		if err := r.runLog.RecordOutput(line); err != nil {
			r.log.Debug("Failed to record output", "err", err)
		}
	}
}

// handleLine prints one line of node's stdout. Plain output goes through the
// console prettifier; records are rendered first.
func (r *KarmaRunner) handleLine(line string, cfg *harness.Config, state *runState) {
	plain, records := ParseLine(line)
	if len(records) == 0 || strings.TrimSpace(plain) != "" {
		if out, keep := diagnostic.Prettify(plain); keep {
			r.emit(out)
		}
	}

	for _, rec := range records {
		switch rec.Kind {
		case RecordError:
			rendered := rec.Message
			if cfg.FormatError != nil {
				rendered = cfg.FormatError(rec.Message)
			}
			state.mu.Lock()
			state.failures++
			state.mu.Unlock()
			r.emit(rendered)
			if r.runLog != nil {
				if err := r.runLog.RecordFailure(rendered); err != nil {
					r.log.Debug("Failed to record failure", "err", err)
				}
			}
		case RecordLog:
			msg := stacktrace.NewRewriter(cfg.BasePath).Rewrite(rec.Message)
			r.emit(red.Sprint(msg))
		case RecordFatal:
			state.mu.Lock()
			state.fatal = rec.Message
			state.mu.Unlock()
			r.emit(red.Sprint(rec.Message))
		}
	}
}

var _ Runner = &KarmaRunner{}
