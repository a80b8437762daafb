// Package karmatic runs browser tests with karma using a configuration
// synthesized for the project: test files, launchers, reporters and a
// webpack or rollup block derived from the project's own bundler setup.
package karmatic

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/ethereum-optimism/infra/op-karmatic/diagnostic"
	"github.com/ethereum-optimism/infra/op-karmatic/exitcodes"
	"github.com/ethereum-optimism/infra/op-karmatic/harness"
	"github.com/ethereum-optimism/infra/op-karmatic/logging"
	"github.com/ethereum-optimism/infra/op-karmatic/runner"
	"github.com/ethereum-optimism/optimism/op-service/cliapp"
)

// karmatic implements the cliapp.Lifecycle interface.
var _ cliapp.Lifecycle = &karmatic{}

type configBuilder interface {
	Build(ctx context.Context) (*harness.Config, error)
}

// karmatic builds one karma configuration and runs it, once or in watch
// mode until stopped.
type karmatic struct {
	ctx     context.Context
	config  *Config
	version string
	builder configBuilder
	runner  runner.Runner
	runLog  *logging.RunLog

	running   atomic.Bool
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	closeOnce sync.Once

	shutdownCallback func(error) // Callback to signal application shutdown
}

// New creates the lifecycle for config. Console output goes to sink.
func New(ctx context.Context, config *Config, version string, sink diagnostic.ConsoleSink, shutdownCallback func(error)) (*karmatic, error) {
	if config == nil {
		return nil, errors.New("config is required")
	}

	config.Log.Debug("Creating karmatic with config",
		"mode", config.Mode,
		"root", config.Harness.Root,
		"browsers", config.Harness.Browsers,
		"watch", config.Harness.Watch,
		"coverage", config.Harness.Coverage,
		"settings", config.Settings.Path)

	var runLog *logging.RunLog
	if config.LogDir != "" {
		var err error
		runLog, err = logging.NewRunLog(config.LogDir, uuid.New().String())
		if err != nil {
			return nil, fmt.Errorf("failed to create run log: %w", err)
		}
	}

	return &karmatic{
		ctx:     ctx,
		config:  config,
		version: version,
		builder: harness.NewBuilder(config.Harness, config.Log),
		runner: runner.NewKarmaRunner(runner.Config{
			NodeBinary:   config.NodeBinary,
			ToolchainDir: config.Harness.ToolchainDir,
			Sink:         sink,
			RunLog:       runLog,
			Log:          config.Log,
		}),
		runLog:           runLog,
		shutdownCallback: shutdownCallback,
	}, nil
}

// Start builds the karma configuration and runs it. In run-once mode it
// returns when karma exits; a failing run is reported as an ExecutionError.
// In watch mode karma keeps running until Stop.
// Start implements the cliapp.Lifecycle interface.
func (k *karmatic) Start(ctx context.Context) error {
	k.running.Store(true)

	cfg, err := k.builder.Build(ctx)
	if err != nil {
		k.running.Store(false)
		k.closeRunLog()
		return fmt.Errorf("failed to build karma config: %w", err)
	}
	k.config.Log.Debug("Built karma config", "bundler", cfg.Bundler, "browsers", cfg.Browsers, "user_config", cfg.UserConfig)

	if !k.config.Watch() {
		k.config.Log.Info("Running tests once", "root", cfg.BasePath)
		code, err := k.runner.Run(ctx, cfg)
		k.running.Store(false)
		k.closeRunLog()
		if err := runResult(code, err); err != nil {
			return err
		}
		go func() {
			k.shutdownCallback(nil)
		}()
		return nil
	}

	parent := k.ctx
	if parent == nil {
		parent = context.Background()
	}
	runCtx, cancel := context.WithCancel(parent)
	k.cancel = cancel

	k.config.Log.Info("Starting karma in watch mode", "root", cfg.BasePath)
	k.wg.Add(1)
	go func() {
		defer k.wg.Done()
		code, err := k.runner.Run(runCtx, cfg)
		if runCtx.Err() != nil {
			return
		}
		// karma stopped watching on its own
		k.running.Store(false)
		err = runResult(code, err)
		if err != nil {
			k.config.Log.Error("Karma stopped", "err", err)
		}
		k.shutdownCallback(err)
	}()
	return nil
}

// runResult maps a finished run onto the error Start reports.
func runResult(code int, err error) error {
	if err != nil {
		return NewRuntimeError(fmt.Errorf("failed to run karma: %w", err))
	}
	if code != exitcodes.Success {
		return &ExecutionError{Code: code}
	}
	return nil
}

func (k *karmatic) closeRunLog() {
	if k.runLog == nil {
		return
	}
	k.closeOnce.Do(func() {
		if err := k.runLog.Close(); err != nil {
			k.config.Log.Warn("Failed to close run log", "err", err)
			return
		}
		k.config.Log.Info("Run logs written", "dir", k.runLog.Dir())
	})
}

// Stop stops karma if it is still watching.
// Stop implements the cliapp.Lifecycle interface.
func (k *karmatic) Stop(ctx context.Context) error {
	if k.cancel != nil {
		k.cancel()
	}
	k.wg.Wait()
	k.closeRunLog()
	if !k.running.Swap(false) {
		k.config.Log.Debug("Karmatic already stopped, nothing to do")
		return nil
	}
	k.config.Log.Info("Karmatic stopped")
	return nil
}

// Stopped implements the cliapp.Lifecycle interface.
func (k *karmatic) Stopped() bool {
	return !k.running.Load()
}

