package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/ethereum/go-ethereum/log"
	"github.com/honeycombio/otel-config-go/otelconfig"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/urfave/cli/v2"

	karmatic "github.com/ethereum-optimism/infra/op-karmatic"
	"github.com/ethereum-optimism/infra/op-karmatic/diagnostic"
	"github.com/ethereum-optimism/infra/op-karmatic/exitcodes"
	"github.com/ethereum-optimism/infra/op-karmatic/flags"
	"github.com/ethereum-optimism/infra/op-karmatic/service"
	"github.com/ethereum-optimism/infra/op-karmatic/stacktrace"
	"github.com/ethereum-optimism/optimism/devnet-sdk/telemetry"
	"github.com/ethereum-optimism/optimism/op-service/cliapp"
	"github.com/ethereum-optimism/optimism/op-service/ctxinterrupt"
	oplog "github.com/ethereum-optimism/optimism/op-service/log"
	opmetrics "github.com/ethereum-optimism/optimism/op-service/metrics"
)

var (
	Version   = "v0.1.0"
	GitCommit = ""
	GitDate   = ""
)

// svc is started by the first lifecycle and shut down on exit.
var svc *service.Service

func main() {
	app := cli.NewApp()
	app.Version = fmt.Sprintf("%s-%s-%s", Version, GitCommit, GitDate)
	app.Name = "op-karmatic"
	app.Usage = "Zero-config browser testing with karma"
	app.Description = "op-karmatic runs a project's tests in real browsers with a karma config synthesized from its webpack or rollup setup. " +
		"Flags go before the command, test file patterns after it."
	app.Flags = cliapp.ProtectFlags(flags.Flags)
	app.ArgsUsage = "[files...]"
	app.Action = cliapp.LifecycleCmd(lifecycle(karmatic.ModeRun))
	app.Commands = []*cli.Command{
		{
			Name:      "run",
			Usage:     "Run tests once and exit",
			ArgsUsage: "[files...]",
			Action:    cliapp.LifecycleCmd(lifecycle(karmatic.ModeRun)),
		},
		{
			Name:      "watch",
			Usage:     "Run tests on any change",
			ArgsUsage: "[files...]",
			Action:    cliapp.LifecycleCmd(lifecycle(karmatic.ModeWatch)),
		},
		{
			Name:      "debug",
			Usage:     "Watch tests in a visible browser, without coverage",
			ArgsUsage: "[files...]",
			Action:    cliapp.LifecycleCmd(lifecycle(karmatic.ModeDebug)),
		},
		{
			Name:      "config",
			Usage:     "Print the synthesized karma config and exit",
			ArgsUsage: "[files...]",
			Action:    printConfig,
		},
	}
	app.ExitErrHandler = func(c *cli.Context, err error) {
		if err == nil {
			return
		}
		var exitErr cli.ExitCoder
		if errors.As(err, &exitErr) {
			cli.HandleExitCoder(exitErr)
			return
		}
		msg, code := exitFor(err)
		cli.HandleExitCoder(cli.Exit(msg, code))
	}

	// Start telemetry
	ctx, shutdown, err := telemetry.SetupOpenTelemetry(
		context.Background(),
		otelconfig.WithServiceName(app.Name),
		otelconfig.WithServiceVersion(app.Version),
	)
	if err != nil {
		log.Crit("Failed to setup open telemetry", "message", err)
	}
	defer shutdown()
	defer func() {
		if svc != nil {
			svc.Shutdown()
		}
	}()

	// Start CLI
	ctx = ctxinterrupt.WithSignalWaiterMain(ctx)
	err = app.RunContext(ctx, os.Args)
	if err != nil {
		log.Crit("Application failed", "message", err)
	}
}

// exitFor maps an error onto the message printed and the process exit code.
// A failed karma run has already printed its failures, so only codes that
// cannot be passed through get a message.
func exitFor(err error) (string, int) {
	if execErr, ok := karmatic.AsExecutionError(err); ok {
		code := exitcodes.FromRunner(execErr.Code)
		if code == execErr.Code {
			return "", code
		}
		return text.FgRed.Sprint(execErr.Error()), code
	}
	if cfgErr, ok := karmatic.AsConfigError(err); ok {
		msg := text.FgRed.Sprint(cfgErr.Error())
		if rem := cfgErr.Remediation(); rem != "" {
			msg += "\n" + rem
		}
		return msg, exitcodes.Failure
	}
	root, _ := os.Getwd()
	return text.FgRed.Sprint(stacktrace.NewRewriter(root).Rewrite(err.Error())), exitcodes.Failure
}

func setupLogging(ctx *cli.Context) log.Logger {
	logCfg := oplog.ReadCLIConfig(ctx)
	logger := oplog.NewLogger(oplog.AppOut(ctx), logCfg)
	oplog.SetGlobalLogHandler(logger.Handler())
	oplog.SetupDefaults()
	return logger
}

func lifecycle(mode karmatic.Mode) cliapp.LifecycleAction {
	return func(ctx *cli.Context, closeApp context.CancelCauseFunc) (cliapp.Lifecycle, error) {
		logger := setupLogging(ctx)

		cfg, err := karmatic.NewConfig(ctx, logger, mode)
		if err != nil {
			return nil, karmatic.NewRuntimeError(fmt.Errorf("failed to create config: %w", err))
		}
		cfg.Log.Debug("Config", "config", cfg)

		if svc == nil {
			metricsCfg := opmetrics.ReadCLIConfig(ctx)
			svc = service.New(service.Config{
				Enabled:     metricsCfg.Enabled,
				MetricsAddr: metricsCfg.ListenAddr,
				MetricsPort: metricsCfg.ListenPort,
			})
			svc.Start(ctx.Context)
		}

		k, err := karmatic.New(ctx.Context, cfg, Version, diagnostic.NewWriterSink(os.Stdout), closeApp)
		if err != nil {
			return nil, karmatic.NewRuntimeError(fmt.Errorf("failed to create karmatic: %w", err))
		}
		return k, nil
	}
}

func printConfig(ctx *cli.Context) error {
	logger := setupLogging(ctx)
	cfg, err := karmatic.NewConfig(ctx, logger, karmatic.ModeRun)
	if err != nil {
		return karmatic.NewRuntimeError(fmt.Errorf("failed to create config: %w", err))
	}
	return karmatic.PrintConfig(ctx.Context, cfg, ctx.App.Writer)
}
