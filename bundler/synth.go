package bundler

import (
	"context"
	"fmt"

	"github.com/ethereum-optimism/infra/op-karmatic/metrics"
	"github.com/ethereum/go-ethereum/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Options control synthesis.
type Options struct {
	// Root is the absolute project directory.
	Root string
	// ToolchainDir holds karmatic's own node dependencies.
	ToolchainDir string

	Coverage  bool
	Downlevel bool
	Browsers  []string
	Pragma    string

	// WebpackConfig and RollupConfig are explicit config file paths.
	WebpackConfig string
	RollupConfig  string
	// WebpackObject and RollupObject are configs given inline in the
	// project settings. They take precedence over any file.
	WebpackObject map[string]any
	RollupObject  map[string]any

	Allowlist  *Allowlist
	PluginTags map[string][]string
}

// Result is a synthesized bundler configuration and the karma glue it needs.
type Result struct {
	Kind Kind
	// Block is the configuration placed under Kind.ConfigKey().
	Block map[string]any
	// Middleware is the webpackMiddleware block, nil for rollup.
	Middleware   map[string]any
	Preprocessor string
	KarmaPlugin  string

	Detection  Detection
	Profile    Profile
	UserConfig *UserConfig
	// Webpack is the structured form of Block when Kind is Webpack.
	Webpack *Config
}

// Synthesizer merges the project's bundler config with test defaults.
type Synthesizer struct {
	opts   Options
	probe  *Probe
	log    log.Logger
	tracer trace.Tracer
}

// NewSynthesizer returns a Synthesizer. A nil probe is created from opts.
func NewSynthesizer(opts Options, probe *Probe, logger log.Logger) *Synthesizer {
	if logger == nil {
		logger = log.New()
	}
	if probe == nil {
		probe = NewProbe(opts.Root, opts.ToolchainDir, logger)
	}
	if opts.Allowlist == nil {
		opts.Allowlist = DefaultAllowlist()
	}
	return &Synthesizer{
		opts:   opts,
		probe:  probe,
		log:    logger,
		tracer: otel.Tracer("bundler"),
	}
}

// Synthesize builds the bundler configuration. Webpack is used when it is
// installed; rollup otherwise.
func (s *Synthesizer) Synthesize(ctx context.Context) (*Result, error) {
	ctx, span := s.tracer.Start(ctx, "synthesize bundler config")
	defer span.End()

	var (
		res *Result
		err error
	)
	if det := s.probe.Detect(ctx, Webpack); det.Available {
		res, err = s.webpack(ctx, det)
	} else {
		res, err = s.rollup(ctx)
	}
	if err != nil {
		span.RecordError(err)
		metrics.RecordErrorDetails("synthesize", err)
		return nil, fmt.Errorf("failed to synthesize bundler config: %w", err)
	}

	profile := ""
	if res.Kind == Webpack {
		profile = res.Profile.String()
	}
	span.SetAttributes(
		attribute.String("bundler", res.Kind.String()),
		attribute.String("profile", profile),
		attribute.Bool("user_config", res.UserConfig != nil),
	)
	metrics.RecordBundlerConfig(res.Kind.String(), profile, res.UserConfig != nil)
	s.log.Debug("Synthesized bundler config", "bundler", res.Kind, "version", res.Detection.Version, "profile", profile, "user_config", res.UserConfig != nil)
	return res, nil
}
