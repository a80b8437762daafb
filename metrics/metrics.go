package metrics

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	MetricsNamespace = "karmatic"
)

var (
	Debug                bool = true
	nonAlphanumericRegex      = regexp.MustCompile(`[^a-zA-Z ]+`)

	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "errors_total",
		Help:      "Count of errors",
	}, []string{
		"error",
	})

	diagnosticsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "diagnostics_rendered_total",
		Help:      "Count of rendered failure diagnostics",
	}, []string{
		"code_frame",
	})

	bundlerConfigsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "bundler_configs_total",
		Help:      "Count of synthesized bundler configurations",
	}, []string{
		"bundler",
		"profile",
		"user_config",
	})

	runsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "runs_total",
		Help:      "Count of test runs by exit code",
	}, []string{
		"exit_code",
	})

	runDuration = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: MetricsNamespace,
		Name:      "run_duration_seconds",
		Help:      "Duration of the last test run per bundler",
	}, []string{
		"bundler",
	})
)

// errToLabel tries to make the error string a more valid Prometheus label
func errToLabel(err error) string {
	if err == nil {
		return "nil"
	}
	errClean := nonAlphanumericRegex.ReplaceAllString(err.Error(), "")
	errClean = strings.ReplaceAll(errClean, " ", "_")
	errClean = strings.ReplaceAll(errClean, "__", "_")
	return errClean
}

func RecordError(error string) {
	if Debug {
		log.Debug("metric inc",
			"m", "errors_total",
			"error", error,
		)
	}
	errorsTotal.WithLabelValues(error).Inc()
}

// RecordErrorDetails concats the error message to the label
// and also tries to clean the label to be a valid Prometheus label
func RecordErrorDetails(label string, err error) {
	if err == nil {
		return
	}
	label = fmt.Sprintf("%s.%s", label, errToLabel(err))
	RecordError(label)
}

// RecordDiagnostic counts a rendered diagnostic and whether it carried a code frame.
func RecordDiagnostic(withCodeFrame bool) {
	diagnosticsTotal.WithLabelValues(strconv.FormatBool(withCodeFrame)).Inc()
}

func RecordBundlerConfig(bundler string, profile string, userConfig bool) {
	if Debug {
		log.Debug("metric inc",
			"m", "bundler_configs_total",
			"bundler", bundler,
			"profile", profile,
			"user_config", userConfig)
	}
	bundlerConfigsTotal.WithLabelValues(bundler, profile, strconv.FormatBool(userConfig)).Inc()
}

// RecordRun counts a finished run. The run id is a span attribute, not a label.
func RecordRun(bundler string, exitCode int, seconds float64) {
	runsTotal.WithLabelValues(strconv.Itoa(exitCode)).Inc()
	runDuration.WithLabelValues(bundler).Set(seconds)
}
