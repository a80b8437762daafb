package metrics

import (
	"errors"
	"regexp"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestErrToLabel(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{
			name: "nil error",
			err:  nil,
		},
		{
			name: "simple error",
			err:  errors.New("test error"),
		},
		{
			name: "error with special chars",
			err:  errors.New("test@error#123"),
		},
		{
			name: "error with multiple spaces",
			err:  errors.New("test   error"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := errToLabel(tt.err)
			validLabelRegex := regexp.MustCompile(`[a-zA-Z_][a-zA-Z0-9_]*`)
			if !validLabelRegex.MatchString(result) {
				t.Errorf("errLabel() = %v, is not a valid Prometheus label", result)
			}
		})
	}
}

func TestRecordError(t *testing.T) {
	// just test that it doesn't panic
	defer func() {
		if r := recover(); r != nil {
			t.Errorf("RecordError panic'd")
		}
	}()

	RecordError("test_error")
	RecordErrorDetails("test", nil)
	RecordErrorDetails("test", errors.New("sample error"))
}

func TestRecordDiagnostic(t *testing.T) {
	before := testutil.ToFloat64(diagnosticsTotal.WithLabelValues("true"))
	RecordDiagnostic(true)
	RecordDiagnostic(false)
	assert.Equal(t, before+1, testutil.ToFloat64(diagnosticsTotal.WithLabelValues("true")))
}

func TestRecordBundlerConfig(t *testing.T) {
	RecordBundlerConfig("webpack", "modern", true)
	assert.Equal(t, float64(1), testutil.ToFloat64(bundlerConfigsTotal.WithLabelValues("webpack", "modern", "true")))
}

func TestRecordRun(t *testing.T) {
	RecordRun("webpack", 3, 1.5)
	RecordRun("webpack", 3, 2.5)
	assert.Equal(t, float64(2), testutil.ToFloat64(runsTotal.WithLabelValues("3")))
	assert.Equal(t, 2.5, testutil.ToFloat64(runDuration.WithLabelValues("webpack")))

	// Repeated runs reuse the same series.
	assert.Equal(t, 1, testutil.CollectAndCount(runsTotal))
	assert.Equal(t, 1, testutil.CollectAndCount(runDuration))
}
