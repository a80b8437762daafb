package karmatic

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ethereum-optimism/infra/op-karmatic/harness"
)

func TestErrorClassification(t *testing.T) {
	cfgErr := &harness.ConfigError{Variable: "SAUCE_USERNAME", Reason: "missing SauceLabs auth configuration"}
	execErr := &ExecutionError{Code: 3}
	rtErr := NewRuntimeError(errors.New("boom"))

	tests := []struct {
		name    string
		err     error
		config  bool
		exec    bool
		runtime bool
	}{
		{name: "nil", err: nil},
		{name: "plain", err: errors.New("x")},
		{name: "config", err: fmt.Errorf("build: %w", cfgErr), config: true},
		{name: "execution", err: fmt.Errorf("run: %w", execErr), exec: true},
		{name: "runtime", err: rtErr, runtime: true},
		{name: "runtime wrapping config", err: NewRuntimeError(cfgErr), config: true, runtime: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.config, IsConfigError(tt.err))
			assert.Equal(t, tt.exec, IsExecutionError(tt.err))
			assert.Equal(t, tt.runtime, IsRuntimeError(tt.err))
		})
	}

	got, ok := AsExecutionError(fmt.Errorf("run: %w", execErr))
	require.True(t, ok)
	assert.Equal(t, 3, got.Code)
	assert.Equal(t, "karma exited with code 3", got.Error())

	c, ok := AsConfigError(NewRuntimeError(cfgErr))
	require.True(t, ok)
	assert.Equal(t, "SAUCE_USERNAME", c.Variable)
	assert.Equal(t, "runtime error: boom", rtErr.Error())
}
