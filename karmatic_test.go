package karmatic

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ethereum-optimism/infra/op-karmatic/harness"
	"github.com/ethereum-optimism/infra/op-karmatic/logging"
)

type fakeBuilder struct {
	cfg *harness.Config
	err error
}

func (f *fakeBuilder) Build(context.Context) (*harness.Config, error) {
	return f.cfg, f.err
}

type fakeRunner struct {
	code  int
	err   error
	block bool
	calls int
}

func (f *fakeRunner) Run(ctx context.Context, _ *harness.Config) (int, error) {
	f.calls++
	if f.block {
		<-ctx.Done()
		return 1, ctx.Err()
	}
	return f.code, f.err
}

func newTestKarmatic(t *testing.T, watch bool, b *fakeBuilder, r *fakeRunner) (*karmatic, chan error) {
	t.Helper()
	shutdown := make(chan error, 1)
	cfg := &Config{
		Harness:  harness.Options{Root: t.TempDir(), Watch: watch},
		Settings: &Settings{},
		Log:      log.NewLogger(log.DiscardHandler()),
	}
	k, err := New(context.Background(), cfg, "test", nil, func(err error) { shutdown <- err })
	require.NoError(t, err)
	k.builder = b
	k.runner = r
	return k, shutdown
}

func TestNewRequiresConfig(t *testing.T) {
	_, err := New(context.Background(), nil, "test", nil, nil)
	assert.EqualError(t, err, "config is required")
}

func TestStartRunOnce(t *testing.T) {
	r := &fakeRunner{}
	k, shutdown := newTestKarmatic(t, false, &fakeBuilder{cfg: &harness.Config{}}, r)

	require.NoError(t, k.Start(context.Background()))
	assert.Equal(t, 1, r.calls)
	assert.True(t, k.Stopped())
	select {
	case err := <-shutdown:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("shutdown callback not called")
	}
}

func TestStartRunOnceFailures(t *testing.T) {
	tests := []struct {
		name    string
		builder *fakeBuilder
		runner  *fakeRunner
		check   func(t *testing.T, err error)
	}{
		{
			name:    "tests failed",
			builder: &fakeBuilder{cfg: &harness.Config{}},
			runner:  &fakeRunner{code: 3},
			check: func(t *testing.T, err error) {
				execErr, ok := AsExecutionError(err)
				require.True(t, ok)
				assert.Equal(t, 3, execErr.Code)
			},
		},
		{
			name:    "runner failed",
			builder: &fakeBuilder{cfg: &harness.Config{}},
			runner:  &fakeRunner{code: 1, err: errors.New("node not found")},
			check: func(t *testing.T, err error) {
				assert.True(t, IsRuntimeError(err))
				assert.False(t, IsExecutionError(err))
			},
		},
		{
			name:    "missing credentials",
			builder: &fakeBuilder{err: &harness.ConfigError{Variable: "SAUCE_USERNAME", Reason: "missing SauceLabs auth configuration"}},
			runner:  &fakeRunner{},
			check: func(t *testing.T, err error) {
				assert.True(t, IsConfigError(err))
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			k, _ := newTestKarmatic(t, false, tt.builder, tt.runner)
			err := k.Start(context.Background())
			require.Error(t, err)
			tt.check(t, err)
			assert.True(t, k.Stopped())
		})
	}
}

func TestStartWatchUntilStopped(t *testing.T) {
	r := &fakeRunner{block: true}
	k, shutdown := newTestKarmatic(t, true, &fakeBuilder{cfg: &harness.Config{}}, r)

	require.NoError(t, k.Start(context.Background()))
	assert.False(t, k.Stopped())
	require.NoError(t, k.Stop(context.Background()))
	assert.True(t, k.Stopped())
	assert.Equal(t, 1, r.calls)
	select {
	case err := <-shutdown:
		t.Fatalf("unexpected shutdown callback: %v", err)
	default:
	}
	require.NoError(t, k.Stop(context.Background()), "stopping twice is fine")
}

func TestStartWatchKarmaExits(t *testing.T) {
	k, shutdown := newTestKarmatic(t, true, &fakeBuilder{cfg: &harness.Config{}}, &fakeRunner{code: 2})
	require.NoError(t, k.Start(context.Background()))
	select {
	case err := <-shutdown:
		execErr, ok := AsExecutionError(err)
		require.True(t, ok)
		assert.Equal(t, 2, execErr.Code)
	case <-time.After(5 * time.Second):
		t.Fatal("shutdown callback not called")
	}
	require.NoError(t, k.Stop(context.Background()))
}

func TestRunLogWritten(t *testing.T) {
	logDir := t.TempDir()
	cfg := &Config{
		Harness:  harness.Options{Root: t.TempDir()},
		LogDir:   logDir,
		Settings: &Settings{},
		Log:      log.NewLogger(log.DiscardHandler()),
	}
	k, err := New(context.Background(), cfg, "test", nil, func(error) {})
	require.NoError(t, err)
	require.NotNil(t, k.runLog)
	k.builder = &fakeBuilder{cfg: &harness.Config{}}
	k.runner = &fakeRunner{}

	require.NoError(t, k.Start(context.Background()))
	entries, err := os.ReadDir(logDir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, filepath.Join(logDir, entries[0].Name()), k.runLog.Dir())
	assert.FileExists(t, filepath.Join(k.runLog.Dir(), logging.FailuresFilename))
}
