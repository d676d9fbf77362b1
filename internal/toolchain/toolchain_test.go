package toolchain

import (
	"context"
	"os/exec"
	"testing"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func requirePython(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("python3"); err != nil {
		t.Skip("python3 not available")
	}
}

func newPythonRunner(t *testing.T, timeout time.Duration) *Runner {
	t.Helper()
	runner, err := NewRunner(hclog.NewNullLogger(), "Python", timeout)
	require.NoError(t, err)
	return runner
}

func TestNewRunnerRejectsUnknownLanguage(t *testing.T) {
	_, err := NewRunner(hclog.NewNullLogger(), "Cobol", time.Second)
	assert.Error(t, err)
}

func TestBuildAndRunPython(t *testing.T) {
	requirePython(t)
	runner := newPythonRunner(t, 10*time.Second)

	result, err := runner.BuildAndRun(context.Background(), `print("PASS, no panic")`, t.TempDir())
	require.NoError(t, err)
	assert.True(t, result.BuildOK)
	assert.Equal(t, 0, result.ExitStatus)
	assert.False(t, result.TimedOut)
	assert.Contains(t, result.Output, "PASS, no panic")
}

func TestBuildFailureIsNotAnError(t *testing.T) {
	requirePython(t)
	runner := newPythonRunner(t, 10*time.Second)

	result, err := runner.BuildAndRun(context.Background(), "def broken(:\n    pass\n", t.TempDir())
	require.NoError(t, err)
	assert.False(t, result.BuildOK)
	assert.NotEqual(t, 0, result.ExitStatus)
}

func TestRuntimeCrashIsCaptured(t *testing.T) {
	requirePython(t)
	runner := newPythonRunner(t, 10*time.Second)

	result, err := runner.BuildAndRun(context.Background(), `raise RuntimeError("boom")`, t.TempDir())
	require.NoError(t, err)
	assert.True(t, result.BuildOK)
	assert.NotEqual(t, 0, result.ExitStatus)
	assert.Contains(t, result.Output, "boom")
}

func TestRunTimeout(t *testing.T) {
	requirePython(t)
	runner := newPythonRunner(t, 500*time.Millisecond)

	result, err := runner.BuildAndRun(context.Background(), "import time\ntime.sleep(30)\n", t.TempDir())
	require.NoError(t, err)
	assert.True(t, result.BuildOK)
	assert.True(t, result.TimedOut)
	assert.Contains(t, result.Output, "[command timed out]")
}
