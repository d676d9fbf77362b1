// Package toolchain builds and runs generated verification scripts. Each
// language keeps its build step separate from its run step, so a compile
// failure is distinguishable from a runtime crash.
package toolchain

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/massaudit/massaudit/internal/verify"
)

// Runner executes scripts for one language. The zero value is unusable; use
// NewRunner.
type Runner struct {
	logger   hclog.Logger
	language string
	timeout  time.Duration
}

// NewRunner builds a Runner for the given language ("Go" or "Python").
// timeout bounds each phase of every attempt.
func NewRunner(logger hclog.Logger, language string, timeout time.Duration) (*Runner, error) {
	switch language {
	case "Go", "Python":
	default:
		return nil, fmt.Errorf("unsupported toolchain language %q", language)
	}
	return &Runner{
		logger:   logger.Named("toolchain"),
		language: language,
		timeout:  timeout,
	}, nil
}

// BuildAndRun writes the script into workdir, builds it, and on build success
// runs the produced artifact. Output is the combined stdout/stderr of
// whichever phase ran last.
func (r *Runner) BuildAndRun(ctx context.Context, script, workdir string) (verify.ExecResult, error) {
	scriptPath, err := r.writeScript(script, workdir)
	if err != nil {
		return verify.ExecResult{}, err
	}

	buildOutput, buildExit, buildTimedOut, err := r.build(ctx, scriptPath, workdir)
	if err != nil {
		return verify.ExecResult{}, err
	}
	if buildTimedOut || buildExit != 0 {
		return verify.ExecResult{
			BuildOK:    false,
			Output:     buildOutput,
			ExitStatus: buildExit,
			TimedOut:   buildTimedOut,
		}, nil
	}

	runOutput, runExit, runTimedOut, err := r.run(ctx, scriptPath, workdir)
	if err != nil {
		return verify.ExecResult{}, err
	}
	return verify.ExecResult{
		BuildOK:    true,
		Output:     runOutput,
		ExitStatus: runExit,
		TimedOut:   runTimedOut,
	}, nil
}

func (r *Runner) writeScript(script, workdir string) (string, error) {
	name := "poc.go"
	if r.language == "Python" {
		name = "poc.py"
	}
	scriptPath := filepath.Join(workdir, name)
	if err := os.WriteFile(scriptPath, []byte(script), 0o644); err != nil {
		return "", fmt.Errorf("failed to write script: %w", err)
	}
	return scriptPath, nil
}

func (r *Runner) build(ctx context.Context, scriptPath, workdir string) (string, int, bool, error) {
	switch r.language {
	case "Go":
		if err := r.ensureGoModule(workdir); err != nil {
			return "", 0, false, err
		}
		return r.execute(ctx, workdir, "go", "build", "-o", r.binaryPath(workdir), scriptPath)
	case "Python":
		return r.execute(ctx, workdir, "python3", "-m", "py_compile", scriptPath)
	}
	return "", 0, false, fmt.Errorf("unsupported toolchain language %q", r.language)
}

func (r *Runner) run(ctx context.Context, scriptPath, workdir string) (string, int, bool, error) {
	switch r.language {
	case "Go":
		return r.execute(ctx, workdir, r.binaryPath(workdir))
	case "Python":
		return r.execute(ctx, workdir, "python3", scriptPath)
	}
	return "", 0, false, fmt.Errorf("unsupported toolchain language %q", r.language)
}

func (r *Runner) binaryPath(workdir string) string {
	return filepath.Join(workdir, "poc.bin")
}

// ensureGoModule drops a minimal go.mod so the build runs in module mode
// regardless of where the workdir sits.
func (r *Runner) ensureGoModule(workdir string) error {
	modPath := filepath.Join(workdir, "go.mod")
	if _, err := os.Stat(modPath); err == nil {
		return nil
	}
	content := "module poc\n\ngo 1.21\n"
	if err := os.WriteFile(modPath, []byte(content), 0o644); err != nil {
		return fmt.Errorf("failed to write go.mod: %w", err)
	}
	return nil
}

// execute runs one command with the per-phase timeout, capturing combined
// output. A timeout or non-zero exit is a result, not an error; errors are
// reserved for failures to start the process at all.
func (r *Runner) execute(ctx context.Context, workdir, name string, args ...string) (string, int, bool, error) {
	execCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	cmd := exec.CommandContext(execCtx, name, args...)
	cmd.Dir = workdir

	var output bytes.Buffer
	cmd.Stdout = &output
	cmd.Stderr = &output

	r.logger.Debug("executing command", "cmd", name, "args", args, "workdir", workdir)
	err := cmd.Run()
	timedOut := errors.Is(execCtx.Err(), context.DeadlineExceeded)

	exitStatus := 0
	if err != nil {
		var exitErr *exec.ExitError
		switch {
		case errors.As(err, &exitErr):
			exitStatus = exitErr.ExitCode()
		case timedOut:
			exitStatus = -1
		default:
			return "", 0, false, fmt.Errorf("failed to execute %s: %w", name, err)
		}
	}

	out := output.String()
	if timedOut {
		out += "\n[command timed out]\n"
	}
	return out, exitStatus, timedOut, nil
}
