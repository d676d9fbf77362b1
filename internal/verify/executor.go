package verify

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/hashicorp/go-hclog"

	"github.com/massaudit/massaudit/internal/findings"
	"github.com/massaudit/massaudit/pkg/shared/files"
)

// Executor owns the self-healing build/run loop for one finding's script. It
// writes only inside the finding's working directory; two findings never
// share one.
type Executor struct {
	engine       ReasoningEngine
	toolchain    Toolchain
	logger       hclog.Logger
	repairBudget int
	workdirRoot  string
	keepWorkdirs bool
}

func NewExecutor(engine ReasoningEngine, toolchain Toolchain, logger hclog.Logger, repairBudget int, workdirRoot string, keepWorkdirs bool) *Executor {
	return &Executor{
		engine:       engine,
		toolchain:    toolchain,
		logger:       logger.Named("executor"),
		repairBudget: repairBudget,
		workdirRoot:  workdirRoot,
		keepWorkdirs: keepWorkdirs,
	}
}

// Run executes the script with bounded repair. Attempt 0 is the initial
// draft; each build failure consumes one repair up to the budget, so the
// attempt trail never exceeds repairBudget+1 entries. The first successful
// run is handed to the classifier and terminates the loop.
func (e *Executor) Run(ctx context.Context, project string, finding findings.Finding, script string) ([]VerificationAttempt, VerificationOutcome) {
	findingDir := filepath.Join(e.workdirRoot, finding.ID)
	defer e.cleanup(findingDir)

	var attempts []VerificationAttempt

	if err := files.RemoveAndRecreate(findingDir); err != nil {
		e.logger.Error("failed to prepare working directory", "finding", finding.ID, "err", err)
		attempt := VerificationAttempt{Index: 0, Script: script, Output: fmt.Sprintf("workdir setup failed: %v", err), Outcome: OutcomeBuildFailed}
		return []VerificationAttempt{attempt}, OutcomeBuildFailed
	}

	for index := 0; index <= e.repairBudget; index++ {
		attempt := VerificationAttempt{Index: index, Script: script}

		workdir := filepath.Join(findingDir, fmt.Sprintf("attempt_%d", index))
		if err := os.MkdirAll(workdir, 0o755); err != nil {
			e.logger.Error("failed to create working directory", "finding", finding.ID, "err", err)
			attempt.Output = fmt.Sprintf("workdir setup failed: %v", err)
			attempt.Outcome = OutcomeBuildFailed
			return append(attempts, attempt), OutcomeBuildFailed
		}

		result, err := e.toolchain.BuildAndRun(ctx, script, workdir)
		if err != nil {
			e.logger.Error("toolchain invocation failed", "finding", finding.ID, "attempt", index, "err", err)
			attempt.Output = err.Error()
			attempt.Outcome = OutcomeBuildFailed
			return append(attempts, attempt), OutcomeBuildFailed
		}

		attempt.Output = result.Output
		attempt.ExitStatus = result.ExitStatus
		attempt.BuildOK = result.BuildOK
		attempt.TimedOut = result.TimedOut

		if result.BuildOK {
			outcome := e.classify(ctx, project, finding, result.Output)
			attempt.Outcome = outcome
			attempts = append(attempts, attempt)
			e.logger.Debug("verification classified", "finding", finding.ID, "attempt", index, "outcome", outcome)
			return attempts, outcome
		}

		attempts = append(attempts, attempt)
		if index == e.repairBudget {
			break
		}

		repaired, repairErr := e.engine.Repair(ctx, project, finding, script, result.Output)
		if repairErr != nil || repaired == "" {
			e.logger.Warn("repair unavailable, stopping", "finding", finding.ID, "attempt", index, "err", repairErr)
			return attempts, OutcomeBuildFailed
		}
		script = repaired
		e.logger.Debug("script repaired, retrying build", "finding", finding.ID, "next_attempt", index+1)
	}

	return attempts, OutcomeBuildFailed
}

// classify delegates outcome judgment to the engine. An unreachable engine
// yields INCONCLUSIVE, never a pass.
func (e *Executor) classify(ctx context.Context, project string, finding findings.Finding, output string) VerificationOutcome {
	classification, err := e.engine.Classify(ctx, project, finding, output)
	if err != nil {
		e.logger.Warn("classification failed, recording inconclusive", "finding", finding.ID, "err", err)
		return OutcomeInconclusive
	}
	return classification.Outcome
}

func (e *Executor) cleanup(findingDir string) {
	if e.keepWorkdirs {
		return
	}
	if err := os.RemoveAll(findingDir); err != nil {
		e.logger.Warn("failed to remove working directory", "dir", findingDir, "err", err)
	}
}
