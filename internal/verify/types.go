// Package verify implements the agentic verification loop: multi-turn
// judgment of scanner findings with on-demand context resolution, PoC script
// synthesis, self-healing execution, and outcome classification.
package verify

import (
	"context"
	"fmt"

	"github.com/massaudit/massaudit/internal/findings"
)

// RiskLevel is the engine's assessment of a finding.
type RiskLevel string

const (
	RiskUnknown  RiskLevel = "unknown"
	RiskLow      RiskLevel = "low"
	RiskMedium   RiskLevel = "medium"
	RiskHigh     RiskLevel = "high"
	RiskCritical RiskLevel = "critical"
)

var riskOrder = map[RiskLevel]int{
	RiskUnknown:  0,
	RiskLow:      1,
	RiskMedium:   2,
	RiskHigh:     3,
	RiskCritical: 4,
}

// ParseRiskLevel normalizes a risk string, mapping anything unrecognized to
// RiskUnknown.
func ParseRiskLevel(s string) RiskLevel {
	level := RiskLevel(s)
	if _, ok := riskOrder[level]; ok {
		return level
	}
	return RiskUnknown
}

// AtLeast reports whether r is at or above threshold on the risk scale.
func (r RiskLevel) AtLeast(threshold RiskLevel) bool {
	return riskOrder[r] >= riskOrder[threshold]
}

// ContextFragment is one resolved symbol definition supplied to the engine
// beyond the finding's original snippet.
type ContextFragment struct {
	Symbol    string `json:"symbol"`
	FilePath  string `json:"file_path"`
	StartLine int    `json:"start_line"`
	EndLine   int    `json:"end_line"`
	Language  string `json:"language"`
	Text      string `json:"text"`
}

// ContextSet is the append-only, insertion-ordered collection of fragments
// accumulated over one session. Fragments are deduplicated by symbol name.
type ContextSet struct {
	fragments []ContextFragment
	bySymbol  map[string]struct{}
}

func NewContextSet() *ContextSet {
	return &ContextSet{bySymbol: make(map[string]struct{})}
}

// Add appends a fragment unless one with the same symbol name is already
// present. It reports whether the fragment was added.
func (cs *ContextSet) Add(fragment ContextFragment) bool {
	if _, ok := cs.bySymbol[fragment.Symbol]; ok {
		return false
	}
	cs.bySymbol[fragment.Symbol] = struct{}{}
	cs.fragments = append(cs.fragments, fragment)
	return true
}

// Has reports whether a fragment for symbol is already present.
func (cs *ContextSet) Has(symbol string) bool {
	_, ok := cs.bySymbol[symbol]
	return ok
}

// Fragments returns the fragments in insertion order. The returned slice is a
// snapshot; mutating it does not affect the set.
func (cs *ContextSet) Fragments() []ContextFragment {
	out := make([]ContextFragment, len(cs.fragments))
	copy(out, cs.fragments)
	return out
}

func (cs *ContextSet) Len() int { return len(cs.fragments) }

// Verdict is the terminal judgment of a session.
type Verdict struct {
	Risk      RiskLevel `json:"risk"`
	Rationale string    `json:"rationale"`
}

// NeedContext is the engine's request for additional symbol definitions.
type NeedContext struct {
	Symbols []string `json:"symbols"`
}

// JudgeReply is the parsed engine response to one judgment turn. Exactly one
// field is set.
type JudgeReply struct {
	Verdict     *Verdict
	NeedContext *NeedContext
}

// JudgmentTurn records one request/response exchange of a session.
type JudgmentTurn struct {
	Index       int               `json:"index"`
	ContextSize int               `json:"context_size"`
	Verdict     *Verdict          `json:"verdict,omitempty"`
	NeedContext *NeedContext      `json:"need_context,omitempty"`
	ResolvedNow []ContextFragment `json:"resolved_now,omitempty"`
	EngineError string            `json:"engine_error,omitempty"`
}

// VerificationOutcome is the terminal classification of a PoC run.
type VerificationOutcome string

const (
	OutcomeSafePass            VerificationOutcome = "SAFE_PASS"
	OutcomeVulnerableConfirmed VerificationOutcome = "VULNERABLE_CONFIRMED"
	OutcomeInconclusive        VerificationOutcome = "INCONCLUSIVE"
	OutcomeBuildFailed         VerificationOutcome = "BUILD_FAILED"
)

// ParseOutcome validates an outcome label from the engine.
func ParseOutcome(s string) (VerificationOutcome, error) {
	switch VerificationOutcome(s) {
	case OutcomeSafePass, OutcomeVulnerableConfirmed, OutcomeInconclusive, OutcomeBuildFailed:
		return VerificationOutcome(s), nil
	}
	return "", fmt.Errorf("unknown verification outcome %q", s)
}

// VerificationAttempt records one build/run cycle of the self-healing loop.
// Attempt 0 is the initial draft; attempts 1..N are repairs.
type VerificationAttempt struct {
	Index      int                 `json:"index"`
	Script     string              `json:"script"`
	Output     string              `json:"output"`
	ExitStatus int                 `json:"exit_status"`
	BuildOK    bool                `json:"build_ok"`
	TimedOut   bool                `json:"timed_out"`
	Outcome    VerificationOutcome `json:"outcome,omitempty"`
}

// Classification is the engine's interpretation of execution output.
type Classification struct {
	Outcome VerificationOutcome `json:"outcome"`
	Reason  string              `json:"reason"`
}

// Record is the terminal per-finding result handed to the reporting layer.
type Record struct {
	Finding  findings.Finding      `json:"finding"`
	Verdict  Verdict               `json:"verdict"`
	Turns    []JudgmentTurn        `json:"turns"`
	Attempts []VerificationAttempt `json:"attempts,omitempty"`
	Outcome  VerificationOutcome   `json:"outcome,omitempty"`
	Context  []ContextFragment     `json:"context,omitempty"`
}

// ReasoningEngine is the black-box judgment capability the loop talks to.
// Implementations must be safe for concurrent use across findings.
type ReasoningEngine interface {
	// Judge submits the finding with the current context snapshot and
	// returns either a verdict or a request for more context.
	Judge(ctx context.Context, project string, finding findings.Finding, contextSet []ContextFragment) (JudgeReply, error)
	// Synthesize requests a self-contained PoC script for the finding.
	Synthesize(ctx context.Context, project string, finding findings.Finding, contextSet []ContextFragment) (string, error)
	// Repair requests a corrected script given the failing build output.
	Repair(ctx context.Context, project string, finding findings.Finding, script, buildOutput string) (string, error)
	// Classify interprets final execution output into an outcome.
	Classify(ctx context.Context, project string, finding findings.Finding, output string) (Classification, error)
}

// Resolver finds symbol definitions within a project tree.
type Resolver interface {
	ResolveMissing(symbols []string, contextSet *ContextSet, projectRoot string) []ContextFragment
}

// Toolchain builds and runs a script in a working directory.
type Toolchain interface {
	BuildAndRun(ctx context.Context, script, workdir string) (ExecResult, error)
}

// ExecResult is the raw outcome of one toolchain invocation.
type ExecResult struct {
	BuildOK    bool
	Output     string
	ExitStatus int
	TimedOut   bool
}
