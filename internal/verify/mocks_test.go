package verify

import (
	"context"
	"errors"
	"sync"

	"github.com/massaudit/massaudit/internal/findings"
)

// mockEngine replays scripted responses and records how it was called.
type mockEngine struct {
	mu sync.Mutex

	judgeReplies []JudgeReply
	judgeErrs    []error
	judgeCalls   int

	synthScript string
	synthErr    error

	repairScripts []string
	repairErr     error
	repairCalls   int

	classification Classification
	classifyErr    error
	classifyInput  string
}

func (m *mockEngine) Judge(ctx context.Context, project string, finding findings.Finding, contextSet []ContextFragment) (JudgeReply, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	call := m.judgeCalls
	m.judgeCalls++
	if call < len(m.judgeErrs) && m.judgeErrs[call] != nil {
		return JudgeReply{}, m.judgeErrs[call]
	}
	if call < len(m.judgeReplies) {
		return m.judgeReplies[call], nil
	}
	return JudgeReply{}, errors.New("mock engine: no scripted reply")
}

func (m *mockEngine) Synthesize(ctx context.Context, project string, finding findings.Finding, contextSet []ContextFragment) (string, error) {
	return m.synthScript, m.synthErr
}

func (m *mockEngine) Repair(ctx context.Context, project string, finding findings.Finding, script, buildOutput string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.repairErr != nil {
		return "", m.repairErr
	}
	call := m.repairCalls
	m.repairCalls++
	if call < len(m.repairScripts) {
		return m.repairScripts[call], nil
	}
	return "", errors.New("mock engine: no scripted repair")
}

func (m *mockEngine) Classify(ctx context.Context, project string, finding findings.Finding, output string) (Classification, error) {
	m.mu.Lock()
	m.classifyInput = output
	m.mu.Unlock()
	if m.classifyErr != nil {
		return Classification{}, m.classifyErr
	}
	return m.classification, nil
}

// mockResolver returns scripted fragments per round.
type mockResolver struct {
	rounds [][]ContextFragment
	calls  int
}

func (m *mockResolver) ResolveMissing(symbolNames []string, contextSet *ContextSet, projectRoot string) []ContextFragment {
	call := m.calls
	m.calls++
	if call >= len(m.rounds) {
		return nil
	}
	var added []ContextFragment
	for _, fragment := range m.rounds[call] {
		if contextSet.Add(fragment) {
			added = append(added, fragment)
		}
	}
	return added
}

// mockToolchain returns scripted results per attempt and records workdirs.
type mockToolchain struct {
	mu       sync.Mutex
	results  []ExecResult
	errs     []error
	calls    int
	workdirs []string
	scripts  []string
}

func (m *mockToolchain) BuildAndRun(ctx context.Context, script, workdir string) (ExecResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	call := m.calls
	m.calls++
	m.workdirs = append(m.workdirs, workdir)
	m.scripts = append(m.scripts, script)

	if call < len(m.errs) && m.errs[call] != nil {
		return ExecResult{}, m.errs[call]
	}
	if call < len(m.results) {
		return m.results[call], nil
	}
	return ExecResult{BuildOK: true}, nil
}

func logicFinding(id string) findings.Finding {
	return findings.Finding{
		ID:        id,
		Project:   "demo",
		RuleID:    "go/sql-injection",
		Title:     "SQL injection",
		Severity:  "high",
		FilePath:  "db/query.go",
		StartLine: 10,
		Snippet:   `db.Query("SELECT ..." + name)`,
		Class:     findings.ClassLogic,
	}
}

func structuralFinding(id string) findings.Finding {
	f := logicFinding(id)
	f.RuleID = "go/hardcoded-credentials"
	f.Class = findings.ClassStructural
	return f
}
