package verify

import (
	"context"
	"path/filepath"

	"github.com/hashicorp/go-hclog"

	"github.com/massaudit/massaudit/internal/findings"
	"github.com/massaudit/massaudit/internal/symbols"
	"github.com/massaudit/massaudit/pkg/shared"
)

// ToolchainFactory builds a Toolchain for a project language.
type ToolchainFactory func(language string) (Toolchain, error)

// Options carries the loop budgets and limits into a Pipeline.
type Options struct {
	TurnBudget    int
	RepairBudget  int
	RiskThreshold RiskLevel
	ResolverCap   int
	Workers       int
	WorkdirRoot   string
	KeepWorkdirs  bool
}

// Pipeline processes findings end to end: judgment session, then, for
// qualifying findings, synthesis, self-healing execution and classification.
// Findings are independent units of work; each gets its own session state and
// working directory.
type Pipeline struct {
	engine       ReasoningEngine
	index        *symbols.Index
	newToolchain ToolchainFactory
	logger       hclog.Logger
	opts         Options
}

func NewPipeline(engine ReasoningEngine, index *symbols.Index, factory ToolchainFactory, logger hclog.Logger, opts Options) *Pipeline {
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	return &Pipeline{
		engine:       engine,
		index:        index,
		newToolchain: factory,
		logger:       logger.Named("pipeline"),
		opts:         opts,
	}
}

// ProcessProject runs the loop over every finding of one project, bounded by
// the configured worker count. Every finding exits with a terminal record;
// a failure in one finding never aborts the others.
func (p *Pipeline) ProcessProject(ctx context.Context, project, projectRoot, language string, list []findings.Finding) []Record {
	records := make([]Record, len(list))

	values := make([]interface{}, len(list))
	for i := range list {
		values[i] = list[i]
	}

	shared.ForEveryWithBoundedGoroutines(p.opts.Workers, values, func(i int, value interface{}) {
		finding := value.(findings.Finding)
		records[i] = p.processFinding(ctx, project, projectRoot, language, finding)
	})

	return records
}

func (p *Pipeline) processFinding(ctx context.Context, project, projectRoot, language string, finding findings.Finding) Record {
	p.logger.Info("processing finding", "project", project, "finding", finding.ID, "rule", finding.RuleID)

	resolver := NewSymbolResolver(p.index, p.logger, p.opts.ResolverCap)
	session := NewSession(p.engine, resolver, p.logger, p.opts.TurnBudget, project, projectRoot)
	verdict := session.Run(ctx, finding)

	record := Record{
		Finding: finding,
		Verdict: verdict,
		Turns:   session.Turns(),
		Context: session.ContextSet().Fragments(),
	}

	synthesizer := NewSynthesizer(p.engine, p.logger, p.opts.RiskThreshold)
	if !synthesizer.ShouldVerify(finding, verdict) {
		p.logger.Debug("finding does not qualify for verification", "finding", finding.ID, "class", finding.Class, "risk", verdict.Risk)
		return record
	}

	script, err := synthesizer.Synthesize(ctx, project, finding, record.Context)
	if err != nil {
		p.logger.Warn("synthesis failed", "finding", finding.ID, "err", err)
		record.Outcome = OutcomeInconclusive
		return record
	}
	if script == "" {
		record.Outcome = OutcomeBuildFailed
		return record
	}

	toolchain, err := p.newToolchain(language)
	if err != nil {
		p.logger.Warn("no toolchain for project language", "finding", finding.ID, "language", language, "err", err)
		record.Outcome = OutcomeInconclusive
		return record
	}

	executor := NewExecutor(p.engine, toolchain, p.logger, p.opts.RepairBudget,
		filepath.Join(p.opts.WorkdirRoot, project), p.opts.KeepWorkdirs)
	attempts, outcome := executor.Run(ctx, project, finding, script)
	record.Attempts = attempts
	record.Outcome = outcome

	p.logger.Info("finding processed", "finding", finding.ID, "risk", verdict.Risk, "outcome", outcome)
	return record
}
