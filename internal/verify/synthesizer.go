package verify

import (
	"context"
	"strings"

	"github.com/hashicorp/go-hclog"

	"github.com/massaudit/massaudit/internal/findings"
)

// Synthesizer requests PoC scripts from the reasoning engine. Pure
// generation, no execution.
type Synthesizer struct {
	engine        ReasoningEngine
	logger        hclog.Logger
	riskThreshold RiskLevel
}

func NewSynthesizer(engine ReasoningEngine, logger hclog.Logger, riskThreshold RiskLevel) *Synthesizer {
	return &Synthesizer{
		engine:        engine,
		logger:        logger.Named("synthesizer"),
		riskThreshold: riskThreshold,
	}
}

// ShouldVerify reports whether a finding qualifies for PoC verification:
// logic-class findings whose verdict risk meets the configured threshold.
func (s *Synthesizer) ShouldVerify(finding findings.Finding, verdict Verdict) bool {
	return finding.Class == findings.ClassLogic && verdict.Risk.AtLeast(s.riskThreshold)
}

// Synthesize requests a script for the finding. An empty or whitespace-only
// script is returned as "" with no error; the caller records it as a build
// failure with zero attempts consumed.
func (s *Synthesizer) Synthesize(ctx context.Context, project string, finding findings.Finding, contextSet []ContextFragment) (string, error) {
	script, err := s.engine.Synthesize(ctx, project, finding, contextSet)
	if err != nil {
		return "", err
	}

	script = strings.TrimSpace(script)
	if script == "" {
		s.logger.Warn("engine returned empty script", "finding", finding.ID)
		return "", nil
	}
	return script + "\n", nil
}
