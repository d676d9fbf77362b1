package verify

import (
	"context"

	"github.com/hashicorp/go-hclog"

	"github.com/massaudit/massaudit/internal/findings"
)

// Session drives the multi-turn judgment exchange for one finding. Turns are
// strictly sequential; the context set only grows; termination is guaranteed
// by the turn budget and by the no-progress rule on context requests.
type Session struct {
	engine     ReasoningEngine
	resolver   Resolver
	logger     hclog.Logger
	turnBudget int

	project     string
	projectRoot string

	contextSet *ContextSet
	turns      []JudgmentTurn
}

// NewSession opens a session for one finding's project. A Session processes
// exactly one finding and is not reusable.
func NewSession(engine ReasoningEngine, resolver Resolver, logger hclog.Logger, turnBudget int, project, projectRoot string) *Session {
	return &Session{
		engine:      engine,
		resolver:    resolver,
		logger:      logger.Named("session"),
		turnBudget:  turnBudget,
		project:     project,
		projectRoot: projectRoot,
		contextSet:  NewContextSet(),
	}
}

// ContextSet exposes the accumulated context after Run for downstream
// synthesis and reporting.
func (s *Session) ContextSet() *ContextSet { return s.contextSet }

// Turns returns the recorded turn trail.
func (s *Session) Turns() []JudgmentTurn { return s.turns }

// Run executes the session to its terminal verdict. It never returns an
// error: every failure mode collapses into an explicit verdict so the finding
// always exits with a recorded result.
func (s *Session) Run(ctx context.Context, finding findings.Finding) Verdict {
	for turn := 1; turn <= s.turnBudget; turn++ {
		record := JudgmentTurn{Index: turn, ContextSize: s.contextSet.Len()}

		reply, err := s.judgeWithRetry(ctx, finding)
		if err != nil {
			record.EngineError = err.Error()
			s.turns = append(s.turns, record)
			s.logger.Warn("engine unavailable, closing session", "finding", finding.ID, "turn", turn, "err", err)
			return Verdict{Risk: RiskUnknown, Rationale: "reasoning engine unavailable: " + err.Error()}
		}

		if reply.Verdict != nil {
			record.Verdict = reply.Verdict
			s.turns = append(s.turns, record)
			s.logger.Debug("verdict reached", "finding", finding.ID, "turn", turn, "risk", reply.Verdict.Risk)
			return *reply.Verdict
		}

		record.NeedContext = reply.NeedContext
		resolved := s.resolver.ResolveMissing(reply.NeedContext.Symbols, s.contextSet, s.projectRoot)
		record.ResolvedNow = resolved
		s.turns = append(s.turns, record)

		if len(resolved) == 0 {
			s.logger.Debug("context request made no progress, closing session", "finding", finding.ID, "turn", turn, "symbols", reply.NeedContext.Symbols)
			return Verdict{Risk: RiskUnknown, Rationale: "requested context could not be resolved"}
		}
		s.logger.Debug("context resolved", "finding", finding.ID, "turn", turn, "added", len(resolved))
	}

	s.logger.Debug("turn budget exceeded", "finding", finding.ID, "budget", s.turnBudget)
	return Verdict{Risk: RiskUnknown, Rationale: "context loop exhausted"}
}

// judgeWithRetry retries a failed engine call once within the same turn.
// Malformed replies are already re-asked with a format reminder inside the
// engine client; this covers whatever still comes back as an error.
func (s *Session) judgeWithRetry(ctx context.Context, finding findings.Finding) (JudgeReply, error) {
	reply, err := s.engine.Judge(ctx, s.project, finding, s.contextSet.Fragments())
	if err == nil {
		return reply, nil
	}
	s.logger.Debug("judgment call failed, retrying once", "finding", finding.ID, "err", err)
	return s.engine.Judge(ctx, s.project, finding, s.contextSet.Fragments())
}
