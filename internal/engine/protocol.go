package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/massaudit/massaudit/internal/findings"
	"github.com/massaudit/massaudit/internal/verify"
)

// errMalformedReply marks a reply that arrived but could not be parsed into
// the expected envelope, as opposed to a transport failure.
var errMalformedReply = errors.New("malformed judgment reply")

const judgeSystemPrompt = `You are a senior application security auditor reviewing static-analysis findings.
Respond with a single JSON object, one of:
  {"action": "verdict", "risk": "<unknown|low|medium|high|critical>", "rationale": "<short explanation>"}
  {"action": "need_context", "symbols": ["<identifier>", ...]}
Ask for context only when the supplied code is insufficient to judge the finding.`

const synthesizeSystemPrompt = `You are a security engineer writing a minimal, self-contained proof-of-concept script.
The script must exercise the flagged code path and either trigger the suspected defect or demonstrate that existing protection handles it.
Respond with a single JSON object: {"script": "<complete source code>"}.
The script must be runnable on its own, with no external services.`

const repairSystemPrompt = `You are a security engineer fixing a proof-of-concept script that failed to build or run.
Keep the intent of the script unchanged, only make it build and run.
Respond with a single JSON object: {"script": "<complete corrected source code>"}.`

const classifySystemPrompt = `You are judging the output of a proof-of-concept run against a static-analysis finding.
Distinguish three situations:
  an uncontrolled crash, panic or unhandled exception attributable to the flagged defect -> "VULNERABLE_CONFIRMED"
  a deliberately caught error, failed assertion or validation rejection showing existing protection -> "SAFE_PASS"
  ambiguous, partial or unrelated output -> "INCONCLUSIVE"
Respond with a single JSON object: {"outcome": "<VULNERABLE_CONFIRMED|SAFE_PASS|INCONCLUSIVE>", "reason": "<short explanation>"}.`

// judgeEnvelope is the wire shape of a judgment response.
type judgeEnvelope struct {
	Action    string   `json:"action"`
	Risk      string   `json:"risk"`
	Rationale string   `json:"rationale"`
	Symbols   []string `json:"symbols"`
}

type scriptEnvelope struct {
	Script string `json:"script"`
}

type classifyEnvelope struct {
	Outcome string `json:"outcome"`
	Reason  string `json:"reason"`
}

const judgeFormatReminder = `Your previous reply was not a single JSON object in the required shape. Respond again with exactly one JSON object and nothing else.`

// Judge submits one judgment turn and parses the engine's decision. A reply
// that parses into neither envelope is re-asked once with a format reminder
// appended to the prompt.
func (c *Client) Judge(ctx context.Context, project string, finding findings.Finding, contextSet []verify.ContextFragment) (verify.JudgeReply, error) {
	prompt := buildFindingPrompt(finding, contextSet)

	reply, err := c.judgeOnce(ctx, project, prompt)
	if err == nil || !errors.Is(err, errMalformedReply) {
		return reply, err
	}

	c.logger.Debug("malformed judgment reply, re-asking with a format reminder", "finding", finding.ID, "err", err)
	return c.judgeOnce(ctx, project, prompt+"\n"+judgeFormatReminder+"\n")
}

func (c *Client) judgeOnce(ctx context.Context, project, prompt string) (verify.JudgeReply, error) {
	raw, err := c.chat(ctx, project, judgeSystemPrompt, prompt)
	if err != nil {
		return verify.JudgeReply{}, err
	}

	var envelope judgeEnvelope
	if err := json.Unmarshal([]byte(extractJSON(raw)), &envelope); err != nil {
		return verify.JudgeReply{}, fmt.Errorf("%w: %v", errMalformedReply, err)
	}

	switch envelope.Action {
	case "verdict":
		return verify.JudgeReply{
			Verdict: &verify.Verdict{
				Risk:      verify.ParseRiskLevel(envelope.Risk),
				Rationale: envelope.Rationale,
			},
		}, nil
	case "need_context":
		if len(envelope.Symbols) == 0 {
			return verify.JudgeReply{}, fmt.Errorf("%w: need_context without symbols", errMalformedReply)
		}
		return verify.JudgeReply{NeedContext: &verify.NeedContext{Symbols: envelope.Symbols}}, nil
	}
	return verify.JudgeReply{}, fmt.Errorf("%w: unknown action %q", errMalformedReply, envelope.Action)
}

// Synthesize requests a PoC script. An empty script is returned as-is; the
// caller decides what that means.
func (c *Client) Synthesize(ctx context.Context, project string, finding findings.Finding, contextSet []verify.ContextFragment) (string, error) {
	var prompt strings.Builder
	prompt.WriteString(buildFindingPrompt(finding, contextSet))
	prompt.WriteString("\nWrite a proof-of-concept script for this finding.\n")

	raw, err := c.chat(ctx, project, synthesizeSystemPrompt, prompt.String())
	if err != nil {
		return "", err
	}

	var envelope scriptEnvelope
	if err := json.Unmarshal([]byte(extractJSON(raw)), &envelope); err != nil {
		return "", fmt.Errorf("unparseable synthesis response: %w", err)
	}
	return envelope.Script, nil
}

// Repair requests a corrected script given the failing build or run output.
func (c *Client) Repair(ctx context.Context, project string, finding findings.Finding, script, buildOutput string) (string, error) {
	var prompt strings.Builder
	fmt.Fprintf(&prompt, "Finding: %s (%s)\n\n", finding.Title, finding.RuleID)
	fmt.Fprintf(&prompt, "Current script:\n```\n%s\n```\n\n", script)
	fmt.Fprintf(&prompt, "Build/run output:\n```\n%s\n```\n", buildOutput)

	raw, err := c.chat(ctx, project, repairSystemPrompt, prompt.String())
	if err != nil {
		return "", err
	}

	var envelope scriptEnvelope
	if err := json.Unmarshal([]byte(extractJSON(raw)), &envelope); err != nil {
		return "", fmt.Errorf("unparseable repair response: %w", err)
	}
	return envelope.Script, nil
}

// Classify interprets final execution output into a verification outcome.
func (c *Client) Classify(ctx context.Context, project string, finding findings.Finding, output string) (verify.Classification, error) {
	var prompt strings.Builder
	fmt.Fprintf(&prompt, "Finding: %s (%s)\nDescription: %s\nFile: %s:%d\n\n",
		finding.Title, finding.RuleID, finding.Description, finding.FilePath, finding.StartLine)
	fmt.Fprintf(&prompt, "Execution output:\n```\n%s\n```\n", output)

	raw, err := c.chat(ctx, project, classifySystemPrompt, prompt.String())
	if err != nil {
		return verify.Classification{}, err
	}

	var envelope classifyEnvelope
	if err := json.Unmarshal([]byte(extractJSON(raw)), &envelope); err != nil {
		return verify.Classification{}, fmt.Errorf("unparseable classification response: %w", err)
	}

	outcome, err := verify.ParseOutcome(envelope.Outcome)
	if err != nil {
		return verify.Classification{}, err
	}
	return verify.Classification{Outcome: outcome, Reason: envelope.Reason}, nil
}

// buildFindingPrompt renders the finding and every accumulated context
// fragment, in resolution order, into the user prompt.
func buildFindingPrompt(finding findings.Finding, contextSet []verify.ContextFragment) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Finding: %s\nRule: %s\nSeverity: %s\nFile: %s:%d\n",
		finding.Title, finding.RuleID, finding.Severity, finding.FilePath, finding.StartLine)
	if finding.Description != "" {
		fmt.Fprintf(&b, "Description: %s\n", finding.Description)
	}
	fmt.Fprintf(&b, "\nFlagged code:\n```\n%s\n```\n", finding.Snippet)

	for _, fragment := range contextSet {
		fmt.Fprintf(&b, "\nDefinition of %s (%s, %s:%d):\n```\n%s\n```\n",
			fragment.Symbol, fragment.Language, fragment.FilePath, fragment.StartLine, fragment.Text)
	}
	return b.String()
}

// extractJSON strips markdown code fences some models wrap around JSON even
// in json_object mode.
func extractJSON(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if strings.HasPrefix(trimmed, "```") {
		trimmed = strings.TrimPrefix(trimmed, "```json")
		trimmed = strings.TrimPrefix(trimmed, "```")
		if idx := strings.LastIndex(trimmed, "```"); idx >= 0 {
			trimmed = trimmed[:idx]
		}
		trimmed = strings.TrimSpace(trimmed)
	}
	return trimmed
}
