package report

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/massaudit/massaudit/internal/verify"
)

// WriteMarkdown renders the full audit trail of one project into a Markdown
// report: per finding the verdict, every judgment turn with the context it
// resolved, and every verification attempt with its raw output. Raw output is
// always included alongside the classification so a reviewer never has to
// trust the label blindly.
func WriteMarkdown(outputFile, project string, records []verify.Record) error {
	sorted := make([]verify.Record, len(records))
	copy(sorted, records)
	sort.SliceStable(sorted, func(i, j int) bool {
		return riskRank(sorted[i].Verdict.Risk) > riskRank(sorted[j].Verdict.Risk)
	})

	var b strings.Builder
	fmt.Fprintf(&b, "# Audit report: %s\n\n", project)
	fmt.Fprintf(&b, "**Generated**: %s\n\n", time.Now().UTC().Format("2006-01-02 15:04:05"))
	fmt.Fprintf(&b, "**Findings**: %d\n\n", len(sorted))

	for i, record := range sorted {
		fmt.Fprintf(&b, "## %d. %s\n\n", i+1, record.Finding.Title)
		fmt.Fprintf(&b, "- **Rule**: `%s`\n", record.Finding.RuleID)
		fmt.Fprintf(&b, "- **Location**: `%s:%d`\n", record.Finding.FilePath, record.Finding.StartLine)
		fmt.Fprintf(&b, "- **Class**: `%s`\n", record.Finding.Class)
		fmt.Fprintf(&b, "- **Risk**: **%s**\n", strings.ToUpper(string(record.Verdict.Risk)))
		fmt.Fprintf(&b, "- **Rationale**: %s\n", record.Verdict.Rationale)
		if record.Outcome != "" {
			fmt.Fprintf(&b, "- **Verification**: **%s**\n", record.Outcome)
		}
		b.WriteString("\n")

		if record.Finding.Snippet != "" {
			b.WriteString("### Flagged code\n\n")
			writeFenced(&b, record.Finding.Snippet)
		}

		if len(record.Turns) > 0 {
			b.WriteString("### Judgment trail\n\n")
			for _, turn := range record.Turns {
				fmt.Fprintf(&b, "#### Turn %d (context fragments: %d)\n\n", turn.Index, turn.ContextSize)
				if turn.EngineError != "" {
					fmt.Fprintf(&b, "- Engine error: %s\n\n", turn.EngineError)
				}
				if turn.NeedContext != nil {
					fmt.Fprintf(&b, "- Requested context: `%s`\n\n", strings.Join(turn.NeedContext.Symbols, "`, `"))
				}
				for _, fragment := range turn.ResolvedNow {
					fmt.Fprintf(&b, "- Resolved `%s` (%s, `%s:%d`):\n\n", fragment.Symbol, fragment.Language, fragment.FilePath, fragment.StartLine)
					writeFenced(&b, fragment.Text)
				}
				if turn.Verdict != nil {
					fmt.Fprintf(&b, "- Verdict: **%s**: %s\n\n", strings.ToUpper(string(turn.Verdict.Risk)), turn.Verdict.Rationale)
				}
			}
		}

		if len(record.Attempts) > 0 {
			b.WriteString("### Verification attempts\n\n")
			for _, attempt := range record.Attempts {
				fmt.Fprintf(&b, "#### Attempt %d\n\n", attempt.Index)
				fmt.Fprintf(&b, "- Build ok: %t, exit status: %d, timed out: %t\n", attempt.BuildOK, attempt.ExitStatus, attempt.TimedOut)
				if attempt.Outcome != "" {
					fmt.Fprintf(&b, "- Outcome: **%s**\n", attempt.Outcome)
				}
				b.WriteString("\nScript:\n\n")
				writeFenced(&b, attempt.Script)
				b.WriteString("Output:\n\n")
				writeFenced(&b, attempt.Output)
			}
		}

		b.WriteString("---\n\n")
	}

	if err := os.WriteFile(outputFile, []byte(b.String()), 0o644); err != nil {
		return fmt.Errorf("failed to write markdown report: %w", err)
	}
	return nil
}

// writeFenced writes text inside a code fence, widening the fence when the
// text itself contains backticks so nested blocks cannot break the report.
func writeFenced(b *strings.Builder, text string) {
	fence := "```"
	for strings.Contains(text, fence) {
		fence += "`"
	}
	b.WriteString(fence + "\n")
	b.WriteString(strings.TrimRight(text, "\n"))
	b.WriteString("\n" + fence + "\n\n")
}

func riskRank(r verify.RiskLevel) int {
	switch r {
	case verify.RiskCritical:
		return 4
	case verify.RiskHigh:
		return 3
	case verify.RiskMedium:
		return 2
	case verify.RiskLow:
		return 1
	}
	return 0
}
