// Package issuecorrelation matches findings from a fresh scan against
// findings recorded by earlier audits, so unchanged findings keep their
// verdicts instead of being re-verified.
package issuecorrelation

// IssueMetadata is the minimal metadata required to correlate findings.
// SnippetHash is an optional content fingerprint used for stronger matching.
type IssueMetadata struct {
	IssueID     string
	Scanner     string
	RuleID      string
	Severity    string
	Filename    string
	StartLine   int
	EndLine     int
	SnippetHash string
}

// Match groups a known finding with the new findings correlated to it.
type Match struct {
	Known IssueMetadata
	New   []IssueMetadata
}

// Correlator computes correlations between new and known findings. Create it
// with NewCorrelator, call Process, then inspect Matches, UnmatchedNew and
// UnmatchedKnown. Many-to-many relationships are preserved: a known finding
// may match multiple new ones within a stage and vice versa.
type Correlator struct {
	NewIssues   []IssueMetadata
	KnownIssues []IssueMetadata

	knownToNew map[int][]int
	newToKnown map[int][]int

	processed bool
}

// NewCorrelator constructs a Correlator over the provided findings. It is
// inert until Process is called.
func NewCorrelator(newIssues, knownIssues []IssueMetadata) *Correlator {
	return &Correlator{
		NewIssues:   newIssues,
		KnownIssues: knownIssues,
	}
}

// Process correlates every known finding with every new one in four ordered
// stages, strongest first. A finding matched in an earlier stage is excluded
// from later stages; multiple matches within one stage are allowed. Process
// is idempotent.
//
// Stages:
//  1. scanner + rule + file + start line + end line + snippet hash
//  2. scanner + rule + file + snippet hash
//  3. scanner + rule + file + start line + end line
//  4. scanner + rule + file + start line
func (c *Correlator) Process() {
	if c.processed {
		return
	}
	c.knownToNew = make(map[int][]int)
	c.newToKnown = make(map[int][]int)

	matchedKnown := make(map[int]bool)
	matchedNew := make(map[int]bool)

	for stage := 1; stage <= 4; stage++ {
		matchedKnownThis := make(map[int]bool)
		matchedNewThis := make(map[int]bool)

		for ki, k := range c.KnownIssues {
			if matchedKnown[ki] {
				continue
			}
			for ni, n := range c.NewIssues {
				if matchedNew[ni] {
					continue
				}

				if matchStage(k, n, stage) {
					c.knownToNew[ki] = append(c.knownToNew[ki], ni)
					c.newToKnown[ni] = append(c.newToKnown[ni], ki)
					matchedKnownThis[ki] = true
					matchedNewThis[ni] = true
				}
			}
		}

		for ki := range matchedKnownThis {
			matchedKnown[ki] = true
		}
		for ni := range matchedNewThis {
			matchedNew[ni] = true
		}
	}

	c.processed = true
}

// Matches returns every known finding that correlated, with its new findings.
func (c *Correlator) Matches() []Match {
	c.Process()

	var matches []Match
	for ki, known := range c.KnownIssues {
		newIndices, ok := c.knownToNew[ki]
		if !ok {
			continue
		}
		match := Match{Known: known}
		for _, ni := range newIndices {
			match.New = append(match.New, c.NewIssues[ni])
		}
		matches = append(matches, match)
	}
	return matches
}

// UnmatchedNew returns new findings with no known counterpart. These are the
// findings an incremental audit still has to verify.
func (c *Correlator) UnmatchedNew() []IssueMetadata {
	c.Process()

	var unmatched []IssueMetadata
	for ni, n := range c.NewIssues {
		if len(c.newToKnown[ni]) == 0 {
			unmatched = append(unmatched, n)
		}
	}
	return unmatched
}

// UnmatchedKnown returns known findings absent from the new scan, typically
// because the flagged code was fixed or removed.
func (c *Correlator) UnmatchedKnown() []IssueMetadata {
	c.Process()

	var unmatched []IssueMetadata
	for ki, k := range c.KnownIssues {
		if len(c.knownToNew[ki]) == 0 {
			unmatched = append(unmatched, k)
		}
	}
	return unmatched
}

// matchStage reports whether two findings match under the given stage's
// rules. Scanner and rule identity are required at every stage.
func matchStage(a, b IssueMetadata, stage int) bool {
	if a.Scanner == "" || b.Scanner == "" || a.RuleID == "" || b.RuleID == "" {
		return false
	}
	if a.Scanner != b.Scanner || a.RuleID != b.RuleID || a.Filename != b.Filename {
		return false
	}

	sameLines := a.StartLine == b.StartLine && a.EndLine == b.EndLine
	sameHash := a.SnippetHash != "" && a.SnippetHash == b.SnippetHash

	switch stage {
	case 1:
		return sameLines && sameHash
	case 2:
		return sameHash
	case 3:
		return sameLines
	case 4:
		return a.StartLine == b.StartLine
	}
	return false
}
