// Package findings holds the internal domain model for scanner findings.
// A Finding is created once during SARIF extraction and treated as read-only
// by the verification pipeline.
package findings

import "strings"

// Class buckets a finding by the kind of defect the rule describes. Only
// logic-class findings are eligible for PoC verification.
type Class string

const (
	ClassLogic      Class = "logic"
	ClassStructural Class = "structural"
	ClassOther      Class = "other"
)

// Property is a simple name/value pair used for tags, references, or custom metadata.
type Property struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Finding is a minimal internal domain model extracted from SARIF or other scanners.
type Finding struct {
	ID          string `json:"id"`
	Project     string `json:"project"`
	RuleID      string `json:"rule_id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Severity    string `json:"severity"`
	Scanner     string `json:"scanner"`
	Class       Class  `json:"class"`

	FilePath  string `json:"file_path"`
	StartLine int    `json:"start_line"`
	EndLine   int    `json:"end_line"`

	// Snippet is the source extract around StartLine handed to the
	// reasoning engine as the initial context.
	Snippet string `json:"snippet"`

	Tags       []Property `json:"tags,omitempty"`
	Properties []Property `json:"properties,omitempty"`
}

// logicRuleMarkers are rule-id substrings that indicate a defect which can in
// principle be triggered at runtime, as opposed to style or hygiene rules.
var logicRuleMarkers = []string{
	"injection", "sql", "xss", "traversal", "overflow", "out-of-bounds",
	"nil", "null", "dereference", "divide", "division", "race", "deadlock",
	"unchecked", "index", "bounds", "panic", "integer", "format-string",
	"deserialization", "redos", "regex", "ssrf", "command",
}

// structuralRuleMarkers indicate findings about code shape or configuration
// that cannot be exercised by a generated PoC.
var structuralRuleMarkers = []string{
	"hardcoded", "credentials", "secret", "weak-crypto", "weak-hash",
	"insecure-random", "tls", "certificate", "permissions", "chmod",
	"deprecated", "todo", "unused",
}

// ClassifyRule maps a scanner rule id onto a Class using lexical hints. This
// is intentionally best-effort; anything unrecognized lands in ClassOther and
// still receives a judgment, just never a PoC run.
func ClassifyRule(ruleID string) Class {
	lowered := strings.ToLower(ruleID)
	for _, marker := range logicRuleMarkers {
		if strings.Contains(lowered, marker) {
			return ClassLogic
		}
	}
	for _, marker := range structuralRuleMarkers {
		if strings.Contains(lowered, marker) {
			return ClassStructural
		}
	}
	return ClassOther
}
