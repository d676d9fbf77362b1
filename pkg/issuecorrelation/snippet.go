package issuecorrelation

import (
	"crypto/sha256"
	"fmt"
	"strings"
)

// ComputeSnippetHash returns the SHA256 hex fingerprint of a code snippet.
// Whitespace-only differences at the edges do not change the hash. An empty
// snippet yields an empty string, which disables hash-based matching for
// that finding.
func ComputeSnippetHash(snippet string) string {
	trimmed := strings.TrimSpace(snippet)
	if trimmed == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(trimmed))
	return fmt.Sprintf("%x", sum[:])
}
