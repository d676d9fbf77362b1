package issuecorrelation

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestComputeSnippetHash(t *testing.T) {
	h1 := ComputeSnippetHash("db.Exec(query)")
	h2 := ComputeSnippetHash("db.Exec(query)")
	assert.NotEmpty(t, h1)
	assert.Equal(t, h1, h2)

	assert.NotEqual(t, h1, ComputeSnippetHash("db.Exec(other)"))
}

func TestComputeSnippetHashIgnoresEdgeWhitespace(t *testing.T) {
	assert.Equal(t, ComputeSnippetHash("code\n"), ComputeSnippetHash("  code"))
}

func TestComputeSnippetHashEmpty(t *testing.T) {
	assert.Empty(t, ComputeSnippetHash(""))
	assert.Empty(t, ComputeSnippetHash("   \n\t"))
}
