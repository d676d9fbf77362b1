package verify

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/massaudit/massaudit/internal/symbols"
)

func resolverFixture(t *testing.T) (*SymbolResolver, string) {
	t.Helper()
	root := t.TempDir()
	source := `package auth

func checkAuth(token string) bool {
	return token != ""
}

func helperOne() {}

func helperTwo() {}
`
	require.NoError(t, os.WriteFile(filepath.Join(root, "auth.go"), []byte(source), 0o644))

	index := symbols.NewIndex(hclog.NewNullLogger(), 1)
	return NewSymbolResolver(index, hclog.NewNullLogger(), 2), root
}

func TestResolveMissingAppendsFragments(t *testing.T) {
	resolver, root := resolverFixture(t)
	cs := NewContextSet()

	added := resolver.ResolveMissing([]string{"checkAuth"}, cs, root)

	require.Len(t, added, 1)
	assert.Equal(t, "checkAuth", added[0].Symbol)
	assert.Equal(t, "Go", added[0].Language)
	assert.Equal(t, 1, cs.Len())
}

func TestResolveMissingSkipsKnownSymbols(t *testing.T) {
	resolver, root := resolverFixture(t)
	cs := NewContextSet()
	cs.Add(ContextFragment{Symbol: "checkAuth", Text: "already here"})

	added := resolver.ResolveMissing([]string{"checkAuth"}, cs, root)

	assert.Empty(t, added)
	// satisfied from the set, no lookup consumed
	assert.Equal(t, 0, resolver.lookups)
}

func TestResolveMissingUnresolvedIsNotAnError(t *testing.T) {
	resolver, root := resolverFixture(t)
	cs := NewContextSet()

	added := resolver.ResolveMissing([]string{"ghost"}, cs, root)

	assert.Empty(t, added)
	assert.Equal(t, 0, cs.Len())
}

func TestResolveMissingHonorsLookupCap(t *testing.T) {
	resolver, root := resolverFixture(t)
	cs := NewContextSet()

	added := resolver.ResolveMissing([]string{"checkAuth", "helperOne", "helperTwo"}, cs, root)

	// cap is 2: the third request is ignored
	assert.Len(t, added, 2)
	assert.False(t, cs.Has("helperTwo"))
}
