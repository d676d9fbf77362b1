package symbols

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const goSource = `package auth

import "errors"

var ErrDenied = errors.New("denied")

const maxAttempts = 5

type Session struct {
	User string
	ttl  int
}

func checkAuth(token string) error {
	if token == "" {
		return ErrDenied
	}
	return nil
}

func (s *Session) Expired() bool {
	return s.ttl <= 0
}
`

const pySource = `import os

MAX_RETRIES = 3

def check_auth(token):
    if not token:
        raise ValueError("denied")
    return True

class Session:
    def __init__(self, user):
        self.user = user

    def expired(self):
        return False

def unrelated():
    pass
`

func newTestIndex(t *testing.T) (*Index, string) {
	t.Helper()
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "auth"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "auth", "auth.go"), []byte(goSource), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "auth", "service.py"), []byte(pySource), 0o644))
	return NewIndex(hclog.NewNullLogger(), 1), root
}

func TestResolveGoFunction(t *testing.T) {
	index, root := newTestIndex(t)

	defs := index.Resolve("checkAuth", root)
	require.Len(t, defs, 1)

	def := defs[0]
	assert.Equal(t, "checkAuth", def.Symbol)
	assert.Equal(t, "Go", def.Language)
	assert.Equal(t, filepath.Join("auth", "auth.go"), def.FilePath)
	assert.Equal(t, 14, def.StartLine)
	assert.Equal(t, 19, def.EndLine)
	assert.Contains(t, def.Text, "func checkAuth(token string) error {")
	assert.Contains(t, def.Text, "return nil")
}

func TestResolveGoMethod(t *testing.T) {
	index, root := newTestIndex(t)

	defs := index.Resolve("Expired", root)
	require.Len(t, defs, 1)
	assert.Contains(t, defs[0].Text, "func (s *Session) Expired() bool {")
}

func TestResolveGoTypeAndVar(t *testing.T) {
	index, root := newTestIndex(t)

	typeDefs := index.Resolve("Session", root)
	require.NotEmpty(t, typeDefs)
	assert.Contains(t, typeDefs[0].Text, "type Session struct {")
	assert.Contains(t, typeDefs[0].Text, "User string")

	varDefs := index.Resolve("ErrDenied", root)
	require.Len(t, varDefs, 1)
	assert.Equal(t, varDefs[0].StartLine, varDefs[0].EndLine)
	assert.Contains(t, varDefs[0].Text, `errors.New("denied")`)

	constDefs := index.Resolve("maxAttempts", root)
	require.Len(t, constDefs, 1)
	assert.Contains(t, constDefs[0].Text, "const maxAttempts = 5")
}

func TestResolvePythonFunction(t *testing.T) {
	index, root := newTestIndex(t)

	defs := index.Resolve("check_auth", root)
	require.Len(t, defs, 1)

	def := defs[0]
	assert.Equal(t, "Python", def.Language)
	assert.Contains(t, def.Text, "def check_auth(token):")
	assert.Contains(t, def.Text, "return True")
	assert.NotContains(t, def.Text, "class Session")
}

func TestResolvePythonClassAndVar(t *testing.T) {
	index, root := newTestIndex(t)

	classDefs := index.Resolve("Session", root)
	var pyDef *Definition
	for idx := range classDefs {
		if classDefs[idx].Language == "Python" {
			pyDef = &classDefs[idx]
		}
	}
	require.NotNil(t, pyDef)
	assert.Contains(t, pyDef.Text, "class Session:")
	assert.Contains(t, pyDef.Text, "def expired(self):")
	assert.NotContains(t, pyDef.Text, "def unrelated")

	varDefs := index.Resolve("MAX_RETRIES", root)
	require.Len(t, varDefs, 1)
	assert.Equal(t, "MAX_RETRIES = 3", varDefs[0].Text)
}

func TestExtractGoLineRangeIgnoresEarlierDuplicateText(t *testing.T) {
	source := `package auth

// Deprecated variant, kept for reference:
// func checkAuth(token string) error {
//	return nil
// }

func checkAuth(token string) error {
	return nil
}
`
	text, start, end, ok := GoStrategy{}.Extract(source, "checkAuth")
	require.True(t, ok)
	assert.Equal(t, 8, start)
	assert.Equal(t, 10, end)
	assert.Contains(t, text, "func checkAuth(token string) error {")
}

func TestExtractPythonLineRangeIgnoresEarlierDuplicateText(t *testing.T) {
	source := "import os\n\n# def check_auth(token):\n#     pass\n\ndef check_auth(token):\n    return True\n"

	text, start, end, ok := PythonStrategy{}.Extract(source, "check_auth")
	require.True(t, ok)
	assert.Equal(t, 6, start)
	assert.Equal(t, 7, end)
	assert.Contains(t, text, "def check_auth(token):")
}

func TestResolveMissingSymbol(t *testing.T) {
	index, root := newTestIndex(t)
	assert.Empty(t, index.Resolve("doesNotExist", root))
}

func TestResolveRanksNonTestFilesFirst(t *testing.T) {
	index, root := newTestIndex(t)

	testSource := "package auth\n\nfunc checkAuth(token string) error {\n\treturn nil\n}\n"
	require.NoError(t, os.WriteFile(filepath.Join(root, "auth", "aaa_test.go"), []byte(testSource), 0o644))

	defs := index.Resolve("checkAuth", root)
	require.Len(t, defs, 2)
	assert.Equal(t, filepath.Join("auth", "auth.go"), defs[0].FilePath)
	assert.Equal(t, filepath.Join("auth", "aaa_test.go"), defs[1].FilePath)
}

func TestResolveSkipsGitDir(t *testing.T) {
	index, root := newTestIndex(t)

	require.NoError(t, os.MkdirAll(filepath.Join(root, ".git"), 0o755))
	hidden := "package x\n\nfunc hiddenThing() {}\n"
	require.NoError(t, os.WriteFile(filepath.Join(root, ".git", "blob.go"), []byte(hidden), 0o644))

	assert.Empty(t, index.Resolve("hiddenThing", root))
}

func TestLanguageForExtension(t *testing.T) {
	index, _ := newTestIndex(t)

	lang, err := index.LanguageForExtension(".go")
	require.NoError(t, err)
	assert.Equal(t, "Go", lang)

	_, err = index.LanguageForExtension(".rb")
	assert.Error(t, err)
}
