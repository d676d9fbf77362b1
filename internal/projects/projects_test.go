package projects

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeProject(t *testing.T, home, name string, files map[string]string) string {
	t.Helper()
	path := filepath.Join(home, name)
	for rel, content := range files {
		full := filepath.Join(path, rel)
		require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
		require.NoError(t, os.WriteFile(full, []byte(content), 0o644))
	}
	return path
}

func TestListDetectsLanguages(t *testing.T) {
	home := t.TempDir()
	writeProject(t, home, "go-svc", map[string]string{
		"main.go":      "package main",
		"internal/a.go": "package a",
		"README.md":    "docs",
	})
	writeProject(t, home, "py-tool", map[string]string{
		"tool.py": "print('x')",
	})
	require.NoError(t, os.WriteFile(filepath.Join(home, "not-a-project.txt"), []byte("x"), 0o644))

	list, err := List(home, hclog.NewNullLogger())
	require.NoError(t, err)
	require.Len(t, list, 2)

	byName := map[string]Project{}
	for _, p := range list {
		byName[p.Name] = p
	}
	assert.Equal(t, "go", byName["go-svc"].Language)
	assert.Equal(t, "python", byName["py-tool"].Language)
}

func TestDetectLanguagePicksDominant(t *testing.T) {
	home := t.TempDir()
	path := writeProject(t, home, "mixed", map[string]string{
		"a.go":  "package a",
		"b.go":  "package b",
		"one.py": "pass",
	})

	language, err := DetectLanguage(path)
	require.NoError(t, err)
	assert.Equal(t, "go", language)
}

func TestDetectLanguageIgnoresGitAndTemp(t *testing.T) {
	home := t.TempDir()
	path := writeProject(t, home, "p", map[string]string{
		".git/hook.py":           "pass",
		"tmp_audit_data/gen.py":  "pass",
		"src/main.go":            "package main",
	})

	language, err := DetectLanguage(path)
	require.NoError(t, err)
	assert.Equal(t, "go", language)
}

func TestDetectLanguageEmptyProject(t *testing.T) {
	home := t.TempDir()
	path := writeProject(t, home, "empty", map[string]string{"notes.txt": "x"})

	language, err := DetectLanguage(path)
	require.NoError(t, err)
	assert.Empty(t, language)
}

func TestCleanupArtifacts(t *testing.T) {
	home := t.TempDir()
	path := writeProject(t, home, "p", map[string]string{
		"main.go":                 "package main",
		LockFileName:              "pid 123",
		TempDirName + "/scratch":  "data",
	})

	CleanupArtifacts(path, hclog.NewNullLogger())

	_, err := os.Stat(filepath.Join(path, LockFileName))
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(filepath.Join(path, TempDirName))
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(filepath.Join(path, "main.go"))
	assert.NoError(t, err)
}

func TestWriteLock(t *testing.T) {
	home := t.TempDir()
	path := writeProject(t, home, "p", map[string]string{"main.go": "package main"})

	release, err := WriteLock(path)
	require.NoError(t, err)

	_, statErr := os.Stat(filepath.Join(path, LockFileName))
	require.NoError(t, statErr)

	release()
	_, statErr = os.Stat(filepath.Join(path, LockFileName))
	assert.True(t, os.IsNotExist(statErr))
}
