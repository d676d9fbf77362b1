// Package projects enumerates target projects under the projects home,
// detects their primary language, and cleans up artifacts left behind by
// interrupted runs.
package projects

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/hashicorp/go-hclog"
)

const (
	// LockFileName marks a project audit in progress. A leftover lock file
	// means the previous run was interrupted.
	LockFileName = ".audit.lock"
	// TempDirName holds per-run scratch data inside a project tree.
	TempDirName = "tmp_audit_data"
)

// Project is one audit target under the projects home.
type Project struct {
	Name     string
	Path     string
	Language string
}

// languageExtensions maps CodeQL language identifiers to source extensions.
var languageExtensions = map[string][]string{
	"python":     {".py"},
	"go":         {".go"},
	"java":       {".java", ".gradle"},
	"javascript": {".js", ".jsx", ".ts", ".tsx", ".mjs", ".cjs"},
	"csharp":     {".cs"},
	"cpp":        {".c", ".cpp", ".h", ".hpp"},
}

// List returns every directory directly under projectsHome as a Project with
// its detected language. Projects whose language cannot be detected are
// returned with an empty Language; the caller decides whether to skip them.
func List(projectsHome string, logger hclog.Logger) ([]Project, error) {
	entries, err := os.ReadDir(projectsHome)
	if err != nil {
		return nil, fmt.Errorf("failed to read projects home %q: %w", projectsHome, err)
	}

	var projects []Project
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		path := filepath.Join(projectsHome, entry.Name())
		language, err := DetectLanguage(path)
		if err != nil {
			logger.Warn("language detection failed", "project", entry.Name(), "err", err)
		}
		projects = append(projects, Project{
			Name:     entry.Name(),
			Path:     path,
			Language: language,
		})
	}
	return projects, nil
}

// DetectLanguage walks the project tree counting source files per language
// and returns the dominant one. An empty string means nothing recognizable
// was found.
func DetectLanguage(projectPath string) (string, error) {
	info, err := os.Stat(projectPath)
	if err != nil {
		return "", fmt.Errorf("project path error: %w", err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("project path %q is not a directory", projectPath)
	}

	counts := map[string]int{}
	err = filepath.WalkDir(projectPath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if d.Name() == ".git" || d.Name() == TempDirName {
				return filepath.SkipDir
			}
			return nil
		}
		ext := strings.ToLower(filepath.Ext(d.Name()))
		for language, extensions := range languageExtensions {
			for _, candidate := range extensions {
				if ext == candidate {
					counts[language]++
				}
			}
		}
		return nil
	})
	if err != nil {
		return "", err
	}

	best := ""
	bestCount := 0
	for language, count := range counts {
		if count > bestCount || (count == bestCount && language < best) {
			best = language
			bestCount = count
		}
	}
	return best, nil
}

// CleanupArtifacts removes the lock file and temp directory an interrupted
// run may have left inside the project tree. Failures are logged, not fatal.
func CleanupArtifacts(projectPath string, logger hclog.Logger) {
	if info, err := os.Stat(projectPath); err != nil || !info.IsDir() {
		logger.Warn("cleanup skipped, project path is not a directory", "path", projectPath)
		return
	}

	lockPath := filepath.Join(projectPath, LockFileName)
	if _, err := os.Stat(lockPath); err == nil {
		if err := os.Remove(lockPath); err != nil {
			logger.Error("failed to remove lock file", "path", lockPath, "err", err)
		} else {
			logger.Info("removed stale lock file", "path", lockPath)
		}
	}

	tempPath := filepath.Join(projectPath, TempDirName)
	if info, err := os.Stat(tempPath); err == nil && info.IsDir() {
		if err := os.RemoveAll(tempPath); err != nil {
			logger.Error("failed to remove temp directory", "path", tempPath, "err", err)
		} else {
			logger.Info("removed stale temp directory", "path", tempPath)
		}
	}
}

// WriteLock drops the in-progress marker. The returned release function
// removes it.
func WriteLock(projectPath string) (func(), error) {
	lockPath := filepath.Join(projectPath, LockFileName)
	if err := os.WriteFile(lockPath, []byte(fmt.Sprintf("pid %d\n", os.Getpid())), 0o644); err != nil {
		return nil, fmt.Errorf("failed to write lock file: %w", err)
	}
	return func() { os.Remove(lockPath) }, nil
}
