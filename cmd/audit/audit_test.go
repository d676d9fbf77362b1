package audit

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/massaudit/massaudit/internal/projects"
	"github.com/massaudit/massaudit/pkg/shared/config"
)

func TestValidateAuditArgs(t *testing.T) {
	tests := []struct {
		name    string
		options RunOptionsAudit
		args    []string
		wantErr string
	}{
		{
			name:    "defaults are valid",
			options: RunOptionsAudit{Threads: 1},
		},
		{
			name:    "positional arguments rejected",
			options: RunOptionsAudit{Threads: 1},
			args:    []string{"juice-shop"},
			wantErr: "no positional arguments",
		},
		{
			name:    "zero threads rejected",
			options: RunOptionsAudit{Threads: 0},
			wantErr: "positive integer",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateAuditArgs(&tt.options, tt.args)
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				assert.ErrorContains(t, err, tt.wantErr)
			}
		})
	}
}

func TestFilterProjects(t *testing.T) {
	targets := []projects.Project{
		{Name: "alpha"},
		{Name: "beta"},
		{Name: "gamma"},
	}

	assert.Len(t, filterProjects(targets, nil), 3)

	filtered := filterProjects(targets, []string{"beta", "missing"})
	require.Len(t, filtered, 1)
	assert.Equal(t, "beta", filtered[0].Name)
}

func TestIsSarifReport(t *testing.T) {
	assert.True(t, isSarifReport("massaudit-report-codeql.sarif"))
	assert.True(t, isSarifReport("massaudit-report-codeql.sarif-latest"))
	assert.True(t, isSarifReport("massaudit-report-codeql-2024-05-01T10:00:00Z.sarif"))
	assert.False(t, isSarifReport("massaudit-report-codeql.csv"))
	assert.False(t, isSarifReport("notes.sarif"))
}

func TestLatestScanReport(t *testing.T) {
	resultsHome := t.TempDir()
	cfg := &config.Config{}
	cfg.Massaudit.ResultsFolder = resultsHome

	projectFolder := filepath.Join(resultsHome, "juice-shop")
	require.NoError(t, os.MkdirAll(projectFolder, 0755))

	_, err := latestScanReport(cfg, "juice-shop")
	assert.ErrorContains(t, err, "no SARIF scan report")

	older := filepath.Join(projectFolder, "massaudit-report-codeql-2024-05-01T10:00:00Z.sarif")
	newer := filepath.Join(projectFolder, "massaudit-report-codeql-2024-05-02T10:00:00Z.sarif")
	require.NoError(t, os.WriteFile(older, []byte("{}"), 0644))
	require.NoError(t, os.WriteFile(newer, []byte("{}"), 0644))
	past := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(older, past, past))

	got, err := latestScanReport(cfg, "juice-shop")
	require.NoError(t, err)
	assert.Equal(t, newer, got)
}

func TestEnsureScanReportReusesExistingReport(t *testing.T) {
	resultsHome := t.TempDir()
	cfg := &config.Config{}
	cfg.Massaudit.ResultsFolder = resultsHome
	// no plugins home exists, so any scan attempt would fail loudly
	cfg.Massaudit.PluginsFolder = filepath.Join(resultsHome, "no-plugins")

	projectFolder := filepath.Join(resultsHome, "juice-shop")
	require.NoError(t, os.MkdirAll(projectFolder, 0755))
	existing := filepath.Join(projectFolder, "massaudit-report-codeql-2024-05-01T10:00:00Z.sarif")
	require.NoError(t, os.WriteFile(existing, []byte("{}"), 0644))

	got, err := ensureScanReport(cfg, hclog.NewNullLogger(), projects.Project{Name: "juice-shop", Path: projectFolder})
	require.NoError(t, err)
	assert.Equal(t, existing, got)
}

func TestEnsureScanReportScanFailureSurfaces(t *testing.T) {
	home := t.TempDir()
	cfg := &config.Config{}
	cfg.Massaudit.ResultsFolder = filepath.Join(home, "results")
	cfg.Massaudit.PluginsFolder = filepath.Join(home, "plugins")
	cfg.Massaudit.TempFolder = filepath.Join(home, "tmp")

	_, err := ensureScanReport(cfg, hclog.NewNullLogger(), projects.Project{
		Name:     "juice-shop",
		Path:     filepath.Join(home, "projects", "juice-shop"),
		Language: "go",
	})

	assert.ErrorContains(t, err, "scan failed")
}
