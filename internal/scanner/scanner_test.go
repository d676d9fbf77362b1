package scanner

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/massaudit/massaudit/internal/projects"
	"github.com/massaudit/massaudit/pkg/shared"
	"github.com/massaudit/massaudit/pkg/shared/config"
)

// fakePlugin records the call order so tests can assert Scan never runs on an
// unconfigured plugin.
type fakePlugin struct {
	calls    []string
	setupErr error
	scanErr  error
	setupCfg config.Config
}

func (f *fakePlugin) Setup(configData config.Config) (bool, error) {
	f.calls = append(f.calls, "setup")
	f.setupCfg = configData
	return f.setupErr == nil, f.setupErr
}

func (f *fakePlugin) Scan(args shared.ScannerScanRequest) (shared.ScannerScanResponse, error) {
	f.calls = append(f.calls, "scan")
	return shared.ScannerScanResponse{ResultsPath: args.ResultsPath}, f.scanErr
}

func TestPrepareScanArgs(t *testing.T) {
	cfg := &config.Config{}
	cfg.Massaudit.ResultsFolder = t.TempDir()
	cfg.Massaudit.Mode = "CI"

	scanner := New("codeql", "sarif", []string{"--threads=2"}, 2, hclog.NewNullLogger())
	targets := []projects.Project{
		{Name: "svc-a", Path: "/projects/svc-a", Language: "go"},
		{Name: "tool-b", Path: "/projects/tool-b", Language: "python"},
	}

	scanArgs, err := scanner.PrepareScanArgs(cfg, targets)
	require.NoError(t, err)
	require.Len(t, scanArgs, 2)

	assert.Equal(t, "/projects/svc-a", scanArgs[0].TargetPath)
	assert.Equal(t, "go", scanArgs[0].Language)
	assert.Equal(t, "sarif", scanArgs[0].ReportFormat)
	assert.Equal(t, []string{"--threads=2"}, scanArgs[0].AdditionalArgs)
	assert.Equal(t,
		filepath.Join(cfg.Massaudit.ResultsFolder, "svc-a", "massaudit-report-codeql.sarif"),
		scanArgs[0].ResultsPath)

	// results folders are created
	assert.DirExists(t, filepath.Join(cfg.Massaudit.ResultsFolder, "tool-b"))
}

func TestRunScanConfiguresPluginBeforeScan(t *testing.T) {
	cfg := &config.Config{}
	cfg.Massaudit.TempFolder = "/tmp/massaudit"
	scanner := New("codeql", "sarif", nil, 1, hclog.NewNullLogger())
	plugin := &fakePlugin{}

	result, err := scanner.runScan(plugin, cfg, shared.ScannerScanRequest{
		TargetPath:  "/projects/svc-a",
		ResultsPath: "/results/svc-a/report.sarif",
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"setup", "scan"}, plugin.calls)
	assert.Equal(t, "/tmp/massaudit", plugin.setupCfg.Massaudit.TempFolder)
	assert.Equal(t, "/results/svc-a/report.sarif", result.ResultsPath)
}

func TestRunScanSetupFailureSkipsScan(t *testing.T) {
	scanner := New("codeql", "sarif", nil, 1, hclog.NewNullLogger())
	plugin := &fakePlugin{setupErr: errors.New("bad env override")}

	_, err := scanner.runScan(plugin, &config.Config{}, shared.ScannerScanRequest{})

	assert.ErrorContains(t, err, "setup failed")
	assert.Equal(t, []string{"setup"}, plugin.calls)
}

func TestGenerateNameTemplateTimestamped(t *testing.T) {
	cfg := &config.Config{}
	scanner := New("codeql", "sarif", nil, 1, hclog.NewNullLogger())

	name := scanner.generateNameTemplate(cfg)
	assert.Contains(t, name, "massaudit-report-codeql-")
	assert.Contains(t, name, ".sarif")
}
