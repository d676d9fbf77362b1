package audit

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hashicorp/go-hclog"

	"github.com/massaudit/massaudit/internal/findings"
	"github.com/massaudit/massaudit/internal/projects"
	"github.com/massaudit/massaudit/internal/report"
	"github.com/massaudit/massaudit/internal/scanner"
	"github.com/massaudit/massaudit/internal/toolchain"
	"github.com/massaudit/massaudit/internal/verify"
	"github.com/massaudit/massaudit/pkg/issuecorrelation"
	"github.com/massaudit/massaudit/pkg/shared/config"
)

// Defaults used when audit has to scan a project itself.
const (
	defaultScannerPlugin = "codeql"
	defaultReportFormat  = "sarif-latest"
)

// runnerLanguages maps the detected project language to a supported
// proof-of-concept runner. Findings in other languages still get judged;
// they just cannot be executed.
var runnerLanguages = map[string]string{
	"go":     "Go",
	"python": "Python",
}

// newToolchain returns a factory producing a runner for the project language.
func newToolchain(log hclog.Logger) verify.ToolchainFactory {
	return func(language string) (verify.Toolchain, error) {
		runnerLanguage, ok := runnerLanguages[language]
		if !ok {
			return nil, fmt.Errorf("proof-of-concept execution is not supported for language %q", language)
		}
		return toolchain.NewRunner(log, runnerLanguage, AppConfig.Verify.AttemptTimeout)
	}
}

// ensureScanReport returns the newest SARIF report for the project, running
// the default scanner plugin first when none exists yet. This keeps audit
// usable as the end-to-end entry point while a prior scan run is still
// honored.
func ensureScanReport(cfg *config.Config, log hclog.Logger, project projects.Project) (string, error) {
	reportPath, err := latestScanReport(cfg, project.Name)
	if err == nil {
		return reportPath, nil
	}
	log.Info("no scan report found, scanning project first", "project", project.Name, "plugin", defaultScannerPlugin)

	s := scanner.New(defaultScannerPlugin, defaultReportFormat, nil, 1, log)
	scanArgs, err := s.PrepareScanArgs(cfg, []projects.Project{project})
	if err != nil {
		return "", fmt.Errorf("failed to prepare scan for %q: %w", project.Name, err)
	}
	for _, launch := range s.ScanProjects(cfg, scanArgs).Launches {
		if launch.Status != "OK" {
			return "", fmt.Errorf("scan failed for %q: %s", project.Name, launch.Message)
		}
	}
	return latestScanReport(cfg, project.Name)
}

// latestScanReport returns the newest SARIF report in the project's results
// folder, by modification time.
func latestScanReport(cfg *config.Config, projectName string) (string, error) {
	resultsFolder := filepath.Join(config.GetResultsHome(cfg), projectName)
	entries, err := os.ReadDir(resultsFolder)
	if err != nil {
		return "", fmt.Errorf("failed to read results folder %q: %w", resultsFolder, err)
	}

	var newest string
	var newestMod int64
	for _, entry := range entries {
		if entry.IsDir() || !isSarifReport(entry.Name()) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if newest == "" || info.ModTime().UnixNano() > newestMod {
			newest = entry.Name()
			newestMod = info.ModTime().UnixNano()
		}
	}
	if newest == "" {
		return "", fmt.Errorf("no SARIF scan report found in %q", resultsFolder)
	}
	return filepath.Join(resultsFolder, newest), nil
}

// unverifiedFindings correlates freshly scanned findings against stored
// records and returns only those with no verified counterpart. On any store
// error the full list is returned so nothing is silently dropped.
func unverifiedFindings(log hclog.Logger, store *report.Store, projectName string, list []findings.Finding) []findings.Finding {
	done, err := store.ProjectDone(projectName)
	if err != nil {
		log.Warn("could not check project state, auditing everything", "project", projectName, "error", err)
		return list
	}
	if !done {
		return list
	}

	known, err := store.KnownIssues(projectName)
	if err != nil {
		log.Warn("could not load known findings, auditing everything", "project", projectName, "error", err)
		return list
	}

	fresh := make([]issuecorrelation.IssueMetadata, 0, len(list))
	for _, finding := range list {
		fresh = append(fresh, issuecorrelation.IssueMetadata{
			IssueID:     finding.ID,
			Scanner:     finding.Scanner,
			RuleID:      finding.RuleID,
			Severity:    finding.Severity,
			Filename:    finding.FilePath,
			StartLine:   finding.StartLine,
			EndLine:     finding.EndLine,
			SnippetHash: issuecorrelation.ComputeSnippetHash(finding.Snippet),
		})
	}

	correlator := issuecorrelation.NewCorrelator(fresh, known)
	correlator.Process()

	worklist := make(map[string]bool)
	for _, meta := range correlator.UnmatchedNew() {
		worklist[meta.IssueID] = true
	}

	var unverified []findings.Finding
	for _, finding := range list {
		if worklist[finding.ID] {
			unverified = append(unverified, finding)
		}
	}
	log.Info("correlated findings against stored records",
		"project", projectName,
		"fresh", len(list),
		"known", len(known),
		"toVerify", len(unverified),
	)
	return unverified
}

// isSarifReport matches scanner result files regardless of the exact format
// variant used at scan time (sarif, sarif-latest, sarifv2.1.0).
func isSarifReport(name string) bool {
	if !strings.HasPrefix(name, "massaudit-report-") {
		return false
	}
	return strings.Contains(filepath.Ext(name), "sarif")
}
