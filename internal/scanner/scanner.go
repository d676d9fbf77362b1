// Package scanner orchestrates scanner plugin runs over target projects.
package scanner

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/massaudit/massaudit/internal/projects"
	"github.com/massaudit/massaudit/pkg/shared"
	"github.com/massaudit/massaudit/pkg/shared/config"
	"github.com/massaudit/massaudit/pkg/shared/files"
)

// Scanner represents the configuration and behavior of a scanner.
type Scanner struct {
	pluginName     string       // Name of the scanner plugin to use
	reportFormat   string       // Format of the report to generate
	additionalArgs []string     // Additional arguments passed through to the plugin
	concurrentJobs int          // Number of concurrent scans
	logger         hclog.Logger // Logger for messages and errors
}

// New creates a new Scanner instance with the provided configuration.
func New(pluginName, reportFormat string, additionalArgs []string, concurrentJobs int, logger hclog.Logger) *Scanner {
	return &Scanner{
		pluginName:     pluginName,
		reportFormat:   reportFormat,
		additionalArgs: additionalArgs,
		concurrentJobs: concurrentJobs,
		logger:         logger,
	}
}

// PrepareScanArgs builds one scan request per project, creating the results
// folder for each.
func (s *Scanner) PrepareScanArgs(cfg *config.Config, targets []projects.Project) ([]shared.ScannerScanRequest, error) {
	nameTemplate := s.generateNameTemplate(cfg)

	var scanArgs []shared.ScannerScanRequest
	for _, project := range targets {
		resultsFolder := filepath.Join(config.GetResultsHome(cfg), project.Name)
		if err := files.CreateFolderIfNotExists(resultsFolder); err != nil {
			return nil, fmt.Errorf("failed to create results folder '%s': %w", resultsFolder, err)
		}

		scanArgs = append(scanArgs, shared.ScannerScanRequest{
			TargetPath:     project.Path,
			ResultsPath:    filepath.Join(resultsFolder, nameTemplate),
			Language:       project.Language,
			ReportFormat:   s.reportFormat,
			AdditionalArgs: s.additionalArgs,
		})
	}
	return scanArgs, nil
}

// generateNameTemplate generates the results file name. CI mode uses a stable
// name so consecutive runs overwrite; otherwise the start time is embedded.
func (s *Scanner) generateNameTemplate(cfg *config.Config) string {
	ext := s.getReportExtension()
	if config.IsCI(cfg) {
		return fmt.Sprintf("massaudit-report-%s.%s", s.pluginName, ext)
	}
	startTime := time.Now().UTC().Format(time.RFC3339)
	return fmt.Sprintf("massaudit-report-%s-%s.%s", s.pluginName, startTime, ext)
}

// getReportExtension returns the report extension based on the report format.
func (s *Scanner) getReportExtension() string {
	if s.reportFormat != "" {
		return s.reportFormat
	}
	return "raw"
}

// scanProject executes the scan of one project through the plugin.
func (s *Scanner) scanProject(cfg *config.Config, scanArg shared.ScannerScanRequest) (shared.ScannerScanResponse, error) {
	var result shared.ScannerScanResponse

	err := shared.WithPlugin(cfg, "plugin-scanner", shared.PluginTypeScanner, s.pluginName, func(raw interface{}) error {
		scanner, ok := raw.(shared.Scanner)
		if !ok {
			return fmt.Errorf("invalid plugin type")
		}
		var err error
		result, err = s.runScan(scanner, cfg, scanArg)
		return err
	})

	return result, err
}

// runScan drives one plugin session: Setup hands the plugin its config before
// Scan runs against the target.
func (s *Scanner) runScan(scanner shared.Scanner, cfg *config.Config, scanArg shared.ScannerScanRequest) (shared.ScannerScanResponse, error) {
	if _, err := scanner.Setup(*cfg); err != nil {
		s.logger.Error("scanner plugin setup failed", "plugin", s.pluginName)
		return shared.ScannerScanResponse{}, fmt.Errorf("scanner plugin setup failed for %q: %w", s.pluginName, err)
	}

	result, err := scanner.Scan(scanArg)
	if err != nil {
		s.logger.Error("scanner plugin scan failed", "target", scanArg.TargetPath)
		return shared.ScannerScanResponse{}, fmt.Errorf("scanner plugin scan failed for %q: %w", scanArg.TargetPath, err)
	}
	return result, nil
}

// ScanProjects scans the prepared targets concurrently and aggregates
// per-target results. A failed scan is recorded, not fatal to the run.
func (s *Scanner) ScanProjects(cfg *config.Config, scanArgs []shared.ScannerScanRequest) shared.GenericLaunchesResult {
	s.logger.Info("scan starting", "total", len(scanArgs), "goroutines", s.concurrentJobs)

	var results shared.GenericLaunchesResult
	resultsChannel := make(chan shared.GenericResult, len(scanArgs))
	values := make([]interface{}, len(scanArgs))
	for i := range scanArgs {
		values[i] = scanArgs[i]
	}

	shared.ForEveryWithBoundedGoroutines(s.concurrentJobs, values, func(i int, value interface{}) {
		scanArg, ok := value.(shared.ScannerScanRequest)
		if !ok {
			s.logger.Error("invalid scan argument type")
			return
		}
		s.logger.Info("goroutine started", "#", i+1, "target", scanArg.TargetPath)

		result, err := s.scanProject(cfg, scanArg)
		if err != nil {
			resultsChannel <- shared.GenericResult{Args: scanArg, Result: result, Status: "FAILED", Message: err.Error()}
		} else {
			resultsChannel <- shared.GenericResult{Args: scanArg, Result: result, Status: "OK", Message: ""}
		}
	})

	close(resultsChannel)
	for result := range resultsChannel {
		results.Launches = append(results.Launches, result)
	}
	return results
}
