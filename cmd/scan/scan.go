package scan

import (
	"github.com/spf13/cobra"

	"github.com/massaudit/massaudit/internal/projects"
	"github.com/massaudit/massaudit/internal/scanner"
	"github.com/massaudit/massaudit/pkg/shared"
	"github.com/massaudit/massaudit/pkg/shared/config"
	"github.com/massaudit/massaudit/pkg/shared/logger"
)

// RunOptionsScan holds the arguments for the scan command.
type RunOptionsScan struct {
	Scanner        string
	ReportFormat   string
	AdditionalArgs []string
	Threads        int
}

// Global variables for configuration and command arguments
var (
	AppConfig        *config.Config
	scanOptions      RunOptionsScan
	exampleScanUsage = `  # Scanning every project in the projects home with the CodeQL plugin
  massaudit scan

  # Scanning selected projects with multiple concurrent threads
  massaudit scan -j 2 juice-shop railsgoat

  # Passing additional arguments to the scanner plugin
  massaudit scan --scanner codeql -- --threads 4`
)

var ScanCmd = &cobra.Command{
	Use:                   "scan [--scanner/-p PLUGIN_NAME] [--format/-f REPORT_FORMAT] [-j THREADS_NUMBER, default=1] [project ...] -- [args...]",
	SilenceUsage:          true,
	DisableFlagsInUseLine: true,
	Example:               exampleScanUsage,
	Short:                 "Runs the configured scanner plugin over projects in the projects home",
	RunE:                  runScanCommand,
}

// Init initializes the global configuration variable.
func Init(cfg *config.Config) {
	AppConfig = cfg
}

// runScanCommand executes the scan command.
func runScanCommand(cmd *cobra.Command, args []string) error {
	logger := logger.NewLogger(AppConfig, "core-scan")
	argsLenAtDash := cmd.ArgsLenAtDash()

	if err := validateScanArgs(&scanOptions, args, argsLenAtDash); err != nil {
		logger.Error("invalid scan arguments", "error", err)
		return err
	}

	selected := selectedProjects(args, argsLenAtDash)

	targets, err := projects.List(config.GetProjectsHome(AppConfig), logger)
	if err != nil {
		logger.Error("failed to list projects", "error", err)
		return err
	}
	targets = filterProjects(targets, selected)

	s := scanner.New(
		scanOptions.Scanner,
		scanOptions.ReportFormat,
		scanOptions.AdditionalArgs,
		scanOptions.Threads,
		logger,
	)

	scanArgs, err := s.PrepareScanArgs(AppConfig, targets)
	if err != nil {
		logger.Error("failed to prepare scan arguments", "error", err)
		return err
	}

	scanResult := s.ScanProjects(AppConfig, scanArgs)

	if err := shared.WriteGenericResult(AppConfig, logger, scanResult, "SCAN"); err != nil {
		logger.Error("failed to write result", "error", err)
		return err
	}

	for _, launch := range scanResult.Launches {
		if launch.Status != "OK" {
			logger.Error("scan command finished with failures")
			return errScanFailed
		}
	}

	logger.Info("scan command completed successfully")
	return nil
}

// selectedProjects returns the positional project names before the dash.
func selectedProjects(args []string, argsLenAtDash int) []string {
	if argsLenAtDash < 0 {
		return args
	}
	return args[:argsLenAtDash]
}

// filterProjects keeps only the named projects. An empty selection keeps all.
func filterProjects(targets []projects.Project, selected []string) []projects.Project {
	if len(selected) == 0 {
		return targets
	}
	byName := make(map[string]bool, len(selected))
	for _, name := range selected {
		byName[name] = true
	}
	var filtered []projects.Project
	for _, target := range targets {
		if byName[target.Name] {
			filtered = append(filtered, target)
		}
	}
	return filtered
}

// Initialize flags for the scan command.
func init() {
	ScanCmd.Flags().StringVarP(&scanOptions.Scanner, "scanner", "p", "codeql", "Name of the scanner plugin to use.")
	ScanCmd.Flags().StringVarP(&scanOptions.ReportFormat, "format", "f", "sarif-latest", "Format for the report with results.")
	ScanCmd.Flags().BoolP("help", "h", false, "Show help for the scan command.")
	ScanCmd.Flags().IntVarP(&scanOptions.Threads, "threads", "j", 1, "Number of concurrent project scans.")
}
