package audit

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/hashicorp/go-hclog"
	"github.com/spf13/cobra"

	"github.com/massaudit/massaudit/internal/engine"
	"github.com/massaudit/massaudit/internal/projects"
	"github.com/massaudit/massaudit/internal/report"
	"github.com/massaudit/massaudit/internal/sarif"
	"github.com/massaudit/massaudit/internal/symbols"
	"github.com/massaudit/massaudit/internal/verify"
	"github.com/massaudit/massaudit/pkg/shared"
	"github.com/massaudit/massaudit/pkg/shared/config"
	"github.com/massaudit/massaudit/pkg/shared/logger"
)

// RunOptionsAudit holds the arguments for the audit command.
type RunOptionsAudit struct {
	Projects     []string
	Threads      int
	KeepWorkdirs bool
	Force        bool
}

// Global variables for configuration and command arguments
var (
	AppConfig         *config.Config
	auditOptions      RunOptionsAudit
	exampleAuditUsage = `  # Auditing every project in the projects home; projects without a saved
  # scan report are scanned with the default plugin first
  massaudit audit

  # Auditing a single project with concurrent finding verification
  massaudit audit --project juice-shop -j 4

  # Re-auditing projects that already have saved records
  massaudit audit --force

  # Keeping proof-of-concept working directories for inspection
  massaudit audit --keep-workdirs`
)

var AuditCmd = &cobra.Command{
	Use:                   "audit [--project NAME ...] [-j THREADS_NUMBER, default=1] [--keep-workdirs] [--force]",
	SilenceUsage:          true,
	DisableFlagsInUseLine: true,
	Example:               exampleAuditUsage,
	Short:                 "Verifies scanner findings with the reasoning engine and sandboxed proof-of-concept runs",
	RunE:                  runAuditCommand,
}

// Init initializes the global configuration variable.
func Init(cfg *config.Config) {
	AppConfig = cfg
}

// runAuditCommand executes the audit command.
func runAuditCommand(cmd *cobra.Command, args []string) error {
	logger := logger.NewLogger(AppConfig, "core-audit")

	if err := validateAuditArgs(&auditOptions, args); err != nil {
		logger.Error("invalid audit arguments", "error", err)
		return err
	}

	targets, err := projects.List(config.GetProjectsHome(AppConfig), logger)
	if err != nil {
		logger.Error("failed to list projects", "error", err)
		return err
	}
	targets = filterProjects(targets, auditOptions.Projects)
	if len(targets) == 0 {
		return fmt.Errorf("no projects to audit in %q", config.GetProjectsHome(AppConfig))
	}

	store, err := report.NewStore(filepath.Join(config.GetResultsHome(AppConfig), "massaudit.db"))
	if err != nil {
		logger.Error("failed to open the audit store", "error", err)
		return err
	}
	defer store.Close()

	pipeline := newPipeline(logger)

	var launches []shared.GenericResult
	for _, project := range targets {
		launch := auditProject(cmd.Context(), logger, store, pipeline, project)
		launches = append(launches, launch)
	}

	result := shared.GenericLaunchesResult{Launches: launches}
	if err := shared.WriteGenericResult(AppConfig, logger, result, "AUDIT"); err != nil {
		logger.Error("failed to write result", "error", err)
		return err
	}

	for _, launch := range launches {
		if launch.Status != "OK" {
			logger.Error("audit command finished with failures")
			return errAuditFailed
		}
	}

	logger.Info("audit command completed successfully")
	return nil
}

// newPipeline wires the reasoning engine, symbol index and toolchain factory
// into a verification pipeline configured from the global config.
func newPipeline(log hclog.Logger) *verify.Pipeline {
	engineClient := engine.New(AppConfig, log)
	index := symbols.NewIndex(log, AppConfig.Verify.FileSizeLimitMB)

	keepWorkdirs := auditOptions.KeepWorkdirs ||
		config.GetBoolValue(AppConfig.Verify, "KeepWorkdirs", false)

	opts := verify.Options{
		TurnBudget:    AppConfig.Verify.TurnBudget,
		RepairBudget:  AppConfig.Verify.RepairBudget,
		RiskThreshold: verify.ParseRiskLevel(AppConfig.Verify.RiskThreshold),
		ResolverCap:   AppConfig.Verify.ResolverCap,
		Workers:       auditOptions.Threads,
		WorkdirRoot:   filepath.Join(config.GetTempHome(AppConfig), "verify"),
		KeepWorkdirs:  keepWorkdirs,
	}
	return verify.NewPipeline(engineClient, index, newToolchain(log), log, opts)
}

// auditProject runs the verification loop for a single project and returns
// the launch outcome. A project is never aborted halfway: every finding that
// enters the pipeline exits with a terminal record.
func auditProject(ctx context.Context, log hclog.Logger, store *report.Store, pipeline *verify.Pipeline, project projects.Project) shared.GenericResult {
	log.Info("starting project audit", "project", project.Name, "language", project.Language)

	projects.CleanupArtifacts(project.Path, log)
	release, err := projects.WriteLock(project.Path)
	if err != nil {
		log.Error("failed to lock project", "project", project.Name, "error", err)
		return shared.GenericResult{Args: project, Status: "FAILED", Message: err.Error()}
	}
	defer release()

	reportPath, err := ensureScanReport(AppConfig, log, project)
	if err != nil {
		log.Error("no scan report for project", "project", project.Name, "error", err)
		return shared.GenericResult{Args: project, Status: "FAILED", Message: err.Error()}
	}

	sarifReport, err := sarif.ReadReport(reportPath, log, project.Path, false)
	if err != nil {
		log.Error("failed to read scan report", "project", project.Name, "path", reportPath, "error", err)
		return shared.GenericResult{Args: project, Status: "FAILED", Message: err.Error()}
	}

	list := sarifReport.ExtractFindings(project.Name, AppConfig.Verify.SnippetRadius)
	log.Info("extracted findings", "project", project.Name, "count", len(list), "severities", sarif.CollectSeverityInfo(list))

	if !auditOptions.Force {
		list = unverifiedFindings(log, store, project.Name, list)
		if len(list) == 0 {
			log.Info("all findings already audited, skipping", "project", project.Name)
			return shared.GenericResult{Args: project, Result: "skipped", Status: "OK"}
		}
	}

	records := pipeline.ProcessProject(ctx, project.Name, project.Path, project.Language, list)

	for _, record := range records {
		if err := store.SaveRecord(record); err != nil {
			log.Error("failed to save audit record", "finding", record.Finding.ID, "error", err)
			return shared.GenericResult{Args: project, Status: "FAILED", Message: err.Error()}
		}
	}

	outputFile := filepath.Join(config.GetResultsHome(AppConfig), project.Name, "audit-report.md")
	if err := report.WriteMarkdown(outputFile, project.Name, records); err != nil {
		log.Error("failed to write audit report", "project", project.Name, "error", err)
		return shared.GenericResult{Args: project, Status: "FAILED", Message: err.Error()}
	}

	summary, err := store.Summarize(project.Name)
	if err != nil {
		log.Warn("failed to summarize project", "project", project.Name, "error", err)
	} else {
		log.Info("project audit finished",
			"project", project.Name,
			"findings", summary.Total,
			"byRisk", summary.ByRisk,
			"byOutcome", summary.ByOutcome,
			"report", outputFile,
		)
	}

	return shared.GenericResult{Args: project, Result: outputFile, Status: "OK"}
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

// Initialize flags for the audit command.
func init() {
	AuditCmd.Flags().StringSliceVar(&auditOptions.Projects, "project", nil, "Project name(s) to audit (default: every project in the projects home).")
	AuditCmd.Flags().IntVarP(&auditOptions.Threads, "threads", "j", 1, "Number of findings verified concurrently within a project.")
	AuditCmd.Flags().BoolVar(&auditOptions.KeepWorkdirs, "keep-workdirs", false, "Keep proof-of-concept working directories after verification.")
	AuditCmd.Flags().BoolVar(&auditOptions.Force, "force", false, "Re-audit projects that already have saved records.")
	AuditCmd.Flags().BoolP("help", "h", false, "Show help for the audit command.")
}
