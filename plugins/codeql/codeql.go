package main

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"os/exec"

	"github.com/hashicorp/go-hclog"
	"github.com/hashicorp/go-plugin"

	"github.com/massaudit/massaudit/pkg/shared"
	"github.com/massaudit/massaudit/pkg/shared/config"
)

const PluginName = "codeql"

// Metadata of the plugin
var (
	Version       = "unknown"
	GolangVersion = "unknown"
	BuildTime     = "unknown"
)

// defaultQuerySuites maps a detected project language to the standard
// CodeQL query pack for it. Entries may be overridden per language via
// the codeql_plugin.query_suites config map.
var defaultQuerySuites = map[string]string{
	"python":     "codeql/python-queries",
	"go":         "codeql/go-queries",
	"java":       "codeql/java-queries",
	"javascript": "codeql/javascript-queries",
	"csharp":     "codeql/csharp-queries",
	"cpp":        "codeql/cpp-queries",
}

// ScannerCodeQL represents the CodeQL scanner with its configuration and logger.
type ScannerCodeQL struct {
	logger       hclog.Logger
	globalConfig *config.Config
	name         string
}

// newScannerCodeQL creates a new instance of ScannerCodeQL.
func newScannerCodeQL(logger hclog.Logger) *ScannerCodeQL {
	return &ScannerCodeQL{
		logger: logger,
		name:   PluginName,
	}
}

// setGlobalConfig sets the global configuration for the ScannerCodeQL instance.
func (g *ScannerCodeQL) setGlobalConfig(globalConfig *config.Config) {
	g.globalConfig = globalConfig
}

// scanLanguage resolves the database language for the request. The language
// detected by the core takes priority over the configured default.
func (g *ScannerCodeQL) scanLanguage(args shared.ScannerScanRequest) (string, error) {
	language := args.Language
	if language == "" {
		language = g.globalConfig.CodeQLPlugin.DBLanguage
	}
	if err := validateLanguageHard(language); err != nil {
		return "", err
	}
	return language, nil
}

// querySuite resolves the query pack to analyze with for the given language.
func (g *ScannerCodeQL) querySuite(language string) (string, error) {
	if suite, ok := g.globalConfig.CodeQLPlugin.QuerySuites[language]; ok && suite != "" {
		return suite, nil
	}
	if suite, ok := defaultQuerySuites[language]; ok {
		return suite, nil
	}
	return "", fmt.Errorf("no CodeQL query suite defined for language: %s", language)
}

// executeCommand runs the specified command and captures its output.
func (g *ScannerCodeQL) executeCommand(cmd *exec.Cmd) error {
	var stdBuffer bytes.Buffer
	mw := io.MultiWriter(g.logger.StandardWriter(&hclog.StandardLoggerOptions{InferLevels: true}), &stdBuffer)

	cmd.Stdout = mw
	cmd.Stderr = mw

	if err := cmd.Run(); err != nil {
		g.logger.Error(fmt.Sprintf("%q execution error", cmd.Path), "error", err)
		return fmt.Errorf("%q execution error: %w. Output: %s", cmd.Path, err, stdBuffer.String())
	}
	return nil
}

// createDatabase creates a CodeQL database for the given project.
func (g *ScannerCodeQL) createDatabase(databaseDir, language string, args shared.ScannerScanRequest) error {
	g.logger.Debug("creating CodeQL database", "project", args.TargetPath, "language", language)

	commandArgs := []string{"database", "create", databaseDir, "--language", language, "--source-root", args.TargetPath}
	cmd := exec.Command("codeql", commandArgs...)
	return g.executeCommand(cmd)
}

// analyzeDatabase analyzes the CodeQL database and generates a report.
func (g *ScannerCodeQL) analyzeDatabase(databaseDir, querySuite string, args shared.ScannerScanRequest) error {
	g.logger.Debug("analyzing CodeQL database", "project", args.TargetPath, "querySuite", querySuite)

	commandArgs := []string{"database", "analyze", databaseDir}
	if args.ReportFormat != "" {
		g.validateFormatSoft(args.ReportFormat)
		commandArgs = append(commandArgs, "--format", args.ReportFormat)
	}
	commandArgs = append(commandArgs, querySuite, "--output", args.ResultsPath)

	if len(args.AdditionalArgs) != 0 {
		commandArgs = append(commandArgs, args.AdditionalArgs...)
	}

	cmd := exec.Command("codeql", commandArgs...)
	return g.executeCommand(cmd)
}

// Scan executes the CodeQL scan with the provided arguments and returns the scan response.
func (g *ScannerCodeQL) Scan(args shared.ScannerScanRequest) (shared.ScannerScanResponse, error) {
	var result shared.ScannerScanResponse
	g.logger.Info("codeQL scan starting", "project", args.TargetPath)
	g.logger.Debug("debug info", "args", args)

	if err := g.validateScan(&args); err != nil {
		g.logger.Error("validation failed for scan operation", "error", err)
		return result, err
	}

	language, err := g.scanLanguage(args)
	if err != nil {
		return result, err
	}

	querySuite, err := g.querySuite(language)
	if err != nil {
		return result, err
	}

	massauditTmp := config.GetTempHome(g.globalConfig)
	databaseDir, err := os.MkdirTemp(massauditTmp, "codeql_db")
	if err != nil {
		return result, fmt.Errorf("failed to create temp directory: %w", err)
	}
	defer os.RemoveAll(databaseDir)

	if err = g.createDatabase(databaseDir, language, args); err != nil {
		return result, err
	}

	if err = g.analyzeDatabase(databaseDir, querySuite, args); err != nil {
		return result, err
	}

	result.ResultsPath = args.ResultsPath
	g.logger.Info("scan finished", "project", args.TargetPath)
	g.logger.Info("result saved", "path", args.ResultsPath)
	g.logger.Debug("debug info", "project", args.TargetPath, "language", language, "querySuite", querySuite, "resultsFile", args.ResultsPath)
	return result, nil
}

// Setup initializes the global configuration for the ScannerCodeQL instance.
func (g *ScannerCodeQL) Setup(configData config.Config) (bool, error) {
	if err := UpdateConfigFromEnv(&configData); err != nil {
		return false, err
	}
	g.setGlobalConfig(&configData)
	return true, nil
}

func main() {
	logger := hclog.New(&hclog.LoggerOptions{
		Level:      hclog.Trace,
		Output:     os.Stderr,
		JSONFormat: true,
	})

	codeQLInstance := newScannerCodeQL(logger)

	plugin.Serve(&plugin.ServeConfig{
		HandshakeConfig: shared.HandshakeConfig,
		Plugins: map[string]plugin.Plugin{
			shared.PluginTypeScanner: &shared.ScannerPlugin{Impl: codeQLInstance},
		},
		Logger: logger,
	})
}
