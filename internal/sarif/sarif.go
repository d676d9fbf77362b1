// Package sarif reads SARIF reports produced by scanner plugins and converts
// their results into the internal finding model.
package sarif

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/hashicorp/go-hclog"
	"github.com/owenrumney/go-sarif/v2/sarif"

	"github.com/massaudit/massaudit/internal/findings"
	"github.com/massaudit/massaudit/pkg/shared/files"
)

// Report wraps a parsed SARIF document together with the source folder the
// scan ran against, so that snippets can be read back from disk.
type Report struct {
	*sarif.Report
	logger       hclog.Logger
	sourceFolder string
}

type ToolMetadata struct {
	Name    string
	Version *string
}

func readSarifReport(inputPath string) (*sarif.Report, error) {
	jsonFile, err := os.Open(inputPath)
	if err != nil {
		return nil, err
	}
	defer jsonFile.Close()

	byteValue, err := io.ReadAll(jsonFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read sarif report: %w", err)
	}

	var sarifReport sarif.Report
	if err := json.Unmarshal(byteValue, &sarifReport); err != nil {
		return nil, fmt.Errorf("failed to parse sarif report: %w", err)
	}

	return &sarifReport, nil
}

// removeSuppressedResults drops all results carrying a Suppressions property.
func removeSuppressedResults(report *sarif.Report) {
	for _, run := range report.Runs {
		var filteredResults []*sarif.Result

		for _, result := range run.Results {
			if len(result.Suppressions) == 0 {
				filteredResults = append(filteredResults, result)
			}
		}

		run.Results = filteredResults
	}
}

// ReadReport parses a SARIF file and anchors it to the scanned source folder.
func ReadReport(inputPath string, logger hclog.Logger, sourceFolder string, noSuppressions bool) (*Report, error) {
	sarifReport, err := readSarifReport(inputPath)
	if err != nil {
		return nil, err
	}

	if noSuppressions {
		removeSuppressedResults(sarifReport)
	}

	expandedSourceFolder, err := files.ExpandPath(sourceFolder)
	if err != nil {
		return nil, fmt.Errorf("failed to expand source folder: %w", err)
	}
	absPath, err := filepath.Abs(expandedSourceFolder)
	if err != nil {
		return nil, err
	}

	return &Report{
		Report:       sarifReport,
		logger:       logger,
		sourceFolder: absPath,
	}, nil
}

// ExtractToolNameAndVersion extracts tool name and version from a sarif report.
func (r Report) ExtractToolNameAndVersion() (*ToolMetadata, error) {
	if len(r.Runs) == 0 {
		return nil, fmt.Errorf("sarif report has no runs")
	}
	toolName := r.Runs[0].Tool.Driver.Name
	toolVersion := r.Runs[0].Tool.Driver.SemanticVersion
	return &ToolMetadata{
		Name:    toolName,
		Version: toolVersion,
	}, nil
}

// ExtractFindings flattens every result of every run into the internal model.
// Unreadable source files are tolerated; the finding is kept with an empty
// snippet and the problem is logged at debug level.
func (r Report) ExtractFindings(project string, snippetRadius int) []findings.Finding {
	var extracted []findings.Finding

	for _, run := range r.Runs {
		rulesMap := map[string]*sarif.ReportingDescriptor{}
		for _, rule := range run.Tool.Driver.Rules {
			rulesMap[rule.ID] = rule
		}
		toolName := run.Tool.Driver.Name

		for _, result := range run.Results {
			if result.RuleID == nil || len(result.Locations) == 0 {
				r.logger.Debug("skipping sarif result without rule id or location")
				continue
			}

			finding := findings.Finding{
				ID:       uuid.New().String(),
				Project:  project,
				RuleID:   *result.RuleID,
				Severity: resultSeverity(result, rulesMap[*result.RuleID]),
				Scanner:  toolName,
				Class:    findings.ClassifyRule(*result.RuleID),
			}
			if result.Message.Text != nil {
				finding.Description = *result.Message.Text
			}
			if rule, ok := rulesMap[*result.RuleID]; ok {
				if rule.ShortDescription != nil && rule.ShortDescription.Text != nil {
					finding.Title = *rule.ShortDescription.Text
				}
				if finding.Description == "" && rule.FullDescription != nil && rule.FullDescription.Text != nil {
					finding.Description = *rule.FullDescription.Text
				}
			}
			if finding.Title == "" {
				finding.Title = *result.RuleID
			}

			location := result.Locations[0]
			if location.PhysicalLocation == nil || location.PhysicalLocation.ArtifactLocation == nil ||
				location.PhysicalLocation.ArtifactLocation.URI == nil {
				r.logger.Debug("skipping sarif result without physical location", "rule", *result.RuleID)
				continue
			}
			finding.FilePath = r.relativeURI(*location.PhysicalLocation.ArtifactLocation.URI)
			if region := location.PhysicalLocation.Region; region != nil {
				if region.StartLine != nil {
					finding.StartLine = *region.StartLine
				}
				if region.EndLine != nil {
					finding.EndLine = *region.EndLine
				} else {
					finding.EndLine = finding.StartLine
				}
			}

			snippet, err := r.readSnippet(finding.FilePath, finding.StartLine, snippetRadius)
			if err != nil {
				r.logger.Debug("can't read source snippet", "file", finding.FilePath, "err", err)
				snippet = fmt.Sprintf("[ERROR: could not retrieve code snippet: %v]", err)
			}
			finding.Snippet = snippet

			extracted = append(extracted, finding)
		}
	}

	return extracted
}

// resultSeverity maps SARIF levels to the internal risk scale. CodeQL reports
// severity on the rule via "problem.severity"; other tools set result.Level
// or a default configuration on the rule.
func resultSeverity(result *sarif.Result, rule *sarif.ReportingDescriptor) string {
	level := ""
	if result.Level != nil {
		level = *result.Level
	} else if rule != nil {
		if s, ok := rule.Properties["problem.severity"].(string); ok {
			level = s
		} else if rule.DefaultConfiguration != nil {
			level = rule.DefaultConfiguration.Level
		}
	}

	switch level {
	case "error":
		return "high"
	case "warning":
		return "medium"
	case "note", "none":
		return "low"
	default:
		return "unknown"
	}
}

// relativeURI strips the source folder prefix from absolute artifact URIs so
// findings carry project-relative paths.
func (r Report) relativeURI(uri string) string {
	if !filepath.IsAbs(uri) {
		return uri
	}
	rel := strings.TrimPrefix(uri, r.sourceFolder)
	return strings.TrimPrefix(rel, "/")
}

// readSnippet returns up to 2*radius+1 lines around line from the given
// project-relative file, each prefixed with its line number.
func (r Report) readSnippet(relPath string, line, radius int) (string, error) {
	if r.sourceFolder == "" {
		return "", fmt.Errorf("source folder is not set")
	}
	if line <= 0 {
		return "", fmt.Errorf("invalid line number %d", line)
	}

	file, err := os.Open(filepath.Join(r.sourceFolder, relPath))
	if err != nil {
		return "", fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	start := line - radius
	if start < 1 {
		start = 1
	}
	end := line + radius

	var builder strings.Builder
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	currentLine := 0
	for scanner.Scan() {
		currentLine++
		if currentLine < start {
			continue
		}
		if currentLine > end {
			break
		}
		marker := "  "
		if currentLine == line {
			marker = ">>"
		}
		fmt.Fprintf(&builder, "%s %d: %s\n", marker, currentLine, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return "", fmt.Errorf("error reading file: %w", err)
	}
	if currentLine < line {
		return "", fmt.Errorf("line %d not found in file", line)
	}

	return builder.String(), nil
}

// CollectSeverityInfo counts findings per internal severity bucket.
func CollectSeverityInfo(list []findings.Finding) map[string]int {
	severityInfo := map[string]int{
		"low":    0,
		"medium": 0,
		"high":   0,
		"total":  0,
	}

	for _, f := range list {
		switch f.Severity {
		case "high", "critical":
			severityInfo["high"]++
		case "medium":
			severityInfo["medium"]++
		default:
			severityInfo["low"]++
		}
		severityInfo["total"]++
	}

	return severityInfo
}
