package main

import (
	"fmt"
	"strings"

	"github.com/massaudit/massaudit/pkg/shared"
	"github.com/massaudit/massaudit/pkg/shared/validation"
)

// validateScan checks the necessary fields in ScannerScanRequest and returns errors if they are not set.
func (g *ScannerBandit) validateScan(args *shared.ScannerScanRequest) error {
	if err := validation.ValidateScanArgs(args); err != nil {
		return err
	}
	if args.Language != "" && args.Language != "python" {
		return fmt.Errorf("bandit only scans python projects, got language %q", args.Language)
	}
	g.validateFormatSoft(args.ReportFormat)
	return nil
}

// normalizeFormat maps the core's format names onto the ones Bandit accepts.
func normalizeFormat(format string) string {
	switch format {
	case "sarif-latest", "sarifv2.1.0":
		return "sarif"
	}
	return format
}

// validateFormatSoft verifies if the given format is supported and logs a warning if it is not.
func (g *ScannerBandit) validateFormatSoft(format string) {
	formatList := []string{"csv", "custom", "html", "json", "sarif", "sarif-latest", "sarifv2.1.0", "screen", "txt", "xml", "yaml"}
	if !shared.IsInList(format, formatList) {
		g.logger.Warn(
			"the used known version of Bandit doesn't support the passed format type. Continue scan...",
			"reportFormat", format,
			"supportedFormats", strings.Join(formatList, ", "),
		)
	}
}
