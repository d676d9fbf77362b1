package validation

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/massaudit/massaudit/pkg/shared"
	"github.com/massaudit/massaudit/pkg/shared/files"
)

// ValidateScanArgs checks the necessary fields in ScannerScanRequest and returns errors if they are not set.
func ValidateScanArgs(args *shared.ScannerScanRequest) error {
	if args.TargetPath == "" {
		return fmt.Errorf("target path is required")
	}

	if args.ResultsPath == "" {
		return fmt.Errorf("results path is required")
	}

	targetPath, err := files.ExpandPath(args.TargetPath)
	if err != nil {
		return fmt.Errorf("failed to expand path '%s': %w", args.TargetPath, err)
	}
	if _, err := os.Stat(targetPath); os.IsNotExist(err) {
		return fmt.Errorf("target path does not exist: %s", targetPath)
	}

	resultsPath, err := files.ExpandPath(args.ResultsPath)
	if err != nil {
		return fmt.Errorf("failed to expand path '%s': %w", args.ResultsPath, err)
	}
	if err := files.CreateFolderIfNotExists(filepath.Dir(resultsPath)); err != nil {
		return fmt.Errorf("failed to create results folder for '%s': %w", resultsPath, err)
	}

	return nil
}
