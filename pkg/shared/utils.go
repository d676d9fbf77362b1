package shared

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/spf13/pflag"

	"github.com/massaudit/massaudit/pkg/shared/config"
)

// IsInList reports whether the value is present in the list.
func IsInList(value string, list []string) bool {
	for _, item := range list {
		if item == value {
			return true
		}
	}
	return false
}

// HasFlags reports whether any flag in the set was changed by the user.
func HasFlags(flags *pflag.FlagSet) bool {
	changed := false
	flags.Visit(func(f *pflag.Flag) {
		changed = true
	})
	return changed
}

// WriteGenericResult writes the result of a command batch as pretty JSON
// into the results home, named after the command and timestamp.
func WriteGenericResult(cfg *config.Config, logger hclog.Logger, result GenericLaunchesResult, command string) error {
	ts := time.Now().UTC().Format(time.RFC3339)
	outputFile := filepath.Join(config.GetResultsHome(cfg), fmt.Sprintf("%s_%s.json", command, ts))

	resultJSON, err := json.MarshalIndent(result, "", "    ")
	if err != nil {
		return fmt.Errorf("error marshaling the result data: %w", err)
	}

	if err := os.WriteFile(outputFile, resultJSON, 0644); err != nil {
		return fmt.Errorf("error writing result to %q: %w", outputFile, err)
	}

	logger.Info("results saved to file", "path", outputFile)
	return nil
}
