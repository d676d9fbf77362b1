package scan

import (
	"errors"
	"fmt"
)

var errScanFailed = errors.New("one or more project scans failed")

// validateScanArgs validates the arguments provided to the scan command and
// captures the scanner pass-through arguments after the dash.
func validateScanArgs(options *RunOptionsScan, args []string, argsLenAtDash int) error {
	if options.Scanner == "" {
		return fmt.Errorf("the 'scanner' flag must be specified")
	}

	if options.Threads <= 0 {
		return fmt.Errorf("the 'threads' flag must be a positive integer")
	}

	if argsLenAtDash >= 0 {
		options.AdditionalArgs = args[argsLenAtDash:]
	}

	return nil
}
