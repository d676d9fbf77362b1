package audit

import (
	"errors"
	"fmt"
)

var errAuditFailed = errors.New("one or more project audits failed")

// validateAuditArgs validates the arguments provided to the audit command.
func validateAuditArgs(options *RunOptionsAudit, args []string) error {
	if len(args) != 0 {
		return fmt.Errorf("the audit command takes no positional arguments, use the 'project' flag")
	}

	if options.Threads <= 0 {
		return fmt.Errorf("the 'threads' flag must be a positive integer")
	}

	return nil
}
