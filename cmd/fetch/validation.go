package fetch

import (
	"fmt"
	"net/url"
	"os"

	"golang.org/x/crypto/ssh"

	"github.com/massaudit/massaudit/pkg/shared"
	"github.com/massaudit/massaudit/pkg/shared/files"
)

const (
	AuthTypeHTTP     = "http"
	AuthTypeSSHKey   = "ssh-key"
	AuthTypeSSHAgent = "ssh-agent"
)

// validateFetchArgs validates the arguments provided to the fetch command.
func validateFetchArgs(options *RunOptionsFetch, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("exactly one repository URL must be provided")
	}

	if _, err := url.ParseRequestURI(args[0]); err != nil {
		return fmt.Errorf("provided URL is not valid: %w", err)
	}

	if options.AuthType != "" {
		authTypesList := []string{AuthTypeHTTP, AuthTypeSSHKey, AuthTypeSSHAgent}
		if !shared.IsInList(options.AuthType, authTypesList) {
			return fmt.Errorf("unknown auth-type: %v", options.AuthType)
		}
	}

	if options.AuthType == AuthTypeSSHKey && options.SSHKey == "" {
		return fmt.Errorf("you must specify ssh-key with auth-type 'ssh-key'")
	}

	if options.AuthType == AuthTypeSSHKey {
		expandedPath, err := files.ExpandPath(options.SSHKey)
		if err != nil {
			return fmt.Errorf("failed to expand path %q: %w", options.SSHKey, err)
		}

		if err := files.ValidatePath(expandedPath); err != nil {
			return fmt.Errorf("failed to validate path %q: %w", expandedPath, err)
		}

		keyData, err := os.ReadFile(expandedPath)
		if err != nil {
			return fmt.Errorf("failed to read SSH key file: %w", err)
		}

		if _, err = ssh.ParsePrivateKey(keyData); err != nil {
			if _, ok := err.(*ssh.PassphraseMissingError); !ok {
				return fmt.Errorf("invalid SSH key format: %w", err)
			}
		}
	}

	return nil
}
