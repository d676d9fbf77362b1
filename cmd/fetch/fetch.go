package fetch

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gitsight/go-vcsurl"
	"github.com/spf13/cobra"

	"github.com/massaudit/massaudit/internal/git"
	"github.com/massaudit/massaudit/pkg/shared"
	"github.com/massaudit/massaudit/pkg/shared/config"
	"github.com/massaudit/massaudit/pkg/shared/files"
	"github.com/massaudit/massaudit/pkg/shared/logger"
)

// RunOptionsFetch holds the arguments for the fetch command.
type RunOptionsFetch struct {
	AuthType    string
	SSHKey      string
	Branch      string
	ProjectName string
}

// Global variables for configuration and command arguments
var (
	AppConfig         *config.Config
	fetchOptions      RunOptionsFetch
	exampleFetchUsage = `  # Fetching a repository over HTTP into the projects home
  massaudit fetch https://github.com/juice-shop/juice-shop

  # Fetching a specific branch using SSH agent authentication
  massaudit fetch --auth-type ssh-agent -b develop ssh://git@github.com/juice-shop/juice-shop.git

  # Fetching using SSH key authentication
  massaudit fetch --auth-type ssh-key --ssh-key ~/.ssh/id_ed25519 https://github.com/juice-shop/juice-shop

  # Fetching under a custom project name
  massaudit fetch --name juice https://github.com/juice-shop/juice-shop`
)

var FetchCmd = &cobra.Command{
	Use:                   "fetch [--auth-type/-a AUTH_TYPE] [--ssh-key/-k PATH] [-b BRANCH] [--name NAME] URL",
	SilenceUsage:          true,
	DisableFlagsInUseLine: true,
	Example:               exampleFetchUsage,
	Short:                 "Fetches a repository into the projects home for scanning and auditing",
	RunE:                  runFetchCommand,
}

// Init initializes the global configuration variable.
func Init(cfg *config.Config) {
	AppConfig = cfg
}

// runFetchCommand executes the fetch command.
func runFetchCommand(cmd *cobra.Command, args []string) error {
	if len(args) == 0 && !shared.HasFlags(cmd.Flags()) {
		return cmd.Help()
	}

	logger := logger.NewLogger(AppConfig, "core-fetch")

	if err := validateFetchArgs(&fetchOptions, args); err != nil {
		logger.Error("invalid fetch arguments", "error", err)
		return err
	}

	cloneURL := args[0]
	projectName := fetchOptions.ProjectName
	if projectName == "" {
		info, err := vcsurl.Parse(cloneURL)
		if err != nil {
			return fmt.Errorf("failed to derive project name from %q: %w", cloneURL, err)
		}
		projectName = info.Name
	}

	projectsHome := config.GetProjectsHome(AppConfig)
	if err := files.CreateFolderIfNotExists(projectsHome); err != nil {
		logger.Error("failed to prepare projects home", "error", err)
		return err
	}

	fetchRequest := git.FetchRequest{
		CloneURL:     cloneURL,
		Branch:       fetchOptions.Branch,
		TargetFolder: filepath.Join(projectsHome, projectName),
		AuthType:     fetchOptions.AuthType,
		SSHKey:       fetchOptions.SSHKey,
		SSHKeyPass:   os.Getenv("MASSAUDIT_SSH_KEY_PASSWORD"),
		Username:     os.Getenv("MASSAUDIT_GIT_USERNAME"),
		Token:        os.Getenv("MASSAUDIT_GIT_TOKEN"),
	}

	client, err := git.New(logger, AppConfig, &fetchRequest)
	if err != nil {
		logger.Error("failed to initialize git client", "error", err)
		return err
	}

	targetFolder, err := client.CloneRepository(&fetchRequest)

	result := shared.GenericLaunchesResult{
		Launches: []shared.GenericResult{fetchResult(fetchRequest, targetFolder, err)},
	}
	if writeErr := shared.WriteGenericResult(AppConfig, logger, result, "FETCH"); writeErr != nil {
		logger.Error("failed to write result", "error", writeErr)
		return writeErr
	}

	if err != nil {
		logger.Error("fetch command failed", "error", err)
		return err
	}

	logger.Info("fetch command completed successfully", "project", projectName, "targetFolder", targetFolder)
	return nil
}

// fetchResult converts a single clone outcome into the generic result form.
func fetchResult(request git.FetchRequest, targetFolder string, err error) shared.GenericResult {
	request.Token = ""
	request.SSHKeyPass = ""
	if err != nil {
		return shared.GenericResult{Args: request, Status: "FAILED", Message: err.Error()}
	}
	return shared.GenericResult{Args: request, Result: targetFolder, Status: "OK"}
}

// Initialize flags for the fetch command.
func init() {
	FetchCmd.Flags().StringVarP(&fetchOptions.AuthType, "auth-type", "a", "", "Type of authentication (e.g., http, ssh-agent, ssh-key). Empty means anonymous HTTP.")
	FetchCmd.Flags().StringVarP(&fetchOptions.SSHKey, "ssh-key", "k", "", "Path to an SSH key.")
	FetchCmd.Flags().StringVarP(&fetchOptions.Branch, "branch", "b", "", "Specific branch to fetch.")
	FetchCmd.Flags().StringVar(&fetchOptions.ProjectName, "name", "", "Project name in the projects home (default: repository name).")
	FetchCmd.Flags().BoolP("help", "h", false, "Show help for the fetch command.")
}
