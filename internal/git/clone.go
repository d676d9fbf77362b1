package git

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/gitsight/go-vcsurl"
	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/hashicorp/go-hclog"

	"github.com/massaudit/massaudit/pkg/shared/config"
	log "github.com/massaudit/massaudit/pkg/shared/logger"
)

// CloneRepository clones the requested repository into the target folder. An
// existing clone is opened and updated instead. Returns the target folder.
func (c *Client) CloneRepository(args *FetchRequest) (string, error) {
	targetFolder := args.TargetFolder

	info, err := vcsurl.Parse(args.CloneURL)
	if err != nil {
		c.logger.Error("failed to parse VCS URL", "VCSURL", args.CloneURL, "error", err)
		return "", fmt.Errorf("failed to parse VCS URL: %w", err)
	}

	output := log.GetLoggerOutput(c.logger)

	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	cloneOptions := &git.CloneOptions{
		Auth:            c.auth,
		URL:             args.CloneURL,
		Progress:        output,
		Depth:           config.SetThen(c.globalConfig.GitClient.Depth, 1),
		InsecureSkipTLS: config.GetBoolValue(c.globalConfig.GitClient, "InsecureTLS", false),
	}
	if args.Branch != "" {
		cloneOptions.ReferenceName = plumbing.NewBranchReferenceName(args.Branch)
	}

	c.logger.Debug("starting repository fetch", "repository", info.Name, "branch", args.Branch, "cloneURL", args.CloneURL, "targetFolder", targetFolder)
	repo, err := git.PlainCloneContext(ctx, targetFolder, false, cloneOptions)
	if err != nil {
		if err != git.ErrRepositoryAlreadyExists {
			c.logger.Error("error occurred during clone", "error", err, "targetFolder", targetFolder)
			return "", fmt.Errorf("error occurred during clone: %w", err)
		}

		c.logger.Info("repository already exists, updating...", "targetFolder", targetFolder)
		repo, err = git.PlainOpen(targetFolder)
		if err != nil {
			c.logger.Error("cannot open existing repository", "error", err, "targetFolder", targetFolder)
			return "", fmt.Errorf("cannot open existing repository: %w", err)
		}

		if err := c.pullLatestChanges(ctx, repo, args.Branch, output); err != nil {
			return "", err
		}
	}

	if args.Branch != "" {
		if err := checkoutAndResetBranch(repo, plumbing.NewBranchReferenceName(args.Branch), c.logger, targetFolder); err != nil {
			return "", err
		}
	}

	c.logger.Info("repository operation completed successfully", "repository", info.Name, "branch", args.Branch, "targetFolder", targetFolder)
	return targetFolder, nil
}

// checkoutAndResetBranch checks out the branch and hard-resets the worktree.
func checkoutAndResetBranch(repo *git.Repository, branch plumbing.ReferenceName, logger hclog.Logger, targetFolder string) error {
	w, err := repo.Worktree()
	if err != nil {
		logger.Error("error accessing worktree", "error", err, "targetFolder", targetFolder)
		return fmt.Errorf("error accessing worktree: %w", err)
	}

	logger.Debug("checking out branch", "branch", branch, "targetFolder", targetFolder)
	if err := w.Checkout(&git.CheckoutOptions{
		Branch: branch,
		Force:  true,
	}); err != nil {
		logger.Error("error occurred during checkout", "error", err, "targetFolder", targetFolder)
		return fmt.Errorf("error occurred during checkout: %w", err)
	}

	logger.Debug("resetting local repository", "targetFolder", targetFolder)
	if err := w.Reset(&git.ResetOptions{
		Mode: git.HardReset,
	}); err != nil {
		logger.Error("error occurred during reset", "error", err, "targetFolder", targetFolder)
		return fmt.Errorf("error occurred during reset: %w", err)
	}
	return nil
}

// pullLatestChanges fast-forwards an existing clone.
func (c *Client) pullLatestChanges(ctx context.Context, repo *git.Repository, branch string, output io.Writer) error {
	w, err := repo.Worktree()
	if err != nil {
		c.logger.Error("error accessing worktree", "error", err)
		return fmt.Errorf("error accessing worktree: %w", err)
	}

	pullOptions := &git.PullOptions{
		Auth:            c.auth,
		Progress:        output,
		Force:           true,
		InsecureSkipTLS: config.GetBoolValue(c.globalConfig.GitClient, "InsecureTLS", false),
	}
	if branch != "" {
		pullOptions.ReferenceName = plumbing.NewBranchReferenceName(branch)
	}

	c.logger.Debug("attempting to pull the latest changes", "branch", branch)
	err = w.PullContext(ctx, pullOptions)
	if err != nil && !errors.Is(err, git.NoErrAlreadyUpToDate) {
		c.logger.Error("error occurred during pull", "error", err)
		return fmt.Errorf("error occurred during pull: %w", err)
	}
	return nil
}
