package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/massaudit/massaudit/pkg/shared/files"
)

// Risk levels understood by the verification loop, weakest first.
var knownRiskLevels = []string{"unknown", "low", "medium", "high", "critical"}

// ValidateConfig checks if the global configuration has valid values and
// resolves the home folder layout.
func ValidateConfig(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("YAML global config: configuration object is nil")
	}
	if err := ValidateMassauditConfig(cfg); err != nil {
		return fmt.Errorf("YAML global config: massaudit directive is invalid: %w", err)
	}
	if err := ValidateHTTPConfig(&cfg.HTTPClient); err != nil {
		return fmt.Errorf("YAML global config: http_client directive is invalid: %w", err)
	}
	if err := ValidateGitConfig(&cfg.GitClient); err != nil {
		return fmt.Errorf("YAML global config: git_client directive is invalid: %w", err)
	}
	if err := ValidateEngineConfig(&cfg.Engine); err != nil {
		return fmt.Errorf("YAML global config: engine directive is invalid: %w", err)
	}
	if err := ValidateVerifyConfig(&cfg.Verify); err != nil {
		return fmt.Errorf("YAML global config: verify directive is invalid: %w", err)
	}
	return nil
}

// ValidateMassauditConfig resolves the massaudit home layout from the config
// file, environment variables, or defaults, creating missing folders.
func ValidateMassauditConfig(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("massaudit configuration is nil")
	}
	if err := updateHome(cfg); err != nil {
		return fmt.Errorf("failed to update home folder: %w", err)
	}
	if err := updateFolder(&cfg.Massaudit.PluginsFolder, "MASSAUDIT_PLUGINS_FOLDER", "plugins", cfg); err != nil {
		return fmt.Errorf("failed to update plugins folder: %w", err)
	}
	if err := updateFolder(&cfg.Massaudit.ProjectsFolder, "MASSAUDIT_PROJECTS_FOLDER", "projects", cfg); err != nil {
		return fmt.Errorf("failed to update projects folder: %w", err)
	}
	if err := updateFolder(&cfg.Massaudit.ResultsFolder, "MASSAUDIT_RESULTS_FOLDER", "results", cfg); err != nil {
		return fmt.Errorf("failed to update results folder: %w", err)
	}
	if err := updateFolder(&cfg.Massaudit.TempFolder, "MASSAUDIT_TEMP_FOLDER", "tmp", cfg); err != nil {
		return fmt.Errorf("failed to update temp folder: %w", err)
	}
	updateMode(cfg)

	return nil
}

// ValidateGitConfig checks if the Git configuration has valid values.
func ValidateGitConfig(gitConfig *GitClient) error {
	if gitConfig == nil {
		return fmt.Errorf("git configuration is nil")
	}

	if err := validateDuration(gitConfig.Timeout, "timeout", 1*time.Hour); err != nil {
		return err
	}
	return nil
}

// ValidateHTTPConfig checks if the HTTP configuration has valid values.
func ValidateHTTPConfig(httpConfig *HTTPClient) error {
	if httpConfig == nil {
		return fmt.Errorf("HTTP configuration is nil")
	}
	if httpConfig.RetryCount < 0 || httpConfig.RetryCount > 20 {
		return fmt.Errorf("retry_count must be between 0 and 20: %d", httpConfig.RetryCount)
	}

	durations := map[string]time.Duration{
		"RetryMaxWaitTime": httpConfig.RetryMaxWaitTime,
		"RetryWaitTime":    httpConfig.RetryWaitTime,
		"Timeout":          httpConfig.Timeout,
	}
	for name, duration := range durations {
		if err := validateDuration(duration, name, 100*time.Second); err != nil {
			return err
		}
	}

	if err := validateProxy(&httpConfig.Proxy); err != nil {
		return err
	}

	return nil
}

// ValidateEngineConfig checks if the reasoning-engine configuration has valid
// values, applying defaults for anything unset.
func ValidateEngineConfig(engineConfig *Engine) error {
	if engineConfig == nil {
		return fmt.Errorf("engine configuration is nil")
	}

	engineConfig.Model = SetThen(engineConfig.Model, "deepseek-chat")
	engineConfig.MaxTokens = SetThen(engineConfig.MaxTokens, 2048)
	engineConfig.Timeout = SetThen(engineConfig.Timeout, 120*time.Second)
	engineConfig.CallsPerProject = SetThen(engineConfig.CallsPerProject, 100)
	engineConfig.ErrorThreshold = SetThen(engineConfig.ErrorThreshold, 5)

	if engineConfig.BaseURL != "" {
		if _, err := url.ParseRequestURI(engineConfig.BaseURL); err != nil {
			return fmt.Errorf("invalid base_url %q: %w", engineConfig.BaseURL, err)
		}
	}
	if engineConfig.MaxTokens < 1 {
		return fmt.Errorf("max_tokens must be positive: %d", engineConfig.MaxTokens)
	}
	if engineConfig.Temperature < 0 || engineConfig.Temperature > 2 {
		return fmt.Errorf("temperature must be between 0 and 2: %v", engineConfig.Temperature)
	}
	if engineConfig.CallsPerProject < 1 {
		return fmt.Errorf("calls_per_project must be positive: %d", engineConfig.CallsPerProject)
	}
	if engineConfig.ErrorThreshold < 1 {
		return fmt.Errorf("error_threshold must be positive: %d", engineConfig.ErrorThreshold)
	}
	return nil
}

// ValidateVerifyConfig checks if the verification loop configuration has
// valid values, applying defaults for anything unset.
func ValidateVerifyConfig(verifyConfig *Verify) error {
	if verifyConfig == nil {
		return fmt.Errorf("verify configuration is nil")
	}

	verifyConfig.TurnBudget = SetThen(verifyConfig.TurnBudget, 5)
	verifyConfig.RepairBudget = SetThen(verifyConfig.RepairBudget, 3)
	verifyConfig.RiskThreshold = SetThen(verifyConfig.RiskThreshold, "high")
	verifyConfig.AttemptTimeout = SetThen(verifyConfig.AttemptTimeout, 60*time.Second)
	verifyConfig.ResolverCap = SetThen(verifyConfig.ResolverCap, 15)
	verifyConfig.SnippetRadius = SetThen(verifyConfig.SnippetRadius, 20)
	verifyConfig.FileSizeLimitMB = SetThen(verifyConfig.FileSizeLimitMB, 1)

	if verifyConfig.TurnBudget < 1 || verifyConfig.TurnBudget > 9 {
		return fmt.Errorf("turn_budget must be a single-digit positive integer: %d", verifyConfig.TurnBudget)
	}
	if verifyConfig.RepairBudget < 0 {
		return fmt.Errorf("repair_budget cannot be negative: %d", verifyConfig.RepairBudget)
	}
	if !isKnownRiskLevel(verifyConfig.RiskThreshold) {
		return fmt.Errorf("unknown risk_threshold %q, expected one of %s",
			verifyConfig.RiskThreshold, strings.Join(knownRiskLevels, ", "))
	}
	if err := validateDuration(verifyConfig.AttemptTimeout, "attempt_timeout", 30*time.Minute); err != nil {
		return err
	}
	return nil
}

func isKnownRiskLevel(level string) bool {
	for _, known := range knownRiskLevels {
		if level == known {
			return true
		}
	}
	return false
}

// validateDuration checks that a time.Duration is valid and within a specified maximum duration.
func validateDuration(d time.Duration, name string, max time.Duration) error {
	if d < 0 {
		return fmt.Errorf("invalid duration for %q: %v cannot be negative", name, d)
	}
	if d > max {
		return fmt.Errorf("%q duration is too long: %v exceeds maximum of %v", name, d, max)
	}
	return nil
}

// validateProxy checks if the given Proxy settings are valid.
func validateProxy(proxy *Proxy) error {
	if proxy == nil {
		return fmt.Errorf("proxy configuration is nil")
	}

	// If host or port is not set, skip further validation
	if proxy.Host == "" || proxy.Port == 0 {
		return nil
	}

	if err := validateHost(&proxy.Host); err != nil {
		return err
	}

	if err := validatePort(proxy.Port); err != nil {
		return err
	}

	return nil
}

// validateHost checks if the host part of the proxy configuration is valid.
// It ensures the host includes a scheme; adds "http" if missing.
func validateHost(host *string) error {
	if host == nil {
		return fmt.Errorf("host string pointer is nil")
	}

	if !strings.Contains(*host, "://") {
		*host = "http://" + *host
	}
	*host = strings.TrimRight(*host, "/")

	if _, err := url.Parse(*host); err != nil {
		return fmt.Errorf("invalid host URL: %w", err)
	}

	return nil
}

// validatePort checks if the port part of the proxy configuration is valid.
func validatePort(port int) error {
	if port < 1 || port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", port)
	}
	return nil
}

// updateHome updates the HomeFolder from environment variables or sets a default value.
func updateHome(cfg *Config) error {
	if homeFolder := os.Getenv("MASSAUDIT_HOME"); homeFolder != "" {
		cfg.Massaudit.HomeFolder = homeFolder
	} else if cfg.Massaudit.HomeFolder == "" {
		homeFolder, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("unable to get user home folder: %w", err)
		}
		cfg.Massaudit.HomeFolder = filepath.Join(homeFolder, ".massaudit")
	}

	expandedHomePath, err := files.ExpandPath(cfg.Massaudit.HomeFolder)
	if err != nil {
		return fmt.Errorf("failed to expand new home path %q: %w", cfg.Massaudit.HomeFolder, err)
	}
	cfg.Massaudit.HomeFolder = expandedHomePath

	if err := files.CreateFolderIfNotExists(expandedHomePath); err != nil {
		return fmt.Errorf("failed to create home folder %q: %w", cfg.Massaudit.HomeFolder, err)
	}
	return nil
}

// updateFolder updates a folder path in the massaudit configuration.
func updateFolder(folder *string, envVar, defaultSubFolder string, cfg *Config) error {
	if envVarValue := os.Getenv(envVar); envVarValue != "" {
		*folder = envVarValue
	} else if *folder == "" {
		*folder = filepath.Join(GetMassauditHome(cfg), defaultSubFolder)
	}

	expandedHomePath, err := files.ExpandPath(*folder)
	if err != nil {
		return fmt.Errorf("failed to expand new home path %q: %w", *folder, err)
	}
	*folder = expandedHomePath

	if err := files.CreateFolderIfNotExists(expandedHomePath); err != nil {
		return fmt.Errorf("failed to create folder %q: %w", expandedHomePath, err)
	}
	return nil
}

// updateMode updates the Mode field based on environment variables.
func updateMode(cfg *Config) {
	if os.Getenv("MASSAUDIT_MODE") == "CI" || os.Getenv("CI") == "true" {
		cfg.Massaudit.Mode = "CI"
		return
	}

	if envVarValue := os.Getenv("MASSAUDIT_MODE"); envVarValue != "" {
		cfg.Massaudit.Mode = envVarValue
		return
	}

	cfg.Massaudit.Mode = "user"
}
