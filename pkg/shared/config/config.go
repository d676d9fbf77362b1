package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	yaml "gopkg.in/yaml.v2"
)

// Config is the root of the YAML configuration. It is loaded once at startup
// and passed explicitly into every component; nothing reads it through
// package-level state.
type Config struct {
	Massaudit    Massaudit    `yaml:"massaudit"`
	Logger       Logger       `yaml:"logger"`
	HTTPClient   HTTPClient   `yaml:"http_client"`
	GitClient    GitClient    `yaml:"git_client"`
	Engine       Engine       `yaml:"engine"`
	Verify       Verify       `yaml:"verify"`
	CodeQLPlugin CodeQLPlugin `yaml:"codeql_plugin"`
}

// Massaudit holds the home folder layout. Empty fields are resolved to
// defaults under the home folder during validation.
type Massaudit struct {
	HomeFolder     string `yaml:"home_folder"`
	PluginsFolder  string `yaml:"plugins_folder"`
	ProjectsFolder string `yaml:"projects_folder"`
	ResultsFolder  string `yaml:"results_folder"`
	TempFolder     string `yaml:"temp_folder"`
	Mode           string `yaml:"mode"`
}

// Logger holds logging configuration.
type Logger struct {
	Level string `yaml:"level"`
}

// HTTPClient holds settings for outbound HTTP clients.
type HTTPClient struct {
	Debug            *bool           `yaml:"debug"`
	RetryCount       int             `yaml:"retry_count"`
	RetryWaitTime    time.Duration   `yaml:"retry_wait_time"`
	RetryMaxWaitTime time.Duration   `yaml:"retry_max_wait_time"`
	Timeout          time.Duration   `yaml:"timeout"`
	TLSClientConfig  TLSClientConfig `yaml:"tls_client_config"`
	Proxy            Proxy           `yaml:"proxy"`
}

// TLSClientConfig holds TLS settings for outbound HTTP clients.
type TLSClientConfig struct {
	Verify *bool `yaml:"verify"`
}

// Proxy holds outbound proxy settings.
type Proxy struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// GitClient holds settings for fetching target projects.
type GitClient struct {
	Depth       int           `yaml:"depth"`
	InsecureTLS *bool         `yaml:"insecure_tls"`
	Timeout     time.Duration `yaml:"timeout"`
}

// Engine holds reasoning-engine client settings. The API token is never kept
// in the file; it is read from the MASSAUDIT_ENGINE_TOKEN environment
// variable.
type Engine struct {
	BaseURL         string        `yaml:"base_url"`
	Model           string        `yaml:"model"`
	MaxTokens       int           `yaml:"max_tokens"`
	Temperature     float64       `yaml:"temperature"`
	Timeout         time.Duration `yaml:"timeout"`
	CallsPerProject int           `yaml:"calls_per_project"`
	ErrorThreshold  int           `yaml:"error_threshold"`
}

// Token returns the engine API token from the environment.
func (e Engine) Token() string {
	return os.Getenv("MASSAUDIT_ENGINE_TOKEN")
}

// Verify holds the budgets and limits of the verification loop.
type Verify struct {
	TurnBudget      int           `yaml:"turn_budget"`
	RepairBudget    int           `yaml:"repair_budget"`
	RiskThreshold   string        `yaml:"risk_threshold"`
	AttemptTimeout  time.Duration `yaml:"attempt_timeout"`
	ResolverCap     int           `yaml:"resolver_cap"`
	SnippetRadius   int           `yaml:"snippet_radius"`
	FileSizeLimitMB int           `yaml:"file_size_limit_mb"`
	KeepWorkdirs    *bool         `yaml:"keep_workdirs"`
}

// CodeQLPlugin holds settings consumed by the CodeQL scanner plugin.
type CodeQLPlugin struct {
	DBLanguage  string            `yaml:"db_language"`
	QuerySuites map[string]string `yaml:"query_suites"`
}

// ValidateConfigPath checks that the given path points to a regular file.
func ValidateConfigPath(path string) error {
	s, err := os.Stat(path)
	if err != nil {
		return err
	}
	if s.IsDir() {
		return fmt.Errorf("'%s' is a directory, not a file", path)
	}
	return nil
}

// LoadYAML decodes the YAML file at configPath into data.
func LoadYAML(configPath string, data interface{}) error {
	if err := ValidateConfigPath(configPath); err != nil {
		return err
	}

	file, err := os.Open(configPath)
	if err != nil {
		return err
	}
	defer file.Close()

	d := yaml.NewDecoder(file)
	if err := d.Decode(data); err != nil {
		return err
	}

	return nil
}

// LoadConfig reads and decodes the configuration file. A missing file is not
// an error: defaults and environment variables fill everything in during
// validation.
func LoadConfig(configPath string) (*Config, error) {
	config := &Config{}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return config, nil
	}

	if err := LoadYAML(configPath, config); err != nil {
		return nil, err
	}

	return config, nil
}

// GetMassauditHome returns the resolved home folder.
func GetMassauditHome(cfg *Config) string {
	return cfg.Massaudit.HomeFolder
}

// GetPluginsHome returns the resolved plugins folder.
func GetPluginsHome(cfg *Config) string {
	return cfg.Massaudit.PluginsFolder
}

// GetProjectsHome returns the resolved projects folder.
func GetProjectsHome(cfg *Config) string {
	return cfg.Massaudit.ProjectsFolder
}

// GetResultsHome returns the resolved results folder.
func GetResultsHome(cfg *Config) string {
	return cfg.Massaudit.ResultsFolder
}

// GetTempHome returns the resolved temp folder.
func GetTempHome(cfg *Config) string {
	return cfg.Massaudit.TempFolder
}

// GetProjectPath returns the source tree path of a named project.
func GetProjectPath(cfg *Config, projectName string) string {
	return filepath.Join(GetProjectsHome(cfg), projectName)
}

// IsCI reports whether massaudit runs in CI mode.
func IsCI(cfg *Config) bool {
	return cfg.Massaudit.Mode == "CI"
}
