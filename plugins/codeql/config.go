package main

import (
	"os"

	"github.com/massaudit/massaudit/pkg/shared/config"
)

// UpdateConfigFromEnv sets configuration values from environment variables, if they are set.
func UpdateConfigFromEnv(cfg *config.Config) error {
	envVars := map[string]*string{
		"MASSAUDIT_CODEQL_DB_LANGUAGE": &cfg.CodeQLPlugin.DBLanguage,
	}

	for env, val := range envVars {
		if v := os.Getenv(env); v != "" {
			*val = v
		}
	}
	return nil
}
