package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/massaudit/massaudit/cmd/audit"
	"github.com/massaudit/massaudit/cmd/fetch"
	"github.com/massaudit/massaudit/cmd/scan"
	"github.com/massaudit/massaudit/cmd/version"
	"github.com/massaudit/massaudit/pkg/shared/config"
)

var (
	cfgFile   string
	AppConfig *config.Config
	rootCmd   = &cobra.Command{
		Use:                   "massaudit [command]",
		SilenceUsage:          true,
		DisableFlagsInUseLine: true,
		Short:                 "Massaudit verifies static analysis findings with an LLM-driven audit loop.",
		Long: `Massaudit orchestrates static analysis scanners over local project trees and
augments their findings with multi-turn LLM reasoning, context resolution,
proof-of-concept synthesis and sandboxed execution.
`,
	}
)

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is config.yml)")
	rootCmd.AddCommand(version.NewVersionCmd())
	rootCmd.AddCommand(fetch.FetchCmd)
	rootCmd.AddCommand(scan.ScanCmd)
	rootCmd.AddCommand(audit.AuditCmd)
}

func Execute() error {
	rootCmd.CompletionOptions.DisableDefaultCmd = true
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error executing command: %v\n", err)
		return err
	}
	return nil
}

func initConfig() {
	var err error

	if cfgFile == "" {
		cfgFile = "config.yml"
	}
	AppConfig, err = config.LoadConfig(cfgFile)
	if err != nil {
		fmt.Printf("failed to initialize config: %v\n", err)
		os.Exit(1)
	}
	if err := config.ValidateConfig(AppConfig); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}

	version.Init(AppConfig)
	fetch.Init(AppConfig)
	scan.Init(AppConfig)
	audit.Init(AppConfig)
}
