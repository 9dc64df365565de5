package main

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/todoqa/todo-e2e/internal/config"
	"github.com/todoqa/todo-e2e/internal/logging"
	"github.com/todoqa/todo-e2e/internal/version"
)

var rootCmd = &cobra.Command{
	Use:   "todo-e2e",
	Short: "End-to-end test harness for the todo app",
	Long: `todo-e2e drives the todo single-page app through Playwright and checks
its REST API.

It can serve a local copy of the app, inspect a deployment's DOM, run the
API contracts, run the browser suites across device projects with retries,
and summarize the Allure results.`,
	Version:       version.String(),
	SilenceUsage:  true,
	SilenceErrors: true,
}

var (
	configFileFlag string
	envFileFlag    string
	logLevelFlag   string
	localFlag      bool
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configFileFlag, "config", os.Getenv("E2E_CONFIG"), "YAML configuration file")
	rootCmd.PersistentFlags().StringVar(&envFileFlag, "env-file", ".env", "KEY=VALUE file merged into the environment")
	rootCmd.PersistentFlags().StringVar(&logLevelFlag, "log-level", "", "Override the log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVar(&localFlag, "local", false, "Use the built-in fixture app instead of the configured deployment")

	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("todo-e2e %s\n", rootCmd.Version)
	},
}

// loadConfig resolves configuration from the persistent flags.
func loadConfig() (*config.Config, *logrus.Logger, error) {
	cfg, err := config.Load(config.Options{EnvFile: envFileFlag, ConfigFile: configFileFlag})
	if err != nil {
		return nil, nil, err
	}
	if logLevelFlag != "" {
		cfg.Log.Level = logLevelFlag
	}
	if localFlag {
		cfg.LocalFixture = true
	}
	return cfg, logging.New(cfg.Log), nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "❌ %v\n", err)
		os.Exit(1)
	}
}
