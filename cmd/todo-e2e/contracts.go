package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/todoqa/todo-e2e/internal/contracts"
	"github.com/todoqa/todo-e2e/internal/todoapi"
)

var contractsCmd = &cobra.Command{
	Use:   "contracts",
	Short: "Check the todo API against its contracts",
	Long: `Contracts sends every contract request to API_URL, checks status codes
and bodies, prints a report and saves it as JSON.

The command fails when any contract fails.`,
	RunE: runContracts,
}

var contractsOutputFlag string

func init() {
	contractsCmd.Flags().StringVarP(&contractsOutputFlag, "output", "o", "contract-test-report.json", "Path of the JSON report, empty to skip")

	rootCmd.AddCommand(contractsCmd)
}

func runContracts(cmd *cobra.Command, args []string) error {
	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.LocalFixture {
		stop, err := startLocal(cfg, log)
		if err != nil {
			return err
		}
		defer stop()
	}

	fmt.Println("🔍 Starting API Contract Testing...")
	fmt.Printf("Testing against: %s\n", cfg.APIURL)

	client := todoapi.NewClient(&todoapi.Config{
		BaseURL: cfg.APIURL,
		Timeout: cfg.Timeouts.Action,
		Logger:  log,
	})
	report := contracts.Run(context.Background(), client, contracts.Default())
	contracts.Print(os.Stdout, report)

	if contractsOutputFlag != "" {
		if err := contracts.Save(contractsOutputFlag, report); err != nil {
			log.WithError(err).Warn("failed to save report")
		} else {
			fmt.Printf("📄 Report saved to %s\n", contractsOutputFlag)
		}
	}

	if report.Failed > 0 {
		return fmt.Errorf("%d of %d contracts failed", report.Failed, report.TotalTests)
	}
	return nil
}
