package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/todoqa/todo-e2e/internal/report"
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Summarize Allure results and export them to a spreadsheet",
	RunE:  runReport,
}

var (
	reportDirFlag  string
	reportXLSXFlag string
)

func init() {
	reportCmd.Flags().StringVar(&reportDirFlag, "dir", "", "Results directory (defaults to ALLURE_DIR)")
	reportCmd.Flags().StringVar(&reportXLSXFlag, "xlsx", "e2e-summary.xlsx", "Workbook to write, empty to skip")

	rootCmd.AddCommand(reportCmd)
}

func runReport(cmd *cobra.Command, args []string) error {
	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}
	dir := reportDirFlag
	if dir == "" {
		dir = cfg.Artifacts.AllureDir
	}

	results, err := report.LoadResults(dir)
	if err != nil {
		return err
	}
	if len(results) == 0 {
		fmt.Printf("⚠️  No results in %s\n", dir)
		return nil
	}

	s := report.Summarize(results)
	fmt.Printf("📊 %d tests: %d passed, %d failed, %d broken, %d skipped (%s)\n",
		s.Total, s.Passed, s.Failed, s.Broken, s.Skipped, s.Duration.Round(time.Millisecond))
	for _, r := range results {
		if r.Status == report.StatusFailed || r.Status == report.StatusBroken {
			fmt.Printf("   ❌ %s\n", r.FullName)
		}
	}

	if reportXLSXFlag != "" {
		if err := report.WriteWorkbook(reportXLSXFlag, results); err != nil {
			return err
		}
		fmt.Printf("📝 Wrote %s\n", reportXLSXFlag)
	}
	return nil
}
