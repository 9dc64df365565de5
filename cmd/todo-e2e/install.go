package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/todoqa/todo-e2e/internal/browser"
)

var installCmd = &cobra.Command{
	Use:   "install",
	Short: "Download the Playwright driver and browsers",
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Println("📦 Installing Playwright driver and browsers...")
		if err := browser.Install(); err != nil {
			return err
		}
		fmt.Println("✅ Playwright is ready")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(installCmd)
}
