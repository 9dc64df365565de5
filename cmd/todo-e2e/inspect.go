package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/todoqa/todo-e2e/internal/browser"
	"github.com/todoqa/todo-e2e/internal/inspect"
	"github.com/todoqa/todo-e2e/internal/todopage"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect",
	Short: "Print the DOM structure of the app as YAML",
	Long: `Inspect opens the app, waits for the todo list to load and prints
the inputs, buttons, candidate todo item selectors and their first match.

Use it to check the page object selectors against a new deployment.`,
	RunE: runInspect,
}

var (
	inspectOutputFlag string
	inspectSettleFlag time.Duration
)

func init() {
	inspectCmd.Flags().StringVarP(&inspectOutputFlag, "output", "o", "", "Write the report to a file instead of stdout")
	inspectCmd.Flags().DurationVar(&inspectSettleFlag, "settle", 2*time.Second, "Extra time to let the app render after loading")

	rootCmd.AddCommand(inspectCmd)
}

func runInspect(cmd *cobra.Command, args []string) error {
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

	launcher, err := browser.Launch(cfg, log)
	if err != nil {
		return err
	}
	defer launcher.Close()

	session, err := launcher.NewSession("inspect")
	if err != nil {
		return err
	}
	defer session.Close(false)

	page := todopage.New(session.Page, todopage.WithConfig(cfg), todopage.WithLogger(log))
	if err := page.Goto(); err != nil {
		return err
	}
	session.Page.WaitForTimeout(float64(inspectSettleFlag.Milliseconds()))

	report, err := inspect.Page(session.Page)
	if err != nil {
		return err
	}

	var out io.Writer = os.Stdout
	if inspectOutputFlag != "" {
		f, err := os.Create(inspectOutputFlag)
		if err != nil {
			return fmt.Errorf("failed to create %s: %w", inspectOutputFlag, err)
		}
		defer f.Close()
		out = f
	}
	if err := report.WriteYAML(out); err != nil {
		return err
	}

	if best, ok := report.Best(); ok {
		log.WithField("selector", best.Selector).WithField("count", best.Count).Info("todo items found")
	} else {
		log.Warn("no todo items found")
	}
	return nil
}
