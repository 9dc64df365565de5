package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/todoqa/todo-e2e/internal/config"
	"github.com/todoqa/todo-e2e/internal/runner"
)

var runCmd = &cobra.Command{
	Use:   "run [packages...]",
	Short: "Run the browser suites for every project",
	Long: `Run executes the e2e packages once per project listed in PROJECTS,
with -parallel set to WORKERS, and retries failing top-level tests up to
RETRIES times. Each attempt sees PROJECT and E2E_RETRY in its environment.

With --every the run repeats on a schedule until interrupted.`,
	RunE: runRun,
}

var (
	runFilterFlag  string
	runTagsFlag    []string
	runTimeoutFlag time.Duration
	runJSONFlag    string
	runEveryFlag   string
)

func init() {
	runCmd.Flags().StringVar(&runFilterFlag, "run", "", "Only run tests matching this regular expression")
	runCmd.Flags().StringSliceVar(&runTagsFlag, "tags", []string{"e2e"}, "Build tags")
	runCmd.Flags().DurationVar(&runTimeoutFlag, "timeout", 30*time.Minute, "go test -timeout for each attempt")
	runCmd.Flags().StringVar(&runJSONFlag, "json", "", "Append the raw go test -json stream to this file")
	runCmd.Flags().StringVar(&runEveryFlag, "every", "", `Repeat on a cron schedule, e.g. "@every 30m"`)

	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}

	opts := runner.Options{
		Packages: args,
		Tags:     runTagsFlag,
		Projects: cfg.Projects,
		Run:      runFilterFlag,
		Retries:  cfg.Retries,
		Workers:  cfg.Workers,
		Timeout:  runTimeoutFlag,
		Logger:   log,
	}
	if cfg.LocalFixture {
		opts.Env = append(opts.Env, "E2E_LOCAL_FIXTURE=true")
	}
	if runJSONFlag != "" {
		f, err := os.OpenFile(runJSONFlag, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return fmt.Errorf("failed to open %s: %w", runJSONFlag, err)
		}
		defer f.Close()
		opts.Stream = f
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if runEveryFlag == "" {
		return runOnce(ctx, cfg, opts, os.Stdout)
	}

	sched := runner.NewScheduler(log)
	err = sched.Add(ctx, runner.Job{
		Name:    "e2e",
		Spec:    runEveryFlag,
		Timeout: runTimeoutFlag * time.Duration(len(cfg.Projects)*(cfg.Retries+1)),
		Run: func(ctx context.Context) error {
			return runOnce(ctx, cfg, opts, os.Stdout)
		},
	})
	if err != nil {
		return err
	}
	return sched.Start(ctx)
}

func runOnce(ctx context.Context, cfg *config.Config, opts runner.Options, out io.Writer) error {
	res, err := runner.New(opts).Run(ctx)
	if err != nil {
		return err
	}
	printRunResult(out, cfg, res)
	if !res.OK() {
		return errors.New("e2e run failed")
	}
	return nil
}

func printRunResult(w io.Writer, cfg *config.Config, res *runner.Result) {
	fmt.Fprintln(w, "\n"+strings.Repeat("=", 60))
	fmt.Fprintln(w, "                    E2E RUN SUMMARY")
	fmt.Fprintln(w, strings.Repeat("=", 60))
	for _, a := range res.Attempts {
		fmt.Fprintf(w, "%-14s attempt %d: %d passed, %d failed (%s)\n",
			a.Project, a.Number, a.Passed, a.Failed, a.Duration.Round(time.Second))
	}
	fmt.Fprintln(w, strings.Repeat("-", 60))
	for _, project := range cfg.Projects {
		if flaky := res.Flaky[project]; len(flaky) > 0 {
			fmt.Fprintf(w, "⚠️  %s flaky: %s\n", project, strings.Join(flaky, ", "))
		}
		if failed := res.Failures[project]; len(failed) > 0 {
			fmt.Fprintf(w, "❌ %s failed: %s\n", project, strings.Join(failed, ", "))
		} else {
			fmt.Fprintf(w, "✅ %s passed\n", project)
		}
	}
}
