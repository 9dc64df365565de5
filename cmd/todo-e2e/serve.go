package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/todoqa/todo-e2e/internal/fixtureapp"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the local todo app and mock API",
	Long: `Serve starts the fixture app: the todo page at / and a
JSONPlaceholder-compatible API under /api, plus /metrics and /healthz.

Point BASE_URL at it to run the browser suites without the public deployment.`,
	RunE: runServe,
}

var (
	serveAddrFlag     string
	servePageSizeFlag int
	serveLatencyFlag  time.Duration
	serveAPIBaseFlag  string
)

func init() {
	serveCmd.Flags().StringVar(&serveAddrFlag, "addr", ":4200", "Listen address")
	serveCmd.Flags().IntVar(&servePageSizeFlag, "page-size", 10, "Number of todos the page loads")
	serveCmd.Flags().DurationVar(&serveLatencyFlag, "latency", 0, "Delay added to every API answer")
	serveCmd.Flags().StringVar(&serveAPIBaseFlag, "api-base", "/api", "Path or absolute URL the page fetches todos from")

	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	_, log, err := loadConfig()
	if err != nil {
		return err
	}

	srv, err := fixtureapp.New(fixtureapp.Options{
		APIBase:  serveAPIBaseFlag,
		PageSize: servePageSizeFlag,
		Latency:  serveLatencyFlag,
		Logger:   log,
	})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return srv.ListenAndServe(ctx, serveAddrFlag)
}
