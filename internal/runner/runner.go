// Package runner drives `go test -json` for the browser suites: it repeats
// the run per device project and retries failing top-level tests, the way a
// Playwright test runner would.
package runner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/todoqa/todo-e2e/internal/logging"
)

// Options describes a run.
type Options struct {
	GoBinary string
	Dir      string
	Packages []string
	Tags     []string
	Projects []string
	// Run is passed to -run on the first attempt.
	Run     string
	Retries int
	Workers int
	Timeout time.Duration
	// Env is appended to the process environment of every invocation.
	Env []string
	// Stream receives the raw test2json output.
	Stream io.Writer
	Logger logrus.FieldLogger
}

// Attempt is one `go test` invocation.
type Attempt struct {
	Project  string
	Number   int
	Args     []string
	Passed   int
	Failed   int
	Duration time.Duration
	Summary  Summary
}

// Result collects every attempt of a run.
type Result struct {
	Attempts []Attempt
	// Failures lists, per project, the tests that still failed after the
	// last retry as "package.Test"; broken packages appear by name.
	Failures map[string][]string
	// Flaky lists tests that failed and then passed on a retry.
	Flaky map[string][]string
}

// OK reports whether every project ended green.
func (r *Result) OK() bool {
	for _, f := range r.Failures {
		if len(f) > 0 {
			return false
		}
	}
	return true
}

type execFunc func(ctx context.Context, dir string, env []string, name string, args ...string) ([]byte, error)

type Runner struct {
	opts Options
	log  *logrus.Entry
	exec execFunc
}

func New(opts Options) *Runner {
	if opts.GoBinary == "" {
		opts.GoBinary = "go"
	}
	if len(opts.Packages) == 0 {
		opts.Packages = []string{"./tests/e2e/..."}
	}
	if len(opts.Projects) == 0 {
		opts.Projects = []string{"chromium"}
	}
	if opts.Retries < 0 {
		opts.Retries = 0
	}
	return &Runner{
		opts: opts,
		log:  logging.Component(opts.Logger, "runner"),
		exec: runCommand,
	}
}

func runCommand(ctx context.Context, dir string, env []string, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	cmd.Env = append(os.Environ(), env...)
	cmd.Stderr = os.Stderr
	return cmd.Output()
}

// target is one invocation: packages plus an optional -run filter.
type target struct {
	packages []string
	run      string
}

// Run executes every project and its retries. The returned error is only
// set when go test could not be run at all; test failures are reported in
// the Result.
func (r *Runner) Run(ctx context.Context) (*Result, error) {
	res := &Result{Failures: map[string][]string{}, Flaky: map[string][]string{}}

	for _, project := range r.opts.Projects {
		targets := []target{{packages: r.opts.Packages, run: r.opts.Run}}
		failedBefore := map[string]bool{}
		var remaining []string

		for attempt := 0; attempt <= r.opts.Retries && len(targets) > 0; attempt++ {
			var next []target
			remaining = nil

			for _, tg := range targets {
				a, err := r.invoke(ctx, project, attempt, tg)
				if err != nil {
					return res, err
				}
				res.Attempts = append(res.Attempts, a)

				for pkg, tests := range a.Summary.Passed {
					for _, test := range tests {
						if failedBefore[pkg+"."+test] {
							res.Flaky[project] = append(res.Flaky[project], pkg+"."+test)
						}
					}
				}
				for pkg, tests := range a.Summary.Failed {
					for _, test := range tests {
						failedBefore[pkg+"."+test] = true
						remaining = append(remaining, pkg+"."+test)
					}
				}
				remaining = append(remaining, a.Summary.BrokenPackages...)
				next = append(next, retryTargets(a.Summary)...)
			}
			targets = next
		}

		sort.Strings(remaining)
		sort.Strings(res.Flaky[project])
		res.Failures[project] = remaining
		if len(remaining) > 0 {
			r.log.WithFields(logrus.Fields{"project": project, "failed": len(remaining)}).Warn("project finished with failures")
		} else {
			r.log.WithField("project", project).Info("project passed")
		}
	}
	return res, nil
}

// retryTargets turns failures into the invocations of the next attempt:
// one per package with failing tests, and the whole package when it broke.
func retryTargets(s Summary) []target {
	var out []target
	pkgs := make([]string, 0, len(s.Failed))
	for pkg := range s.Failed {
		pkgs = append(pkgs, pkg)
	}
	sort.Strings(pkgs)
	for _, pkg := range pkgs {
		out = append(out, target{packages: []string{pkg}, run: RunPattern(s.Failed[pkg])})
	}
	for _, pkg := range s.BrokenPackages {
		out = append(out, target{packages: []string{pkg}})
	}
	return out
}

func (r *Runner) invoke(ctx context.Context, project string, attempt int, tg target) (Attempt, error) {
	args := r.Args(tg.packages, tg.run)
	env := append([]string{
		"PROJECT=" + project,
		"E2E_RETRY=" + strconv.Itoa(attempt),
	}, r.opts.Env...)

	log := r.log.WithFields(logrus.Fields{"project": project, "attempt": attempt})
	log.WithField("args", strings.Join(args, " ")).Info("running tests")

	start := time.Now()
	out, err := r.exec(ctx, r.opts.Dir, env, r.opts.GoBinary, args...)
	duration := time.Since(start)

	if r.opts.Stream != nil {
		_, _ = r.opts.Stream.Write(out)
	}

	events, stray, perr := ParseEvents(bytes.NewReader(out))
	if perr != nil {
		return Attempt{}, fmt.Errorf("runner: parse test output: %w", perr)
	}
	if err != nil {
		var exitErr *exec.ExitError
		if ctx.Err() != nil {
			return Attempt{}, ctx.Err()
		}
		if !errors.As(err, &exitErr) || len(events) == 0 {
			return Attempt{}, fmt.Errorf("runner: go test: %w: %s", err, strings.Join(stray, "\n"))
		}
	}

	sum := Summarize(events)
	a := Attempt{
		Project:  project,
		Number:   attempt,
		Args:     args,
		Passed:   sum.PassedCount(),
		Failed:   sum.FailedCount(),
		Duration: duration,
		Summary:  sum,
	}
	log.WithFields(logrus.Fields{
		"passed":   a.Passed,
		"failed":   a.Failed,
		"duration": duration.Round(time.Millisecond),
	}).Info("attempt finished")
	return a, nil
}

// Args builds the go test command line.
func (r *Runner) Args(packages []string, run string) []string {
	args := []string{"test", "-json", "-count=1"}
	if len(r.opts.Tags) > 0 {
		args = append(args, "-tags", strings.Join(r.opts.Tags, ","))
	}
	if r.opts.Workers > 0 {
		args = append(args, "-parallel", strconv.Itoa(r.opts.Workers))
	}
	if r.opts.Timeout > 0 {
		args = append(args, "-timeout", r.opts.Timeout.String())
	}
	if run != "" {
		args = append(args, "-run", run)
	}
	return append(args, packages...)
}
