// Package helpers holds the shared browser environment of the e2e suites and
// the per-test todo fixture.
package helpers

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/todoqa/todo-e2e/internal/browser"
	"github.com/todoqa/todo-e2e/internal/config"
	"github.com/todoqa/todo-e2e/internal/fixtureapp"
	"github.com/todoqa/todo-e2e/internal/logging"
	"github.com/todoqa/todo-e2e/internal/visual"
)

// Env is created once per test binary by TestMain.
type Env struct {
	Config   *config.Config
	Log      *logrus.Logger
	Launcher *browser.Launcher
	Visual   *visual.Comparator
	// Err is why the browser could not be started; tests skip when set.
	Err error

	stops []func()
}

// Setup resolves the configuration, starts the fixture app when asked to,
// and launches the browser of the current project. Launch failures are
// kept in Err instead of being returned.
func Setup() (*Env, error) {
	cfg := config.Get()
	log := logging.New(cfg.Log)
	env := &Env{Config: cfg, Log: log}

	root := RepoRoot()
	cfg.Artifacts.OutputDir = resolve(root, cfg.Artifacts.OutputDir)
	cfg.Artifacts.SnapshotDir = resolve(root, cfg.Artifacts.SnapshotDir)
	cfg.Artifacts.AllureDir = resolve(root, cfg.Artifacts.AllureDir)
	if filepath.Ext(cfg.AxeScript) == ".js" && !filepath.IsAbs(cfg.AxeScript) && !isURL(cfg.AxeScript) {
		cfg.AxeScript = resolve(root, cfg.AxeScript)
	}

	if cfg.LocalFixture {
		srv, err := fixtureapp.New(fixtureapp.Options{Logger: log})
		if err != nil {
			return nil, err
		}
		running, err := srv.Start("127.0.0.1:0")
		if err != nil {
			return nil, err
		}
		cfg.BaseURL = running.URL + "/"
		cfg.APIURL = running.APIURL
		env.stops = append(env.stops, func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = running.Close(ctx)
		})
	}

	launcher, err := browser.Launch(cfg, log)
	if err != nil {
		env.Err = err
		log.WithError(err).Warn("playwright unavailable, browser tests will be skipped")
	} else {
		env.Launcher = launcher
		env.stops = append(env.stops, func() { _ = launcher.Close() })
	}

	env.Visual = visual.NewComparator(cfg.Artifacts.SnapshotDir, cfg.Artifacts.OutputDir, cfg.Project, cfg.Artifacts.UpdateSnapshots, log)
	log.WithFields(logrus.Fields{
		"base_url": cfg.BaseURL,
		"api_url":  cfg.APIURL,
		"project":  cfg.Project,
		"attempt":  cfg.Attempt,
	}).Info("e2e environment ready")
	return env, nil
}

// Close releases everything Setup started, in reverse order.
func (e *Env) Close() {
	for i := len(e.stops) - 1; i >= 0; i-- {
		e.stops[i]()
	}
}

// RepoRoot walks up from the working directory to the directory holding
// go.mod. Tests run from their package directory, while configured paths
// are relative to the repository.
func RepoRoot() string {
	dir, err := os.Getwd()
	if err != nil {
		return "."
	}
	for d := dir; ; d = filepath.Dir(d) {
		if _, err := os.Stat(filepath.Join(d, "go.mod")); err == nil {
			return d
		}
		if filepath.Dir(d) == d {
			return dir
		}
	}
}

func resolve(root, p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(root, p)
}

func isURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

// MustSetup is Setup for TestMain: configuration errors abort the binary.
func MustSetup() *Env {
	env, err := Setup()
	if err != nil {
		fmt.Fprintf(os.Stderr, "e2e setup failed: %v\n", err)
		os.Exit(1)
	}
	return env
}
