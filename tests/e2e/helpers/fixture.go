package helpers

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/playwright-community/playwright-go"
	"github.com/stretchr/testify/require"

	"github.com/todoqa/todo-e2e/internal/a11y"
	"github.com/todoqa/todo-e2e/internal/browser"
	"github.com/todoqa/todo-e2e/internal/config"
	"github.com/todoqa/todo-e2e/internal/report"
	"github.com/todoqa/todo-e2e/internal/todopage"
	"github.com/todoqa/todo-e2e/internal/visual"
)

// TodoFixture is what every browser test starts from: an isolated session,
// the page object already on the app, and a report recorder.
type TodoFixture struct {
	T       *testing.T
	Env     *Env
	Config  *config.Config
	Session *browser.Session
	Page    playwright.Page
	Todo    *todopage.TodoPage
	Report  *report.Recorder
	Expect  playwright.PlaywrightAssertions
}

type fixtureOptions struct {
	suite    string
	navigate bool
	page     []todopage.Option
	before   []func(f *TodoFixture)
}

type FixtureOption func(*fixtureOptions)

// Suite names the report suite, e.g. "Todo CRUD".
func Suite(name string) FixtureOption {
	return func(o *fixtureOptions) { o.suite = name }
}

// WithoutGoto leaves the page blank so the test can install routes first.
func WithoutGoto() FixtureOption {
	return func(o *fixtureOptions) { o.navigate = false }
}

// PageOptions are appended to the page object options.
func PageOptions(opts ...todopage.Option) FixtureOption {
	return func(o *fixtureOptions) { o.page = append(o.page, opts...) }
}

// BeforeGoto runs fn after the session is open and before navigation.
func BeforeGoto(fn func(f *TodoFixture)) FixtureOption {
	return func(o *fixtureOptions) { o.before = append(o.before, fn) }
}

// NewTodoFixture opens a session for t and navigates to the app. Artifacts
// and the report are finalized in t.Cleanup.
func NewTodoFixture(t *testing.T, env *Env, opts ...FixtureOption) *TodoFixture {
	t.Helper()
	if env == nil || env.Launcher == nil {
		var reason error
		if env != nil {
			reason = env.Err
		}
		t.Skipf("Could not start Playwright: %v", reason)
	}

	o := fixtureOptions{suite: "e2e", navigate: true}
	for _, opt := range opts {
		opt(&o)
	}

	session, err := env.Launcher.NewSession(t.Name())
	require.NoError(t, err, "Failed to open browser session")

	cfg := env.Config
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Timeouts.Test)
	rec := report.NewRecorder(cfg.Artifacts.AllureDir, o.suite, t.Name(),
		report.Label{Name: "parentSuite", Value: env.Launcher.Project()},
	)

	f := &TodoFixture{
		T:       t,
		Env:     env,
		Config:  cfg,
		Session: session,
		Page:    session.Page,
		Report:  rec,
		Expect:  playwright.NewPlaywrightAssertions(float64(cfg.Timeouts.Expect.Milliseconds())),
	}

	pageOpts := append([]todopage.Option{
		todopage.WithConfig(cfg),
		todopage.WithLogger(env.Log.WithField("test", t.Name())),
		todopage.WithContext(ctx),
	}, o.page...)
	f.Todo = todopage.New(session.Page, pageOpts...)

	t.Cleanup(func() {
		cancel()
		f.finish()
	})

	for _, fn := range o.before {
		fn(f)
	}
	if o.navigate {
		require.NoError(t, f.Todo.Goto(), "Failed to open the app")
	}
	return f
}

func (f *TodoFixture) finish() {
	failed := f.T.Failed()
	artifacts, err := f.Session.Close(failed)
	if err != nil {
		f.T.Logf("closing session: %v", err)
	}
	for _, a := range []struct{ name, mime, path string }{
		{"screenshot", "image/png", artifacts.Screenshot},
		{"trace", "application/zip", artifacts.Trace},
		{"video", "video/webm", artifacts.Video},
	} {
		if a.path == "" {
			continue
		}
		if err := f.Report.AttachFile(a.name, a.mime, a.path); err != nil {
			f.T.Logf("attach %s: %v", a.name, err)
		}
	}

	status := report.StatusFor(failed, f.T.Skipped())
	if _, err := f.Report.Finish(status, ""); err != nil {
		f.T.Logf("writing report: %v", err)
	}
}

// Step runs fn as a reported step. fn uses require as usual; a failed
// assertion ends the test and marks the step failed.
func (f *TodoFixture) Step(name string, fn func()) {
	f.T.Helper()
	f.T.Logf("step: %s", name)
	_ = f.Report.Step(name, func() error {
		fn()
		if f.T.Failed() {
			return fmt.Errorf("%s failed", name)
		}
		return nil
	})
}

// Annotate records a note in the report and the test log.
func (f *TodoFixture) Annotate(kind, description string) {
	f.T.Logf("[%s] %s", kind, description)
	f.Report.Annotate(kind, description)
}

// AttachJSON attaches v to the report, logging instead of failing on error.
func (f *TodoFixture) AttachJSON(name string, v any) {
	if err := f.Report.AttachJSON(name, v); err != nil {
		f.T.Logf("attach %s: %v", name, err)
	}
}

// Axe returns an axe-core builder for the current page.
func (f *TodoFixture) Axe() *a11y.Builder {
	return a11y.NewBuilder(f.Page, f.Config.AxeScript)
}

// ReportViolations annotates and attaches violations without failing the
// test; it returns whether there were any.
func (f *TodoFixture) ReportViolations(what, attachment string, vs a11y.Violations) bool {
	if len(vs) == 0 {
		f.Annotate("a11y-pass", what+" meets accessibility requirements")
		return false
	}
	f.Step(fmt.Sprintf("found %d accessibility violations", len(vs)), func() {
		f.Annotate("a11y-violation", fmt.Sprintf("%s: %d violations (%s)", what, len(vs), strings.Join(vs.IDs(), ", ")))
		f.AttachJSON(attachment, vs.Summaries())
		for _, s := range vs.Summaries() {
			f.T.Logf("   - %s: %s (%s) %s", s.ID, s.Description, s.Impact, s.HelpURL)
		}
	})
	return true
}

// Screenshot compares a stable PNG of the page or of locator with its
// baseline. testFile groups baselines per suite file.
func (f *TodoFixture) Screenshot(testFile, name string, target playwright.Locator, fullPage bool, opts visual.Options) {
	f.T.Helper()
	shoot := func() ([]byte, error) {
		if target != nil {
			return target.Screenshot(playwright.LocatorScreenshotOptions{
				Animations: playwright.ScreenshotAnimationsDisabled,
			})
		}
		return f.Page.Screenshot(playwright.PageScreenshotOptions{
			FullPage:   playwright.Bool(fullPage),
			Animations: playwright.ScreenshotAnimationsDisabled,
		})
	}
	shot, err := visual.Stable(shoot, 3)
	if err != nil && shot == nil {
		require.NoError(f.T, err, "Failed to take screenshot %s", name)
	}

	res, err := f.Env.Visual.Match(testFile, name, shot, opts)
	if res != nil && (res.Actual != "" || res.DiffImage != "") {
		if res.Actual != "" {
			_ = f.Report.AttachFile(name+"-actual", "image/png", res.Actual)
		}
		if res.DiffImage != "" {
			_ = f.Report.AttachFile(name+"-diff", "image/png", res.DiffImage)
		}
	}
	require.NoError(f.T, err)
	if res.Created {
		f.Annotate("baseline", "created "+res.Baseline)
	}
}
