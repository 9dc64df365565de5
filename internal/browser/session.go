package browser

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/playwright-community/playwright-go"
	"github.com/sirupsen/logrus"
)

// Session is one isolated browser context with a single page.
type Session struct {
	Context playwright.BrowserContext
	Page    playwright.Page

	name    string
	dir     string
	attempt int
	tracing bool
	l       *Launcher
	log     *logrus.Entry
}

// Artifacts lists the files a session left behind.
type Artifacts struct {
	Screenshot string
	Trace      string
	Video      string
}

// NewSession opens a context emulating the launcher device. name identifies
// the test and names the artifact directory.
func (l *Launcher) NewSession(name string) (*Session, error) {
	cfg := l.Config
	attempt := cfg.Attempt
	dir := ArtifactDir(cfg.Artifacts.OutputDir, l.project, name, attempt)

	opts := playwright.BrowserNewContextOptions{
		BaseURL: playwright.String(cfg.BaseURL),
	}
	if d := l.Device; d != nil {
		opts.Viewport = d.Viewport
		opts.Screen = d.Screen
		opts.UserAgent = playwright.String(d.UserAgent)
		opts.DeviceScaleFactor = playwright.Float(d.DeviceScaleFactor)
		opts.IsMobile = playwright.Bool(d.IsMobile)
		opts.HasTouch = playwright.Bool(d.HasTouch)
	}
	if cfg.Artifacts.Video.Record(attempt) {
		opts.RecordVideo = &playwright.RecordVideo{Dir: filepath.Join(dir, "video")}
	}

	bctx, err := l.Browser.NewContext(opts)
	if err != nil {
		return nil, fmt.Errorf("could not create context: %w", err)
	}

	s := &Session{
		Context: bctx,
		name:    name,
		dir:     dir,
		attempt: attempt,
		l:       l,
		log:     l.log.WithField("test", name),
	}

	if cfg.Artifacts.Trace.Record(attempt) {
		err := bctx.Tracing().Start(playwright.TracingStartOptions{
			Name:        playwright.String(Sanitize(name)),
			Screenshots: playwright.Bool(true),
			Snapshots:   playwright.Bool(true),
		})
		if err != nil {
			_ = bctx.Close()
			return nil, fmt.Errorf("could not start tracing: %w", err)
		}
		s.tracing = true
	}

	page, err := bctx.NewPage()
	if err != nil {
		_ = bctx.Close()
		return nil, fmt.Errorf("could not create page: %w", err)
	}
	page.SetDefaultTimeout(float64(cfg.Timeouts.Action.Milliseconds()))
	page.SetDefaultNavigationTimeout(float64(cfg.Timeouts.Navigation.Milliseconds()))
	s.Page = page
	return s, nil
}

// Dir is where the session writes its artifacts.
func (s *Session) Dir() string { return s.dir }

// Close captures the artifacts the configured policy asks for and closes
// the context. failed is the outcome of the test using the session.
func (s *Session) Close(failed bool) (Artifacts, error) {
	var (
		out  Artifacts
		errs []error
	)
	modes := s.l.Config.Artifacts

	if s.Page != nil && modes.Screenshot.Capture(failed, s.attempt) {
		path := filepath.Join(s.dir, "screenshot.png")
		if _, err := s.Page.Screenshot(playwright.PageScreenshotOptions{
			Path:     playwright.String(path),
			FullPage: playwright.Bool(true),
		}); err != nil {
			errs = append(errs, fmt.Errorf("screenshot: %w", err))
		} else {
			out.Screenshot = path
		}
	}

	if s.tracing {
		if modes.Trace.Keep(failed, s.attempt) {
			path := filepath.Join(s.dir, "trace.zip")
			if err := s.Context.Tracing().Stop(path); err != nil {
				errs = append(errs, fmt.Errorf("trace: %w", err))
			} else {
				out.Trace = path
			}
		} else if err := s.Context.Tracing().Stop(); err != nil {
			errs = append(errs, fmt.Errorf("trace: %w", err))
		}
	}

	var video playwright.Video
	if s.Page != nil {
		video = s.Page.Video()
	}
	if err := s.Context.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close context: %w", err))
	}

	if video != nil {
		if modes.Video.Keep(failed, s.attempt) {
			path := filepath.Join(s.dir, "video.webm")
			if err := video.SaveAs(path); err != nil {
				errs = append(errs, fmt.Errorf("video: %w", err))
			} else {
				out.Video = path
			}
		}
		if err := video.Delete(); err != nil {
			errs = append(errs, fmt.Errorf("video: %w", err))
		}
		_ = os.Remove(filepath.Join(s.dir, "video"))
	}

	if out != (Artifacts{}) {
		s.log.WithFields(logrus.Fields{
			"failed":     failed,
			"screenshot": out.Screenshot,
			"trace":      out.Trace,
			"video":      out.Video,
		}).Info("artifacts saved")
	}
	return out, errors.Join(errs...)
}

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// Sanitize turns a test name into a file name.
func Sanitize(name string) string {
	s := unsafeChars.ReplaceAllString(name, "-")
	s = strings.Trim(s, "-.")
	if s == "" {
		return "unnamed"
	}
	return s
}

// ArtifactDir is output/project/test[-retryN].
func ArtifactDir(output, project, test string, attempt int) string {
	leaf := Sanitize(test)
	if attempt > 0 {
		leaf = fmt.Sprintf("%s-retry%d", leaf, attempt)
	}
	return filepath.Join(output, project, leaf)
}
