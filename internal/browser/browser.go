// Package browser starts Playwright, launches the browser of the configured
// project and hands out one isolated context per test.
package browser

import (
	"fmt"
	"os"

	"github.com/playwright-community/playwright-go"
	"github.com/sirupsen/logrus"

	"github.com/todoqa/todo-e2e/internal/config"
	"github.com/todoqa/todo-e2e/internal/logging"
)

// Launcher owns the Playwright driver and one browser shared by every
// session of a test binary.
type Launcher struct {
	Playwright *playwright.Playwright
	Browser    playwright.Browser
	Device     *playwright.DeviceDescriptor
	Config     *config.Config

	project string
	log     *logrus.Entry
}

// Install downloads the driver and browsers unless PLAYWRIGHT_PREINSTALLED=1.
func Install() error {
	if os.Getenv("PLAYWRIGHT_PREINSTALLED") == "1" {
		return nil
	}
	if err := playwright.Install(); err != nil {
		return fmt.Errorf("could not install playwright browsers: %w", err)
	}
	return nil
}

func start() (*playwright.Playwright, error) {
	if err := Install(); err != nil {
		return nil, err
	}
	pw, err := playwright.Run()
	if err != nil {
		// The driver may be missing even when browsers are present.
		_ = playwright.Install()
		pw, err = playwright.Run()
		if err != nil {
			return nil, fmt.Errorf("could not start playwright after retry (ensure driver version matches image): %w", err)
		}
	}
	return pw, nil
}

// Launch starts Playwright and the browser for cfg.Project.
func Launch(cfg *config.Config, log logrus.FieldLogger) (*Launcher, error) {
	deviceName, err := DeviceFor(cfg.Project)
	if err != nil {
		return nil, err
	}

	pw, err := start()
	if err != nil {
		return nil, err
	}

	device, ok := pw.Devices[deviceName]
	if !ok || device == nil {
		_ = pw.Stop()
		return nil, fmt.Errorf("browser: playwright has no device %q", deviceName)
	}

	browserType, err := typeFor(pw, device.DefaultBrowserType)
	if err != nil {
		_ = pw.Stop()
		return nil, err
	}

	browser, err := browserType.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(cfg.Headless),
		SlowMo:   playwright.Float(float64(cfg.SlowMo)),
	})
	if err != nil {
		_ = pw.Stop()
		return nil, fmt.Errorf("could not launch %s: %w", device.DefaultBrowserType, err)
	}

	l := &Launcher{
		Playwright: pw,
		Browser:    browser,
		Device:     device,
		Config:     cfg,
		project:    cfg.Project,
		log:        logging.Component(log, "browser").WithField("project", cfg.Project),
	}
	l.log.WithFields(logrus.Fields{
		"device":   deviceName,
		"browser":  device.DefaultBrowserType,
		"version":  browser.Version(),
		"headless": cfg.Headless,
	}).Info("browser launched")
	return l, nil
}

func typeFor(pw *playwright.Playwright, name string) (playwright.BrowserType, error) {
	switch name {
	case "chromium", "":
		return pw.Chromium, nil
	case "firefox":
		return pw.Firefox, nil
	case "webkit":
		return pw.WebKit, nil
	}
	return nil, fmt.Errorf("browser: unsupported browser type %q", name)
}

// Project is the project the launcher was started for.
func (l *Launcher) Project() string { return l.project }

// Mobile reports whether the device emulates a phone.
func (l *Launcher) Mobile() bool { return l.Device != nil && l.Device.IsMobile }

// Close stops the browser and the driver.
func (l *Launcher) Close() error {
	var firstErr error
	if l.Browser != nil {
		if err := l.Browser.Close(); err != nil {
			firstErr = fmt.Errorf("close browser: %w", err)
		}
	}
	if l.Playwright != nil {
		if err := l.Playwright.Stop(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("stop playwright: %w", err)
		}
	}
	return firstErr
}
