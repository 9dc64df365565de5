package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

const (
	DefaultBaseURL   = "https://eliasfeijo.github.io/angular-todo-app/"
	DefaultAPIURL    = "https://jsonplaceholder.typicode.com"
	DefaultAxeScript = "https://cdnjs.cloudflare.com/ajax/libs/axe-core/4.10.2/axe.min.js"
)

var (
	cached   *Config
	loadOnce sync.Once
)

// Config holds everything a test run can be tuned with.
type Config struct {
	BaseURL      string          `mapstructure:"base_url"`
	APIURL       string          `mapstructure:"api_url"`
	LocalFixture bool            `mapstructure:"local_fixture"`
	Project      string          `mapstructure:"project"`
	Projects     []string        `mapstructure:"projects"`
	Headless     bool            `mapstructure:"headless"`
	SlowMo       int             `mapstructure:"slow_mo"`
	CI           bool            `mapstructure:"ci"`
	Workers      int             `mapstructure:"workers"`
	Retries      int             `mapstructure:"retries"`
	Attempt      int             `mapstructure:"attempt"`
	AxeScript    string          `mapstructure:"axe_script"`
	Timeouts     TimeoutsConfig  `mapstructure:"timeouts"`
	Artifacts    ArtifactsConfig `mapstructure:"artifacts"`
	Log          LogConfig       `mapstructure:"log"`
}

type TimeoutsConfig struct {
	Test       time.Duration `mapstructure:"test"`
	Expect     time.Duration `mapstructure:"expect"`
	Action     time.Duration `mapstructure:"action"`
	Navigation time.Duration `mapstructure:"navigation"`
}

type ArtifactsConfig struct {
	OutputDir       string       `mapstructure:"output_dir"`
	Screenshot      ArtifactMode `mapstructure:"screenshot"`
	Video           ArtifactMode `mapstructure:"video"`
	Trace           ArtifactMode `mapstructure:"trace"`
	SnapshotDir     string       `mapstructure:"snapshot_dir"`
	AllureDir       string       `mapstructure:"allure_dir"`
	UpdateSnapshots bool         `mapstructure:"update_snapshots"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Options controls where Load looks for configuration besides the environment.
type Options struct {
	// EnvFile is a KEY=VALUE file merged into the process environment
	// without overriding variables that are already set.
	EnvFile string
	// ConfigFile is an optional YAML file using the mapstructure keys.
	ConfigFile string
}

// bindings maps config keys to the environment variables that override them.
var bindings = map[string]string{
	"base_url":                   "BASE_URL",
	"api_url":                    "API_URL",
	"local_fixture":              "E2E_LOCAL_FIXTURE",
	"project":                    "PROJECT",
	"projects":                   "PROJECTS",
	"headless":                   "HEADLESS",
	"slow_mo":                    "SLOW_MO",
	"ci":                         "CI",
	"workers":                    "WORKERS",
	"retries":                    "RETRIES",
	"attempt":                    "E2E_RETRY",
	"axe_script":                 "AXE_SCRIPT",
	"timeouts.test":              "TEST_TIMEOUT",
	"timeouts.expect":            "EXPECT_TIMEOUT",
	"timeouts.action":            "ACTION_TIMEOUT",
	"timeouts.navigation":        "NAVIGATION_TIMEOUT",
	"artifacts.output_dir":       "OUTPUT_DIR",
	"artifacts.screenshot":       "SCREENSHOT",
	"artifacts.video":            "VIDEO",
	"artifacts.trace":            "TRACE",
	"artifacts.snapshot_dir":     "SNAPSHOT_DIR",
	"artifacts.allure_dir":       "ALLURE_DIR",
	"artifacts.update_snapshots": "UPDATE_SNAPSHOTS",
	"log.level":                  "LOG_LEVEL",
	"log.format":                 "LOG_FORMAT",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("base_url", DefaultBaseURL)
	v.SetDefault("api_url", DefaultAPIURL)
	v.SetDefault("local_fixture", false)
	v.SetDefault("project", "chromium")
	v.SetDefault("projects", []string{"chromium"})
	v.SetDefault("headless", true)
	v.SetDefault("slow_mo", 0)
	v.SetDefault("ci", false)
	v.SetDefault("attempt", 0)
	v.SetDefault("axe_script", DefaultAxeScript)
	v.SetDefault("timeouts.test", 30*time.Second)
	v.SetDefault("timeouts.expect", 5*time.Second)
	v.SetDefault("timeouts.action", 10*time.Second)
	v.SetDefault("timeouts.navigation", 15*time.Second)
	v.SetDefault("artifacts.output_dir", "test-results")
	v.SetDefault("artifacts.screenshot", string(ModeOnlyOnFailure))
	v.SetDefault("artifacts.video", string(ModeOnFirstRetry))
	v.SetDefault("artifacts.trace", string(ModeOnFirstRetry))
	v.SetDefault("artifacts.snapshot_dir", "tests/snapshots")
	v.SetDefault("artifacts.allure_dir", "allure-results")
	v.SetDefault("artifacts.update_snapshots", false)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

// Load builds a Config from defaults, an optional YAML file and the
// environment, in increasing order of precedence.
func Load(opts Options) (*Config, error) {
	if opts.EnvFile != "" {
		if err := loadDotEnv(opts.EnvFile); err != nil {
			return nil, err
		}
	}

	v := viper.New()
	setDefaults(v)

	if opts.ConfigFile != "" {
		v.SetConfigFile(opts.ConfigFile)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", opts.ConfigFile, err)
		}
	}

	for key, env := range bindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("failed to bind %s: %w", env, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// CI changes the parallelism and retry defaults, explicit values win.
	if !v.IsSet("workers") || cfg.Workers <= 0 {
		cfg.Workers = runtime.NumCPU()
		if cfg.CI {
			cfg.Workers = 2
		}
	}
	if !v.IsSet("retries") {
		cfg.Retries = 0
		if cfg.CI {
			cfg.Retries = 2
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadDotEnv merges KEY=VALUE lines into the process environment.
// Existing environment variables take precedence and are not overwritten.
func loadDotEnv(path string) error {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	dv := viper.New()
	dv.SetConfigFile(path)
	dv.SetConfigType("env")
	if err := dv.ReadInConfig(); err != nil {
		return fmt.Errorf("failed to read env file %s: %w", path, err)
	}
	for _, key := range dv.AllKeys() {
		name := strings.ToUpper(key)
		if os.Getenv(name) != "" {
			continue
		}
		val := dv.GetString(key)
		if val == "" {
			continue
		}
		if err := os.Setenv(name, val); err != nil {
			return fmt.Errorf("failed to export %s: %w", name, err)
		}
	}
	return nil
}

// Get returns the process-wide configuration, loaded once from .env,
// E2E_CONFIG and the environment. A broken configuration falls back to
// defaults so that tests can still report a useful failure.
func Get() *Config {
	loadOnce.Do(func() {
		cfg, err := Load(Options{EnvFile: ".env", ConfigFile: os.Getenv("E2E_CONFIG")})
		if err != nil {
			logrus.WithError(err).Warn("e2e-config: falling back to defaults")
			cfg = Default()
		}
		logrus.WithFields(logrus.Fields{
			"base_url": cfg.BaseURL,
			"api_url":  cfg.APIURL,
			"project":  cfg.Project,
			"attempt":  cfg.Attempt,
		}).Debug("e2e-config: resolved")
		cached = cfg
	})
	return cached
}

// Default returns the configuration used when nothing is overridden.
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	cfg := &Config{}
	_ = v.Unmarshal(cfg)
	cfg.Workers = runtime.NumCPU()
	return cfg
}

// Validate checks URLs and artifact modes.
func (c *Config) Validate() error {
	for name, raw := range map[string]string{"base_url": c.BaseURL, "api_url": c.APIURL} {
		u, err := url.Parse(raw)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("config: %s %q is not an absolute URL", name, raw)
		}
	}
	for name, mode := range map[string]ArtifactMode{
		"artifacts.screenshot": c.Artifacts.Screenshot,
		"artifacts.video":      c.Artifacts.Video,
		"artifacts.trace":      c.Artifacts.Trace,
	} {
		if !mode.Valid() {
			return fmt.Errorf("config: %s has unknown mode %q", name, mode)
		}
	}
	if c.Project == "" {
		return errors.New("config: project must not be empty")
	}
	return nil
}

// APIBase returns host and path of the API without scheme or trailing slash,
// e.g. "jsonplaceholder.typicode.com".
func (c *Config) APIBase() string {
	u, err := url.Parse(c.APIURL)
	if err != nil || u.Host == "" {
		return strings.TrimRight(c.APIURL, "/")
	}
	return u.Host + strings.TrimRight(u.Path, "/")
}

// APIMatch is the URL substring identifying the todos collection endpoint.
func (c *Config) APIMatch() string {
	return c.APIBase() + "/todos"
}

// APIRouteGlob builds a route glob under the API base, suffix is appended
// verbatim (e.g. "/todos**").
func (c *Config) APIRouteGlob(suffix string) string {
	return "**/" + c.APIBase() + suffix
}

// TodosEndpoint is the absolute URL of the todos collection.
func (c *Config) TodosEndpoint() string {
	return strings.TrimRight(c.APIURL, "/") + "/todos"
}
