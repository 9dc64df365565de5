package config

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clearEnv blanks every bound variable for the duration of the test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, env := range bindings {
		t.Setenv(env, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load(Options{})
	require.NoError(t, err)

	assert.Equal(t, DefaultBaseURL, cfg.BaseURL)
	assert.Equal(t, DefaultAPIURL, cfg.APIURL)
	assert.Equal(t, "chromium", cfg.Project)
	assert.Equal(t, []string{"chromium"}, cfg.Projects)
	assert.True(t, cfg.Headless)
	assert.False(t, cfg.LocalFixture)
	assert.Equal(t, 0, cfg.Retries)
	assert.Equal(t, runtime.NumCPU(), cfg.Workers)
	assert.Equal(t, 30*time.Second, cfg.Timeouts.Test)
	assert.Equal(t, 5*time.Second, cfg.Timeouts.Expect)
	assert.Equal(t, 10*time.Second, cfg.Timeouts.Action)
	assert.Equal(t, 15*time.Second, cfg.Timeouts.Navigation)
	assert.Equal(t, ModeOnlyOnFailure, cfg.Artifacts.Screenshot)
	assert.Equal(t, ModeOnFirstRetry, cfg.Artifacts.Video)
	assert.Equal(t, ModeOnFirstRetry, cfg.Artifacts.Trace)
	assert.Equal(t, "tests/snapshots", cfg.Artifacts.SnapshotDir)
	assert.Equal(t, "allure-results", cfg.Artifacts.AllureDir)
	assert.Equal(t, DefaultAxeScript, cfg.AxeScript)
}

func TestLoadCIDefaults(t *testing.T) {
	t.Run("CI raises retries and pins workers", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("CI", "true")

		cfg, err := Load(Options{})
		require.NoError(t, err)
		assert.True(t, cfg.CI)
		assert.Equal(t, 2, cfg.Retries)
		assert.Equal(t, 2, cfg.Workers)
	})

	t.Run("explicit values beat CI defaults", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("CI", "true")
		t.Setenv("RETRIES", "1")
		t.Setenv("WORKERS", "6")

		cfg, err := Load(Options{})
		require.NoError(t, err)
		assert.Equal(t, 1, cfg.Retries)
		assert.Equal(t, 6, cfg.Workers)
	})
}

func TestLoadEnvironmentOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("BASE_URL", "http://localhost:4200/")
	t.Setenv("API_URL", "http://localhost:4200/api")
	t.Setenv("PROJECTS", "chromium,webkit,mobile-safari")
	t.Setenv("HEADLESS", "false")
	t.Setenv("EXPECT_TIMEOUT", "7s")
	t.Setenv("E2E_RETRY", "1")
	t.Setenv("VIDEO", "retain-on-failure")

	cfg, err := Load(Options{})
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:4200/", cfg.BaseURL)
	assert.Equal(t, []string{"chromium", "webkit", "mobile-safari"}, cfg.Projects)
	assert.False(t, cfg.Headless)
	assert.Equal(t, 7*time.Second, cfg.Timeouts.Expect)
	assert.Equal(t, 1, cfg.Attempt)
	assert.Equal(t, ModeRetainOnFailure, cfg.Artifacts.Video)
	assert.Equal(t, "localhost:4200/api/todos", cfg.APIMatch())
	assert.Equal(t, "http://localhost:4200/api/todos", cfg.TodosEndpoint())
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, ".env")
	content := "# local overrides\nBASE_URL=http://from-dotenv:4200/\nSLOW_MO=250\n"
	require.NoError(t, os.WriteFile(envFile, []byte(content), 0o600))

	t.Run("fills unset variables", func(t *testing.T) {
		clearEnv(t)

		cfg, err := Load(Options{EnvFile: envFile})
		require.NoError(t, err)
		assert.Equal(t, "http://from-dotenv:4200/", cfg.BaseURL)
		assert.Equal(t, 250, cfg.SlowMo)
	})

	t.Run("existing environment wins", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("BASE_URL", "http://from-env:8080/")

		cfg, err := Load(Options{EnvFile: envFile})
		require.NoError(t, err)
		assert.Equal(t, "http://from-env:8080/", cfg.BaseURL)
	})

	t.Run("missing file is ignored", func(t *testing.T) {
		clearEnv(t)

		cfg, err := Load(Options{EnvFile: filepath.Join(dir, "absent.env")})
		require.NoError(t, err)
		assert.Equal(t, DefaultBaseURL, cfg.BaseURL)
	})
}

func TestLoadConfigFile(t *testing.T) {
	clearEnv(t)
	file := filepath.Join(t.TempDir(), "e2e.yaml")
	content := `
base_url: http://yaml-host:3000/
timeouts:
  expect: 9s
artifacts:
  video: "on"
  snapshot_dir: custom/snapshots
`
	require.NoError(t, os.WriteFile(file, []byte(content), 0o600))

	cfg, err := Load(Options{ConfigFile: file})
	require.NoError(t, err)
	assert.Equal(t, "http://yaml-host:3000/", cfg.BaseURL)
	assert.Equal(t, 9*time.Second, cfg.Timeouts.Expect)
	assert.Equal(t, ModeOn, cfg.Artifacts.Video)
	assert.Equal(t, "custom/snapshots", cfg.Artifacts.SnapshotDir)

	t.Setenv("BASE_URL", "http://env-host:3000/")
	cfg, err = Load(Options{ConfigFile: file})
	require.NoError(t, err)
	assert.Equal(t, "http://env-host:3000/", cfg.BaseURL, "environment beats the config file")
}

func TestValidate(t *testing.T) {
	testCases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"relative base url", func(c *Config) { c.BaseURL = "/todos" }},
		{"garbage api url", func(c *Config) { c.APIURL = "::not a url" }},
		{"unknown video mode", func(c *Config) { c.Artifacts.Video = "sometimes" }},
		{"empty project", func(c *Config) { c.Project = "" }},
	}

	require.NoError(t, Default().Validate())
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestAPIHelpers(t *testing.T) {
	cfg := Default()
	assert.Equal(t, "jsonplaceholder.typicode.com", cfg.APIBase())
	assert.Equal(t, "jsonplaceholder.typicode.com/todos", cfg.APIMatch())
	assert.Equal(t, "**/jsonplaceholder.typicode.com/todos**", cfg.APIRouteGlob("/todos**"))

	cfg.APIURL = "http://127.0.0.1:51234/api/"
	assert.Equal(t, "127.0.0.1:51234/api", cfg.APIBase())
	assert.Equal(t, "**/127.0.0.1:51234/api/**", cfg.APIRouteGlob("/**"))
}

func TestArtifactMode(t *testing.T) {
	testCases := []struct {
		mode          ArtifactMode
		recordFirst   bool
		recordRetry   bool
		keepPassed    bool
		keepFailed    bool
		captureFailed bool
	}{
		{ModeOff, false, false, false, false, false},
		{ModeOn, true, true, true, true, true},
		{ModeOnlyOnFailure, false, false, false, true, true},
		{ModeRetainOnFailure, true, true, false, true, true},
	}

	for _, tc := range testCases {
		t.Run(string(tc.mode), func(t *testing.T) {
			assert.True(t, tc.mode.Valid())
			assert.Equal(t, tc.recordFirst, tc.mode.Record(0))
			assert.Equal(t, tc.recordRetry, tc.mode.Record(1))
			assert.Equal(t, tc.keepPassed, tc.mode.Keep(false, 0))
			assert.Equal(t, tc.keepFailed, tc.mode.Keep(true, 0))
			assert.Equal(t, tc.captureFailed, tc.mode.Capture(true, 0))
		})
	}

	t.Run(string(ModeOnFirstRetry), func(t *testing.T) {
		assert.False(t, ModeOnFirstRetry.Record(0))
		assert.True(t, ModeOnFirstRetry.Record(1))
		assert.False(t, ModeOnFirstRetry.Record(2))
		assert.True(t, ModeOnFirstRetry.Keep(false, 1))
		assert.False(t, ModeOnFirstRetry.Capture(true, 0))
	})

	assert.False(t, ArtifactMode("sometimes").Valid())
}
