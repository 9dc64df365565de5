package runner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/todoqa/todo-e2e/internal/logging"
)

const pkg = "github.com/todoqa/todo-e2e/tests/e2e"

func event(action, test string) string {
	if test == "" {
		return fmt.Sprintf(`{"Action":%q,"Package":%q}`, action, pkg)
	}
	return fmt.Sprintf(`{"Action":%q,"Package":%q,"Test":%q}`, action, pkg, test)
}

func stream(lines ...string) []byte {
	return []byte(strings.Join(lines, "\n") + "\n")
}

func TestParseEvents(t *testing.T) {
	input := stream(
		"# github.com/todoqa/todo-e2e/tests/e2e",
		event("run", "TestSmoke"),
		`{"Action":"output","Package":"p","Test":"TestSmoke","Output":"=== RUN   TestSmoke\n"}`,
		"",
		event("pass", "TestSmoke"),
	)

	events, stray, err := ParseEvents(bytes.NewReader(input))
	require.NoError(t, err)
	assert.Len(t, events, 3)
	assert.Equal(t, []string{"# github.com/todoqa/todo-e2e/tests/e2e"}, stray)
	assert.Equal(t, "=== RUN   TestSmoke\n", events[1].Output)
}

func TestSummarize(t *testing.T) {
	events, _, err := ParseEvents(bytes.NewReader(stream(
		event("run", "TestA"),
		event("run", "TestA/sub"),
		event("fail", "TestA/sub"),
		event("fail", "TestA"),
		event("run", "TestB"),
		event("pass", "TestB"),
		event("run", "TestC"),
		event("skip", "TestC"),
		`{"Action":"output","Package":"`+pkg+`","Test":"TestA/sub","Output":"boom\n"}`,
		event("fail", ""),
	)))
	require.NoError(t, err)

	s := Summarize(events)
	assert.Equal(t, []string{"TestA"}, s.Failed[pkg], "subtests are folded into their parent")
	assert.Equal(t, []string{"TestB"}, s.Passed[pkg])
	assert.Equal(t, []string{"TestC"}, s.Skipped[pkg])
	assert.Empty(t, s.BrokenPackages)
	assert.Equal(t, []string{"boom\n"}, s.Output[pkg+".TestA"])
	assert.Equal(t, 1, s.FailedCount())
	assert.Equal(t, 1, s.PassedCount())
}

func TestSummarizeBrokenPackage(t *testing.T) {
	events, _, err := ParseEvents(bytes.NewReader(stream(
		`{"Action":"output","Package":"`+pkg+`","Output":"panic: TestMain\n"}`,
		event("fail", ""),
	)))
	require.NoError(t, err)

	s := Summarize(events)
	assert.Equal(t, []string{pkg}, s.BrokenPackages)
	assert.Equal(t, 1, s.FailedCount())
}

func TestRunPattern(t *testing.T) {
	assert.Equal(t, "^(TestA|TestB)$", RunPattern([]string{"TestA", "TestB"}))
	assert.Equal(t, `^(Test\.x)$`, RunPattern([]string{"Test.x"}))
}

func TestArgs(t *testing.T) {
	r := New(Options{Tags: []string{"e2e"}, Workers: 4, Timeout: 10 * time.Minute})
	assert.Equal(t,
		[]string{"test", "-json", "-count=1", "-tags", "e2e", "-parallel", "4", "-timeout", "10m0s", "-run", "^(TestA)$", "./x"},
		r.Args([]string{"./x"}, "^(TestA)$"))

	bare := New(Options{})
	assert.Equal(t, []string{"test", "-json", "-count=1", "./tests/e2e/..."}, bare.Args(bare.opts.Packages, ""))
}

type call struct {
	env  []string
	args []string
}

// scripted answers invocations in order and records them.
func scripted(t *testing.T, outputs ...[]byte) (execFunc, *[]call) {
	var calls []call
	return func(_ context.Context, _ string, env []string, _ string, args ...string) ([]byte, error) {
		require.Less(t, len(calls), len(outputs), "unexpected invocation %v", args)
		out := outputs[len(calls)]
		calls = append(calls, call{env: env, args: args})
		if bytes.Contains(out, []byte(`"Action":"fail"`)) {
			return out, &exec.ExitError{}
		}
		return out, nil
	}, &calls
}

func TestRunRetriesFailingTests(t *testing.T) {
	r := New(Options{Retries: 2, Logger: logging.Discard()})
	fn, calls := scripted(t,
		stream(event("pass", "TestA"), event("fail", "TestB"), event("fail", "TestC"), event("fail", "")),
		stream(event("pass", "TestB"), event("fail", "TestC"), event("fail", "")),
		stream(event("pass", "TestC"), event("pass", "")),
	)
	r.exec = fn

	res, err := r.Run(context.Background())
	require.NoError(t, err)
	assert.True(t, res.OK())
	require.Len(t, *calls, 3)

	first, second, third := (*calls)[0], (*calls)[1], (*calls)[2]
	assert.Contains(t, first.env, "E2E_RETRY=0")
	assert.Contains(t, first.env, "PROJECT=chromium")
	assert.NotContains(t, first.args, "-run")
	assert.Contains(t, second.env, "E2E_RETRY=1")
	assert.Contains(t, second.args, "^(TestB|TestC)$")
	assert.Equal(t, pkg, second.args[len(second.args)-1])
	assert.Contains(t, third.args, "^(TestC)$")

	assert.Equal(t, []string{pkg + ".TestB", pkg + ".TestC"}, res.Flaky["chromium"])
	assert.Len(t, res.Attempts, 3)
}

func TestRunReportsRemainingFailuresPerProject(t *testing.T) {
	r := New(Options{Projects: []string{"chromium", "webkit"}, Retries: 1, Logger: logging.Discard()})
	fn, calls := scripted(t,
		stream(event("pass", "TestA"), event("pass", "")),
		stream(event("fail", "TestA"), event("fail", "")),
		stream(event("fail", "TestA"), event("fail", "")),
	)
	r.exec = fn

	res, err := r.Run(context.Background())
	require.NoError(t, err)
	assert.False(t, res.OK())
	assert.Empty(t, res.Failures["chromium"])
	assert.Equal(t, []string{pkg + ".TestA"}, res.Failures["webkit"])
	assert.Contains(t, (*calls)[1].env, "PROJECT=webkit")
	assert.Len(t, *calls, 3)
}

func TestRunBrokenPackageRetriesWholePackage(t *testing.T) {
	r := New(Options{Retries: 1, Run: "TestSmoke", Logger: logging.Discard()})
	fn, calls := scripted(t,
		stream(event("fail", "")),
		stream(event("pass", "TestSmoke"), event("pass", "")),
	)
	r.exec = fn

	res, err := r.Run(context.Background())
	require.NoError(t, err)
	assert.True(t, res.OK())
	assert.Contains(t, (*calls)[0].args, "TestSmoke")
	assert.NotContains(t, (*calls)[1].args, "-run")
}

func TestRunCommandFailure(t *testing.T) {
	r := New(Options{Logger: logging.Discard()})
	r.exec = func(context.Context, string, []string, string, ...string) ([]byte, error) {
		return []byte("go: cannot find main module\n"), errors.New("exit status 1")
	}

	_, err := r.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cannot find main module")
}

func TestRunStreamsOutput(t *testing.T) {
	var buf bytes.Buffer
	r := New(Options{Stream: &buf, Logger: logging.Discard()})
	out := stream(event("pass", "TestA"), event("pass", ""))
	r.exec = func(context.Context, string, []string, string, ...string) ([]byte, error) { return out, nil }

	_, err := r.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, string(out), buf.String())
}
