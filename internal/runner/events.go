package runner

import (
	"bufio"
	"bytes"
	"encoding/json"
	"io"
	"regexp"
	"sort"
	"strings"
	"time"
)

// TestEvent is one line of `go test -json` output.
type TestEvent struct {
	Time    time.Time `json:"Time"`
	Action  string    `json:"Action"`
	Package string    `json:"Package"`
	Test    string    `json:"Test,omitempty"`
	Elapsed float64   `json:"Elapsed,omitempty"`
	Output  string    `json:"Output,omitempty"`
}

// TopLevel reports whether the event belongs to a top-level test rather
// than a subtest or the package itself.
func (e TestEvent) TopLevel() bool {
	return e.Test != "" && !strings.Contains(e.Test, "/")
}

// ParseEvents decodes a test2json stream. Lines that are not JSON, such as
// compiler errors printed before the stream starts, are returned separately.
func ParseEvents(r io.Reader) ([]TestEvent, []string, error) {
	var (
		events []TestEvent
		stray  []string
	)
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for sc.Scan() {
		line := bytes.TrimSpace(sc.Bytes())
		if len(line) == 0 {
			continue
		}
		var ev TestEvent
		if line[0] != '{' || json.Unmarshal(line, &ev) != nil {
			stray = append(stray, string(line))
			continue
		}
		events = append(events, ev)
	}
	return events, stray, sc.Err()
}

// Summary is the outcome of one `go test` invocation.
type Summary struct {
	// Passed and Failed map a package to its top-level tests, sorted.
	Passed  map[string][]string
	Failed  map[string][]string
	Skipped map[string][]string
	// BrokenPackages failed without any failing test, typically a build
	// error or a panic in TestMain.
	BrokenPackages []string
	Output         map[string][]string
}

// Summarize folds events into per-test outcomes. The last terminal action
// of a test wins.
func Summarize(events []TestEvent) Summary {
	type key struct{ pkg, test string }
	final := map[key]string{}
	pkgFailed := map[string]bool{}
	output := map[string][]string{}

	for _, ev := range events {
		switch {
		case ev.Test == "":
			if ev.Action == "fail" {
				pkgFailed[ev.Package] = true
			}
		case ev.Action == "output":
			top, _, _ := strings.Cut(ev.Test, "/")
			id := ev.Package + "." + top
			output[id] = append(output[id], ev.Output)
		case ev.TopLevel() && isTerminal(ev.Action):
			final[key{ev.Package, ev.Test}] = ev.Action
		}
	}

	s := Summary{
		Passed:  map[string][]string{},
		Failed:  map[string][]string{},
		Skipped: map[string][]string{},
		Output:  output,
	}
	for k, action := range final {
		switch action {
		case "pass":
			s.Passed[k.pkg] = append(s.Passed[k.pkg], k.test)
		case "fail":
			s.Failed[k.pkg] = append(s.Failed[k.pkg], k.test)
		case "skip":
			s.Skipped[k.pkg] = append(s.Skipped[k.pkg], k.test)
		}
	}
	for _, m := range []map[string][]string{s.Passed, s.Failed, s.Skipped} {
		for pkg := range m {
			sort.Strings(m[pkg])
		}
	}
	for pkg := range pkgFailed {
		if len(s.Failed[pkg]) == 0 {
			s.BrokenPackages = append(s.BrokenPackages, pkg)
		}
	}
	sort.Strings(s.BrokenPackages)
	return s
}

func isTerminal(action string) bool {
	return action == "pass" || action == "fail" || action == "skip"
}

// FailedCount is the number of failing tests plus broken packages.
func (s Summary) FailedCount() int {
	n := len(s.BrokenPackages)
	for _, tests := range s.Failed {
		n += len(tests)
	}
	return n
}

func (s Summary) PassedCount() int {
	n := 0
	for _, tests := range s.Passed {
		n += len(tests)
	}
	return n
}

// RunPattern builds a -run expression matching exactly the given top-level
// tests.
func RunPattern(tests []string) string {
	quoted := make([]string, len(tests))
	for i, t := range tests {
		quoted[i] = regexp.QuoteMeta(t)
	}
	return "^(" + strings.Join(quoted, "|") + ")$"
}
