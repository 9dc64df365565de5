// Package report writes Allure-compatible result files for the browser
// suites and summarizes a results directory into a spreadsheet.
package report

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusPassed  Status = "passed"
	StatusFailed  Status = "failed"
	StatusBroken  Status = "broken"
	StatusSkipped Status = "skipped"
)

// StatusFor maps the outcome of a testing.T onto an Allure status.
func StatusFor(failed, skipped bool) Status {
	switch {
	case failed:
		return StatusFailed
	case skipped:
		return StatusSkipped
	}
	return StatusPassed
}

type Label struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type Parameter struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type Attachment struct {
	Name   string `json:"name"`
	Source string `json:"source"`
	Type   string `json:"type"`
}

type StatusDetails struct {
	Message string `json:"message,omitempty"`
	Trace   string `json:"trace,omitempty"`
}

type Step struct {
	Name          string         `json:"name"`
	Status        Status         `json:"status"`
	StatusDetails *StatusDetails `json:"statusDetails,omitempty"`
	Stage         string         `json:"stage"`
	Start         int64          `json:"start"`
	Stop          int64          `json:"stop"`
	Steps         []*Step        `json:"steps,omitempty"`
	Attachments   []Attachment   `json:"attachments,omitempty"`
}

// Result is one <uuid>-result.json document.
type Result struct {
	UUID          string         `json:"uuid"`
	HistoryID     string         `json:"historyId"`
	Name          string         `json:"name"`
	FullName      string         `json:"fullName"`
	Status        Status         `json:"status"`
	StatusDetails *StatusDetails `json:"statusDetails,omitempty"`
	Stage         string         `json:"stage"`
	Start         int64          `json:"start"`
	Stop          int64          `json:"stop"`
	Labels        []Label        `json:"labels"`
	Parameters    []Parameter    `json:"parameters,omitempty"`
	Steps         []*Step        `json:"steps,omitempty"`
	Attachments   []Attachment   `json:"attachments,omitempty"`
}

// Duration is the wall time between start and stop.
func (r Result) Duration() time.Duration {
	return time.Duration(r.Stop-r.Start) * time.Millisecond
}

// Label returns the value of the first label called name.
func (r Result) Label(name string) string {
	for _, l := range r.Labels {
		if l.Name == name {
			return l.Value
		}
	}
	return ""
}

var extensions = map[string]string{
	"application/json": "json",
	"text/plain":       "txt",
	"text/html":        "html",
	"text/yaml":        "yaml",
	"image/png":        "png",
	"video/webm":       "webm",
	"application/zip":  "zip",
}

var ErrFinished = errors.New("report: result already finished")

// Recorder collects one test's steps and attachments. It is safe for use
// from the goroutines of a single test.
type Recorder struct {
	mu       sync.Mutex
	dir      string
	result   Result
	open     []*Step
	finished bool
	now      func() time.Time
}

// NewRecorder starts a result for test name in suite. Files land in dir,
// which is created on Finish.
func NewRecorder(dir, suite, name string, labels ...Label) *Recorder {
	fullName := suite + ": " + name
	r := &Recorder{dir: dir, now: time.Now}
	r.result = Result{
		UUID:      uuid.NewString(),
		HistoryID: uuid.NewSHA1(uuid.NameSpaceURL, []byte(fullName)).String(),
		Name:      name,
		FullName:  fullName,
		Stage:     "running",
		Start:     millis(r.now()),
		Labels: append([]Label{
			{Name: "suite", Value: suite},
			{Name: "framework", Value: "playwright-go"},
			{Name: "language", Value: "go"},
		}, labels...),
	}
	return r
}

func millis(t time.Time) int64 { return t.UnixMilli() }

// UUID identifies the result file.
func (r *Recorder) UUID() string { return r.result.UUID }

// Label adds a label such as "parentSuite" or "severity".
func (r *Recorder) Label(name, value string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.result.Labels = append(r.result.Labels, Label{Name: name, Value: value})
}

func (r *Recorder) Parameter(name, value string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.result.Parameters = append(r.result.Parameters, Parameter{Name: name, Value: value})
}

// Annotate records a free-form annotation, e.g. ("issue", "edit not supported").
func (r *Recorder) Annotate(kind, description string) {
	r.Label(kind, description)
}

// Step runs fn as a named step. Steps nest when fn calls Step again. A step
// left through runtime.Goexit, as t.FailNow does, is recorded as failed.
func (r *Recorder) Step(name string, fn func() error) (err error) {
	r.mu.Lock()
	s := &Step{Name: name, Stage: "running", Start: millis(r.now())}
	if n := len(r.open); n > 0 {
		parent := r.open[n-1]
		parent.Steps = append(parent.Steps, s)
	} else {
		r.result.Steps = append(r.result.Steps, s)
	}
	r.open = append(r.open, s)
	r.mu.Unlock()

	returned := false
	defer func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		s.Stop = millis(r.now())
		s.Stage = "finished"
		s.Status = StatusPassed
		switch {
		case err != nil:
			s.Status = StatusFailed
			s.StatusDetails = &StatusDetails{Message: err.Error()}
		case !returned:
			s.Status = StatusFailed
			s.StatusDetails = &StatusDetails{Message: "step aborted"}
		}
		r.open = r.open[:len(r.open)-1]
	}()

	err = fn()
	returned = true
	return err
}

// Attach stores data next to the result and links it from the innermost
// open step, or from the result itself.
func (r *Recorder) Attach(name, mimeType string, data []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.finished {
		return ErrFinished
	}
	if err := os.MkdirAll(r.dir, 0o755); err != nil {
		return fmt.Errorf("report: create %s: %w", r.dir, err)
	}

	ext, ok := extensions[mimeType]
	if !ok {
		ext = "bin"
	}
	source := fmt.Sprintf("%s-attachment.%s", uuid.NewString(), ext)
	if err := os.WriteFile(filepath.Join(r.dir, source), data, 0o644); err != nil {
		return fmt.Errorf("report: write attachment %s: %w", name, err)
	}

	a := Attachment{Name: name, Source: source, Type: mimeType}
	if n := len(r.open); n > 0 {
		r.open[n-1].Attachments = append(r.open[n-1].Attachments, a)
	} else {
		r.result.Attachments = append(r.result.Attachments, a)
	}
	return nil
}

// AttachJSON attaches v encoded as indented JSON.
func (r *Recorder) AttachJSON(name string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("report: encode %s: %w", name, err)
	}
	return r.Attach(name, "application/json", data)
}

// AttachFile copies an existing file, such as a failure screenshot.
func (r *Recorder) AttachFile(name, mimeType, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("report: read %s: %w", path, err)
	}
	return r.Attach(name, mimeType, data)
}

// Finish closes the result and writes <uuid>-result.json. It returns the
// path written.
func (r *Recorder) Finish(status Status, message string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.finished {
		return "", ErrFinished
	}
	r.finished = true

	r.result.Stop = millis(r.now())
	r.result.Stage = "finished"
	r.result.Status = status
	if message != "" {
		r.result.StatusDetails = &StatusDetails{Message: message}
	}

	if err := os.MkdirAll(r.dir, 0o755); err != nil {
		return "", fmt.Errorf("report: create %s: %w", r.dir, err)
	}
	data, err := json.MarshalIndent(r.result, "", "  ")
	if err != nil {
		return "", fmt.Errorf("report: encode result: %w", err)
	}
	path := filepath.Join(r.dir, r.result.UUID+"-result.json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("report: write result: %w", err)
	}
	return path, nil
}

// LoadResults reads every *-result.json in dir, ordered by start time.
func LoadResults(dir string) ([]Result, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*-result.json"))
	if err != nil {
		return nil, err
	}
	results := make([]Result, 0, len(paths))
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("report: read %s: %w", p, err)
		}
		var res Result
		if err := json.Unmarshal(data, &res); err != nil {
			return nil, fmt.Errorf("report: decode %s: %w", filepath.Base(p), err)
		}
		results = append(results, res)
	}
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Start != results[j].Start {
			return results[i].Start < results[j].Start
		}
		return strings.Compare(results[i].FullName, results[j].FullName) < 0
	})
	return results, nil
}

// Summary counts results per status.
type Summary struct {
	Total    int
	Passed   int
	Failed   int
	Broken   int
	Skipped  int
	Duration time.Duration
}

func Summarize(results []Result) Summary {
	var s Summary
	for _, r := range results {
		s.Total++
		s.Duration += r.Duration()
		switch r.Status {
		case StatusPassed:
			s.Passed++
		case StatusFailed:
			s.Failed++
		case StatusBroken:
			s.Broken++
		case StatusSkipped:
			s.Skipped++
		}
	}
	return s
}
