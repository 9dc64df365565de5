// Package contracts checks the todo API against a table of request/response
// contracts and produces a pass/fail report.
package contracts

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/todoqa/todo-e2e/internal/todoapi"
)

// Contract is one request and the answer it must get.
type Contract struct {
	Endpoint    string
	Method      string
	Description string
	Body        any
	ExpectCode  int
	// Check inspects the body after the status matched.
	Check func(resp *todoapi.Response) error
}

// ContractResult represents the result of a contract test
type ContractResult struct {
	Endpoint    string        `json:"endpoint"`
	Method      string        `json:"method"`
	Description string        `json:"description"`
	Passed      bool          `json:"passed"`
	Status      int           `json:"status,omitempty"`
	Duration    time.Duration `json:"duration_ns"`
	Error       string        `json:"error,omitempty"`
}

// ContractReport represents the overall test report
type ContractReport struct {
	Timestamp   time.Time        `json:"timestamp"`
	BaseURL     string           `json:"base_url"`
	TotalTests  int              `json:"total_tests"`
	Passed      int              `json:"passed"`
	Failed      int              `json:"failed"`
	Results     []ContractResult `json:"results"`
	SuccessRate float64          `json:"success_rate"`
}

// Run executes contracts in order against client.
func Run(ctx context.Context, client *todoapi.Client, contracts []Contract) ContractReport {
	results := make([]ContractResult, 0, len(contracts))
	for _, c := range contracts {
		results = append(results, runOne(ctx, client, c))
	}
	report := generateReport(results)
	report.BaseURL = client.BaseURL()
	return report
}

func runOne(ctx context.Context, client *todoapi.Client, c Contract) ContractResult {
	result := ContractResult{
		Endpoint:    c.Endpoint,
		Method:      c.Method,
		Description: c.Description,
	}

	resp, err := client.Do(ctx, c.Method, c.Endpoint, c.Body)
	if err != nil {
		result.Error = err.Error()
		return result
	}
	result.Status = resp.Status
	result.Duration = resp.Duration

	if resp.Status != c.ExpectCode {
		result.Error = fmt.Sprintf("Expected status %d, got %d", c.ExpectCode, resp.Status)
		return result
	}
	if c.Check != nil {
		if err := c.Check(resp); err != nil {
			result.Error = err.Error()
			return result
		}
	}
	result.Passed = true
	return result
}

func generateReport(results []ContractResult) ContractReport {
	report := ContractReport{
		Timestamp:  time.Now(),
		TotalTests: len(results),
		Results:    results,
	}

	for _, result := range results {
		if result.Passed {
			report.Passed++
		} else {
			report.Failed++
		}
	}

	if report.TotalTests > 0 {
		report.SuccessRate = float64(report.Passed) / float64(report.TotalTests) * 100
	}

	return report
}

// Print writes a human readable report.
func Print(w io.Writer, report ContractReport) {
	fmt.Fprintln(w, "\n"+strings.Repeat("=", 60))
	fmt.Fprintln(w, "                 CONTRACT TEST REPORT")
	fmt.Fprintln(w, strings.Repeat("=", 60))
	fmt.Fprintf(w, "Timestamp: %s\n", report.Timestamp.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(w, "Base URL: %s\n", report.BaseURL)
	fmt.Fprintf(w, "Total Tests: %d\n", report.TotalTests)
	fmt.Fprintf(w, "Passed: %d\n", report.Passed)
	fmt.Fprintf(w, "Failed: %d\n", report.Failed)
	fmt.Fprintf(w, "Success Rate: %.1f%%\n", report.SuccessRate)
	fmt.Fprintln(w, strings.Repeat("-", 60))

	for _, result := range report.Results {
		status := "✅ PASS"
		if !result.Passed {
			status = "❌ FAIL"
		}

		fmt.Fprintf(w, "%s %s %s (%s)\n", status, result.Method, result.Endpoint, result.Duration.Round(time.Millisecond))
		fmt.Fprintf(w, "   %s\n", result.Description)

		if result.Error != "" {
			fmt.Fprintf(w, "   Error: %s\n", result.Error)
		}
		fmt.Fprintln(w)
	}

	fmt.Fprintln(w, strings.Repeat("=", 60))

	if report.Failed > 0 {
		fmt.Fprintf(w, "\n⚠️  %d contract(s) failed\n", report.Failed)
	} else {
		fmt.Fprintln(w, "\n✅ All contracts passed!")
	}
}

// Save writes the report as indented JSON.
func Save(path string, report ContractReport) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// Default are the contracts of the /todos resource.
func Default() []Contract {
	return []Contract{
		{
			Endpoint:    "/todos",
			Method:      http.MethodGet,
			Description: "List returns the 200 stored todos",
			ExpectCode:  http.StatusOK,
			Check: all(jsonContentType, func(r *todoapi.Response) error {
				if err := todoapi.ValidateTodoList(r.Body); err != nil {
					return err
				}
				var todos []todoapi.Todo
				if err := r.JSON(&todos); err != nil {
					return err
				}
				if len(todos) != 200 {
					return fmt.Errorf("expected 200 todos, got %d", len(todos))
				}
				return nil
			}),
		},
		{
			Endpoint:    "/todos/1",
			Method:      http.MethodGet,
			Description: "A stored todo has id, userId, title and completed",
			ExpectCode:  http.StatusOK,
			Check:       all(jsonContentType, func(r *todoapi.Response) error { return todoapi.ValidateTodo(r.Body) }),
		},
		{
			Endpoint:    "/todos/5",
			Method:      http.MethodGet,
			Description: "Get by id returns that id",
			ExpectCode:  http.StatusOK,
			Check:       fieldEquals("id", 5.0),
		},
		{
			Endpoint:    "/todos/999999",
			Method:      http.MethodGet,
			Description: "Unknown id is not found",
			ExpectCode:  http.StatusNotFound,
		},
		{
			Endpoint:    "/todos?userId=1",
			Method:      http.MethodGet,
			Description: "userId filter keeps only that user",
			ExpectCode:  http.StatusOK,
			Check:       everyItem("userId", 1.0),
		},
		{
			Endpoint:    "/todos?completed=true",
			Method:      http.MethodGet,
			Description: "completed filter keeps only completed todos",
			ExpectCode:  http.StatusOK,
			Check:       everyItem("completed", true),
		},
		{
			Endpoint:    "/todos",
			Method:      http.MethodPost,
			Description: "Create echoes the body with id 201",
			Body:        map[string]any{"title": "Contract task", "completed": false, "userId": 1},
			ExpectCode:  http.StatusCreated,
			Check: all(
				func(r *todoapi.Response) error { return todoapi.ValidateCreated(r.Body) },
				fieldEquals("id", 201.0),
				fieldEquals("title", "Contract task"),
			),
		},
		{
			Endpoint:    "/todos/1",
			Method:      http.MethodPut,
			Description: "Replace returns the new representation",
			Body:        map[string]any{"id": 1, "title": "Updated task", "completed": true, "userId": 1},
			ExpectCode:  http.StatusOK,
			Check:       all(fieldEquals("title", "Updated task"), fieldEquals("completed", true)),
		},
		{
			Endpoint:    "/todos/1",
			Method:      http.MethodPatch,
			Description: "Partial update applies the sent fields",
			Body:        map[string]any{"completed": true},
			ExpectCode:  http.StatusOK,
			Check:       fieldEquals("completed", true),
		},
		{
			Endpoint:    "/todos/999999",
			Method:      http.MethodDelete,
			Description: "Delete of an unknown id still succeeds",
			ExpectCode:  http.StatusOK,
		},
		{
			Endpoint:    "/nonexistent",
			Method:      http.MethodGet,
			Description: "Unknown endpoint is not found",
			ExpectCode:  http.StatusNotFound,
		},
	}
}

type check func(*todoapi.Response) error

func all(checks ...check) check {
	return func(r *todoapi.Response) error {
		for _, c := range checks {
			if err := c(r); err != nil {
				return err
			}
		}
		return nil
	}
}

func jsonContentType(r *todoapi.Response) error {
	if ct := r.ContentType(); !strings.Contains(ct, "application/json") {
		return fmt.Errorf("expected JSON content type, got %q", ct)
	}
	return nil
}

func fieldEquals(field string, want any) check {
	return func(r *todoapi.Response) error {
		var doc map[string]any
		if err := r.JSON(&doc); err != nil {
			return err
		}
		if got := doc[field]; got != want {
			return fmt.Errorf("expected %s=%v, got %v", field, want, got)
		}
		return nil
	}
}

func everyItem(field string, want any) check {
	return func(r *todoapi.Response) error {
		var docs []map[string]any
		if err := r.JSON(&docs); err != nil {
			return err
		}
		if len(docs) == 0 {
			return fmt.Errorf("expected at least one todo with %s=%v", field, want)
		}
		for i, doc := range docs {
			if doc[field] != want {
				return fmt.Errorf("item %d: expected %s=%v, got %v", i, field, want, doc[field])
			}
		}
		return nil
	}
}
