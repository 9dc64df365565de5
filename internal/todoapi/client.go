// Package todoapi is a client for the JSONPlaceholder-style /todos resource
// together with the JSON schema every todo must satisfy.
package todoapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"

	"github.com/todoqa/todo-e2e/internal/logging"
	"github.com/todoqa/todo-e2e/internal/version"
)

// Todo is one item of the resource.
type Todo struct {
	ID        int    `json:"id,omitempty"`
	UserID    int    `json:"userId"`
	Title     string `json:"title"`
	Completed bool   `json:"completed"`
}

// ListFilter narrows List. Zero fields are not sent.
type ListFilter struct {
	UserID    int
	Completed *bool
	Limit     int
}

func (f ListFilter) query() map[string]string {
	q := map[string]string{}
	if f.UserID > 0 {
		q["userId"] = strconv.Itoa(f.UserID)
	}
	if f.Completed != nil {
		q["completed"] = strconv.FormatBool(*f.Completed)
	}
	if f.Limit > 0 {
		q["_limit"] = strconv.Itoa(f.Limit)
	}
	return q
}

// Config represents client configuration
type Config struct {
	BaseURL    string
	UserAgent  string
	Timeout    time.Duration
	RetryCount int
	Debug      bool
	Logger     logrus.FieldLogger
}

// Client talks to the todo API.
type Client struct {
	httpClient *resty.Client
	baseURL    string
	log        *logrus.Entry
}

// NewClient creates a client. Retries only cover transport failures; HTTP
// error statuses are returned to the caller untouched.
func NewClient(config *Config) *Client {
	if config.UserAgent == "" {
		config.UserAgent = version.UserAgent()
	}
	if config.Timeout == 0 {
		config.Timeout = 10 * time.Second
	}
	if config.RetryCount < 0 {
		config.RetryCount = 0
	}

	httpClient := resty.New().
		SetBaseURL(strings.TrimRight(config.BaseURL, "/")).
		SetTimeout(config.Timeout).
		SetRetryCount(config.RetryCount).
		SetHeader("User-Agent", config.UserAgent).
		SetHeader("Accept", "application/json")

	if config.Debug {
		httpClient.SetDebug(true)
	}

	return &Client{
		httpClient: httpClient,
		baseURL:    strings.TrimRight(config.BaseURL, "/"),
		log:        logging.Component(config.Logger, "todoapi"),
	}
}

// BaseURL returns the address requests are sent to.
func (c *Client) BaseURL() string { return c.baseURL }

// Response is a raw answer, kept for tests that assert on status codes,
// headers and latency rather than decoded values.
type Response struct {
	Method   string
	URL      string
	Status   int
	Header   http.Header
	Body     []byte
	Duration time.Duration
}

// JSON decodes the body into v.
func (r *Response) JSON(v any) error {
	if err := json.Unmarshal(r.Body, v); err != nil {
		return fmt.Errorf("decode %s %s: %w", r.Method, r.URL, err)
	}
	return nil
}

func (r *Response) ContentType() string { return r.Header.Get("Content-Type") }

// Do sends one request. body may be nil, raw bytes or a string sent as is,
// or any value encoded as JSON. Only transport failures are errors.
func (c *Client) Do(ctx context.Context, method, path string, body any) (*Response, error) {
	req := c.httpClient.R().SetContext(ctx)
	if body != nil {
		req.SetHeader("Content-Type", "application/json").SetBody(body)
	}
	return c.send(req, method, path)
}

func (c *Client) send(req *resty.Request, method, path string) (*Response, error) {
	start := time.Now()
	resp, err := req.Execute(method, path)
	elapsed := time.Since(start)
	if err != nil {
		return nil, &NetworkError{Operation: method, URL: c.baseURL + path, Err: err}
	}

	out := &Response{
		Method:   method,
		URL:      resp.Request.URL,
		Status:   resp.StatusCode(),
		Header:   resp.Header(),
		Body:     resp.Body(),
		Duration: elapsed,
	}
	c.log.WithFields(logrus.Fields{
		"method":   method,
		"url":      out.URL,
		"status":   out.Status,
		"duration": elapsed,
	}).Debug("request")
	return out, nil
}

// handleError turns a non-2xx response into an *APIError.
func handleError(resp *Response) error {
	if resp.Status >= 200 && resp.Status < 300 {
		return nil
	}
	msg := http.StatusText(resp.Status)
	if msg == "" {
		msg = "Unknown error"
	}
	return &APIError{
		StatusCode: resp.Status,
		Message:    msg,
		Method:     resp.Method,
		URL:        resp.URL,
		Body:       string(resp.Body),
	}
}

func (c *Client) call(ctx context.Context, method, path string, query map[string]string, body, result any) error {
	req := c.httpClient.R().SetContext(ctx)
	if len(query) > 0 {
		req.SetQueryParams(query)
	}
	if body != nil {
		req.SetHeader("Content-Type", "application/json").SetBody(body)
	}
	resp, err := c.send(req, method, path)
	if err != nil {
		return err
	}
	if err := handleError(resp); err != nil {
		return err
	}
	if result == nil {
		return nil
	}
	return resp.JSON(result)
}

// List returns the todos matching f.
func (c *Client) List(ctx context.Context, f ListFilter) ([]Todo, error) {
	var todos []Todo
	if err := c.call(ctx, http.MethodGet, "/todos", f.query(), nil, &todos); err != nil {
		return nil, err
	}
	return todos, nil
}

func (c *Client) Get(ctx context.Context, id int) (*Todo, error) {
	var t Todo
	if err := c.call(ctx, http.MethodGet, todoPath(id), nil, nil, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

// Create posts t without an id and returns what the server echoed.
func (c *Client) Create(ctx context.Context, t Todo) (*Todo, error) {
	t.ID = 0
	var created Todo
	if err := c.call(ctx, http.MethodPost, "/todos", nil, t, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

// Update replaces the todo with a PUT.
func (c *Client) Update(ctx context.Context, id int, t Todo) (*Todo, error) {
	t.ID = id
	var updated Todo
	if err := c.call(ctx, http.MethodPut, todoPath(id), nil, t, &updated); err != nil {
		return nil, err
	}
	return &updated, nil
}

// Patch sends a partial update.
func (c *Client) Patch(ctx context.Context, id int, fields map[string]any) (*Todo, error) {
	var patched Todo
	if err := c.call(ctx, http.MethodPatch, todoPath(id), nil, fields, &patched); err != nil {
		return nil, err
	}
	return &patched, nil
}

func (c *Client) Delete(ctx context.Context, id int) error {
	return c.call(ctx, http.MethodDelete, todoPath(id), nil, nil, nil)
}

// Ping checks if the API is reachable
func (c *Client) Ping(ctx context.Context) error {
	return c.call(ctx, http.MethodGet, "/todos", map[string]string{"_limit": "1"}, nil, nil)
}

func todoPath(id int) string { return "/todos/" + strconv.Itoa(id) }

// Reachable reports whether anything answers HTTP at rawURL within timeout.
func Reachable(ctx context.Context, rawURL string, timeout time.Duration) bool {
	resp, err := resty.New().SetTimeout(timeout).R().SetContext(ctx).Head(rawURL)
	if err != nil {
		return false
	}
	return resp.StatusCode() > 0
}
