// Package fixtureapp serves a local copy of the todo app together with a
// JSONPlaceholder-compatible /todos API, so the browser suites can run
// without the public deployment.
package fixtureapp

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/todoqa/todo-e2e/internal/logging"
	"github.com/todoqa/todo-e2e/internal/todoapi"
)

//go:embed static/index.html
var static embed.FS

// Options configures a Server.
type Options struct {
	// APIBase is the path or absolute URL the page fetches todos from.
	// Defaults to "/api", served by the same Server.
	APIBase string
	// PageSize is how many todos the page loads. Defaults to 10.
	PageSize int
	// Latency delays every API answer.
	Latency time.Duration
	Logger  logrus.FieldLogger
}

type Server struct {
	engine   *gin.Engine
	registry *prometheus.Registry
	metrics  *metrics
	todos    []todoapi.Todo
	opts     Options
	log      *logrus.Entry
}

func New(opts Options) (*Server, error) {
	if opts.APIBase == "" {
		opts.APIBase = "/api"
	}
	opts.APIBase = strings.TrimRight(opts.APIBase, "/")
	if opts.PageSize <= 0 {
		opts.PageSize = 10
	}

	tmpl, err := template.ParseFS(static, "static/index.html")
	if err != nil {
		return nil, fmt.Errorf("fixtureapp: parse index: %w", err)
	}

	reg := prometheus.NewRegistry()
	s := &Server{
		engine:   gin.New(),
		registry: reg,
		metrics:  newMetrics(reg),
		todos:    Fixture(),
		opts:     opts,
		log:      logging.Component(opts.Logger, "fixtureapp"),
	}

	r := s.engine
	r.Use(gin.Recovery(), s.accessLog())
	r.SetHTMLTemplate(tmpl)

	r.GET("/", s.index)
	r.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))

	api := r.Group("/api", cors(), s.metrics.middleware(), s.delay())
	api.OPTIONS("/*any", func(c *gin.Context) {})
	api.GET("/todos", s.listTodos)
	api.POST("/todos", s.createTodo)
	api.GET("/todos/:id", s.getTodo)
	api.PUT("/todos/:id", s.replaceTodo)
	api.PATCH("/todos/:id", s.patchTodo)
	api.DELETE("/todos/:id", s.deleteTodo)

	r.NoRoute(func(c *gin.Context) { c.JSON(http.StatusNotFound, gin.H{}) })
	return s, nil
}

func (s *Server) Handler() http.Handler { return s.engine }

// Registry holds the request metrics.
func (s *Server) Registry() *prometheus.Registry { return s.registry }

func (s *Server) index(c *gin.Context) {
	c.HTML(http.StatusOK, "index.html", gin.H{
		"APIBase":  s.opts.APIBase,
		"PageSize": s.opts.PageSize,
	})
}

func (s *Server) accessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.log.WithFields(logrus.Fields{
			"method":   c.Request.Method,
			"path":     c.Request.URL.Path,
			"status":   c.Writer.Status(),
			"duration": time.Since(start),
		}).Debug("request")
	}
}

// ListenAndServe serves on addr until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.WithField("addr", addr).Info("fixture app listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("fixtureapp: shutdown: %w", err)
		}
		return nil
	}
}

// Running is a server started in the background by Start.
type Running struct {
	// URL is the root of the app, e.g. "http://127.0.0.1:43127".
	URL string
	// APIURL is the API root a client or the page should use.
	APIURL string
	srv    *http.Server
}

// Close shuts the server down.
func (r *Running) Close(ctx context.Context) error {
	return r.srv.Shutdown(ctx)
}

// Start listens on addr ("127.0.0.1:0" picks a free port) and serves in the
// background.
func (s *Server) Start(addr string) (*Running, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("fixtureapp: listen %s: %w", addr, err)
	}
	srv := &http.Server{Handler: s.engine, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.WithError(err).Error("fixture app stopped")
		}
	}()
	r := &Running{URL: "http://" + ln.Addr().String(), srv: srv}
	r.APIURL = s.opts.APIBase
	if !strings.HasPrefix(r.APIURL, "http://") && !strings.HasPrefix(r.APIURL, "https://") {
		r.APIURL = r.URL + r.APIURL
	}
	s.log.WithField("url", r.URL).Info("fixture app listening")
	return r, nil
}
