package fixtureapp

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/todoqa/todo-e2e/internal/todoapi"
)

// The API mirrors JSONPlaceholder: nothing is persisted, creates always
// answer id 201, and updates or deletes of unknown ids still succeed.

func (s *Server) listTodos(c *gin.Context) {
	out := make([]todoapi.Todo, 0, len(s.todos))
	for _, t := range s.todos {
		if v := c.Query("userId"); v != "" && v != strconv.Itoa(t.UserID) {
			continue
		}
		if v := c.Query("completed"); v != "" && v != strconv.FormatBool(t.Completed) {
			continue
		}
		out = append(out, t)
	}
	if limit, err := strconv.Atoi(c.Query("_limit")); err == nil && limit >= 0 && limit < len(out) {
		out = out[:limit]
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) getTodo(c *gin.Context) {
	t, ok := s.lookup(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{})
		return
	}
	c.JSON(http.StatusOK, t)
}

func (s *Server) createTodo(c *gin.Context) {
	body := readObject(c)
	body["id"] = CreatedID
	c.JSON(http.StatusCreated, body)
}

func (s *Server) replaceTodo(c *gin.Context) {
	body := readObject(c)
	body["id"] = idOrZero(c.Param("id"))
	c.JSON(http.StatusOK, body)
}

func (s *Server) patchTodo(c *gin.Context) {
	out := map[string]any{"id": idOrZero(c.Param("id"))}
	if t, ok := s.lookup(c.Param("id")); ok {
		out = map[string]any{"id": t.ID, "userId": t.UserID, "title": t.Title, "completed": t.Completed}
	}
	for k, v := range readObject(c) {
		out[k] = v
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) deleteTodo(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{})
}

func (s *Server) lookup(raw string) (todoapi.Todo, bool) {
	id, err := strconv.Atoi(raw)
	if err != nil || id < 1 || id > len(s.todos) {
		return todoapi.Todo{}, false
	}
	return s.todos[id-1], true
}

func idOrZero(raw string) int {
	id, _ := strconv.Atoi(raw)
	return id
}

// readObject decodes a JSON object body. Anything else, including invalid
// JSON, yields an empty object: the API accepts whatever it is sent.
func readObject(c *gin.Context) map[string]any {
	out := map[string]any{}
	data, err := io.ReadAll(c.Request.Body)
	if err != nil || len(data) == 0 {
		return out
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return map[string]any{}
	}
	return out
}

// delay holds API requests for the configured latency.
func (s *Server) delay() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.opts.Latency > 0 {
			select {
			case <-time.After(s.opts.Latency):
			case <-c.Request.Context().Done():
				c.Abort()
				return
			}
		}
		c.Next()
	}
}

// cors allows the SPA to be served from another origin, as the public API
// does.
func cors() gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.Writer.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		h.Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		h.Set("Access-Control-Allow-Headers", "Content-Type")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
