//go:build integration

package api

import (
	"net/http"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/todoqa/todo-e2e/internal/todoapi"
)

func TestGetTodos(t *testing.T) {
	t.Parallel()

	t.Run("should list all todos", func(t *testing.T) {
		resp, err := api(t).Do(ctx(t), http.MethodGet, "/todos", nil)
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.Status)
		assert.Contains(t, resp.ContentType(), "application/json")
		require.NoError(t, todoapi.ValidateTodoList(resp.Body))

		var todos []todoapi.Todo
		require.NoError(t, resp.JSON(&todos))
		assert.NotEmpty(t, todos)
	})

	t.Run("should get a single todo", func(t *testing.T) {
		todo, err := api(t).Get(ctx(t), 1)
		require.NoError(t, err)
		assert.Equal(t, 1, todo.ID)
		assert.NotEmpty(t, todo.Title)
		require.NoError(t, todoapi.ValidateValue(todo))
	})

	t.Run("should filter by user", func(t *testing.T) {
		todos, err := api(t).List(ctx(t), todoapi.ListFilter{UserID: 1})
		require.NoError(t, err)
		require.NotEmpty(t, todos)
		for _, todo := range todos {
			assert.Equal(t, 1, todo.UserID)
		}
	})

	t.Run("should filter by completion", func(t *testing.T) {
		done := true
		todos, err := api(t).List(ctx(t), todoapi.ListFilter{Completed: &done})
		require.NoError(t, err)
		for _, todo := range todos {
			assert.True(t, todo.Completed, "todo %d", todo.ID)
		}
	})

	t.Run("should honour the limit", func(t *testing.T) {
		todos, err := api(t).List(ctx(t), todoapi.ListFilter{Limit: 5})
		require.NoError(t, err)
		assert.LessOrEqual(t, len(todos), 5)
	})

	t.Run("should return 404 for an unknown todo", func(t *testing.T) {
		_, err := api(t).Get(ctx(t), 999999)
		require.Error(t, err)
		assert.True(t, todoapi.IsNotFound(err), "got %v", err)
	})
}

func TestCreateTodo(t *testing.T) {
	t.Parallel()

	t.Run("should create a todo", func(t *testing.T) {
		resp, err := api(t).Do(ctx(t), http.MethodPost, "/todos", todoapi.Todo{UserID: 1, Title: "Integration todo"})
		require.NoError(t, err)
		assert.Equal(t, http.StatusCreated, resp.Status)
		require.NoError(t, todoapi.ValidateCreated(resp.Body))

		var created todoapi.Todo
		require.NoError(t, resp.JSON(&created))
		assert.Equal(t, "Integration todo", created.Title)
		assert.Positive(t, created.ID)
	})

	payloads := []struct {
		name string
		body any
	}{
		{"empty title", map[string]any{"title": "", "userId": 1}},
		{"missing title", map[string]any{"userId": 1}},
		{"long title", map[string]any{"title": strings.Repeat("A", 1000), "userId": 1}},
		{"markup title", map[string]any{"title": `<script>alert("xss")</script>`, "userId": 1}},
		{"unicode title", map[string]any{"title": "日本語 العربية 🎉", "userId": 1}},
	}
	for _, p := range payloads {
		t.Run("should accept "+p.name, func(t *testing.T) {
			resp, err := api(t).Do(ctx(t), http.MethodPost, "/todos", p.body)
			require.NoError(t, err)
			assert.Less(t, resp.Status, 500, "the API must not fail on %s", p.name)
		})
	}

	t.Run("should answer invalid JSON", func(t *testing.T) {
		resp, err := api(t).Do(ctx(t), http.MethodPost, "/todos", "{not json")
		require.NoError(t, err)
		assert.NotZero(t, resp.Status)
		t.Logf("invalid JSON answered with %d", resp.Status)
	})
}

func TestUpdateTodo(t *testing.T) {
	t.Parallel()

	t.Run("should replace a todo", func(t *testing.T) {
		todo, err := api(t).Update(ctx(t), 1, todoapi.Todo{ID: 1, UserID: 1, Title: "Replaced", Completed: true})
		require.NoError(t, err)
		assert.Equal(t, "Replaced", todo.Title)
		assert.True(t, todo.Completed)
	})

	t.Run("should patch a todo", func(t *testing.T) {
		todo, err := api(t).Patch(ctx(t), 1, map[string]any{"completed": true})
		require.NoError(t, err)
		assert.Equal(t, 1, todo.ID)
		assert.True(t, todo.Completed)
	})

	t.Run("should delete a todo", func(t *testing.T) {
		require.NoError(t, api(t).Delete(ctx(t), 1))
	})
}

func TestResponses(t *testing.T) {
	t.Parallel()

	t.Run("should send JSON", func(t *testing.T) {
		resp, err := api(t).Do(ctx(t), http.MethodGet, "/todos/1", nil)
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.Status)
		assert.Contains(t, resp.ContentType(), "application/json")
	})

	t.Run("should answer within two seconds", func(t *testing.T) {
		resp, err := api(t).Do(ctx(t), http.MethodGet, "/todos", nil)
		require.NoError(t, err)
		assert.Less(t, resp.Duration, 2*time.Second)
	})

	t.Run("should serve parallel requests", func(t *testing.T) {
		c := api(t)
		reqCtx := ctx(t)

		var wg sync.WaitGroup
		statuses := make([]int, 5)
		errs := make([]error, 5)
		for i := range statuses {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				resp, err := c.Do(reqCtx, http.MethodGet, "/todos/"+strconv.Itoa(i+1), nil)
				if err != nil {
					errs[i] = err
					return
				}
				statuses[i] = resp.Status
			}(i)
		}
		wg.Wait()

		for i := range statuses {
			require.NoError(t, errs[i])
			assert.Equal(t, http.StatusOK, statuses[i], "request %d", i+1)
		}
	})

	t.Run("should return 404 for an unknown route", func(t *testing.T) {
		resp, err := api(t).Do(ctx(t), http.MethodGet, "/nonexistent", nil)
		require.NoError(t, err)
		assert.Equal(t, http.StatusNotFound, resp.Status)
	})
}
