package todopage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/todoqa/todo-e2e/internal/config"
	"github.com/todoqa/todo-e2e/internal/waits"
)

// bare builds a page object without a browser; only the synchronization
// paths are usable.
func bare(t *testing.T, opts ...Option) (*TodoPage, *logtest.Hook) {
	t.Helper()
	log, hook := logtest.NewNullLogger()
	log.SetLevel(logrus.DebugLevel)
	p := &TodoPage{
		hub:      waits.NewHub(),
		apiMatch: "jsonplaceholder.typicode.com/todos",
		timeouts: DefaultTimeouts(),
		ctx:      context.Background(),
		log:      log,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, hook
}

func TestDefaultTimeouts(t *testing.T) {
	d := DefaultTimeouts()
	assert.Equal(t, 10*time.Second, d.Load)
	assert.Equal(t, 5*time.Second, d.FirstItem)
	assert.Equal(t, 5*time.Second, d.Network)
	assert.Equal(t, 3*time.Second, d.Count)
	assert.Equal(t, 2*time.Second, d.Class)
	assert.Equal(t, 2*time.Second, d.EditInput)
	assert.Equal(t, 2*time.Second, d.Text)
	assert.Equal(t, 500*time.Millisecond, d.Settle)
}

func TestWithTimeoutsKeepsDefaultsForZeroFields(t *testing.T) {
	p, _ := bare(t, WithTimeouts(Timeouts{Network: time.Second, Settle: 50 * time.Millisecond}))
	assert.Equal(t, time.Second, p.timeouts.Network)
	assert.Equal(t, 50*time.Millisecond, p.timeouts.Settle)
	assert.Equal(t, 3*time.Second, p.timeouts.Count)
	assert.Equal(t, 10*time.Second, p.timeouts.Load)
}

func TestWithConfig(t *testing.T) {
	cfg := config.Default()
	cfg.BaseURL = "http://127.0.0.1:4200/"
	cfg.APIURL = "http://127.0.0.1:4200/api"

	p, _ := bare(t, WithConfig(cfg))
	assert.Equal(t, "http://127.0.0.1:4200/", p.baseURL)
	assert.Equal(t, "127.0.0.1:4200/api/todos", p.apiMatch)
	assert.True(t, p.APIMatcher()(waits.Event{URL: "http://127.0.0.1:4200/api/todos/7"}))
}

func TestHasClass(t *testing.T) {
	assert.True(t, hasClass("todo is-complete", "is-complete"))
	assert.True(t, hasClass(" is-complete\ttodo ", "is-complete"))
	assert.False(t, hasClass("todo", "is-complete"))
	assert.False(t, hasClass("todo is-complete-ish", "is-complete"))
	assert.False(t, hasClass("", "is-complete"))

	assert.True(t, completeClassRe.MatchString("todo is-complete"))
	assert.False(t, completeClassRe.MatchString("todo not-is-complete"))
}

func TestParseFilterMode(t *testing.T) {
	for in, want := range map[string]FilterMode{
		"all": FilterAll, "Active": FilterActive, " COMPLETED ": FilterCompleted,
	} {
		got, err := ParseFilterMode(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	_, err := ParseFilterMode("archived")
	assert.ErrorIs(t, err, ErrUnknownFilter)
}

func TestFilterByRejectsUnknownMode(t *testing.T) {
	p, _ := bare(t)
	err := p.FilterBy(FilterMode("archived"))
	assert.ErrorIs(t, err, ErrUnknownFilter)
}

func TestAwaitNetwork(t *testing.T) {
	t.Run("event caused by the gesture is delivered", func(t *testing.T) {
		p, _ := bare(t)
		ev, err := p.AwaitNetwork(p.mutation("POST"), time.Second, func() error {
			go p.hub.Observe(waits.Event{URL: "https://jsonplaceholder.typicode.com/todos", Method: "POST", Status: 201})
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, 201, ev.Status)
	})

	t.Run("gesture error is returned unchanged", func(t *testing.T) {
		p, _ := bare(t)
		boom := errors.New("element is not attached")
		_, err := p.AwaitNetwork(p.mutation("POST"), time.Second, func() error { return boom })
		assert.Same(t, boom, err)
		assert.Empty(t, p.hub.Count(waits.All()))
	})

	t.Run("missing response times out", func(t *testing.T) {
		p, _ := bare(t)
		_, err := p.AwaitNetwork(p.mutation("DELETE"), 20*time.Millisecond, func() error {
			p.hub.Observe(waits.Event{URL: "https://jsonplaceholder.typicode.com/todos/1", Method: "PUT", Status: 200})
			return nil
		})
		assert.ErrorIs(t, err, waits.ErrTimeout)
	})
}

func TestNetworkPolicy(t *testing.T) {
	quiet := func() error { return nil }
	short := WithTimeouts(Timeouts{Network: 20 * time.Millisecond})

	t.Run("lenient swallows a missing response", func(t *testing.T) {
		p, hook := bare(t, short)
		err := p.gestureAndResponse("POST response", p.mutation("POST"), quiet)
		require.NoError(t, err)
		require.NotNil(t, hook.LastEntry())
		assert.Equal(t, logrus.DebugLevel, hook.LastEntry().Level)
		assert.Equal(t, "POST response", hook.LastEntry().Data["wait"])
	})

	t.Run("strict reports a missing response", func(t *testing.T) {
		p, _ := bare(t, short, WithStrictNetwork())
		err := p.gestureAndResponse("DELETE response", p.mutation("DELETE"), quiet)
		require.Error(t, err)
		assert.ErrorIs(t, err, waits.ErrTimeout)
		assert.Contains(t, err.Error(), "DELETE response")
	})

	t.Run("gesture failures are never swallowed", func(t *testing.T) {
		p, _ := bare(t, short)
		boom := errors.New("click intercepted")
		err := p.gestureAndResponse("PUT/PATCH response", p.mutation("PUT", "PATCH"), func() error { return boom })
		assert.ErrorIs(t, err, boom)
	})

	t.Run("cancelled context is not a timeout", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		p, _ := bare(t, WithContext(ctx))
		err := p.gestureAndResponse("POST response", p.mutation("POST"), quiet)
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestAwaitDOM(t *testing.T) {
	p, _ := bare(t)
	n := 0
	err := p.AwaitDOM("three polls", time.Second, func() (bool, error) {
		n++
		return n == 3, nil
	})
	require.NoError(t, err)

	err = p.AwaitDOM("never", 30*time.Millisecond, func() (bool, error) { return false, nil })
	assert.ErrorIs(t, err, waits.ErrTimeout)
}

func TestAwaitList(t *testing.T) {
	const list = "https://jsonplaceholder.typicode.com/todos?_limit=10"
	short := WithTimeouts(Timeouts{Load: 30 * time.Millisecond})

	t.Run("mutation responses do not count as the list", func(t *testing.T) {
		p, _ := bare(t, short)
		p.markNavigation(time.Now().Add(-time.Second))
		p.hub.Observe(waits.Event{URL: "https://jsonplaceholder.typicode.com/todos", Method: "POST", Status: 201})
		p.hub.Observe(waits.Event{URL: "https://jsonplaceholder.typicode.com/todos/1", Method: "DELETE", Status: 200})

		_, err := p.awaitList()
		assert.ErrorIs(t, err, waits.ErrTimeout)
	})

	t.Run("list fetched before the last navigation is stale", func(t *testing.T) {
		p, _ := bare(t, short)
		p.hub.Observe(waits.Event{URL: list, Method: "GET", Status: 200, At: time.Now().Add(-time.Second)})
		p.markNavigation(time.Now())

		_, err := p.awaitList()
		assert.ErrorIs(t, err, waits.ErrTimeout)
	})

	t.Run("list fetched since the last navigation is used", func(t *testing.T) {
		p, _ := bare(t, short)
		p.markNavigation(time.Now().Add(-time.Second))
		p.hub.Observe(waits.Event{URL: list, Method: "GET", Status: 200})

		ev, err := p.awaitList()
		require.NoError(t, err)
		assert.Equal(t, "GET", ev.Method)
	})

	t.Run("unknown navigation waits for a fresh list", func(t *testing.T) {
		p, _ := bare(t, WithTimeouts(Timeouts{Load: time.Second}))
		p.hub.Observe(waits.Event{URL: list, Method: "GET", Status: 200})

		go func() {
			time.Sleep(10 * time.Millisecond)
			p.hub.Observe(waits.Event{URL: list, Method: "GET", Status: 304})
		}()
		ev, err := p.awaitList()
		require.NoError(t, err)
		assert.Equal(t, 304, ev.Status)
	})
}
