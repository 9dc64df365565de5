package todopage

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/todoqa/todo-e2e/internal/config"
	"github.com/todoqa/todo-e2e/internal/waits"
)

// Timeouts bounds every wait the page object performs.
type Timeouts struct {
	// Load is the wait for the initial todos list response.
	Load time.Duration
	// FirstItem is the wait for the first rendered item after load.
	FirstItem time.Duration
	// Network bounds the response wait that follows a mutating gesture.
	Network time.Duration
	// Count bounds the item count post-condition of add and delete.
	Count time.Duration
	// Class bounds the completion class flip of toggle.
	Class time.Duration
	// EditInput bounds the appearance of the inline edit field.
	EditInput time.Duration
	// Text bounds the text post-condition of edit.
	Text time.Duration
	// Settle is the fixed pause of TryAddTodo.
	Settle time.Duration
}

// DefaultTimeouts returns the timeouts used when none are overridden.
func DefaultTimeouts() Timeouts {
	return Timeouts{
		Load:      10 * time.Second,
		FirstItem: 5 * time.Second,
		Network:   5 * time.Second,
		Count:     3 * time.Second,
		Class:     2 * time.Second,
		EditInput: 2 * time.Second,
		Text:      2 * time.Second,
		Settle:    500 * time.Millisecond,
	}
}

// merge fills zero fields of t from def.
func (t Timeouts) merge(def Timeouts) Timeouts {
	pick := func(v, d time.Duration) time.Duration {
		if v > 0 {
			return v
		}
		return d
	}
	return Timeouts{
		Load:      pick(t.Load, def.Load),
		FirstItem: pick(t.FirstItem, def.FirstItem),
		Network:   pick(t.Network, def.Network),
		Count:     pick(t.Count, def.Count),
		Class:     pick(t.Class, def.Class),
		EditInput: pick(t.EditInput, def.EditInput),
		Text:      pick(t.Text, def.Text),
		Settle:    pick(t.Settle, def.Settle),
	}
}

// Option configures a TodoPage in New.
type Option func(*TodoPage)

// WithConfig takes the base URL and the API address from cfg.
func WithConfig(cfg *config.Config) Option {
	return func(p *TodoPage) {
		p.baseURL = cfg.BaseURL
		p.apiMatch = cfg.APIMatch()
	}
}

// WithBaseURL sets the address Goto opens.
func WithBaseURL(url string) Option {
	return func(p *TodoPage) { p.baseURL = url }
}

// WithAPIMatch sets the URL substring that identifies todo API responses.
func WithAPIMatch(substr string) Option {
	return func(p *TodoPage) { p.apiMatch = substr }
}

// WithTimeouts overrides timeouts; zero fields keep their defaults.
func WithTimeouts(t Timeouts) Option {
	return func(p *TodoPage) { p.timeouts = t.merge(DefaultTimeouts()) }
}

// WithStrictNetwork makes the response wait after a mutating gesture
// authoritative: a missing response fails the action.
func WithStrictNetwork() Option {
	return func(p *TodoPage) { p.strict = true }
}

// WithLogger sets the logger for wait diagnostics; the default discards.
func WithLogger(log logrus.FieldLogger) Option {
	return func(p *TodoPage) { p.log = log }
}

// WithContext bounds every network wait by ctx.
func WithContext(ctx context.Context) Option {
	return func(p *TodoPage) { p.ctx = ctx }
}

// WithHub uses hub instead of a hub fed by the page. The caller feeds it,
// usually with Observe.
func WithHub(hub *waits.Hub) Option {
	return func(p *TodoPage) { p.hub = hub }
}
