// Package todopage is the page object for the todo single-page app. Every
// action maps onto a browser gesture, an optional wait for the API response
// the gesture causes, and a DOM post-condition. Network waits are
// best-effort unless WithStrictNetwork is used; DOM post-conditions always
// decide the outcome.
package todopage

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/playwright-community/playwright-go"
	"github.com/sirupsen/logrus"

	"github.com/todoqa/todo-e2e/internal/config"
	"github.com/todoqa/todo-e2e/internal/logging"
	"github.com/todoqa/todo-e2e/internal/waits"
)

const (
	selectorInput    = `input[placeholder="Add Todo..."]`
	selectorSubmit   = `input[type="submit"]`
	selectorList     = "app-todos"
	selectorItem     = "app-todo-item"
	selectorTodo     = "div.todo"
	selectorCheckbox = `input[type="checkbox"]`
	selectorText     = "p"
	selectorRemove   = "button.btn-remove"
	selectorEdit     = `input[type="text"]`
	selectorLoading  = `.loading, .spinner, [aria-busy="true"]`

	completeClass = "is-complete"
)

var completeClassRe = regexp.MustCompile(`(^|\s)is-complete(\s|$)`)

// TodoPage wraps a playwright.Page showing the todo app. Locators are lazy
// and re-resolve on every use, so item handles stay valid across actions.
type TodoPage struct {
	Page playwright.Page

	TodoInput        playwright.Locator
	AddButton        playwright.Locator
	TodoList         playwright.Locator
	TodoItems        playwright.Locator
	FilterAll        playwright.Locator
	FilterActive     playwright.Locator
	FilterCompleted  playwright.Locator
	LoadingIndicator playwright.Locator

	hub      *waits.Hub
	expect   playwright.PlaywrightAssertions
	baseURL  string
	apiMatch string
	timeouts Timeouts
	strict   bool
	log      logrus.FieldLogger
	ctx      context.Context

	navMu       sync.Mutex
	navigatedAt time.Time
}

// New builds the page object and starts feeding page responses into its hub.
func New(page playwright.Page, opts ...Option) *TodoPage {
	p := &TodoPage{
		Page:     page,
		baseURL:  config.DefaultBaseURL,
		apiMatch: (&config.Config{APIURL: config.DefaultAPIURL}).APIMatch(),
		timeouts: DefaultTimeouts(),
		ctx:      context.Background(),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.log == nil {
		p.log = logging.Discard()
	}
	p.log = p.log.WithField("component", "todopage")
	if p.hub == nil {
		p.hub = waits.NewHub()
		Observe(page, p.hub)
	}
	p.expect = playwright.NewPlaywrightAssertions(float64(p.timeouts.Count.Milliseconds()))
	page.OnFrameNavigated(func(f playwright.Frame) {
		if f == page.MainFrame() {
			p.markNavigation(time.Now())
		}
	})

	p.TodoInput = page.Locator(selectorInput)
	p.AddButton = page.Locator(selectorSubmit)
	p.TodoList = page.Locator(selectorList)
	p.TodoItems = page.Locator(selectorItem)
	p.FilterAll = filterLocator(page, `(?i)all`, `(?i)^all$`)
	p.FilterActive = filterLocator(page, `(?i)active`, `(?i)active`)
	p.FilterCompleted = filterLocator(page, `(?i)completed`, `(?i)completed`)
	p.LoadingIndicator = page.Locator(selectorLoading)
	return p
}

// filterLocator prefers an accessible link and falls back to any anchor or
// button carrying the text.
func filterLocator(page playwright.Page, linkName, text string) playwright.Locator {
	link := page.GetByRole(*playwright.AriaRoleLink, playwright.PageGetByRoleOptions{
		Name: regexp.MustCompile(linkName),
	})
	return link.Or(page.Locator("a, button").Filter(playwright.LocatorFilterOptions{
		HasText: regexp.MustCompile(text),
	}))
}

// Observe feeds every response of page into hub.
func Observe(page playwright.Page, hub *waits.Hub) {
	page.OnResponse(func(resp playwright.Response) {
		method := ""
		if req := resp.Request(); req != nil {
			method = req.Method()
		}
		hub.Observe(waits.Event{URL: resp.URL(), Method: method, Status: resp.Status()})
	})
}

// Hub exposes the response history, mostly for assertions on traffic.
func (p *TodoPage) Hub() *waits.Hub { return p.hub }

// Timeouts returns the effective timeouts after defaults were applied.
func (p *TodoPage) Timeouts() Timeouts { return p.timeouts }

// APIMatcher matches responses of the todo API.
func (p *TodoPage) APIMatcher() waits.Matcher { return waits.URLContains(p.apiMatch) }

// listMatcher selects the list fetch; mutations hit the same URL.
func (p *TodoPage) listMatcher() waits.Matcher {
	return waits.All(p.APIMatcher(), waits.MethodIn("GET"))
}

func (p *TodoPage) mutation(methods ...string) waits.Matcher {
	return waits.All(p.APIMatcher(), waits.MethodIn(methods...))
}

// Goto opens the app and runs the load sequence. The list response watch is
// armed before navigating so that a fast fetch is not missed.
func (p *TodoPage) Goto() error {
	p.hub.Reset()
	w := p.hub.Arm(p.listMatcher())
	if _, err := p.Page.Goto(p.baseURL); err != nil {
		w.Cancel()
		return fmt.Errorf("todopage: navigate to %s: %w", p.baseURL, err)
	}
	p.waitForLoad(w)
	return nil
}

// WaitForLoad waits for the todos list response and the first item, for
// use after a navigation the page object did not perform, such as a reload.
// A list response already observed since the last main frame navigation
// counts; anything older does not. Both waits are best-effort: an empty or
// failed list is a valid page state.
func (p *TodoPage) WaitForLoad() {
	_, err := p.awaitList()
	waits.BestEffort(p.log, "todos list response", err)
	p.waitForFirstItem()
}

// awaitList returns the list response of the current document, waiting up
// to the load timeout when it has not arrived yet.
func (p *TodoPage) awaitList() (waits.Event, error) {
	w := p.hub.Arm(p.listMatcher())
	if nav := p.lastNavigation(); !nav.IsZero() {
		if ev, ok := p.hub.Seen(waits.All(p.listMatcher(), waits.ObservedAfter(nav))); ok {
			w.Cancel()
			p.log.WithField("response", ev.String()).Debug("list response already observed")
			return ev, nil
		}
	}
	return w.Wait(p.ctx, p.timeouts.Load)
}

func (p *TodoPage) waitForLoad(w *waits.Watch) {
	_, err := w.Wait(p.ctx, p.timeouts.Load)
	waits.BestEffort(p.log, "todos list response", err)
	p.waitForFirstItem()
}

func (p *TodoPage) markNavigation(at time.Time) {
	p.navMu.Lock()
	p.navigatedAt = at
	p.navMu.Unlock()
}

func (p *TodoPage) lastNavigation() time.Time {
	p.navMu.Lock()
	defer p.navMu.Unlock()
	return p.navigatedAt
}

func (p *TodoPage) waitForFirstItem() {
	err := p.TodoItems.First().WaitFor(playwright.LocatorWaitForOptions{
		State:   playwright.WaitForSelectorStateAttached,
		Timeout: ms(p.timeouts.FirstItem),
	})
	waits.BestEffort(p.log, "first todo item", err)
}

// AwaitNetwork arms a watch for m, performs gesture and waits up to timeout
// for a matching response. A gesture error is returned as is; a missing
// response yields an error matching waits.ErrTimeout.
func (p *TodoPage) AwaitNetwork(m waits.Matcher, timeout time.Duration, gesture func() error) (waits.Event, error) {
	w := p.hub.Arm(m)
	if err := gesture(); err != nil {
		w.Cancel()
		return waits.Event{}, err
	}
	return w.Wait(p.ctx, timeout)
}

// AwaitDOM polls cond until it holds or timeout elapses.
func (p *TodoPage) AwaitDOM(what string, timeout time.Duration, cond func() (bool, error)) error {
	return waits.Until(p.ctx, what, timeout, 0, cond)
}

// gestureAndResponse runs gesture and applies the network policy to the
// response wait that follows it.
func (p *TodoPage) gestureAndResponse(what string, m waits.Matcher, gesture func() error) error {
	ev, err := p.AwaitNetwork(m, p.timeouts.Network, gesture)
	if err == nil {
		p.log.WithField("response", ev.String()).Debug(what)
		return nil
	}
	if !errors.Is(err, waits.ErrTimeout) {
		return err
	}
	if p.strict {
		return fmt.Errorf("%s: %w", what, err)
	}
	waits.BestEffort(p.log, what, err)
	return nil
}

// AddTodo submits text and waits for the list to grow by one.
func (p *TodoPage) AddTodo(text string) error {
	if err := p.TodoInput.Fill(text); err != nil {
		return fmt.Errorf("todopage: add todo: fill input: %w", err)
	}
	before, err := p.TodoItems.Count()
	if err != nil {
		return fmt.Errorf("todopage: add todo: count items: %w", err)
	}

	err = p.gestureAndResponse("POST response", p.mutation("POST"), func() error {
		return p.AddButton.Click()
	})
	if err != nil {
		return fmt.Errorf("todopage: add todo: %w", err)
	}

	err = p.expect.Locator(p.TodoItems).ToHaveCount(before+1, playwright.LocatorAssertionsToHaveCountOptions{
		Timeout: ms(p.timeouts.Count),
	})
	if err != nil {
		return fmt.Errorf("todopage: add todo: expected %d items: %w", before+1, err)
	}
	return nil
}

// TryAddTodo submits text without any post-condition and returns how much
// the item count changed after a fixed settle pause. Rejected input yields
// a zero delta and no error.
func (p *TodoPage) TryAddTodo(text string) (int, error) {
	before, err := p.TodoItems.Count()
	if err != nil {
		return 0, fmt.Errorf("todopage: try add: count items: %w", err)
	}
	if err := p.TodoInput.Fill(text); err != nil {
		return 0, fmt.Errorf("todopage: try add: fill input: %w", err)
	}
	if err := p.AddButton.Click(); err != nil {
		return 0, fmt.Errorf("todopage: try add: click submit: %w", err)
	}

	select {
	case <-time.After(p.timeouts.Settle):
	case <-p.ctx.Done():
		return 0, fmt.Errorf("todopage: try add: %w", p.ctx.Err())
	}

	after, err := p.TodoItems.Count()
	if err != nil {
		return 0, fmt.Errorf("todopage: try add: count items: %w", err)
	}
	return after - before, nil
}

// ToggleTodo clicks the item checkbox and waits for the completion class to
// flip relative to its state before the click.
func (p *TodoPage) ToggleTodo(item playwright.Locator) error {
	was, err := p.IsCompleted(item)
	if err != nil {
		return fmt.Errorf("todopage: toggle todo: %w", err)
	}

	checkbox := item.Locator(selectorCheckbox).First()
	err = p.gestureAndResponse("PUT/PATCH response", p.mutation("PUT", "PATCH"), func() error {
		return checkbox.Click()
	})
	if err != nil {
		return fmt.Errorf("todopage: toggle todo: %w", err)
	}

	assertion := p.expect.Locator(item.Locator(selectorTodo).First())
	if was {
		assertion = assertion.Not()
	}
	err = assertion.ToHaveClass(completeClassRe, playwright.LocatorAssertionsToHaveClassOptions{
		Timeout: ms(p.timeouts.Class),
	})
	if err != nil {
		return fmt.Errorf("todopage: toggle todo: expected completed=%t: %w", !was, err)
	}
	return nil
}

// DeleteTodo removes item and waits for the list to shrink by one.
func (p *TodoPage) DeleteTodo(item playwright.Locator) error {
	before, err := p.TodoItems.Count()
	if err != nil {
		return fmt.Errorf("todopage: delete todo: count items: %w", err)
	}

	remove := item.Locator(selectorRemove).First()
	err = p.gestureAndResponse("DELETE response", p.mutation("DELETE"), func() error {
		return remove.Click()
	})
	if err != nil {
		return fmt.Errorf("todopage: delete todo: %w", err)
	}

	err = p.expect.Locator(p.TodoItems).ToHaveCount(before-1, playwright.LocatorAssertionsToHaveCountOptions{
		Timeout: ms(p.timeouts.Count),
	})
	if err != nil {
		return fmt.Errorf("todopage: delete todo: expected %d items: %w", before-1, err)
	}
	return nil
}

// EditTodo opens the inline editor with a double click, replaces the text
// and commits with Enter.
func (p *TodoPage) EditTodo(item playwright.Locator, text string) error {
	label := item.Locator(selectorText).First()
	if err := label.Dblclick(); err != nil {
		return fmt.Errorf("todopage: edit todo: open editor: %w", err)
	}

	input := item.Locator(selectorEdit).First()
	err := input.WaitFor(playwright.LocatorWaitForOptions{
		State:   playwright.WaitForSelectorStateVisible,
		Timeout: ms(p.timeouts.EditInput),
	})
	if err != nil {
		return fmt.Errorf("todopage: edit todo: editor did not appear: %w", err)
	}
	if err := input.Fill(text); err != nil {
		return fmt.Errorf("todopage: edit todo: fill editor: %w", err)
	}
	if err := input.Press("Enter"); err != nil {
		return fmt.Errorf("todopage: edit todo: commit: %w", err)
	}

	err = p.expect.Locator(label).ToHaveText(text, playwright.LocatorAssertionsToHaveTextOptions{
		Timeout: ms(p.timeouts.Text),
	})
	if err != nil {
		return fmt.Errorf("todopage: edit todo: expected text %q: %w", text, err)
	}
	return nil
}

// FilterBy clicks the filter control for mode.
func (p *TodoPage) FilterBy(mode FilterMode) error {
	var control playwright.Locator
	switch mode {
	case FilterAll:
		control = p.FilterAll
	case FilterActive:
		control = p.FilterActive
	case FilterCompleted:
		control = p.FilterCompleted
	default:
		return fmt.Errorf("todopage: filter by: %w: %q", ErrUnknownFilter, mode)
	}
	if err := control.First().Click(); err != nil {
		return fmt.Errorf("todopage: filter by %s: %w", mode, err)
	}
	return nil
}

// GetTodoCount is the instantaneous number of rendered items.
func (p *TodoPage) GetTodoCount() (int, error) {
	n, err := p.TodoItems.Count()
	if err != nil {
		return 0, fmt.Errorf("todopage: count items: %w", err)
	}
	return n, nil
}

// GetTodoByIndex returns the item at the zero-based render position.
func (p *TodoPage) GetTodoByIndex(index int) playwright.Locator {
	return p.TodoItems.Nth(index)
}

// GetTodoByText returns the first item whose text contains text.
func (p *TodoPage) GetTodoByText(text string) playwright.Locator {
	return p.TodoItems.Filter(playwright.LocatorFilterOptions{HasText: text}).First()
}

// IsCompleted reports whether the item carries the completion class. An
// item without a todo element is not completed.
func (p *TodoPage) IsCompleted(item playwright.Locator) (bool, error) {
	todo := item.Locator(selectorTodo)
	n, err := todo.Count()
	if err != nil {
		return false, fmt.Errorf("todopage: completed state: %w", err)
	}
	if n == 0 {
		return false, nil
	}
	class, err := todo.First().GetAttribute("class")
	if err != nil {
		return false, fmt.Errorf("todopage: completed state: %w", err)
	}
	return hasClass(class, completeClass), nil
}

// GetTodoText returns the trimmed text of the item.
func (p *TodoPage) GetTodoText(item playwright.Locator) (string, error) {
	text, err := item.Locator(selectorText).First().TextContent()
	if err != nil {
		return "", fmt.Errorf("todopage: todo text: %w", err)
	}
	return strings.TrimSpace(text), nil
}

// Texts returns the trimmed text of every rendered item in order.
func (p *TodoPage) Texts() ([]string, error) {
	raw, err := p.TodoItems.Locator(selectorText).AllTextContents()
	if err != nil {
		return nil, fmt.Errorf("todopage: item texts: %w", err)
	}
	out := make([]string, len(raw))
	for i, s := range raw {
		out[i] = strings.TrimSpace(s)
	}
	return out, nil
}

// IsLoading reports whether a loading indicator is currently visible.
func (p *TodoPage) IsLoading() (bool, error) {
	return p.LoadingIndicator.First().IsVisible()
}

func hasClass(classAttr, name string) bool {
	for _, c := range strings.Fields(classAttr) {
		if c == name {
			return true
		}
	}
	return false
}

func ms(d time.Duration) *float64 {
	return playwright.Float(float64(d.Milliseconds()))
}
