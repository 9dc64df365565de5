// Package inspect dumps the DOM structure of the todo app so selectors can be
// checked against a deployment without reading its sources.
package inspect

import (
	"fmt"
	"io"
	"strings"

	"github.com/playwright-community/playwright-go"
	"gopkg.in/yaml.v3"
)

const (
	headLimit     = 5000
	appRootLimit  = 2000
	appTodosLimit = 3000
	snippetLimit  = 500
	// probes with more matches than this are counted but not sampled
	sampleCeiling = 300
)

// ItemSelectors are tried in order when looking for rendered todos.
var ItemSelectors = []string{
	"app-todo-item",
	".todo",
	".todo-item",
	`[class*="todo"]`,
	"app-todos > *",
	"app-todos li",
	"app-todos div",
}

type Input struct {
	Type        string `yaml:"type"`
	Placeholder string `yaml:"placeholder,omitempty"`
	ID          string `yaml:"id,omitempty"`
	Class       string `yaml:"class,omitempty"`
	AriaLabel   string `yaml:"aria_label,omitempty"`
}

type Button struct {
	Text  string `yaml:"text"`
	Class string `yaml:"class,omitempty"`
}

// Probe is the outcome of one item selector.
type Probe struct {
	Selector string `yaml:"selector"`
	Count    int    `yaml:"count"`
	First    string `yaml:"first,omitempty"`
}

// Report is what Page collects.
type Report struct {
	URL            string   `yaml:"url"`
	Title          string   `yaml:"title"`
	HTML           string   `yaml:"html"`
	Inputs         []Input  `yaml:"inputs"`
	Buttons        []Button `yaml:"buttons"`
	ListItems      int      `yaml:"list_items"`
	FirstItemHTML  string   `yaml:"first_item_html,omitempty"`
	AppRoot        string   `yaml:"app_root,omitempty"`
	AppTodos       string   `yaml:"app_todos,omitempty"`
	Probes         []Probe  `yaml:"probes"`
	Checkboxes     int      `yaml:"checkboxes"`
	CheckboxParent string   `yaml:"checkbox_parent,omitempty"`
}

// WriteYAML encodes r to w.
func (r *Report) WriteYAML(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(r); err != nil {
		return fmt.Errorf("inspect: encode report: %w", err)
	}
	return enc.Close()
}

// Page inspects the page as it currently is. Call it after the app has
// loaded; it does not wait.
func Page(page playwright.Page) (*Report, error) {
	r := &Report{URL: page.URL()}

	var err error
	if r.Title, err = page.Title(); err != nil {
		return nil, fmt.Errorf("inspect: title: %w", err)
	}
	html, err := page.Content()
	if err != nil {
		return nil, fmt.Errorf("inspect: content: %w", err)
	}
	r.HTML = Truncate(html, headLimit)

	if r.Inputs, err = inputs(page); err != nil {
		return nil, err
	}
	if r.Buttons, err = buttons(page); err != nil {
		return nil, err
	}

	items := page.Locator(`li, .todo-item, .todo, [class*="todo"]`)
	if r.ListItems, err = items.Count(); err != nil {
		return nil, fmt.Errorf("inspect: count items: %w", err)
	}
	if r.ListItems > 0 {
		r.FirstItemHTML, _ = outerHTML(items.First(), snippetLimit)
	}

	r.AppRoot = innerHTML(page.Locator("app-root"), appRootLimit)
	r.AppTodos = innerHTML(page.Locator("app-todos"), appTodosLimit)

	for _, sel := range ItemSelectors {
		p, err := probe(page, sel)
		if err != nil {
			return nil, err
		}
		r.Probes = append(r.Probes, p)
	}

	boxes := page.Locator(`input[type="checkbox"]`)
	if r.Checkboxes, err = boxes.Count(); err != nil {
		return nil, fmt.Errorf("inspect: count checkboxes: %w", err)
	}
	if r.Checkboxes > 0 {
		r.CheckboxParent, _ = outerHTML(boxes.First().Locator(".."), snippetLimit)
	}
	return r, nil
}

func inputs(page playwright.Page) ([]Input, error) {
	all, err := page.Locator("input").All()
	if err != nil {
		return nil, fmt.Errorf("inspect: inputs: %w", err)
	}
	out := make([]Input, 0, len(all))
	for _, l := range all {
		out = append(out, Input{
			Type:        attr(l, "type"),
			Placeholder: attr(l, "placeholder"),
			ID:          attr(l, "id"),
			Class:       attr(l, "class"),
			AriaLabel:   attr(l, "aria-label"),
		})
	}
	return out, nil
}

func buttons(page playwright.Page) ([]Button, error) {
	all, err := page.Locator("button").All()
	if err != nil {
		return nil, fmt.Errorf("inspect: buttons: %w", err)
	}
	out := make([]Button, 0, len(all))
	for _, l := range all {
		text, _ := l.TextContent()
		out = append(out, Button{Text: strings.TrimSpace(text), Class: attr(l, "class")})
	}
	return out, nil
}

func probe(page playwright.Page, selector string) (Probe, error) {
	l := page.Locator(selector)
	n, err := l.Count()
	if err != nil {
		return Probe{}, fmt.Errorf("inspect: probe %s: %w", selector, err)
	}
	p := Probe{Selector: selector, Count: n}
	if n > 0 && n < sampleCeiling {
		p.First, _ = outerHTML(l.First(), snippetLimit)
	}
	return p, nil
}

func attr(l playwright.Locator, name string) string {
	v, err := l.GetAttribute(name)
	if err != nil {
		return ""
	}
	return v
}

func outerHTML(l playwright.Locator, limit int) (string, error) {
	v, err := l.Evaluate("el => el.outerHTML", nil)
	if err != nil {
		return "", err
	}
	s, _ := v.(string)
	return Truncate(s, limit), nil
}

func innerHTML(l playwright.Locator, limit int) string {
	if n, err := l.Count(); err != nil || n == 0 {
		return ""
	}
	s, err := l.First().InnerHTML()
	if err != nil {
		return ""
	}
	return Truncate(s, limit)
}

// Truncate cuts s to at most limit runes.
func Truncate(s string, limit int) string {
	if limit <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}

// Best returns the first probe that matched anything.
func (r *Report) Best() (Probe, bool) {
	for _, p := range r.Probes {
		if p.Count > 0 {
			return p, true
		}
	}
	return Probe{}, false
}
