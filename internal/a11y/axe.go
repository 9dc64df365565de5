// Package a11y runs axe-core inside a page and filters its findings, plus a
// few checks axe does not cover such as touch target size and focus order.
package a11y

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/playwright-community/playwright-go"
)

// Tag sets used by the suites.
const (
	TagWCAG2A       = "wcag2a"
	TagWCAG2AA      = "wcag2aa"
	TagWCAG21AA     = "wcag21aa"
	TagBestPractice = "best-practice"
)

var ErrNoAxe = errors.New("a11y: axe-core is not available in the page")

// Builder configures one axe run.
type Builder struct {
	page     playwright.Page
	script   string
	include  []string
	exclude  []string
	tags     []string
	disabled []string
}

// NewBuilder scans page, injecting axe from script (a URL or a file path)
// when the page does not already carry it.
func NewBuilder(page playwright.Page, script string) *Builder {
	return &Builder{page: page, script: script}
}

// Include restricts the scan to elements matching selector.
func (b *Builder) Include(selector string) *Builder {
	b.include = append(b.include, selector)
	return b
}

func (b *Builder) Exclude(selector string) *Builder {
	b.exclude = append(b.exclude, selector)
	return b
}

// WithTags runs only rules carrying one of tags.
func (b *Builder) WithTags(tags ...string) *Builder {
	b.tags = append(b.tags, tags...)
	return b
}

func (b *Builder) DisableRules(ids ...string) *Builder {
	b.disabled = append(b.disabled, ids...)
	return b
}

const axeLoaded = `() => typeof window.axe !== 'undefined' && typeof window.axe.run === 'function'`

const axeRun = `async (opts) => {
  const context = {};
  if (opts.include.length) context.include = opts.include.map(s => [s]);
  if (opts.exclude.length) context.exclude = opts.exclude.map(s => [s]);
  const options = {};
  if (opts.tags.length) options.runOnly = { type: 'tag', values: opts.tags };
  if (opts.disabled.length) {
    options.rules = {};
    for (const id of opts.disabled) options.rules[id] = { enabled: false };
  }
  const r = await window.axe.run(Object.keys(context).length ? context : document, options);
  const nodes = list => list.map(n => ({
    target: n.target.map(t => Array.isArray(t) ? t.join(' >>> ') : String(t)),
    html: n.html,
    failureSummary: n.failureSummary || '',
    impact: n.impact || ''
  }));
  const rules = list => list.map(v => ({
    id: v.id, impact: v.impact || '', description: v.description, help: v.help,
    helpUrl: v.helpUrl, tags: v.tags, nodes: nodes(v.nodes)
  }));
  return JSON.stringify({
    url: r.url, timestamp: r.timestamp,
    violations: rules(r.violations), incomplete: rules(r.incomplete), passes: r.passes.length
  });
}`

// Analyze injects axe if needed and runs it.
func (b *Builder) Analyze() (*Results, error) {
	if err := b.ensureAxe(); err != nil {
		return nil, err
	}

	raw, err := b.page.Evaluate(axeRun, map[string]any{
		"include":  nonNil(b.include),
		"exclude":  nonNil(b.exclude),
		"tags":     nonNil(b.tags),
		"disabled": nonNil(b.disabled),
	})
	if err != nil {
		return nil, fmt.Errorf("a11y: axe run: %w", err)
	}
	s, ok := raw.(string)
	if !ok {
		return nil, fmt.Errorf("a11y: axe run returned %T", raw)
	}
	return ParseResults([]byte(s))
}

func (b *Builder) ensureAxe() error {
	loaded, err := b.page.Evaluate(axeLoaded)
	if err != nil {
		return fmt.Errorf("a11y: probe axe: %w", err)
	}
	if ok, _ := loaded.(bool); ok {
		return nil
	}
	if b.script == "" {
		return ErrNoAxe
	}

	opts := playwright.PageAddScriptTagOptions{}
	if strings.HasPrefix(b.script, "http://") || strings.HasPrefix(b.script, "https://") {
		opts.URL = playwright.String(b.script)
	} else {
		opts.Path = playwright.String(b.script)
	}
	if _, err := b.page.AddScriptTag(opts); err != nil {
		return fmt.Errorf("a11y: inject axe from %s: %w", b.script, err)
	}

	loaded, err = b.page.Evaluate(axeLoaded)
	if err != nil {
		return fmt.Errorf("a11y: probe axe: %w", err)
	}
	if ok, _ := loaded.(bool); !ok {
		return ErrNoAxe
	}
	return nil
}

// ParseResults decodes the JSON produced by the in-page runner.
func ParseResults(data []byte) (*Results, error) {
	var r Results
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("a11y: decode axe results: %w", err)
	}
	return &r, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
