package a11y

import (
	"fmt"
	"slices"
	"strings"

	"github.com/playwright-community/playwright-go"
)

// MinTargetSize is the recommended touch target edge in CSS pixels.
const MinTargetSize = 44.0

// TargetSize is a visible interactive element smaller than recommended.
type TargetSize struct {
	Index  int
	Width  float64
	Height float64
}

func (t TargetSize) String() string {
	return fmt.Sprintf("element %d is %.0fx%.0fpx", t.Index, t.Width, t.Height)
}

// SmallTargets inspects up to limit elements matching selector and returns
// the visible ones with an edge below minEdge.
func SmallTargets(page playwright.Page, selector string, limit int, minEdge float64) ([]TargetSize, error) {
	els := page.Locator(selector)
	n, err := els.Count()
	if err != nil {
		return nil, fmt.Errorf("a11y: count %s: %w", selector, err)
	}

	var small []TargetSize
	for i := 0; i < min(n, limit); i++ {
		el := els.Nth(i)
		visible, err := el.IsVisible()
		if err != nil || !visible {
			continue
		}
		box, err := el.BoundingBox()
		if err != nil || box == nil {
			continue
		}
		if box.Width < minEdge || box.Height < minEdge {
			small = append(small, TargetSize{Index: i, Width: box.Width, Height: box.Height})
		}
	}
	return small, nil
}

const activeElement = `() => {
  const el = document.activeElement;
  if (!el || el === document.body) return '';
  const cls = typeof el.className === 'string' && el.className ? '.' + el.className.split(' ')[0] : '';
  return el.tagName + cls;
}`

// FocusOrder presses Tab presses times and returns the distinct elements
// that received focus, as TAG.firstClass, in order of first focus.
func FocusOrder(page playwright.Page, presses int) ([]string, error) {
	var seen []string
	for i := 0; i < presses; i++ {
		if err := page.Keyboard().Press("Tab"); err != nil {
			return seen, fmt.Errorf("a11y: press Tab: %w", err)
		}
		raw, err := page.Evaluate(activeElement)
		if err != nil {
			return seen, fmt.Errorf("a11y: read active element: %w", err)
		}
		if el, _ := raw.(string); el != "" && !slices.Contains(seen, el) {
			seen = append(seen, el)
		}
	}
	return seen, nil
}

const focusStyle = `el => {
  const s = window.getComputedStyle(el);
  return s.outlineStyle !== 'none' && s.outlineWidth !== '0px' || s.boxShadow !== 'none';
}`

// HasFocusIndicator reports whether the focused element draws an outline or
// a box shadow.
func HasFocusIndicator(el playwright.Locator) (bool, error) {
	if err := el.Focus(); err != nil {
		return false, fmt.Errorf("a11y: focus: %w", err)
	}
	raw, err := el.Evaluate(focusStyle, nil)
	if err != nil {
		return false, fmt.Errorf("a11y: computed style: %w", err)
	}
	ok, _ := raw.(bool)
	return ok, nil
}

// TagNames lowercases the tag part of FocusOrder entries.
func TagNames(order []string) []string {
	out := make([]string, len(order))
	for i, el := range order {
		tag, _, _ := strings.Cut(el, ".")
		out[i] = strings.ToLower(tag)
	}
	return out
}
