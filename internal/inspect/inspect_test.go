package inspect

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", Truncate("abc", 5))
	assert.Equal(t, "ab", Truncate("abc", 2))
	assert.Equal(t, "", Truncate("abc", 0))
	assert.Equal(t, "привет", Truncate("привет мир", 6), "cuts on runes, not bytes")
}

func TestBest(t *testing.T) {
	r := &Report{Probes: []Probe{
		{Selector: "app-todo-item", Count: 0},
		{Selector: ".todo", Count: 10, First: `<div class="todo"></div>`},
		{Selector: ".todo-item", Count: 3},
	}}
	p, ok := r.Best()
	require.True(t, ok)
	assert.Equal(t, ".todo", p.Selector)

	_, ok = (&Report{}).Best()
	assert.False(t, ok)
}

func TestWriteYAML(t *testing.T) {
	r := &Report{
		URL:       "http://localhost/",
		Title:     "Todo App",
		Inputs:    []Input{{Type: "text", Placeholder: "Add Todo..."}, {Type: "submit"}},
		Buttons:   []Button{{Text: "Remove", Class: "btn-remove"}},
		ListItems: 10,
		Probes:    []Probe{{Selector: "app-todo-item", Count: 10}},
	}

	var buf bytes.Buffer
	require.NoError(t, r.WriteYAML(&buf))
	assert.Contains(t, buf.String(), "placeholder: Add Todo...")

	var decoded Report
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, r.Title, decoded.Title)
	assert.Equal(t, r.Inputs, decoded.Inputs)
	assert.Equal(t, 10, decoded.Probes[0].Count)
}
