package scaffold

import (
	"bytes"
	"fmt"
	"sort"
	"strings"
	"text/template"
)

// Context is the resolved set of template variables for one generation.
// It is immutable: With returns a new Context and Map returns a copy, so
// every later stage sees the same values.
type Context struct {
	keys   []string
	values map[string]string
}

// NewContext builds a Context from key/value pairs in the given order.
// A repeated key keeps its first position and takes the last value.
func NewContext(pairs ...[2]string) Context {
	c := Context{values: make(map[string]string, len(pairs))}
	for _, p := range pairs {
		if _, seen := c.values[p[0]]; !seen {
			c.keys = append(c.keys, p[0])
		}
		c.values[p[0]] = p[1]
	}
	return c
}

// ContextFromMap builds a Context with keys in sorted order.
func ContextFromMap(m map[string]string) Context {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	pairs := make([][2]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, [2]string{k, m[k]})
	}
	return NewContext(pairs...)
}

// Get returns the value for key and whether it is set.
func (c Context) Get(key string) (string, bool) {
	v, ok := c.values[key]
	return v, ok
}

// Value returns the value for key, or "" when unset.
func (c Context) Value(key string) string {
	return c.values[key]
}

// Keys returns the keys in resolution order.
func (c Context) Keys() []string {
	return append([]string(nil), c.keys...)
}

// Len returns the number of variables.
func (c Context) Len() int {
	return len(c.keys)
}

// Map returns a copy of the variables.
func (c Context) Map() map[string]string {
	m := make(map[string]string, len(c.values))
	for k, v := range c.values {
		m[k] = v
	}
	return m
}

// With returns a new Context with extra variables appended or replaced.
// Extra keys are added in sorted order.
func (c Context) With(extra map[string]string) Context {
	pairs := make([][2]string, 0, len(c.keys)+len(extra))
	for _, k := range c.keys {
		pairs = append(pairs, [2]string{k, c.values[k]})
	}
	names := make([]string, 0, len(extra))
	for k := range extra {
		names = append(names, k)
	}
	sort.Strings(names)
	for _, k := range names {
		pairs = append(pairs, [2]string{k, extra[k]})
	}
	return NewContext(pairs...)
}

// Expand renders s as a Go template over the context. Strings without
// template actions are returned unchanged. Unknown keys are an error.
func (c Context) Expand(s string) (string, error) {
	if !strings.Contains(s, "{{") {
		return s, nil
	}
	tmpl, err := template.New("expand").Funcs(FuncMap()).Option("missingkey=error").Parse(s)
	if err != nil {
		return "", fmt.Errorf("parsing %q: %w", s, err)
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, c.values); err != nil {
		return "", fmt.Errorf("expanding %q: %w", s, err)
	}
	return buf.String(), nil
}

// ExpandAll expands every element of ss.
func (c Context) ExpandAll(ss []string) ([]string, error) {
	out := make([]string, len(ss))
	for i, s := range ss {
		v, err := c.Expand(s)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}
