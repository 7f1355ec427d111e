package scaffold

import (
	"fmt"
	"sort"
	"strings"

	"github.com/scaffoldkit/scaffoldkit/internal/errs"
	"github.com/scaffoldkit/scaffoldkit/internal/manifest"
)

// ResolveContext computes the project context from the manifest defaults
// and caller overrides. Defaults are rendered in file order, so a default
// may reference any key declared above it. An override replaces the
// default before rendering. Overrides for undeclared keys are rejected.
func ResolveContext(m *manifest.TemplateManifest, overrides map[string]string) (Context, error) {
	entries, err := m.ContextEntries()
	if err != nil {
		return Context{}, errs.Wrap(errs.EInvalidManifest, "reading template context", err)
	}

	declared := make(map[string]bool, len(entries))
	for _, e := range entries {
		declared[e.Key] = true
	}
	var unknown []string
	for k := range overrides {
		if !declared[k] {
			unknown = append(unknown, k)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return Context{}, errs.Newf(errs.EUsage, "unknown context keys: %s", strings.Join(unknown, ", "))
	}

	ctx := NewContext()
	for _, e := range entries {
		raw := e.Value
		if v, ok := overrides[e.Key]; ok {
			raw = v
		}
		value, err := ctx.Expand(raw)
		if err != nil {
			return Context{}, errs.Wrap(errs.EGenerate, fmt.Sprintf("resolving context key %q", e.Key), err)
		}
		ctx = ctx.With(map[string]string{e.Key: value})
	}
	return ctx, nil
}
