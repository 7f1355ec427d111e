// Package scenario generates a project from a template into a throwaway
// work area, provisions its dependencies, checks the top-level layout and
// runs the build stages against it. The work area is removed when the
// scenario ends, whatever the outcome.
package scenario
