// Package scaffold renders a project template into a concrete directory
// tree. A template directory holds scaffold.yaml (ordered default context,
// render rules, pinned dependencies) and exactly one top-level directory
// whose name is itself a template; that directory becomes the generated
// project. Rendering is always non-interactive: defaults come from the
// manifest and callers may override named fields.
package scaffold
