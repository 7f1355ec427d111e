// Package manifest handles parsing and validation of the two YAML files a
// project template may carry: scaffold.yaml (default context, render rules,
// pinned dependencies) and scenarios.yaml (verification scenarios). Both are
// checked against JSON Schemas embedded in the binary before they are decoded.
package manifest
