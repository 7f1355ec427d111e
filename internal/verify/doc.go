// Package verify runs an ordered list of build stages (configure, build,
// run, unit tests, docs, install) against a generated project and reports
// which stage, if any, failed.
//
// Stages are argv slices, not shell strings. Arguments, directories,
// environment values and post-condition paths are Go templates expanded
// over the project context, so a stage can refer to {{ .app_name }} or
// {{ .install_prefix }}. The first failing stage stops the run.
package verify
