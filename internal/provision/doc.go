// Package provision installs a pinned third-party source tree (GoogleTest by
// default) into a generated project. A version identifier is resolved to one
// archive URL, the archive is downloaded in full to a private staging
// directory, extracted there, and the dependency subtree is moved onto the
// destination in a single rename. The staging directory is removed on every
// exit path and the destination is replaced, never merged.
package provision
