// Package config manages user-level settings stored at ~/.scaffoldkit/config.yaml.
// It provides functions to load, read, and write configuration keys such as
// the dependency version to provision, the archive mirror, and the timeouts
// applied to downloads and verification stages.
package config
