// Package cli defines the Cobra command tree for the scaffoldkit CLI. Each
// file registers one top-level command (generate, provision, verify, config,
// version) with the root command. Commands only parse flags, wire the
// internal packages together and format output.
package cli
