// Package config loads service configuration from a TOML file with
// TERMSTD_* environment overrides.
package config
