// Package config loads, normalizes, and validates the TOML configuration for
// the segue daemon and CLI.
package config
