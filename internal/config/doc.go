// Package config loads, validates, and normalizes docflow's TOML configuration.
package config
