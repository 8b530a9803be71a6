// Package config loads, validates, and normalizes Slicer configuration
// from a TOML file, applying repository defaults for unset values.
package config
