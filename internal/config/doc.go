// Package config loads, validates, and normalizes scribe configuration.
//
// Configuration comes from three layers: compiled defaults, a TOML file
// (~/.config/scribe/config.toml or ./scribe.toml), and environment variables,
// with later layers winning. Path values are tilde-expanded and made absolute
// during normalization so downstream code never handles relative paths.
package config
