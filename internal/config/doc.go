// Package config loads, normalizes, and validates screencap configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// DISPLAY and SCREENCAP_API_TOKEN. The Config type centralizes every knob the
// daemon and CLI need, from capture constraints to the remux binary.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
