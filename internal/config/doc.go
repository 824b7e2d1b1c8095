// Package config loads, normalizes, and validates photoprep configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// PHOTOPREP_OUTPUT_DIR. The Config type centralizes every knob the pipeline
// and CLI need: output locations, extraction rate, resize scale, the
// background-removal backend, and the reconstruction toolchain scripts.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical enum values, and clear validation errors.
package config
