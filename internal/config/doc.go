// Package config loads, normalizes, and validates studiocast configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts and paths relative to the config file), reads TOML or YAML files,
// loads an optional .env beside the config, and honours environment fallbacks
// such as STUDIOCAST_SPREADSHEET_ID. The Config type centralizes every knob the
// daemon and CLI need: spreadsheet column mapping, accounts and their session
// files, schedules, retry policy, and browser settings.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
