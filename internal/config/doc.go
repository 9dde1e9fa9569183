// Package config loads, normalizes, and validates lapsecam configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and applies LAPSECAM_-prefixed environment
// overrides. The Config type centralizes the stream list, capture settings,
// and the working-hours calendar so the daemon and CLI see one sanitized view.
//
// Calendar values are exposed as time.Duration and *time.Location helpers;
// downstream packages should not re-derive them from raw seconds.
package config
