// Package main hosts the lapsecam CLI entrypoint and command graph.
//
// The Cobra-based command tree runs the capture daemon in the foreground,
// assembles timelapses, reports capture history from the catalog, previews
// calendar decisions, and scaffolds configuration. Configuration resolution
// lives in commandContext so subcommands only deal with their own flags.
//
// Keep this package lean: behavior belongs in internal packages and is
// surfaced here through dedicated commands or flags.
package main
