// Package preflight provides readiness checks for the binaries and
// directories lapsecam depends on.
//
// These checks run in two contexts:
//   - The daemon logs RunAll results at startup as a dependency snapshot.
//     Failures are warnings; capture attempts surface the real error.
//   - The CLI "lapsecam status" command renders the same results as a table.
package preflight
