// Package preflight checks the filesystem paths and X display the recorder
// depends on.
//
// The daemon runs RunAll at startup and logs failures without refusing to
// start; the CLI status command renders the same results in its Paths
// section.
package preflight
