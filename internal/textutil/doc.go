// Package textutil provides filename sanitization and display helpers.
//
// Saved recordings take user-supplied names, so names are accent-folded and
// stripped of filesystem-unsafe characters before they reach disk.
package textutil
