// Package api defines wire-format types and converters for the IPC and HTTP
// API layer. It translates session snapshots, saved recordings and dependency
// checks into transport-friendly DTOs that the CLI and HTTP clients render
// without coupling to internal types.
//
// DTOs use camelCase JSON tags. Timestamps use RFC3339 with milliseconds.
// Registry blob URLs are paired with the HTTP path that serves their bytes.
package api
