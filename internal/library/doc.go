// Package library writes saved recordings to disk and keeps a SQLite catalog
// of them.
package library
