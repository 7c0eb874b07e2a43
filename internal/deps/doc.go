// Package deps checks that the external binaries screencap shells out to are
// installed.
package deps
