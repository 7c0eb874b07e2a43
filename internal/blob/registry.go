package blob

import (
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// URLScheme prefixes every materialized blob URL.
const URLScheme = "blob:"

// Registry materializes blobs as addressable URLs until they are revoked.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]entry
}

type entry struct {
	blob    Blob
	created time.Time
}

// Entry describes a live registry URL.
type Entry struct {
	URL     string
	Type    string
	Size    int
	Created time.Time
}

// NewRegistry constructs an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]entry)}
}

// Create registers b and returns its URL.
func (r *Registry) Create(b Blob) string {
	id := uuid.NewString()
	r.mu.Lock()
	r.entries[id] = entry{blob: b, created: time.Now().UTC()}
	r.mu.Unlock()
	return URLScheme + id
}

// Resolve returns the blob behind url. Bare IDs are accepted.
func (r *Registry) Resolve(url string) (Blob, bool) {
	id := ID(url)
	if id == "" {
		return Blob{}, false
	}
	r.mu.RLock()
	e, ok := r.entries[id]
	r.mu.RUnlock()
	return e.blob, ok
}

// Revoke releases the blob behind url. Revoking an unknown or empty URL is a no-op
// and reports false.
func (r *Registry) Revoke(url string) bool {
	id := ID(url)
	if id == "" {
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.entries[id]; !ok {
		return false
	}
	delete(r.entries, id)
	return true
}

// Len returns the number of live URLs.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// Entries lists live URLs.
func (r *Registry) Entries() []Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Entry, 0, len(r.entries))
	for id, e := range r.entries {
		out = append(out, Entry{URL: URLScheme + id, Type: e.blob.Type, Size: e.blob.Size(), Created: e.created})
	}
	return out
}

// ID strips the URL scheme, returning the registry key.
func ID(url string) string {
	return strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(url), URLScheme))
}
