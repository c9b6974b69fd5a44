package blob

import (
	"fmt"
	"strings"
	"sync"

	"github.com/ericthayer/devlog/internal/common"
)

// Scheme prefixes transient in-memory references. A URL carrying it is only
// resolvable inside the running process and must be promoted to durable
// storage before a record referencing it is persisted.
const Scheme = "local://"

type entry struct {
	data        []byte
	contentType string
}

// Registry hands out transient URLs for in-memory payloads, standing in for
// durable storage until a save promotes them. Safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]entry
}

func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]entry)}
}

// IsTransient reports whether url references this process's memory rather
// than durable storage.
func IsTransient(url string) bool {
	return strings.HasPrefix(url, Scheme)
}

// Put stores payload and returns a transient URL for it.
func (r *Registry) Put(data []byte, contentType string) string {
	url := Scheme + common.NewLocalID()

	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[url] = entry{data: data, contentType: contentType}
	return url
}

// Get resolves a transient URL to its payload.
func (r *Registry) Get(url string) ([]byte, string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.entries[url]
	if !ok {
		return nil, "", fmt.Errorf("%w: transient blob %s", common.ErrorNotFound, url)
	}
	return e.data, e.contentType, nil
}

// Revoke releases the payload behind url. Revoking an unknown or already
// revoked URL is a no-op.
func (r *Registry) Revoke(url string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries, url)
}

// Len reports how many payloads are currently held.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}
