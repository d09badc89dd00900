package fragment

import (
	"sync"
	"sync/atomic"

	"github.com/shibukawa/sqlasm"
)

// Registry serves the current Store and swaps in a freshly loaded one on
// Reload. Readers never observe a partially loaded store.
type Registry struct {
	root    string
	dialect sqlasm.Dialect
	current atomic.Pointer[Store]
	mu      sync.Mutex // serializes reloads
}

// NewRegistry loads rootDir and returns a registry serving it.
func NewRegistry(rootDir string, dialect sqlasm.Dialect) (*Registry, error) {
	store, err := Load(rootDir, dialect)
	if err != nil {
		return nil, err
	}

	r := &Registry{root: rootDir, dialect: dialect}
	r.current.Store(store)

	return r, nil
}

// Store returns the store currently served.
func (r *Registry) Store() *Store {
	return r.current.Load()
}

// Root returns the watched root directory.
func (r *Registry) Root() string {
	return r.root
}

// Reload loads the root again. On failure the previous store keeps serving
// and the load error is returned.
func (r *Registry) Reload() (*Store, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	store, err := Load(r.root, r.dialect)
	if err != nil {
		return r.current.Load(), err
	}

	r.current.Store(store)

	return store, nil
}
