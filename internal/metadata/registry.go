package metadata

import (
	"sync"

	"github.com/rs/zerolog"
)

// Registry stores validated entity metadata by schema key. It is explicitly
// constructed and injected so independent assemblies (and tests) never share
// state through a package-level singleton.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]Metadata
	logger  zerolog.Logger
}

// NewRegistry creates an empty metadata registry.
func NewRegistry(logger zerolog.Logger) *Registry {
	return &Registry{
		entries: make(map[string]Metadata),
		logger:  logger.With().Str("component", "metadata-registry").Logger(),
	}
}

// Register stores md under key, replacing any previous registration.
func (r *Registry) Register(key SchemaKey, md Metadata) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.logger.Debug().Str("key", key.String()).Msg("registering metadata")
	r.entries[key.String()] = md
}

// Get returns the metadata registered under key.
func (r *Registry) Get(key SchemaKey) (Metadata, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	md, ok := r.entries[key.String()]
	return md, ok
}

// Clear removes the registration for key, if any.
func (r *Registry) Clear(key SchemaKey) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.entries, key.String())
}
