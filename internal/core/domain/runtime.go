package domain

import "sync"

// Capability backend names
const (
	BackendLocal  = "local"
	BackendRemote = "remote"
	BackendAuto   = "auto"
)

// RuntimeConfig tracks which answer sources are available at runtime.
// The provider backend is fixed at startup; the external generator and
// judge flags may change when they are reconfigured.
// Thread-safe for concurrent access.
type RuntimeConfig struct {
	mu sync.RWMutex

	// Static (set at startup, read-only)
	ProviderBackend string // "local" or "remote"
	StorageBackend  string // "memory", "sqlite" or "postgres"

	externalAvailable bool
	judgeAvailable    bool
}

// NewRuntimeConfig creates a new RuntimeConfig with initial values
func NewRuntimeConfig(providerBackend, storageBackend string) *RuntimeConfig {
	return &RuntimeConfig{
		ProviderBackend: providerBackend,
		StorageBackend:  storageBackend,
	}
}

// ExternalAvailable returns whether the external answer generator is configured
func (c *RuntimeConfig) ExternalAvailable() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.externalAvailable
}

// JudgeAvailable returns whether answer comparison is configured
func (c *RuntimeConfig) JudgeAvailable() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.judgeAvailable
}

// SetExternalAvailable updates the external generator flag
func (c *RuntimeConfig) SetExternalAvailable(available bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.externalAvailable = available
}

// SetJudgeAvailable updates the judge flag
func (c *RuntimeConfig) SetJudgeAvailable(available bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.judgeAvailable = available
}

// CanDualAnswer returns true if two answer sources can be compared
func (c *RuntimeConfig) CanDualAnswer() bool {
	return c.ExternalAvailable()
}
