// Package protocol implements the protocol engine: a registry of
// configured protocol definitions, and the context_id/protocol_path
// ancestor-walk authorization check records are evaluated against.
package protocol

import (
	"errors"
	"fmt"
	"sync"

	"github.com/dwnode/dwnd/internal/model"
)

// ErrAlreadyConfigured is returned when a (protocol, protocol_version)
// pair is configured a second time: protocol definitions are
// immutable per version, there is no update path.
var ErrAlreadyConfigured = errors.New("protocol: protocol version already configured")

// ErrNotConfigured is returned when a protocol/version has no definition.
var ErrNotConfigured = errors.New("protocol: protocol version not configured")

// Registry indexes ProtocolsConfigure definitions by (protocol,
// protocol_version). Entries are immutable once set: spec.md leaves no
// path for redefining an already-configured version, so a repeat
// ProtocolsConfigure for the same pair is rejected rather than merged.
type Registry struct {
	mu          sync.RWMutex
	definitions map[string]model.ProtocolDefinition
}

// NewRegistry builds an empty Registry.
func NewRegistry() *Registry {
	return &Registry{definitions: make(map[string]model.ProtocolDefinition)}
}

// Configure registers def under (def.Protocol, version), failing if
// that pair is already configured.
func (r *Registry) Configure(version string, def model.ProtocolDefinition) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := registryKey(def.Protocol, version)

	if _, exists := r.definitions[key]; exists {
		return fmt.Errorf("%w: %s@%s", ErrAlreadyConfigured, def.Protocol, version)
	}

	r.definitions[key] = def

	return nil
}

// Lookup returns the definition configured for (protocol, version).
func (r *Registry) Lookup(protocol, version string) (model.ProtocolDefinition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	def, ok := r.definitions[registryKey(protocol, version)]

	return def, ok
}

func registryKey(protocol, version string) string {
	return protocol + "@" + version
}

// Definitions returns every configured version of protocol, optionally
// narrowed to versions. An empty versions list returns all of them.
func (r *Registry) Definitions(protocol string, versions []string) []model.ProtocolDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if len(versions) > 0 {
		defs := make([]model.ProtocolDefinition, 0, len(versions))

		for _, version := range versions {
			if def, ok := r.definitions[registryKey(protocol, version)]; ok {
				defs = append(defs, def)
			}
		}

		return defs
	}

	var defs []model.ProtocolDefinition

	for key, def := range r.definitions {
		if def.Protocol == protocol || key == protocol {
			defs = append(defs, def)
		}
	}

	return defs
}
