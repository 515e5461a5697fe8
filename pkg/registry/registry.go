// Package registry implements C2: the bidirectional wire-alias <->
// server-class-id mapping the AMF3 codec (for typed objects) and the
// dispatch table (for translating a body's source class before
// lookup) both consult, plus the ClassLoader interface the dispatch
// table's auto-registration path uses.
package registry

import (
	"fmt"
	"sync"

	"github.com/BurntSushi/toml"
)

// builtin seeds the default alias set: the Flex messaging classes the
// message handler's command-message state machine and remoting path
// recognize on the wire.
var builtin = map[string]string{
	"flex.messaging.messages.CommandMessage":     "CommandMessage",
	"flex.messaging.messages.RemotingMessage":    "RemotingMessage",
	"flex.messaging.messages.AcknowledgeMessage": "AcknowledgeMessage",
	"flex.messaging.messages.ErrorMessage":       "ErrorMessage",
	"flex.messaging.io.ArrayCollection":          "ArrayCollection",
}

// Registry holds the alias<->class mapping. Reads and writes are
// guarded by a shared-reader/exclusive-writer lock per spec §5: the
// mapping is read on every decode/dispatch and edited rarely.
type Registry struct {
	mu           sync.RWMutex
	aliasToClass map[string]string
	classToAlias map[string]string
}

// New returns a Registry seeded with the built-in mappings.
func New() *Registry {
	r := &Registry{}
	r.ResetMap()
	return r
}

// SetMapping records that wireAlias <-> serverClassID.
func (r *Registry) SetMapping(wireAlias, serverClassID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.aliasToClass[wireAlias] = serverClassID
	r.classToAlias[serverClassID] = wireAlias
}

// GetMappedClassName resolves x in either direction: if x is a known
// wire alias, returns the mapped server class id; else if x is a
// known server class id, returns the mapped wire alias. Returns
// ("", false) if x is mapped in neither direction.
func (r *Registry) GetMappedClassName(x string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if class, ok := r.aliasToClass[x]; ok {
		return class, true
	}
	if alias, ok := r.classToAlias[x]; ok {
		return alias, true
	}
	return "", false
}

// ResetMap discards all custom mappings and reloads the built-ins.
func (r *Registry) ResetMap() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.aliasToClass = make(map[string]string, len(builtin))
	r.classToAlias = make(map[string]string, len(builtin))
	for alias, class := range builtin {
		r.aliasToClass[alias] = class
		r.classToAlias[class] = alias
	}
}

// LoadAliasFile reads a TOML file of wireAlias = serverClassId pairs
// and records each as a mapping, on top of whatever the registry
// already holds.
func (r *Registry) LoadAliasFile(path string) error {
	var aliases map[string]string
	if _, err := toml.DecodeFile(path, &aliases); err != nil {
		return fmt.Errorf("registry: load alias file %s: %w", path, err)
	}
	for wireAlias, serverClassID := range aliases {
		r.SetMapping(wireAlias, serverClassID)
	}
	return nil
}

// ClassLoader is the directory collaborator C6 falls back to when a
// qualified name misses in the dispatch table but a source class
// exists: it is asked to load the class so it can be auto-registered.
type ClassLoader interface {
	// LoadClass returns the loaded class value (to be reflected into
	// a Dispatchable by the reflection collaborator) and whether it
	// was found.
	LoadClass(name string) (interface{}, bool)
}

// Default is the process-wide convenience registry. Prefer
// constructing and threading an explicit *Registry; this exists only
// so small tools and tests don't need to plumb one through.
var Default = New()
