package dispatch

import (
	"errors"
	"fmt"
	"sync"

	"github.com/dgraph-io/ristretto/v2"

	"amfgw/pkg/registry"
)

// ErrMethodNotExist is the sentinel behind every MethodNotExistError;
// callers that only care about the error class can keep checking it
// with errors.Is.
var ErrMethodNotExist = errors.New("Method does not exist")

// MethodNotExistError is returned (spec §4.5) when a qualified name
// misses the table even after an auto-load attempt, naming the
// method that was looked up.
type MethodNotExistError struct {
	Method string
}

func (e *MethodNotExistError) Error() string {
	return fmt.Sprintf("Method %q does not exist", e.Method)
}

func (e *MethodNotExistError) Unwrap() error {
	return ErrMethodNotExist
}

// AutoLoadResult is one invocable the reflection collaborator produced
// while reflecting a freshly loaded class, ready for registration
// under ShortName (optionally namespaced).
type AutoLoadResult struct {
	ShortName   string
	Namespace   string
	Dispatchable Dispatchable
}

// Reflector is the reflection collaborator's auto-load surface: given
// a loaded class value, produce the invocables it exposes.
type Reflector interface {
	ReflectClass(class interface{}) ([]AutoLoadResult, error)
}

// Table is the qualified-name -> Dispatchable registry. Registration
// is expected to complete before serving (spec §5); the embedded
// RWMutex exists for deployments that mutate it at runtime.
type Table struct {
	mu      sync.RWMutex
	entries map[string]Dispatchable

	reg      *registry.Registry
	loader   registry.ClassLoader
	reflect  Reflector
	missOnce *ristretto.Cache[string, bool]
}

// New returns an empty Table. loader and reflector may be nil, in
// which case a qualified-name miss never attempts an auto-load.
func New(reg *registry.Registry, loader registry.ClassLoader, reflector Reflector) (*Table, error) {
	cache, err := ristretto.NewCache(&ristretto.Config[string, bool]{
		NumCounters: 1e5,
		MaxCost:     1 << 16,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("dispatch: build miss cache: %w", err)
	}
	return &Table{
		entries:  make(map[string]Dispatchable),
		reg:      reg,
		loader:   loader,
		reflect:  reflector,
		missOnce: cache,
	}, nil
}

// QualifiedName composes namespace.shortName, or the bare shortName if
// namespace is empty (spec §4.5).
func QualifiedName(namespace, shortName string) string {
	if namespace == "" {
		return shortName
	}
	return namespace + "." + shortName
}

// Register adds d under namespace.shortName. A second registration of
// an identical qualified name is a fatal configuration error, per
// spec §4.5 and §7 (DispatchError: duplicate).
func (t *Table) Register(namespace, shortName string, d Dispatchable) error {
	qname := QualifiedName(namespace, shortName)
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, exists := t.entries[qname]; exists {
		return fmt.Errorf("dispatch: duplicate registration for %q", qname)
	}
	t.entries[qname] = d
	return nil
}

// Lookup resolves (source, method) into a Dispatchable. source may be
// translated through the type registry before the qualified name is
// composed. On a first miss, if source names a loadable class, the
// class is reflected and auto-registered, then lookup is retried once;
// a second miss returns ErrMethodNotExist.
func (t *Table) Lookup(source, method string) (Dispatchable, error) {
	translated := source
	if source != "" {
		if mapped, ok := t.reg.GetMappedClassName(source); ok {
			translated = mapped
		}
	}
	qname := QualifiedName(translated, method)

	if d, ok := t.get(qname); ok {
		return d, nil
	}

	if translated == "" || t.loader == nil || t.reflect == nil {
		return nil, &MethodNotExistError{Method: qname}
	}
	if _, knownMiss := t.missOnce.Get(translated); knownMiss {
		return nil, &MethodNotExistError{Method: qname}
	}

	class, found := t.loader.LoadClass(translated)
	if !found {
		t.missOnce.Set(translated, true, 1)
		t.missOnce.Wait()
		return nil, &MethodNotExistError{Method: qname}
	}

	results, err := t.reflect.ReflectClass(class)
	if err != nil {
		return nil, fmt.Errorf("dispatch: reflect %q: %w", translated, err)
	}
	for _, res := range results {
		namespace := res.Namespace
		if namespace == "" {
			namespace = translated
		}
		if err := t.Register(namespace, res.ShortName, res.Dispatchable); err != nil {
			return nil, err
		}
	}

	if d, ok := t.get(qname); ok {
		return d, nil
	}
	return nil, &MethodNotExistError{Method: qname}
}

func (t *Table) get(qname string) (Dispatchable, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	d, ok := t.entries[qname]
	return d, ok
}
