package amfval

// OrderedMap is a string-keyed map that preserves insertion order,
// used for AMF3 dynamic object members and AMF array associative
// segments where wire order matters for golden-file fidelity.
type OrderedMap struct {
	keys []string
	vals map[string]interface{}
}

// NewOrderedMap returns an empty OrderedMap.
func NewOrderedMap() *OrderedMap {
	return &OrderedMap{vals: make(map[string]interface{})}
}

// Set inserts or updates key, appending it to the key order on first
// insertion only.
func (m *OrderedMap) Set(key string, value interface{}) {
	if _, exists := m.vals[key]; !exists {
		m.keys = append(m.keys, key)
	}
	m.vals[key] = value
}

// Get returns the value for key and whether it was present.
func (m *OrderedMap) Get(key string) (interface{}, bool) {
	v, ok := m.vals[key]
	return v, ok
}

// Delete removes key, if present.
func (m *OrderedMap) Delete(key string) {
	if _, exists := m.vals[key]; !exists {
		return
	}
	delete(m.vals, key)
	for i, k := range m.keys {
		if k == key {
			m.keys = append(m.keys[:i], m.keys[i+1:]...)
			break
		}
	}
}

// Keys returns the keys in insertion order.
func (m *OrderedMap) Keys() []string {
	return m.keys
}

// Len returns the number of entries.
func (m *OrderedMap) Len() int {
	return len(m.keys)
}

// Each calls fn for every entry in insertion order.
func (m *OrderedMap) Each(fn func(key string, value interface{})) {
	for _, k := range m.keys {
		fn(k, m.vals[k])
	}
}
