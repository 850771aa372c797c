package vm

// MapObject maps string keys to values. Enumeration follows key insertion
// order; re-putting an existing key keeps its original position. Callers
// must hold the global lock.
type MapObject struct {
	objectHeader
	keys   []string
	values map[string]Value
}

func (m *MapObject) Kind() ObjectKind { return KindMap }

// Len returns the number of entries.
func (m *MapObject) Len() int { return len(m.keys) }

// Get returns the value stored under key.
func (m *MapObject) Get(key string) (Value, bool) {
	v, ok := m.values[key]
	return v, ok
}

// Has reports whether key is present.
func (m *MapObject) Has(key string) bool {
	_, ok := m.values[key]
	return ok
}

// Put stores v under key.
func (m *MapObject) Put(key string, v Value) {
	if _, ok := m.values[key]; !ok {
		if len(m.keys) >= mapBaseEntries {
			m.grow(sizeMapEntry)
		}
		m.keys = append(m.keys, key)
	}
	m.values[key] = v
}

// Remove deletes key and reports whether it was present.
func (m *MapObject) Remove(key string) bool {
	if _, ok := m.values[key]; !ok {
		return false
	}
	delete(m.values, key)
	if len(m.keys) > mapBaseEntries {
		m.grow(-sizeMapEntry)
	}
	for i, k := range m.keys {
		if k == key {
			m.keys = append(m.keys[:i], m.keys[i+1:]...)
			break
		}
	}
	return true
}

// Keys returns the keys in insertion order.
func (m *MapObject) Keys() []string {
	out := make([]string, len(m.keys))
	copy(out, m.keys)
	return out
}

// Each calls fn for every entry in insertion order until fn returns false.
func (m *MapObject) Each(fn func(key string, v Value) bool) {
	for _, k := range m.keys {
		if !fn(k, m.values[k]) {
			return
		}
	}
}

// Iterate returns the iterator that follows prev. Iterators are 1-based
// insertion positions; 0 starts the iteration and a result of 0 means the
// map is exhausted.
func (m *MapObject) Iterate(prev int) int {
	if prev < 0 || prev >= len(m.keys) {
		return 0
	}
	return prev + 1
}

// IteratorKey returns the key at iterator it.
func (m *MapObject) IteratorKey(it int) (string, bool) {
	if it < 1 || it > len(m.keys) {
		return "", false
	}
	return m.keys[it-1], true
}

// IteratorValue returns the value at iterator it.
func (m *MapObject) IteratorValue(it int) (Value, bool) {
	k, ok := m.IteratorKey(it)
	if !ok {
		return Null, false
	}
	return m.values[k], true
}
