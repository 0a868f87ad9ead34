package graph

// Registry deduplicates entities by key and remembers first-seen order.
type Registry[K comparable, V any] struct {
	index map[K]V
	order []V
}

// NewRegistry returns an empty registry.
func NewRegistry[K comparable, V any]() *Registry[K, V] {
	return &Registry[K, V]{index: make(map[K]V)}
}

// Get returns the entity stored under key.
func (r *Registry[K, V]) Get(key K) (V, bool) {
	v, ok := r.index[key]
	return v, ok
}

// GetOrCreate returns the entity under key, calling create when absent.
// The second result reports whether create was called.
func (r *Registry[K, V]) GetOrCreate(key K, create func() V) (V, bool) {
	if v, ok := r.index[key]; ok {
		return v, false
	}
	v := create()
	r.index[key] = v
	r.order = append(r.order, v)
	return v, true
}

// Len returns the number of distinct keys.
func (r *Registry[K, V]) Len() int {
	return len(r.order)
}

// Values returns entities in first-seen order.
func (r *Registry[K, V]) Values() []V {
	return append([]V(nil), r.order...)
}
