package weave

import (
	"github.com/emirpasic/gods/maps/linkedhashmap"
)

// WovenFns maps woven method names to the attributes applied to them, in the
// order the methods appear in the source.
type WovenFns[A any] struct {
	m *linkedhashmap.Map
}

func newWovenFns[A any]() *WovenFns[A] {
	return &WovenFns[A]{m: linkedhashmap.New()}
}

func (w *WovenFns[A]) put(name string, attrs []A) {
	w.m.Put(name, attrs)
}

// Get returns the attributes applied to the named method
func (w *WovenFns[A]) Get(name string) ([]A, bool) {
	v, ok := w.m.Get(name)
	if !ok {
		return nil, false
	}
	return v.([]A), true
}

// Names returns the woven method names in source order
func (w *WovenFns[A]) Names() []string {
	keys := w.m.Keys()
	names := make([]string, len(keys))
	for i, k := range keys {
		names[i] = k.(string)
	}
	return names
}

// Len returns the number of woven methods
func (w *WovenFns[A]) Len() int {
	return w.m.Size()
}

// Each calls fn for every woven method in source order
func (w *WovenFns[A]) Each(fn func(name string, attrs []A)) {
	w.m.Each(func(key, value interface{}) {
		fn(key.(string), value.([]A))
	})
}
