package guild

import (
	"runtime"
	"sync"
	"weak"
)

// viewCache hands out one view instance per id for as long as some caller
// still holds it. Entries are weak and are pruned once the view is collected.
type viewCache[V any] struct {
	mu sync.Mutex
	m  map[string]weak.Pointer[V]
}

func newViewCache[V any]() *viewCache[V] {
	return &viewCache[V]{m: make(map[string]weak.Pointer[V])}
}

func (c *viewCache[V]) get(id string, mk func() *V) *V {
	c.mu.Lock()
	defer c.mu.Unlock()
	if p, ok := c.m[id]; ok {
		if v := p.Value(); v != nil {
			return v
		}
	}
	v := mk()
	c.m[id] = weak.Make(v)
	runtime.AddCleanup(v, c.prune, id)
	return v
}

// prune drops id unless a newer live view has replaced the collected one.
func (c *viewCache[V]) prune(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if p, ok := c.m[id]; ok && p.Value() == nil {
		delete(c.m, id)
	}
}

func (c *viewCache[V]) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.m)
}
